package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kinfolk/internal/ai"
	"github.com/suPer8Hu/kinfolk/internal/common"
)

func (h *Handler) profile(c *gin.Context) (ai.Config, bool) {
	name := c.Param("name")
	cfg, ok := h.Chat.Profile(name)
	if !ok {
		common.Fail(c, http.StatusNotFound, 40404, "unknown ai profile: "+name)
	}
	return cfg, ok
}

func (h *Handler) ListProfiles(c *gin.Context) {
	out := make([]gin.H, 0, len(h.Profiles))
	for _, name := range h.Profiles {
		cfg, ok := h.Chat.Profile(name)
		if !ok {
			continue
		}
		out = append(out, gin.H{"name": name, "settings": cfg.Redacted()})
	}
	common.OK(c, gin.H{"profiles": out})
}

func (h *Handler) ListModels(c *gin.Context) {
	cfg, ok := h.profile(c)
	if !ok {
		return
	}
	names, err := h.AI.Models(c.Request.Context(), cfg)
	if err != nil {
		common.Fail(c, http.StatusBadGateway, 50201, ai.Diagnose(cfg, err))
		return
	}
	common.OK(c, gin.H{"models": names})
}

func (h *Handler) TestConnection(c *gin.Context) {
	cfg, ok := h.profile(c)
	if !ok {
		return
	}
	connected, msg := h.AI.TestConnection(c.Request.Context(), cfg)
	common.OK(c, gin.H{"ok": connected, "message": msg})
}
