package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kinfolk/internal/ai"
	"github.com/suPer8Hu/kinfolk/internal/common"
)

func (h *Handler) ListTools(c *gin.Context) {
	common.OK(c, gin.H{"tools": h.Tools.Tools()})
}

// ExecuteTool runs one tool with the JSON body as its arguments. The result
// is the same text the assistant would see.
func (h *Handler) ExecuteTool(c *gin.Context) {
	name := c.Param("name")
	if _, ok := h.Tools.Lookup(name); !ok {
		common.Fail(c, http.StatusNotFound, 40404, "Unknown tool: "+name)
		return
	}

	var args map[string]any
	if err := c.ShouldBindJSON(&args); err != nil && !errors.Is(err, io.EOF) {
		invalidJSON(c)
		return
	}
	if args == nil {
		args = map[string]any{}
	}

	id, err := common.NewULID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	result := h.Dispatcher.Execute(c.Request.Context(), ai.ToolCall{ID: name + "-" + id, Name: name, Args: args})
	common.OK(c, gin.H{"tool": name, "result": result})
}
