package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kinfolk/internal/common"
	"github.com/suPer8Hu/kinfolk/internal/models"
)

func (h *Handler) ListPeople(c *gin.Context) {
	people, err := h.Graph.ListPeople(c.Request.Context())
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"people": people, "count": len(people)})
}

func (h *Handler) GetPerson(c *gin.Context) {
	p, err := h.Graph.GetPerson(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, p)
}

func (h *Handler) CreatePerson(c *gin.Context) {
	var req models.NewPerson
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	p, err := h.Graph.AddPerson(c.Request.Context(), req)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, p)
}

func (h *Handler) UpdatePerson(c *gin.Context) {
	var req models.PersonUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	p, err := h.Graph.UpdatePerson(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, p)
}

func (h *Handler) SetHomePerson(c *gin.Context) {
	p, err := h.Graph.SetHomePerson(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, p)
}

func (h *Handler) DeletePerson(c *gin.Context) {
	id := c.Param("id")
	if err := h.Graph.DeletePerson(c.Request.Context(), id); err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": id})
}

func (h *Handler) ListMarriages(c *gin.Context) {
	ms, err := h.Graph.ListMarriages(c.Request.Context())
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"marriages": ms, "count": len(ms)})
}

func (h *Handler) GetMarriage(c *gin.Context) {
	m, err := h.Graph.GetMarriage(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, m)
}

func (h *Handler) CreateMarriage(c *gin.Context) {
	var req models.NewMarriage
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	m, err := h.Graph.AddMarriage(c.Request.Context(), req)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, m)
}

func (h *Handler) UpdateMarriage(c *gin.Context) {
	var req models.MarriageUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	m, err := h.Graph.UpdateMarriage(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, m)
}

func (h *Handler) DeleteMarriage(c *gin.Context) {
	id := c.Param("id")
	if err := h.Graph.DeleteMarriage(c.Request.Context(), id); err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": id})
}

// Relations returns the report for ?home_id, or for the home person.
func (h *Handler) Relations(c *gin.Context) {
	r, err := h.Graph.Relations(c.Request.Context(), c.Query("home_id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, r)
}

func (h *Handler) Tree(c *gin.Context) {
	snap, err := h.Graph.Snapshot(c.Request.Context(), c.Query("home_id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, snap)
}
