package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/kinfolk/internal/ai"
	"github.com/suPer8Hu/kinfolk/internal/chat"
	"github.com/suPer8Hu/kinfolk/internal/common"
	"github.com/suPer8Hu/kinfolk/internal/genealogy"
	"github.com/suPer8Hu/kinfolk/internal/tools"
)

// JobStore persists async chat jobs.
type JobStore interface {
	CreateJobOrGetExisting(ctx context.Context, job *chat.Job) (*chat.Job, bool, error)
	GetJobByID(ctx context.Context, id string) (*chat.Job, error)
	MarkJobFailed(ctx context.Context, id string, errMsg string) error
}

type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// ModelBackend is the part of ai.Backend the profile endpoints use.
type ModelBackend interface {
	Models(ctx context.Context, cfg ai.Config) ([]string, error)
	TestConnection(ctx context.Context, cfg ai.Config) (bool, string)
}

type Handler struct {
	Graph      *genealogy.Service
	Chat       *chat.Orchestrator
	Jobs       JobStore
	Publisher  JobPublisher // nil disables async chat
	Tools      *tools.Registry
	Dispatcher *tools.Dispatcher
	AI         ModelBackend
	Profiles   []string // profile names, default first
	Log        zerolog.Logger
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func queryInt(c *gin.Context, name string) int {
	n, _ := strconv.Atoi(c.Query(name))
	return n
}

func invalidJSON(c *gin.Context) {
	common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
}
