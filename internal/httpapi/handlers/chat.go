package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/kinfolk/internal/chat"
	"github.com/suPer8Hu/kinfolk/internal/common"
	"github.com/suPer8Hu/kinfolk/internal/httpapi/middleware"
)

type createSessionReq struct {
	Profile string `json:"profile"`
}

func (h *Handler) CreateChatSession(c *gin.Context) {
	var req createSessionReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	sess, err := h.Chat.CreateSession(c.Request.Context(), req.Profile)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{
		"session_id": sess.SessionID,
		"profile":    sess.Profile,
		"provider":   sess.Provider,
		"model":      sess.Model,
	})
}

func (h *Handler) GetChatSession(c *gin.Context) {
	sess, err := h.Chat.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"session": sess, "state": h.Chat.State(sess.SessionID)})
}

type sendMessageReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}

	turn, err := h.Chat.Submit(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		common.FailErr(c, err)
		return
	}

	var reply, msgID string
	if turn.Reply != nil {
		reply, msgID = turn.Reply.Content, turn.Reply.MessageID
	}
	common.OK(c, gin.H{
		"session_id": req.SessionID,
		"reply":      reply,
		"message_id": msgID,
		"messages":   turn.Messages,
	})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	sessionID := c.Param("session_id")

	limit := queryInt(c, "limit")
	var beforeID uint64
	if s := c.Query("before_id"); s != "" {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			beforeID = n
		}
	}

	msgs, err := h.Chat.ListMessages(c.Request.Context(), sessionID, limit, beforeID)
	if err != nil {
		common.FailErr(c, err)
		return
	}

	var nextBeforeID uint64
	if len(msgs) > 0 {
		nextBeforeID = msgs[len(msgs)-1].ID
	}
	common.OK(c, gin.H{
		"messages":       msgs,
		"next_before_id": nextBeforeID,
	})
}

// SendChatMessageAsync stores the user message, records a job and hands it to
// the worker queue. The same Idempotency-Key always yields the same job.
func (h *Handler) SendChatMessageAsync(c *gin.Context) {
	if h.Publisher == nil || h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async chat is not enabled")
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}
	ctx := c.Request.Context()
	log := h.Log.With().
		Str("request_id", c.GetString(middleware.RequestIDKey)).
		Str("session_id", req.SessionID).
		Logger()

	msg, _, err := h.Chat.Enqueue(ctx, req.SessionID, req.Message, idempoKey)
	if err != nil {
		common.FailErr(c, err)
		return
	}

	jobID, err := common.NewULID()
	if err != nil {
		log.Error().Err(err).Msg("new job id failed")
		h.abandon(ctx, log, req.SessionID)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	j := &chat.Job{
		ID:        jobID,
		SessionID: req.SessionID,
		Prompt:    msg.Content,
		Status:    chat.JobQueued,
	}
	if idempoKey != "" {
		j.IdempotencyKey = &idempoKey
	}

	job, created, err := h.Jobs.CreateJobOrGetExisting(ctx, j)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("create job failed")
		h.abandon(ctx, log, req.SessionID)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	// enqueue only when a new job was created
	if created {
		if err := h.Publisher.PublishJob(ctx, job.ID); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("publish job failed")
			if ferr := h.Jobs.MarkJobFailed(context.WithoutCancel(ctx), job.ID, "enqueue failed: "+err.Error()); ferr != nil {
				log.Error().Err(ferr).Str("job_id", job.ID).Msg("mark job failed")
			}
			h.abandon(ctx, log, req.SessionID)
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{"job_id": job.ID, "message_id": msg.MessageID, "created": created})
}

// abandon frees a session whose queued message will never reach a worker.
func (h *Handler) abandon(ctx context.Context, log zerolog.Logger, sessionID string) {
	if _, err := h.Chat.Abandon(context.WithoutCancel(ctx), sessionID); err != nil {
		log.Error().Err(err).Msg("abandon pending turn failed")
	}
}

func (h *Handler) GetChatJob(c *gin.Context) {
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async chat is not enabled")
		return
	}
	jobID := c.Param("job_id")
	j, err := h.Jobs.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, chat.ErrNoRecord) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":                j.ID,
			"session_id":        j.SessionID,
			"status":            j.Status,
			"result_message_id": j.ResultMessageID,
			"error":             j.Error,
			"created_at":        j.CreatedAt,
			"updated_at":        j.UpdatedAt,
		},
	})
}

func (h *Handler) SendFeedback(c *gin.Context) {
	var req chat.FeedbackInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	fb, err := h.Chat.RecordFeedback(c.Request.Context(), req)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, fb)
}

func (h *Handler) ListFeedback(c *gin.Context) {
	items, err := h.Chat.ListFeedback(c.Request.Context(), queryInt(c, "limit"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"feedback": items})
}
