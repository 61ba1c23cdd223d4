package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/suPer8Hu/kinfolk/internal/ai"
	"github.com/suPer8Hu/kinfolk/internal/models"
	"gorm.io/datatypes"
)

type FeedbackInput struct {
	SessionID string `json:"session_id" binding:"required"`
	MessageID string `json:"message_id" binding:"required"`
	Rating    int    `json:"rating" binding:"required"`
	Comment   string `json:"feedback_text"`
}

// RecordFeedback rates one model reply. The stored record carries the user
// prompt that led to it and the profile settings without secrets.
func (o *Orchestrator) RecordFeedback(ctx context.Context, in FeedbackInput) (*models.Feedback, error) {
	if in.Rating != 1 && in.Rating != -1 {
		return nil, models.Validation("rating must be 1 or -1", "", "")
	}
	sess, err := o.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	msg, err := o.store.GetMessage(ctx, in.SessionID, in.MessageID)
	if err != nil {
		if errors.Is(err, ErrNoRecord) {
			return nil, models.NotFound("message", in.MessageID)
		}
		return nil, models.Transport("get message", err)
	}
	if msg.Role != ai.RoleModel || msg.Content == "" {
		return nil, models.Validation("only model replies can be rated", "role "+msg.Role, "")
	}

	prompt := models.NoPrecedingPrompt
	prev, err := o.store.PrecedingUserMessage(ctx, in.SessionID, msg.ID)
	switch {
	case err == nil:
		prompt = prev.Content
	case !errors.Is(err, ErrNoRecord):
		return nil, models.Transport("get message", err)
	}

	cfg := o.sessionConfig(sess)
	settings, err := json.Marshal(cfg.Redacted())
	if err != nil {
		return nil, err
	}

	f := &models.Feedback{
		ID:                 uuid.NewString(),
		SessionID:          in.SessionID,
		MessageID:          in.MessageID,
		UserPrompt:         prompt,
		ModelResponse:      msg.Content,
		Rating:             in.Rating,
		FeedbackText:       strings.TrimSpace(in.Comment),
		ModelUsed:          cfg.ModelUsed(),
		ConnectionSettings: datatypes.JSON(settings),
	}
	if err := o.store.InsertFeedback(ctx, f); err != nil {
		return nil, models.Transport("insert feedback", err)
	}
	o.log.Info().Str("session_id", in.SessionID).Str("message_id", in.MessageID).Int("rating", in.Rating).Msg("feedback recorded")
	return f, nil
}

func (o *Orchestrator) ListFeedback(ctx context.Context, limit int) ([]models.Feedback, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out, err := o.store.ListFeedback(ctx, limit)
	if err != nil {
		return nil, models.Transport("list feedback", err)
	}
	return out, nil
}
