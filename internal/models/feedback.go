package models

import (
	"time"

	"gorm.io/datatypes"
)

const NoPrecedingPrompt = "No preceding user prompt found."

// Feedback is a user's rating of one model reply.
type Feedback struct {
	ID                 string         `gorm:"primaryKey;size:36" json:"id"`
	SessionID          string         `gorm:"size:26;index" json:"session_id"`
	MessageID          string         `gorm:"size:32" json:"message_id"`
	UserPrompt         string         `gorm:"type:text;not null" json:"user_prompt"`
	ModelResponse      string         `gorm:"type:text;not null" json:"model_response"`
	Rating             int            `gorm:"not null" json:"rating"`
	FeedbackText       string         `gorm:"type:text" json:"feedback_text,omitempty"`
	ModelUsed          string         `gorm:"size:128" json:"model_used"`
	ConnectionSettings datatypes.JSON `json:"connection_settings"`
	CreatedAt          time.Time      `json:"created_at"`
}

func (Feedback) TableName() string { return "ai_feedback" }
