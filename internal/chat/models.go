package chat

import (
	"encoding/json"
	"time"

	"github.com/suPer8Hu/kinfolk/internal/ai"
	"gorm.io/datatypes"
)

type Session struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	Profile   string    `gorm:"type:varchar(64);not null" json:"profile"`
	Provider  string    `gorm:"type:varchar(32);not null" json:"provider"`
	Model     string    `gorm:"type:varchar(128)" json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

// Message is one stored conversation entry. ID orders the log; MessageID is
// the public id.
type Message struct {
	ID             uint64         `gorm:"primaryKey;autoIncrement" json:"seq"`
	MessageID      string         `gorm:"type:varchar(26);uniqueIndex;not null" json:"id"`
	SessionID      string         `gorm:"type:varchar(26);not null;index:idx_chat_msg_session;index:uniq_chat_msg_idempo,unique,priority:1" json:"session_id"`
	Role           string         `gorm:"type:varchar(16);not null" json:"role"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	ToolCalls      datatypes.JSON `json:"tool_calls,omitempty"`
	ToolCallID     string         `gorm:"type:varchar(128)" json:"tool_call_id,omitempty"`
	ToolName       string         `gorm:"type:varchar(64)" json:"tool_name,omitempty"`
	IdempotencyKey *string        `gorm:"type:varchar(128);index:uniq_chat_msg_idempo,unique,priority:2" json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

func (m Message) Calls() []ai.ToolCall {
	if len(m.ToolCalls) == 0 {
		return nil
	}
	var calls []ai.ToolCall
	if err := json.Unmarshal(m.ToolCalls, &calls); err != nil {
		return nil
	}
	return calls
}

func (m Message) toAI() ai.Message {
	return ai.Message{
		ID:         m.MessageID,
		Role:       m.Role,
		Content:    m.Content,
		ToolCalls:  m.Calls(),
		ToolCallID: m.ToolCallID,
		ToolName:   m.ToolName,
	}
}

func newMessage(sessionID string, am ai.Message) (*Message, error) {
	m := &Message{
		MessageID:  am.ID,
		SessionID:  sessionID,
		Role:       am.Role,
		Content:    am.Content,
		ToolCallID: am.ToolCallID,
		ToolName:   am.ToolName,
	}
	if len(am.ToolCalls) > 0 {
		raw, err := json.Marshal(am.ToolCalls)
		if err != nil {
			return nil, err
		}
		m.ToolCalls = datatypes.JSON(raw)
	}
	return m, nil
}
