package ai

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is one entry of a conversation. Model messages that request tools
// carry ToolCalls and empty Content; tool messages answer one call each.
type Message struct {
	ID         string     `json:"id"`
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

type ReplyType string

const (
	ReplyText     ReplyType = "text"
	ReplyToolCall ReplyType = "tool_call"
)

type Reply struct {
	Type    ReplyType
	Content string
	Calls   []ToolCall
}

func TextReply(content string) Reply {
	return Reply{Type: ReplyText, Content: content}
}

func ToolCallReply(calls []ToolCall) Reply {
	return Reply{Type: ReplyToolCall, Calls: calls}
}

// Provider translates a conversation to one model endpoint and back. It never
// touches application state.
type Provider interface {
	Chat(ctx context.Context, history []Message, tools []mcp.Tool) (Reply, error)
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Config is one named assistant profile.
type Config struct {
	Provider     string        `yaml:"provider" json:"provider"`
	APIKey       string        `yaml:"api_key" json:"-"`
	BaseURL      string        `yaml:"base_url" json:"base_url,omitempty"`
	Model        string        `yaml:"model" json:"model"`
	SystemPrompt string        `yaml:"system_prompt" json:"system_prompt,omitempty"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout,omitempty"`
}

const DefaultSystemPrompt = "You are a helpful genealogy assistant. You can query the database for people and marriages. " +
	"You can also add or update people."

// Redacted returns the profile as a map safe to persist or display.
func (c Config) Redacted() map[string]any {
	out := map[string]any{
		"provider": c.Provider,
		"model":    c.Model,
	}
	if c.BaseURL != "" {
		out["base_url"] = c.BaseURL
	}
	if c.SystemPrompt != "" {
		out["system_prompt"] = c.SystemPrompt
	}
	if c.APIKey != "" {
		out["api_key"] = "***"
	}
	return out
}

// ModelUsed labels replies produced with this profile.
func (c Config) ModelUsed() string {
	return c.Provider + ": " + c.Model
}
