package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "openrouter/auto"
)

// OpenRouterProvider speaks the OpenAI chat-completions dialect.
type OpenRouterProvider struct {
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	SiteURL      string
	AppName      string
	Client       *http.Client
	log          zerolog.Logger
}

type openRouterMsg struct {
	Role       string               `json:"role"`
	Content    string               `json:"content"`
	ToolCalls  []openRouterToolCall `json:"tool_calls,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
}

type openRouterToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openRouterChatReq struct {
	Model    string          `json:"model"`
	Messages []openRouterMsg `json:"messages"`
	Tools    []openAITool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message openRouterMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenRouterProvider(cfg Config, log zerolog.Logger) *OpenRouterProvider {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenRouterModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OpenRouterProvider{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       cfg.APIKey,
		Model:        model,
		SystemPrompt: cfg.SystemPrompt,
		AppName:      "kinfolk",
		Client:       &http.Client{Timeout: timeout},
		log:          log.With().Str("provider", ProviderOpenRouter).Logger(),
	}
}

func (p *OpenRouterProvider) messages(history []Message) []openRouterMsg {
	out := make([]openRouterMsg, 0, len(history)+1)
	if p.SystemPrompt != "" {
		out = append(out, openRouterMsg{Role: "system", Content: p.SystemPrompt})
	}
	for _, m := range history {
		switch m.Role {
		case RoleModel:
			msg := openRouterMsg{Role: "assistant", Content: m.Content}
			for _, c := range m.ToolCalls {
				args, err := json.Marshal(c.Args)
				if err != nil || c.Args == nil {
					args = []byte("{}")
				}
				tc := openRouterToolCall{ID: c.ID, Type: "function"}
				tc.Function.Name = c.Name
				tc.Function.Arguments = string(args)
				msg.ToolCalls = append(msg.ToolCalls, tc)
			}
			out = append(out, msg)
		case RoleTool:
			out = append(out, openRouterMsg{Role: "tool", Content: m.Content, ToolCallID: m.ToolCallID})
		default:
			out = append(out, openRouterMsg{Role: "user", Content: m.Content})
		}
	}
	return out
}

func (p *OpenRouterProvider) Chat(ctx context.Context, history []Message, tools []mcp.Tool) (Reply, error) {
	if p.Client == nil {
		return Reply{}, errors.New("openrouter: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return Reply{}, &ConfigError{Provider: ProviderOpenRouter, Message: "OpenRouter API Key is not configured. Please add it in Settings."}
	}

	b, err := json.Marshal(openRouterChatReq{
		Model:    p.Model,
		Messages: p.messages(history),
		Tools:    openAITools(tools),
		Stream:   false,
	})
	if err != nil {
		return Reply{}, err
	}

	url := fmt.Sprintf("%s/chat/completions", p.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		req.Header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		req.Header.Set("X-Title", p.AppName)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return Reply{}, &HTTPError{Provider: ProviderOpenRouter, URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var decoded openRouterChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Reply{}, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return Reply{}, errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return Reply{}, errors.New("openrouter: empty response")
	}

	msg := decoded.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		calls := make([]ToolCall, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			raw, _ := json.Marshal(tc.Function.Arguments)
			calls = append(calls, ToolCall{
				ID:   toolCallID(tc.ID, tc.Function.Name),
				Name: tc.Function.Name,
				Args: parseArguments(p.log, tc.Function.Name, raw),
			})
		}
		return ToolCallReply(calls), nil
	}
	if strings.TrimSpace(msg.Content) == "" {
		return TextReply("Received an empty response from OpenRouter."), nil
	}
	return TextReply(msg.Content), nil
}
