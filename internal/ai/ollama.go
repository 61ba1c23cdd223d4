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
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/kinfolk/internal/common"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3.1:latest"
	defaultTimeout       = 90 * time.Second
)

type OllamaProvider struct {
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	Client       *http.Client
	log          zerolog.Logger
}

func NewOllamaProvider(cfg Config, log zerolog.Logger) *OllamaProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOllamaModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OllamaProvider{
		BaseURL:      baseURL,
		APIKey:       cfg.APIKey,
		Model:        model,
		SystemPrompt: cfg.SystemPrompt,
		Client:       &http.Client{Timeout: timeout},
		log:          log.With().Str("provider", ProviderOllama).Logger(),
	}
}

type ollamaChatReq struct {
	Model    string       `json:"model"`
	Messages []ollamaMsg  `json:"messages"`
	Tools    []openAITool `json:"tools,omitempty"`
	Stream   bool         `json:"stream"`
}

type ollamaMsg struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolName   string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Error   string    `json:"error,omitempty"`
}

func (p *OllamaProvider) messages(history []Message) []ollamaMsg {
	out := make([]ollamaMsg, 0, len(history)+1)
	if p.SystemPrompt != "" {
		out = append(out, ollamaMsg{Role: "system", Content: p.SystemPrompt})
	}
	for _, m := range history {
		switch m.Role {
		case RoleModel:
			msg := ollamaMsg{Role: "assistant", Content: m.Content}
			for _, c := range m.ToolCalls {
				args, err := json.Marshal(c.Args)
				if err != nil || c.Args == nil {
					args = []byte("{}")
				}
				tc := ollamaToolCall{ID: c.ID, Type: "function"}
				tc.Function.Name = c.Name
				tc.Function.Arguments = args
				msg.ToolCalls = append(msg.ToolCalls, tc)
			}
			out = append(out, msg)
		case RoleTool:
			out = append(out, ollamaMsg{Role: "tool", Content: m.Content, ToolCallID: m.ToolCallID, ToolName: m.ToolName})
		default:
			out = append(out, ollamaMsg{Role: "user", Content: m.Content})
		}
	}
	return out
}

func (p *OllamaProvider) do(req *http.Request) (*http.Response, error) {
	if p.Client == nil {
		return nil, errors.New("ollama: http client is nil")
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, &HTTPError{Provider: ProviderOllama, URL: req.URL.String(), StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

func (p *OllamaProvider) Chat(ctx context.Context, history []Message, tools []mcp.Tool) (Reply, error) {
	reqBody := ollamaChatReq{
		Model:    p.Model,
		Messages: p.messages(history),
		Tools:    openAITools(tools),
		Stream:   false,
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return Reply{}, err
	}

	url := fmt.Sprintf("%s/api/chat", p.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.do(req)
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Reply{}, err
	}
	if decoded.Error != "" {
		return Reply{}, errors.New(decoded.Error)
	}

	if len(decoded.Message.ToolCalls) > 0 {
		calls := make([]ToolCall, 0, len(decoded.Message.ToolCalls))
		for _, tc := range decoded.Message.ToolCalls {
			calls = append(calls, ToolCall{
				ID:   toolCallID(tc.ID, tc.Function.Name),
				Name: tc.Function.Name,
				Args: parseArguments(p.log, tc.Function.Name, tc.Function.Arguments),
			})
		}
		return ToolCallReply(calls), nil
	}

	if strings.TrimSpace(decoded.Message.Content) == "" {
		return TextReply("Received an empty response from Ollama."), nil
	}
	return TextReply(decoded.Message.Content), nil
}

type ollamaTagsResp struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the models installed on the Ollama server.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded ollamaTagsResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(decoded.Models))
	for _, m := range decoded.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// parseArguments accepts an object or a JSON-encoded string. Anything else is
// logged and treated as no arguments.
func parseArguments(log zerolog.Logger, tool string, raw json.RawMessage) map[string]any {
	args := map[string]any{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return args
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			log.Warn().Err(err).Str("tool", tool).Msg("undecodable tool arguments")
			return args
		}
		if strings.TrimSpace(s) == "" {
			return args
		}
		trimmed = []byte(s)
	}
	if err := json.Unmarshal(trimmed, &args); err != nil {
		log.Warn().Err(err).Str("tool", tool).Str("raw", string(raw)).Msg("malformed tool arguments")
		return map[string]any{}
	}
	return args
}

func toolCallID(id, name string) string {
	if id != "" {
		return id
	}
	return name + "-" + common.MustULID()
}
