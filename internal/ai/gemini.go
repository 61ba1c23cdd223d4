package ai

import (
	"context"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

type GeminiProvider struct {
	client       *genai.Client
	Model        string
	SystemPrompt string
}

func NewGeminiProvider(ctx context.Context, cfg Config) (*GeminiProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigError{Provider: ProviderGemini, Message: "Gemini API Key is not configured. Please add it in Settings."}
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cc.HTTPClient = &http.Client{Timeout: timeout}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{client: client, Model: model, SystemPrompt: cfg.SystemPrompt}, nil
}

// geminiContents maps history to Gemini contents. Consecutive tool results are
// coalesced into one content, as Gemini expects one reply per call batch.
func geminiContents(history []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	var pending *genai.Content
	flush := func() {
		if pending != nil {
			out = append(out, pending)
			pending = nil
		}
	}

	for _, m := range history {
		switch m.Role {
		case RoleTool:
			if pending == nil {
				pending = &genai.Content{Role: string(genai.RoleUser)}
			}
			pending.Parts = append(pending.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolCallID,
					Name:     m.ToolName,
					Response: map[string]any{"result": m.Content},
				},
			})
		case RoleModel:
			flush()
			c := &genai.Content{Role: string(genai.RoleModel)}
			if m.Content != "" {
				c.Parts = append(c.Parts, &genai.Part{Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				c.Parts = append(c.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: call.ID, Name: call.Name, Args: call.Args},
				})
			}
			if len(c.Parts) > 0 {
				out = append(out, c)
			}
		default:
			flush()
			out = append(out, &genai.Content{
				Role:  string(genai.RoleUser),
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	flush()
	return out
}

func (p *GeminiProvider) Chat(ctx context.Context, history []Message, tools []mcp.Tool) (Reply, error) {
	config := &genai.GenerateContentConfig{}
	if decls := geminiDeclarations(tools); len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	if p.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: p.SystemPrompt}}}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.Model, geminiContents(history), config)
	if err != nil {
		return Reply{}, err
	}

	if fcs := resp.FunctionCalls(); len(fcs) > 0 {
		calls := make([]ToolCall, 0, len(fcs))
		for _, fc := range fcs {
			args := fc.Args
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, ToolCall{ID: toolCallID(fc.ID, fc.Name), Name: fc.Name, Args: args})
		}
		return ToolCallReply(calls), nil
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return TextReply("I'm sorry, I couldn't generate a response."), nil
	}
	return TextReply(text), nil
}
