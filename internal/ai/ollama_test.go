package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("get_people", mcp.WithDescription("List people.")),
		mcp.NewTool("add_person",
			mcp.WithDescription("Add a person."),
			mcp.WithString("first_name", mcp.Required(), mcp.Description("Given name.")),
			mcp.WithString("gender", mcp.Enum("Male", "Female", "Other", "Unknown")),
		),
	}
}

func TestOllamaChat_SendsToolsAndHistory(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Hello there"}}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(Config{BaseURL: srv.URL + "/", APIKey: "secret", Model: "m", SystemPrompt: "be kind"}, zerolog.Nop())
	history := []Message{
		{Role: RoleUser, Content: "add Ann"},
		{Role: RoleModel, ToolCalls: []ToolCall{{ID: "c1", Name: "add_person", Args: map[string]any{"first_name": "Ann"}}}},
		{Role: RoleTool, Content: "done", ToolCallID: "c1", ToolName: "add_person"},
	}
	reply, err := p.Chat(context.Background(), history, testTools())
	require.NoError(t, err)
	assert.Equal(t, TextReply("Hello there"), reply)

	assert.Equal(t, false, got["stream"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assistant := msgs[2].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	call := assistant["tool_calls"].([]any)[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, map[string]any{"first_name": "Ann"}, call["arguments"])
	assert.Equal(t, "c1", msgs[3].(map[string]any)["tool_call_id"])

	tools := got["tools"].([]any)
	require.Len(t, tools, 2)
	fn := tools[1].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "add_person", fn["name"])
	params := fn["parameters"].(map[string]any)
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []any{"first_name"}, params["required"])
}

func TestOllamaChat_ParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"","tool_calls":[
			{"function":{"name":"add_person","arguments":{"first_name":"Ann"}}},
			{"id":"x2","function":{"name":"add_person","arguments":"{\"first_name\":\"Bo\"}"}},
			{"id":"x3","function":{"name":"get_people","arguments":"{not json"}}
		]}}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(Config{BaseURL: srv.URL}, zerolog.Nop())
	reply, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	require.Equal(t, ReplyToolCall, reply.Type)
	require.Len(t, reply.Calls, 3)

	assert.Equal(t, "Ann", reply.Calls[0].Args["first_name"])
	assert.Contains(t, reply.Calls[0].ID, "add_person-")
	assert.Equal(t, "x2", reply.Calls[1].ID)
	assert.Equal(t, "Bo", reply.Calls[1].Args["first_name"])
	assert.Empty(t, reply.Calls[2].Args)
	assert.NotNil(t, reply.Calls[2].Args)
}

func TestOllamaChat_EmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  "}}`))
	}))
	defer srv.Close()

	reply, err := NewOllamaProvider(Config{BaseURL: srv.URL}, zerolog.Nop()).Chat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Received an empty response from Ollama.", reply.Content)
}

func TestOllamaChat_StatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := Config{Provider: ProviderOllama, BaseURL: srv.URL}
	_, err := NewOllamaProvider(cfg, zerolog.Nop()).Chat(context.Background(), nil, nil)
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.StatusCode)
	assert.Equal(t, srv.URL+"/api/chat", he.URL)

	msg := Diagnose(cfg, err)
	assert.Contains(t, msg, "404")
	assert.Contains(t, msg, "base URL")
}

func TestOllamaListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.1:latest"},{"name":"qwen2.5:7b"}]}`))
	}))
	defer srv.Close()

	names, err := NewOllamaProvider(Config{BaseURL: srv.URL}, zerolog.Nop()).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:latest", "qwen2.5:7b"}, names)
}

func TestParseArguments(t *testing.T) {
	log := zerolog.Nop()
	assert.Equal(t, map[string]any{"a": "b"}, parseArguments(log, "t", json.RawMessage(`{"a":"b"}`)))
	assert.Equal(t, map[string]any{"a": "b"}, parseArguments(log, "t", json.RawMessage(`"{\"a\":\"b\"}"`)))
	assert.Equal(t, map[string]any{}, parseArguments(log, "t", json.RawMessage(`"oops"`)))
	assert.Equal(t, map[string]any{}, parseArguments(log, "t", json.RawMessage(`null`)))
	assert.Equal(t, map[string]any{}, parseArguments(log, "t", nil))
	assert.Equal(t, map[string]any{}, parseArguments(log, "t", json.RawMessage(`[1,2]`)))
}
