package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	errs  []error
	reply Reply
	calls int
}

func (p *scriptedProvider) Chat(ctx context.Context, history []Message, tools []mcp.Tool) (Reply, error) {
	_ = ctx
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return Reply{}, err
	}
	return p.reply, nil
}

func backendWith(p Provider, retries uint64) *Backend {
	reg := NewRegistry()
	reg.Register("fake", func(ctx context.Context, cfg Config) (Provider, error) {
		return p, nil
	})
	return NewBackend(reg, nil, zerolog.Nop(), WithRetries(retries, time.Millisecond))
}

func TestBackendSend_RetriesRecoverableErrors(t *testing.T) {
	p := &scriptedProvider{
		errs:  []error{&HTTPError{Provider: "fake", StatusCode: http.StatusServiceUnavailable}},
		reply: TextReply("fine"),
	}
	reply := backendWith(p, 2).Send(context.Background(), Config{Provider: "fake"}, nil)
	assert.Equal(t, TextReply("fine"), reply)
	assert.Equal(t, 2, p.calls)
}

func TestBackendSend_PermanentErrorBecomesText(t *testing.T) {
	p := &scriptedProvider{errs: []error{&HTTPError{Provider: "fake", StatusCode: http.StatusUnauthorized}}}
	reply := backendWith(p, 3).Send(context.Background(), Config{Provider: "fake"}, nil)
	assert.Equal(t, ReplyText, reply.Type)
	assert.Contains(t, reply.Content, "401")
	assert.Equal(t, 1, p.calls)
}

func TestBackendSend_UnknownProvider(t *testing.T) {
	reply := backendWith(&scriptedProvider{}, 0).Send(context.Background(), Config{Provider: "nope"}, nil)
	assert.Equal(t, "unknown ai provider: nope", reply.Content)
}

func TestBackendSend_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	reg := DefaultRegistry(zerolog.Nop())
	b := NewBackend(reg, nil, zerolog.Nop(), WithRetries(0, time.Millisecond))
	reply := b.Send(context.Background(), Config{Provider: ProviderOllama, BaseURL: base}, []Message{{Role: RoleUser, Content: "hi"}})
	assert.Equal(t, ReplyText, reply.Type)
	assert.Contains(t, reply.Content, "refused")
}

func TestGeminiWithoutKeyIsConfigError(t *testing.T) {
	reg := DefaultRegistry(zerolog.Nop())
	b := NewBackend(reg, nil, zerolog.Nop())
	reply := b.Send(context.Background(), Config{Provider: ProviderGemini}, nil)
	assert.Equal(t, "Gemini API Key is not configured. Please add it in Settings.", reply.Content)
}

func TestDiagnose(t *testing.T) {
	ollama := Config{Provider: ProviderOllama, BaseURL: "http://localhost:11434"}

	msg := Diagnose(ollama, &HTTPError{Provider: ProviderOllama, StatusCode: http.StatusForbidden})
	assert.Contains(t, msg, "OLLAMA_ORIGINS")

	msg = Diagnose(ollama, &HTTPError{Provider: ProviderOllama, StatusCode: http.StatusInternalServerError, Body: "boom"})
	assert.Contains(t, msg, "Status: 500")
	assert.Contains(t, msg, "boom")

	msg = Diagnose(ollama, fmt.Errorf("wrap: %w", context.DeadlineExceeded))
	assert.Contains(t, msg, "timed out")

	refused := &url.Error{Op: "Post", URL: "http://localhost:11434/api/chat", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}
	msg = Diagnose(ollama, refused)
	assert.Contains(t, msg, "refused")
	assert.Contains(t, msg, "http://localhost:11434")

	msg = Diagnose(ollama, errors.New("weird"))
	assert.Contains(t, msg, "weird")
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(&HTTPError{StatusCode: http.StatusBadGateway}))
	assert.True(t, Recoverable(&HTTPError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, Recoverable(&HTTPError{StatusCode: http.StatusNotFound}))
	assert.False(t, Recoverable(&ConfigError{Message: "x"}))
	assert.False(t, Recoverable(context.Canceled))
	assert.False(t, Recoverable(nil))
}

func TestConfigRedacted(t *testing.T) {
	cfg := Config{Provider: ProviderGemini, APIKey: "secret", Model: "gemini-2.5-flash"}
	red := cfg.Redacted()
	require.Equal(t, "***", red["api_key"])
	assert.Equal(t, "gemini: gemini-2.5-flash", cfg.ModelUsed())
}
