package ai

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/kinfolk/internal/metrics"
)

// Backend sends conversations to whichever provider a profile names. It never
// returns an error: failures come back as text replies.
type Backend struct {
	registry   *Registry
	tools      []mcp.Tool
	log        zerolog.Logger
	maxRetries uint64
	retryBase  time.Duration
}

type BackendOption func(*Backend)

// WithRetries sets how many times a recoverable failure is retried.
func WithRetries(n uint64, base time.Duration) BackendOption {
	return func(b *Backend) {
		b.maxRetries = n
		if base > 0 {
			b.retryBase = base
		}
	}
}

func NewBackend(registry *Registry, tools []mcp.Tool, log zerolog.Logger, opts ...BackendOption) *Backend {
	b := &Backend{
		registry:   registry,
		tools:      tools,
		log:        log.With().Str("component", "ai_backend").Logger(),
		maxRetries: 1,
		retryBase:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Send(ctx context.Context, cfg Config, history []Message) Reply {
	start := time.Now()
	provider, err := b.registry.Get(ctx, cfg)
	if err != nil {
		return b.failed(cfg, err, start)
	}

	var reply Reply
	attempt := 0
	op := func() error {
		attempt++
		r, err := provider.Chat(ctx, history, b.tools)
		if err != nil {
			if !Recoverable(err) {
				return backoff.Permanent(err)
			}
			b.log.Warn().Err(err).Str("provider", cfg.Provider).Int("attempt", attempt).Msg("model request failed, retrying")
			return err
		}
		reply = r
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.retryBase
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, b.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return b.failed(cfg, err, start)
	}

	metrics.ModelRequests.WithLabelValues(cfg.Provider, string(reply.Type)).Inc()
	metrics.ModelLatency.WithLabelValues(cfg.Provider).Observe(time.Since(start).Seconds())
	b.log.Debug().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Str("reply", string(reply.Type)).
		Int("calls", len(reply.Calls)).
		Dur("cost", time.Since(start)).
		Msg("model replied")
	return reply
}

func (b *Backend) failed(cfg Config, err error, start time.Time) Reply {
	metrics.ModelRequests.WithLabelValues(cfg.Provider, "error").Inc()
	b.log.Error().Err(err).Str("provider", cfg.Provider).Dur("cost", time.Since(start)).Msg("model request failed")
	return TextReply(Diagnose(cfg, err))
}

// Models lists the models a profile's server offers.
func (b *Backend) Models(ctx context.Context, cfg Config) ([]string, error) {
	provider, err := b.registry.Get(ctx, cfg)
	if err != nil {
		return nil, err
	}
	lister, ok := provider.(ModelLister)
	if !ok {
		return nil, &ConfigError{Provider: cfg.Provider, Message: "model listing is not supported by " + displayName(cfg.Provider)}
	}
	return lister.ListModels(ctx)
}

// TestConnection checks that the profile's server answers, returning a
// readable status line.
func (b *Backend) TestConnection(ctx context.Context, cfg Config) (bool, string) {
	models, err := b.Models(ctx, cfg)
	if err != nil {
		return false, Diagnose(cfg, err)
	}
	if len(models) == 0 {
		return true, "Connected to " + displayName(cfg.Provider) + ", but no models are installed."
	}
	return true, "Connected to " + displayName(cfg.Provider) + "."
}
