package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/kinfolk/internal/ai"
	"github.com/suPer8Hu/kinfolk/internal/common"
	"github.com/suPer8Hu/kinfolk/internal/metrics"
	"github.com/suPer8Hu/kinfolk/internal/models"
)

var (
	ErrEmptyInput   = models.Validation("message is empty", "", "Type something before sending.")
	ErrTurnInFlight = models.Conflict("a reply is already being generated for this session", "Wait for it to finish, then send again.")
)

const (
	toolFallback  = "Something went wrong after using the tool."
	emptyFallback = "I'm sorry, I couldn't generate a response."

	defaultModelTimeout = 90 * time.Second
)

// State is where a session's current turn stands.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingModel    State = "awaiting_model"
	StateDispatchingTools State = "dispatching_tools"
)

// Backend sends a conversation to a model; failures arrive as text replies.
type Backend interface {
	Send(ctx context.Context, cfg ai.Config, history []ai.Message) ai.Reply
}

type ToolExecutor interface {
	Execute(ctx context.Context, call ai.ToolCall) string
}

// Turn is what one user submission added to the conversation.
type Turn struct {
	Messages []Message `json:"messages"`
	Reply    *Message  `json:"reply"`
}

// Orchestrator drives chat turns: at most one tool round trip per turn, one
// turn per session at a time.
type Orchestrator struct {
	store          Store
	backend        Backend
	tools          ToolExecutor
	locker         Locker
	profiles       map[string]ai.Config
	defaultProfile string
	window         int
	log            zerolog.Logger

	mu     sync.Mutex
	states map[string]State
}

type Option func(*Orchestrator)

func WithLocker(l Locker) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.locker = l
		}
	}
}

// WithContextWindow caps how many stored messages are sent to the model.
func WithContextWindow(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 && n <= 100 {
			o.window = n
		}
	}
}

func WithDefaultProfile(name string) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.defaultProfile = name
		}
	}
}

func NewOrchestrator(store Store, backend Backend, tools ToolExecutor, profiles map[string]ai.Config, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:          store,
		backend:        backend,
		tools:          tools,
		locker:         NewMemoryLocker(),
		profiles:       profiles,
		defaultProfile: "default",
		window:         20,
		log:            log.With().Str("component", "chat").Logger(),
		states:         make(map[string]State),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Profile(name string) (ai.Config, bool) {
	if name == "" {
		name = o.defaultProfile
	}
	cfg, ok := o.profiles[name]
	return cfg, ok
}

func NewSessionID() (string, error) {
	return common.NewULID()
}

func (o *Orchestrator) CreateSession(ctx context.Context, profile string) (*Session, error) {
	if profile == "" {
		profile = o.defaultProfile
	}
	cfg, ok := o.profiles[profile]
	if !ok {
		return nil, models.Validation("unknown ai profile", profile, "List profiles with GET /ai/profiles.")
	}

	sid, err := NewSessionID()
	if err != nil {
		return nil, err
	}
	sess := &Session{
		SessionID: sid,
		Profile:   profile,
		Provider:  cfg.Provider,
		Model:     cfg.Model,
	}
	if err := o.store.CreateSession(ctx, sess); err != nil {
		return nil, models.Transport("create session", err)
	}
	return sess, nil
}

func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNoRecord) {
			return nil, models.NotFound("session", sessionID)
		}
		return nil, models.Transport("get session", err)
	}
	return sess, nil
}

func (o *Orchestrator) ListMessages(ctx context.Context, sessionID string, limit int, beforeID uint64) ([]Message, error) {
	if _, err := o.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return o.store.ListMessages(ctx, sessionID, limit, beforeID)
}

// State reports the progress of the session's current turn.
func (o *Orchestrator) State(sessionID string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.states[sessionID]; ok {
		return s
	}
	return StateIdle
}

func (o *Orchestrator) setState(sessionID string, s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s == StateIdle {
		delete(o.states, sessionID)
		return
	}
	o.states[sessionID] = s
}

// sessionConfig returns the profile the session was created with. A profile
// removed since then falls back to the session's recorded provider and model.
func (o *Orchestrator) sessionConfig(sess *Session) ai.Config {
	if cfg, ok := o.profiles[sess.Profile]; ok {
		return cfg
	}
	return ai.Config{Provider: sess.Provider, Model: sess.Model, SystemPrompt: ai.DefaultSystemPrompt}
}

func (o *Orchestrator) lock(ctx context.Context, sessionID string) (func(), error) {
	unlock, ok, err := o.locker.TryLock(ctx, sessionID)
	if err != nil {
		return nil, models.Transport("lock session", err)
	}
	if !ok {
		return nil, ErrTurnInFlight
	}
	return unlock, nil
}

// Submit runs one full turn for text.
func (o *Orchestrator) Submit(ctx context.Context, sessionID, text string) (*Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	sess, err := o.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	unlock, err := o.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	open, err := o.openTurn(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrTurnInFlight
	}

	turn := &Turn{}
	user, err := o.append(ctx, sessionID, ai.Message{Role: ai.RoleUser, Content: text})
	if err != nil {
		return nil, err
	}
	turn.Messages = append(turn.Messages, *user)
	done, err := o.complete(ctx, sess, turn)
	if err != nil {
		if _, cerr := o.close(context.WithoutCancel(ctx), sessionID); cerr != nil {
			o.log.Warn().Err(cerr).Str("session_id", sessionID).Msg("close failed turn")
		}
		return nil, err
	}
	return done, nil
}

// Enqueue stores a user message without answering it; Resume answers later.
// The session accepts no other turn until then. A repeated key returns the
// message stored the first time.
func (o *Orchestrator) Enqueue(ctx context.Context, sessionID, text, idempotencyKey string) (*Message, bool, error) {
	if strings.TrimSpace(text) == "" {
		return nil, false, ErrEmptyInput
	}
	if _, err := o.GetSession(ctx, sessionID); err != nil {
		return nil, false, err
	}
	unlock, err := o.lock(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	open, err := o.openTurn(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if open != nil {
		if idempotencyKey != "" && open.IdempotencyKey != nil && *open.IdempotencyKey == idempotencyKey {
			return open, false, nil
		}
		return nil, false, ErrTurnInFlight
	}

	var key *string
	if idempotencyKey != "" {
		key = &idempotencyKey
	}
	m, err := newMessage(sessionID, ai.Message{ID: common.MustULID(), Role: ai.RoleUser, Content: text})
	if err != nil {
		return nil, false, err
	}
	m.IdempotencyKey = key
	stored, created, err := o.store.AppendMessage(ctx, m)
	if err != nil {
		return nil, false, models.Transport("store message", err)
	}
	return stored, created, nil
}

// Resume answers the session's latest message if it is an unanswered user
// message. Otherwise the last reply is returned unchanged.
func (o *Orchestrator) Resume(ctx context.Context, sessionID string) (*Turn, error) {
	sess, err := o.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	unlock, err := o.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	last, err := o.store.RecentMessages(ctx, sessionID, 1)
	if err != nil {
		return nil, models.Transport("load history", err)
	}
	if len(last) == 0 {
		return nil, models.Validation("session has no messages", sessionID, "")
	}
	switch {
	case !isOpen(last[0]):
		reply := last[0]
		return &Turn{Reply: &reply}, nil
	case last[0].Role != ai.RoleUser:
		// interrupted inside a tool exchange; a second round trip is not allowed
		return o.close(ctx, sessionID)
	}
	return o.complete(ctx, sess, &Turn{})
}

// Abandon ends a pending turn that will not be completed, so the session
// accepts new messages again. It is a no-op when nothing is pending.
func (o *Orchestrator) Abandon(ctx context.Context, sessionID string) (*Turn, error) {
	if _, err := o.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	unlock, err := o.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return o.close(ctx, sessionID)
}

// close appends a fallback reply when the latest turn has none.
func (o *Orchestrator) close(ctx context.Context, sessionID string) (*Turn, error) {
	open, err := o.openTurn(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return &Turn{}, nil
	}
	content := emptyFallback
	if open.Role != ai.RoleUser {
		content = toolFallback
	}
	turn := &Turn{}
	if err := o.finish(ctx, sessionID, turn, content); err != nil {
		return nil, err
	}
	metrics.ChatTurns.WithLabelValues("abandoned").Inc()
	return turn, nil
}

// isOpen reports whether m leaves its turn waiting for a model reply.
func isOpen(m Message) bool {
	switch m.Role {
	case ai.RoleUser, ai.RoleTool:
		return true
	case ai.RoleModel:
		return len(m.ToolCalls) > 0
	}
	return false
}

// openTurn returns the latest message when the session has a turn still
// waiting for its reply, and nil otherwise.
func (o *Orchestrator) openTurn(ctx context.Context, sessionID string) (*Message, error) {
	last, err := o.store.RecentMessages(ctx, sessionID, 1)
	if err != nil {
		return nil, models.Transport("load history", err)
	}
	if len(last) == 0 || !isOpen(last[0]) {
		return nil, nil
	}
	return &last[0], nil
}

func (o *Orchestrator) complete(ctx context.Context, sess *Session, turn *Turn) (*Turn, error) {
	defer o.setState(sess.SessionID, StateIdle)
	cfg := o.sessionConfig(sess)
	start := time.Now()

	reply, err := o.send(ctx, sess.SessionID, cfg)
	if err != nil {
		return nil, err
	}

	outcome := "text"
	switch {
	case reply.Type == ai.ReplyText:
		err = o.finish(ctx, sess.SessionID, turn, reply.Content)

	case len(reply.Calls) == 0:
		outcome = "empty_tool_call"
		err = o.finish(ctx, sess.SessionID, turn, emptyFallback)

	default:
		outcome = "tool"
		if err = o.dispatch(ctx, sess.SessionID, turn, reply.Calls); err != nil {
			break
		}
		reply, err = o.send(ctx, sess.SessionID, cfg)
		if err != nil {
			break
		}
		if reply.Type != ai.ReplyText {
			outcome = "protocol_violation"
			o.log.Warn().Str("session_id", sess.SessionID).Int("calls", len(reply.Calls)).
				Msg("model asked for tools again after a tool round trip")
			err = o.finish(ctx, sess.SessionID, turn, toolFallback)
			break
		}
		err = o.finish(ctx, sess.SessionID, turn, reply.Content)
	}
	if err != nil {
		metrics.ChatTurns.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.ChatTurns.WithLabelValues(outcome).Inc()
	o.log.Info().
		Str("session_id", sess.SessionID).
		Str("outcome", outcome).
		Int("appended", len(turn.Messages)).
		Dur("cost", time.Since(start)).
		Msg("chat turn finished")
	return turn, nil
}

func (o *Orchestrator) send(ctx context.Context, sessionID string, cfg ai.Config) (ai.Reply, error) {
	o.setState(sessionID, StateAwaitingModel)
	history, err := o.history(ctx, sessionID)
	if err != nil {
		return ai.Reply{}, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultModelTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return o.backend.Send(cctx, cfg, history), nil
}

// history loads the context window. It never starts inside a tool exchange,
// so the first message sent is always a user message. The window grows past
// its size until it reaches the user message that opened the current turn.
func (o *Orchestrator) history(ctx context.Context, sessionID string) ([]ai.Message, error) {
	var stored []Message
	for n := o.window; ; n *= 2 {
		var err error
		stored, err = o.store.RecentMessages(ctx, sessionID, n)
		if err != nil {
			return nil, models.Transport("load history", err)
		}
		if len(stored) < n || hasUserMessage(stored) {
			break
		}
	}
	start := 0
	for start < len(stored) && stored[start].Role != ai.RoleUser {
		start++
	}
	out := make([]ai.Message, 0, len(stored)-start)
	for _, m := range stored[start:] {
		out = append(out, m.toAI())
	}
	return out, nil
}

func hasUserMessage(msgs []Message) bool {
	for _, m := range msgs {
		if m.Role == ai.RoleUser {
			return true
		}
	}
	return false
}

func (o *Orchestrator) dispatch(ctx context.Context, sessionID string, turn *Turn, calls []ai.ToolCall) error {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = calls[i].Name + "-" + common.MustULID()
		}
		if calls[i].Args == nil {
			calls[i].Args = map[string]any{}
		}
	}
	request, err := o.append(ctx, sessionID, ai.Message{Role: ai.RoleModel, ToolCalls: calls})
	if err != nil {
		return err
	}
	turn.Messages = append(turn.Messages, *request)

	o.setState(sessionID, StateDispatchingTools)
	// Sequential: a later call may depend on an earlier one's writes.
	for _, call := range calls {
		result := o.tools.Execute(ctx, call)
		m, err := o.append(ctx, sessionID, ai.Message{
			Role:       ai.RoleTool,
			Content:    result,
			ToolCallID: call.ID,
			ToolName:   call.Name,
		})
		if err != nil {
			return err
		}
		turn.Messages = append(turn.Messages, *m)
	}
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, sessionID string, turn *Turn, content string) error {
	m, err := o.append(ctx, sessionID, ai.Message{Role: ai.RoleModel, Content: content})
	if err != nil {
		return err
	}
	turn.Messages = append(turn.Messages, *m)
	turn.Reply = m
	return nil
}

func (o *Orchestrator) append(ctx context.Context, sessionID string, am ai.Message) (*Message, error) {
	if am.ID == "" {
		am.ID = common.MustULID()
	}
	m, err := newMessage(sessionID, am)
	if err != nil {
		return nil, err
	}
	stored, _, err := o.store.AppendMessage(ctx, m)
	if err != nil {
		return nil, models.Transport("store message", err)
	}
	return stored, nil
}
