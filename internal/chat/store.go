package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/suPer8Hu/kinfolk/internal/models"
)

// ErrNoRecord is returned by stores when a lookup finds nothing.
var ErrNoRecord = errors.New("chat: record not found")

// Store persists sessions, their append-only message logs and reply feedback.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// AppendMessage assigns m.ID. With a non-nil IdempotencyKey already used
	// in the session it returns the earlier message and false.
	AppendMessage(ctx context.Context, m *Message) (*Message, bool, error)
	// ListMessages pages newest first, starting below beforeID when it is set.
	ListMessages(ctx context.Context, sessionID string, limit int, beforeID uint64) ([]Message, error)
	// RecentMessages returns the last limit messages oldest first.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)
	GetMessage(ctx context.Context, sessionID, messageID string) (*Message, error)
	PrecedingUserMessage(ctx context.Context, sessionID string, beforeID uint64) (*Message, error)

	InsertFeedback(ctx context.Context, f *models.Feedback) error
	ListFeedback(ctx context.Context, limit int) ([]models.Feedback, error)
}

// MemoryStore keeps conversations for the life of the process.
type MemoryStore struct {
	mu       sync.Mutex
	seq      uint64
	sessions map[string]*Session
	messages map[string][]Message
	feedback []models.Feedback
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		messages: make(map[string][]Message),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	sess.ID = s.seq
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
		sess.UpdatedAt = sess.CreatedAt
	}
	cp := *sess
	s.sessions[sess.SessionID] = &cp
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNoRecord
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, m *Message) (*Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.IdempotencyKey != nil {
		for _, existing := range s.messages[m.SessionID] {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *m.IdempotencyKey {
				cp := existing
				return &cp, false, nil
			}
		}
	}
	s.seq++
	m.ID = s.seq
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.messages[m.SessionID] = append(s.messages[m.SessionID], *m)
	return m, true, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, sessionID string, limit int, beforeID uint64) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.messages[sessionID]
	out := make([]Message, 0, limit)
	for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
		if beforeID > 0 && log[i].ID >= beforeID {
			continue
		}
		out = append(out, log[i])
	}
	return out, nil
}

func (s *MemoryStore) RecentMessages(_ context.Context, sessionID string, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.messages[sessionID]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	return append([]Message(nil), log...), nil
}

func (s *MemoryStore) GetMessage(_ context.Context, sessionID, messageID string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages[sessionID] {
		if m.MessageID == messageID {
			cp := m
			return &cp, nil
		}
	}
	return nil, ErrNoRecord
}

func (s *MemoryStore) PrecedingUserMessage(_ context.Context, sessionID string, beforeID uint64) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.messages[sessionID]
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].ID < beforeID && log[i].Role == "user" {
			cp := log[i]
			return &cp, nil
		}
	}
	return nil, ErrNoRecord
}

func (s *MemoryStore) InsertFeedback(_ context.Context, f *models.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	s.feedback = append(s.feedback, *f)
	return nil
}

func (s *MemoryStore) ListFeedback(_ context.Context, limit int) ([]models.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.Feedback(nil), s.feedback...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
