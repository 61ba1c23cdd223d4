package chat

import (
	"context"
	"errors"

	"github.com/suPer8Hu/kinfolk/internal/models"
	"gorm.io/gorm"
)

// Repo is the gorm-backed Store. It also owns async jobs.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Session{}, &Message{}, &Job{}, &models.Feedback{})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoRecord
	}
	return err
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *Repo) AppendMessage(ctx context.Context, m *Message) (*Message, bool, error) {
	if m.IdempotencyKey != nil && *m.IdempotencyKey == "" {
		m.IdempotencyKey = nil
	}
	err := r.db.WithContext(ctx).Create(m).Error
	if err == nil {
		return m, true, nil
	}
	if m.IdempotencyKey == nil {
		return nil, false, err
	}

	var existing Message
	getErr := r.db.WithContext(ctx).
		Where("session_id = ? AND idempotency_key = ?", m.SessionID, *m.IdempotencyKey).
		First(&existing).Error
	if getErr == nil {
		return &existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

// ListMessages returns messages in DESC id order (newest -> oldest).
func (r *Repo) ListMessages(ctx context.Context, sessionID string, limit int, beforeID uint64) ([]Message, error) {
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit)

	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// RecentMessages returns the most recent messages in ASC id order.
func (r *Repo) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var desc []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&desc).Error; err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(desc))
	for i := len(desc) - 1; i >= 0; i-- {
		out = append(out, desc[i])
	}
	return out, nil
}

func (r *Repo) GetMessage(ctx context.Context, sessionID, messageID string) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND message_id = ?", sessionID, messageID).
		First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *Repo) PrecedingUserMessage(ctx context.Context, sessionID string, beforeID uint64) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND role = ? AND id < ?", sessionID, "user", beforeID).
		Order("id DESC").
		First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *Repo) InsertFeedback(ctx context.Context, f *models.Feedback) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *Repo) ListFeedback(ctx context.Context, limit int) ([]models.Feedback, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.Feedback
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Job CRUD
func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, resultMessageID string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobSucceeded,
			"result_message_id": resultMessageID,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}

func (r *Repo) GetJobByIdempotencyKey(ctx context.Context, sessionID, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND idempotency_key = ?", sessionID, key).
		First(&job).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if the session already
// has a job with the same idempotency_key it returns that job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByIdempotencyKey(ctx, job.SessionID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, ErrNoRecord) {
		return nil, false, err
	}
	return nil, false, getErr
}
