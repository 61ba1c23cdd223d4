// Package worker runs async chat jobs delivered over RabbitMQ.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/kinfolk/internal/chat"
	"github.com/suPer8Hu/kinfolk/internal/metrics"
)

type JobRepo interface {
	GetJobByID(ctx context.Context, id string) (*chat.Job, error)
	UpdateJobStatusRunning(ctx context.Context, id string) error
	MarkJobSucceeded(ctx context.Context, id string, resultMessageID string) error
	MarkJobFailed(ctx context.Context, id string, errMsg string) error
}

// Resumer answers the pending user message of a session, or gives up on it.
type Resumer interface {
	Resume(ctx context.Context, sessionID string) (*chat.Turn, error)
	Abandon(ctx context.Context, sessionID string) (*chat.Turn, error)
}

type Runner struct {
	jobs JobRepo
	chat Resumer
	log  zerolog.Logger
	slow time.Duration
}

func NewRunner(jobs JobRepo, r Resumer, log zerolog.Logger) *Runner {
	return &Runner{jobs: jobs, chat: r, log: log, slow: 2 * time.Second}
}

// Handle completes one job. A returned error means the job may be retried;
// Fail records a final failure.
func (r *Runner) Handle(ctx context.Context, jobID string) error {
	jobStart := time.Now()

	t0 := time.Now()
	if err := r.jobs.UpdateJobStatusRunning(ctx, jobID); err != nil {
		r.log.Warn().Err(err).Str("job_id", jobID).Msg("mark running failed")
	}
	updateCost := time.Since(t0)

	t1 := time.Now()
	j, err := r.jobs.GetJobByID(ctx, jobID)
	getJobCost := time.Since(t1)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if j.Status == chat.JobSucceeded {
		r.log.Info().Str("job_id", jobID).Msg("job already succeeded, skipping")
		return nil
	}

	t2 := time.Now()
	turn, err := r.chat.Resume(ctx, j.SessionID)
	genCost := time.Since(t2)
	if err != nil {
		r.log.Warn().Err(err).
			Str("job_id", jobID).
			Dur("update", updateCost).
			Dur("get_job", getJobCost).
			Dur("gen", genCost).
			Dur("total", time.Since(jobStart)).
			Msg("job_timing_failed")
		return err
	}
	if turn.Reply == nil {
		return errors.New("turn produced no reply")
	}

	t3 := time.Now()
	if err := r.jobs.MarkJobSucceeded(ctx, jobID, turn.Reply.MessageID); err != nil {
		return fmt.Errorf("mark job %s succeeded: %w", jobID, err)
	}
	metrics.ChatJobs.WithLabelValues(string(chat.JobSucceeded)).Inc()

	total := time.Since(jobStart)
	ev := r.log.Debug()
	if total > r.slow {
		ev = r.log.Info()
	}
	ev.Str("job_id", jobID).
		Dur("update", updateCost).
		Dur("get_job", getJobCost).
		Dur("gen", genCost).
		Dur("mark_succ", time.Since(t3)).
		Dur("total", total).
		Msg("job_timing")
	return nil
}

// Fail records that jobID will not be retried and closes its pending turn so
// the session takes new messages.
func (r *Runner) Fail(ctx context.Context, jobID string, cause error) {
	metrics.ChatJobs.WithLabelValues(string(chat.JobFailed)).Inc()
	if err := r.jobs.MarkJobFailed(ctx, jobID, cause.Error()); err != nil {
		r.log.Error().Err(err).Str("job_id", jobID).Msg("mark job failed")
	}
	j, err := r.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		r.log.Warn().Err(err).Str("job_id", jobID).Msg("load failed job")
		return
	}
	if _, err := r.chat.Abandon(ctx, j.SessionID); err != nil {
		r.log.Warn().Err(err).Str("job_id", jobID).Str("session_id", j.SessionID).Msg("abandon pending turn")
	}
}
