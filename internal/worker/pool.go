package worker

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/kinfolk/internal/store/rabbitmq"
)

// Retrier reschedules a failed delivery. It reports false once retries are
// exhausted and the delivery has been rejected.
type Retrier interface {
	Retry(ctx context.Context, d amqp.Delivery) (bool, error)
}

type JobHandler interface {
	Handle(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, cause error)
}

type Pool struct {
	handler     JobHandler
	retrier     Retrier
	concurrency int
	log         zerolog.Logger
}

func NewPool(h JobHandler, r Retrier, concurrency int, log zerolog.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{handler: h, retrier: r, concurrency: concurrency, log: log}
}

// Run consumes msgs until ctx is done or msgs is closed, then waits for the
// in-flight jobs.
func (p *Pool) Run(ctx context.Context, msgs <-chan amqp.Delivery) {
	jobs := make(chan amqp.Delivery, p.concurrency*2)

	var wg sync.WaitGroup
	wg.Add(p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				p.process(ctx, workerID, d)
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("worker shutting down")
			return
		case d, ok := <-msgs:
			if !ok {
				p.log.Warn().Msg("delivery channel closed")
				return
			}
			jobs <- d
		}
	}
}

func (p *Pool) process(ctx context.Context, workerID int, d amqp.Delivery) {
	log := p.log.With().Int("worker", workerID).Logger()

	m, err := rabbitmq.DecodeJob(d.Body)
	if err != nil {
		log.Error().Err(err).Msg("bad message")
		_ = d.Nack(false, false)
		return
	}

	if err := p.handler.Handle(ctx, m.JobID); err != nil {
		retried, rerr := p.retrier.Retry(ctx, d)
		if rerr != nil {
			log.Error().Err(rerr).Str("job_id", m.JobID).Msg("retry publish failed")
		}
		if !retried {
			log.Error().Err(err).Str("job_id", m.JobID).Msg("job failed")
			p.handler.Fail(ctx, m.JobID, err)
			return
		}
		log.Warn().Err(err).Str("job_id", m.JobID).Msg("job failed, retry scheduled")
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error().Err(err).Str("job_id", m.JobID).Msg("ack failed")
	}
}
