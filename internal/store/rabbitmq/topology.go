// Package rabbitmq carries async chat jobs between the API and the worker.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const retryCountHeader = "x-retry-count"

type JobMessage struct {
	JobID string `json:"job_id"`
}

func DecodeJob(body []byte) (JobMessage, error) {
	var m JobMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return m, fmt.Errorf("decode job message: %w", err)
	}
	if m.JobID == "" {
		return m, errors.New("job message without job_id")
	}
	return m, nil
}

// Dial connects with exponential backoff until ctx ends or maxWait elapses.
func Dial(ctx context.Context, url string, maxWait time.Duration, log zerolog.Logger) (*amqp.Connection, error) {
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = maxWait

	var conn *amqp.Connection
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		c, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("rabbit dial failed")
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(eb, ctx))
	if err != nil {
		return nil, fmt.Errorf("rabbit dial: %w", err)
	}
	return conn, nil
}

// declareTopology declares queue, queue.retry and queue.dlq. Rejected
// messages on the main queue dead-letter to the DLQ; retry messages expire
// back into the main queue.
func declareTopology(ch *amqp.Channel, queue string) error {
	dlqQ := queue + ".dlq"
	retryQ := queue + ".retry"

	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dlqQ, err)
	}
	if _, err := ch.QueueDeclare(retryQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", retryQ, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	return nil
}

func retryCount(h amqp.Table) int {
	switch v := h[retryCountHeader].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}
