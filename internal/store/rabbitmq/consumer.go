package rabbitmq

import (
	"context"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type ConsumerConfig struct {
	URL        string
	Queue      string
	Prefetch   int
	MaxRetries int
	RetryDelay time.Duration
}

type Consumer struct {
	conn *amqp.Connection
	mu   sync.Mutex
	ch   *amqp.Channel
	cfg  ConsumerConfig
	log  zerolog.Logger
}

func NewConsumer(ctx context.Context, cfg ConsumerConfig, log zerolog.Logger) (*Consumer, error) {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	conn, err := Dial(ctx, cfg.URL, time.Minute, log)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := declareTopology(ch, cfg.Queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	// strict concurrency control
	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, cfg: cfg, log: log}, nil
}

func (c *Consumer) Deliveries() (<-chan amqp.Delivery, error) {
	return c.ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
}

// Retry schedules d again through the retry queue while attempts remain,
// otherwise rejects it into the DLQ. It reports whether d was rescheduled.
func (c *Consumer) Retry(ctx context.Context, d amqp.Delivery) (bool, error) {
	n := retryCount(d.Headers)
	if n >= c.cfg.MaxRetries {
		return false, d.Nack(false, false)
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c.mu.Lock()
	err := c.ch.PublishWithContext(cctx, "", c.cfg.Queue+".retry", false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
		Headers:      amqp.Table{retryCountHeader: int32(n + 1)},
		Expiration:   strconv.FormatInt(c.cfg.RetryDelay.Milliseconds(), 10),
		Timestamp:    time.Now(),
	})
	c.mu.Unlock()
	if err != nil {
		// leave it to the DLQ rather than lose it
		_ = d.Nack(false, false)
		return false, err
	}
	return true, d.Ack(false)
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
