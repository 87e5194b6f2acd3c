package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/echarter/fleetauth/core"
)

const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 30 * time.Second
)

// channel is the part of *amqp.Channel the queue uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Handler delivers one queued notification.
type Handler func(ctx context.Context, n core.Notification) error

// AMQPConfig configures DialAMQP. Zero values fall back to the package defaults.
type AMQPConfig struct {
	URL   string
	Queue string
	// MaxAttempts caps deliveries per notification, the inline attempt included.
	MaxAttempts int
	// RetryDelay is the wait after the first failed attempt. Each further failure
	// adds another RetryDelay.
	RetryDelay time.Duration
	// CodeTTL is the lifetime of the codes being carried. Older notifications
	// are dropped unsent.
	CodeTTL time.Duration
	Logger  *log.Logger
}

// AMQPQueue holds reset-code emails that could not be sent inline. Every
// notification waits in "<queue>.retry" until its per-message TTL runs out, then
// dead-letters onto the work queue the worker consumes.
type AMQPQueue struct {
	conn        *amqp.Connection
	ch          channel
	queue       string
	retryQueue  string
	maxAttempts int
	retryDelay  time.Duration
	codeTTL     time.Duration
	logger      *log.Logger
	now         func() time.Time
}

// DialAMQP connects to the broker and declares the durable work and retry queues.
func DialAMQP(cfg AMQPConfig) (*AMQPQueue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	q := newAMQPQueue(ch, cfg)
	q.conn = conn

	if _, err := ch.QueueDeclare(q.queue, true, false, false, false, nil); err != nil {
		q.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", q.queue, err)
	}
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": q.queue,
	}
	if _, err := ch.QueueDeclare(q.retryQueue, true, false, false, false, retryArgs); err != nil {
		q.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", q.retryQueue, err)
	}
	return q, nil
}

func newAMQPQueue(ch channel, cfg AMQPConfig) *AMQPQueue {
	q := &AMQPQueue{
		ch:          ch,
		queue:       cfg.Queue,
		retryQueue:  cfg.Queue + ".retry",
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		codeTTL:     cfg.CodeTTL,
		logger:      cfg.Logger,
		now:         time.Now,
	}
	if q.maxAttempts <= 0 {
		q.maxAttempts = DefaultMaxAttempts
	}
	if q.retryDelay <= 0 {
		q.retryDelay = DefaultRetryDelay
	}
	if q.codeTTL <= 0 {
		q.codeTTL = core.DefaultCodeTTL
	}
	if q.logger == nil {
		q.logger = log.Default()
	}
	return q
}

// remaining is how long the notification's code stays usable.
func (q *AMQPQueue) remaining(n core.Notification) time.Duration {
	return n.EnqueuedAt.Add(q.codeTTL).Sub(q.now())
}

// backoff is the wait before the next try once attempts tries have failed.
func (q *AMQPQueue) backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return q.retryDelay * time.Duration(attempts)
}

// Enqueue schedules n, whose Attempt counts the tries already made, for a
// delayed retry.
func (q *AMQPQueue) Enqueue(ctx context.Context, n core.Notification) error {
	if n.EnqueuedAt.IsZero() {
		n.EnqueuedAt = q.now()
	}
	if q.remaining(n) <= 0 {
		return errors.New("notification code already expired")
	}
	return q.publish(ctx, q.retryQueue, n, q.backoff(n.Attempt))
}

func (q *AMQPQueue) publish(ctx context.Context, queue string, n core.Notification, expiration time.Duration) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	ms := expiration.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	err = q.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    q.now(),
		Expiration:   strconv.FormatInt(ms, 10),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Consume feeds queued notifications to h until ctx is cancelled.
func (q *AMQPQueue) Consume(ctx context.Context, h Handler) error {
	msgs, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume %s: %w", q.queue, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			q.handle(ctx, d, h)
		}
	}
}

func (q *AMQPQueue) handle(ctx context.Context, d amqp.Delivery, h Handler) {
	var n core.Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		q.logger.Printf("notify: dropping malformed message: %v", err)
		_ = d.Reject(false)
		return
	}
	if q.remaining(n) <= 0 {
		q.logger.Printf("notify: dropping expired code for %s", n.To)
		_ = d.Reject(false)
		return
	}

	err := h(ctx, n)
	if err == nil {
		_ = d.Ack(false)
		return
	}
	n.Attempt++
	if n.Attempt >= q.maxAttempts {
		q.logger.Printf("notify: giving up on %s after %d attempts: %v", n.To, n.Attempt, err)
		_ = d.Reject(false)
		return
	}

	q.logger.Printf("notify: attempt %d for %s failed: %v", n.Attempt, n.To, err)
	if err := q.publish(ctx, q.retryQueue, n, q.backoff(n.Attempt)); err != nil {
		q.logger.Printf("notify: requeue for %s: %v", n.To, err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (q *AMQPQueue) Close() error {
	err := q.ch.Close()
	if q.conn != nil {
		if cerr := q.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
