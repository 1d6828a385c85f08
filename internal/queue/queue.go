// Package queue implements the per-medium message queues shared by the
// dispatch pipeline and the gateways. A queue Q is a Redis list holding
// JSON-encoded messages; its companion list Q_actions receives one token per
// publish so idle consumers can block instead of polling.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"alert-router/internal/metrics"
	"alert-router/internal/models"
)

const (
	actionsSuffix = "_actions"
	actionToken   = "+"

	// DefaultWaitTimeout is the server-side BRPOP timeout. The wait is
	// re-issued until a token arrives or the context ends.
	DefaultWaitTimeout = 5 * time.Second
)

// ErrNoClient is returned when a queue is built without a store connection.
var ErrNoClient = errors.New("queue: redis client is required")

// ActionsKey returns the wake-signal list paired with queue.
func ActionsKey(queue string) string {
	return queue + actionsSuffix
}

// QueueName returns the default queue for a medium.
func QueueName(medium models.Medium) string {
	return string(medium) + "_notifications"
}

// Options configure Connect.
type Options struct {
	Addr     string
	Password string
	DB       int
}

type Queue struct {
	client      *redis.Client
	logger      *logrus.Entry
	metrics     *metrics.Metrics
	waitTimeout time.Duration
	encode      func(any) ([]byte, error)
}

// New wraps an established client. The caller owns the client unless Close
// is used.
func New(client *redis.Client, logger *logrus.Entry, m *metrics.Metrics) (*Queue, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	return &Queue{
		client:      client,
		logger:      logger.WithField("component", "queue"),
		metrics:     m,
		waitTimeout: DefaultWaitTimeout,
		encode:      json.Marshal,
	}, nil
}

// Connect dials Redis and pings it. Each caller gets its own client, so
// concurrent workers never share a connection.
func Connect(ctx context.Context, opts Options, logger *logrus.Entry, m *metrics.Metrics) (*Queue, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("queue: redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("queue: connect to redis at %s: %w", opts.Addr, err)
	}
	return New(client, logger, m)
}

// SetWaitTimeout changes the per-call BRPOP timeout.
func (q *Queue) SetWaitTimeout(d time.Duration) {
	if d > 0 {
		q.waitTimeout = d
	}
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Publish enqueues msg and posts one wake token in a single MULTI/EXEC.
// A message that cannot be encoded is logged and dropped; Publish then
// returns nil.
func (q *Queue) Publish(ctx context.Context, queue string, msg *models.Message) error {
	if msg == nil {
		q.logger.WithField("queue", queue).Warn("nil message, dropping")
		q.metrics.RecordDropped(queue)
		return nil
	}
	data, err := q.encode(msg)
	if err != nil {
		q.logger.WithError(err).WithFields(logrus.Fields{
			"queue":      queue,
			"message_id": msg.ID,
		}).Warn("could not encode message, dropping")
		q.metrics.RecordDropped(queue)
		return nil
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, queue, data)
		pipe.LPush(ctx, ActionsKey(queue), actionToken)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	q.metrics.RecordPublished(queue)
	return nil
}

// Next pops the oldest message. Undecodable items are logged and skipped.
// It returns nil, nil when the queue is empty.
func (q *Queue) Next(ctx context.Context, queue string) (*models.Message, error) {
	for {
		raw, err := q.client.RPop(ctx, queue).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("pop from %s: %w", queue, err)
		}

		var msg models.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			q.logger.WithError(err).WithFields(logrus.Fields{
				"queue": queue,
				"raw":   raw,
			}).Warn("could not decode queued message, skipping")
			q.metrics.RecordDecodeFailure(queue)
			continue
		}
		return &msg, nil
	}
}

// Drain calls fn for every message currently in queue, oldest first, and
// returns the number handled. Errors from fn are not fatal to the drain.
func (q *Queue) Drain(ctx context.Context, queue string, fn func(*models.Message)) (int, error) {
	n := 0
	for {
		msg, err := q.Next(ctx, queue)
		if err != nil {
			return n, err
		}
		if msg == nil {
			return n, nil
		}
		fn(msg)
		n++
	}
}

// WaitForActivity blocks until a wake token is available on the queue's
// actions list or ctx is done. It carries no payload; callers re-drain.
func (q *Queue) WaitForActivity(ctx context.Context, queue string) error {
	key := ActionsKey(queue)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := q.client.BRPop(ctx, q.waitTimeout, key).Result()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.Nil):
			continue
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return fmt.Errorf("wait on %s: %w", key, err)
		}
	}
}

// Depth reports the number of pending messages in queue.
func (q *Queue) Depth(ctx context.Context, queue string) (int64, error) {
	n, err := q.client.LLen(ctx, queue).Result()
	if err != nil {
		return 0, fmt.Errorf("length of %s: %w", queue, err)
	}
	return n, nil
}
