// Package gateway runs one delivery loop per medium: drain the medium's
// queue, hand each message to the transport, then sleep until the queue is
// signalled again.
package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"alert-router/internal/metrics"
	"alert-router/internal/models"
)

// Transport delivers one message over a medium. Deliver is attempted once.
type Transport interface {
	Medium() models.Medium
	Deliver(ctx context.Context, msg *models.Message) error
}

// Queue is the consumer side of a message queue.
type Queue interface {
	Next(ctx context.Context, queue string) (*models.Message, error)
	WaitForActivity(ctx context.Context, queue string) error
}

// ErrWorkerStarted is returned by Run on a worker that already ran.
var ErrWorkerStarted = errors.New("gateway worker already started")

// Worker drains one queue into one transport. The drain-and-deliver cycle
// and Stop share a mutex, so a stop never lands in the middle of a cycle.
type Worker struct {
	queueName string
	queue     Queue
	transport Transport
	logger    *logrus.Entry
	metrics   *metrics.Metrics

	mu       sync.Mutex
	started  bool
	stopping bool
	cancel   context.CancelFunc
	done     chan struct{}

	delivered int
	failed    int
}

func NewWorker(queueName string, q Queue, transport Transport, logger *logrus.Entry, m *metrics.Metrics) *Worker {
	return &Worker{
		queueName: queueName,
		queue:     q,
		transport: transport,
		logger: logger.WithFields(logrus.Fields{
			"component": "gateway",
			"medium":    transport.Medium(),
			"queue":     queueName,
		}),
		metrics: m,
		done:    make(chan struct{}),
	}
}

// Run loops until Stop is called or ctx is cancelled. It returns nil on a
// clean stop and the queue error if the store fails. A worker runs once;
// later calls return ErrWorkerStarted.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrWorkerStarted
	}
	w.started = true
	defer close(w.done)
	if w.stopping {
		w.mu.Unlock()
		return nil
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()
	defer w.cancel()

	// Deliveries must not be cut short by a stop request.
	deliverCtx := context.WithoutCancel(ctx)

	w.logger.Info("gateway started")
	for {
		if err := w.cycle(ctx, deliverCtx); err != nil {
			if w.isStopping() || ctx.Err() != nil {
				break
			}
			return err
		}
		if w.isStopping() {
			break
		}

		if err := w.queue.WaitForActivity(ctx, w.queueName); err != nil {
			if w.isStopping() || ctx.Err() != nil {
				break
			}
			return err
		}
	}
	delivered, failed := w.Stats()
	w.logger.WithFields(logrus.Fields{
		"delivered": delivered,
		"failed":    failed,
	}).Info("gateway stopped")
	return nil
}

// cycle drains the queue while holding the worker lock.
func (w *Worker) cycle(ctx, deliverCtx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopping {
		return nil
	}

	for {
		msg, err := w.queue.Next(deliverCtx, w.queueName)
		if err != nil {
			return err
		}
		if msg == nil {
			return nil
		}
		w.deliver(deliverCtx, msg)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (w *Worker) deliver(ctx context.Context, msg *models.Message) {
	log := w.logger.WithField("message_id", msg.ID)
	log.Debug("delivering message")

	start := time.Now()
	err := w.transport.Deliver(ctx, msg)
	w.metrics.RecordDelivery(string(w.transport.Medium()), err, time.Since(start))

	if err != nil {
		w.failed++
		log.WithError(err).Error("delivery failed")
		return
	}
	w.delivered++
	log.Info("delivered message")
}

func (w *Worker) isStopping() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopping
}

// Stop requests the loop to exit after the current cycle. It blocks until
// any in-progress cycle has finished, not until Run has returned. A wait
// already blocked in the queue is not interrupted, so Run can take up to
// the queue's wait timeout (5s by default) to return; use Done to wait.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopping = true
	if w.cancel != nil {
		w.cancel()
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Stats returns the delivered and failed counts so far.
func (w *Worker) Stats() (delivered, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.delivered, w.failed
}
