package notification

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"alert-router/internal/filters"
	"alert-router/internal/metrics"
	"alert-router/internal/models"
	"alert-router/internal/notifier"
)

// DefaultAckDuration is how long an acknowledgement silences a check when
// the event carries no duration.
const DefaultAckDuration = 4 * time.Hour

// checkLockStripes is the number of mutexes Process spreads checks over.
const checkLockStripes = 256

// CheckStore loads and persists check state. GetCheck returns
// models.ErrNotFound for a check never seen before.
type CheckStore interface {
	GetCheck(ctx context.Context, id string) (*models.Check, error)
	SaveCheck(ctx context.Context, check *models.Check) error
}

// Recorder keeps the sent-message history used for per-target intervals.
type Recorder interface {
	RecordSent(ctx context.Context, checkID string, msg *models.Message, at time.Time) error
}

// Publisher enqueues a message for a gateway.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg *models.Message) error
}

// Builder turns an unblocked event into messages.
type Builder interface {
	Build(ctx context.Context, event *models.Event, check *models.Check) ([]*models.Message, error)
}

// Config tunes the event worker pool and bookkeeping.
type Config struct {
	QueueSize   int
	MaxWorkers  int
	AckDuration time.Duration
	// QueueFor maps a medium to its queue name. Nil uses "<medium>_notifications".
	QueueFor func(models.Medium) string
}

// Result describes what happened to one event.
type Result struct {
	Blocked   bool
	Filter    string
	Messages  []*models.Message
	Published int
}

// Service runs events through the filter chain, builds their messages and
// publishes them to the per-medium queues. Events for the same check are
// always handled by the same worker, in arrival order, and Process never
// runs concurrently for one check whichever path it is called from.
type Service struct {
	store     CheckStore
	chain     *filters.Chain
	builder   Builder
	publisher Publisher
	recorder  Recorder
	logger    *logrus.Entry
	metrics   *metrics.Metrics
	config    Config
	clock     func() time.Time

	locks  []sync.Mutex
	events []chan *models.Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

// New constructs a notification Service. recorder may be nil.
func New(store CheckStore, chain *filters.Chain, builder Builder, publisher Publisher, recorder Recorder,
	logger *logrus.Entry, m *metrics.Metrics, cfg Config) *Service {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.AckDuration <= 0 {
		cfg.AckDuration = DefaultAckDuration
	}
	if cfg.QueueFor == nil {
		cfg.QueueFor = func(medium models.Medium) string { return string(medium) + "_notifications" }
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc := &Service{
		store:     store,
		chain:     chain,
		builder:   builder,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger.WithField("component", "dispatch"),
		metrics:   m,
		config:    cfg,
		clock:     time.Now,
		locks:     make([]sync.Mutex, checkLockStripes),
		events:    make([]chan *models.Event, cfg.MaxWorkers),
		ctx:       ctx,
		cancel:    cancel,
	}
	perWorker := cfg.QueueSize / cfg.MaxWorkers
	if perWorker < 1 {
		perWorker = 1
	}
	for i := range svc.events {
		svc.events[i] = make(chan *models.Event, perWorker)
	}
	return svc
}

// WithClock replaces the time source of the service and its chain.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	s.chain.WithClock(clock)
	return s
}

// Start launches the worker pool.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	for i := range s.events {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop cancels the workers. Queued but unprocessed events are discarded.
func (s *Service) Stop() {
	s.cancel()
}

// QueueEvent hands an event to the worker that owns its check. It returns
// false and drops the event when that worker's queue is full.
func (s *Service) QueueEvent(event *models.Event) bool {
	idx := slot(event.CheckID(), len(s.events))
	select {
	case s.events[idx] <- event:
		s.logger.WithField("check", event.CheckID()).Debug("queued event")
		return true
	default:
		s.logger.WithField("check", event.CheckID()).Error("queue full, dropping event")
		return false
	}
}

func slot(checkID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(checkID))
	return int(h.Sum32() % uint32(n))
}

// worker processes events until the context is cancelled.
func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Worker %d stopped", id)
			return
		case event := <-s.events[id]:
			if _, err := s.Process(s.ctx, event); err != nil {
				s.logger.WithError(err).WithField("check", event.CheckID()).Error("event processing failed")
			}
		}
	}
}

// Process updates the check with the event, runs the filter chain and, if
// the event passes, publishes one message per target and records the alert.
// The check's state history is saved on every path past validation. The
// alert is not recorded when every publish failed, so the next event retries
// instead of landing in the repeat window.
func (s *Service) Process(ctx context.Context, event *models.Event) (Result, error) {
	if err := event.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid event: %w", err)
	}
	checkID := event.CheckID()
	lock := &s.locks[slot(checkID, len(s.locks))]
	lock.Lock()
	defer lock.Unlock()

	now := s.clock()
	ev := *event
	if ev.Time.IsZero() {
		ev.Time = now
	}
	s.metrics.RecordEvent(ev.Type, string(ev.State))

	log := s.logger.WithFields(logrus.Fields{"check": checkID, "state": ev.State, "type": ev.Type})

	check, err := s.store.GetCheck(ctx, checkID)
	if errors.Is(err, models.ErrNotFound) {
		check = models.NewCheck(checkID)
	} else if err != nil {
		return Result{}, fmt.Errorf("load check %s: %w", checkID, err)
	}

	if ev.IsService() {
		// Transitions are stamped on receipt; ev.Time only travels in the message.
		if check.AppendState(ev.State, now) {
			log.Info("check changed state")
		}
		if ev.State == models.StateOK {
			check.UnscheduledMaintenance = nil
		}
	}

	if blocked, name := s.chain.Run(&ev, check); blocked {
		s.metrics.RecordBlocked(name)
		if err := s.store.SaveCheck(ctx, check); err != nil {
			return Result{}, fmt.Errorf("save check %s: %w", checkID, err)
		}
		return Result{Blocked: true, Filter: name}, nil
	}

	messages, err := s.builder.Build(ctx, &ev, check)
	if err != nil {
		// Keep the transition so the next event measures from it.
		if saveErr := s.store.SaveCheck(ctx, check); saveErr != nil {
			err = errors.Join(err, fmt.Errorf("save check %s: %w", checkID, saveErr))
		}
		return Result{}, err
	}

	res := Result{Messages: messages}
	var errs []error
	for _, msg := range messages {
		queue := s.config.QueueFor(msg.Medium)
		if err := s.publisher.Publish(ctx, queue, msg); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"message_id": msg.ID,
				"queue":      queue,
			}).Error("publish failed")
			errs = append(errs, err)
			continue
		}
		res.Published++
		if s.recorder != nil {
			if err := s.recorder.RecordSent(ctx, checkID, msg, now); err != nil {
				log.WithError(err).WithField("message_id", msg.ID).Warn("could not record sent message")
			}
		}
	}

	if res.Published > 0 || len(errs) == 0 {
		s.recordAlert(check, &ev, now)
	} else {
		log.Warn("nothing published, alert bookkeeping left unchanged")
	}
	if err := s.store.SaveCheck(ctx, check); err != nil {
		errs = append(errs, fmt.Errorf("save check %s: %w", checkID, err))
	}

	log.WithFields(logrus.Fields{
		"messages":  len(messages),
		"published": res.Published,
	}).Info("event dispatched")
	return res, errors.Join(errs...)
}

// recordAlert updates the bookkeeping the filters read on the next event.
func (s *Service) recordAlert(check *models.Check, ev *models.Event, now time.Time) {
	notifType := notifier.NotificationTypeFor(ev)
	if notifType == models.NotificationTest {
		return
	}
	if notifType == models.NotificationProblem {
		t := now
		check.LastProblemAlert = &t
	}
	check.LastNotification = &models.Notification{Type: notifType, State: ev.State, Time: now}

	if notifType == models.NotificationAcknowledgement {
		d := ev.Duration
		if d <= 0 {
			d = s.config.AckDuration
		}
		check.UnscheduledMaintenance = &models.Maintenance{Start: now, End: now.Add(d), Summary: ev.Summary}
	}
}
