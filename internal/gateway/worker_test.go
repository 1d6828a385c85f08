package gateway

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alert-router/internal/config"
	"alert-router/internal/models"
	"alert-router/internal/providers"
	"alert-router/internal/queue"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type recordingTransport struct {
	mu      sync.Mutex
	got     []string
	failFor map[string]bool
	block   chan struct{}
	started chan struct{}
}

func (r *recordingTransport) Medium() models.Medium { return models.MediumSMS }

func (r *recordingTransport) Deliver(ctx context.Context, msg *models.Message) error {
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, msg.Summary)
	if r.failFor[msg.Summary] {
		return errors.New("provider said no")
	}
	return nil
}

func (r *recordingTransport) delivered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func newQueue(t *testing.T, mr *miniredis.Miniredis) *queue.Queue {
	t.Helper()
	q, err := queue.Connect(context.Background(), queue.Options{Addr: mr.Addr()}, testLogger(), nil)
	require.NoError(t, err)
	q.SetWaitTimeout(time.Second)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func message(summary string) *models.Message {
	event := &models.Event{Entity: "web01", Check: "HTTP", Type: models.EventTypeService, State: models.StateCritical, Summary: summary, Time: time.Unix(1, 0)}
	target := models.Target{Contact: &models.Contact{ID: "c1"}, Medium: models.MediumSMS, Address: "+61400000000"}
	return models.NewMessage(target, event, models.NotificationProblem)
}

func waitDone(t *testing.T, w *Worker) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_DeliversInOrderAndContinuesAfterFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	producer := newQueue(t, mr)
	ctx := context.Background()
	for _, s := range []string{"one", "two", "three"} {
		require.NoError(t, producer.Publish(ctx, "sms_notifications", message(s)))
	}

	transport := &recordingTransport{failFor: map[string]bool{"two": true}}
	w := NewWorker("sms_notifications", newQueue(t, mr), transport, testLogger(), nil)

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(transport.delivered()) == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"one", "two", "three"}, transport.delivered())

	// Published after the first drain; picked up after the wake signal.
	require.NoError(t, producer.Publish(ctx, "sms_notifications", message("four")))
	require.Eventually(t, func() bool { return len(transport.delivered()) == 4 }, 5*time.Second, 10*time.Millisecond)

	w.Stop()
	waitDone(t, w)
	assert.NoError(t, <-errCh)

	delivered, failed := w.Stats()
	assert.Equal(t, 3, delivered)
	assert.Equal(t, 1, failed)
	assert.False(t, mr.Exists("sms_notifications"))
}

func TestWorker_StopWaitsForCycle(t *testing.T) {
	mr := miniredis.RunT(t)
	producer := newQueue(t, mr)
	ctx := context.Background()
	require.NoError(t, producer.Publish(ctx, "sms_notifications", message("slow")))

	transport := &recordingTransport{block: make(chan struct{}), started: make(chan struct{}, 1)}
	w := NewWorker("sms_notifications", newQueue(t, mr), transport, testLogger(), nil)
	go func() { _ = w.Run(ctx) }()

	<-transport.started
	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop returned during a delivery")
	case <-time.After(100 * time.Millisecond):
	}

	close(transport.block)
	<-stopped
	waitDone(t, w)
	assert.Equal(t, []string{"slow"}, transport.delivered(), "in-flight message completes")
}

func TestWorker_StopBeforeRun(t *testing.T) {
	mr := miniredis.RunT(t)
	w := NewWorker("sms_notifications", newQueue(t, mr), &recordingTransport{}, testLogger(), nil)
	w.Stop()
	assert.NoError(t, w.Run(context.Background()))
}

func TestWorker_ContextCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	w := NewWorker("sms_notifications", newQueue(t, mr), &recordingTransport{}, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker ignored context cancellation")
	}
}

type brokenQueue struct{}

func (brokenQueue) Next(context.Context, string) (*models.Message, error) {
	return nil, errors.New("connection reset")
}

func (brokenQueue) WaitForActivity(context.Context, string) error { return nil }

func TestWorker_QueueErrorEndsRun(t *testing.T) {
	w := NewWorker("sms_notifications", brokenQueue{}, &recordingTransport{}, testLogger(), nil)
	assert.ErrorContains(t, w.Run(context.Background()), "connection reset")
}

func TestRegistryAndGroup(t *testing.T) {
	transport := &recordingTransport{}
	reg := NewRegistry(transport)

	got, err := reg.Get(models.MediumSMS)
	require.NoError(t, err)
	assert.Same(t, transport, got)

	_, err = reg.Get(models.MediumEmail)
	assert.ErrorIs(t, err, ErrUnknownMedium)

	mr := miniredis.RunT(t)
	var g Group
	g.Add(NewWorker("sms_notifications", newQueue(t, mr), transport, testLogger(), nil))
	g.Add(NewWorker("email_notifications", brokenQueue{}, transport, testLogger(), nil))
	g.Start(context.Background())

	err = g.Stop()
	assert.ErrorContains(t, err, "connection reset")
}

func TestTransportsFromConfig(t *testing.T) {
	var cfg config.Config
	cfg.SMS.Provider = "twilio"
	reg, err := TransportsFromConfig(cfg, nil, testLogger())
	require.NoError(t, err)

	sms, err := reg.Get(models.MediumSMS)
	require.NoError(t, err)
	assert.IsType(t, &providers.Twilio{}, sms)
	_, err = reg.Get(models.MediumEmail)
	assert.NoError(t, err)
	_, err = reg.Get(models.MediumWeb)
	assert.ErrorIs(t, err, ErrUnknownMedium)

	cfg.SMS.Provider = "messagenet"
	reg, err = TransportsFromConfig(cfg, providers.NewWebSocketManager(testLogger(), nil), testLogger())
	require.NoError(t, err)
	sms, err = reg.Get(models.MediumSMS)
	require.NoError(t, err)
	assert.IsType(t, &providers.Messagenet{}, sms)
	_, err = reg.Get(models.MediumWeb)
	assert.NoError(t, err)

	cfg.Messagenet.TimeZone = "Not/AZone"
	_, err = TransportsFromConfig(cfg, nil, testLogger())
	assert.Error(t, err)

	cfg.Messagenet.TimeZone = ""
	cfg.SMS.Provider = "pigeon"
	_, err = TransportsFromConfig(cfg, nil, testLogger())
	assert.Error(t, err)
}

func TestWorker_RunTwice(t *testing.T) {
	mr := miniredis.RunT(t)
	w := NewWorker("sms_notifications", newQueue(t, mr), &recordingTransport{}, testLogger(), nil)
	w.Stop()
	require.NoError(t, w.Run(context.Background()))
	waitDone(t, w)

	assert.ErrorIs(t, w.Run(context.Background()), ErrWorkerStarted)
}

func TestWorker_StopReturnsWhileWaiting(t *testing.T) {
	mr := miniredis.RunT(t)
	w := NewWorker("sms_notifications", newQueue(t, mr), &recordingTransport{}, testLogger(), nil)

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(context.Background()) }()
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	w.Stop()
	assert.Less(t, time.Since(start), 500*time.Millisecond, "Stop does not wait for the blocked BRPOP")

	waitDone(t, w)
	assert.NoError(t, <-errCh)
	assert.ErrorIs(t, w.Run(context.Background()), ErrWorkerStarted)
}
