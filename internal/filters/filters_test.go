package filters

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alert-router/internal/models"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(l)
}

func serviceEvent(st models.State) *models.Event {
	return &models.Event{Entity: "web01", Check: "HTTP", Type: models.EventTypeService, State: st, Time: now}
}

// failingFor returns a check that changed into st the given duration before now.
func failingFor(st models.State, d time.Duration) *models.Check {
	c := models.NewCheck("web01:HTTP")
	c.AppendState(models.StateOK, now.Add(-time.Hour))
	c.AppendState(st, now.Add(-d))
	return c
}

func alerted(c *models.Check, st models.State, ago time.Duration) *models.Check {
	at := now.Add(-ago)
	c.LastProblemAlert = &at
	c.LastNotification = &models.Notification{Type: models.NotificationProblem, State: st, Time: at}
	return c
}

func TestResolveDelay(t *testing.T) {
	assert.Equal(t, 10*time.Second, resolveDelay(10*time.Second, 20*time.Second, time.Minute))
	assert.Equal(t, 20*time.Second, resolveDelay(0, 20*time.Second, time.Minute))
	assert.Equal(t, 20*time.Second, resolveDelay(500*time.Millisecond, 20*time.Second, time.Minute), "sub-second override is unset")
	assert.Equal(t, time.Minute, resolveDelay(0, 0, time.Minute))
	assert.Equal(t, time.Minute, resolveDelay(-5*time.Second, -1, time.Minute))
}

func TestDelays_InitialFailureBoundary(t *testing.T) {
	d := NewDelays(testLogger())
	const delay = 30 * time.Second

	for _, elapsed := range []time.Duration{0, time.Second, 29 * time.Second, 30 * time.Second, 31 * time.Second, 10 * time.Minute} {
		check := failingFor(models.StateCritical, elapsed)
		blocked := d.Block(serviceEvent(models.StateCritical), check, Options{InitialFailureDelay: delay, Now: now})
		assert.Equal(t, elapsed < delay, blocked, "elapsed %s", elapsed)
	}
}

func TestDelays_CheckOverrideWins(t *testing.T) {
	d := NewDelays(testLogger())
	check := failingFor(models.StateCritical, 40*time.Second)
	check.InitialFailureDelay = time.Minute

	assert.True(t, d.Block(serviceEvent(models.StateCritical), check, Options{InitialFailureDelay: 10 * time.Second, Now: now}))
}

func TestDelays_RepeatBoundary(t *testing.T) {
	d := NewDelays(testLogger())
	const repeat = 300 * time.Second

	for _, since := range []time.Duration{0, 60 * time.Second, 299 * time.Second, 300 * time.Second, 301 * time.Second} {
		check := alerted(failingFor(models.StateCritical, time.Hour), models.StateCritical, since)
		blocked := d.Block(serviceEvent(models.StateCritical), check, Options{RepeatFailureDelay: repeat, Now: now})
		assert.Equal(t, since < repeat, blocked, "since last alert %s", since)
	}
}

func TestDelays_StateChangeIgnoresRepeatWindow(t *testing.T) {
	d := NewDelays(testLogger())
	check := alerted(failingFor(models.StateCritical, time.Hour), models.StateWarning, time.Second)

	assert.False(t, d.Block(serviceEvent(models.StateCritical), check, Options{RepeatFailureDelay: time.Hour, Now: now}))
}

func TestDelays_AcknowledgementNotificationIsNotSameState(t *testing.T) {
	d := NewDelays(testLogger())
	check := failingFor(models.StateCritical, time.Hour)
	at := now.Add(-10 * time.Second)
	check.LastProblemAlert = &at
	check.LastNotification = &models.Notification{Type: models.NotificationAcknowledgement, State: models.StateCritical, Time: at}

	assert.False(t, d.Block(serviceEvent(models.StateCritical), check, Options{Now: now}))
}

func TestDelays_NeverBlocksNonFailing(t *testing.T) {
	d := NewDelays(testLogger())
	check := alerted(failingFor(models.StateCritical, time.Second), models.StateCritical, time.Second)

	assert.False(t, d.Block(serviceEvent(models.StateOK), check, Options{Now: now}))

	action := &models.Event{Entity: "web01", Check: "HTTP", Type: models.EventTypeAction, State: models.StateCritical, Time: now}
	assert.False(t, d.Block(action, check, Options{Now: now}))

	recovered := failingFor(models.StateCritical, time.Second)
	recovered.AppendState(models.StateOK, now)
	assert.False(t, d.Block(serviceEvent(models.StateCritical), recovered, Options{Now: now}), "check is not failing")
}

func TestDelays_NoPriorAlertPasses(t *testing.T) {
	d := NewDelays(testLogger())
	check := failingFor(models.StateCritical, time.Hour)

	assert.False(t, d.Block(serviceEvent(models.StateCritical), check, Options{Now: now}))
}

func TestOk(t *testing.T) {
	f := NewOk(testLogger())
	check := failingFor(models.StateOK, time.Second)

	assert.True(t, f.Block(serviceEvent(models.StateOK), check, Options{Now: now}), "never alerted")

	alerted(check, models.StateCritical, time.Minute)
	assert.False(t, f.Block(serviceEvent(models.StateOK), check, Options{Now: now}))

	check.LastNotification = &models.Notification{Type: models.NotificationRecovery, State: models.StateOK, Time: now}
	assert.True(t, f.Block(serviceEvent(models.StateOK), check, Options{Now: now}), "already recovered")

	assert.False(t, f.Block(serviceEvent(models.StateCritical), check, Options{Now: now}))
}

func TestMaintenance(t *testing.T) {
	sched := NewScheduledMaintenance(testLogger())
	unsched := NewUnscheduledMaintenance(testLogger())
	check := failingFor(models.StateCritical, time.Hour)
	opts := Options{Now: now}

	assert.False(t, sched.Block(serviceEvent(models.StateCritical), check, opts))
	assert.False(t, unsched.Block(serviceEvent(models.StateCritical), check, opts))

	check.ScheduledMaintenances = []models.Maintenance{{Start: now.Add(-time.Minute), End: now.Add(time.Minute)}}
	check.UnscheduledMaintenance = &models.Maintenance{Start: now.Add(-time.Minute), End: now.Add(time.Hour)}

	assert.True(t, sched.Block(serviceEvent(models.StateCritical), check, opts))
	assert.True(t, unsched.Block(serviceEvent(models.StateCritical), check, opts))
	assert.False(t, unsched.Block(serviceEvent(models.StateOK), check, opts), "recoveries pass an acknowledgement")
}

func TestUnknown(t *testing.T) {
	f := NewUnknown(testLogger())
	check := failingFor(models.StateUnknown, time.Hour)

	assert.False(t, f.Block(serviceEvent(models.StateUnknown), check, Options{Now: now}))
	assert.True(t, f.Block(serviceEvent(models.StateUnknown), check, Options{IgnoreUnknown: true, Now: now}))
	assert.False(t, f.Block(serviceEvent(models.StateCritical), check, Options{IgnoreUnknown: true, Now: now}))
}

func TestAcknowledgement(t *testing.T) {
	f := NewAcknowledgement(testLogger())
	ack := &models.Event{Entity: "web01", Check: "HTTP", Type: models.EventTypeAction, State: models.StateAcknowledgement, Time: now}

	assert.True(t, f.Block(ack, failingFor(models.StateOK, time.Hour), Options{Now: now}), "nothing to acknowledge")

	check := failingFor(models.StateCritical, time.Hour)
	assert.False(t, f.Block(ack, check, Options{Now: now}))

	check.UnscheduledMaintenance = &models.Maintenance{Start: now.Add(-time.Minute), End: now.Add(time.Hour)}
	assert.True(t, f.Block(ack, check, Options{Now: now}), "already acknowledged")
}

func TestChain_FirstBlockerWins(t *testing.T) {
	chain := NewChain(testLogger(), Options{InitialFailureDelay: 30 * time.Second}).WithClock(func() time.Time { return now })
	require.Len(t, chain.Filters(), 6)

	check := failingFor(models.StateCritical, 10*time.Second)
	blocked, name := chain.Run(serviceEvent(models.StateCritical), check)
	assert.True(t, blocked)
	assert.Equal(t, "delays", name)

	check = failingFor(models.StateCritical, 35*time.Second)
	blocked, name = chain.Run(serviceEvent(models.StateCritical), check)
	assert.False(t, blocked)
	assert.Empty(t, name)

	check.ScheduledMaintenances = []models.Maintenance{{Start: now.Add(-time.Hour), End: now.Add(time.Hour)}}
	_, name = chain.Run(serviceEvent(models.StateCritical), check)
	assert.Equal(t, "scheduled_maintenance", name)
}

func TestChain_RepeatExample(t *testing.T) {
	chain := NewChain(testLogger(), Options{RepeatFailureDelay: 300 * time.Second}).WithClock(func() time.Time { return now })
	check := alerted(failingFor(models.StateCritical, time.Hour), models.StateCritical, 60*time.Second)

	blocked, name := chain.Run(serviceEvent(models.StateCritical), check)
	assert.True(t, blocked)
	assert.Equal(t, "delays", name)

	check.AppendState(models.StateOK, now)
	blocked, _ = chain.Run(serviceEvent(models.StateOK), check)
	assert.False(t, blocked, "recovery is not held by the repeat window")
}

func TestChain_TestEventsNeverBlocked(t *testing.T) {
	chain := NewChain(testLogger(), Options{IgnoreUnknown: true}).WithClock(func() time.Time { return now })
	check := failingFor(models.StateCritical, time.Second)
	check.ScheduledMaintenances = []models.Maintenance{{Start: now.Add(-time.Hour), End: now.Add(time.Hour)}}
	check.UnscheduledMaintenance = &models.Maintenance{Start: now.Add(-time.Hour), End: now.Add(time.Hour)}

	ev := &models.Event{Entity: "web01", Check: "HTTP", Type: models.EventTypeAction, State: models.StateTest, Time: now}
	blocked, _ := chain.Run(ev, check)
	assert.False(t, blocked)
}

func TestChain_DoesNotMutateCheck(t *testing.T) {
	chain := NewChain(testLogger(), Options{}).WithClock(func() time.Time { return now })
	check := alerted(failingFor(models.StateCritical, time.Hour), models.StateWarning, time.Minute)
	before := *check
	states := append([]models.CheckState(nil), check.States...)

	chain.Run(serviceEvent(models.StateCritical), check)
	assert.Equal(t, before.LastProblemAlert, check.LastProblemAlert)
	assert.Equal(t, before.LastNotification, check.LastNotification)
	assert.Equal(t, states, check.States)
}
