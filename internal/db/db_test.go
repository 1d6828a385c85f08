package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alert-router/internal/models"
)

// openTestDB connects to ALERT_ROUTER_TEST_DSN and applies the migrations.
// Tests are skipped when it is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("ALERT_ROUTER_TEST_DSN")
	if dsn == "" {
		t.Skip("ALERT_ROUTER_TEST_DSN not set")
	}
	migrations, err := filepath.Abs("../../migrations")
	require.NoError(t, err)
	require.NoError(t, RunMigrations(dsn, migrations))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func uniqueCheckID() string {
	return "test-" + uuid.NewString()[:8] + ":ping"
}

func TestGetCheck_NotFound(t *testing.T) {
	d := openTestDB(t)
	_, err := d.GetCheck(context.Background(), uniqueCheckID())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSaveCheck_RoundTrip(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	id := uniqueCheckID()
	t0 := time.Now().Add(-10 * time.Minute).Truncate(time.Second)

	check := models.NewCheck(id)
	check.InitialFailureDelay = 45 * time.Second
	check.AppendState(models.StateOK, t0)
	check.AppendState(models.StateCritical, t0.Add(time.Minute))
	alerted := t0.Add(2 * time.Minute)
	check.LastProblemAlert = &alerted
	check.LastNotification = &models.Notification{Type: models.NotificationProblem, State: models.StateCritical, Time: alerted}
	require.NoError(t, d.SaveCheck(ctx, check))

	// Saving again must not duplicate states already stored.
	check.AppendState(models.StateOK, t0.Add(3*time.Minute))
	require.NoError(t, d.SaveCheck(ctx, check))

	got, err := d.GetCheck(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.States, 3)
	assert.Equal(t, models.StateOK, got.State())
	assert.Equal(t, 45*time.Second, got.InitialFailureDelay)
	assert.Zero(t, got.RepeatFailureDelay)
	require.NotNil(t, got.LastProblemAlert)
	assert.True(t, alerted.Equal(*got.LastProblemAlert))
	require.NotNil(t, got.LastNotification)
	assert.Equal(t, models.StateCritical, got.LastAlertState())
	assert.Nil(t, got.UnscheduledMaintenance)
}

func TestSaveCheck_TransitionsWithinOneSecond(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	id := uniqueCheckID()
	at := time.Now().Truncate(time.Second)

	check := models.NewCheck(id)
	check.AppendState(models.StateCritical, at)
	require.NoError(t, d.SaveCheck(ctx, check))

	check.AppendState(models.StateOK, at)
	require.NoError(t, d.SaveCheck(ctx, check))

	got, err := d.GetCheck(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.States, 2)
	assert.Equal(t, models.StateOK, got.State())

	got.AppendState(models.StateCritical, at)
	require.NoError(t, d.SaveCheck(ctx, got))
	again, err := d.GetCheck(ctx, id)
	require.NoError(t, err)
	require.Len(t, again.States, 3)
	assert.Equal(t, models.StateCritical, again.State())
}

func TestScheduledMaintenance(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	id := uniqueCheckID()
	now := time.Now()

	err := d.AddScheduledMaintenance(ctx, id, models.Maintenance{Start: now, End: now.Add(-time.Minute)})
	assert.Error(t, err)

	require.NoError(t, d.AddScheduledMaintenance(ctx, id, models.Maintenance{
		Start: now.Add(-time.Minute), End: now.Add(time.Hour), Summary: "upgrade",
	}))
	got, err := d.GetCheck(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.ScheduledMaintenances, 1)
	assert.True(t, got.InScheduledMaintenance(now))
}

func TestTargetsAndHistory(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	id := uniqueCheckID()
	contactID := "c-" + uuid.NewString()[:8]

	require.NoError(t, d.SaveCheck(ctx, models.NewCheck(id)))
	_, err := d.Pool.Exec(ctx, `INSERT INTO contacts (id, first_name, last_name) VALUES ($1, 'Ada', 'Lovelace')`, contactID)
	require.NoError(t, err)
	_, err = d.Pool.Exec(ctx, `INSERT INTO contact_media (contact_id, medium, address, interval_seconds)
        VALUES ($1, 'sms', '+61400000000', 300), ($1, 'email', 'ada@example.com', 0)`, contactID)
	require.NoError(t, err)
	_, err = d.Pool.Exec(ctx, `INSERT INTO check_contacts (check_id, contact_id) VALUES ($1, $2)`, id, contactID)
	require.NoError(t, err)

	targets, err := d.TargetsForCheck(ctx, id)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, models.MediumEmail, targets[0].Medium)
	assert.Equal(t, models.MediumSMS, targets[1].Medium)
	assert.Equal(t, 5*time.Minute, targets[1].Interval)
	assert.Same(t, targets[0].Contact, targets[1].Contact)

	last, err := d.LastSentTo(ctx, id, contactID, models.MediumSMS, models.StateCritical)
	require.NoError(t, err)
	assert.Nil(t, last)

	event := &models.Event{Entity: "e", Check: "c", Type: models.EventTypeService, State: models.StateCritical, Time: time.Now()}
	msg := models.NewMessage(targets[1], event, models.NotificationProblem)
	sentAt := time.Now().Truncate(time.Second)
	require.NoError(t, d.RecordSent(ctx, id, msg, sentAt))

	last, err = d.LastSentTo(ctx, id, contactID, models.MediumSMS, models.StateCritical)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, sentAt.Equal(*last))

	recent, err := d.RecentNotifications(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, msg.ID, recent[0].ID)
}
