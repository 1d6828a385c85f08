package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"alert-router/internal/models"
)

// stateHistoryLimit bounds how many state records GetCheck loads. The
// filters only look at the latest one.
const stateHistoryLimit = 50

// GetCheck loads a check with its recent state history, its current and
// upcoming scheduled maintenance and its acknowledgement window.
func (d *DB) GetCheck(ctx context.Context, id string) (*models.Check, error) {
	var (
		initialDelay, repeatDelay pgtype.Int4
		lastProblemAlert          pgtype.Timestamptz
		notifType, notifState     pgtype.Text
		notifAt                   pgtype.Timestamptz
		ackStart, ackEnd          pgtype.Timestamptz
		ackSummary                pgtype.Text
	)
	query := `
        SELECT initial_failure_delay, repeat_failure_delay, last_problem_alert,
               last_notification_type, last_notification_state, last_notification_at,
               ack_start, ack_end, ack_summary
        FROM checks
        WHERE id = $1`
	err := d.Pool.QueryRow(ctx, query, id).Scan(
		&initialDelay, &repeatDelay, &lastProblemAlert,
		&notifType, &notifState, &notifAt,
		&ackStart, &ackEnd, &ackSummary,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("check %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get check %s: %w", id, err)
	}

	check := models.NewCheck(id)
	if initialDelay.Valid {
		check.InitialFailureDelay = time.Duration(initialDelay.Int32) * time.Second
	}
	if repeatDelay.Valid {
		check.RepeatFailureDelay = time.Duration(repeatDelay.Int32) * time.Second
	}
	if lastProblemAlert.Valid {
		t := lastProblemAlert.Time
		check.LastProblemAlert = &t
	}
	if notifType.Valid {
		check.LastNotification = &models.Notification{
			Type:  models.NotificationType(notifType.String),
			State: models.State(notifState.String),
			Time:  notifAt.Time,
		}
	}
	if ackStart.Valid && ackEnd.Valid {
		check.UnscheduledMaintenance = &models.Maintenance{Start: ackStart.Time, End: ackEnd.Time, Summary: ackSummary.String}
	}

	if check.States, err = d.checkStates(ctx, id); err != nil {
		return nil, err
	}
	if check.ScheduledMaintenances, err = d.scheduledMaintenances(ctx, id); err != nil {
		return nil, err
	}
	return check, nil
}

func (d *DB) checkStates(ctx context.Context, id string) ([]models.CheckState, error) {
	query := `
        SELECT state, changed_at FROM (
            SELECT id, state, changed_at FROM check_states
            WHERE check_id = $1
            ORDER BY changed_at DESC, id DESC
            LIMIT $2
        ) recent
        ORDER BY changed_at, id`
	rows, err := d.Pool.Query(ctx, query, id, stateHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get states for check %s: %w", id, err)
	}
	defer rows.Close()

	var states []models.CheckState
	for rows.Next() {
		var cs models.CheckState
		var st string
		if err := rows.Scan(&st, &cs.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan check state: %w", err)
		}
		cs.State = models.State(st)
		states = append(states, cs)
	}
	return states, rows.Err()
}

func (d *DB) scheduledMaintenances(ctx context.Context, id string) ([]models.Maintenance, error) {
	query := `
        SELECT starts_at, ends_at, summary FROM check_maintenances
        WHERE check_id = $1 AND ends_at > NOW()
        ORDER BY starts_at`
	rows, err := d.Pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get maintenances for check %s: %w", id, err)
	}
	defer rows.Close()

	var windows []models.Maintenance
	for rows.Next() {
		var m models.Maintenance
		if err := rows.Scan(&m.Start, &m.End, &m.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan maintenance: %w", err)
		}
		windows = append(windows, m)
	}
	return windows, rows.Err()
}

// SaveCheck upserts the check's bookkeeping and appends the state records
// added since the check was loaded. Scheduled maintenance is not written.
func (d *DB) SaveCheck(ctx context.Context, check *models.Check) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var notifType, notifState pgtype.Text
	var notifAt pgtype.Timestamptz
	if n := check.LastNotification; n != nil {
		notifType = pgtype.Text{String: string(n.Type), Valid: true}
		notifState = pgtype.Text{String: string(n.State), Valid: true}
		notifAt = pgtype.Timestamptz{Time: n.Time, Valid: true}
	}
	var ackStart, ackEnd pgtype.Timestamptz
	var ackSummary pgtype.Text
	if m := check.UnscheduledMaintenance; m != nil {
		ackStart = pgtype.Timestamptz{Time: m.Start, Valid: true}
		ackEnd = pgtype.Timestamptz{Time: m.End, Valid: true}
		ackSummary = pgtype.Text{String: m.Summary, Valid: true}
	}

	query := `
        INSERT INTO checks (
            id, initial_failure_delay, repeat_failure_delay, last_problem_alert,
            last_notification_type, last_notification_state, last_notification_at,
            ack_start, ack_end, ack_summary, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
        ON CONFLICT (id) DO UPDATE SET
            initial_failure_delay = EXCLUDED.initial_failure_delay,
            repeat_failure_delay = EXCLUDED.repeat_failure_delay,
            last_problem_alert = EXCLUDED.last_problem_alert,
            last_notification_type = EXCLUDED.last_notification_type,
            last_notification_state = EXCLUDED.last_notification_state,
            last_notification_at = EXCLUDED.last_notification_at,
            ack_start = EXCLUDED.ack_start,
            ack_end = EXCLUDED.ack_end,
            ack_summary = EXCLUDED.ack_summary,
            updated_at = NOW()`
	_, err = tx.Exec(ctx, query,
		check.ID, secondsOrNull(check.InitialFailureDelay), secondsOrNull(check.RepeatFailureDelay),
		timeOrNull(check.LastProblemAlert), notifType, notifState, notifAt,
		ackStart, ackEnd, ackSummary)
	if err != nil {
		return fmt.Errorf("failed to save check %s: %w", check.ID, err)
	}

	batch := &pgx.Batch{}
	for _, cs := range check.UnsavedStates() {
		batch.Queue(`INSERT INTO check_states (check_id, state, changed_at) VALUES ($1, $2, $3)`,
			check.ID, string(cs.State), cs.Timestamp)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to append states for check %s: %w", check.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit check %s: %w", check.ID, err)
	}
	check.MarkSaved()
	return nil
}

// AddScheduledMaintenance records a planned window for a check, creating
// the check if needed.
func (d *DB) AddScheduledMaintenance(ctx context.Context, checkID string, m models.Maintenance) error {
	if !m.End.After(m.Start) {
		return fmt.Errorf("maintenance for %s ends before it starts", checkID)
	}
	if _, err := d.Pool.Exec(ctx, `INSERT INTO checks (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, checkID); err != nil {
		return fmt.Errorf("failed to create check %s: %w", checkID, err)
	}
	_, err := d.Pool.Exec(ctx,
		`INSERT INTO check_maintenances (check_id, starts_at, ends_at, summary) VALUES ($1, $2, $3, $4)`,
		checkID, m.Start, m.End, m.Summary)
	if err != nil {
		return fmt.Errorf("failed to add maintenance for %s: %w", checkID, err)
	}
	return nil
}

func secondsOrNull(d time.Duration) pgtype.Int4 {
	if d < time.Second {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(d / time.Second), Valid: true}
}

func timeOrNull(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
