package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// CheckState is one historical state-transition record for a check.
type CheckState struct {
	State     State     `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationType classifies an outbound notification.
type NotificationType string

const (
	NotificationProblem         NotificationType = "problem"
	NotificationRecovery        NotificationType = "recovery"
	NotificationAcknowledgement NotificationType = "acknowledgement"
	NotificationTest            NotificationType = "test"
)

// Notification records the last notification issued for a check.
type Notification struct {
	Type  NotificationType `json:"type"`
	State State            `json:"state"`
	Time  time.Time        `json:"time"`
}

// Maintenance is a window during which problem alerts are suppressed.
type Maintenance struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Summary string    `json:"summary,omitempty"`
}

// Covers reports whether t falls inside the window.
func (m Maintenance) Covers(t time.Time) bool {
	return !t.Before(m.Start) && t.Before(m.End)
}

// Check aggregates the state history and alert bookkeeping of one monitored
// entity/check pair. States are append-only, oldest first.
type Check struct {
	ID                     string        `json:"id"`
	States                 []CheckState  `json:"states"`
	LastProblemAlert       *time.Time    `json:"last_problem_alert,omitempty"`
	LastNotification       *Notification `json:"last_notification,omitempty"`
	InitialFailureDelay    time.Duration `json:"initial_failure_delay,omitempty"`
	RepeatFailureDelay     time.Duration `json:"repeat_failure_delay,omitempty"`
	ScheduledMaintenances  []Maintenance `json:"scheduled_maintenances,omitempty"`
	UnscheduledMaintenance *Maintenance  `json:"unscheduled_maintenance,omitempty"`

	// unsaved counts the trailing States appended since load or MarkSaved.
	unsaved int
}

// NewCheck returns an empty check with no history.
func NewCheck(id string) *Check {
	return &Check{ID: id}
}

// LastChange returns the most recent state record, or nil if there is none.
func (c *Check) LastChange() *CheckState {
	if len(c.States) == 0 {
		return nil
	}
	return &c.States[len(c.States)-1]
}

// State is the check's current aggregate state.
func (c *Check) State() State {
	if last := c.LastChange(); last != nil {
		return last.State
	}
	return ""
}

// AppendState records a transition. It returns false when st equals the
// current state. A time earlier than the latest record is raised to it, so
// States stays in chronological order.
func (c *Check) AppendState(st State, at time.Time) bool {
	last := c.LastChange()
	if last != nil && last.State == st {
		return false
	}
	if last != nil && at.Before(last.Timestamp) {
		at = last.Timestamp
	}
	c.States = append(c.States, CheckState{State: st, Timestamp: at})
	c.unsaved++
	return true
}

// UnsavedStates returns the records appended since the check was loaded or
// last marked saved, oldest first.
func (c *Check) UnsavedStates() []CheckState {
	n := c.unsaved
	if n > len(c.States) {
		n = len(c.States)
	}
	return c.States[len(c.States)-n:]
}

// MarkSaved records that every state has been persisted.
func (c *Check) MarkSaved() {
	c.unsaved = 0
}

// LastAlertState is the state of the last notification, where any
// acknowledgement notification compares as StateAcknowledgement regardless of
// the state stored with it. Empty when nothing was ever sent.
func (c *Check) LastAlertState() State {
	if c.LastNotification == nil {
		return ""
	}
	if c.LastNotification.Type == NotificationAcknowledgement {
		return StateAcknowledgement
	}
	return c.LastNotification.State
}

func (c *Check) InScheduledMaintenance(t time.Time) bool {
	for _, m := range c.ScheduledMaintenances {
		if m.Covers(t) {
			return true
		}
	}
	return false
}

func (c *Check) InUnscheduledMaintenance(t time.Time) bool {
	return c.UnscheduledMaintenance != nil && c.UnscheduledMaintenance.Covers(t)
}
