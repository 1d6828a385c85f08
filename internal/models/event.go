package models

import (
	"fmt"
	"strings"
	"time"
)

// State is a check state as reported by an event or recorded in history.
type State string

const (
	StateOK              State = "ok"
	StateWarning         State = "warning"
	StateCritical        State = "critical"
	StateUnknown         State = "unknown"
	StateAcknowledgement State = "acknowledgement"
	StateTest            State = "test"
)

// FailingStates are the states that represent a problem.
var FailingStates = []State{StateWarning, StateCritical, StateUnknown}

// Failing reports whether s is one of FailingStates.
func (s State) Failing() bool {
	return s == StateWarning || s == StateCritical || s == StateUnknown
}

// ParseState normalises a reported state string.
func ParseState(s string) (State, error) {
	st := State(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StateOK, StateWarning, StateCritical, StateUnknown, StateAcknowledgement, StateTest:
		return st, nil
	default:
		return "", fmt.Errorf("invalid state %q", s)
	}
}

// Event types. Service events carry real monitoring results, action events
// are administrative (acknowledgements, test notifications).
const (
	EventTypeService = "service"
	EventTypeAction  = "action"
)

// Event is one reported observation of a check's state. Treat as immutable.
type Event struct {
	Entity   string        `json:"entity"`
	Check    string        `json:"check"`
	Type     string        `json:"type"`
	State    State         `json:"state"`
	Summary  string        `json:"summary"`
	Time     time.Time     `json:"time"`
	Duration time.Duration `json:"duration,omitempty"`
}

// CheckID returns the "entity:check" identifier the event applies to.
func (e *Event) CheckID() string {
	return e.Entity + ":" + e.Check
}

// IsService reports whether the event is a real monitoring result.
func (e *Event) IsService() bool {
	return e.Type == EventTypeService
}

// Validate checks the fields every event must carry.
func (e *Event) Validate() error {
	if e.Entity == "" || e.Check == "" {
		return fmt.Errorf("event is missing entity or check")
	}
	if _, err := ParseState(string(e.State)); err != nil {
		return err
	}
	if e.Type != EventTypeService && e.Type != EventTypeAction {
		return fmt.Errorf("invalid event type %q", e.Type)
	}
	return nil
}

// SplitCheckID splits an "entity:check" identifier on its first colon.
func SplitCheckID(id string) (entity, check string) {
	entity, check, _ = strings.Cut(id, ":")
	return entity, check
}

// EventPayload is the JSON form of an event on the ingest topic and API. Time is unix
// seconds and defaults to receipt time; Duration is seconds.
type EventPayload struct {
	Entity   string `json:"entity"`
	Check    string `json:"check"`
	Type     string `json:"type"`
	State    string `json:"state"`
	Summary  string `json:"summary"`
	Time     int64  `json:"time,omitempty"`
	Duration int64  `json:"duration,omitempty"`
}

// Event converts the payload, normalising and validating the state.
func (p EventPayload) Event() (*Event, error) {
	state, err := ParseState(p.State)
	if err != nil {
		return nil, err
	}
	ev := &Event{
		Entity:   p.Entity,
		Check:    p.Check,
		Type:     p.Type,
		State:    state,
		Summary:  p.Summary,
		Duration: time.Duration(p.Duration) * time.Second,
	}
	if ev.Type == "" {
		ev.Type = EventTypeService
	}
	if p.Time > 0 {
		ev.Time = time.Unix(p.Time, 0)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// PayloadFor is the inverse of EventPayload.Event.
func PayloadFor(ev *Event) EventPayload {
	p := EventPayload{
		Entity:   ev.Entity,
		Check:    ev.Check,
		Type:     ev.Type,
		State:    string(ev.State),
		Summary:  ev.Summary,
		Duration: int64(ev.Duration / time.Second),
	}
	if !ev.Time.IsZero() {
		p.Time = ev.Time.Unix()
	}
	return p
}
