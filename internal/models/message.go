package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is one unit of outbound notification work for one target. The JSON
// form is the queue wire format shared with external gateways.
type Message struct {
	ID               string           `json:"id"`
	Medium           Medium           `json:"media"`
	Address          string           `json:"address"`
	ContactID        string           `json:"contact_id"`
	ContactFirstName string           `json:"contact_first_name"`
	ContactLastName  string           `json:"contact_last_name"`
	Duration         *int64           `json:"duration,omitempty"` // seconds
	NotificationType NotificationType `json:"notification_type"`
	State            State            `json:"state"`
	Summary          string           `json:"summary"`
	Time             int64            `json:"time"` // unix seconds
	EventID          string           `json:"event_id"`

	// Contact is the originating contact on the producer side. Not serialized.
	Contact *Contact `json:"-"`
}

// NewMessage builds the message for one target, copying the contact's
// identity and the event's fields, and assigns a fresh random id.
func NewMessage(target Target, event *Event, notifType NotificationType) *Message {
	msg := &Message{
		ID:               uuid.NewString(),
		Medium:           target.Medium,
		Address:          target.Address,
		NotificationType: notifType,
		State:            event.State,
		Summary:          event.Summary,
		Time:             event.Time.Unix(),
		EventID:          event.CheckID(),
		Contact:          target.Contact,
	}
	if c := target.Contact; c != nil {
		msg.ContactID = c.ID
		msg.ContactFirstName = c.FirstName
		msg.ContactLastName = c.LastName
	}
	if event.Duration > 0 {
		secs := int64(event.Duration / time.Second)
		msg.Duration = &secs
	}
	return msg
}

// Entity and Check split EventID into its parts.
func (m *Message) Entity() string {
	entity, _ := SplitCheckID(m.EventID)
	return entity
}

func (m *Message) Check() string {
	_, check := SplitCheckID(m.EventID)
	return check
}

// EventTime is Time as a time.Time.
func (m *Message) EventTime() time.Time {
	return time.Unix(m.Time, 0)
}
