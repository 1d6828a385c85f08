package models

import "time"

// Medium is a delivery channel. Each medium has its own queue and gateway.
type Medium string

const (
	MediumSMS      Medium = "sms"
	MediumEmail    Medium = "email"
	MediumTelegram Medium = "telegram"
	MediumWeb      Medium = "web"
)

// Media lists every medium that has a gateway.
var Media = []Medium{MediumSMS, MediumEmail, MediumTelegram, MediumWeb}

// Contact is a person who can be notified. Read-only for the dispatch side.
type Contact struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Target is one (contact, medium, address) delivery destination for a check.
// Interval, when set, is the minimum time between two alerts about the same
// failing state to this contact on this medium.
type Target struct {
	Contact  *Contact      `json:"contact"`
	Medium   Medium        `json:"medium"`
	Address  string        `json:"address"`
	Interval time.Duration `json:"interval,omitempty"`
}
