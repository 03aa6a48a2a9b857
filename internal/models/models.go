package models

import (
	"fmt"
	"time"
)

// Mode classifies which signal source governs a subscriber's light state.
type Mode string

const (
	ModeNone   Mode = "none"        // no address, no device — inert
	ModePing   Mode = "ping_only"   // liveness pings govern transitions
	ModeOutage Mode = "outage_only" // scraped outage data governs transitions
	ModeFull   Mode = "full"        // pings govern, outage data is advisory
)

// Subscriber is one Telegram chat receiving light-state notifications.
type Subscriber struct {
	ChatID          int64      `json:"chat_id" db:"chat_id"`
	Token           string     `json:"token" db:"token"` // ping URL token
	Username        string     `json:"username" db:"username"`
	FirstName       string     `json:"first_name" db:"first_name"`
	LastPingAt      *time.Time `json:"last_ping_at,omitempty" db:"last_ping_at"`
	LightOn         bool       `json:"light_on" db:"light_on"`
	StateStartAt    time.Time  `json:"state_start_at" db:"state_start_at"`
	PrevDuration    string     `json:"prev_duration" db:"prev_duration"` // how long the prior state lasted
	PinnedMessageID int        `json:"pinned_message_id" db:"pinned_message_id"`
	City            string     `json:"city" db:"city"`
	Street          string     `json:"street" db:"street"`
	House           string     `json:"house" db:"house"` // empty means whole street
	Suppressed      bool       `json:"suppressed" db:"suppressed"`
	Mode            Mode       `json:"mode" db:"mode"` // cached, recomputed for decisions
	ProbeTarget     string     `json:"probe_target" db:"probe_target"` // IP/host for ICMP probing
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// HasAddress reports whether the subscriber has a usable outage address.
func (s *Subscriber) HasAddress() bool {
	return s.City != "" && s.Street != ""
}

// HasLiveness reports whether the subscriber has ever pinged.
func (s *Subscriber) HasLiveness() bool {
	return s.LastPingAt != nil && !s.LastPingAt.IsZero()
}

// FormatDuration returns a human-readable Ukrainian duration string.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%d д %d год %d хв", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%d год %d хв", hours, minutes)
	}
	return fmt.Sprintf("%d хв", minutes)
}
