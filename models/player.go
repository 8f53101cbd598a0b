package models

import "time"

// Player is one roster entry of an event. Position is a 1-based ordinal,
// unique within the event's roster; it is never reassigned on removal,
// the next joiner fills the lowest free slot instead.
type Player struct {
	ID       int       `json:"id" db:"id"`
	EventID  int       `json:"event_id" db:"event_id"`
	Name     string    `json:"name" db:"name"`
	Position int       `json:"position" db:"position"`
	AddedAt  time.Time `json:"added_at" db:"added_at"`
}
