package models

import "time"

// Event represents a scheduled pickup game with a capacity-limited roster.
type Event struct {
	ID              int       `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	StartsAt        time.Time `json:"starts_at" db:"starts_at"`
	Location        string    `json:"location" db:"location"`
	Latitude        *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude       *float64  `json:"longitude,omitempty" db:"longitude"`
	Capacity        int       `json:"capacity" db:"capacity"`
	Description     *string   `json:"description,omitempty" db:"description"`
	DurationMinutes *int      `json:"duration_minutes,omitempty" db:"duration_minutes"`
	ShareSlug       string    `json:"share_slug" db:"share_slug"`
	CreatedBy       int       `json:"created_by" db:"created_by"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	CoverKey        *string   `json:"-" db:"cover_key"`
	CoverURL        *string   `json:"cover_url,omitempty" db:"-"`

	// Joined in memory from the players collection, ordered by position.
	Players []Player `json:"players" db:"-"`
}

// PlayerCount returns the number of confirmed roster entries.
func (e *Event) PlayerCount() int {
	return len(e.Players)
}

// IsFull reports whether the roster has reached capacity.
func (e *Event) IsFull() bool {
	return len(e.Players) >= e.Capacity
}
