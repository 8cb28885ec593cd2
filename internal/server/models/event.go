package models

import "time"

// Event is an organizer's off-chain event listing. Tickets reference it
// through the on-chain eventInfo string, which carries the event ID.
type Event struct {
	ID          string
	OrganizerID string
	Name        string
	Description string
	Date        time.Time
	Location    string
	Type        string
	ImageKey    string
	CreatedAt   time.Time
}
