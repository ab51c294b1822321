package domain

import "strings"

// Buyer is the purchasing user. Read-only for issuance.
type Buyer struct {
	ID    string
	Name  string
	Email string
}

// Event is the ticketed event. StartsAt may be pending and Venue may be nil.
type Event struct {
	ID       string
	Title    string
	StartsAt Timestamp
	Venue    *string
}

// VenueOrUnspecified returns the venue or the Unspecified sentinel.
func (e *Event) VenueOrUnspecified() string {
	if e.Venue == nil || strings.TrimSpace(*e.Venue) == "" {
		return Unspecified
	}
	return *e.Venue
}
