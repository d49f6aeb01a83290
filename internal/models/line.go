package models

import "time"

// LineStatus is the state of a line entry.
//
//	WAITING --call--> CALLED --serve--> SERVED
//	WAITING|CALLED --cancel--> CANCELLED
type LineStatus string

const (
	LineWaiting   LineStatus = "WAITING"
	LineCalled    LineStatus = "CALLED"
	LineServed    LineStatus = "SERVED"
	LineCancelled LineStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s LineStatus) Terminal() bool {
	return s == LineServed || s == LineCancelled
}

// LineEntry is a shopper's turn in the physical line of a sale.
type LineEntry struct {
	// ID is the unique identifier for the entry (UUID format).
	ID string

	SaleID string

	UserID string

	// Contact is the snapshot taken when the line was started.
	Contact Contact

	// Position is dense per sale: 1..N, assigned once.
	Position int

	Status LineStatus

	// NotifiedAt is set when the entry is called.
	NotifiedAt *time.Time

	// EnteredAt is set when the shopper is served.
	EnteredAt *time.Time

	CreatedAt time.Time
}
