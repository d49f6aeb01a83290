package models

import "time"

// Contact is a user's registered notification channels.
// A user with neither Phone nor Email cannot be reached.
type Contact struct {
	UserID string
	Phone  string
	Email  string
}

// Reachable reports whether at least one contact method is registered.
func (c Contact) Reachable() bool {
	return c.Phone != "" || c.Email != ""
}

// Sale is an estate sale run by an organizer.
type Sale struct {
	ID          string
	OrganizerID string
	Title       string
	CreatedAt   time.Time
}

// Subscriber is a user following a sale, in subscription order.
type Subscriber struct {
	Contact      Contact
	SubscribedAt time.Time
}
