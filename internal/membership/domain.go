// internal/membership/domain.go
package membership

import "time"

// Member is a snapshot of a registered borrower.
type Member struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Contact      string    `json:"contact"`
	RegisteredAt time.Time `json:"registered_at"`
	// ActiveLoans is sorted by loan id.
	ActiveLoans []string `json:"active_loans"`
	// History lists every loan ever issued to the member, oldest first.
	History []string `json:"history"`
	Version int      `json:"version"`
}

// ActiveCount is the number of loans the member currently holds.
func (m Member) ActiveCount() int {
	return len(m.ActiveLoans)
}

const (
	aggregateType = "member"

	EventMemberRegistered = "MemberRegistered"
)

// MemberRegisteredEvent is recorded when a new member registers.
type MemberRegisteredEvent struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
}
