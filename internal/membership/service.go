// internal/membership/service.go
package membership

import (
	"context"
	"iter"
)

// Service defines the member registry owned by the loan ledger.
type Service interface {
	RegisterMember(ctx context.Context, id, name, contact string) (Member, error)
	GetMember(id string) (Member, error)
	Members() iter.Seq[Member]
	// AttachLoan adds loanID to the member's active set and history.
	AttachLoan(memberID, loanID string) error
	// DetachLoan removes loanID from the member's active set.
	DetachLoan(memberID, loanID string) error
}
