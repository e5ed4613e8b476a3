// internal/circulation/service.go
package circulation

import (
	"context"
	"iter"
	"time"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/membership"
)

// Service defines the loan ledger. Callers must serialize access: IssueLoan
// checks availability and then reserves it in the catalog, and that sequence
// is not atomic against interleaved writers.
type Service interface {
	Policy() Policy

	AddItem(ctx context.Context, id, title, author string, year int, category string, copies int) (catalog.Item, error)
	AdjustCopies(ctx context.Context, id string, delta int) (catalog.Item, error)

	RegisterMember(ctx context.Context, id, name, contact string) (membership.Member, error)
	GetMember(id string) (membership.Member, error)
	MemberStatus(ctx context.Context, memberID string) (MemberStatus, error)

	IssueLoan(ctx context.Context, itemID, memberID string) (string, error)
	ReturnLoan(ctx context.Context, loanID string) (ReturnResult, error)
	RenewLoan(ctx context.Context, loanID string) (time.Time, error)
	PayFine(ctx context.Context, loanID string) (Loan, error)
	GetLoan(loanID string) (Loan, error)

	MostBorrowedItems(n int) []ItemRanking
	MostActiveMembers(n int) []MemberRanking
	CategoryStatistics(category string) CategoryStats
	OverdueLoans() iter.Seq[OverdueLoan]
	FinancialReport(start, end *time.Time) FinancialReport
	Reconcile() []Discrepancy
}
