// internal/circulation/domain.go
package circulation

import (
	"fmt"
	"time"
)

// Policy holds the ledger's lending rules.
type Policy struct {
	LoanPeriodDays int     `json:"loan_period_days"`
	FinePerDay     float64 `json:"fine_per_day"`
	LoanLimit      int     `json:"loan_limit"`
	FineCeiling    float64 `json:"fine_ceiling"`
}

// DefaultPolicy lends for two weeks at 1.00 per late day, three loans at a
// time, and blocks borrowing above 50.00 owed.
func DefaultPolicy() Policy {
	return Policy{
		LoanPeriodDays: 14,
		FinePerDay:     1.0,
		LoanLimit:      3,
		FineCeiling:    50.0,
	}
}

// Validate rejects policies the ledger cannot operate under.
func (p Policy) Validate() error {
	switch {
	case p.LoanPeriodDays < 1:
		return fmt.Errorf("loan period must be at least 1 day, got %d", p.LoanPeriodDays)
	case p.FinePerDay < 0:
		return fmt.Errorf("fine per day must not be negative, got %.2f", p.FinePerDay)
	case p.LoanLimit < 1:
		return fmt.Errorf("loan limit must be at least 1, got %d", p.LoanLimit)
	case p.FineCeiling < 0:
		return fmt.Errorf("fine ceiling must not be negative, got %.2f", p.FineCeiling)
	}
	return nil
}

func (p Policy) loanPeriod() time.Duration {
	return time.Duration(p.LoanPeriodDays) * day
}

// State is the lifecycle position of a loan at a given moment.
type State string

const (
	StateActive   State = "active"
	StateOverdue  State = "overdue"
	StateReturned State = "returned"
)

// Loan records one copy lent to one member.
type Loan struct {
	ID         string     `json:"id"`
	ItemID     string     `json:"item_id"`
	MemberID   string     `json:"member_id"`
	IssuedAt   time.Time  `json:"issued_at"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	// Fine is authoritative only once the loan is returned.
	Fine    float64 `json:"fine"`
	Paid    bool    `json:"paid"`
	Version int     `json:"version"`
}

// Returned reports whether the loan is closed.
func (l Loan) Returned() bool {
	return l.ReturnedAt != nil
}

// StateAt derives the loan's state at now.
func (l Loan) StateAt(now time.Time) State {
	switch {
	case l.Returned():
		return StateReturned
	case now.After(l.DueAt):
		return StateOverdue
	default:
		return StateActive
	}
}

// ReturnResult is what ReturnLoan reports back.
type ReturnResult struct {
	LoanID      string    `json:"loan_id"`
	DaysOverdue int       `json:"days_overdue"`
	Fine        float64   `json:"fine"`
	ReturnedAt  time.Time `json:"returned_at"`
}

// MemberStatus is recomputed on every request.
type MemberStatus struct {
	MemberID    string  `json:"member_id"`
	Name        string  `json:"name"`
	ActiveLoans int     `json:"active_loans"`
	TotalOwed   float64 `json:"total_owed"`
	CanBorrow   bool    `json:"can_borrow"`
}

// ItemRanking is one row of MostBorrowedItems.
type ItemRanking struct {
	ItemID string `json:"item_id"`
	Title  string `json:"title"`
	Loans  int    `json:"loans"`
}

// MemberRanking is one row of MostActiveMembers.
type MemberRanking struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	Loans    int    `json:"loans"`
}

// CategoryStats summarises one category.
type CategoryStats struct {
	Category        string  `json:"category"`
	TotalItems      int     `json:"total_items"`
	TotalCopies     int     `json:"total_copies"`
	CopiesOnLoan    int     `json:"copies_on_loan"`
	Loans           int     `json:"loans"`
	LoanRate        float64 `json:"loan_rate"`
	MostLoanedID    string  `json:"most_loaned_id,omitempty"`
	MostLoanedTitle string  `json:"most_loaned_title,omitempty"`
	MostLoanedCount int     `json:"most_loaned_count"`
}

// OverdueLoan is one row of OverdueLoans.
type OverdueLoan struct {
	LoanID      string    `json:"loan_id"`
	ItemID      string    `json:"item_id"`
	Title       string    `json:"title"`
	MemberID    string    `json:"member_id"`
	DueAt       time.Time `json:"due_at"`
	DaysOverdue int       `json:"days_overdue"`
	FineToDate  float64   `json:"fine_to_date"`
}

// FinancialReport totals fines over a return-date window.
type FinancialReport struct {
	Start            *time.Time `json:"start,omitempty"`
	End              *time.Time `json:"end,omitempty"`
	TotalFines       float64    `json:"total_fines"`
	PaidFines        float64    `json:"paid_fines"`
	UnpaidFines      float64    `json:"unpaid_fines"`
	IncludesAccruing bool       `json:"includes_accruing"`
	CountedLoans     int        `json:"counted_loans"`
	FinedLoans       int        `json:"fined_loans"`
	AverageFine      float64    `json:"average_fine"`
}

// Discrepancy reports an item whose lent-out copies disagree with its active loans.
type Discrepancy struct {
	ItemID      string `json:"item_id"`
	OnLoan      int    `json:"on_loan"`
	ActiveLoans int    `json:"active_loans"`
}

const (
	aggregateType = "loan"

	EventLoanIssued   = "LoanIssued"
	EventLoanReturned = "LoanReturned"
	EventLoanRenewed  = "LoanRenewed"
	EventFinePaid     = "FinePaid"
)

// LoanIssuedEvent is recorded when a copy is lent.
type LoanIssuedEvent struct {
	LoanID   string    `json:"loan_id"`
	ItemID   string    `json:"item_id"`
	MemberID string    `json:"member_id"`
	IssuedAt time.Time `json:"issued_at"`
	DueAt    time.Time `json:"due_at"`
}

// LoanReturnedEvent is recorded when a copy comes back.
type LoanReturnedEvent struct {
	LoanID      string    `json:"loan_id"`
	ItemID      string    `json:"item_id"`
	MemberID    string    `json:"member_id"`
	ReturnedAt  time.Time `json:"returned_at"`
	DaysOverdue int       `json:"days_overdue"`
	Fine        float64   `json:"fine"`
}

// LoanRenewedEvent is recorded when a due date is extended.
type LoanRenewedEvent struct {
	LoanID      string    `json:"loan_id"`
	PreviousDue time.Time `json:"previous_due"`
	DueAt       time.Time `json:"due_at"`
}

// FinePaidEvent is recorded when a returned loan's fine is settled.
type FinePaidEvent struct {
	LoanID string  `json:"loan_id"`
	Amount float64 `json:"amount"`
}
