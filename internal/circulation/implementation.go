// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/clock"
	"lendingdesk/internal/errs"
	"lendingdesk/internal/journal"
	"lendingdesk/internal/membership"
)

// service implements the Service interface.
type service struct {
	policy  Policy
	catalog catalog.Service
	members membership.Service
	clock   clock.Clock
	journal *journal.Journal
	tracer  trace.Tracer
	metrics instruments

	loans   map[string]*Loan
	loanIDs []string
	loanSeq int
}

// Option configures the ledger.
type Option func(*service)

// WithClock sets the source of "now" for every date rule.
func WithClock(c clock.Clock) Option {
	return func(s *service) { s.clock = c }
}

// WithJournal records ledger events in j.
func WithJournal(j *journal.Journal) Option {
	return func(s *service) { s.journal = j }
}

// NewService creates a ledger over cat. The ledger owns its member registry
// and loans; it only references items by id.
func NewService(cat catalog.Service, policy Policy, opts ...Option) (Service, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	s := &service{
		policy:  policy,
		catalog: cat,
		clock:   clock.System{},
		tracer:  otel.Tracer("lendingdesk/circulation"),
		metrics: newInstruments(otel.Meter("lendingdesk/circulation")),
		loans:   make(map[string]*Loan),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.journal == nil {
		s.journal = journal.New(s.clock.Now)
	}
	s.members = membership.NewService(s.clock, s.journal)
	return s, nil
}

func (s *service) Policy() Policy { return s.policy }

func (s *service) AddItem(ctx context.Context, id, title, author string, year int, category string, copies int) (catalog.Item, error) {
	return s.catalog.AddItem(ctx, id, title, author, year, category, copies)
}

func (s *service) AdjustCopies(ctx context.Context, id string, delta int) (catalog.Item, error) {
	return s.catalog.AdjustCopies(ctx, id, delta)
}

func (s *service) RegisterMember(ctx context.Context, id, name, contact string) (membership.Member, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.register_member",
		trace.WithAttributes(attribute.String("member.id", id)))
	defer span.End()

	return s.members.RegisterMember(ctx, id, name, contact)
}

func (s *service) GetMember(id string) (membership.Member, error) {
	return s.members.GetMember(id)
}

// MemberStatus sums unpaid fines on returned loans and fines accruing on
// active ones.
func (s *service) MemberStatus(ctx context.Context, memberID string) (MemberStatus, error) {
	_, span := s.tracer.Start(ctx, "circulation.member_status",
		trace.WithAttributes(attribute.String("member.id", memberID)))
	defer span.End()

	member, err := s.members.GetMember(memberID)
	if err != nil {
		return MemberStatus{}, errs.NotFound("member_status", "member", memberID)
	}

	status := s.statusOf(member)
	span.SetAttributes(
		attribute.Float64("member.owed", status.TotalOwed),
		attribute.Bool("member.can_borrow", status.CanBorrow),
	)
	return status, nil
}

func (s *service) statusOf(member membership.Member) MemberStatus {
	now := s.clock.Now()

	owed := 0.0
	for _, loanID := range member.History {
		loan, ok := s.loans[loanID]
		if ok && loan.Returned() && !loan.Paid {
			owed += loan.Fine
		}
	}
	for _, loanID := range member.ActiveLoans {
		if loan, ok := s.loans[loanID]; ok {
			owed += s.policy.accruing(loan, now)
		}
	}
	owed = roundCents(owed)

	active := member.ActiveCount()
	return MemberStatus{
		MemberID:    member.ID,
		Name:        member.Name,
		ActiveLoans: active,
		TotalOwed:   owed,
		CanBorrow:   active < s.policy.LoanLimit && owed <= s.policy.FineCeiling,
	}
}

// IssueLoan lends one copy of itemID to memberID and returns the new loan id.
func (s *service) IssueLoan(ctx context.Context, itemID, memberID string) (string, error) {
	const op = "issue_loan"
	ctx, span := s.tracer.Start(ctx, "circulation.issue_loan",
		trace.WithAttributes(
			attribute.String("item.id", itemID),
			attribute.String("member.id", memberID),
		),
	)
	defer span.End()

	// Step 1: Validate the member
	member, err := s.members.GetMember(memberID)
	if err != nil {
		return "", errs.NotFound(op, "member", memberID)
	}

	// Step 2: Check item availability
	item, err := s.catalog.GetItem(itemID)
	if err != nil {
		return "", errs.NotFound(op, "item", itemID)
	}
	if item.Available <= 0 {
		return "", errs.Unavailable(op, itemID, item.Title)
	}

	// Step 3: Check the member's standing
	if member.ActiveCount() >= s.policy.LoanLimit {
		return "", errs.LimitExceeded(op, memberID, "already holds %d of %d allowed loans",
			member.ActiveCount(), s.policy.LoanLimit)
	}
	if status := s.statusOf(member); status.TotalOwed > s.policy.FineCeiling {
		return "", errs.LimitExceeded(op, memberID, "owes %.2f, above the %.2f ceiling",
			status.TotalOwed, s.policy.FineCeiling)
	}

	// Step 4: Reserve the copy (with compensation)
	if err := s.catalog.ReserveCopy(ctx, itemID); err != nil {
		return "", err
	}
	compensate := func(cause error) error {
		if err := s.catalog.ReleaseCopy(ctx, itemID); err != nil {
			return errors.Join(cause, fmt.Errorf("release reserved copy of %s: %w", itemID, err))
		}
		return cause
	}

	// Step 5: Record and store the loan
	now := s.clock.Now()
	loan := &Loan{
		ID:       formatLoanID(s.loanSeq + 1),
		ItemID:   itemID,
		MemberID: memberID,
		IssuedAt: now,
		DueAt:    now.Add(s.policy.loanPeriod()),
	}
	if err := s.record(ctx, loan, EventLoanIssued, LoanIssuedEvent{
		LoanID:   loan.ID,
		ItemID:   itemID,
		MemberID: memberID,
		IssuedAt: loan.IssuedAt,
		DueAt:    loan.DueAt,
	}); err != nil {
		return "", compensate(err)
	}
	if err := s.members.AttachLoan(memberID, loan.ID); err != nil {
		return "", compensate(err)
	}

	s.loanSeq++
	s.loans[loan.ID] = loan
	s.loanIDs = append(s.loanIDs, loan.ID)

	s.metrics.loansIssued.Add(ctx, 1)
	span.SetAttributes(attribute.String("loan.id", loan.ID))
	return loan.ID, nil
}

func formatLoanID(seq int) string {
	return fmt.Sprintf("P%05d", seq)
}

// ReturnLoan closes a loan, fixing its fine and releasing the copy.
func (s *service) ReturnLoan(ctx context.Context, loanID string) (ReturnResult, error) {
	const op = "return_loan"
	ctx, span := s.tracer.Start(ctx, "circulation.return_loan",
		trace.WithAttributes(attribute.String("loan.id", loanID)))
	defer span.End()

	loan, ok := s.loans[loanID]
	if !ok {
		return ReturnResult{}, errs.NotFound(op, "loan", loanID)
	}
	if loan.Returned() {
		return ReturnResult{}, errs.AlreadyReturned(op, loanID)
	}

	now := s.clock.Now()
	days := daysOverdue(loan.DueAt, now)
	fine := s.policy.fineFor(days)

	if err := s.catalog.ReleaseCopy(ctx, loan.ItemID); err != nil {
		return ReturnResult{}, err
	}
	if err := s.record(ctx, loan, EventLoanReturned, LoanReturnedEvent{
		LoanID:      loanID,
		ItemID:      loan.ItemID,
		MemberID:    loan.MemberID,
		ReturnedAt:  now,
		DaysOverdue: days,
		Fine:        fine,
	}); err != nil {
		if rerr := s.catalog.ReserveCopy(ctx, loan.ItemID); rerr != nil {
			return ReturnResult{}, errors.Join(err, fmt.Errorf("re-reserve copy of %s: %w", loan.ItemID, rerr))
		}
		return ReturnResult{}, err
	}

	loan.ReturnedAt = &now
	loan.Fine = fine
	if err := s.members.DetachLoan(loan.MemberID, loanID); err != nil {
		return ReturnResult{}, err
	}

	s.metrics.returned(ctx, fine, days > 0)
	span.SetAttributes(
		attribute.Int("loan.days_overdue", days),
		attribute.Float64("loan.fine", fine),
	)
	return ReturnResult{LoanID: loanID, DaysOverdue: days, Fine: fine, ReturnedAt: now}, nil
}

// RenewLoan extends the due date by one loan period from the current due date.
func (s *service) RenewLoan(ctx context.Context, loanID string) (time.Time, error) {
	const op = "renew_loan"
	ctx, span := s.tracer.Start(ctx, "circulation.renew_loan",
		trace.WithAttributes(attribute.String("loan.id", loanID)))
	defer span.End()

	loan, ok := s.loans[loanID]
	if !ok {
		return time.Time{}, errs.NotFound(op, "loan", loanID)
	}
	if loan.Returned() {
		return time.Time{}, errs.AlreadyReturned(op, loanID)
	}
	now := s.clock.Now()
	if now.After(loan.DueAt) {
		return time.Time{}, errs.Overdue(op, loanID, daysOverdue(loan.DueAt, now))
	}

	newDue := loan.DueAt.Add(s.policy.loanPeriod())
	if err := s.record(ctx, loan, EventLoanRenewed, LoanRenewedEvent{
		LoanID:      loanID,
		PreviousDue: loan.DueAt,
		DueAt:       newDue,
	}); err != nil {
		return time.Time{}, err
	}
	loan.DueAt = newDue

	s.metrics.loansRenewed.Add(ctx, 1)
	return newDue, nil
}

// PayFine settles the fine of a returned loan.
func (s *service) PayFine(ctx context.Context, loanID string) (Loan, error) {
	const op = "pay_fine"
	ctx, span := s.tracer.Start(ctx, "circulation.pay_fine",
		trace.WithAttributes(attribute.String("loan.id", loanID)))
	defer span.End()

	loan, ok := s.loans[loanID]
	if !ok {
		return Loan{}, errs.NotFound(op, "loan", loanID)
	}
	switch {
	case !loan.Returned():
		return Loan{}, errs.Validation(op, "loan %s is still active; fines are settled on return", loanID)
	case loan.Fine == 0:
		return Loan{}, errs.Validation(op, "loan %s carries no fine", loanID)
	case loan.Paid:
		return Loan{}, errs.Validation(op, "fine on loan %s is already paid", loanID)
	}

	if err := s.record(ctx, loan, EventFinePaid, FinePaidEvent{LoanID: loanID, Amount: loan.Fine}); err != nil {
		return Loan{}, err
	}
	loan.Paid = true
	return snapshot(loan), nil
}

// GetLoan returns a snapshot of the loan.
func (s *service) GetLoan(loanID string) (Loan, error) {
	loan, ok := s.loans[loanID]
	if !ok {
		return Loan{}, errs.NotFound("get_loan", "loan", loanID)
	}
	return snapshot(loan), nil
}

func snapshot(l *Loan) Loan {
	out := *l
	if l.ReturnedAt != nil {
		t := *l.ReturnedAt
		out.ReturnedAt = &t
	}
	return out
}

// record appends one event for loan and bumps its version.
func (s *service) record(ctx context.Context, loan *Loan, eventType string, payload any) error {
	event, err := journal.NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	if err := s.journal.AppendEvents(ctx, loan.ID, aggregateType, loan.Version, []journal.Event{event}); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	loan.Version++
	return nil
}
