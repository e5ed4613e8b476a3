package circulation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/clock"
	"lendingdesk/internal/errs"
	"lendingdesk/internal/journal"
)

const (
	lotrID     = "9780321765723"
	solitudeID = "9788498387081"
	mockingID  = "9780061120084"
	duneID     = "9780441172719"
)

var testStart = time.Date(2025, 10, 21, 9, 0, 0, 0, time.UTC)

type ledgerFixture struct {
	svc     Service
	clock   *clock.Fake
	journal *journal.Journal
}

func newTestLedger(t require.TestingT, policy Policy) ledgerFixture {
	c := clock.NewFake(testStart)
	j := journal.New(c.Now)
	cat := catalog.NewService(catalog.WithClock(c), catalog.WithJournal(j))
	svc, err := NewService(cat, policy, WithClock(c), WithJournal(j))
	require.NoError(t, err)

	ctx := context.Background()
	for _, item := range []struct {
		id, title, author, category string
		year, copies                int
	}{
		{lotrID, "The Lord of the Rings", "J.R.R. Tolkien", "Fantasy", 1954, 5},
		{solitudeID, "Cien años de soledad", "Gabriel García Márquez", "Fiction", 1967, 3},
		{mockingID, "To Kill a Mockingbird", "Harper Lee", "Classic", 1960, 1},
		{duneID, "Dune", "Frank Herbert", "Fantasy", 1965, 2},
	} {
		_, err := svc.AddItem(ctx, item.id, item.title, item.author, item.year, item.category, item.copies)
		require.NoError(t, err)
	}
	for _, m := range []struct{ id, name, contact string }{
		{"M001", "Ana Pérez", "ana@example.com"},
		{"M002", "Luis Gómez", "luis@example.org"},
		{"M003", "Eva Ruiz", "eva@example.net"},
	} {
		_, err := svc.RegisterMember(ctx, m.id, m.name, m.contact)
		require.NoError(t, err)
	}
	return ledgerFixture{svc: svc, clock: c, journal: j}
}

func (f ledgerFixture) available(t *testing.T, itemID string) int {
	t.Helper()
	item, err := f.svc.(*service).catalog.GetItem(itemID)
	require.NoError(t, err)
	return item.Available
}

func TestNewServiceRejectsInvalidPolicy(t *testing.T) {
	cat := catalog.NewService()
	policy := DefaultPolicy()
	policy.LoanLimit = 0

	_, err := NewService(cat, policy)
	assert.Error(t, err)
}

func TestIssueLoan(t *testing.T) {
	f := newTestLedger(t, DefaultPolicy())
	ctx := context.Background()

	loanID, err := f.svc.IssueLoan(ctx, lotrID, "M001")
	require.NoError(t, err)
	assert.Equal(t, "P00001", loanID)
	assert.Equal(t, 4, f.available(t, lotrID))

	loan, err := f.svc.GetLoan(loanID)
	require.NoError(t, err)
	assert.Equal(t, testStart, loan.IssuedAt)
	assert.Equal(t, testStart.AddDate(0, 0, 14), loan.DueAt)
	assert.Equal(t, StateActive, loan.StateAt(f.clock.Now()))
	assert.Equal(t, 1, loan.Version)

	member, err := f.svc.GetMember("M001")
	require.NoError(t, err)
	assert.Equal(t, []string{loanID}, member.ActiveLoans)
	assert.Equal(t, []string{loanID}, member.History)

	second, err := f.svc.IssueLoan(ctx, lotrID, "M002")
	require.NoError(t, err)
	assert.Equal(t, "P00002", second)
}

func TestIssueAndImmediateReturn(t *testing.T) {
	f := newTestLedger(t, DefaultPolicy())
	ctx := context.Background()

	loanID, err := f.svc.IssueLoan(ctx, solitudeID, "M001")
	require.NoError(t, err)

	result, err := f.svc.ReturnLoan(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.DaysOverdue)
	assert.Zero(t, result.Fine)
	assert.Equal(t, 3, f.available(t, solitudeID))

	member, err := f.svc.GetMember("M001")
	require.NoError(t, err)
	assert.Empty(t, member.ActiveLoans)
	assert.Equal(t, []string{loanID}, member.History)
}

func TestIssueLoanPreconditionOrder(t *testing.T) {
	policy := DefaultPolicy()
	policy.LoanLimit = 1

	tests := []struct {
		name     string
		setup    func(t *testing.T, f ledgerFixture)
		itemID   string
		memberID string
		want     *errs.Error
	}{
		{
			name:     "missing member wins over missing item",
			itemID:   "9999999999999",
			memberID: "M404",
			want:     errs.ErrNotFound,
		},
		{
			name:     "missing item",
			itemID:   "9999999999999",
			memberID: "M001",
			want:     errs.ErrNotFound,
		},
		{
			name: "unavailable wins over loan limit",
			setup: func(t *testing.T, f ledgerFixture) {
				_, err := f.svc.IssueLoan(context.Background(), mockingID, "M001")
				require.NoError(t, err)
			},
			itemID:   mockingID,
			memberID: "M001",
			want:     errs.ErrUnavailable,
		},
		{
			name: "loan limit",
			setup: func(t *testing.T, f ledgerFixture) {
				_, err := f.svc.IssueLoan(context.Background(), lotrID, "M001")
				require.NoError(t, err)
			},
			itemID:   solitudeID,
			memberID: "M001",
			want:     errs.ErrLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestLedger(t, policy)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			events := f.journal.Len()
			before := map[string]int{}
			for _, id := range []string{lotrID, solitudeID, mockingID} {
				before[id] = f.available(t, id)
			}

			_, err := f.svc.IssueLoan(context.Background(), tt.itemID, tt.memberID)
			require.ErrorIs(t, err, tt.want)

			assert.Equal(t, events, f.journal.Len(), "failed issue must not record events")
			for id, n := range before {
				assert.Equal(t, n, f.available(t, id), "available copies of %s", id)
			}
		})
	}

	t.Run("missing member names the member", func(t *testing.T) {
		f := newTestLedger(t, policy)
		_, err := f.svc.IssueLoan(context.Background(), "9999999999999", "M404")
		var e *errs.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, "member", e.Entity)
	})
}

func TestLoanLimit(t *testing.T) {
	f := newTestLedger(t, DefaultPolicy())
	ctx := context.Background()

	var loans []string
	for _, itemID := range []string{lotrID, solitudeID, mockingID} {
		id, err := f.svc.IssueLoan(ctx, itemID, "M001")
		require.NoError(t, err)
		loans = append(loans, id)
	}

	_, err := f.svc.IssueLoan(ctx, duneID, "M001")
	require.ErrorIs(t, err, errs.ErrLimitExceeded)

	status, err := f.svc.MemberStatus(ctx, "M001")
	require.NoError(t, err)
	assert.Equal(t, 3, status.ActiveLoans)
	assert.False(t, status.CanBorrow)

	_, err = f.svc.ReturnLoan(ctx, loans[0])
	require.NoError(t, err)

	_, err = f.svc.IssueLoan(ctx, duneID, "M001")
	assert.NoError(t, err)
}

func TestLateReturnFine(t *testing.T) {
	f := newTestLedger(t, Policy{LoanPeriodDays: 7, FinePerDay: 2.0, LoanLimit: 3, FineCeiling: 50})
	ctx := context.Background()

	loanID, err := f.svc.IssueLoan(ctx, lotrID, "M001")
	require.NoError(t, err)

	f.clock.AdvanceDays(10)
	result, err := f.svc.ReturnLoan(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.DaysOverdue)
	assert.InDelta(t, 6.00, result.Fine, 1e-9)

	loan, err := f.svc.GetLoan(loanID)
	require.NoError(t, err)
	assert.Equal(t, StateReturned, loan.StateAt(f.clock.Now()))
	assert.InDelta(t, 6.00, loan.Fine, 1e-9)
	assert.False(t, loan.Paid)
}

func TestReturnLoanErrors(t *testing.T) {
	f := newTestLedger(t, DefaultPolicy())
	ctx := context.Background()

	_, err := f.svc.ReturnLoan(ctx, "P99999")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	loanID, err := f.svc.IssueLoan(ctx, lotrID, "M001")
	require.NoError(t, err)
	_, err = f.svc.ReturnLoan(ctx, loanID)
	require.NoError(t, err)

	events := f.journal.Len()
	_, err = f.svc.ReturnLoan(ctx, loanID)
	assert.ErrorIs(t, err, errs.ErrAlreadyReturned)
	assert.Equal(t, 5, f.available(t, lotrID))
	assert.Equal(t, events, f.journal.Len())
}

func TestRenewLoan(t *testing.T) {
	f := newTestLedger(t, DefaultPolicy())
	ctx := context.Background()

	loanID, err := f.svc.IssueLoan(ctx, lotrID, "M001")
	require.NoError(t, err)

	f.clock.AdvanceDays(10)
	due, err := f.svc.RenewLoan(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, testStart.AddDate(0, 0, 28), due, "renewal extends from the previous due date")

	due, err = f.svc.RenewLoan(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, testStart.AddDate(0, 0, 42), due)

	loan, err := f.svc.GetLoan(loanID)
	require.NoError(t, err)
	assert.Equal(t, due, loan.DueAt)
}

func TestRenewOverdueLoan(t *testing.T) {
	f := newTestLedger(t, DefaultPolicy())
	ctx := context.Background()

	loanID, err := f.svc.IssueLoan(ctx, lotrID, "M001")
	require.NoError(t, err)
	dueBefore := testStart.AddDate(0, 0, 14)

	t.Run("late by hours", func(t *testing.T) {
		f.clock.Set(dueBefore.Add(time.Hour))
		_, err := f.svc.RenewLoan(ctx, loanID)
		require.ErrorIs(t, err, errs.ErrOverdue)
		days, ok := errs.OverdueDays(err)
		assert.True(t, ok)
		assert.Equal(t, 0, days)
	})

	t.Run("late by days", func(t *testing.T) {
		f.clock.Set(dueBefore.AddDate(0, 0, 4))
		_, err := f.svc.RenewLoan(ctx, loanID)
		require.ErrorIs(t, err, errs.ErrOverdue)
		days, _ := errs.OverdueDays(err)
		assert.Equal(t, 4, days)
	})

	loan, err := f.svc.GetLoan(loanID)
	require.NoError(t, err)
	assert.Equal(t, dueBefore, loan.DueAt)

	_, err = f.svc.ReturnLoan(ctx, loanID)
	require.NoError(t, err)
	_, err = f.svc.RenewLoan(ctx, loanID)
	assert.ErrorIs(t, err, errs.ErrAlreadyReturned)
}

func TestFineCeilingBlocksBorrowing(t *testing.T) {
	f := newTestLedger(t, Policy{LoanPeriodDays: 1, FinePerDay: 1.0, LoanLimit: 3, FineCeiling: 5.0})
	ctx := context.Background()

	loanID, err := f.svc.IssueLoan(ctx, lotrID, "M001")
	require.NoError(t, err)

	f.clock.AdvanceDays(7)
	status, err := f.svc.MemberStatus(ctx, "M001")
	require.NoError(t, err)
	assert.InDelta(t, 6.0, status.TotalOwed, 1e-9, "accruing fine counts towards the balance")
	assert.False(t, status.CanBorrow)

	_, err = f.svc.IssueLoan(ctx, solitudeID, "M001")
	require.ErrorIs(t, err, errs.ErrLimitExceeded)

	_, err = f.svc.ReturnLoan(ctx, loanID)
	require.NoError(t, err)
	_, err = f.svc.IssueLoan(ctx, solitudeID, "M001")
	require.ErrorIs(t, err, errs.ErrLimitExceeded, "unpaid fine still blocks")

	paid, err := f.svc.PayFine(ctx, loanID)
	require.NoError(t, err)
	assert.True(t, paid.Paid)

	status, err = f.svc.MemberStatus(ctx, "M001")
	require.NoError(t, err)
	assert.Zero(t, status.TotalOwed)
	assert.True(t, status.CanBorrow)

	_, err = f.svc.IssueLoan(ctx, solitudeID, "M001")
	assert.NoError(t, err)
}

func TestFineAtCeilingStillBorrows(t *testing.T) {
	f := newTestLedger(t, Policy{LoanPeriodDays: 1, FinePerDay: 1.0, LoanLimit: 3, FineCeiling: 5.0})
	ctx := context.Background()

	loanID, err := f.svc.IssueLoan(ctx, lotrID, "M001")
	require.NoError(t, err)
	f.clock.AdvanceDays(6)
	_, err = f.svc.ReturnLoan(ctx, loanID)
	require.NoError(t, err)

	_, err = f.svc.IssueLoan(ctx, solitudeID, "M001")
	assert.NoError(t, err)
}

func TestPayFine(t *testing.T) {
	f := newTestLedger(t, DefaultPolicy())
	ctx := context.Background()

	_, err := f.svc.PayFine(ctx, "P00042")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	onTime, err := f.svc.IssueLoan(ctx, lotrID, "M001")
	require.NoError(t, err)
	late, err := f.svc.IssueLoan(ctx, solitudeID, "M001")
	require.NoError(t, err)

	_, err = f.svc.PayFine(ctx, onTime)
	assert.ErrorIs(t, err, errs.ErrValidation, "active loans are settled on return")

	_, err = f.svc.ReturnLoan(ctx, onTime)
	require.NoError(t, err)
	_, err = f.svc.PayFine(ctx, onTime)
	assert.ErrorIs(t, err, errs.ErrValidation, "nothing to pay")

	f.clock.AdvanceDays(16)
	_, err = f.svc.ReturnLoan(ctx, late)
	require.NoError(t, err)

	loan, err := f.svc.PayFine(ctx, late)
	require.NoError(t, err)
	assert.True(t, loan.Paid)
	assert.InDelta(t, 2.0, loan.Fine, 1e-9)

	_, err = f.svc.PayFine(ctx, late)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestMemberStatusNotFound(t *testing.T) {
	f := newTestLedger(t, DefaultPolicy())
	_, err := f.svc.MemberStatus(context.Background(), "M404")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLoanEventsAreJournaled(t *testing.T) {
	f := newTestLedger(t, DefaultPolicy())
	ctx := context.Background()

	loanID, err := f.svc.IssueLoan(ctx, lotrID, "M001")
	require.NoError(t, err)
	_, err = f.svc.RenewLoan(ctx, loanID)
	require.NoError(t, err)
	_, err = f.svc.ReturnLoan(ctx, loanID)
	require.NoError(t, err)

	events, err := f.journal.LoadEvents(ctx, "loan", loanID, 1, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventLoanIssued, events[0].EventType)
	assert.Equal(t, EventLoanRenewed, events[1].EventType)
	assert.Equal(t, EventLoanReturned, events[2].EventType)

	var issued LoanIssuedEvent
	require.NoError(t, events[0].Decode(&issued))
	assert.Equal(t, "M001", issued.MemberID)
	assert.Equal(t, testStart.AddDate(0, 0, 14), issued.DueAt)
}

func TestMemberIDsDoNotCollideWithOtherRecords(t *testing.T) {
	f := newTestLedger(t, DefaultPolicy())
	ctx := context.Background()

	_, err := f.svc.RegisterMember(ctx, "P00001", "Pablo Núñez", "pablo@example.com")
	require.NoError(t, err)
	_, err = f.svc.RegisterMember(ctx, lotrID, "Lucía Torres", "lucia@example.com")
	require.NoError(t, err)

	for i, want := range []string{"P00001", "P00002", "P00003"} {
		loanID, err := f.svc.IssueLoan(ctx, lotrID, "M001")
		require.NoError(t, err, "issue %d", i)
		assert.Equal(t, want, loanID)
	}

	loanID, err := f.svc.IssueLoan(ctx, solitudeID, "P00001")
	require.NoError(t, err)
	assert.Equal(t, "P00004", loanID)

	_, err = f.svc.RegisterMember(ctx, "P00001", "Pablo Núñez", "pablo@example.com")
	assert.ErrorIs(t, err, errs.ErrDuplicate)
}

func TestDaysOverdue(t *testing.T) {
	due := testStart
	assert.Equal(t, 0, daysOverdue(due, due))
	assert.Equal(t, 0, daysOverdue(due, due.Add(-time.Hour)))
	assert.Equal(t, 0, daysOverdue(due, due.Add(23*time.Hour)))
	assert.Equal(t, 1, daysOverdue(due, due.Add(24*time.Hour)))
	assert.Equal(t, 3, daysOverdue(due, due.Add(80*time.Hour)))
}

// TestLedgerInvariants drives random issue/return/renew/advance sequences and
// checks that copies and active loans never drift apart.
func TestLedgerInvariants(t *testing.T) {
	items := []string{lotrID, solitudeID, mockingID, duneID}
	members := []string{"M001", "M002", "M003"}

	rapid.Check(t, func(rt *rapid.T) {
		policy := DefaultPolicy()
		f := newTestLedger(rt, policy)
		ctx := context.Background()
		var issued []string

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for range steps {
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0:
				itemID := rapid.SampledFrom(items).Draw(rt, "item")
				memberID := rapid.SampledFrom(members).Draw(rt, "member")
				if id, err := f.svc.IssueLoan(ctx, itemID, memberID); err == nil {
					issued = append(issued, id)
				}
			case 1:
				if len(issued) > 0 {
					_, _ = f.svc.ReturnLoan(ctx, rapid.SampledFrom(issued).Draw(rt, "return"))
				}
			case 2:
				if len(issued) > 0 {
					_, _ = f.svc.RenewLoan(ctx, rapid.SampledFrom(issued).Draw(rt, "renew"))
				}
			case 3:
				f.clock.AdvanceDays(rapid.IntRange(1, 20).Draw(rt, "days"))
			}
		}

		assert.Empty(rt, f.svc.Reconcile())
		for _, memberID := range members {
			m, err := f.svc.GetMember(memberID)
			require.NoError(rt, err)
			assert.LessOrEqual(rt, m.ActiveCount(), policy.LoanLimit)
		}
		for _, id := range issued {
			loan, err := f.svc.GetLoan(id)
			require.NoError(rt, err)
			if loan.Returned() {
				assert.GreaterOrEqual(rt, loan.Fine, 0.0)
			} else {
				assert.Zero(rt, loan.Fine)
			}
		}
	})
}

func BenchmarkIssueAndReturn(b *testing.B) {
	f := newTestLedger(b, Policy{LoanPeriodDays: 14, FinePerDay: 1, LoanLimit: 3, FineCeiling: 50})
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		id, err := f.svc.IssueLoan(ctx, lotrID, "M001")
		if err != nil {
			b.Fatal(err)
		}
		if _, err := f.svc.ReturnLoan(ctx, id); err != nil {
			b.Fatal(err)
		}
	}
}
