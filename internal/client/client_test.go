package client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/circulation"
	"lendingdesk/internal/clock"
	"lendingdesk/internal/errs"
	"lendingdesk/internal/journal"
	"lendingdesk/internal/server"
)

const (
	lotrID     = "9780321765723"
	solitudeID = "9788498387081"
)

func newTestClient(t *testing.T) (*Client, *clock.Fake) {
	t.Helper()
	c := clock.NewFake(time.Date(2025, 10, 21, 9, 0, 0, 0, time.UTC))
	j := journal.New(c.Now)
	cat := catalog.NewService(catalog.WithClock(c), catalog.WithJournal(j))
	ledger, err := circulation.NewService(cat, circulation.DefaultPolicy(),
		circulation.WithClock(c), circulation.WithJournal(j))
	require.NoError(t, err)

	srv := server.New(ledger, cat, j, server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return New(ts.URL + "/"), c
}

func TestClientRoundTrip(t *testing.T) {
	cl, c := newTestClient(t)
	ctx := context.Background()

	item, err := cl.AddItem(ctx, server.AddItemRequest{
		ID: lotrID, Title: "The Lord of the Rings", Author: "J.R.R. Tolkien", Year: 1954, Category: "Fantasy", Copies: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, item.Available)

	_, err = cl.RegisterMember(ctx, "M001", "Ana Pérez", "ana@example.com")
	require.NoError(t, err)

	loan, err := cl.IssueLoan(ctx, lotrID, "M001")
	require.NoError(t, err)
	assert.Equal(t, "P00001", loan.ID)

	item, err = cl.GetItem(ctx, lotrID)
	require.NoError(t, err)
	assert.Equal(t, 1, item.Available)

	due, err := cl.RenewLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, due.Equal(loan.DueAt.AddDate(0, 0, 14)))

	c.AdvanceDays(30)
	overdue, err := cl.OverdueLoans(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, 2, overdue[0].DaysOverdue)

	result, err := cl.ReturnLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, result.Fine, 1e-9)

	status, err := cl.MemberStatus(ctx, "M001")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, status.TotalOwed, 1e-9)

	paid, err := cl.PayFine(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, paid.Paid)

	report, err := cl.FinancialReport(ctx, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, report.PaidFines, 1e-9)

	ranking, err := cl.MostBorrowedItems(ctx, 5)
	require.NoError(t, err)
	require.Len(t, ranking, 1)
	assert.Equal(t, lotrID, ranking[0].ItemID)

	members, err := cl.MostActiveMembers(ctx, 5)
	require.NoError(t, err)
	require.Len(t, members, 1)

	stats, err := cl.CategoryStatistics(ctx, "Fantasy")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Loans)

	discrepancies, err := cl.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, discrepancies)

	events, err := cl.Events(ctx, 0, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestClientErrorKindsSurvive(t *testing.T) {
	cl, c := newTestClient(t)
	ctx := context.Background()

	_, err := cl.GetItem(ctx, lotrID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = cl.AddItem(ctx, server.AddItemRequest{ID: "bad", Title: "T", Author: "A", Year: 2000, Category: "C", Copies: 1})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = cl.AddItem(ctx, server.AddItemRequest{ID: lotrID, Title: "T", Author: "A", Year: 2000, Category: "C", Copies: 1})
	require.NoError(t, err)
	_, err = cl.RegisterMember(ctx, "M001", "Ana", "ana@example.com")
	require.NoError(t, err)

	loan, err := cl.IssueLoan(ctx, lotrID, "M001")
	require.NoError(t, err)
	_, err = cl.IssueLoan(ctx, lotrID, "M001")
	require.ErrorIs(t, err, errs.ErrUnavailable)

	c.AdvanceDays(17)
	_, err = cl.RenewLoan(ctx, loan.ID)
	require.ErrorIs(t, err, errs.ErrOverdue)
	days, ok := errs.OverdueDays(err)
	assert.True(t, ok)
	assert.Equal(t, 3, days)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "loan", e.Entity)
	assert.Equal(t, loan.ID, e.ID)
}

func TestClientCatalogTransfer(t *testing.T) {
	cl, _ := newTestClient(t)
	ctx := context.Background()

	input := lotrID + "|The Lord of the Rings|J.R.R. Tolkien|1954|Fantasy|5\n" +
		solitudeID + "|Cien años de soledad|Gabriel García Márquez|1967|Fiction|3\n" +
		"broken line\n"
	result, err := cl.ImportCatalog(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Line)

	var out bytes.Buffer
	require.NoError(t, cl.ExportCatalog(ctx, &out))
	assert.Equal(t, strings.TrimSuffix(input, "broken line\n"), out.String())

	items, err := cl.SearchItems(ctx, "author", "márquez", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, solitudeID, items[0].ID)

	all, err := cl.SearchItems(ctx, "", "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDecodeErrorWithoutKind(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	t.Cleanup(ts.Close)

	_, err := New(ts.URL).GetLoan(context.Background(), "P00001")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusGatewayTimeout, statusErr.StatusCode)
	assert.Equal(t, "gateway timeout", statusErr.Message)
	assert.Equal(t, errs.KindUnknown, errs.KindOf(err))
}

func TestBreakerOpensOnServerFailures(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(ts.Close)

	cl := New(ts.URL)
	for range tripAfter {
		_, err := cl.GetItem(context.Background(), lotrID)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
	}

	_, err := cl.GetItem(context.Background(), lotrID)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, tripAfter, hits.Load())
}

func TestBreakerIgnoresDomainErrors(t *testing.T) {
	cl, _ := newTestClient(t)

	for range tripAfter + 1 {
		_, err := cl.GetLoan(context.Background(), "P00001")
		require.ErrorIs(t, err, errs.ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, cl.breaker.State())
}
