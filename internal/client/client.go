// internal/client/client.go
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sony/gobreaker"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/circulation"
	"lendingdesk/internal/errs"
	"lendingdesk/internal/journal"
	"lendingdesk/internal/membership"
	"lendingdesk/internal/server"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// tripAfter consecutive transport failures or 5xx responses open the breaker.
const tripAfter = 5

// Client talks to a lending desk server. Domain errors (4xx) pass through the
// circuit breaker as successes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// New creates a Client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "lending-desk",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= tripAfter
			},
		}),
	}
}

// StatusError is returned for failures the server did not classify.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	resp := out.(*http.Response)
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

// call sends in as JSON (when non-nil) and decodes the response into out.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		raw, err := codec.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := codec.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeError turns an error body back into an *errs.Error so callers can
// match on kinds with errors.Is.
func decodeError(resp *http.Response) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &StatusError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	var body server.ErrorResponse
	if err := codec.Unmarshal(raw, &body); err != nil {
		return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	kind := errs.ParseKind(body.Kind)
	if kind == errs.KindUnknown {
		return &StatusError{StatusCode: resp.StatusCode, Message: body.Error}
	}
	return &errs.Error{
		Kind:        kind,
		Op:          body.Op,
		Entity:      body.Entity,
		ID:          body.ID,
		OverdueDays: body.OverdueDays,
		Message:     body.Message,
	}
}

func (c *Client) AddItem(ctx context.Context, req server.AddItemRequest) (catalog.Item, error) {
	var item catalog.Item
	err := c.call(ctx, http.MethodPost, "/items", req, &item)
	return item, err
}

func (c *Client) GetItem(ctx context.Context, id string) (catalog.Item, error) {
	var item catalog.Item
	err := c.call(ctx, http.MethodGet, "/items/"+url.PathEscape(id), nil, &item)
	return item, err
}

func (c *Client) AdjustCopies(ctx context.Context, id string, delta int) (catalog.Item, error) {
	var item catalog.Item
	err := c.call(ctx, http.MethodPatch, "/items/"+url.PathEscape(id)+"/copies", server.AdjustCopiesRequest{Delta: delta}, &item)
	return item, err
}

// SearchItems lists items matching criterion and value, optionally within a
// category. An empty criterion lists every item.
func (c *Client) SearchItems(ctx context.Context, criterion, value, category string) ([]catalog.Item, error) {
	q := url.Values{}
	if criterion != "" {
		q.Set("by", criterion)
		q.Set("q", value)
	}
	if category != "" {
		q.Set("category", category)
	}
	var items []catalog.Item
	err := c.call(ctx, http.MethodGet, withQuery("/items", q), nil, &items)
	return items, err
}

// ImportCatalog uploads a pipe-delimited catalog file.
func (c *Client) ImportCatalog(ctx context.Context, r io.Reader) (catalog.ImportResult, error) {
	var result catalog.ImportResult
	resp, err := c.do(ctx, http.MethodPost, "/catalog/import", r, "text/plain; charset=utf-8")
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()
	if err := codec.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("decode import result: %w", err)
	}
	return result, nil
}

// ExportCatalog streams the pipe-delimited catalog into w.
func (c *Client) ExportCatalog(ctx context.Context, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, "/catalog/export", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) RegisterMember(ctx context.Context, id, name, contact string) (membership.Member, error) {
	var member membership.Member
	err := c.call(ctx, http.MethodPost, "/members", server.RegisterMemberRequest{ID: id, Name: name, Contact: contact}, &member)
	return member, err
}

func (c *Client) GetMember(ctx context.Context, id string) (membership.Member, error) {
	var member membership.Member
	err := c.call(ctx, http.MethodGet, "/members/"+url.PathEscape(id), nil, &member)
	return member, err
}

func (c *Client) MemberStatus(ctx context.Context, id string) (circulation.MemberStatus, error) {
	var status circulation.MemberStatus
	err := c.call(ctx, http.MethodGet, "/members/"+url.PathEscape(id)+"/status", nil, &status)
	return status, err
}

func (c *Client) IssueLoan(ctx context.Context, itemID, memberID string) (circulation.Loan, error) {
	var loan circulation.Loan
	err := c.call(ctx, http.MethodPost, "/loans", server.IssueLoanRequest{ItemID: itemID, MemberID: memberID}, &loan)
	return loan, err
}

func (c *Client) GetLoan(ctx context.Context, id string) (circulation.Loan, error) {
	var loan circulation.Loan
	err := c.call(ctx, http.MethodGet, "/loans/"+url.PathEscape(id), nil, &loan)
	return loan, err
}

func (c *Client) ReturnLoan(ctx context.Context, id string) (circulation.ReturnResult, error) {
	var result circulation.ReturnResult
	err := c.call(ctx, http.MethodPost, "/loans/"+url.PathEscape(id)+"/return", nil, &result)
	return result, err
}

func (c *Client) RenewLoan(ctx context.Context, id string) (time.Time, error) {
	var resp server.RenewLoanResponse
	err := c.call(ctx, http.MethodPost, "/loans/"+url.PathEscape(id)+"/renew", nil, &resp)
	return resp.DueAt, err
}

func (c *Client) PayFine(ctx context.Context, id string) (circulation.Loan, error) {
	var loan circulation.Loan
	err := c.call(ctx, http.MethodPost, "/loans/"+url.PathEscape(id)+"/payment", nil, &loan)
	return loan, err
}

func (c *Client) MostBorrowedItems(ctx context.Context, n int) ([]circulation.ItemRanking, error) {
	var ranking []circulation.ItemRanking
	err := c.call(ctx, http.MethodGet, "/reports/most-borrowed?n="+strconv.Itoa(n), nil, &ranking)
	return ranking, err
}

func (c *Client) MostActiveMembers(ctx context.Context, n int) ([]circulation.MemberRanking, error) {
	var ranking []circulation.MemberRanking
	err := c.call(ctx, http.MethodGet, "/reports/most-active?n="+strconv.Itoa(n), nil, &ranking)
	return ranking, err
}

func (c *Client) OverdueLoans(ctx context.Context) ([]circulation.OverdueLoan, error) {
	var rows []circulation.OverdueLoan
	err := c.call(ctx, http.MethodGet, "/reports/overdue", nil, &rows)
	return rows, err
}

// FinancialReport fetches fine totals; nil bounds leave the window open.
func (c *Client) FinancialReport(ctx context.Context, start, end *time.Time) (circulation.FinancialReport, error) {
	q := url.Values{}
	if start != nil {
		q.Set("start", start.Format(time.RFC3339))
	}
	if end != nil {
		q.Set("end", end.Format(time.RFC3339))
	}
	var report circulation.FinancialReport
	err := c.call(ctx, http.MethodGet, withQuery("/reports/financial", q), nil, &report)
	return report, err
}

func (c *Client) CategoryStatistics(ctx context.Context, category string) (circulation.CategoryStats, error) {
	var stats circulation.CategoryStats
	err := c.call(ctx, http.MethodGet, "/reports/categories/"+url.PathEscape(category), nil, &stats)
	return stats, err
}

func (c *Client) Reconcile(ctx context.Context) ([]circulation.Discrepancy, error) {
	var discrepancies []circulation.Discrepancy
	err := c.call(ctx, http.MethodGet, "/reports/reconcile", nil, &discrepancies)
	return discrepancies, err
}

// Events pages through the server's journal.
func (c *Client) Events(ctx context.Context, afterSequence int64, limit int) ([]journal.Event, error) {
	q := url.Values{}
	q.Set("after", strconv.FormatInt(afterSequence, 10))
	q.Set("limit", strconv.Itoa(limit))
	var events []journal.Event
	err := c.call(ctx, http.MethodGet, withQuery("/events", q), nil, &events)
	return events, err
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
