// internal/server/handlers.go
package server

import (
	"bytes"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/circulation"
)

const (
	defaultTopN        = 10
	defaultEventsLimit = 100
	maxEventsLimit     = 1000
)

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := codec.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	s.mu.Lock()
	item, err := s.ledger.AddItem(r.Context(), req.ID, req.Title, req.Author, req.Year, req.Category, req.Copies)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/items/"+item.ID)
	writeJSON(w, http.StatusCreated, item)
}

// handleSearchItems lists the catalog, optionally filtered by ?by=&q= and
// ?category=. An unknown criterion matches nothing.
func (s *Server) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	by, value, category := query.Get("by"), query.Get("q"), query.Get("category")

	s.mu.Lock()
	defer s.mu.Unlock()

	items := []catalog.Item{}
	if by == "" {
		for item := range s.catalog.Items() {
			if category == "" || strings.EqualFold(item.Category, category) {
				items = append(items, item)
			}
		}
		writeJSON(w, http.StatusOK, items)
		return
	}

	if criterion, ok := catalog.ParseCriterion(by); ok {
		items = append(items, slices.Collect(s.catalog.Search(criterion, value, category))...)
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	item, err := s.catalog.GetItem(chi.URLParam(r, "id"))
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleAdjustCopies(w http.ResponseWriter, r *http.Request) {
	var req AdjustCopiesRequest
	if err := codec.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	s.mu.Lock()
	item, err := s.ledger.AdjustCopies(r.Context(), chi.URLParam(r, "id"), req.Delta)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	s.mu.Lock()
	err := catalog.Export(&buf, s.catalog)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	result, err := catalog.Import(r.Context(), s.catalog, r.Body)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	if !s.registrations.Allow() {
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "registration rate limit exceeded"})
		return
	}

	var req RegisterMemberRequest
	if err := codec.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	s.mu.Lock()
	member, err := s.ledger.RegisterMember(r.Context(), req.ID, req.Name, req.Contact)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/members/"+member.ID)
	writeJSON(w, http.StatusCreated, member)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	member, err := s.ledger.GetMember(chi.URLParam(r, "id"))
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleMemberStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, err := s.ledger.MemberStatus(r.Context(), chi.URLParam(r, "id"))
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleIssueLoan(w http.ResponseWriter, r *http.Request) {
	var req IssueLoanRequest
	if err := codec.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loanID, err := s.ledger.IssueLoan(r.Context(), req.ItemID, req.MemberID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loan, err := s.ledger.GetLoan(loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/loans/"+loanID)
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	loan, err := s.ledger.GetLoan(chi.URLParam(r, "id"))
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) handleReturnLoan(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	result, err := s.ledger.ReturnLoan(r.Context(), chi.URLParam(r, "id"))
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRenewLoan(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "id")

	s.mu.Lock()
	due, err := s.ledger.RenewLoan(r.Context(), loanID)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RenewLoanResponse{LoanID: loanID, DueAt: due})
}

func (s *Server) handlePayFine(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	loan, err := s.ledger.PayFine(r.Context(), chi.URLParam(r, "id"))
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) handleMostBorrowed(w http.ResponseWriter, r *http.Request) {
	n, ok := intParam(w, r, "n", defaultTopN)
	if !ok {
		return
	}
	s.mu.Lock()
	ranking := s.ledger.MostBorrowedItems(n)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, ranking)
}

func (s *Server) handleMostActive(w http.ResponseWriter, r *http.Request) {
	n, ok := intParam(w, r, "n", defaultTopN)
	if !ok {
		return
	}
	s.mu.Lock()
	ranking := s.ledger.MostActiveMembers(n)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, ranking)
}

func (s *Server) handleOverdue(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rows := []circulation.OverdueLoan{}
	for row := range s.ledger.OverdueLoans() {
		rows = append(rows, row)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleFinancial(w http.ResponseWriter, r *http.Request) {
	start, ok := timeParam(w, r, "start")
	if !ok {
		return
	}
	end, ok := timeParam(w, r, "end")
	if !ok {
		return
	}
	if start != nil && end != nil && end.Before(*start) {
		badRequest(w, "end must not be before start")
		return
	}

	s.mu.Lock()
	report := s.ledger.FinancialReport(start, end)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	stats := s.ledger.CategoryStatistics(chi.URLParam(r, "category"))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	discrepancies := s.ledger.Reconcile()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, discrepancies)
}

// handleEvents pages through the journal with ?after=<sequence>&limit=<n>.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	after, ok := intParam(w, r, "after", 0)
	if !ok {
		return
	}
	limit, ok := intParam(w, r, "limit", defaultEventsLimit)
	if !ok {
		return
	}
	if limit < 1 || limit > maxEventsLimit {
		badRequest(w, "limit must be between 1 and "+strconv.Itoa(maxEventsLimit))
		return
	}

	events, err := s.journal.StreamEvents(r.Context(), int64(after), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func intParam(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(w, name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}

func timeParam(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		badRequest(w, name+" must be an RFC 3339 timestamp")
		return nil, false
	}
	return &t, true
}
