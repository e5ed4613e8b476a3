// internal/server/server.go
package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/circulation"
	"lendingdesk/internal/journal"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Server exposes the ledger over HTTP. Every ledger and catalog call runs
// under one mutex; the journal guards itself.
type Server struct {
	mu      sync.Mutex
	ledger  circulation.Service
	catalog catalog.Service
	journal *journal.Journal

	logger        *slog.Logger
	registrations *rate.Limiter
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRegistrationLimit caps member registrations per minute.
func WithRegistrationLimit(perMinute int) Option {
	return func(s *Server) {
		s.registrations = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
}

// New creates a Server. cat must be the catalog the ledger was built over.
func New(ledger circulation.Service, cat catalog.Service, j *journal.Journal, opts ...Option) *Server {
	s := &Server{
		ledger:        ledger,
		catalog:       cat,
		journal:       j,
		logger:        slog.Default(),
		registrations: rate.NewLimiter(rate.Every(1*time.Minute), 5), // 5 requests per minute
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/items", func(r chi.Router) {
		r.Post("/", s.handleAddItem)
		r.Get("/", s.handleSearchItems)
		r.Get("/{id}", s.handleGetItem)
		r.Patch("/{id}/copies", s.handleAdjustCopies)
	})

	r.Get("/catalog/export", s.handleExport)
	r.Post("/catalog/import", s.handleImport)

	r.Route("/members", func(r chi.Router) {
		r.Post("/", s.handleRegisterMember)
		r.Get("/{id}", s.handleGetMember)
		r.Get("/{id}/status", s.handleMemberStatus)
	})

	r.Route("/loans", func(r chi.Router) {
		r.Post("/", s.handleIssueLoan)
		r.Get("/{id}", s.handleGetLoan)
		r.Post("/{id}/return", s.handleReturnLoan)
		r.Post("/{id}/renew", s.handleRenewLoan)
		r.Post("/{id}/payment", s.handlePayFine)
	})

	r.Route("/reports", func(r chi.Router) {
		r.Get("/most-borrowed", s.handleMostBorrowed)
		r.Get("/most-active", s.handleMostActive)
		r.Get("/overdue", s.handleOverdue)
		r.Get("/financial", s.handleFinancial)
		r.Get("/categories/{category}", s.handleCategory)
		r.Get("/reconcile", s.handleReconcile)
	})

	r.Get("/events", s.handleEvents)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
