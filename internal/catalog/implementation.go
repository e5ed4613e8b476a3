// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lendingdesk/internal/clock"
	"lendingdesk/internal/errs"
	"lendingdesk/internal/journal"
)

const (
	idLength = 13
	minYear  = 1000
)

// service implements the Service interface over in-memory state.
type service struct {
	items   map[string]*Item
	order   []string
	clock   clock.Clock
	journal *journal.Journal
	tracer  trace.Tracer
}

// Option configures the catalog.
type Option func(*service)

// WithClock sets the time source used for timestamps and the year bound.
func WithClock(c clock.Clock) Option {
	return func(s *service) { s.clock = c }
}

// WithJournal records catalog events in j instead of a private journal.
func WithJournal(j *journal.Journal) Option {
	return func(s *service) { s.journal = j }
}

// NewService creates an empty catalog.
func NewService(opts ...Option) Service {
	s := &service{
		items:  make(map[string]*Item),
		clock:  clock.System{},
		tracer: otel.Tracer("lendingdesk/catalog"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.journal == nil {
		s.journal = journal.New(s.clock.Now)
	}
	return s
}

// AddItem creates a new item with every copy available.
func (s *service) AddItem(ctx context.Context, id, title, author string, year int, category string, copies int) (Item, error) {
	const op = "add_item"
	ctx, span := s.tracer.Start(ctx, "catalog.add_item",
		trace.WithAttributes(
			attribute.String("item.id", id),
			attribute.Int("item.copies", copies),
		),
	)
	defer span.End()

	if err := s.validateNewItem(id, title, author, year, copies); err != nil {
		return Item{}, err
	}
	if _, exists := s.items[id]; exists {
		return Item{}, errs.Duplicate(op, "item", id)
	}

	item := &Item{
		ID:          id,
		Title:       title,
		Author:      author,
		Year:        year,
		Category:    category,
		TotalCopies: copies,
		Available:   copies,
	}
	if err := s.record(ctx, item, EventItemAdded, ItemAddedEvent{
		ID:          id,
		Title:       title,
		Author:      author,
		Year:        year,
		Category:    category,
		TotalCopies: copies,
	}); err != nil {
		return Item{}, err
	}

	now := s.clock.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.items[id] = item
	s.order = append(s.order, id)

	return *item, nil
}

func (s *service) validateNewItem(id, title, author string, year, copies int) error {
	const op = "add_item"
	if !ValidID(id) {
		return errs.Validation(op, "item id %q must be a string of %d digits", id, idLength)
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(author) == "" {
		return errs.Validation(op, "title and author must not be empty")
	}
	maxYear := s.clock.Now().Year()
	if year < minYear || year > maxYear {
		return errs.Validation(op, "year must be between %d and %d, got %d", minYear, maxYear, year)
	}
	if copies < 1 {
		return errs.Validation(op, "copies must be at least 1, got %d", copies)
	}
	return nil
}

// ValidID reports whether id has the catalog's fixed 13-digit format.
func ValidID(id string) bool {
	if len(id) != idLength {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// GetItem returns a snapshot of the item.
func (s *service) GetItem(id string) (Item, error) {
	item, ok := s.items[id]
	if !ok {
		return Item{}, errs.NotFound("get_item", "item", id)
	}
	return *item, nil
}

// AdjustCopies applies delta to both the total and the available count.
func (s *service) AdjustCopies(ctx context.Context, id string, delta int) (Item, error) {
	const op = "adjust_copies"
	ctx, span := s.tracer.Start(ctx, "catalog.adjust_copies",
		trace.WithAttributes(
			attribute.String("item.id", id),
			attribute.Int("delta", delta),
		),
	)
	defer span.End()

	item, ok := s.items[id]
	if !ok {
		return Item{}, errs.NotFound(op, "item", id)
	}

	newTotal := item.TotalCopies + delta
	newAvailable := item.Available + delta
	if newTotal < 0 || newAvailable < 0 {
		return Item{}, errs.Validation(op, "adjusting item %s by %d would leave %d total and %d available copies",
			id, delta, newTotal, newAvailable)
	}

	if err := s.updateCopies(ctx, item, "adjusted", newTotal, newAvailable); err != nil {
		return Item{}, err
	}
	return *item, nil
}

// ReserveCopy takes one available copy out of circulation for a loan.
func (s *service) ReserveCopy(ctx context.Context, id string) error {
	const op = "reserve_copy"
	ctx, span := s.tracer.Start(ctx, "catalog.reserve_copy", trace.WithAttributes(attribute.String("item.id", id)))
	defer span.End()

	item, ok := s.items[id]
	if !ok {
		return errs.NotFound(op, "item", id)
	}
	if item.Available == 0 {
		return errs.Unavailable(op, id, item.Title)
	}
	return s.updateCopies(ctx, item, "reserved", item.TotalCopies, item.Available-1)
}

// ReleaseCopy puts a returned copy back into circulation.
func (s *service) ReleaseCopy(ctx context.Context, id string) error {
	const op = "release_copy"
	ctx, span := s.tracer.Start(ctx, "catalog.release_copy", trace.WithAttributes(attribute.String("item.id", id)))
	defer span.End()

	item, ok := s.items[id]
	if !ok {
		return errs.NotFound(op, "item", id)
	}
	if item.Available >= item.TotalCopies {
		return errs.Validation(op, "item %s has no copies on loan", id)
	}
	return s.updateCopies(ctx, item, "released", item.TotalCopies, item.Available+1)
}

func (s *service) updateCopies(ctx context.Context, item *Item, reason string, newTotal, newAvailable int) error {
	if err := s.record(ctx, item, EventItemCopiesUpdated, ItemCopiesUpdatedEvent{
		ID:           item.ID,
		Reason:       reason,
		NewTotal:     newTotal,
		NewAvailable: newAvailable,
	}); err != nil {
		return err
	}
	item.TotalCopies = newTotal
	item.Available = newAvailable
	item.UpdatedAt = s.clock.Now()
	return nil
}

// record appends one event for item and bumps its version.
func (s *service) record(ctx context.Context, item *Item, eventType string, payload any) error {
	event, err := journal.NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	if err := s.journal.AppendEvents(ctx, item.ID, aggregateType, item.Version, []journal.Event{event}); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	item.Version++
	return nil
}

// Search yields snapshots of items matching the criterion, optionally limited
// to one category. Each iteration re-reads the catalog.
func (s *service) Search(criterion Criterion, value, category string) iter.Seq[Item] {
	needle := strings.ToLower(strings.TrimSpace(value))
	return func(yield func(Item) bool) {
		for item := range s.Items() {
			if !matches(item, criterion, needle) {
				continue
			}
			if category != "" && !strings.EqualFold(item.Category, category) {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}
}

func matches(item Item, criterion Criterion, needle string) bool {
	switch criterion {
	case ByTitle:
		return strings.Contains(strings.ToLower(item.Title), needle)
	case ByAuthor:
		return strings.Contains(strings.ToLower(item.Author), needle)
	case ByYear:
		return strconv.Itoa(item.Year) == needle
	default:
		return false
	}
}

// Items yields snapshots of every item in insertion order.
func (s *service) Items() iter.Seq[Item] {
	return func(yield func(Item) bool) {
		for _, id := range s.order {
			if !yield(*s.items[id]) {
				return
			}
		}
	}
}
