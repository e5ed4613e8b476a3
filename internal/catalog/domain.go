// internal/catalog/domain.go
package catalog

import (
	"strings"
	"time"
)

// Item is a circulating title and its copy counters.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Year        int       `json:"year"`
	Category    string    `json:"category"`
	TotalCopies int       `json:"total_copies"`
	Available   int       `json:"available"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OnLoan is the number of copies currently lent out.
func (i Item) OnLoan() int {
	return i.TotalCopies - i.Available
}

// Criterion selects the field Search matches against.
type Criterion string

const (
	ByTitle  Criterion = "title"
	ByAuthor Criterion = "author"
	ByYear   Criterion = "year"
)

// Aggregate and event names recorded in the journal.
const (
	aggregateType = "item"

	EventItemAdded         = "ItemAdded"
	EventItemCopiesUpdated = "ItemCopiesUpdated"
)

// ItemAddedEvent is recorded when a new item enters the catalog.
type ItemAddedEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Year        int    `json:"year"`
	Category    string `json:"category"`
	TotalCopies int    `json:"total_copies"`
}

// ItemCopiesUpdatedEvent is recorded whenever either copy counter changes.
type ItemCopiesUpdatedEvent struct {
	ID           string `json:"id"`
	Reason       string `json:"reason"`
	NewTotal     int    `json:"new_total"`
	NewAvailable int    `json:"new_available"`
}

// ParseCriterion maps a search field name onto a Criterion.
func ParseCriterion(name string) (Criterion, bool) {
	switch c := Criterion(strings.ToLower(strings.TrimSpace(name))); c {
	case ByTitle, ByAuthor, ByYear:
		return c, true
	default:
		return "", false
	}
}
