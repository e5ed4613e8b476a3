// internal/catalog/service.go
package catalog

import (
	"context"
	"iter"
)

// Service defines the catalog operations available to the loan ledger and
// outer surfaces.
type Service interface {
	AddItem(ctx context.Context, id, title, author string, year int, category string, copies int) (Item, error)
	GetItem(id string) (Item, error)
	AdjustCopies(ctx context.Context, id string, delta int) (Item, error)
	Search(criterion Criterion, value, category string) iter.Seq[Item]
	Items() iter.Seq[Item]
	ReserveCopy(ctx context.Context, id string) error
	ReleaseCopy(ctx context.Context, id string) error
}
