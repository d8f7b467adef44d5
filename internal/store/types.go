// Package store provides the catalog's persistence (SQLite) and its derived
// in-memory fuzzy search index (Bleve).
package store

import (
	"context"
	"fmt"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
)

// SchemaVersion is the current on-disk schema. Opening a database written
// by a newer version fails.
const SchemaVersion = 1

// OrderField is a tune column a scan can be ordered by.
type OrderField string

const (
	OrderTitle      OrderField = "title"
	OrderPopularity OrderField = "popularity"
	OrderCreatedAt  OrderField = "createdAt"
	OrderUpdatedAt  OrderField = "updatedAt"
	OrderType       OrderField = "type"
)

// orderColumns maps each order field to its SQL column.
var orderColumns = map[OrderField]string{
	OrderTitle:      "title",
	OrderPopularity: "popularity",
	OrderCreatedAt:  "created_at",
	OrderUpdatedAt:  "updated_at",
	OrderType:       "type",
}

// ParseOrderField validates an order field name. Empty means title.
func ParseOrderField(s string) (OrderField, error) {
	if s == "" {
		return OrderTitle, nil
	}
	f := OrderField(s)
	if _, ok := orderColumns[f]; !ok {
		return "", tberrors.New(tberrors.ErrCodeInvalidOrder,
			fmt.Sprintf("unsupported order field %q", s), nil).
			WithSuggestion("use one of title, popularity, createdAt, updatedAt, type")
	}
	return f, nil
}

// ScanOptions controls a tune scan. Filter fields are pushed into SQL;
// Predicate runs on decoded rows before Offset and Limit apply.
type ScanOptions struct {
	OrderBy   OrderField
	Desc      bool
	Filter    catalog.TuneFilter
	Predicate func(*catalog.Tune) bool
	Offset    int
	Limit     int // 0 = unlimited
}

// Store is the durable table set. All multi-kind mutations are atomic.
type Store interface {
	// ReplaceAll replaces, per kind, every row of each kind whose batch is
	// non-empty. Kinds with an empty batch are left untouched.
	ReplaceAll(ctx context.Context, batch *catalog.Batch) error

	// Clear empties all five tables.
	Clear(ctx context.Context) error

	// ClearKind empties one table.
	ClearKind(ctx context.Context, kind catalog.Kind) error

	// GetTune returns nil, nil when id is unknown.
	GetTune(ctx context.Context, id string) (*catalog.Tune, error)

	ScanTunes(ctx context.Context, opts ScanOptions) ([]*catalog.Tune, error)
	AllTunes(ctx context.Context) ([]*catalog.Tune, error)
	RecordingsForTune(ctx context.Context, tuneID string) ([]*catalog.Recording, error)

	// GetSet returns nil, nil when id is unknown.
	GetSet(ctx context.Context, id string) (*catalog.TuneSet, error)

	Counts(ctx context.Context) (map[catalog.Kind]int, error)
	Close() error
}

// FuzzyHit is one ranked index match.
type FuzzyHit struct {
	Tune  *catalog.Tune
	Score float64
}

// FuzzyConfig tunes approximate matching.
type FuzzyConfig struct {
	// Threshold scales the edit budget per token: round(Threshold * len).
	Threshold float64

	// MinTokenLength drops shorter query tokens.
	MinTokenLength int

	// MaxEdits caps the edit budget.
	MaxEdits int
}

// DefaultFuzzyConfig returns the standard matching parameters.
func DefaultFuzzyConfig() FuzzyConfig {
	return FuzzyConfig{
		Threshold:      0.35,
		MinTokenLength: 2,
		MaxEdits:       2,
	}
}

// FuzzyIndex is a disposable index over a snapshot of tunes.
type FuzzyIndex interface {
	// Build replaces any existing index.
	Build(ctx context.Context, tunes []*catalog.Tune) error

	// Invalidate discards the index.
	Invalidate()

	// Built reports whether an index is present.
	Built() bool

	Query(ctx context.Context, text string, limit int) ([]FuzzyHit, error)

	// Size returns the number of indexed tunes, 0 when not built.
	Size() int

	Close() error
}
