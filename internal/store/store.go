// Package store owns persistence of footprint records. The repository layer
// coordinates validation and spatial indexing on top of it; stores only
// read and write records.
package store

import (
	"context"
	"errors"

	"github.com/tbroekhuis/grondplan/internal/models"
)

// ErrNotFound is returned when an operation references an identifier absent
// from the store.
var ErrNotFound = errors.New("footprint not found")

// CollectionCount is one group in an attribute grouping: the attribute
// value and how many footprints carry it.
type CollectionCount struct {
	Value string
	Count int
}

// Store is the persistence contract for footprint records. Implementations
// must be safe for concurrent use and must hand out copies, never internal
// state. All errors besides ErrNotFound are I/O failures and are propagated
// to the caller as-is; the store never retries.
type Store interface {
	// Insert persists a new footprint.
	Insert(ctx context.Context, fp *models.Footprint) error

	// Get returns the footprint with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Footprint, error)

	// Update replaces the stored record for fp.ID, or returns ErrNotFound.
	Update(ctx context.Context, fp *models.Footprint) error

	// Delete removes the record with the given id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// GetMany returns the footprints for the given ids. Missing ids are
	// omitted from the result, not errors; the caller decides whether a
	// gap matters.
	GetMany(ctx context.Context, ids []string) ([]*models.Footprint, error)

	// List returns every stored footprint. Used to rebuild the spatial
	// index at startup.
	List(ctx context.Context) ([]*models.Footprint, error)

	// ListByAttribute pages footprints whose string attribute key equals
	// value, ordered by creation time then id. Returns the page and the
	// total match count.
	ListByAttribute(ctx context.Context, key, value string, limit, offset int) ([]*models.Footprint, int, error)

	// CountByAttribute groups footprints by the values of a string
	// attribute, ordered by count descending then value. Footprints
	// without the attribute are excluded.
	CountByAttribute(ctx context.Context, key string) ([]CollectionCount, error)
}
