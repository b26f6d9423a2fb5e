package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tbroekhuis/grondplan/internal/geometry"
	"github.com/tbroekhuis/grondplan/internal/index"
	"github.com/tbroekhuis/grondplan/internal/logger"
	"github.com/tbroekhuis/grondplan/internal/models"
	"github.com/tbroekhuis/grondplan/internal/store"
)

// QueryMode selects the spatial predicate of a bounding-box query.
type QueryMode string

const (
	// ModeIntersects matches footprints sharing any point with the query
	// rectangle. This is the default.
	ModeIntersects QueryMode = "intersects"

	// ModeContains matches only footprints lying entirely within the query
	// rectangle.
	ModeContains QueryMode = "contains"
)

// ParseQueryMode maps the wire value of a query mode onto a QueryMode. The
// empty string selects the default.
func ParseQueryMode(s string) (QueryMode, error) {
	switch QueryMode(s) {
	case "":
		return ModeIntersects, nil
	case ModeIntersects, ModeContains:
		return QueryMode(s), nil
	default:
		return "", fmt.Errorf("unknown query mode %q", s)
	}
}

// FootprintRepository owns the authoritative footprint records and the
// spatial index. Every write runs the geometry validator before anything is
// persisted; the record and its index entry always change as one logical
// operation.
type FootprintRepository interface {
	// Create validates the ring, assigns a fresh identifier, persists the
	// footprint and indexes it. On validation failure nothing is persisted
	// and the error wraps one of the geometry sentinels.
	Create(ctx context.Context, ring geometry.Ring, attrs models.Attributes) (*models.Footprint, error)

	// Get returns the footprint with the given id, or an error wrapping
	// store.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Footprint, error)

	// Update applies a partial update. A nil ring leaves the geometry
	// untouched; a nil attribute map leaves the attributes untouched; a
	// non-nil attribute map replaces them wholesale. If the new geometry
	// fails validation the stored record and index entry are left exactly
	// as they were.
	Update(ctx context.Context, id string, ring geometry.Ring, attrs models.Attributes) (*models.Footprint, error)

	// Delete removes the record and its index entry together. An absent id
	// returns store.ErrNotFound without touching the index.
	Delete(ctx context.Context, id string) error

	// QueryBoundingBox returns footprints matching the query rectangle
	// under the given mode, ordered by creation time then id. Candidates
	// come from the spatial index and are re-tested against the exact
	// geometry.
	QueryBoundingBox(ctx context.Context, box geometry.BoundingBox, mode QueryMode) ([]*models.Footprint, error)

	// ListByAttribute pages footprints whose string attribute key equals
	// value. Returns the page and the total match count.
	ListByAttribute(ctx context.Context, key, value string, limit, offset int) ([]*models.Footprint, int, error)

	// Collections groups footprints by the values of a string attribute.
	Collections(ctx context.Context, key string) ([]store.CollectionCount, error)

	// Rebuild reconstructs the spatial index from the store. The index is
	// a derived cache; this runs at startup.
	Rebuild(ctx context.Context) error
}

type footprintRepository struct {
	store store.Store
	index index.SpatialIndex
	locks *keyedLocks
	log   *logger.Logger
}

// NewFootprintRepository creates a repository over the given store and
// spatial index.
func NewFootprintRepository(st store.Store, idx index.SpatialIndex, log *logger.Logger) FootprintRepository {
	return &footprintRepository{
		store: st,
		index: idx,
		locks: newKeyedLocks(),
		log:   log,
	}
}

func (r *footprintRepository) Create(ctx context.Context, ring geometry.Ring, attrs models.Attributes) (*models.Footprint, error) {
	normalized, err := geometry.Validate(ring)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	fp := &models.Footprint{
		ID:         uuid.New().String(),
		Ring:       normalized,
		Attributes: attrs.Clone(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	unlock := r.locks.Lock(fp.ID)
	defer unlock()

	if err := r.store.Insert(ctx, fp); err != nil {
		return nil, fmt.Errorf("failed to persist footprint: %w", err)
	}
	r.index.Insert(fp.ID, fp.Bounds())

	return fp, nil
}

func (r *footprintRepository) Get(ctx context.Context, id string) (*models.Footprint, error) {
	return r.store.Get(ctx, id)
}

func (r *footprintRepository) Update(ctx context.Context, id string, ring geometry.Ring, attrs models.Attributes) (*models.Footprint, error) {
	// Validate before acquiring the lock or touching any state: an invalid
	// geometry must leave the stored record and index entry untouched.
	var normalized geometry.Ring
	if ring != nil {
		var err error
		normalized, err = geometry.Validate(ring)
		if err != nil {
			return nil, err
		}
	}

	unlock := r.locks.Lock(id)
	defer unlock()

	fp, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if normalized != nil {
		fp.Ring = normalized
	}
	if attrs != nil {
		fp.Attributes = attrs.Clone()
	}
	fp.UpdatedAt = time.Now().UTC()

	if err := r.store.Update(ctx, fp); err != nil {
		// The store write failed, so the index entry still matches the
		// stored geometry. Nothing to roll back.
		return nil, fmt.Errorf("failed to persist footprint update: %w", err)
	}
	if normalized != nil {
		r.index.Update(id, fp.Bounds())
	}

	return fp, nil
}

func (r *footprintRepository) Delete(ctx context.Context, id string) error {
	unlock := r.locks.Lock(id)
	defer unlock()

	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	r.index.Remove(id)
	return nil
}

func (r *footprintRepository) QueryBoundingBox(ctx context.Context, box geometry.BoundingBox, mode QueryMode) ([]*models.Footprint, error) {
	if !box.Valid() {
		return nil, fmt.Errorf("invalid bounding box %s: min must not exceed max", box)
	}

	candidates := r.index.QueryCandidates(box)
	fps, err := r.store.GetMany(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate footprints: %w", err)
	}

	// An index entry without a backing record should never happen; degrade
	// by reporting the entry absent instead of failing the query.
	if len(fps) < len(candidates) {
		found := make(map[string]struct{}, len(fps))
		for _, fp := range fps {
			found[fp.ID] = struct{}{}
		}
		for _, id := range candidates {
			if _, ok := found[id]; !ok {
				r.log.Warn("Spatial index entry has no backing record", map[string]interface{}{
					"footprint_id": id,
				})
			}
		}
	}

	matched := make([]*models.Footprint, 0, len(fps))
	for _, fp := range fps {
		var hit bool
		switch mode {
		case ModeContains:
			hit = geometry.ContainedInRect(fp.Ring, box)
		default:
			hit = geometry.IntersectsRect(fp.Ring, box)
		}
		if hit {
			matched = append(matched, fp)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched, nil
}

func (r *footprintRepository) ListByAttribute(ctx context.Context, key, value string, limit, offset int) ([]*models.Footprint, int, error) {
	return r.store.ListByAttribute(ctx, key, value, limit, offset)
}

func (r *footprintRepository) Collections(ctx context.Context, key string) ([]store.CollectionCount, error) {
	return r.store.CountByAttribute(ctx, key)
}

func (r *footprintRepository) Rebuild(ctx context.Context) error {
	fps, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list footprints for index rebuild: %w", err)
	}
	for _, fp := range fps {
		r.index.Update(fp.ID, fp.Bounds())
	}

	r.log.Info("Spatial index rebuilt", map[string]interface{}{
		"footprints": len(fps),
	})
	return nil
}
