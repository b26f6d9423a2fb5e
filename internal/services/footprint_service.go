package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/tbroekhuis/grondplan/internal/config"
	"github.com/tbroekhuis/grondplan/internal/geometry"
	"github.com/tbroekhuis/grondplan/internal/logger"
	"github.com/tbroekhuis/grondplan/internal/models"
	"github.com/tbroekhuis/grondplan/internal/repository"
	"github.com/tbroekhuis/grondplan/internal/store"
)

// Service-level errors
var (
	ErrFootprintNotFound  = errors.New("footprint not found")
	ErrInvalidBoundingBox = errors.New("invalid bounding box")
	ErrInvalidQueryMode   = errors.New("invalid query mode")
	ErrInvalidLimit       = errors.New("invalid limit")
	ErrInvalidOffset      = errors.New("offset must be non-negative")
)

// Page is one window of a paginated query result.
type Page struct {
	Footprints     []*models.Footprint
	NumberMatched  int
	NumberReturned int
	Limit          int
	Offset         int
}

// Collection is a group of footprints sharing one value of the collection
// attribute.
type Collection struct {
	ID    string
	Count int
}

// FootprintService defines the business logic over footprint records.
type FootprintService interface {
	// CreateFootprint validates and stores a new footprint. Geometry
	// validation failures surface as the geometry package sentinels.
	CreateFootprint(ctx context.Context, ring geometry.Ring, attrs models.Attributes) (*models.Footprint, error)

	// GetFootprint returns one footprint, or ErrFootprintNotFound.
	GetFootprint(ctx context.Context, id string) (*models.Footprint, error)

	// UpdateFootprint applies a partial update; nil parts stay unchanged.
	UpdateFootprint(ctx context.Context, id string, ring geometry.Ring, attrs models.Attributes) (*models.Footprint, error)

	// DeleteFootprint removes a footprint, or returns ErrFootprintNotFound.
	DeleteFootprint(ctx context.Context, id string) error

	// QueryBoundingBox returns a page of footprints matching the query
	// rectangle under the given mode ("intersects", "contains" or empty
	// for the default).
	QueryBoundingBox(ctx context.Context, box geometry.BoundingBox, mode string, limit, offset int) (*Page, error)

	// ListCollections groups footprints by the configured collection
	// attribute, largest group first.
	ListCollections(ctx context.Context) ([]Collection, error)

	// CollectionItems pages the footprints of one collection.
	CollectionItems(ctx context.Context, collection string, limit, offset int) (*Page, error)

	// CollectionItem returns one footprint of a collection; a footprint
	// outside the collection is ErrFootprintNotFound.
	CollectionItem(ctx context.Context, collection, id string) (*models.Footprint, error)
}

type footprintService struct {
	repo repository.FootprintRepository
	log  *logger.Logger
	cfg  config.QueryConfig
}

// NewFootprintService creates a FootprintService over the repository.
func NewFootprintService(repo repository.FootprintRepository, log *logger.Logger, cfg config.QueryConfig) FootprintService {
	return &footprintService{
		repo: repo,
		log:  log,
		cfg:  cfg,
	}
}

func (s *footprintService) CreateFootprint(ctx context.Context, ring geometry.Ring, attrs models.Attributes) (*models.Footprint, error) {
	fp, err := s.repo.Create(ctx, ring, attrs)
	if err != nil {
		if isGeometryError(err) {
			s.log.Warn("Rejected invalid footprint geometry", map[string]interface{}{
				"reason": err.Error(),
			})
			return nil, err
		}
		s.log.Error("Failed to create footprint", err, nil)
		return nil, fmt.Errorf("failed to create footprint: %w", err)
	}

	s.log.Info("Footprint created", map[string]interface{}{
		"footprint_id": fp.ID,
		"vertices":     len(fp.Ring),
	})
	return fp, nil
}

func (s *footprintService) GetFootprint(ctx context.Context, id string) (*models.Footprint, error) {
	fp, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFootprintNotFound, id)
		}
		s.log.Error("Failed to get footprint", err, map[string]interface{}{
			"footprint_id": id,
		})
		return nil, fmt.Errorf("failed to get footprint: %w", err)
	}
	return fp, nil
}

func (s *footprintService) UpdateFootprint(ctx context.Context, id string, ring geometry.Ring, attrs models.Attributes) (*models.Footprint, error) {
	fp, err := s.repo.Update(ctx, id, ring, attrs)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("%w: %s", ErrFootprintNotFound, id)
		case isGeometryError(err):
			s.log.Warn("Rejected invalid footprint geometry on update", map[string]interface{}{
				"footprint_id": id,
				"reason":       err.Error(),
			})
			return nil, err
		default:
			s.log.Error("Failed to update footprint", err, map[string]interface{}{
				"footprint_id": id,
			})
			return nil, fmt.Errorf("failed to update footprint: %w", err)
		}
	}

	s.log.Info("Footprint updated", map[string]interface{}{
		"footprint_id": id,
		"geometry":     ring != nil,
		"attributes":   attrs != nil,
	})
	return fp, nil
}

func (s *footprintService) DeleteFootprint(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrFootprintNotFound, id)
		}
		s.log.Error("Failed to delete footprint", err, map[string]interface{}{
			"footprint_id": id,
		})
		return fmt.Errorf("failed to delete footprint: %w", err)
	}

	s.log.Info("Footprint deleted", map[string]interface{}{
		"footprint_id": id,
	})
	return nil
}

func (s *footprintService) QueryBoundingBox(ctx context.Context, box geometry.BoundingBox, mode string, limit, offset int) (*Page, error) {
	if err := validateBox(box); err != nil {
		s.log.Warn("Invalid bounding box in query", map[string]interface{}{
			"bbox": box.String(),
		})
		return nil, err
	}

	queryMode, err := repository.ParseQueryMode(mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQueryMode, mode)
	}

	limit, offset, err = s.normalizePagination(limit, offset)
	if err != nil {
		return nil, err
	}

	s.log.Info("Querying footprints by bounding box", map[string]interface{}{
		"bbox":   box.String(),
		"mode":   string(queryMode),
		"limit":  limit,
		"offset": offset,
	})

	matched, err := s.repo.QueryBoundingBox(ctx, box, queryMode)
	if err != nil {
		s.log.Error("Bounding box query failed", err, map[string]interface{}{
			"bbox": box.String(),
		})
		return nil, fmt.Errorf("failed to query bounding box: %w", err)
	}

	page := window(matched, limit, offset)
	return &Page{
		Footprints:     page,
		NumberMatched:  len(matched),
		NumberReturned: len(page),
		Limit:          limit,
		Offset:         offset,
	}, nil
}

func (s *footprintService) ListCollections(ctx context.Context) ([]Collection, error) {
	counts, err := s.repo.Collections(ctx, s.cfg.CollectionAttribute)
	if err != nil {
		s.log.Error("Failed to list collections", err, map[string]interface{}{
			"attribute": s.cfg.CollectionAttribute,
		})
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	out := make([]Collection, 0, len(counts))
	for _, c := range counts {
		out = append(out, Collection{ID: c.Value, Count: c.Count})
	}
	return out, nil
}

func (s *footprintService) CollectionItems(ctx context.Context, collection string, limit, offset int) (*Page, error) {
	limit, offset, err := s.normalizePagination(limit, offset)
	if err != nil {
		return nil, err
	}

	fps, total, err := s.repo.ListByAttribute(ctx, s.cfg.CollectionAttribute, collection, limit, offset)
	if err != nil {
		s.log.Error("Failed to list collection items", err, map[string]interface{}{
			"collection": collection,
		})
		return nil, fmt.Errorf("failed to list collection items: %w", err)
	}

	return &Page{
		Footprints:     fps,
		NumberMatched:  total,
		NumberReturned: len(fps),
		Limit:          limit,
		Offset:         offset,
	}, nil
}

func (s *footprintService) CollectionItem(ctx context.Context, collection, id string) (*models.Footprint, error) {
	fp, err := s.GetFootprint(ctx, id)
	if err != nil {
		return nil, err
	}

	if v, ok := fp.Attributes[s.cfg.CollectionAttribute].AsString(); !ok || v != collection {
		return nil, fmt.Errorf("%w: %s not in collection %s", ErrFootprintNotFound, id, collection)
	}
	return fp, nil
}

// normalizePagination applies the default limit and bounds both values.
// Limit 0 means "not supplied".
func (s *footprintService) normalizePagination(limit, offset int) (int, int, error) {
	if limit == 0 {
		limit = s.cfg.LimitDefault
	}
	if limit < 1 || limit > s.cfg.LimitMax {
		return 0, 0, fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidLimit, s.cfg.LimitMax, limit)
	}
	if offset < 0 {
		return 0, 0, fmt.Errorf("%w: got %d", ErrInvalidOffset, offset)
	}
	return limit, offset, nil
}

// validateBox rejects non-finite coordinates and inverted extents.
func validateBox(box geometry.BoundingBox) error {
	for _, v := range []float64{box.MinX, box.MinY, box.MaxX, box.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coordinates must be finite", ErrInvalidBoundingBox)
		}
	}
	if !box.Valid() {
		return fmt.Errorf("%w: min must not exceed max (%s)", ErrInvalidBoundingBox, box)
	}
	return nil
}

// window slices one pagination window out of the full match list.
func window(fps []*models.Footprint, limit, offset int) []*models.Footprint {
	if offset >= len(fps) {
		return []*models.Footprint{}
	}
	end := offset + limit
	if end > len(fps) {
		end = len(fps)
	}
	return fps[offset:end]
}

// isGeometryError reports whether err wraps one of the geometry validation
// sentinels.
func isGeometryError(err error) bool {
	return errors.Is(err, geometry.ErrTooFewVertices) ||
		errors.Is(err, geometry.ErrSelfIntersecting) ||
		errors.Is(err, geometry.ErrZeroArea)
}
