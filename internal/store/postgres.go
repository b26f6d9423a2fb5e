package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tbroekhuis/grondplan/internal/database"
	"github.com/tbroekhuis/grondplan/internal/geometry"
	"github.com/tbroekhuis/grondplan/internal/models"
)

// Postgres persists footprints in a single table. The ring and attributes
// are JSONB; the bounding box lives in plain columns on the same row, so a
// record and its index entry are always written in one atomic row write and
// the in-process spatial index can be rebuilt without parsing geometry.
type Postgres struct {
	db *database.Database
}

// NewPostgres creates a Postgres-backed store on the given pool.
func NewPostgres(db *database.Database) *Postgres {
	return &Postgres{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS footprints (
	id         UUID PRIMARY KEY,
	ring       JSONB NOT NULL,
	attributes JSONB NOT NULL DEFAULT '{}'::jsonb,
	min_x      DOUBLE PRECISION NOT NULL,
	min_y      DOUBLE PRECISION NOT NULL,
	max_x      DOUBLE PRECISION NOT NULL,
	max_y      DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS footprints_bbox_idx ON footprints (min_x, max_x, min_y, max_y);
CREATE INDEX IF NOT EXISTS footprints_attributes_idx ON footprints USING GIN (attributes);
`

// EnsureSchema creates the footprints table and its indexes if absent.
// Called once at startup.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure footprints schema: %w", err)
	}
	return nil
}

const footprintColumns = `id, ring, attributes, created_at, updated_at`

func (p *Postgres) Insert(ctx context.Context, fp *models.Footprint) error {
	ring, attrs, err := encodeFootprint(fp)
	if err != nil {
		return err
	}

	box := fp.Bounds()
	_, err = p.db.Pool.Exec(ctx, `
		INSERT INTO footprints (id, ring, attributes, min_x, min_y, max_x, max_y, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		fp.ID, ring, attrs, box.MinX, box.MinY, box.MaxX, box.MaxY, fp.CreatedAt, fp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert footprint %s: %w", fp.ID, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*models.Footprint, error) {
	row := p.db.Pool.QueryRow(ctx,
		`SELECT `+footprintColumns+` FROM footprints WHERE id = $1`, id)

	fp, err := scanFootprint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query footprint %s: %w", id, err)
	}
	return fp, nil
}

func (p *Postgres) Update(ctx context.Context, fp *models.Footprint) error {
	ring, attrs, err := encodeFootprint(fp)
	if err != nil {
		return err
	}

	box := fp.Bounds()
	tag, err := p.db.Pool.Exec(ctx, `
		UPDATE footprints
		SET ring = $2, attributes = $3,
		    min_x = $4, min_y = $5, max_x = $6, max_y = $7,
		    updated_at = $8
		WHERE id = $1`,
		fp.ID, ring, attrs, box.MinX, box.MinY, box.MaxX, box.MaxY, fp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update footprint %s: %w", fp.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s: %w", fp.ID, ErrNotFound)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.db.Pool.Exec(ctx, `DELETE FROM footprints WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete footprint %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	return nil
}

func (p *Postgres) GetMany(ctx context.Context, ids []string) ([]*models.Footprint, error) {
	if len(ids) == 0 {
		return []*models.Footprint{}, nil
	}

	rows, err := p.db.Pool.Query(ctx,
		`SELECT `+footprintColumns+` FROM footprints
		 WHERE id = ANY($1::uuid[])
		 ORDER BY created_at, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query footprints by id: %w", err)
	}
	defer rows.Close()

	return collectFootprints(rows)
}

func (p *Postgres) List(ctx context.Context) ([]*models.Footprint, error) {
	rows, err := p.db.Pool.Query(ctx,
		`SELECT `+footprintColumns+` FROM footprints ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list footprints: %w", err)
	}
	defer rows.Close()

	return collectFootprints(rows)
}

func (p *Postgres) ListByAttribute(ctx context.Context, key, value string, limit, offset int) ([]*models.Footprint, int, error) {
	var total int
	err := p.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM footprints WHERE attributes ->> $1 = $2`,
		key, value).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count footprints by %s=%s: %w", key, value, err)
	}

	rows, err := p.db.Pool.Query(ctx,
		`SELECT `+footprintColumns+` FROM footprints
		 WHERE attributes ->> $1 = $2
		 ORDER BY created_at, id
		 LIMIT $3 OFFSET $4`,
		key, value, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query footprints by %s=%s: %w", key, value, err)
	}
	defer rows.Close()

	fps, err := collectFootprints(rows)
	if err != nil {
		return nil, 0, err
	}
	return fps, total, nil
}

func (p *Postgres) CountByAttribute(ctx context.Context, key string) ([]CollectionCount, error) {
	rows, err := p.db.Pool.Query(ctx, `
		SELECT attributes ->> $1 AS val, count(*)
		FROM footprints
		WHERE attributes ->> $1 IS NOT NULL
		GROUP BY val
		ORDER BY count(*) DESC, val`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to group footprints by %s: %w", key, err)
	}
	defer rows.Close()

	var out []CollectionCount
	for rows.Next() {
		var c CollectionCount
		if err := rows.Scan(&c.Value, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan attribute group: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attribute groups: %w", err)
	}
	return out, nil
}

// encodeFootprint serializes ring and attributes for their JSONB columns.
func encodeFootprint(fp *models.Footprint) (ring, attrs string, err error) {
	ringVal, err := geometry.Polygon{Ring: fp.Ring}.Value()
	if err != nil {
		return "", "", fmt.Errorf("failed to encode ring for %s: %w", fp.ID, err)
	}
	ringStr, ok := ringVal.(string)
	if !ok {
		return "", "", fmt.Errorf("footprint %s has an empty ring", fp.ID)
	}

	attrBytes, err := json.Marshal(fp.Attributes)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode attributes for %s: %w", fp.ID, err)
	}
	return ringStr, string(attrBytes), nil
}

// scanFootprint reads one footprint row. Works for both pgx.Row and
// pgx.Rows.
func scanFootprint(row interface{ Scan(dest ...any) error }) (*models.Footprint, error) {
	var fp models.Footprint
	var ringJSON, attrJSON []byte

	if err := row.Scan(&fp.ID, &ringJSON, &attrJSON, &fp.CreatedAt, &fp.UpdatedAt); err != nil {
		return nil, err
	}

	var poly geometry.Polygon
	if err := poly.Scan(ringJSON); err != nil {
		return nil, fmt.Errorf("failed to parse ring for footprint %s: %w", fp.ID, err)
	}
	fp.Ring = poly.Ring

	if err := json.Unmarshal(attrJSON, &fp.Attributes); err != nil {
		return nil, fmt.Errorf("failed to parse attributes for footprint %s: %w", fp.ID, err)
	}
	return &fp, nil
}

func collectFootprints(rows pgx.Rows) ([]*models.Footprint, error) {
	out := []*models.Footprint{}
	for rows.Next() {
		fp, err := scanFootprint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan footprint row: %w", err)
		}
		out = append(out, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating footprint rows: %w", err)
	}
	return out, nil
}
