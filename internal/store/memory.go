package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tbroekhuis/grondplan/internal/models"
)

// Memory is an in-process Store backed by a map. It serves tests and
// development mode; production runs on Postgres.
type Memory struct {
	mu         sync.RWMutex
	footprints map[string]*models.Footprint
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{footprints: make(map[string]*models.Footprint)}
}

func (m *Memory) Insert(_ context.Context, fp *models.Footprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.footprints[fp.ID]; exists {
		return fmt.Errorf("footprint %s already exists", fp.ID)
	}
	m.footprints[fp.ID] = fp.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*models.Footprint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fp, ok := m.footprints[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return fp.Clone(), nil
}

func (m *Memory) Update(_ context.Context, fp *models.Footprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.footprints[fp.ID]; !ok {
		return fmt.Errorf("update %s: %w", fp.ID, ErrNotFound)
	}
	m.footprints[fp.ID] = fp.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.footprints[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	delete(m.footprints, id)
	return nil
}

func (m *Memory) GetMany(_ context.Context, ids []string) ([]*models.Footprint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Footprint, 0, len(ids))
	for _, id := range ids {
		if fp, ok := m.footprints[id]; ok {
			out = append(out, fp.Clone())
		}
	}
	return out, nil
}

func (m *Memory) List(_ context.Context) ([]*models.Footprint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Footprint, 0, len(m.footprints))
	for _, fp := range m.footprints {
		out = append(out, fp.Clone())
	}
	sortByCreation(out)
	return out, nil
}

func (m *Memory) ListByAttribute(_ context.Context, key, value string, limit, offset int) ([]*models.Footprint, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.Footprint
	for _, fp := range m.footprints {
		if s, ok := fp.Attributes[key].AsString(); ok && s == value {
			matched = append(matched, fp)
		}
	}
	sortByCreation(matched)

	total := len(matched)
	if offset >= total {
		return []*models.Footprint{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]*models.Footprint, 0, end-offset)
	for _, fp := range matched[offset:end] {
		page = append(page, fp.Clone())
	}
	return page, total, nil
}

func (m *Memory) CountByAttribute(_ context.Context, key string) ([]CollectionCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, fp := range m.footprints {
		if s, ok := fp.Attributes[key].AsString(); ok {
			counts[s]++
		}
	}

	out := make([]CollectionCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, CollectionCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

// sortByCreation orders footprints by creation time, breaking ties on id so
// pagination windows are stable.
func sortByCreation(fps []*models.Footprint) {
	sort.Slice(fps, func(i, j int) bool {
		if !fps[i].CreatedAt.Equal(fps[j].CreatedAt) {
			return fps[i].CreatedAt.Before(fps[j].CreatedAt)
		}
		return fps[i].ID < fps[j].ID
	})
}
