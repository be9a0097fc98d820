// Package memstore is an in-memory port.DataStore. It mirrors the PostgREST
// semantics the Supabase adapter relies on (rows are JSON objects keyed by
// "id", patches on missing rows are no-ops) and backs local runs without
// Supabase as well as tests.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
	"github.com/boddenberg/orcamento-engine-go/internal/port"

	"github.com/google/uuid"
)

type row = map[string]any

var _ port.DataStore = (*Store)(nil)

// Store is a thread-safe in-memory data store.
type Store struct {
	mu     sync.RWMutex
	tables map[domain.Entity][]row
	now    func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tables: make(map[domain.Entity][]row),
		now:    time.Now,
	}
}

// Seed inserts fixtures, typically domain structs, as rows.
func (s *Store) Seed(entity domain.Entity, records ...any) error {
	for _, rec := range records {
		r, err := normalize(rec)
		if err != nil {
			return err
		}
		if err := s.Insert(context.Background(), entity, r, nil); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of rows in entity.
func (s *Store) Count(entity domain.Entity) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[entity])
}

func (s *Store) Get(ctx context.Context, entity domain.Entity, id string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.tables[entity] {
		if fmt.Sprint(r["id"]) == id {
			return decode(r, dst)
		}
	}
	return &domain.ErrNotFound{Resource: string(entity), ID: id}
}

func (s *Store) List(ctx context.Context, entity domain.Entity, filter port.Filter, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	matched := make([]row, 0, len(s.tables[entity]))
	for _, r := range s.tables[entity] {
		if matches(r, filter.Eq) {
			matched = append(matched, maps.Clone(r))
		}
	}
	s.mu.RUnlock()

	if filter.Order != "" {
		col, desc := strings.CutSuffix(filter.Order, ".desc")
		col = strings.TrimSuffix(col, ".asc")
		sort.SliceStable(matched, func(i, j int) bool {
			if desc {
				return less(matched[j][col], matched[i][col])
			}
			return less(matched[i][col], matched[j][col])
		})
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return decode(matched, dst)
}

func (s *Store) Insert(ctx context.Context, entity domain.Entity, record map[string]any, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := normalize(record)
	if err != nil {
		return err
	}
	if id, _ := r["id"].(string); id == "" {
		r["id"] = uuid.NewString()
	}
	if _, ok := r["created_at"]; !ok {
		r["created_at"] = s.now().UTC().Format(time.RFC3339Nano)
	}

	s.mu.Lock()
	for _, existing := range s.tables[entity] {
		if existing["id"] == r["id"] {
			s.mu.Unlock()
			return fmt.Errorf("duplicate key value violates unique constraint %s_pkey: %v", entity, r["id"])
		}
	}
	s.tables[entity] = append(s.tables[entity], r)
	stored := maps.Clone(r)
	s.mu.Unlock()

	if dst == nil {
		return nil
	}
	return decode(stored, dst)
}

func (s *Store) Update(ctx context.Context, entity domain.Entity, id string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := normalize(patch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.tables[entity] {
		if fmt.Sprint(r["id"]) == id {
			for k, v := range p {
				r[k] = v
			}
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, entity domain.Entity, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[entity]
	kept := rows[:0]
	for _, r := range rows {
		if fmt.Sprint(r["id"]) != id {
			kept = append(kept, r)
		}
	}
	s.tables[entity] = kept
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func matches(r row, eq map[string]string) bool {
	for col, want := range eq {
		v, ok := r[col]
		if !ok || v == nil || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

func less(a, b any) bool {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	case string:
		if bv, ok := b.(string); ok {
			ta, errA := time.Parse(time.RFC3339Nano, av)
			tb, errB := time.Parse(time.RFC3339Nano, bv)
			if errA == nil && errB == nil {
				return ta.Before(tb)
			}
			return av < bv
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// normalize converts any JSON-encodable value into a generic row, the same
// shape PostgREST would hand back.
func normalize(v any) (row, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var r row
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func decode(v any, dst any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
