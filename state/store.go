// Package state holds the shared state store of the emulator: one ordered table per
// resource kind plus auxiliary keyed stores for account level singletons.
//
// The store does no locking of its own inside tables. Callers run whole operations
// through Update (exclusive) or View (shared); backend methods assume one of them is held.
package state

import (
	"sort"
	"sync"
)

// Record is a stored resource.
type Record interface {
	ID() string
}

// Table maps ids to records of one kind, keeping insertion order for listing.
type Table struct {
	kind  Kind
	order []string
	items map[string]Record
}

func newTable(kind Kind) *Table {
	return &Table{kind: kind, items: map[string]Record{}}
}

// Kind returns the kind stored in the table.
func (t *Table) Kind() Kind { return t.kind }

// Get returns the record stored under id.
func (t *Table) Get(id string) (Record, bool) {
	r, ok := t.items[id]
	return r, ok
}

// Has reports whether id is stored.
func (t *Table) Has(id string) bool {
	_, ok := t.items[id]
	return ok
}

// Put stores r under its id. Replacing keeps the original position.
func (t *Table) Put(r Record) {
	id := r.ID()
	if _, ok := t.items[id]; !ok {
		t.order = append(t.order, id)
	}
	t.items[id] = r
}

// Delete removes id, reporting whether it was present.
func (t *Table) Delete(id string) bool {
	if _, ok := t.items[id]; !ok {
		return false
	}
	delete(t.items, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.items) }

// IDs returns the stored ids in insertion order.
func (t *Table) IDs() []string {
	return append([]string(nil), t.order...)
}

// Records returns the stored records in insertion order.
func (t *Table) Records() []Record {
	out := make([]Record, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.items[id])
	}
	return out
}

// Missing returns the ids (in request order, deduplicated) that are not stored.
func (t *Table) Missing(ids []string) []string {
	var missing []string
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if !t.Has(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// Store is the shared state of one emulator process. Construct it with New; each test
// builds its own.
type Store struct {
	mu     sync.RWMutex
	tables map[Kind]*Table
	aux    map[string]map[string]any
}

// New returns a store with an empty table for every known kind.
func New() *Store {
	s := &Store{
		tables: make(map[Kind]*Table, len(kindSpecs)),
		aux:    map[string]map[string]any{},
	}
	for _, kind := range Kinds() {
		s.tables[kind] = newTable(kind)
	}
	return s
}

// Update runs fn with exclusive access to the store.
func (s *Store) Update(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// View runs fn with shared access to the store. fn must not mutate.
func (s *Store) View(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

// Table returns the table of kind. Unknown kinds are programming errors.
func (s *Store) Table(kind Kind) *Table {
	t, ok := s.tables[kind]
	if !ok {
		panic("state: no table for kind " + string(kind))
	}
	return t
}

// Find resolves an id in any table, using its prefix to pick the kind.
func (s *Store) Find(id string) (Kind, Record, bool) {
	kind, ok := KindForID(id)
	if !ok {
		return "", nil, false
	}
	r, ok := s.Table(kind).Get(id)
	return kind, r, ok
}

// Counts returns the number of records per kind.
func (s *Store) Counts() map[Kind]int {
	out := make(map[Kind]int, len(s.tables))
	for kind, t := range s.tables {
		out[kind] = t.Len()
	}
	return out
}

// Aux returns the auxiliary keyed store called name, creating it on first use. These hold
// account level singletons (credit defaults, metadata defaults, datafeed subscription).
func (s *Store) Aux(name string) map[string]any {
	m, ok := s.aux[name]
	if !ok {
		m = map[string]any{}
		s.aux[name] = m
	}
	return m
}

// AuxNames lists the auxiliary stores created so far.
func (s *Store) AuxNames() []string {
	names := make([]string, 0, len(s.aux))
	for name := range s.aux {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the record of kind stored under id, typed.
func Get[T Record](s *Store, kind Kind, id string) (T, bool) {
	var zero T
	r, ok := s.Table(kind).Get(id)
	if !ok {
		return zero, false
	}
	typed, ok := r.(T)
	return typed, ok
}

// All returns every record of kind in insertion order, typed.
func All[T Record](s *Store, kind Kind) []T {
	records := s.Table(kind).Records()
	out := make([]T, 0, len(records))
	for _, r := range records {
		if typed, ok := r.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

// Resolve returns the records for ids in request order, or the kind's NotFound error
// naming every id that does not resolve. Nothing is returned when any id is missing.
func Resolve[T Record](s *Store, kind Kind, ids []string) ([]T, error) {
	t := s.Table(kind)
	if missing := t.Missing(ids); len(missing) > 0 {
		return nil, kind.NotFound(missing...)
	}
	out := make([]T, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		r, _ := t.Get(id)
		out = append(out, r.(T))
	}
	return out, nil
}
