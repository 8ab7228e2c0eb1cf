package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps tables in process memory. Each call is individually
// serialized, but nothing spans calls, so read-then-write sequences built on
// top of it race exactly like they do against the remote sheet.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string][]Row
	nextID map[string]int64
	atomic bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithAtomicIncrement makes the store expose the Incrementer capability.
func WithAtomicIncrement() MemoryOption {
	return func(m *MemoryStore) { m.atomic = true }
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		tables: map[string][]Row{},
		nextID: map[string]int64{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seed inserts rows as-is, keeping their ids.
func (m *MemoryStore) Seed(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		r := clone(row)
		if id, ok := Int64(r, IDField); ok && id > m.nextID[table] {
			m.nextID[table] = id
		}
		m.tables[table] = append(m.tables[table], r)
	}
}

// ListAll returns copies of every row in table.
func (m *MemoryStore) ListAll(_ context.Context, table string) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]Row, 0, len(m.tables[table]))
	for _, row := range m.tables[table] {
		rows = append(rows, clone(row))
	}
	return rows, nil
}

// FindOne scans the table for the first match.
func (m *MemoryStore) FindOne(ctx context.Context, table string, pred func(Row) bool) (Row, bool, error) {
	return findOne(ctx, m, table, pred)
}

// UpdateFields overwrites the given fields of row id.
func (m *MemoryStore) UpdateFields(_ context.Context, table string, id int64, fields Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.lookupLocked(table, id)
	if row == nil {
		return ErrRowNotFound
	}
	for k, v := range fields {
		if k == IDField {
			continue
		}
		row[k] = v
	}
	return nil
}

// Create appends a row with the next id of the table.
func (m *MemoryStore) Create(_ context.Context, table string, fields Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID[table]++
	row := clone(fields)
	row[IDField] = m.nextID[table]
	m.tables[table] = append(m.tables[table], row)
	return clone(row), nil
}

// Increment adds delta to field of row id under the store lock.
func (m *MemoryStore) Increment(_ context.Context, table string, id int64, field string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.lookupLocked(table, id)
	if row == nil {
		return ErrRowNotFound
	}
	var cur int64
	if v := row[field]; v != nil {
		n, ok := Int64(row, field)
		if !ok {
			return fmt.Errorf("%s of row %d in %s is not an integer: %v", field, id, table, v)
		}
		cur = n
	}
	row[field] = cur + delta
	return nil
}

func (m *MemoryStore) lookupLocked(table string, id int64) Row {
	for _, row := range m.tables[table] {
		if rid, ok := Int64(row, IDField); ok && rid == id {
			return row
		}
	}
	return nil
}

// AsStore returns m with the Incrementer capability only when the store was
// built WithAtomicIncrement. Callers discover the capability by type assertion.
func (m *MemoryStore) AsStore() Store {
	if m.atomic {
		return m
	}
	return plainStore{m}
}

type plainStore struct{ m *MemoryStore }

func (p plainStore) ListAll(ctx context.Context, table string) ([]Row, error) {
	return p.m.ListAll(ctx, table)
}

func (p plainStore) FindOne(ctx context.Context, table string, pred func(Row) bool) (Row, bool, error) {
	return p.m.FindOne(ctx, table, pred)
}

func (p plainStore) UpdateFields(ctx context.Context, table string, id int64, fields Row) error {
	return p.m.UpdateFields(ctx, table, id, fields)
}

func (p plainStore) Create(ctx context.Context, table string, fields Row) (Row, error) {
	return p.m.Create(ctx, table, fields)
}
