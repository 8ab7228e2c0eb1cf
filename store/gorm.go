package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// GormStore maps tables onto SQL tables addressed by name. It implements
// Incrementer with a single UPDATE ... SET col = col + ? statement.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// ListAll selects every row of table.
func (s *GormStore) ListAll(ctx context.Context, table string) ([]Row, error) {
	var rows []map[string]any
	if err := s.db.WithContext(ctx).Table(table).Order(IDField).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, Row(r))
	}
	return out, nil
}

// FindOne scans the table like the other backends so callers see the same semantics.
func (s *GormStore) FindOne(ctx context.Context, table string, pred func(Row) bool) (Row, bool, error) {
	return findOne(ctx, s, table, pred)
}

// UpdateFields updates only the given columns of row id.
func (s *GormStore) UpdateFields(ctx context.Context, table string, id int64, fields Row) error {
	updates := map[string]any(clone(fields))
	delete(updates, IDField)
	res := s.db.WithContext(ctx).Table(table).Where(IDField+" = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update %s/%d: %w", table, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.ensureExists(ctx, table, id)
	}
	return nil
}

// Create inserts fields and reads back the generated id.
func (s *GormStore) Create(ctx context.Context, table string, fields Row) (Row, error) {
	values := map[string]any(clone(fields))
	delete(values, IDField)
	var id int64
	// map creates are not back-filled; LAST_INSERT_ID needs the same connection
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(table).Create(values).Error; err != nil {
			return err
		}
		return tx.Raw("SELECT LAST_INSERT_ID()").Scan(&id).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", table, err)
	}
	row := clone(fields)
	row[IDField] = id
	return row, nil
}

// Increment adds delta to field in one statement.
func (s *GormStore) Increment(ctx context.Context, table string, id int64, field string, delta int64) error {
	res := s.db.WithContext(ctx).Table(table).
		Where(IDField+" = ?", id).
		UpdateColumn(field, gorm.Expr("COALESCE(`"+field+"`, 0) + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("increment %s/%d.%s: %w", table, id, field, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRowNotFound
	}
	return nil
}

// ensureExists tells "no such row" apart from "values unchanged", both of which affect zero rows in MySQL.
func (s *GormStore) ensureExists(ctx context.Context, table string, id int64) error {
	var n int64
	if err := s.db.WithContext(ctx).Table(table).Where(IDField+" = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("update %s/%d: %w", table, id, err)
	}
	if n == 0 {
		return ErrRowNotFound
	}
	return nil
}
