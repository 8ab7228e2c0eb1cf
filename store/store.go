// Package store abstracts the row-oriented table backend that holds job
// counters. None of the backends offers transactions or uniqueness
// constraints across rows; only some can increment a field atomically.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrRowNotFound is returned by UpdateFields and Increment when no row carries the id.
var ErrRowNotFound = errors.New("row not found")

// Row is one record of a table keyed by field name. Every row has an integer "id".
type Row map[string]any

// IDField is the primary key field present on every row.
const IDField = "id"

// Store is the capability set of the remote table backend.
type Store interface {
	// ListAll fetches every row of table. There is no server-side filtering.
	ListAll(ctx context.Context, table string) ([]Row, error)
	// FindOne returns the first row matching pred.
	FindOne(ctx context.Context, table string, pred func(Row) bool) (Row, bool, error)
	// UpdateFields overwrites only the given fields of the row with id.
	UpdateFields(ctx context.Context, table string, id int64, fields Row) error
	// Create inserts a row and returns it with its assigned id.
	Create(ctx context.Context, table string, fields Row) (Row, error)
}

// Incrementer is implemented by backends that can add to a numeric field
// without a read-then-write round trip.
type Incrementer interface {
	Increment(ctx context.Context, table string, id int64, field string, delta int64) error
}

// findOne is the FindOne implementation shared by backends without point lookups.
func findOne(ctx context.Context, s Store, table string, pred func(Row) bool) (Row, bool, error) {
	rows, err := s.ListAll(ctx, table)
	if err != nil {
		return nil, false, err
	}
	for _, row := range rows {
		if pred(row) {
			return row, true, nil
		}
	}
	return nil, false, nil
}

// Int64 reads key as an integer whatever representation the backend produced.
func Int64(row Row, key string) (int64, bool) {
	switch v := row[key].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case json.Number:
		return parseInt(v.String())
	case string:
		return parseInt(v)
	case []byte:
		return parseInt(string(v))
	}
	return 0, false
}

// String reads key as text, formatting numbers when needed.
func String(row Row, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Bool reads key as a boolean; sheets and redis store booleans as text.
func Bool(row Row, key string) bool {
	switch v := row[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	case []byte:
		b, _ := strconv.ParseBool(strings.TrimSpace(string(v)))
		return b
	}
	n, ok := Int64(row, key)
	return ok && n != 0
}

func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return floatToInt(f)
	}
	return 0, false
}

// floatToInt accepts only whole numbers inside the int64 range.
func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f >= 1<<63 || f < -(1<<63) {
		return 0, false
	}
	return int64(f), true
}

// clone copies a row so callers never share maps with a backend.
func clone(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
