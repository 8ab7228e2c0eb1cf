package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each row in a hash {prefix}:{table}:{id}, the ids of a
// table in the set {prefix}:{table}:ids and the id sequence in
// {prefix}:{table}:seq. Increment uses HINCRBY and is atomic.
type RedisStore struct {
	rc     *redis.Client
	prefix string
}

// NewRedisStore creates a store on top of rc.
func NewRedisStore(rc *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rc: rc, prefix: prefix}
}

func (s *RedisStore) rowKey(table string, id int64) string {
	return fmt.Sprintf("%s:%s:%d", s.prefix, table, id)
}

func (s *RedisStore) idsKey(table string) string { return s.prefix + ":" + table + ":ids" }

func (s *RedisStore) seqKey(table string) string { return s.prefix + ":" + table + ":seq" }

// ListAll loads every hash of the table in one pipeline, ordered by id.
func (s *RedisStore) ListAll(ctx context.Context, table string) ([]Row, error) {
	members, err := s.rc.SMembers(ctx, s.idsKey(table)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pipe := s.rc.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.rowKey(table, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}

	rows := make([]Row, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		row := make(Row, len(fields)+1)
		for k, v := range fields {
			row[k] = v
		}
		row[IDField] = ids[i]
		rows = append(rows, row)
	}
	return rows, nil
}

// FindOne scans the table.
func (s *RedisStore) FindOne(ctx context.Context, table string, pred func(Row) bool) (Row, bool, error) {
	return findOne(ctx, s, table, pred)
}

// UpdateFields sets the given hash fields of an existing row.
func (s *RedisStore) UpdateFields(ctx context.Context, table string, id int64, fields Row) error {
	key := s.rowKey(table, id)
	n, err := s.rc.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("update %s/%d: %w", table, id, err)
	}
	if n == 0 {
		return ErrRowNotFound
	}
	values := flatten(fields)
	if len(values) == 0 {
		return nil
	}
	if err := s.rc.HSet(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("update %s/%d: %w", table, id, err)
	}
	return nil
}

// Create allocates an id from the table sequence and writes the hash.
func (s *RedisStore) Create(ctx context.Context, table string, fields Row) (Row, error) {
	id, err := s.rc.Incr(ctx, s.seqKey(table)).Result()
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", table, err)
	}
	values := flatten(fields)
	values = append(values, IDField, id)

	pipe := s.rc.TxPipeline()
	pipe.HSet(ctx, s.rowKey(table, id), values...)
	pipe.SAdd(ctx, s.idsKey(table), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("create %s: %w", table, err)
	}

	row := clone(fields)
	row[IDField] = id
	return row, nil
}

// Increment runs HINCRBY on an existing row.
func (s *RedisStore) Increment(ctx context.Context, table string, id int64, field string, delta int64) error {
	key := s.rowKey(table, id)
	n, err := s.rc.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("increment %s/%d.%s: %w", table, id, field, err)
	}
	if n == 0 {
		return ErrRowNotFound
	}
	if err := s.rc.HIncrBy(ctx, key, field, delta).Err(); err != nil {
		return fmt.Errorf("increment %s/%d.%s: %w", table, id, field, err)
	}
	return nil
}

func flatten(fields Row) []any {
	values := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		if k == IDField {
			continue
		}
		if b, ok := v.(bool); ok {
			v = strconv.FormatBool(b)
		}
		values = append(values, k, v)
	}
	return values
}
