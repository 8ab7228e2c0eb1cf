package utils

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultStateTTL = 10 * time.Minute

// StateStore keeps single-use OAuth state tokens to mitigate CSRF.
// With a nil Redis client it only works on a single instance.
type StateStore struct {
	rc  *redis.Client
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]time.Time
}

// NewStateStore creates a store whose states live for ttl.
func NewStateStore(rc *redis.Client, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &StateStore{rc: rc, ttl: ttl, entries: map[string]time.Time{}}
}

// Issue creates and stores a random state.
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rc.Set(ctx, "oauth:state:"+state, "1", s.ttl).Err(); err != nil {
			return "", err
		}
		return state, nil
	}
	s.mu.Lock()
	s.pruneLocked()
	s.entries[state] = time.Now().Add(s.ttl)
	s.mu.Unlock()
	return state, nil
}

// Consume validates and removes state.
func (s *StateStore) Consume(ctx context.Context, state string) bool {
	if state == "" {
		return false
	}
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		key := "oauth:state:" + state
		if v, err := s.rc.GetDel(ctx, key).Result(); err == nil {
			return v != ""
		}
		// servers older than 6.2 lack GETDEL
		script := `local v=redis.call('GET', KEYS[1]); if v then redis.call('DEL', KEYS[1]); end; return v`
		if res, err := s.rc.Eval(ctx, script, []string{key}).Result(); err == nil {
			return res != nil
		}
		return false
	}
	s.mu.Lock()
	exp, ok := s.entries[state]
	delete(s.entries, state)
	s.mu.Unlock()
	return ok && time.Now().Before(exp)
}

func (s *StateStore) pruneLocked() {
	now := time.Now()
	for k, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, k)
		}
	}
}
