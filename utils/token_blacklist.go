package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type revokedEntry struct {
	expiresAt time.Time
}

// TokenRevocationList marks single-use tokens as spent until they expire.
// Redis is used when reachable so every instance sees the same list.
type TokenRevocationList struct {
	rc      *redis.Client
	mu      sync.RWMutex
	entries map[string]revokedEntry
}

// NewTokenRevocationList creates an empty list. rc may be nil.
func NewTokenRevocationList(rc *redis.Client) *TokenRevocationList {
	return &TokenRevocationList{rc: rc, entries: map[string]revokedEntry{}}
}

// Revoke stores token until expiresAt.
func (l *TokenRevocationList) Revoke(token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if rc := l.rc; rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, "jwt:revoked:"+token, "1", ttl).Err(); err == nil {
			return
		}
	}
	l.mu.Lock()
	l.entries[token] = revokedEntry{expiresAt: expiresAt}
	l.mu.Unlock()
}

// Revoked reports whether token was already spent.
func (l *TokenRevocationList) Revoked(token string) bool {
	if rc := l.rc; rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, "jwt:revoked:"+token).Result()
		if err == nil && n > 0 {
			return true
		}
	}

	l.mu.RLock()
	entry, ok := l.entries[token]
	l.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(entry.expiresAt) {
		l.mu.Lock()
		delete(l.entries, token)
		l.mu.Unlock()
		return false
	}
	return true
}
