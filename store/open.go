package store

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options selects and configures a backend.
type Options struct {
	Driver       string
	SheetBaseURL string
	SheetToken   string
	RedisPrefix  string
	DB           *gorm.DB
	Redis        *redis.Client
}

// Open returns the backend named by o.Driver: sheet, mysql, redis or memory.
func Open(o Options) (Store, error) {
	switch strings.ToLower(o.Driver) {
	case "", "sheet":
		if o.SheetBaseURL == "" {
			return nil, fmt.Errorf("sheet store: base url not configured")
		}
		return NewSheetStore(o.SheetBaseURL, o.SheetToken, nil), nil
	case "mysql":
		if o.DB == nil {
			return nil, fmt.Errorf("mysql store: database not initialized")
		}
		return NewGormStore(o.DB), nil
	case "redis":
		if o.Redis == nil {
			return nil, fmt.Errorf("redis store: client not initialized")
		}
		return NewRedisStore(o.Redis, o.RedisPrefix), nil
	case "memory":
		return NewMemoryStore(WithAtomicIncrement()).AsStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", o.Driver)
	}
}
