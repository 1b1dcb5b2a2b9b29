package storage

import (
	"context"
	"fmt"
	"strings"

	"transferbot/pkg/logx"
)

// Store is the persistence API for cursor state.
type Store interface {
	Load(ctx context.Context) (CursorState, error)
	Save(ctx context.Context, st CursorState) error
	Close() error
}

// Open initializes the configured store. An empty driver means "file".
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("driver", driverName(driver)))

	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "redis":
		return openRedis(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

func driverName(d string) string {
	if d == "" {
		return "file"
	}
	return d
}
