package storage

import (
	"context"
	"fmt"
	"strings"

	"fenixbot/internal/registry"
	logx "fenixbot/pkg/logx"
)

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driverName(driver)))

	switch driver {
	case "", "none", "memory":
		return memoryStore{}, nil
	case "file", "json":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}

func driverName(d string) string {
	if d == "" {
		return "none"
	}
	return d
}

// memoryStore keeps nothing; the registry lives only as long as the process.
type memoryStore struct{}

func (memoryStore) Save(ctx context.Context, _ registry.Snapshot) error { return ctx.Err() }

func (memoryStore) TryLoad(ctx context.Context) (registry.Snapshot, bool, error) {
	return registry.Snapshot{}, false, ctx.Err()
}

func (memoryStore) Close() error { return nil }
