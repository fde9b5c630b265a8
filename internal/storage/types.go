package storage

import (
	"context"
	"errors"
	"time"

	"fenixbot/internal/registry"
)

// ErrUnsupportedVersion is returned by TryLoad when the saved snapshot was
// written by a newer layout than this build understands.
var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// Store saves and restores registry snapshots. Save replaces whatever was
// saved before; there is no incremental form.
type Store interface {
	Save(ctx context.Context, snap registry.Snapshot) error
	// TryLoad reports found=false when nothing was saved yet.
	TryLoad(ctx context.Context) (snap registry.Snapshot, found bool, err error)
	Close() error
}

// Config selects a backend. Driver is one of "memory" (also "" and "none"),
// "file" (alias "json") or "sqlite" (alias "sqlite3").
type Config struct {
	Driver string
	Path   string
	// BusyTimeout applies to sqlite only. Zero keeps the driver default.
	BusyTimeout time.Duration
}

const snapshotVersion = 1
