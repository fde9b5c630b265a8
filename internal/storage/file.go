package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fenixbot/internal/registry"
	logx "fenixbot/pkg/logx"
)

// fileStore keeps the whole snapshot in one JSON document.
//
// Saves write <path>.tmp, fsync it and rename it over <path>, so a crash
// leaves either the old or the new snapshot on disk.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

type fileDocument struct {
	Version int                     `json:"version"`
	SavedAt time.Time               `json:"saved_at"`
	Groups  []registry.GroupCourses `json:"groups"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Save(ctx context.Context, snap registry.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := fileDocument{Version: snapshotVersion, SavedAt: time.Now(), Groups: snap.Groups}
	if doc.Groups == nil {
		doc.Groups = []registry.GroupCourses{}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	s.log.Debug("snapshot saved", logx.String("path", s.path), logx.Int("courses", snap.Len()))
	return nil
}

func (s *fileStore) TryLoad(ctx context.Context) (registry.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return registry.Snapshot{}, false, err
	}
	s.mu.Lock()
	b, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return registry.Snapshot{}, false, nil
	}
	if err != nil {
		return registry.Snapshot{}, false, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return registry.Snapshot{}, false, nil
	}

	var doc fileDocument
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return registry.Snapshot{}, false, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if doc.Version > snapshotVersion {
		return registry.Snapshot{}, false, fmt.Errorf("decode %s: %w %d", s.path, ErrUnsupportedVersion, doc.Version)
	}
	return registry.Snapshot{Groups: doc.Groups}, true, nil
}
