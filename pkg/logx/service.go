package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

const defaultLogFile = "./fenixbot.log"

// Config selects the level and sinks. With neither sink enabled the console
// is used anyway.
type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// Service owns the active zerolog logger and the open log file.
type Service struct {
	mu       sync.Mutex
	file     *os.File
	filePath string

	current atomic.Pointer[zerolog.Logger]
}

// New applies cfg and returns the service with a root logger bound to it.
func New(cfg Config) (*Service, Logger) {
	s := &Service{}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

func (s *Service) logger() *zerolog.Logger { return s.current.Load() }

// Apply rebuilds the sinks. The log file is reopened only when its path
// changes. Safe for concurrent use.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, consoleWriter(stdout))
	}

	path := strings.TrimSpace(cfg.File.Path)
	if path == "" {
		path = defaultLogFile
	}
	if !cfg.File.Enabled || path != s.filePath {
		s.closeFileLocked()
	}
	if cfg.File.Enabled {
		if s.file == nil {
			if err := s.openFileLocked(path); err != nil {
				fmt.Fprintf(stderr, "logx: log file %q: %v\n", path, err)
			}
		}
		if s.file != nil {
			sinks = append(sinks, zerolog.SyncWriter(s.file))
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, consoleWriter(stdout))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(parseLevel(cfg.Level)).
		With().Timestamp().Logger()
	s.current.Store(&zl)
}

func (s *Service) openFileLocked(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	s.file, s.filePath = f, path
	return nil
}

func (s *Service) closeFileLocked() {
	if s.file != nil {
		_ = s.file.Close()
	}
	s.file, s.filePath = nil, ""
}

// Close flushes and closes the log file. Records logged afterwards still
// reach the console sink if one is configured.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.filePath = nil, ""
	return err
}
