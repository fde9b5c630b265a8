package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fenixbot/internal/course"
	"fenixbot/internal/registry"
	logx "fenixbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces every stored row with snap in a single transaction.
func (s *sqliteStore) Save(ctx context.Context, snap registry.Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, q := range []string{`DELETE FROM announcements`, `DELETE FROM courses`} {
		if _, err = tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}

	insCourse, err := tx.PrepareContext(ctx,
		`INSERT INTO courses(group_id, group_pos, pos, link, name, years, semester) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer insCourse.Close()
	insAnn, err := tx.PrepareContext(ctx,
		`INSERT INTO announcements(group_id, course_link, pos, id, title, description, link, author, pub_date)
		 VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer insAnn.Close()

	for gi, g := range snap.Groups {
		for ci, c := range g.Courses {
			if _, err = insCourse.ExecContext(ctx, int64(g.Group), gi, ci, c.Link, c.Name, c.Years, c.Semester); err != nil {
				return fmt.Errorf("insert course %s: %w", c.Link, err)
			}
			for ai, a := range c.Announcements {
				if _, err = insAnn.ExecContext(ctx, int64(g.Group), c.Link, ai,
					a.ID, a.Title, a.Description, a.Link, a.Author, a.PubDate.Format(time.RFC3339Nano)); err != nil {
					return fmt.Errorf("insert announcement %q: %w", a.ID, err)
				}
			}
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO snapshot_meta(id, version, saved_at) VALUES(1,?,?)
		 ON CONFLICT(id) DO UPDATE SET version=excluded.version, saved_at=excluded.saved_at`,
		snapshotVersion, time.Now().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("snapshot saved", logx.Int("courses", snap.Len()))
	return nil
}

func (s *sqliteStore) TryLoad(ctx context.Context) (registry.Snapshot, bool, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM snapshot_meta WHERE id = 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Snapshot{}, false, nil
	}
	if err != nil {
		return registry.Snapshot{}, false, err
	}
	if version > snapshotVersion {
		return registry.Snapshot{}, false, fmt.Errorf("%w %d", ErrUnsupportedVersion, version)
	}

	snap, index, err := s.loadCourses(ctx)
	if err != nil {
		return registry.Snapshot{}, false, err
	}
	if err := s.loadAnnouncements(ctx, index); err != nil {
		return registry.Snapshot{}, false, err
	}
	return snap, true, nil
}

type courseKey struct {
	group registry.GroupID
	link  string
}

func (s *sqliteStore) loadCourses(ctx context.Context) (registry.Snapshot, map[courseKey]*course.Course, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_id, link, name, years, semester FROM courses ORDER BY group_pos, pos`)
	if err != nil {
		return registry.Snapshot{}, nil, err
	}
	defer rows.Close()

	snap := registry.Snapshot{Groups: []registry.GroupCourses{}}
	index := map[courseKey]*course.Course{}
	for rows.Next() {
		var (
			gid int64
			c   = &course.Course{Announcements: []course.Announcement{}}
		)
		if err := rows.Scan(&gid, &c.Link, &c.Name, &c.Years, &c.Semester); err != nil {
			return registry.Snapshot{}, nil, err
		}
		group := registry.GroupID(gid)
		if n := len(snap.Groups); n == 0 || snap.Groups[n-1].Group != group {
			snap.Groups = append(snap.Groups, registry.GroupCourses{Group: group})
		}
		last := &snap.Groups[len(snap.Groups)-1]
		last.Courses = append(last.Courses, c)
		index[courseKey{group, c.Link}] = c
	}
	return snap, index, rows.Err()
}

func (s *sqliteStore) loadAnnouncements(ctx context.Context, index map[courseKey]*course.Course) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_id, course_link, id, title, description, link, author, pub_date
		 FROM announcements ORDER BY group_id, course_link, pos`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			gid        int64
			courseLink string
			pub        string
			a          course.Announcement
		)
		if err := rows.Scan(&gid, &courseLink, &a.ID, &a.Title, &a.Description, &a.Link, &a.Author, &pub); err != nil {
			return err
		}
		if a.PubDate, err = time.Parse(time.RFC3339Nano, pub); err != nil {
			return fmt.Errorf("announcement %q: %w", a.ID, err)
		}
		c, ok := index[courseKey{registry.GroupID(gid), courseLink}]
		if !ok {
			s.log.Warn("orphan announcement row", logx.Int64("group", gid), logx.String("course", courseLink))
			continue
		}
		c.Announcements = append(c.Announcements, a)
	}
	return rows.Err()
}
