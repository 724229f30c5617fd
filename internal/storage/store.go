// Package storage persists workspaces, targets, groups and keystore secrets in SQLite
// and serves the data-domain commands of the console.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/tldr-it-stepankutaj/reconkit/internal/storage/migrations"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// DefaultWorkspace is created by the first migration and cannot be removed.
const DefaultWorkspace = "default"

// Workspace partitions targets, groups and secrets.
type Workspace struct {
	ID   int64
	Name string
}

// Store is a SQLite-backed store. All target, group and keystore operations act on
// the current workspace.
type Store struct {
	db *sql.DB

	mu      sync.RWMutex
	current Workspace
}

// Open opens the database at path, applies migrations and selects the default workspace.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection and the current workspace is per store.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{db: db}
	ws, err := s.workspaceByName(ctx, DefaultWorkspace)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load default workspace: %w", err)
	}
	s.current = ws
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Current returns the selected workspace.
func (s *Store) Current() Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) workspaceID() int64 {
	return s.Current().ID
}

// CreateWorkspace adds a workspace without selecting it.
func (s *Store) CreateWorkspace(ctx context.Context, name string) (Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Workspace{}, fmt.Errorf("workspace name is required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO workspaces (name, created_at) VALUES (?, ?)`,
		name, now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Workspace{}, fmt.Errorf("workspace %q: %w", name, ErrAlreadyExists)
		}
		return Workspace{}, fmt.Errorf("create workspace: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Workspace{}, fmt.Errorf("create workspace: %w", err)
	}
	return Workspace{ID: id, Name: name}, nil
}

// Workspaces lists all workspaces by name.
func (s *Store) Workspaces(ctx context.Context) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM workspaces ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		var ws Workspace
		if err := rows.Scan(&ws.ID, &ws.Name); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return out, nil
}

// UseWorkspace selects the named workspace.
func (s *Store) UseWorkspace(ctx context.Context, name string) (Workspace, error) {
	ws, err := s.workspaceByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return Workspace{}, err
	}
	s.mu.Lock()
	s.current = ws
	s.mu.Unlock()
	return ws, nil
}

// RemoveWorkspace deletes a workspace and everything in it. The default and the
// current workspace cannot be removed.
func (s *Store) RemoveWorkspace(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == DefaultWorkspace {
		return fmt.Errorf("workspace %q cannot be removed", name)
	}
	if name == s.Current().Name {
		return fmt.Errorf("workspace %q is in use", name)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return expectOne(res, "workspace %q", name)
}

func (s *Store) workspaceByName(ctx context.Context, name string) (Workspace, error) {
	var ws Workspace
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM workspaces WHERE name = ?`, name).Scan(&ws.ID, &ws.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Workspace{}, fmt.Errorf("workspace %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Workspace{}, fmt.Errorf("get workspace: %w", err)
	}
	return ws, nil
}

func expectOne(res sql.Result, format string, a ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf(format+": %w", append(a, ErrNotFound)...)
	}
	return nil
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
