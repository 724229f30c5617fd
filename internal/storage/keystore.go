package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Secret is a named value stored for module arguments such as API keys.
type Secret struct {
	Name  string
	Value string
}

// PutSecret creates or replaces a secret in the current workspace.
func (s *Store) PutSecret(ctx context.Context, name, value string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("secret name is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO keystore (workspace_id, name, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (workspace_id, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.workspaceID(), name, value, now(),
	)
	if err != nil {
		return fmt.Errorf("put secret: %w", err)
	}
	return nil
}

func (s *Store) Secret(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM keystore WHERE workspace_id = ? AND name = ?`, s.workspaceID(), name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("secret %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get secret: %w", err)
	}
	return value, nil
}

// Secrets lists the secrets of the current workspace by name.
func (s *Store) Secrets(ctx context.Context) ([]Secret, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM keystore WHERE workspace_id = ? ORDER BY name`, s.workspaceID(),
	)
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	defer rows.Close()

	var out []Secret
	for rows.Next() {
		var sec Secret
		if err := rows.Scan(&sec.Name, &sec.Value); err != nil {
			return nil, fmt.Errorf("scan secret: %w", err)
		}
		out = append(out, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	return out, nil
}

func (s *Store) RemoveSecret(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM keystore WHERE workspace_id = ? AND name = ?`, s.workspaceID(), strings.TrimSpace(name),
	)
	if err != nil {
		return fmt.Errorf("remove secret: %w", err)
	}
	return expectOne(res, "secret %q", name)
}
