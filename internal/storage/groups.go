package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

// Group is a named set of targets within a workspace.
type Group struct {
	ID      int64
	Name    string
	Members int
}

func (s *Store) CreateGroup(ctx context.Context, name string) (Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, fmt.Errorf("group name is required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO target_groups (workspace_id, name, created_at) VALUES (?, ?, ?)`,
		s.workspaceID(), name, now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Group{}, fmt.Errorf("group %q: %w", name, ErrAlreadyExists)
		}
		return Group{}, fmt.Errorf("create group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Group{}, fmt.Errorf("create group: %w", err)
	}
	return Group{ID: id, Name: name}, nil
}

// Groups lists the groups of the current workspace with their member counts.
func (s *Store) Groups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT g.id, g.name, COUNT(gt.target_id)
FROM target_groups g
LEFT JOIN group_targets gt ON gt.group_id = g.id
WHERE g.workspace_id = ?
GROUP BY g.id, g.name
ORDER BY g.name`, s.workspaceID())
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Members); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return out, nil
}

func (s *Store) GroupByName(ctx context.Context, name string) (Group, error) {
	var g Group
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM target_groups WHERE workspace_id = ? AND name = ?`,
		s.workspaceID(), strings.TrimSpace(name),
	).Scan(&g.ID, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, fmt.Errorf("group %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Group{}, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func groupByID(ctx context.Context, q queryer, ws, id int64) (Group, error) {
	var g Group
	err := q.QueryRowContext(ctx,
		`SELECT id, name FROM target_groups WHERE workspace_id = ? AND id = ?`, ws, id,
	).Scan(&g.ID, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, fmt.Errorf("group %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Group{}, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// GroupTargets lists the members of a group ordered by id.
func (s *Store) GroupTargets(ctx context.Context, groupID int64) ([]target.Target, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT t.id, t.parent_id, t.type, t.name, t.fields
FROM targets t
JOIN group_targets gt ON gt.target_id = t.id
WHERE gt.group_id = ? AND t.workspace_id = ?
ORDER BY t.id`, groupID, s.workspaceID())
	if err != nil {
		return nil, fmt.Errorf("list group targets: %w", err)
	}
	return collectTargets(rows)
}

// TargetGroups maps target ids of the current workspace to the names of their groups.
func (s *Store) TargetGroups(ctx context.Context) (map[int64][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT gt.target_id, g.name
FROM group_targets gt
JOIN target_groups g ON g.id = gt.group_id
WHERE g.workspace_id = ?
ORDER BY g.name`, s.workspaceID())
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]string)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out[id] = append(out[id], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return out, nil
}

func (s *Store) RemoveGroup(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM target_groups WHERE workspace_id = ? AND name = ?`,
		s.workspaceID(), strings.TrimSpace(name),
	)
	if err != nil {
		return fmt.Errorf("remove group: %w", err)
	}
	return expectOne(res, "group %q", name)
}

// Link adds a target to a group. Linking twice yields ErrAlreadyExists.
func (s *Store) Link(ctx context.Context, groupID, targetID int64) error {
	if _, err := s.Target(ctx, targetID); err != nil {
		return err
	}
	if _, err := groupByID(ctx, s.db, s.workspaceID(), groupID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO group_targets (group_id, target_id) VALUES (?, ?)`, groupID, targetID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("target #%d in group %d: %w", targetID, groupID, ErrAlreadyExists)
		}
		return fmt.Errorf("link target: %w", err)
	}
	return nil
}

func (s *Store) Unlink(ctx context.Context, groupID, targetID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM group_targets WHERE group_id = ? AND target_id = ?`, groupID, targetID,
	)
	if err != nil {
		return fmt.Errorf("unlink target: %w", err)
	}
	return expectOne(res, "target #%d in group %d", targetID, groupID)
}
