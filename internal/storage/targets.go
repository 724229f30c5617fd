package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

const targetColumns = `id, parent_id, type, name, fields`

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// AddTarget inserts t into the current workspace. A target with the same type, name
// and parent already present yields ErrAlreadyExists.
func (s *Store) AddTarget(ctx context.Context, t target.Target) (target.Target, error) {
	ws := s.workspaceID()
	if err := checkParent(ctx, s.db, ws, t.ParentID); err != nil {
		return target.Target{}, err
	}
	id, err := insertTarget(ctx, s.db, ws, t)
	if err != nil {
		if isUniqueViolation(err) {
			return target.Target{}, fmt.Errorf("target %s: %w", t, ErrAlreadyExists)
		}
		return target.Target{}, fmt.Errorf("add target: %w", err)
	}
	return t.WithID(id), nil
}

// SaveTargets stores discovered targets in one transaction. A target matching an
// existing one by type, name and parent updates its fields and keeps its id. When
// groupID is non-zero every saved target is linked to that group.
func (s *Store) SaveTargets(ctx context.Context, groupID int64, ts []target.Target) ([]target.Target, error) {
	ws := s.workspaceID()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save targets: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if groupID != 0 {
		if _, err := groupByID(ctx, tx, ws, groupID); err != nil {
			return nil, err
		}
	}

	saved := make([]target.Target, 0, len(ts))
	for _, t := range ts {
		if err := checkParent(ctx, tx, ws, t.ParentID); err != nil {
			return nil, err
		}
		id, err := existingTarget(ctx, tx, ws, t)
		switch {
		case errors.Is(err, ErrNotFound):
			id, err = insertTarget(ctx, tx, ws, t)
		case err == nil:
			err = updateFields(ctx, tx, id, t)
		}
		if err != nil {
			return nil, fmt.Errorf("save target %s: %w", t, err)
		}
		if groupID != 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO group_targets (group_id, target_id) VALUES (?, ?)`,
				groupID, id,
			); err != nil {
				return nil, fmt.Errorf("link target %d: %w", id, err)
			}
		}
		saved = append(saved, t.WithID(id))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save targets: %w", err)
	}
	return saved, nil
}

// Target returns the target with the given id from the current workspace.
func (s *Store) Target(ctx context.Context, id int64) (target.Target, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE id = ? AND workspace_id = ?`,
		id, s.workspaceID(),
	)
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return target.Target{}, fmt.Errorf("target #%d: %w", id, ErrNotFound)
	}
	if err != nil {
		return target.Target{}, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

// Targets lists targets of the current workspace ordered by id. An empty typ lists all.
func (s *Store) Targets(ctx context.Context, typ target.Type) ([]target.Target, error) {
	query := `SELECT ` + targetColumns + ` FROM targets WHERE workspace_id = ?`
	args := []any{s.workspaceID()}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, string(typ))
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return collectTargets(rows)
}

// RemoveTarget deletes a target and, through the parent reference, everything derived from it.
func (s *Store) RemoveTarget(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM targets WHERE id = ? AND workspace_id = ?`,
		id, s.workspaceID(),
	)
	if err != nil {
		return fmt.Errorf("remove target: %w", err)
	}
	return expectOne(res, "target #%d", id)
}

func checkParent(ctx context.Context, q queryer, ws, parentID int64) error {
	if parentID == 0 {
		return nil
	}
	var found int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM targets WHERE id = ? AND workspace_id = ?`, parentID, ws,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("parent target #%d: %w", parentID, ErrNotFound)
	}
	return err
}

func insertTarget(ctx context.Context, q queryer, ws int64, t target.Target) (int64, error) {
	fields, err := encodeFields(t)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO targets (workspace_id, parent_id, type, name, fields, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ws, nullID(t.ParentID), string(t.Type), t.Name, fields, now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func existingTarget(ctx context.Context, q queryer, ws int64, t target.Target) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM targets WHERE workspace_id = ? AND type = ? AND name = ? AND IFNULL(parent_id, 0) = ?`,
		ws, string(t.Type), t.Name, t.ParentID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

func updateFields(ctx context.Context, q queryer, id int64, t target.Target) error {
	fields, err := encodeFields(t)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `UPDATE targets SET fields = ? WHERE id = ?`, fields, id)
	return err
}

// encodeFields stores every field except the parent, which lives in its own column.
func encodeFields(t target.Target) (string, error) {
	fields := t.Fields()
	delete(fields, target.FieldParent)
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(data), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTarget(row scanner) (target.Target, error) {
	var (
		id       int64
		parentID sql.NullInt64
		typ      string
		name     string
		raw      string
	)
	if err := row.Scan(&id, &parentID, &typ, &name, &raw); err != nil {
		return target.Target{}, err
	}
	fields := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return target.Target{}, fmt.Errorf("decode fields of target #%d: %w", id, err)
	}
	fields[target.FieldName] = name
	fields[target.FieldType] = typ
	delete(fields, target.FieldParent)
	if parentID.Valid {
		fields[target.FieldParent] = strconv.FormatInt(parentID.Int64, 10)
	}
	t, err := target.FromFields(fields)
	if err != nil {
		return target.Target{}, fmt.Errorf("decode target #%d: %w", id, err)
	}
	return t.WithID(id), nil
}

func collectTargets(rows *sql.Rows) ([]target.Target, error) {
	defer rows.Close()
	var out []target.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return out, nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
