package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/execbox/internal/apperror"
	"github.com/sakif/execbox/internal/model"
	"github.com/sakif/execbox/internal/repository"
)

// Compile-time check that *DB satisfies the repository interface.
var _ repository.ExecutionRepository = (*DB)(nil)

// Create inserts an execution record. The ID (xid: sortable by creation time)
// and CreatedAt are filled in on the passed struct.
func (db *DB) Create(ctx context.Context, execution *model.Execution) error {
	execution.ID = xid.New().String()
	execution.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO executions (id, language, kind, exit_code, duration_ms, truncated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		execution.ID,
		execution.Language,
		execution.Kind,
		execution.ExitCode,
		execution.DurationMs,
		execution.Truncated,
		execution.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting execution: %w", err)
	}
	return nil
}

// GetByID fetches one execution record, or apperror.ErrNotFound.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Execution, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, language, kind, exit_code, duration_ms, truncated, created_at
		 FROM executions WHERE id = ?`, id)

	var e model.Execution
	err := row.Scan(&e.ID, &e.Language, &e.Kind, &e.ExitCode, &e.DurationMs, &e.Truncated, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("execution", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scanning execution: %w", err)
	}
	return &e, nil
}

// List returns execution records, newest first.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Execution, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, language, kind, exit_code, duration_ms, truncated, created_at
		 FROM executions ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing executions: %w", err)
	}
	defer rows.Close()

	executions := []model.Execution{}
	for rows.Next() {
		var e model.Execution
		if err := rows.Scan(&e.ID, &e.Language, &e.Kind, &e.ExitCode, &e.DurationMs, &e.Truncated, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning execution row: %w", err)
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating executions: %w", err)
	}
	return executions, nil
}
