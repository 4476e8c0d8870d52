package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/discussion-api/internal/models"
)

// ToolLookupRepository persists assignment ↔ configuration tool lookups.
// Removal is always a single batch statement; there is no per-row lifecycle.
type ToolLookupRepository struct {
	db *sqlx.DB
}

// NewToolLookupRepository constructs the repository.
func NewToolLookupRepository(db *sqlx.DB) *ToolLookupRepository {
	return &ToolLookupRepository{db: db}
}

// Create inserts a lookup, leaving an identical existing row in place.
func (r *ToolLookupRepository) Create(ctx context.Context, lookup *models.ToolLookup) error {
	if lookup.ID == "" {
		lookup.ID = uuid.NewString()
	}
	lookup.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO assignment_tool_lookups (id, assignment_id, tool_id, tool_type, created_at)
VALUES (:id, :assignment_id, :tool_id, :tool_type, :created_at)
ON CONFLICT (assignment_id, tool_type, tool_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, lookup); err != nil {
		return fmt.Errorf("create tool lookup: %w", err)
	}
	return nil
}

// ListByAssignment returns the lookups of an assignment.
func (r *ToolLookupRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.ToolLookup, error) {
	const query = `SELECT id, assignment_id, tool_id, tool_type, created_at FROM assignment_tool_lookups
WHERE assignment_id = $1 ORDER BY created_at ASC, id ASC`
	lookups := []models.ToolLookup{}
	if err := r.db.SelectContext(ctx, &lookups, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list tool lookups: %w", err)
	}
	return lookups, nil
}

// DeleteByAssignment removes every lookup of the assignment in one statement.
func (r *ToolLookupRepository) DeleteByAssignment(ctx context.Context, assignmentID string) (int64, error) {
	return r.deleteWhere(ctx, sq.Eq{"assignment_id": assignmentID})
}

// DeleteByTool removes every lookup pointing at the given tool in one statement.
func (r *ToolLookupRepository) DeleteByTool(ctx context.Context, toolType, toolID string) (int64, error) {
	return r.deleteWhere(ctx, sq.Eq{"tool_type": toolType, "tool_id": toolID})
}

func (r *ToolLookupRepository) deleteWhere(ctx context.Context, pred sq.Eq) (int64, error) {
	query, args, err := sq.Delete("assignment_tool_lookups").Where(pred).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build tool lookup delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete tool lookups: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("tool lookup rows affected: %w", err)
	}
	return affected, nil
}
