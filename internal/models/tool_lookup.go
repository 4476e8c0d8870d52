package models

import "time"

// ToolLookup links an assignment to the external configuration tool that serves it.
// Rows are plain values: they carry no teardown behaviour and are removed in batches.
type ToolLookup struct {
	ID           string    `db:"id" json:"id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	ToolID       string    `db:"tool_id" json:"tool_id"`
	ToolType     string    `db:"tool_type" json:"tool_type"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
