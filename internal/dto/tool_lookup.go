package dto

// AttachToolRequest links a configuration tool to an assignment.
type AttachToolRequest struct {
	ToolID   string `json:"tool_id" validate:"required"`
	ToolType string `json:"tool_type" validate:"required,max=64"`
}

// PurgeResult reports how many lookup rows a batch delete removed.
type PurgeResult struct {
	AssignmentID string `json:"assignment_id"`
	Deleted      int64  `json:"deleted"`
}
