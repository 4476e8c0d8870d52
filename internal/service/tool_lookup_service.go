package service

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/discussion-api/internal/dto"
	"github.com/noah-isme/discussion-api/internal/models"
	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
)

type toolLookupStore interface {
	Create(ctx context.Context, lookup *models.ToolLookup) error
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.ToolLookup, error)
	DeleteByAssignment(ctx context.Context, assignmentID string) (int64, error)
	DeleteByTool(ctx context.Context, toolType, toolID string) (int64, error)
}

// ToolLookupService maintains assignment to configuration tool lookups. Lookups are
// plain records; clearing them is a single batch delete with nothing else attached.
type ToolLookupService struct {
	repo      toolLookupStore
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewToolLookupService constructs a ToolLookupService.
func NewToolLookupService(repo toolLookupStore, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ToolLookupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolLookupService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Attach links a tool to an assignment. Attaching the same tool twice is a no-op.
func (s *ToolLookupService) Attach(ctx context.Context, actor models.Actor, assignmentID string, req dto.AttachToolRequest) (*models.ToolLookup, error) {
	if !actor.IsModerator() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only moderators can manage tool lookups")
	}
	if assignmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignment id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid tool lookup payload")
	}

	lookup := &models.ToolLookup{AssignmentID: assignmentID, ToolID: req.ToolID, ToolType: req.ToolType}
	if err := s.repo.Create(ctx, lookup); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach tool")
	}
	s.emitAudit(ctx, actor, models.AuditActionToolLookupAttach, assignmentID, map[string]interface{}{"tool_id": req.ToolID, "tool_type": req.ToolType})
	return lookup, nil
}

// List returns the tools attached to an assignment.
func (s *ToolLookupService) List(ctx context.Context, assignmentID string) ([]models.ToolLookup, error) {
	lookups, err := s.repo.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tool lookups")
	}
	return lookups, nil
}

// ClearAssignment removes every lookup of the assignment.
func (s *ToolLookupService) ClearAssignment(ctx context.Context, actor models.Actor, assignmentID string) (*dto.PurgeResult, error) {
	if !actor.IsModerator() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only moderators can manage tool lookups")
	}
	deleted, err := s.repo.DeleteByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear tool lookups")
	}
	s.emitAudit(ctx, actor, models.AuditActionToolLookupsPurged, assignmentID, map[string]interface{}{"deleted": deleted})
	return &dto.PurgeResult{AssignmentID: assignmentID, Deleted: deleted}, nil
}

// ClearTool removes every lookup that points at a retired tool.
func (s *ToolLookupService) ClearTool(ctx context.Context, actor models.Actor, toolType, toolID string) (int64, error) {
	if !actor.IsModerator() {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "only moderators can manage tool lookups")
	}
	if toolType == "" || toolID == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "tool type and id are required")
	}
	deleted, err := s.repo.DeleteByTool(ctx, toolType, toolID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear tool lookups")
	}
	s.emitAudit(ctx, actor, models.AuditActionToolLookupsPurged, toolID, map[string]interface{}{"tool_type": toolType, "deleted": deleted})
	return deleted, nil
}

func (s *ToolLookupService) emitAudit(ctx context.Context, actor models.Actor, action, resourceID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	actorID := actor.ID
	s.audit.Record(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "assignment_tool_lookup",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "tool-lookup-service",
	})
}
