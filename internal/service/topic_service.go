package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/discussion-api/internal/dto"
	"github.com/noah-isme/discussion-api/internal/models"
	"github.com/noah-isme/discussion-api/internal/repository"
	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
	"github.com/noah-isme/discussion-api/pkg/sanitize"
)

type topicStore interface {
	Create(ctx context.Context, topic *models.Topic) error
	FindByID(ctx context.Context, id string) (*models.Topic, error)
	SetLocked(ctx context.Context, id string, locked bool, actorID string) (*models.Topic, error)
}

// TopicService manages discussion topics and their lock state.
type TopicService struct {
	repo      topicStore
	cache     threadCache
	audit     auditRecorder
	sanitizer *sanitize.Sanitizer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTopicService constructs a TopicService. cache and audit may be nil.
func NewTopicService(repo topicStore, cache threadCache, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *TopicService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopicService{repo: repo, cache: cache, audit: audit, sanitizer: sanitize.New(), validator: validate, logger: logger}
}

// Create opens a new unlocked topic. Only moderators may open topics.
func (s *TopicService) Create(ctx context.Context, actor models.Actor, req dto.CreateTopicRequest) (*models.Topic, error) {
	if !actor.IsModerator() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only moderators can create topics")
	}
	req.Title = s.sanitizer.PlainText(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid topic payload")
	}

	topic := &models.Topic{Title: req.Title, CreatedBy: actor.ID}
	if err := s.repo.Create(ctx, topic); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create topic")
	}
	s.emitAudit(ctx, actor, topic, models.AuditActionTopicCreate)
	return topic, nil
}

// Get returns a topic by id.
func (s *TopicService) Get(ctx context.Context, id string) (*models.Topic, error) {
	topic, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTopicNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load topic")
	}
	return topic, nil
}

// Lock stops non-moderators from replying to or editing entries of the topic.
func (s *TopicService) Lock(ctx context.Context, actor models.Actor, id string) (*models.Topic, error) {
	return s.setLocked(ctx, actor, id, true)
}

// Unlock reopens the topic.
func (s *TopicService) Unlock(ctx context.Context, actor models.Actor, id string) (*models.Topic, error) {
	return s.setLocked(ctx, actor, id, false)
}

func (s *TopicService) setLocked(ctx context.Context, actor models.Actor, id string, locked bool) (*models.Topic, error) {
	if !actor.IsModerator() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only moderators can change topic locks")
	}
	topic, err := s.repo.SetLocked(ctx, id, locked, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrTopicNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update topic lock")
	}

	invalidateThread(ctx, s.cache, s.logger, id)
	action := models.AuditActionTopicUnlock
	if locked {
		action = models.AuditActionTopicLock
	}
	s.emitAudit(ctx, actor, topic, action)
	return topic, nil
}

func (s *TopicService) emitAudit(ctx context.Context, actor models.Actor, topic *models.Topic, action string) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{"title": topic.Title, "locked": topic.Locked})
	actorID := actor.ID
	topicID := topic.ID
	s.audit.Record(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "discussion_topic",
		ResourceID: &topicID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "topic-service",
	})
}
