package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/discussion-api/internal/dto"
	"github.com/noah-isme/discussion-api/internal/models"
	"github.com/noah-isme/discussion-api/internal/repository"
	"github.com/noah-isme/discussion-api/internal/thread"
	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
	"github.com/noah-isme/discussion-api/pkg/sanitize"
)

type discussionEntryStore interface {
	Create(ctx context.Context, params repository.CreateEntryParams, guard repository.TopicGuard) (*models.DiscussionEntry, error)
	FindByID(ctx context.Context, id string) (*models.DiscussionEntry, error)
	ListReplies(ctx context.Context, parentID string) ([]models.DiscussionEntry, error)
	ListByTopic(ctx context.Context, filter models.EntryFilter) ([]models.DiscussionEntry, error)
	Edit(ctx context.Context, id, editorID, message string, guard repository.EntryGuard) (*models.DiscussionEntry, error)
	SoftDelete(ctx context.Context, id, deleterID string, guard repository.EntryGuard) (*models.DiscussionEntry, error)
}

type discussionTopicReader interface {
	FindByID(ctx context.Context, id string) (*models.Topic, error)
}

type idempotencyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, string, error)
	Complete(ctx context.Context, key, entryID string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

type threadCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
	Generation(ctx context.Context, key string) (int64, error)
	Bump(ctx context.Context, key string) error
}

type auditRecorder interface {
	Record(ctx context.Context, log *models.AuditLog)
}

type mutationMetrics interface {
	RecordDiscussionMutation(operation, outcome string)
}

// DiscussionServiceConfig tunes mutation policy and read caching.
type DiscussionServiceConfig struct {
	Guard            TopicLockGuard
	MaxMessageLength int
	ThreadCacheTTL   time.Duration
	IdempotencyTTL   time.Duration
}

// DiscussionService orchestrates replies, edits and soft deletes of discussion entries.
type DiscussionService struct {
	entries   discussionEntryStore
	topics    discussionTopicReader
	idem      idempotencyStore
	cache     threadCache
	audit     auditRecorder
	metrics   mutationMetrics
	sanitizer *sanitize.Sanitizer
	validator *validator.Validate
	logger    *zap.Logger
	cfg       DiscussionServiceConfig
}

// NewDiscussionService constructs a DiscussionService. idem, cache, audit and metrics may be nil.
func NewDiscussionService(entries discussionEntryStore, topics discussionTopicReader, idem idempotencyStore, cache threadCache, audit auditRecorder, metrics mutationMetrics, validate *validator.Validate, logger *zap.Logger, cfg DiscussionServiceConfig) *DiscussionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 64 * 1024
	}
	if cfg.ThreadCacheTTL <= 0 {
		cfg.ThreadCacheTTL = 2 * time.Minute
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	return &DiscussionService{
		entries:   entries,
		topics:    topics,
		idem:      idem,
		cache:     cache,
		audit:     audit,
		metrics:   metrics,
		sanitizer: sanitize.New(),
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Reply posts a new entry under the topic, or under req.ParentID when set.
func (s *DiscussionService) Reply(ctx context.Context, actor models.Actor, req dto.ReplyRequest) (view *dto.EntryView, err error) {
	defer s.recordOutcome("reply", &err)
	if actor.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "actor is required")
	}
	req.Message = s.sanitizer.Message(req.Message)
	if err = s.validateMessage(req); err != nil {
		return nil, err
	}

	idemKey := ""
	if req.IdempotencyKey != "" && s.idem != nil {
		idemKey = strings.Join([]string{actor.ID, req.TopicID, req.IdempotencyKey}, ":")
		reserved, existingID, reserveErr := s.idem.Reserve(ctx, idemKey, s.cfg.IdempotencyTTL)
		switch {
		case reserveErr != nil:
			// store unavailable: fall through without deduplication
			s.logger.Warn("idempotency reserve failed", zap.String("topic_id", req.TopicID), zap.Error(reserveErr))
			idemKey = ""
		case !reserved && existingID != "":
			return s.Get(ctx, existingID)
		case !reserved:
			return nil, appErrors.Clone(appErrors.ErrIdempotencyActive, "")
		}
	}

	entry, err := s.entries.Create(ctx, repository.CreateEntryParams{
		TopicID:  req.TopicID,
		ParentID: req.ParentID,
		AuthorID: actor.ID,
		Message:  req.Message,
	}, func(topic *models.Topic) error {
		return s.cfg.Guard.AssertMutationAllowed(topic, actor.Capability)
	})
	if err != nil {
		if idemKey != "" {
			if releaseErr := s.idem.Release(ctx, idemKey); releaseErr != nil {
				s.logger.Warn("idempotency release failed", zap.Error(releaseErr))
			}
		}
		return nil, mapEntryStoreError(err, "failed to create entry")
	}
	if idemKey != "" {
		if completeErr := s.idem.Complete(ctx, idemKey, entry.ID, s.cfg.IdempotencyTTL); completeErr != nil {
			s.logger.Warn("idempotency complete failed", zap.String("entry_id", entry.ID), zap.Error(completeErr))
		}
	}

	s.afterMutation(ctx, actor, entry, models.AuditActionEntryCreate)
	result := dto.NewEntryView(entry)
	return &result, nil
}

// Edit replaces an entry's message. Parent and depth are left untouched.
func (s *DiscussionService) Edit(ctx context.Context, actor models.Actor, entryID string, req dto.EditEntryRequest) (view *dto.EntryView, err error) {
	defer s.recordOutcome("edit", &err)
	if actor.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "actor is required")
	}
	req.Message = s.sanitizer.Message(req.Message)
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid entry payload")
	}
	if err = s.checkLength(req.Message); err != nil {
		return nil, err
	}

	guard := s.cfg.Guard
	entry, err := s.entries.Edit(ctx, entryID, actor.ID, req.Message, func(topic *models.Topic, current *models.DiscussionEntry) error {
		if err := guard.AssertMutationAllowed(topic, actor.Capability); err != nil {
			return err
		}
		return guard.AssertOwnership(current, actor)
	})
	if err != nil {
		return nil, mapEntryStoreError(err, "failed to edit entry")
	}

	s.afterMutation(ctx, actor, entry, models.AuditActionEntryEdit)
	result := dto.NewEntryView(entry)
	return &result, nil
}

// Delete soft deletes an entry. Repeating the call returns the original deletion record.
func (s *DiscussionService) Delete(ctx context.Context, actor models.Actor, entryID string) (view *dto.EntryView, err error) {
	defer s.recordOutcome("delete", &err)
	if actor.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "actor is required")
	}

	guard := s.cfg.Guard
	mutated := false
	entry, err := s.entries.SoftDelete(ctx, entryID, actor.ID, func(topic *models.Topic, current *models.DiscussionEntry) error {
		if err := guard.AssertDeleteAllowed(topic, actor.Capability); err != nil {
			return err
		}
		if err := guard.AssertOwnership(current, actor); err != nil {
			return err
		}
		mutated = true
		return nil
	})
	if err != nil {
		return nil, mapEntryStoreError(err, "failed to delete entry")
	}

	if mutated {
		s.afterMutation(ctx, actor, entry, models.AuditActionEntryDelete)
	}
	result := dto.NewEntryView(entry)
	return &result, nil
}

// Get returns a single entry. Deleted entries are returned with their content hidden.
func (s *DiscussionService) Get(ctx context.Context, entryID string) (*dto.EntryView, error) {
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return nil, mapEntryStoreError(err, "failed to load entry")
	}
	view := dto.NewEntryView(entry)
	return &view, nil
}

// ListReplies returns the direct replies of an entry in insertion order.
func (s *DiscussionService) ListReplies(ctx context.Context, entryID string) ([]dto.EntryView, error) {
	if _, err := s.entries.FindByID(ctx, entryID); err != nil {
		return nil, mapEntryStoreError(err, "failed to load entry")
	}
	replies, err := s.entries.ListReplies(ctx, entryID)
	if err != nil {
		return nil, mapEntryStoreError(err, "failed to list replies")
	}
	views := make([]dto.EntryView, 0, len(replies))
	for i := range replies {
		views = append(views, dto.NewEntryView(&replies[i]))
	}
	return views, nil
}

// Thread rebuilds the full reply tree of a topic from parent pointers. Cached views are keyed
// by the topic's generation as read before loading, so a view built from rows older than a
// committed mutation lands under a generation nobody reads again.
func (s *DiscussionService) Thread(ctx context.Context, topicID string) (*dto.ThreadView, error) {
	cacheable := false
	key := ""
	if s.cache != nil {
		gen, err := s.cache.Generation(ctx, threadGenerationKey(topicID))
		if err == nil {
			cacheable = true
			key = threadCacheKey(topicID, gen)
		}
	}
	if cacheable {
		var cached dto.ThreadView
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	topic, err := s.topics.FindByID(ctx, topicID)
	if err != nil {
		return nil, mapEntryStoreError(err, "failed to load topic")
	}
	entries, err := s.entries.ListByTopic(ctx, models.EntryFilter{TopicID: topicID, IncludeDeleted: true})
	if err != nil {
		return nil, mapEntryStoreError(err, "failed to list topic entries")
	}

	roots, orphans := thread.BuildTree(entries)
	if len(orphans) > 0 {
		s.logger.Warn("thread contains unreachable entries", zap.String("topic_id", topicID), zap.Int("count", len(orphans)))
	}

	view := &dto.ThreadView{Topic: *topic, Entries: buildThreadNodes(roots), EntryCount: len(entries)}
	for i := range entries {
		if entries[i].Depth > view.MaxDepth {
			view.MaxDepth = entries[i].Depth
		}
	}

	if cacheable {
		_ = s.cache.Set(ctx, key, view, s.cfg.ThreadCacheTTL)
	}
	return view, nil
}

// VerifyDepths recomputes every entry's depth from parent links and reports disagreements
// with the stored value, including entries whose chain is broken or cyclic.
func (s *DiscussionService) VerifyDepths(ctx context.Context, topicID string) (*dto.IntegrityReport, error) {
	if _, err := s.topics.FindByID(ctx, topicID); err != nil {
		return nil, mapEntryStoreError(err, "failed to load topic")
	}
	entries, err := s.entries.ListByTopic(ctx, models.EntryFilter{TopicID: topicID, IncludeDeleted: true})
	if err != nil {
		return nil, mapEntryStoreError(err, "failed to list topic entries")
	}

	calc := thread.NewDepthCalculator(entries)
	report := &dto.IntegrityReport{TopicID: topicID, Checked: len(entries), Mismatches: []dto.DepthMismatch{}}
	for i := range entries {
		computed, err := calc.Depth(entries[i].ID)
		if err != nil {
			report.Mismatches = append(report.Mismatches, dto.DepthMismatch{
				EntryID:  entries[i].ID,
				Stored:   entries[i].Depth,
				Computed: -1,
				Problem:  err.Error(),
			})
			continue
		}
		if computed != entries[i].Depth {
			report.Mismatches = append(report.Mismatches, dto.DepthMismatch{
				EntryID:  entries[i].ID,
				Stored:   entries[i].Depth,
				Computed: computed,
			})
		}
	}
	if len(report.Mismatches) > 0 {
		s.logger.Warn("depth verification found mismatches", zap.String("topic_id", topicID), zap.Int("count", len(report.Mismatches)))
	}
	return report, nil
}

func (s *DiscussionService) validateMessage(req dto.ReplyRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid entry payload")
	}
	return s.checkLength(req.Message)
}

func (s *DiscussionService) checkLength(message string) error {
	if utf8.RuneCountInString(message) > s.cfg.MaxMessageLength {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("message exceeds %d characters", s.cfg.MaxMessageLength))
	}
	return nil
}

func (s *DiscussionService) afterMutation(ctx context.Context, actor models.Actor, entry *models.DiscussionEntry, action string) {
	invalidateThread(ctx, s.cache, s.logger, entry.TopicID)
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"topic_id":  entry.TopicID,
		"parent_id": entry.ParentID,
		"depth":     entry.Depth,
		"state":     entry.State(),
	})
	actorID := actor.ID
	entryID := entry.ID
	s.audit.Record(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "discussion_entry",
		ResourceID: &entryID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "discussion-service",
	})
}

func (s *DiscussionService) recordOutcome(operation string, errp *error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if *errp != nil {
		outcome = strings.ToLower(appErrors.FromError(*errp).Code)
	}
	s.metrics.RecordDiscussionMutation(operation, outcome)
}

func threadCacheKey(topicID string, gen int64) string {
	return fmt.Sprintf("discussion:thread:%s:%d", topicID, gen)
}

func threadGenerationKey(topicID string) string {
	return "discussion:thread-gen:" + topicID
}

// invalidateThread must run after the mutation committed. When the generation cannot be
// advanced every cached generation of the topic is dropped instead.
func invalidateThread(ctx context.Context, cache threadCache, logger *zap.Logger, topicID string) {
	if cache == nil {
		return
	}
	if err := cache.Bump(ctx, threadGenerationKey(topicID)); err == nil {
		return
	}
	if err := cache.Invalidate(ctx, "discussion:thread:"+topicID+":*"); err != nil {
		logger.Warn("thread cache invalidation failed", zap.String("topic_id", topicID), zap.Error(err))
	}
}

// buildThreadNodes mirrors the tree into response nodes without recursion.
func buildThreadNodes(roots []*thread.Node) []*dto.ThreadNode {
	mirror := make(map[*thread.Node]*dto.ThreadNode)
	project := func(n *thread.Node) *dto.ThreadNode {
		if tn, ok := mirror[n]; ok {
			return tn
		}
		tn := &dto.ThreadNode{EntryView: dto.NewEntryView(n.Entry), Replies: []*dto.ThreadNode{}}
		mirror[n] = tn
		return tn
	}

	out := make([]*dto.ThreadNode, 0, len(roots))
	for _, root := range roots {
		out = append(out, project(root))
	}
	thread.Walk(roots, func(n *thread.Node, _ int) bool {
		parent := project(n)
		for _, child := range n.Children {
			parent.Replies = append(parent.Replies, project(child))
		}
		return true
	})
	return out
}

func mapEntryStoreError(err error, message string) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repository.ErrTopicNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "topic not found")
	case errors.Is(err, repository.ErrParentNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "parent entry not found")
	case errors.Is(err, repository.ErrEntryNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "entry not found")
	case errors.Is(err, repository.ErrCrossTopicParent):
		return appErrors.Clone(appErrors.ErrCrossTopicParent, "")
	case errors.Is(err, repository.ErrEntryDeleted):
		return appErrors.Clone(appErrors.ErrConflict, "entry has been deleted")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}
