package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/discussion-api/internal/models"
	"github.com/noah-isme/discussion-api/internal/repository"
	"github.com/noah-isme/discussion-api/internal/thread"
	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
)

// memDiscussionStore mimics the row locking of the SQL repository with one mutex.
type memDiscussionStore struct {
	mu      sync.Mutex
	topics  map[string]*models.Topic
	entries map[string]*models.DiscussionEntry
	order   []string
	seq     int
	listErr error
}

func newMemDiscussionStore() *memDiscussionStore {
	return &memDiscussionStore{
		topics:  make(map[string]*models.Topic),
		entries: make(map[string]*models.DiscussionEntry),
	}
}

func (s *memDiscussionStore) addTopic(id string, locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[id] = &models.Topic{ID: id, Title: "topic " + id, Locked: locked}
}

func (s *memDiscussionStore) setLocked(id string, locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[id].Locked = locked
}

func (s *memDiscussionStore) Create(ctx context.Context, params repository.CreateEntryParams, guard repository.TopicGuard) (*models.DiscussionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	topic, ok := s.topics[params.TopicID]
	if !ok {
		return nil, repository.ErrTopicNotFound
	}
	if guard != nil {
		snapshot := *topic
		if err := guard(&snapshot); err != nil {
			return nil, err
		}
	}
	var parent *models.DiscussionEntry
	if params.ParentID != nil {
		p, ok := s.entries[*params.ParentID]
		if !ok {
			return nil, repository.ErrParentNotFound
		}
		if p.TopicID != topic.ID {
			return nil, repository.ErrCrossTopicParent
		}
		parent = p
	}
	s.seq++
	now := time.Date(2024, 1, 1, 0, 0, s.seq, 0, time.UTC)
	entry := &models.DiscussionEntry{
		ID:        fmt.Sprintf("e%d", s.seq-1),
		TopicID:   topic.ID,
		ParentID:  params.ParentID,
		AuthorID:  params.AuthorID,
		Message:   params.Message,
		Depth:     thread.ComputeDepth(parent),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.entries[entry.ID] = entry
	s.order = append(s.order, entry.ID)
	clone := *entry
	return &clone, nil
}

func (s *memDiscussionStore) FindByID(ctx context.Context, id string) (*models.DiscussionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, repository.ErrEntryNotFound
	}
	clone := *entry
	return &clone, nil
}

func (s *memDiscussionStore) ListReplies(ctx context.Context, parentID string) ([]models.DiscussionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.DiscussionEntry{}
	for _, id := range s.order {
		entry := s.entries[id]
		if entry.ParentID != nil && *entry.ParentID == parentID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (s *memDiscussionStore) ListByTopic(ctx context.Context, filter models.EntryFilter) ([]models.DiscussionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []models.DiscussionEntry{}
	for _, id := range s.order {
		entry := s.entries[id]
		if entry.TopicID != filter.TopicID || (!filter.IncludeDeleted && entry.IsDeleted()) {
			continue
		}
		out = append(out, *entry)
	}
	return out, nil
}

func (s *memDiscussionStore) Edit(ctx context.Context, id, editorID, message string, guard repository.EntryGuard) (*models.DiscussionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, repository.ErrEntryNotFound
	}
	if entry.IsDeleted() {
		return nil, repository.ErrEntryDeleted
	}
	if guard != nil {
		topic := *s.topics[entry.TopicID]
		current := *entry
		if err := guard(&topic, &current); err != nil {
			return nil, err
		}
	}
	now := time.Now().UTC()
	editor := editorID
	entry.Message = message
	entry.EditedBy = &editor
	entry.EditedAt = &now
	clone := *entry
	return &clone, nil
}

func (s *memDiscussionStore) SoftDelete(ctx context.Context, id, deleterID string, guard repository.EntryGuard) (*models.DiscussionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, repository.ErrEntryNotFound
	}
	if !entry.IsDeleted() {
		if guard != nil {
			topic := *s.topics[entry.TopicID]
			current := *entry
			if err := guard(&topic, &current); err != nil {
				return nil, err
			}
		}
		now := time.Now().UTC()
		deleter := deleterID
		entry.DeletedBy = &deleter
		entry.DeletedAt = &now
	}
	clone := *entry
	return &clone, nil
}

// corrupt overwrites a stored depth to simulate drift.
func (s *memDiscussionStore) corrupt(id string, depth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id].Depth = depth
}

// listHookStore runs afterList once, right after a topic listing has been read.
type listHookStore struct {
	*memDiscussionStore
	afterList func()
}

func (s *listHookStore) ListByTopic(ctx context.Context, filter models.EntryFilter) ([]models.DiscussionEntry, error) {
	out, err := s.memDiscussionStore.ListByTopic(ctx, filter)
	if hook := s.afterList; hook != nil {
		s.afterList = nil
		hook()
	}
	return out, err
}

type memTopicReader struct {
	store *memDiscussionStore
}

func (r memTopicReader) FindByID(ctx context.Context, id string) (*models.Topic, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	topic, ok := r.store.topics[id]
	if !ok {
		return nil, repository.ErrTopicNotFound
	}
	clone := *topic
	return &clone, nil
}

type auditRecorderStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditRecorderStub) Record(ctx context.Context, log *models.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
}

func (a *auditRecorderStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, log := range a.logs {
		out = append(out, log.Action)
	}
	return out
}

type threadCacheStub struct {
	mu          sync.Mutex
	items       map[string][]byte
	gens        map[string]int64
	bumpErr     error
	gets        int
	invalidated []string
}

func newThreadCacheStub() *threadCacheStub {
	return &threadCacheStub{items: make(map[string][]byte), gens: make(map[string]int64)}
}

func (c *threadCacheStub) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	raw, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *threadCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = raw
	return nil
}

func (c *threadCacheStub) Invalidate(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.items {
		if key == pattern || (prefix != pattern && strings.HasPrefix(key, prefix)) {
			delete(c.items, key)
		}
	}
	return nil
}

func (c *threadCacheStub) Generation(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key], nil
}

func (c *threadCacheStub) Bump(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bumpErr != nil {
		return c.bumpErr
	}
	c.gens[key]++
	return nil
}

func (c *threadCacheStub) generation(topicID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[threadGenerationKey(topicID)]
}

type idempotencyStub struct {
	mu         sync.Mutex
	values     map[string]string
	reserveErr error
}

func newIdempotencyStub() *idempotencyStub {
	return &idempotencyStub{values: make(map[string]string)}
}

func (s *idempotencyStub) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserveErr != nil {
		return false, "", s.reserveErr
	}
	if value, ok := s.values[key]; ok {
		return false, value, nil
	}
	s.values[key] = ""
	return true, "", nil
}

func (s *idempotencyStub) Complete(ctx context.Context, key, entryID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = entryID
	return nil
}

func (s *idempotencyStub) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

type mutationMetricsStub struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *mutationMetricsStub) RecordDiscussionMutation(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, operation+":"+outcome)
}

type discussionFixture struct {
	svc     *DiscussionService
	store   *memDiscussionStore
	audit   *auditRecorderStub
	cache   *threadCacheStub
	idem    *idempotencyStub
	metrics *mutationMetricsStub
}

func newDiscussionFixture(t *testing.T, guard TopicLockGuard) *discussionFixture {
	t.Helper()
	f := &discussionFixture{
		store:   newMemDiscussionStore(),
		audit:   &auditRecorderStub{},
		cache:   newThreadCacheStub(),
		idem:    newIdempotencyStub(),
		metrics: &mutationMetricsStub{},
	}
	f.store.addTopic("T", false)
	f.svc = NewDiscussionService(f.store, memTopicReader{store: f.store}, f.idem, f.cache, f.audit, f.metrics, nil, nil, DiscussionServiceConfig{
		Guard:            guard,
		MaxMessageLength: 200,
	})
	return f
}

var (
	student   = models.Actor{ID: "student-1", Capability: models.CapabilityStudent}
	student2  = models.Actor{ID: "student-2", Capability: models.CapabilityStudent}
	moderator = models.Actor{ID: "teacher-1", Capability: models.CapabilityModerator}
)

func requireAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected app error, got %v", err)
	require.Equal(t, code, appErr.Code, appErr.Message)
}

func strRef(v string) *string { return &v }

func hasPrefix(values []string, prefix string) bool {
	for _, v := range values {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}
