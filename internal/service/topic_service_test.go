package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/discussion-api/internal/dto"
	"github.com/noah-isme/discussion-api/internal/models"
	"github.com/noah-isme/discussion-api/internal/repository"
	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
)

type topicStoreStub struct {
	topics map[string]*models.Topic
	err    error
}

func (s *topicStoreStub) Create(ctx context.Context, topic *models.Topic) error {
	if s.err != nil {
		return s.err
	}
	topic.ID = "topic-1"
	s.topics[topic.ID] = topic
	return nil
}

func (s *topicStoreStub) FindByID(ctx context.Context, id string) (*models.Topic, error) {
	if s.err != nil {
		return nil, s.err
	}
	topic, ok := s.topics[id]
	if !ok {
		return nil, repository.ErrTopicNotFound
	}
	return topic, nil
}

func (s *topicStoreStub) SetLocked(ctx context.Context, id string, locked bool, actorID string) (*models.Topic, error) {
	topic, ok := s.topics[id]
	if !ok {
		return nil, repository.ErrTopicNotFound
	}
	topic.Locked = locked
	if locked {
		now := time.Now()
		topic.LockedBy = &actorID
		topic.LockedAt = &now
	} else {
		topic.LockedBy = nil
		topic.LockedAt = nil
	}
	return topic, nil
}

func newTopicServiceForTest() (*TopicService, *topicStoreStub, *threadCacheStub, *auditRecorderStub) {
	store := &topicStoreStub{topics: map[string]*models.Topic{}}
	cache := newThreadCacheStub()
	audit := &auditRecorderStub{}
	return NewTopicService(store, cache, audit, nil, nil), store, cache, audit
}

func TestTopicServiceCreate(t *testing.T) {
	svc, _, _, audit := newTopicServiceForTest()

	topic, err := svc.Create(context.Background(), moderator, dto.CreateTopicRequest{Title: "  <em>Week 1</em> reading "})
	require.NoError(t, err)
	assert.Equal(t, "Week 1 reading", topic.Title)
	assert.Equal(t, moderator.ID, topic.CreatedBy)
	assert.False(t, topic.Locked)
	assert.Equal(t, []string{models.AuditActionTopicCreate}, audit.actions())

	_, err = svc.Create(context.Background(), student, dto.CreateTopicRequest{Title: "nope"})
	requireAppErrorCode(t, err, appErrors.ErrForbidden.Code)

	_, err = svc.Create(context.Background(), moderator, dto.CreateTopicRequest{Title: "<script></script>"})
	requireAppErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestTopicServiceLockCycle(t *testing.T) {
	svc, store, cache, audit := newTopicServiceForTest()
	store.topics["T"] = &models.Topic{ID: "T", Title: "t"}

	topic, err := svc.Lock(context.Background(), moderator, "T")
	require.NoError(t, err)
	assert.True(t, topic.Locked)
	assert.Equal(t, moderator.ID, *topic.LockedBy)

	topic, err = svc.Unlock(context.Background(), moderator, "T")
	require.NoError(t, err)
	assert.False(t, topic.Locked)
	assert.Nil(t, topic.LockedBy)

	assert.Equal(t, []string{models.AuditActionTopicLock, models.AuditActionTopicUnlock}, audit.actions())
	assert.Equal(t, int64(2), cache.generation("T"))
	assert.Empty(t, cache.invalidated)

	_, err = svc.Lock(context.Background(), student, "T")
	requireAppErrorCode(t, err, appErrors.ErrForbidden.Code)

	_, err = svc.Lock(context.Background(), moderator, "missing")
	requireAppErrorCode(t, err, appErrors.ErrNotFound.Code)
}

func TestTopicServiceGet(t *testing.T) {
	svc, store, _, _ := newTopicServiceForTest()
	store.topics["T"] = &models.Topic{ID: "T"}

	topic, err := svc.Get(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, "T", topic.ID)

	_, err = svc.Get(context.Background(), "missing")
	requireAppErrorCode(t, err, appErrors.ErrNotFound.Code)

	store.err = errors.New("db down")
	_, err = svc.Get(context.Background(), "T")
	requireAppErrorCode(t, err, appErrors.ErrInternal.Code)
}
