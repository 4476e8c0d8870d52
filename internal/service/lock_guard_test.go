package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/discussion-api/internal/models"
	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
)

func TestTopicLockGuardMutation(t *testing.T) {
	guard := TopicLockGuard{}
	open := &models.Topic{ID: "T"}
	locked := &models.Topic{ID: "T", Locked: true}

	cases := []struct {
		name       string
		topic      *models.Topic
		capability models.Capability
		denied     bool
	}{
		{"open student", open, models.CapabilityStudent, false},
		{"open other", open, models.CapabilityOther, false},
		{"locked moderator", locked, models.CapabilityModerator, false},
		{"locked student", locked, models.CapabilityStudent, true},
		{"locked other", locked, models.CapabilityOther, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := guard.AssertMutationAllowed(tc.topic, tc.capability)
			if tc.denied {
				assert.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.True(t, appErrors.Is(guard.AssertMutationAllowed(nil, models.CapabilityModerator), appErrors.ErrNotFound))
}

func TestTopicLockGuardDeletePolicy(t *testing.T) {
	locked := &models.Topic{ID: "T", Locked: true}

	assert.NoError(t, TopicLockGuard{LockBlocksDelete: false}.AssertDeleteAllowed(locked, models.CapabilityStudent))
	assert.True(t, appErrors.Is(TopicLockGuard{LockBlocksDelete: true}.AssertDeleteAllowed(locked, models.CapabilityStudent), appErrors.ErrPermissionDenied))
	assert.NoError(t, TopicLockGuard{LockBlocksDelete: true}.AssertDeleteAllowed(locked, models.CapabilityModerator))
}

func TestTopicLockGuardOwnership(t *testing.T) {
	entry := &models.DiscussionEntry{ID: "e1", AuthorID: "student-1"}
	strict := TopicLockGuard{StudentOwnEntriesOnly: true}

	assert.NoError(t, strict.AssertOwnership(entry, models.Actor{ID: "student-1", Capability: models.CapabilityStudent}))
	assert.NoError(t, strict.AssertOwnership(entry, models.Actor{ID: "teacher-1", Capability: models.CapabilityModerator}))
	assert.True(t, appErrors.Is(strict.AssertOwnership(entry, models.Actor{ID: "student-2", Capability: models.CapabilityStudent}), appErrors.ErrPermissionDenied))
	assert.NoError(t, TopicLockGuard{}.AssertOwnership(entry, models.Actor{ID: "student-2", Capability: models.CapabilityStudent}))
}
