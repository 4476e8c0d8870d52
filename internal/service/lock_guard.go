package service

import (
	"github.com/noah-isme/discussion-api/internal/models"
	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
)

// TopicLockGuard decides whether an actor may mutate entries of a topic.
type TopicLockGuard struct {
	// LockBlocksDelete applies the lock rule to soft deletes as well as replies and edits.
	LockBlocksDelete bool
	// StudentOwnEntriesOnly restricts non-moderators to editing and deleting their own entries.
	StudentOwnEntriesOnly bool
}

// AssertMutationAllowed denies replies and edits on a locked topic unless the actor moderates.
func (g TopicLockGuard) AssertMutationAllowed(topic *models.Topic, capability models.Capability) error {
	if topic == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "topic not found")
	}
	if topic.Locked && capability != models.CapabilityModerator {
		return appErrors.Clone(appErrors.ErrPermissionDenied, "topic is locked")
	}
	return nil
}

// AssertDeleteAllowed applies the lock rule to deletes only when configured to.
func (g TopicLockGuard) AssertDeleteAllowed(topic *models.Topic, capability models.Capability) error {
	if !g.LockBlocksDelete {
		return nil
	}
	return g.AssertMutationAllowed(topic, capability)
}

// AssertOwnership checks that a non-moderator only touches entries they authored.
func (g TopicLockGuard) AssertOwnership(entry *models.DiscussionEntry, actor models.Actor) error {
	if actor.IsModerator() || !g.StudentOwnEntriesOnly {
		return nil
	}
	if entry == nil || entry.AuthorID != actor.ID {
		return appErrors.Clone(appErrors.ErrPermissionDenied, "only the author may modify this entry")
	}
	return nil
}
