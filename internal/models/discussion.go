package models

import (
	"fmt"
	"time"
)

// EntryState is the reader-visible lifecycle state of a discussion entry.
type EntryState string

const (
	EntryStateActive  EntryState = "active"
	EntryStateEdited  EntryState = "edited"
	EntryStateDeleted EntryState = "deleted"
)

// Topic is a discussion thread owning a tree of entries.
type Topic struct {
	ID        string     `db:"id" json:"id"`
	Title     string     `db:"title" json:"title"`
	Locked    bool       `db:"locked" json:"locked"`
	LockedBy  *string    `db:"locked_by" json:"locked_by,omitempty"`
	LockedAt  *time.Time `db:"locked_at" json:"locked_at,omitempty"`
	CreatedBy string     `db:"created_by" json:"created_by"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// DiscussionEntry is a single post inside a topic. Rows are never physically removed.
type DiscussionEntry struct {
	ID        string     `db:"id" json:"id"`
	TopicID   string     `db:"topic_id" json:"topic_id"`
	ParentID  *string    `db:"parent_id" json:"parent_id,omitempty"`
	AuthorID  string     `db:"author_id" json:"author_id"`
	Message   string     `db:"message" json:"message"`
	Depth     int        `db:"depth" json:"depth"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	EditedBy  *string    `db:"edited_by" json:"edited_by,omitempty"`
	EditedAt  *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	DeletedBy *string    `db:"deleted_by" json:"deleted_by,omitempty"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// IsRoot reports whether the entry replies directly to the topic.
func (e *DiscussionEntry) IsRoot() bool {
	return e.ParentID == nil
}

// IsDeleted reports whether the entry has been soft deleted.
func (e *DiscussionEntry) IsDeleted() bool {
	return e.DeletedAt != nil
}

// IsEdited reports whether the entry has been edited at least once.
func (e *DiscussionEntry) IsEdited() bool {
	return e.EditedAt != nil
}

// State derives the lifecycle state. Deleted wins over edited.
func (e *DiscussionEntry) State() EntryState {
	switch {
	case e.IsDeleted():
		return EntryStateDeleted
	case e.IsEdited():
		return EntryStateEdited
	default:
		return EntryStateActive
	}
}

// Notice renders the audit line shown beside an entry, empty for untouched entries.
func (e *DiscussionEntry) Notice() string {
	switch {
	case e.IsDeleted():
		return fmt.Sprintf("Deleted by %s on %s", derefString(e.DeletedBy), e.DeletedAt.UTC().Format(time.RFC3339))
	case e.IsEdited():
		return fmt.Sprintf("Edited by %s on %s", derefString(e.EditedBy), e.EditedAt.UTC().Format(time.RFC3339))
	default:
		return ""
	}
}

// EntryFilter narrows topic-wide entry listings.
type EntryFilter struct {
	TopicID        string
	AuthorID       string
	IncludeDeleted bool
	MaxDepth       *int
	Page           int
	PageSize       int
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
