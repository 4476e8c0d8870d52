package dto

import (
	"time"

	"github.com/noah-isme/discussion-api/internal/models"
)

// CreateTopicRequest describes payload for opening a topic.
type CreateTopicRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

// ReplyRequest describes payload for posting an entry. ParentID is absent for root entries.
type ReplyRequest struct {
	TopicID        string  `json:"-" validate:"required"`
	ParentID       *string `json:"parent_id,omitempty" validate:"omitempty,min=1"`
	Message        string  `json:"message" validate:"required"`
	IdempotencyKey string  `json:"-" validate:"omitempty,max=128"`
}

// EditEntryRequest describes payload for editing an entry's message.
type EditEntryRequest struct {
	Message string `json:"message" validate:"required"`
}

// EntryView is the reader-facing projection of an entry. Message is a sanitized HTML fragment,
// so plain text arrives entity-escaped; it is blank once deleted.
type EntryView struct {
	ID        string            `json:"id"`
	TopicID   string            `json:"topic_id"`
	ParentID  *string           `json:"parent_id,omitempty"`
	AuthorID  string            `json:"author_id"`
	Message   string            `json:"message"`
	Depth     int               `json:"depth"`
	State     models.EntryState `json:"state"`
	Notice    string            `json:"notice,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	EditedBy  *string           `json:"edited_by,omitempty"`
	EditedAt  *time.Time        `json:"edited_at,omitempty"`
	DeletedBy *string           `json:"deleted_by,omitempty"`
	DeletedAt *time.Time        `json:"deleted_at,omitempty"`
}

// NewEntryView projects an entry, hiding content of deleted entries.
func NewEntryView(e *models.DiscussionEntry) EntryView {
	view := EntryView{
		ID:        e.ID,
		TopicID:   e.TopicID,
		ParentID:  e.ParentID,
		AuthorID:  e.AuthorID,
		Message:   e.Message,
		Depth:     e.Depth,
		State:     e.State(),
		Notice:    e.Notice(),
		CreatedAt: e.CreatedAt,
		EditedBy:  e.EditedBy,
		EditedAt:  e.EditedAt,
		DeletedBy: e.DeletedBy,
		DeletedAt: e.DeletedAt,
	}
	if e.IsDeleted() {
		view.Message = ""
	}
	return view
}

// ThreadNode is an entry with its nested replies.
type ThreadNode struct {
	EntryView
	Replies []*ThreadNode `json:"replies"`
}

// ThreadView is the full reconstructed tree of a topic.
type ThreadView struct {
	Topic      models.Topic  `json:"topic"`
	Entries    []*ThreadNode `json:"entries"`
	EntryCount int           `json:"entry_count"`
	MaxDepth   int           `json:"max_depth"`
}

// DepthMismatch reports an entry whose stored depth disagrees with its parent chain.
type DepthMismatch struct {
	EntryID  string `json:"entry_id"`
	Stored   int    `json:"stored"`
	Computed int    `json:"computed"`
	Problem  string `json:"problem,omitempty"`
}

// IntegrityReport summarises a depth verification run over a topic.
type IntegrityReport struct {
	TopicID    string          `json:"topic_id"`
	Checked    int             `json:"checked"`
	Mismatches []DepthMismatch `json:"mismatches"`
}
