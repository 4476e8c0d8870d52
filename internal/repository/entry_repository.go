package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/discussion-api/internal/models"
	"github.com/noah-isme/discussion-api/internal/thread"
)

const entryColumns = `id, topic_id, parent_id, author_id, message, depth, created_at, updated_at, edited_by, edited_at, deleted_by, deleted_at`

// TopicGuard runs inside the mutation transaction with the topic row share-locked.
// A non-nil error aborts the mutation and is returned unchanged.
type TopicGuard func(topic *models.Topic) error

// EntryGuard is the TopicGuard counterpart for mutations of an existing entry.
type EntryGuard func(topic *models.Topic, entry *models.DiscussionEntry) error

// CreateEntryParams holds the values for a new entry.
type CreateEntryParams struct {
	TopicID  string
	ParentID *string
	AuthorID string
	Message  string
}

// EntryRepository persists discussion entries and owns parent-child integrity.
type EntryRepository struct {
	db  *sqlx.DB
	obs QueryObserver
}

// NewEntryRepository constructs the repository. obs may be nil.
func NewEntryRepository(db *sqlx.DB, obs QueryObserver) *EntryRepository {
	if obs == nil {
		obs = nopObserver{}
	}
	return &EntryRepository{db: db, obs: obs}
}

// Create inserts an entry under its topic, and under ParentID when set. Depth is
// derived from the parent at insert time and never recomputed afterwards.
func (r *EntryRepository) Create(ctx context.Context, params CreateEntryParams, guard TopicGuard) (entry *models.DiscussionEntry, err error) {
	defer observe(r.obs, "entry_create")()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create entry tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	topic, err := lockTopicShared(ctx, tx, params.TopicID)
	if err != nil {
		return nil, err
	}
	if guard != nil {
		if err = guard(topic); err != nil {
			return nil, err
		}
	}

	var parent *models.DiscussionEntry
	if params.ParentID != nil {
		parent, err = selectEntry(ctx, tx, *params.ParentID, "FOR SHARE")
		if err != nil {
			if errors.Is(err, ErrEntryNotFound) {
				err = ErrParentNotFound
			}
			return nil, err
		}
		if parent.TopicID != topic.ID {
			err = ErrCrossTopicParent
			return nil, err
		}
	}

	now := time.Now().UTC()
	entry = &models.DiscussionEntry{
		ID:        uuid.NewString(),
		TopicID:   topic.ID,
		ParentID:  params.ParentID,
		AuthorID:  params.AuthorID,
		Message:   params.Message,
		Depth:     thread.ComputeDepth(parent),
		CreatedAt: now,
		UpdatedAt: now,
	}
	const insertQuery = `INSERT INTO discussion_entries (id, topic_id, parent_id, author_id, message, depth, created_at, updated_at)
VALUES (:id, :topic_id, :parent_id, :author_id, :message, :depth, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, entry); err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create entry: %w", err)
	}
	return entry, nil
}

// FindByID returns an entry, deleted or not, or ErrEntryNotFound.
func (r *EntryRepository) FindByID(ctx context.Context, id string) (*models.DiscussionEntry, error) {
	defer observe(r.obs, "entry_find")()
	query := `SELECT ` + entryColumns + ` FROM discussion_entries WHERE id = $1`
	var entry models.DiscussionEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return &entry, nil
}

// ListReplies returns the direct children of parentID in insertion order, deleted ones included.
func (r *EntryRepository) ListReplies(ctx context.Context, parentID string) ([]models.DiscussionEntry, error) {
	defer observe(r.obs, "entry_list_replies")()
	query := `SELECT ` + entryColumns + ` FROM discussion_entries WHERE parent_id = $1 ORDER BY seq ASC`
	entries := []models.DiscussionEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, parentID); err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	return entries, nil
}

// ListByTopic returns the entries of a topic in insertion order.
func (r *EntryRepository) ListByTopic(ctx context.Context, filter models.EntryFilter) ([]models.DiscussionEntry, error) {
	defer observe(r.obs, "entry_list_topic")()
	builder := sq.Select(entryColumns).
		From("discussion_entries").
		Where(sq.Eq{"topic_id": filter.TopicID}).
		OrderBy("seq ASC").
		PlaceholderFormat(sq.Dollar)
	if filter.AuthorID != "" {
		builder = builder.Where(sq.Eq{"author_id": filter.AuthorID})
	}
	if !filter.IncludeDeleted {
		builder = builder.Where(sq.Eq{"deleted_at": nil})
	}
	if filter.MaxDepth != nil {
		builder = builder.Where(sq.LtOrEq{"depth": *filter.MaxDepth})
	}
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		builder = builder.Limit(uint64(filter.PageSize)).Offset(uint64((page - 1) * filter.PageSize))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build topic entries query: %w", err)
	}
	entries := []models.DiscussionEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list topic entries: %w", err)
	}
	return entries, nil
}

// Edit replaces the message and records the editor. The entry row is locked FOR UPDATE,
// so concurrent edits serialize and the stored editor is always the last committed writer.
func (r *EntryRepository) Edit(ctx context.Context, id, editorID, message string, guard EntryGuard) (entry *models.DiscussionEntry, err error) {
	defer observe(r.obs, "entry_edit")()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin edit entry tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	topic, entry, err := lockTopicThenEntry(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if entry.IsDeleted() {
		err = ErrEntryDeleted
		return nil, err
	}
	if guard != nil {
		if err = guard(topic, entry); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	const updateQuery = `UPDATE discussion_entries SET message = $2, edited_by = $3, edited_at = $4, updated_at = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, id, message, editorID, now); err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit edit entry: %w", err)
	}

	entry.Message = message
	entry.EditedBy = &editorID
	entry.EditedAt = &now
	entry.UpdatedAt = now
	return entry, nil
}

// SoftDelete marks an entry deleted while keeping the row and its links. Deleting an
// already deleted entry returns it unchanged without consulting the guard.
func (r *EntryRepository) SoftDelete(ctx context.Context, id, deleterID string, guard EntryGuard) (entry *models.DiscussionEntry, err error) {
	defer observe(r.obs, "entry_soft_delete")()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete entry tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	topic, entry, err := lockTopicThenEntry(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if entry.IsDeleted() {
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit delete entry: %w", err)
		}
		return entry, nil
	}
	if guard != nil {
		if err = guard(topic, entry); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	const updateQuery = `UPDATE discussion_entries SET deleted_by = $2, deleted_at = $3, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`
	if _, err = tx.ExecContext(ctx, updateQuery, id, deleterID, now); err != nil {
		return nil, fmt.Errorf("soft delete entry: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete entry: %w", err)
	}

	entry.DeletedBy = &deleterID
	entry.DeletedAt = &now
	entry.UpdatedAt = now
	return entry, nil
}

// lockTopicThenEntry takes the topic share lock before the entry row lock, the order Create
// uses. topic_id never changes after insert, so it is read without a lock first.
func lockTopicThenEntry(ctx context.Context, tx *sqlx.Tx, id string) (*models.Topic, *models.DiscussionEntry, error) {
	var topicID string
	if err := tx.GetContext(ctx, &topicID, `SELECT topic_id FROM discussion_entries WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrEntryNotFound
		}
		return nil, nil, fmt.Errorf("resolve entry topic: %w", err)
	}
	topic, err := lockTopicShared(ctx, tx, topicID)
	if err != nil {
		return nil, nil, err
	}
	entry, err := selectEntry(ctx, tx, id, "FOR UPDATE")
	if err != nil {
		return nil, nil, err
	}
	return topic, entry, nil
}

func selectEntry(ctx context.Context, tx *sqlx.Tx, id, lockClause string) (*models.DiscussionEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM discussion_entries WHERE id = $1 ` + lockClause
	var entry models.DiscussionEntry
	if err := tx.GetContext(ctx, &entry, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("load entry: %w", err)
	}
	return &entry, nil
}
