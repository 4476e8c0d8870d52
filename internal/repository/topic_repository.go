package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/discussion-api/internal/models"
)

const topicColumns = `id, title, locked, locked_by, locked_at, created_by, created_at, updated_at`

// TopicRepository persists discussion topics.
type TopicRepository struct {
	db  *sqlx.DB
	obs QueryObserver
}

// NewTopicRepository constructs the repository. obs may be nil.
func NewTopicRepository(db *sqlx.DB, obs QueryObserver) *TopicRepository {
	if obs == nil {
		obs = nopObserver{}
	}
	return &TopicRepository{db: db, obs: obs}
}

// Create inserts a new topic.
func (r *TopicRepository) Create(ctx context.Context, topic *models.Topic) error {
	defer observe(r.obs, "topic_create")()
	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	topic.CreatedAt = now
	topic.UpdatedAt = now

	const query = `INSERT INTO discussion_topics (id, title, locked, locked_by, locked_at, created_by, created_at, updated_at)
VALUES (:id, :title, :locked, :locked_by, :locked_at, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, topic); err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

// FindByID returns a topic or ErrTopicNotFound.
func (r *TopicRepository) FindByID(ctx context.Context, id string) (*models.Topic, error) {
	defer observe(r.obs, "topic_find")()
	query := `SELECT ` + topicColumns + ` FROM discussion_topics WHERE id = $1`
	var topic models.Topic
	if err := r.db.GetContext(ctx, &topic, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTopicNotFound
		}
		return nil, fmt.Errorf("find topic: %w", err)
	}
	return &topic, nil
}

// SetLocked flips the lock flag. The row lock taken by UPDATE waits for in-flight
// entry mutations holding the topic FOR SHARE, so a mutation never straddles a lock change.
func (r *TopicRepository) SetLocked(ctx context.Context, id string, locked bool, actorID string) (*models.Topic, error) {
	defer observe(r.obs, "topic_set_locked")()
	now := time.Now().UTC()
	var lockedBy *string
	var lockedAt *time.Time
	if locked {
		lockedBy = &actorID
		lockedAt = &now
	}

	query := `UPDATE discussion_topics SET locked = $2, locked_by = $3, locked_at = $4, updated_at = $5
WHERE id = $1 RETURNING ` + topicColumns
	var topic models.Topic
	if err := r.db.GetContext(ctx, &topic, query, id, locked, lockedBy, lockedAt, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTopicNotFound
		}
		return nil, fmt.Errorf("set topic lock: %w", err)
	}
	return &topic, nil
}

func lockTopicShared(ctx context.Context, tx *sqlx.Tx, id string) (*models.Topic, error) {
	query := `SELECT ` + topicColumns + ` FROM discussion_topics WHERE id = $1 FOR SHARE`
	var topic models.Topic
	if err := tx.GetContext(ctx, &topic, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTopicNotFound
		}
		return nil, fmt.Errorf("lock topic: %w", err)
	}
	return &topic, nil
}
