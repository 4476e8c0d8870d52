package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/discussion-api/internal/models"
)

type recordingObserver struct {
	labels []string
}

func (o *recordingObserver) ObserveDBQuery(label string, _ time.Duration) {
	o.labels = append(o.labels, label)
}

func TestTopicRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()
	obs := &recordingObserver{}
	repo := NewTopicRepository(db, obs)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO discussion_topics")).
		WithArgs(sqlmock.AnyArg(), "Week 1", false, nil, nil, "teacher-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	topic := &models.Topic{Title: "Week 1", CreatedBy: "teacher-1"}
	require.NoError(t, repo.Create(context.Background(), topic))
	assert.NotEmpty(t, topic.ID)
	assert.False(t, topic.CreatedAt.IsZero())
	assert.Equal(t, []string{"topic_create"}, obs.labels)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTopicRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()
	repo := NewTopicRepository(db, nil)

	mock.ExpectQuery(regexp.QuoteMeta("FROM discussion_topics WHERE id = $1")).
		WithArgs("topic-1").
		WillReturnRows(topicRow("topic-1", true))

	topic, err := repo.FindByID(context.Background(), "topic-1")
	require.NoError(t, err)
	assert.True(t, topic.Locked)

	mock.ExpectQuery(regexp.QuoteMeta("FROM discussion_topics WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTopicNotFound)
}

func TestTopicRepositorySetLocked(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()
	repo := NewTopicRepository(db, nil)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE discussion_topics SET locked = $2")).
		WithArgs("topic-1", true, "teacher-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(topicCols).AddRow("topic-1", "Week 1", true, "teacher-1", now, "teacher-1", now, now))

	topic, err := repo.SetLocked(context.Background(), "topic-1", true, "teacher-1")
	require.NoError(t, err)
	assert.True(t, topic.Locked)
	require.NotNil(t, topic.LockedBy)
	assert.Equal(t, "teacher-1", *topic.LockedBy)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE discussion_topics SET locked = $2")).
		WithArgs("topic-1", false, nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(topicCols).AddRow("topic-1", "Week 1", false, nil, nil, "teacher-1", now, now))

	topic, err = repo.SetLocked(context.Background(), "topic-1", false, "teacher-1")
	require.NoError(t, err)
	assert.False(t, topic.Locked)
	assert.Nil(t, topic.LockedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTopicRepositorySetLockedMissing(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()
	repo := NewTopicRepository(db, nil)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE discussion_topics")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.SetLocked(context.Background(), "missing", true, "teacher-1")
	assert.ErrorIs(t, err, ErrTopicNotFound)
}
