package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/resilience"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func taskRows(t *model.Task) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "person_id", "channel", "status", "priority", "attempts",
		"search_after", "available_at", "lease_token", "lease_expires_at",
		"last_error", "created_at", "updated_at",
	}).AddRow(
		t.ID, t.PersonID, t.Channel, t.Status, t.Priority, t.Attempts,
		(*time.Time)(nil), t.AvailableAt, t.LeaseToken, (*time.Time)(nil),
		t.LastError, t.CreatedAt, t.UpdatedAt,
	)
}

func TestPostgresClaimTaskUsesSkipLocked(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	want := &model.Task{
		ID:          "task-1",
		PersonID:    "person-1",
		Channel:     model.ChannelSocial,
		Status:      model.TaskProcessing,
		LeaseToken:  "token-1",
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs("w1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(taskRows(want))

	got, err := s.ClaimTask(context.Background(), "w1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "task-1", got.ID)
	assert.Equal(t, model.TaskProcessing, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClaimTaskEmptyQueue(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs("w1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	got, err := s.ClaimTask(context.Background(), "w1", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCompleteTaskLeaseLost(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE tasks SET status = 'completed'`).
		WithArgs("task-1", "stale-token").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteTask(context.Background(), "task-1", "stale-token")
	require.ErrorIs(t, err, resilience.ErrLeaseLost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCompleteTask(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE tasks SET status = 'completed'`).
		WithArgs("task-1", "token-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.CompleteTask(context.Background(), "task-1", "token-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdvanceWatermark(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ts := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`ON CONFLICT \(person_id, channel\) DO UPDATE`).
		WithArgs("person-1", "social", ts).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.AdvanceWatermark(context.Background(), "person-1", model.ChannelSocial, ts))
	assert.NoError(t, mock.ExpectationsWereMet())

	// Zero timestamps never touch the database.
	require.NoError(t, s.AdvanceWatermark(context.Background(), "person-1", model.ChannelSocial, time.Time{}))
}

func TestPostgresEnqueueTaskDuplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO tasks`).
		WithArgs(pgxmock.AnyArg(), "person-1", "code", "pending", 0,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.EnqueueTask(context.Background(), &model.Task{PersonID: "person-1", Channel: model.ChannelCode})
	require.ErrorIs(t, err, resilience.ErrDuplicateActiveTask)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertFragmentDedup(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(person_id, content_hash\) DO NOTHING`).
		WithArgs(pgxmock.AnyArg(), "person-1", "social", "hash", "", "text",
			"", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := s.InsertFragment(context.Background(), &model.Fragment{
		PersonID:    "person-1",
		Channel:     model.ChannelSocial,
		ContentHash: "hash",
		Content:     "text",
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
