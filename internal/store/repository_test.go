package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	return newTestStore(t).repo
}

func ids(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestRepository_Scenario(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, r.Add(ctx, Record{ID: "e1", Payload: "p1"}))
	require.NoError(t, r.Add(ctx, Record{ID: "e2", Payload: "p2"}))

	n, err = r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := r.NextEvents(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []Record{{ID: "e1", Payload: "p1"}}, got)

	require.NoError(t, r.Remove(ctx, []string{"e1"}))
	n, err = r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = r.NextEvents(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []Record{{ID: "e2", Payload: "p2"}}, got)
}

func TestRepository_NextEventsOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, r.Add(ctx, Record{ID: id, Payload: "payload-" + id}))
	}

	got, err := r.NextEvents(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids(got))

	got, err = r.NextEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	got, err = r.NextEvents(ctx, -4)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.NextEvents(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestRepository_NextEventsEmptyStore(t *testing.T) {
	got, err := newTestRepo(t).NextEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRepository_SequenceNotReusedAfterRemove(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	require.NoError(t, r.Add(ctx, Record{ID: "a", Payload: "1"}))
	require.NoError(t, r.Add(ctx, Record{ID: "b", Payload: "2"}))
	require.NoError(t, r.Remove(ctx, []string{"b"}))
	require.NoError(t, r.Add(ctx, Record{ID: "b", Payload: "3"}))

	var seq []int64
	require.NoError(t, r.c.db.Select(&seq, "SELECT sequence FROM events ORDER BY sequence"))
	assert.Equal(t, []int64{1, 3}, seq)
}

func TestRepository_AddDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	require.NoError(t, r.Add(ctx, Record{ID: "dup", Payload: "first"}))
	err := r.Add(ctx, Record{ID: "dup", Payload: "second"})

	var ce *ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "dup", ce.ID)

	got, err := r.NextEvents(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []Record{{ID: "dup", Payload: "first"}}, got)
}

func TestRepository_AddBatchAtomic(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	require.NoError(t, r.Add(ctx, Record{ID: "b", Payload: "existing"}))

	err := r.AddBatch(ctx, []Record{
		{ID: "a", Payload: "1"},
		{ID: "b", Payload: "2"},
		{ID: "c", Payload: "3"},
	})
	var ce *ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "b", ce.ID)

	got, err := r.NextEvents(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []Record{{ID: "b", Payload: "existing"}}, got)
}

func TestRepository_AddBatchDuplicateWithinBatch(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	err := r.AddBatch(ctx, []Record{{ID: "x", Payload: "1"}, {ID: "x", Payload: "2"}})
	var ce *ConstraintError
	require.ErrorAs(t, err, &ce)

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepository_AddBatchKeepsInputOrder(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	batch := make([]Record, 50)
	for i := range batch {
		batch[i] = Record{ID: fmt.Sprintf("id-%02d", 49-i), Payload: fmt.Sprint(i)}
	}
	require.NoError(t, r.AddBatch(ctx, batch))
	require.NoError(t, r.AddBatch(ctx, nil))

	got, err := r.NextEvents(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, batch, got)
}

func TestRepository_RemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	require.NoError(t, r.AddBatch(ctx, []Record{{ID: "a", Payload: "1"}, {ID: "b", Payload: "2"}}))

	require.NoError(t, r.Remove(ctx, []string{"a", "missing"}))
	require.NoError(t, r.Remove(ctx, []string{"a", "missing"}))
	require.NoError(t, r.Remove(ctx, nil))

	got, err := r.NextEvents(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))
}

func TestRepository_RemoveManyChunks(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	batch := make([]Record, 1234)
	for i := range batch {
		batch[i] = Record{ID: fmt.Sprintf("evt-%d", i), Payload: "x"}
	}
	require.NoError(t, r.AddBatch(ctx, batch))

	require.NoError(t, r.Remove(ctx, ids(batch[:1200])))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 34, n)

	got, err := r.NextEvents(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "evt-1200", got[0].ID)
}

func TestRepository_Take(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	for i := 1; i <= 5; i++ {
		require.NoError(t, r.Add(ctx, Record{ID: fmt.Sprint(i), Payload: fmt.Sprint(i)}))
	}

	got, err := r.Take(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids(got))

	got, err = r.Take(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "5"}, ids(got))

	got, err = r.Take(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRepository_PayloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	payloads := []string{"😀", `"';`, "line\nbreak", "", "NULL", "tab\there"}
	for i, p := range payloads {
		require.NoError(t, r.Add(ctx, Record{ID: fmt.Sprint(i), Payload: p}))
	}

	got, err := r.NextEvents(ctx, len(payloads))
	require.NoError(t, err)
	for i, p := range payloads {
		assert.Equal(t, p, got[i].Payload)
	}
}

// mockRepo wires a Repository to go-sqlmock for failure paths that a real
// SQLite file cannot produce on demand.
func mockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c := &conn{db: sqlx.NewDb(db, "sqlite"), path: "mock", logger: slog.Default()}
	return &Repository{c: c}, mock
}

func TestRepository_AddBatchStorageFailureRollsBack(t *testing.T) {
	r, mock := mockRepo(t)
	diskFull := errors.New("database or disk is full")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs("a", "1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs("b", "2").
		WillReturnError(diskFull)
	mock.ExpectRollback()

	err := r.AddBatch(context.Background(), []Record{{ID: "a", Payload: "1"}, {ID: "b", Payload: "2"}})

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "add", se.Op)
	assert.ErrorIs(t, err, diskFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CommitFailure(t *testing.T) {
	r, mock := mockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE identifier IN (?, ?)")).
		WithArgs("a", "b").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit().WillReturnError(errors.New("disk I/O error"))

	err := r.Remove(context.Background(), []string{"a", "b"})

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "commit", se.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_BeginFailure(t *testing.T) {
	r, mock := mockRepo(t)
	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	err := r.Add(context.Background(), Record{ID: "a", Payload: "1"})

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "begin", se.Op)
}

func TestRepository_ReadFailures(t *testing.T) {
	r, mock := mockRepo(t)
	ioErr := errors.New("disk I/O error")

	mock.ExpectQuery(regexp.QuoteMeta(countEventsSQL)).WillReturnError(ioErr)
	_, err := r.Count(context.Background())
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "count", se.Op)

	mock.ExpectQuery(regexp.QuoteMeta(nextEventsSQL)).WithArgs(5).WillReturnError(ioErr)
	_, err = r.NextEvents(context.Background(), 5)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "next events", se.Op)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_TakeRollsBackOnDeleteFailure(t *testing.T) {
	r, mock := mockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(nextEventsSQL)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"identifier", "payload"}).
			AddRow("a", "1").
			AddRow("b", "2"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events")).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	got, err := r.Take(context.Background(), 2)
	assert.Nil(t, got)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "remove", se.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}
