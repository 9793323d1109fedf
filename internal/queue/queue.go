package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"eventspool/internal/store"
)

// Queue is a typed FIFO over a store.Store. Items are encoded with a Codec
// and identified by WithIdentity, or by a random UUID.
type Queue[T any] struct {
	store    *store.Store
	codec    Codec[T]
	identity func(T) string
	logger   *slog.Logger
}

type Option[T any] func(*Queue[T])

// WithIdentity derives the record identifier from the item. Enqueueing two
// items with the same identity fails with *store.ConstraintError.
func WithIdentity[T any](fn func(T) string) Option[T] {
	return func(q *Queue[T]) { q.identity = fn }
}

func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(q *Queue[T]) { q.logger = l }
}

func New[T any](s *store.Store, codec Codec[T], opts ...Option[T]) *Queue[T] {
	q := &Queue[T]{
		store:    s,
		codec:    codec,
		identity: func(T) string { return uuid.NewString() },
		logger:   slog.Default().With("component", "queue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue[T]) record(item T) (store.Record, error) {
	payload, err := q.codec.Encode(item)
	if err != nil {
		return store.Record{}, fmt.Errorf("encode queue item: %w", err)
	}
	return store.Record{ID: q.identity(item), Payload: payload}, nil
}

func (q *Queue[T]) Enqueue(ctx context.Context, item T) error {
	rec, err := q.record(item)
	if err != nil {
		return err
	}
	return q.store.Add(ctx, rec)
}

// EnqueueAll appends items as one batch: all of them or none.
func (q *Queue[T]) EnqueueAll(ctx context.Context, items []T) error {
	recs := make([]store.Record, 0, len(items))
	for _, item := range items {
		rec, err := q.record(item)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	return q.store.AddBatch(ctx, recs)
}

// PeekN returns up to n of the oldest items without removing them.
func (q *Queue[T]) PeekN(ctx context.Context, n int) ([]T, error) {
	recs, err := q.store.NextEvents(ctx, n)
	if err != nil {
		return nil, err
	}
	return q.decode(recs), nil
}

func (q *Queue[T]) Peek(ctx context.Context) (T, bool, error) {
	return first(q.PeekN(ctx, 1))
}

// DequeueN removes and returns up to n of the oldest items in one
// transaction.
func (q *Queue[T]) DequeueN(ctx context.Context, n int) ([]T, error) {
	recs, err := q.store.Take(ctx, n)
	if err != nil {
		return nil, err
	}
	return q.decode(recs), nil
}

func (q *Queue[T]) Dequeue(ctx context.Context) (T, bool, error) {
	return first(q.DequeueN(ctx, 1))
}

func (q *Queue[T]) Len(ctx context.Context) (int, error) {
	return q.store.Count(ctx)
}

func (q *Queue[T]) IsEmpty(ctx context.Context) (bool, error) {
	n, err := q.store.Count(ctx)
	return n == 0, err
}

// decode skips payloads the codec rejects. A dequeue still removes them.
func (q *Queue[T]) decode(recs []store.Record) []T {
	items := make([]T, 0, len(recs))
	for _, rec := range recs {
		item, err := q.codec.Decode(rec.Payload)
		if err != nil {
			q.logger.Warn("skipping undecodable queue item", "id", rec.ID, "err", err)
			continue
		}
		items = append(items, item)
	}
	return items
}

func first[T any](items []T, err error) (T, bool, error) {
	var zero T
	if err != nil || len(items) == 0 {
		return zero, false, err
	}
	return items[0], true, nil
}
