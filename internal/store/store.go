package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Observer receives the outcome of every store operation.
type Observer interface {
	ObserveOperation(op string, d time.Duration, err error)
}

type Option func(*options)

type options struct {
	driver   string
	logger   *slog.Logger
	observer Observer
}

// WithDriver selects the database/sql driver name ("sqlite" or, in cgo
// builds, "sqlite3").
func WithDriver(name string) Option {
	return func(o *options) { o.driver = name }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Store is a durable FIFO event buffer. Every operation, blocking or async,
// runs on one lane in submission order, so a read always observes the
// mutations submitted before it.
//
// Context cancellation does not abort an operation once it is submitted.
type Store struct {
	conn      *conn
	repo      *Repository
	lane      *lane
	logger    *slog.Logger
	observer  Observer
	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates the store at path. An empty path uses the default
// location. Failures are reported as *InitError.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{driver: DefaultDriver}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default().With("component", "store")
	}

	c, err := openConn(path, o.driver, o.logger)
	if err != nil {
		return nil, err
	}
	return &Store{
		conn:     c,
		repo:     &Repository{c: c},
		lane:     newLane(),
		logger:   o.logger,
		observer: o.observer,
	}, nil
}

// Path returns the database file in use.
func (s *Store) Path() string { return s.conn.path }

// Close waits for submitted operations to finish and closes the database.
// Calls after the first return the same result.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.lane.close()
		s.closeErr = s.conn.close()
		s.logger.Debug("event store closed", "path", s.conn.path)
	})
	return s.closeErr
}

type result[T any] struct {
	val T
	err error
}

// exec runs fn on the lane goroutine, converting a panic into a StorageError.
func exec[T any](s *Store, ctx context.Context, op string, fn func(context.Context) (T, error)) (val T, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("store operation panicked", "op", op, "panic", p)
			err = &StorageError{Op: op, Cause: fmt.Errorf("panic: %v", p)}
		}
		if s.observer != nil {
			s.observer.ObserveOperation(op, time.Since(start), err)
		}
	}()
	return fn(context.WithoutCancel(ctx))
}

func call[T any](s *Store, ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	done := make(chan result[T], 1)
	err := s.lane.submit(func() {
		v, err := exec(s, ctx, op, fn)
		done <- result[T]{val: v, err: err}
	})
	if err != nil {
		var zero T
		return zero, err
	}
	r := <-done
	return r.val, r.err
}

// callAsync delivers the outcome to handler exactly once on its own
// goroutine, never on the lane.
func callAsync[T any](s *Store, ctx context.Context, op string, fn func(context.Context) (T, error), handler func(T, error)) {
	deliver := func(v T, err error) {
		if handler != nil {
			go handler(v, err)
		}
	}
	err := s.lane.submit(func() {
		deliver(exec(s, ctx, op, fn))
	})
	if err != nil {
		var zero T
		deliver(zero, err)
	}
}

func noValue(fn func(context.Context) error) func(context.Context) (struct{}, error) {
	return func(ctx context.Context) (struct{}, error) { return struct{}{}, fn(ctx) }
}

func dropValue(handler func(error)) func(struct{}, error) {
	if handler == nil {
		return nil
	}
	return func(_ struct{}, err error) { handler(err) }
}

func (s *Store) Add(ctx context.Context, rec Record) error {
	_, err := call(s, ctx, "add", noValue(func(ctx context.Context) error {
		return s.repo.Add(ctx, rec)
	}))
	return err
}

func (s *Store) AddBatch(ctx context.Context, recs []Record) error {
	recs = append([]Record(nil), recs...)
	_, err := call(s, ctx, "add_batch", noValue(func(ctx context.Context) error {
		return s.repo.AddBatch(ctx, recs)
	}))
	return err
}

func (s *Store) Remove(ctx context.Context, ids []string) error {
	ids = append([]string(nil), ids...)
	_, err := call(s, ctx, "remove", noValue(func(ctx context.Context) error {
		return s.repo.Remove(ctx, ids)
	}))
	return err
}

func (s *Store) NextEvents(ctx context.Context, limit int) ([]Record, error) {
	return call(s, ctx, "next_events", func(ctx context.Context) ([]Record, error) {
		return s.repo.NextEvents(ctx, limit)
	})
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return call(s, ctx, "count", s.repo.Count)
}

// Take returns and deletes up to limit of the oldest records atomically.
func (s *Store) Take(ctx context.Context, limit int) ([]Record, error) {
	return call(s, ctx, "take", func(ctx context.Context) ([]Record, error) {
		return s.repo.Take(ctx, limit)
	})
}

func (s *Store) AddAsync(ctx context.Context, rec Record, handler func(error)) {
	callAsync(s, ctx, "add", noValue(func(ctx context.Context) error {
		return s.repo.Add(ctx, rec)
	}), dropValue(handler))
}

func (s *Store) AddBatchAsync(ctx context.Context, recs []Record, handler func(error)) {
	recs = append([]Record(nil), recs...)
	callAsync(s, ctx, "add_batch", noValue(func(ctx context.Context) error {
		return s.repo.AddBatch(ctx, recs)
	}), dropValue(handler))
}

func (s *Store) RemoveAsync(ctx context.Context, ids []string, handler func(error)) {
	ids = append([]string(nil), ids...)
	callAsync(s, ctx, "remove", noValue(func(ctx context.Context) error {
		return s.repo.Remove(ctx, ids)
	}), dropValue(handler))
}

func (s *Store) NextEventsAsync(ctx context.Context, limit int, handler func([]Record, error)) {
	callAsync(s, ctx, "next_events", func(ctx context.Context) ([]Record, error) {
		return s.repo.NextEvents(ctx, limit)
	}, handler)
}

func (s *Store) CountAsync(ctx context.Context, handler func(int, error)) {
	callAsync(s, ctx, "count", s.repo.Count, handler)
}

func (s *Store) TakeAsync(ctx context.Context, limit int, handler func([]Record, error)) {
	callAsync(s, ctx, "take", func(ctx context.Context) ([]Record, error) {
		return s.repo.Take(ctx, limit)
	}, handler)
}
