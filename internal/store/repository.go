package store

import (
	"context"

	"github.com/jmoiron/sqlx"
)

const (
	insertEventSQL = `INSERT INTO events (identifier, payload) VALUES (?, ?)`
	nextEventsSQL  = `SELECT identifier, payload FROM events ORDER BY sequence ASC LIMIT ?`
	countEventsSQL = `SELECT COUNT(*) FROM events`
	removeEventSQL = `DELETE FROM events WHERE identifier IN (?)`
)

// removeChunk keeps IN lists under SQLite's host parameter limit.
const removeChunk = 500

// Record is one buffered event. The store assigns it a hidden sequence on
// insert; retrieval order follows that sequence.
type Record struct {
	ID      string `db:"identifier" json:"id"`
	Payload string `db:"payload" json:"payload"`
}

// Repository implements the store primitives against the events table. It is
// not safe for concurrent use on its own; Store serializes access to it.
type Repository struct {
	c *conn
}

// Add inserts one record.
func (r *Repository) Add(ctx context.Context, rec Record) error {
	return r.AddBatch(ctx, []Record{rec})
}

// AddBatch inserts recs in order inside one transaction. Either every record
// becomes visible or none does.
func (r *Repository) AddBatch(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	return r.c.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, rec := range recs {
			if _, err := tx.ExecContext(ctx, insertEventSQL, rec.ID, rec.Payload); err != nil {
				if isUniqueViolation(err) {
					return &ConstraintError{ID: rec.ID, Cause: err}
				}
				return storageErr("add", err)
			}
		}
		return nil
	})
}

// Remove deletes every record whose identifier is in ids. Unknown
// identifiers are ignored.
func (r *Repository) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.c.withTx(ctx, func(tx *sqlx.Tx) error {
		return removeTx(ctx, tx, ids)
	})
}

func removeTx(ctx context.Context, tx *sqlx.Tx, ids []string) error {
	for start := 0; start < len(ids); start += removeChunk {
		end := min(start+removeChunk, len(ids))
		query, args, err := sqlx.In(removeEventSQL, ids[start:end])
		if err != nil {
			return storageErr("remove", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return storageErr("remove", err)
		}
	}
	return nil
}

// NextEvents returns up to limit records, oldest first, without removing
// them. A limit of zero or less returns an empty slice.
func (r *Repository) NextEvents(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}
	out := make([]Record, 0, min(limit, 256))
	if err := r.c.db.SelectContext(ctx, &out, nextEventsSQL, limit); err != nil {
		return nil, storageErr("next events", err)
	}
	return out, nil
}

// Count returns the number of stored records.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.c.db.GetContext(ctx, &n, countEventsSQL); err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}

// Take returns up to limit of the oldest records and deletes them in the same
// transaction.
func (r *Repository) Take(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}
	var out []Record
	err := r.c.withTx(ctx, func(tx *sqlx.Tx) error {
		out = make([]Record, 0, min(limit, 256))
		if err := tx.SelectContext(ctx, &out, nextEventsSQL, limit); err != nil {
			return storageErr("take", err)
		}
		ids := make([]string, len(out))
		for i, rec := range out {
			ids[i] = rec.ID
		}
		return removeTx(ctx, tx, ids)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
