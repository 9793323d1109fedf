//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCgoDriver_DuplicateIsConstraintError(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"), WithDriver(CgoDriver))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Add(ctx, Record{ID: "a", Payload: "1"}))
	err = s.AddBatch(ctx, []Record{{ID: "b", Payload: "2"}, {ID: "a", Payload: "3"}})

	var ce *ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "a", ce.ID)

	got, err := s.NextEvents(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []Record{{ID: "a", Payload: "1"}}, got)
}
