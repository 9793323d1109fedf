package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventspool/internal/store"
)

func TestObserveOperation_Labels(t *testing.T) {
	m := New()

	m.ObserveOperation("add", time.Millisecond, nil)
	m.ObserveOperation("add", time.Millisecond, &store.ConstraintError{ID: "x"})
	m.ObserveOperation("count", time.Millisecond, errors.New("disk"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("add", "constraint")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("count", "error")))
}

func TestStoreObserverWiring(t *testing.T) {
	ctx := context.Background()
	m := New()
	s, err := store.Open(filepath.Join(t.TempDir(), "events.db"), store.WithObserver(m))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Add(ctx, store.Record{ID: "a", Payload: "1"}))
	_, err = s.NextEvents(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("next_events", "ok")))
}

func TestHandler_ServesGauges(t *testing.T) {
	m := New()
	m.SetPending(7)
	m.AddSent(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "eventspool_store_pending_events 7")
	assert.Contains(t, string(body), "eventspool_gateway_sent_events_total 3")
}
