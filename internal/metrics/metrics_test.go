package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.RecordQuery(2, 2*time.Microsecond)
	m.RecordQuery(0, 4*time.Microsecond)
	m.RecordRejected("malformed_body")
	m.RecordRejected("malformed_body")
	m.RecordRejected("route_mismatch")
	m.RecordRefresh(nil, false)
	m.RecordRefresh(nil, true)
	m.RecordRefresh(errors.New("boom"), false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(resultHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(resultEmpty)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejected.WithLabelValues("malformed_body")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues(refreshFailed)))

	stats := m.Snapshot()
	assert.Equal(t, int64(2), stats.Queries)
	assert.Equal(t, int64(1), stats.EmptyResults)
	assert.InDelta(t, 3.0, stats.AvgQueryMicros, 0.001)
	assert.Equal(t, map[string]int64{"malformed_body": 2, "route_mismatch": 1}, stats.Rejected)
	assert.Equal(t, int64(1), stats.RefreshOK)
	assert.Equal(t, int64(1), stats.RefreshUnchanged)
	assert.Equal(t, int64(1), stats.RefreshFailed)
}

func TestMetrics_EmptySnapshot(t *testing.T) {
	stats := New().Snapshot()
	assert.Zero(t, stats.Queries)
	assert.Zero(t, stats.AvgQueryMicros)
	assert.Empty(t, stats.Rejected)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordQuery(1, time.Millisecond)
	m.RecordRejected("missing_field")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, `suggestd_queries_total{result="hit"} 1`)
	assert.Contains(t, body, `suggestd_rejected_requests_total{reason="missing_field"} 1`)
	assert.Contains(t, body, "suggestd_query_duration_seconds_count 1")
	assert.True(t, strings.Contains(body, "go_goroutines"), "runtime collector is registered")
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordQuery(1, time.Microsecond)

	assert.Equal(t, int64(1), a.Snapshot().Queries)
	assert.Zero(t, b.Snapshot().Queries)
}

func TestMetrics_Concurrent(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordQuery(1, time.Microsecond)
				m.RecordRejected("missing_field")
			}
		}()
	}
	wg.Wait()

	stats := m.Snapshot()
	assert.Equal(t, int64(5000), stats.Queries)
	assert.Equal(t, int64(5000), stats.Rejected["missing_field"])
}
