package refresh

import (
	"context"
	"crypto/sha256"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ASHISH26940/suggestd/internal/source"
	"github.com/ASHISH26940/suggestd/internal/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// scriptedLoader returns queued results, repeating the last one.
type scriptedLoader struct {
	mu      sync.Mutex
	results []loadResult
	calls   int
	gate    chan struct{}
	entered atomic.Int64
}

type loadResult struct {
	records []store.Record
	err     error
}

func (l *scriptedLoader) Load(ctx context.Context) (*source.Dataset, error) {
	l.entered.Add(1)
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.calls
	if i >= len(l.results) {
		i = len(l.results) - 1
	}
	l.calls++
	res := l.results[i]
	if res.err != nil {
		return nil, res.err
	}

	var sum [sha256.Size]byte
	for _, r := range res.records {
		sum = sha256.Sum256(append(sum[:], r.ID+r.Name...))
	}
	return &source.Dataset{Records: res.records, Checksum: sum, Location: "scripted"}, nil
}

func (l *scriptedLoader) Location() string { return "scripted" }

func (l *scriptedLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type countingRecorder struct {
	ok, failed, unchanged atomic.Int64
}

func (c *countingRecorder) RecordRefresh(err error, unchanged bool) {
	switch {
	case err != nil:
		c.failed.Add(1)
	case unchanged:
		c.unchanged.Add(1)
	default:
		c.ok.Add(1)
	}
}

var good = []store.Record{{ID: "1", Name: "Apple", Cost: 3}, {ID: "1", Name: "Banana", Cost: 1}}

func TestScheduler_RefreshInstalls(t *testing.T) {
	st := store.NewStore()
	rec := &countingRecorder{}
	s := New(st, &scriptedLoader{results: []loadResult{{records: good}}}, WithLogger(quietLogger), WithRecorder(rec))

	res, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Installed, res.Outcome)
	assert.Equal(t, uint64(1), res.Version)
	assert.Equal(t, 2, res.Records)
	assert.NotEmpty(t, res.Cycle)

	assert.Equal(t, good, st.Read().Records())
	assert.Equal(t, "scripted", st.Read().Source())

	status := s.Status()
	assert.Equal(t, int64(1), status.Cycles)
	assert.Equal(t, uint64(1), status.Version)
	assert.Equal(t, 2, status.Records)
	assert.False(t, status.LastSuccess.IsZero())
	assert.Equal(t, int64(1), rec.ok.Load())
}

// TestScheduler_FailureKeepsSnapshot is the unreadable-source scenario: the
// store content after a failed cycle equals the content before it.
func TestScheduler_FailureKeepsSnapshot(t *testing.T) {
	st := store.NewStore()
	rec := &countingRecorder{}
	loader := &scriptedLoader{results: []loadResult{
		{records: good},
		{err: errors.Wrap(os.ErrNotExist, "open json_source.json")},
	}}
	s := New(st, loader, WithLogger(quietLogger), WithRecorder(rec))

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)
	before := st.Read()

	_, err = s.Refresh(context.Background())
	require.Error(t, err)

	var fail *Failure
	require.True(t, errors.As(err, &fail))
	assert.Equal(t, "scripted", fail.Location)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.Same(t, before, st.Read())
	assert.Equal(t, good, st.Read().Records())
	assert.Equal(t, uint64(1), st.Version())

	status := s.Status()
	assert.Equal(t, int64(2), status.Cycles)
	assert.Equal(t, int64(1), status.ConsecutiveFailures)
	assert.Contains(t, status.LastError, "json_source.json")
	assert.Equal(t, int64(1), rec.failed.Load())
}

func TestScheduler_FailureBeforeFirstLoad(t *testing.T) {
	st := store.NewStore()
	s := New(st, &scriptedLoader{results: []loadResult{{err: errors.New("unreadable")}}}, WithLogger(quietLogger))

	_, err := s.Refresh(context.Background())
	require.Error(t, err)
	require.NotNil(t, st.Read())
	assert.Equal(t, 0, st.Len())
	assert.Equal(t, uint64(0), st.Version())
}

func TestScheduler_RealSourceUnreadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "json_source.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"1","name":"Apple","cost":3}]`), 0644))

	st := store.NewStore()
	loader := source.NewLoader(source.NewFileSource(path, true, 0), "")
	s := New(st, loader, WithLogger(quietLogger))

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)
	before := st.Read().Records()

	// Unreadable: removed.
	require.NoError(t, os.Remove(path))
	_, err = s.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, before, st.Read().Records())

	// Unparseable: half written.
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"1","na`), 0644))
	_, err = s.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, before, st.Read().Records())
	assert.Equal(t, uint64(1), st.Version())
}

func TestScheduler_SkipUnchanged(t *testing.T) {
	st := store.NewStore()
	rec := &countingRecorder{}
	s := New(st, &scriptedLoader{results: []loadResult{{records: good}}},
		WithLogger(quietLogger), WithRecorder(rec), WithSkipUnchanged(true))

	first, err := s.Refresh(context.Background())
	require.NoError(t, err)
	second, err := s.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Installed, first.Outcome)
	assert.Equal(t, Unchanged, second.Outcome)
	assert.Equal(t, uint64(1), second.Version)
	assert.Equal(t, uint64(1), st.Version())
	assert.Equal(t, int64(1), rec.unchanged.Load())

	// Without the option every cycle swaps.
	st2 := store.NewStore()
	s2 := New(st2, &scriptedLoader{results: []loadResult{{records: good}}}, WithLogger(quietLogger))
	_, _ = s2.Refresh(context.Background())
	_, _ = s2.Refresh(context.Background())
	assert.Equal(t, uint64(2), st2.Version())
}

func TestScheduler_SingleFlight(t *testing.T) {
	st := store.NewStore()
	loader := &scriptedLoader{results: []loadResult{{records: good}}, gate: make(chan struct{})}
	s := New(st, loader, WithLogger(quietLogger))

	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Refresh(context.Background())
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	// Give the callers time to pile up on the in-flight cycle.
	time.Sleep(50 * time.Millisecond)
	close(loader.gate)
	wg.Wait()

	assert.Equal(t, 1, loader.Calls())
	assert.Equal(t, uint64(1), st.Version())
	for _, res := range results {
		assert.Equal(t, results[0].Cycle, res.Cycle)
	}
}

func TestScheduler_CallerContext(t *testing.T) {
	st := store.NewStore()
	loader := &scriptedLoader{results: []loadResult{{records: good}}, gate: make(chan struct{})}
	s := New(st, loader, WithLogger(quietLogger))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Refresh(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// The cycle keeps going without the impatient caller.
	close(loader.gate)
	assert.Eventually(t, func() bool { return st.Version() == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_Timeout(t *testing.T) {
	st := store.NewStore()
	loader := &scriptedLoader{results: []loadResult{{records: good}}, gate: make(chan struct{})}
	s := New(st, loader, WithLogger(quietLogger), WithTimeout(20*time.Millisecond))

	_, err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, uint64(0), st.Version())
}

func TestScheduler_RunAndStop(t *testing.T) {
	st := store.NewStore()
	loader := &scriptedLoader{results: []loadResult{{records: good}}}
	s := New(st, loader, WithLogger(quietLogger), WithInterval(10*time.Millisecond))
	assert.Equal(t, 10*time.Millisecond, s.Interval())

	s.Start()
	s.Start() // second start is a no-op

	assert.Eventually(t, func() bool { return loader.Calls() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	calls := loader.Calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, loader.Calls(), "no cycles after Stop")

	s.Stop() // idempotent
}

func TestScheduler_RunStopsWithContext(t *testing.T) {
	st := store.NewStore()
	loader := &scriptedLoader{results: []loadResult{{err: errors.New("down")}}}
	s := New(st, loader, WithLogger(quietLogger), WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return s.Status().ConsecutiveFailures >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 0, st.Len())
}

func TestDefaults(t *testing.T) {
	s := New(store.NewStore(), &scriptedLoader{results: []loadResult{{}}})
	assert.Equal(t, time.Minute, s.Interval())
	assert.Equal(t, DefaultTimeout, s.timeout)
	assert.Equal(t, "installed", Installed.String())
	assert.Equal(t, "unchanged", Unchanged.String())
}

func TestScheduler_RefreshRejectedWhileStopping(t *testing.T) {
	st := store.NewStore()
	loader := &scriptedLoader{results: []loadResult{{records: good}}}
	s := New(st, loader, WithLogger(quietLogger))

	s.lifeMu.Lock()
	s.stopping = true
	s.lifeMu.Unlock()

	_, err := s.Refresh(context.Background())
	assert.True(t, errors.Is(err, ErrStopping))
	assert.Equal(t, 0, loader.Calls())
	assert.Equal(t, int64(0), s.Status().Cycles)

	s.lifeMu.Lock()
	s.stopping = false
	s.lifeMu.Unlock()

	_, err = s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Version())
}

// TestScheduler_StopWaitsForCycle checks that Stop returns only after the
// cycle it interrupted has installed its snapshot.
func TestScheduler_StopWaitsForCycle(t *testing.T) {
	st := store.NewStore()
	loader := &scriptedLoader{results: []loadResult{{records: good}}, gate: make(chan struct{})}
	s := New(st, loader, WithLogger(quietLogger), WithInterval(time.Hour))

	s.Start()
	assert.Eventually(t, func() bool { return loader.entered.Load() == 1 }, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.Stop()
	}()

	assert.Eventually(t, func() bool {
		s.lifeMu.Lock()
		defer s.lifeMu.Unlock()
		return s.stopping
	}, time.Second, time.Millisecond)

	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(loader.gate)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, uint64(1), st.Version())
}

func TestScheduler_StopWithConcurrentRefresh(t *testing.T) {
	for round := 0; round < 20; round++ {
		st := store.NewStore()
		loader := &scriptedLoader{results: []loadResult{{records: good}}}
		s := New(st, loader, WithLogger(quietLogger), WithInterval(time.Millisecond))
		s.Start()

		quit := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-quit:
						return
					default:
					}
					if _, err := s.Refresh(context.Background()); err != nil && !errors.Is(err, ErrStopping) {
						t.Errorf("unexpected refresh error: %v", err)
						return
					}
				}
			}()
		}

		time.Sleep(2 * time.Millisecond)
		s.Stop()
		close(quit)
		wg.Wait()
	}
}
