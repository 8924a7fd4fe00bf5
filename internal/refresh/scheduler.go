// Package refresh periodically reloads the suggestion dataset and installs it
// into the store. It is the only writer of the store.
package refresh

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ASHISH26940/suggestd/internal/source"
	"github.com/ASHISH26940/suggestd/internal/store"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Defaults for the refresh policy.
const (
	DefaultInterval = time.Minute
	DefaultTimeout  = 30 * time.Second
)

// ErrStopping is returned by Refresh while Stop is waiting for the scheduler to wind down.
var ErrStopping = errors.New("refresh: scheduler is stopping")

// Loader produces a complete, decoded dataset.
type Loader interface {
	Load(ctx context.Context) (*source.Dataset, error)
	Location() string
}

// Installer is the write side of the dataset store.
type Installer interface {
	Swap(snap *store.Snapshot) uint64
}

// Recorder receives one observation per refresh cycle.
type Recorder interface {
	RecordRefresh(err error, unchanged bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordRefresh(error, bool) {}

// Outcome says what a successful cycle did to the store.
type Outcome int

const (
	// Installed means a new snapshot was swapped in.
	Installed Outcome = iota
	// Unchanged means the payload matched the installed one and no swap happened.
	Unchanged
)

func (o Outcome) String() string {
	if o == Unchanged {
		return "unchanged"
	}
	return "installed"
}

// Result describes a successful cycle.
type Result struct {
	Cycle    string
	Outcome  Outcome
	Version  uint64
	Records  int
	Duration time.Duration
}

// Failure is returned when a cycle could not load or decode the source.
// The store keeps the snapshot it had before the cycle.
type Failure struct {
	Cycle    string
	Location string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("refresh %s: %v", f.Location, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Status summarizes the scheduler's history.
type Status struct {
	Cycles              int64     `json:"cycles"`
	ConsecutiveFailures int64     `json:"consecutive_failures"`
	LastAttempt         time.Time `json:"last_attempt"`
	LastSuccess         time.Time `json:"last_success"`
	LastError           string    `json:"last_error,omitempty"`
	Version             uint64    `json:"version"`
	Records             int       `json:"records"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the period between cycles.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTimeout bounds a single cycle.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder reports every cycle to r.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithSkipUnchanged skips the swap when the payload checksum did not change.
func WithSkipUnchanged(skip bool) Option {
	return func(s *Scheduler) {
		s.skipUnchanged = skip
	}
}

// Scheduler runs refresh cycles, one at a time.
type Scheduler struct {
	store         Installer
	loader        Loader
	logger        *slog.Logger
	recorder      Recorder
	interval      time.Duration
	timeout       time.Duration
	skipUnchanged bool

	group    singleflight.Group
	inflight sync.WaitGroup

	mu       sync.Mutex
	status   Status
	checksum [sha256.Size]byte
	loaded   bool

	// lifeMu orders inflight.Add against Stop's inflight.Wait.
	lifeMu   sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	stopping bool
}

// New creates a Scheduler writing into st with data from loader.
func New(st Installer, loader Loader, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    st,
		loader:   loader,
		logger:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})),
		recorder: noopRecorder{},
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the configured period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Run performs one cycle immediately and then one per interval until ctx is done.
// Failed cycles are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context) {
	_, _ = s.Refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.Refresh(ctx)
		}
	}
}

// Start launches Run in the background. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		s.Run(ctx)
	}()
}

// Stop cancels the background loop started by Start and waits for it, and
// for any cycle still in flight, to finish.
func (s *Scheduler) Stop() {
	s.lifeMu.Lock()
	cancel, done := s.cancel, s.done
	if cancel == nil {
		s.lifeMu.Unlock()
		return
	}
	s.cancel, s.done = nil, nil
	s.stopping = true
	s.lifeMu.Unlock()

	cancel()
	<-done
	s.inflight.Wait()

	s.lifeMu.Lock()
	s.stopping = false
	s.lifeMu.Unlock()
}

// Refresh runs one cycle now. If a cycle is already in flight the caller waits
// for it and shares its outcome instead of starting another one.
// The cycle itself is bounded by the scheduler timeout, not by ctx; ctx only
// bounds how long the caller waits.
func (s *Scheduler) Refresh(ctx context.Context) (Result, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		if !s.beginCycle() {
			return Result{}, ErrStopping
		}
		defer s.inflight.Done()
		return s.cycle(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	}
}

// beginCycle registers a cycle with Stop, unless Stop has already begun.
func (s *Scheduler) beginCycle() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.stopping {
		return false
	}
	s.inflight.Add(1)
	return true
}

// Status returns a copy of the scheduler history.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) cycle(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id := uuid.NewString()
	start := time.Now()
	logger := s.logger.With("cycle", id, "source", s.loader.Location())

	ds, err := s.loader.Load(ctx)
	if err != nil {
		fail := &Failure{Cycle: id, Location: s.loader.Location(), Err: err}
		s.fail(start, fail)
		logger.Warn("refresh failed, keeping previous snapshot", "error", err, "duration", time.Since(start))
		return Result{}, fail
	}

	s.mu.Lock()
	unchanged := s.skipUnchanged && s.loaded && ds.Checksum == s.checksum
	s.mu.Unlock()

	res := Result{Cycle: id, Records: len(ds.Records)}
	if unchanged {
		res.Outcome = Unchanged
		res.Version = s.Status().Version
	} else {
		res.Outcome = Installed
		res.Version = s.store.Swap(store.NewSnapshot(ds.Records, ds.Location))
	}
	res.Duration = time.Since(start)

	s.succeed(start, res, ds.Checksum)
	if unchanged {
		logger.Debug("refresh skipped, source unchanged", "version", res.Version, "duration", res.Duration)
	} else {
		logger.Info("refresh installed", "records", res.Records, "version", res.Version, "duration", res.Duration)
	}
	return res, nil
}

func (s *Scheduler) fail(start time.Time, fail *Failure) {
	s.mu.Lock()
	s.status.Cycles++
	s.status.ConsecutiveFailures++
	s.status.LastAttempt = start
	s.status.LastError = fail.Error()
	s.mu.Unlock()

	s.recorder.RecordRefresh(fail, false)
}

func (s *Scheduler) succeed(start time.Time, res Result, checksum [sha256.Size]byte) {
	s.mu.Lock()
	s.status.Cycles++
	s.status.ConsecutiveFailures = 0
	s.status.LastAttempt = start
	s.status.LastSuccess = start
	s.status.LastError = ""
	s.status.Version = res.Version
	s.status.Records = res.Records
	s.checksum = checksum
	s.loaded = true
	s.mu.Unlock()

	s.recorder.RecordRefresh(nil, res.Outcome == Unchanged)
}
