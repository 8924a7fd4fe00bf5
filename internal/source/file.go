package source

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

const defaultLockRetry = 50 * time.Millisecond

// FileSource reads the dataset from the local file system.
// With locking enabled it holds a shared flock while reading, so a publisher
// that rewrites the file under an exclusive lock is never read half-written.
type FileSource struct {
	path      string
	lock      bool
	lockRetry time.Duration
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string, lock bool, lockRetry time.Duration) *FileSource {
	if lockRetry <= 0 {
		lockRetry = defaultLockRetry
	}
	return &FileSource{
		path:      filepath.Clean(path),
		lock:      lock,
		lockRetry: lockRetry,
	}
}

// Fetch reads the whole file.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	// Stat first: flock would otherwise create a missing file.
	if _, err := os.Stat(s.path); err != nil {
		return nil, errors.Wrapf(err, "stat %s", s.path)
	}

	if s.lock {
		fl := flock.New(s.path)
		locked, err := fl.TryRLockContext(ctx, s.lockRetry)
		if err != nil {
			return nil, errors.Wrapf(err, "lock %s", s.path)
		}
		if !locked {
			return nil, errors.Errorf("lock %s: not acquired", s.path)
		}
		defer fl.Unlock()
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", s.path)
	}
	return data, nil
}

// Name returns the file name.
func (s *FileSource) Name() string {
	return filepath.Base(s.path)
}

func (s *FileSource) String() string {
	return s.path
}
