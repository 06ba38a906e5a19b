package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"mediabatch/internal/fileutil"
	"mediabatch/internal/services"
)

const lockRetryDelay = 25 * time.Millisecond

// Store persists the quota record.
type Store interface {
	// Load returns an error satisfying errors.Is(err, fs.ErrNotExist) when
	// nothing has been persisted yet.
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// Locker is implemented by stores shared between processes. The meter holds the
// lock across reload, mutate, and save.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// FileStore keeps the quota record as indented JSON, guarded by an advisory
// lock on a sibling "<path>.lock" file.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore returns a store rooted at path. Nothing is touched until use.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the JSON file location.
func (s *FileStore) Path() string {
	return s.path
}

// Lock blocks until the cross-process lock is held or ctx ends.
func (s *FileStore) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrStorage, "usage", "lock", "create usage dir", err)
	}
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "usage", "lock", s.lock.Path(), err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrStorage, "usage", "lock", "lock not acquired", nil)
	}
	return func() { _ = s.lock.Unlock() }, nil
}

// Load reads and decodes the quota record.
func (s *FileStore) Load(_ context.Context) (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return State{}, fmt.Errorf("read usage file: %w", err)
	}
	var state State
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&state); err != nil {
		return State{}, services.Wrap(services.ErrStorage, "usage", "load", "decode "+s.path, err)
	}
	return state, nil
}

// Save atomically replaces the quota record.
func (s *FileStore) Save(_ context.Context, state State) error {
	err := fileutil.WriteAtomic(s.path, 0o644, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(state)
	})
	if err != nil {
		return services.Wrap(services.ErrStorage, "usage", "save", s.path, err)
	}
	return nil
}
