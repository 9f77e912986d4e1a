package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = "heimdex-editor.lock"

var ErrDataDirLocked = errors.New("data directory is locked by another heimdex-editor process")

// DirLock is an exclusive advisory lock on a data directory. Only one process
// may write a project database at a time.
type DirLock struct {
	lock *flock.Flock
}

// LockDataDir takes the lock without blocking.
func LockDataDir(dataDir string) (*DirLock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	l := flock.New(filepath.Join(dataDir, lockFileName))
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrDataDirLocked
	}
	return &DirLock{lock: l}, nil
}

func (d *DirLock) Path() string {
	return d.lock.Path()
}

func (d *DirLock) Unlock() error {
	return d.lock.Unlock()
}
