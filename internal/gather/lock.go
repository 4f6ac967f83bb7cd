package gather

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrSyncInProgress is returned when another sync holds the run lock.
var ErrSyncInProgress = errors.New("sync already in progress")

const (
	lockFile          = ".sync.lock"
	lastCompletedFile = ".last-completed"
)

// runLock is an exclusive lock file plus the .last-completed marker kept in
// the same state directory.
type runLock struct {
	dir  string
	file *os.File
}

// acquireRunLock creates the lock file in dir. A lock older than staleAfter
// (when positive) is assumed abandoned and replaced.
func acquireRunLock(dir string, staleAfter time.Duration, now time.Time) (*runLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	path := filepath.Join(dir, lockFile)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) && staleAfter > 0 {
		if info, serr := os.Stat(path); serr == nil && now.Sub(info.ModTime()) > staleAfter {
			os.Remove(path)
			f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		}
	}
	if errors.Is(err, fs.ErrExist) {
		return nil, ErrSyncInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("creating lock file: %w", err)
	}

	fmt.Fprintf(f, "%d %s\n", os.Getpid(), now.UTC().Format(time.RFC3339))
	return &runLock{dir: dir, file: f}, nil
}

// Release removes the lock file.
func (l *runLock) Release() error {
	l.file.Close()
	return os.Remove(filepath.Join(l.dir, lockFile))
}

// MarkCompleted writes the given session date to .last-completed.
func (l *runLock) MarkCompleted(date string) error {
	return os.WriteFile(filepath.Join(l.dir, lastCompletedFile), []byte(date), 0o644)
}

// LastCompleted returns the date string from .last-completed, or empty string.
func (l *runLock) LastCompleted() string {
	return LastCompleted(l.dir)
}

// LastCompleted reads the .last-completed marker in dir.
func LastCompleted(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, lastCompletedFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
