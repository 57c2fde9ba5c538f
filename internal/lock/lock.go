// Package lock guarantees at most one in-flight reconciliation per bookmark.
// Inside a process a set of held ids is enough; when a lock directory is
// configured a file lock per bookmark also keeps the CLI and the server
// from working on the same bookmark at once.
package lock

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// ErrHeld is returned when the bookmark is already locked.
var ErrHeld = errors.New("bookmark lock already held")

// Manager hands out per-bookmark exclusive locks.
type Manager struct {
	mu   sync.Mutex
	held map[int64]struct{}
	dir  string
}

// NewManager creates a manager. An empty dir disables file locks.
func NewManager(dir string) (*Manager, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock directory: %w", err)
		}
	}
	return &Manager{held: make(map[int64]struct{}), dir: dir}, nil
}

// TryAcquire locks bookmarkID without waiting. The returned func releases
// the lock and is safe to call more than once.
func (m *Manager) TryAcquire(bookmarkID int64) (func(), error) {
	m.mu.Lock()
	if _, busy := m.held[bookmarkID]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("bookmark %d: %w", bookmarkID, ErrHeld)
	}
	m.held[bookmarkID] = struct{}{}
	m.mu.Unlock()

	var fl *flock.Flock
	if m.dir != "" {
		fl = flock.New(filepath.Join(m.dir, fmt.Sprintf("bookmark-%d.lock", bookmarkID)))
		ok, err := fl.TryLock()
		if err != nil || !ok {
			m.forget(bookmarkID)
			if err != nil {
				return nil, fmt.Errorf("acquire file lock for bookmark %d: %w", bookmarkID, err)
			}
			return nil, fmt.Errorf("bookmark %d (other process): %w", bookmarkID, ErrHeld)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if fl != nil {
				if err := fl.Unlock(); err != nil {
					log.Printf("Warning: failed to release file lock for bookmark %d: %v", bookmarkID, err)
				}
			}
			m.forget(bookmarkID)
		})
	}, nil
}

// Held reports whether this process currently holds the lock for bookmarkID.
func (m *Manager) Held(bookmarkID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[bookmarkID]
	return ok
}

func (m *Manager) forget(bookmarkID int64) {
	m.mu.Lock()
	delete(m.held, bookmarkID)
	m.mu.Unlock()
}
