// This file implements a file system watcher that keeps the download ledger
// in step with the library directory: when a recorded chapter archive
// disappears from disk, its version is recorded as deleted.

package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vrsandeep/mango-shelf/internal/jobs"
	"github.com/vrsandeep/mango-shelf/internal/store"
)

// SweepJobID is the job that records deletions for archives removed while
// the watcher was not running.
const SweepJobID = "library-sweep"

// WatcherService watches the library directory for removed archives.
type WatcherService struct {
	ctx           jobs.JobContext
	watcher       *fsnotify.Watcher
	removedPaths  map[string]bool
	mu            sync.Mutex
	debounceTimer *time.Timer
	debounceDelay time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewWatcherService creates a new file system watcher service.
func NewWatcherService(ctx jobs.JobContext) *WatcherService {
	return &WatcherService{
		ctx:           ctx,
		removedPaths:  make(map[string]bool),
		debounceDelay: 2 * time.Second, // Wait 2 seconds after the last removal
		stopChan:      make(chan struct{}),
	}
}

// SetDebounceDelay changes how long removals are collected before they
// are recorded.
func (w *WatcherService) SetDebounceDelay(d time.Duration) {
	w.mu.Lock()
	w.debounceDelay = d
	w.mu.Unlock()
}

// Start begins watching the library directory. The directory is created
// if it does not exist yet.
func (w *WatcherService) Start() error {
	libraryPath := w.ctx.Config().Library.Path
	if err := os.MkdirAll(libraryPath, 0o755); err != nil {
		return fmt.Errorf("create library directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	// Watch the library root directory recursively
	err = filepath.WalkDir(libraryPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Only watch directories (files are watched via their parent directory)
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return err
	}

	log.Printf("File watcher started for library: %s", libraryPath)

	go w.processEvents()
	return nil
}

// Stop stops the file watcher service.
func (w *WatcherService) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
		if w.watcher != nil {
			err = w.watcher.Close()
		}
	})
	return err
}

func (w *WatcherService) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *WatcherService) handleEvent(event fsnotify.Event) {
	// New series directories are watched so their archives are covered.
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				log.Printf("File watcher could not watch %s: %v", event.Name, err)
			}
		}
		return
	}

	// A rename away from the library looks like a removal of the old name.
	if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.queueRemoval(event.Name)
}

func (w *WatcherService) queueRemoval(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removedPaths[path] = true
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.flushRemovals)
}

func (w *WatcherService) flushRemovals() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.removedPaths))
	for path := range w.removedPaths {
		paths = append(paths, path)
	}
	w.removedPaths = make(map[string]bool)
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	n, err := RecordRemovedArchives(context.Background(), w.ctx.Store(), paths)
	if err != nil {
		log.Printf("File watcher could not record removals: %v", err)
	}
	if n > 0 {
		log.Printf("File watcher recorded %d deleted chapter version(s)", n)
	}
}

// RecordRemovedArchives records a deletion for every downloaded version
// whose archive was at one of paths, or inside one of them when a whole
// directory went away, and is no longer on disk. It returns how many
// versions were recorded.
func RecordRemovedArchives(ctx context.Context, st *store.Store, paths []string) (int, error) {
	var recorded int
	var errs []error
	for _, path := range paths {
		refs, err := referencesFor(ctx, st, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, ref := range refs {
			if _, err := os.Stat(ref.Path); err == nil || !os.IsNotExist(err) {
				continue
			}
			if _, err := st.RecordDeletion(ctx, ref.BookmarkID, ref.Number, ref.URL); err != nil {
				errs = append(errs, fmt.Errorf("record deletion of %s: %w", ref.Path, err))
				continue
			}
			recorded++
		}
	}
	return recorded, errors.Join(errs...)
}

func referencesFor(ctx context.Context, st *store.Store, path string) ([]store.DownloadRef, error) {
	if IsSupportedArchive(path) {
		id, key, err := st.FindDownloadByPath(ctx, path)
		if err == nil {
			return []store.DownloadRef{{BookmarkID: id, Number: key.Number, URL: key.URL, Path: path}}, nil
		}
		if !errors.Is(err, store.ErrVersionNotFound) {
			return nil, err
		}
	}
	return st.ListDownloadPaths(ctx, path)
}

// RunSweep records deletions for every recorded archive missing from disk.
func RunSweep(ctx jobs.JobContext) {
	sendProgress(ctx, SweepJobID, "in_progress", "Looking for removed archives...", 0)
	refs, err := ctx.Store().ListDownloadPaths(context.Background(), "")
	if err != nil {
		msg := fmt.Sprintf("Sweep failed: %v", err)
		sendProgress(ctx, SweepJobID, "failed", msg, 100)
		ctx.JobManager().MarkFailed(SweepJobID, msg)
		return
	}
	paths := make([]string, 0, len(refs))
	for _, ref := range refs {
		paths = append(paths, ref.Path)
	}
	n, err := RecordRemovedArchives(context.Background(), ctx.Store(), paths)
	if err != nil {
		log.Printf("Sweep errors: %v", err)
	}
	sendProgress(ctx, SweepJobID, "completed", fmt.Sprintf("Recorded %d removed archive(s).", n), 100)
}
