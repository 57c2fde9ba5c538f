package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vrsandeep/mango-shelf/internal/lock"
	"github.com/vrsandeep/mango-shelf/internal/models"
	"github.com/vrsandeep/mango-shelf/internal/store"
)

// Emitter publishes a committed change report.
type Emitter interface {
	Emit(ctx context.Context, b *models.Bookmark, report models.ChangeReport) error
}

// Service runs reconciliations against the database: one bookmark at a
// time, all or nothing.
type Service struct {
	store   *store.Store
	locks   *lock.Manager
	emitter Emitter
	now     func() time.Time
}

// NewService creates a service. emitter may be nil.
func NewService(st *store.Store, locks *lock.Manager, emitter Emitter) *Service {
	return &Service{store: st, locks: locks, emitter: emitter, now: time.Now}
}

// Reconcile merges snap into the stored bookmark. Errors are an
// *InputError, ErrConflict, store.ErrBookmarkNotFound or a
// *PersistenceError; in every error case nothing has been written. The
// report is emitted only after the commit succeeded; an emission failure
// is returned alongside the committed result.
func (s *Service) Reconcile(ctx context.Context, bookmarkID int64, snap models.Snapshot) (*models.Bookmark, models.ChangeReport, error) {
	if err := Validate(snap); err != nil {
		return nil, models.ChangeReport{}, err
	}

	release, err := s.locks.TryAcquire(bookmarkID)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return nil, models.ChangeReport{}, fmt.Errorf("bookmark %d: %w", bookmarkID, ErrConflict)
		}
		return nil, models.ChangeReport{}, err
	}
	defer release()

	var (
		result models.Bookmark
		report models.ChangeReport
	)
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.store.LoadBookmarkTx(ctx, tx, bookmarkID)
		if err != nil {
			return err
		}
		result, report = Reconcile(*current, snap, s.now())
		return s.store.SaveReconciliationTx(ctx, tx, &result, report)
	})
	if err != nil {
		if errors.Is(err, store.ErrBookmarkNotFound) {
			return nil, models.ChangeReport{}, err
		}
		return nil, models.ChangeReport{}, &PersistenceError{BookmarkID: bookmarkID, Cause: err}
	}

	log.Printf("Reconciled bookmark %d: %d chapters, %d new duplicates, %d updates, %d removed from remote",
		bookmarkID, len(result.Chapters), len(report.NewDuplicates), len(report.UpdatedChapters), len(report.RemovedFromRemoteNumbers))

	if s.emitter != nil {
		if err := s.emitter.Emit(ctx, &result, report); err != nil {
			return &result, report, fmt.Errorf("emit change report for bookmark %d: %w", bookmarkID, err)
		}
	}
	return &result, report, nil
}
