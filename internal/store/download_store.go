package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/models"
)

const queueColumns = "id, bookmark_id, number, url, chapter_title, status, progress, message, created_at"

// AddToQueue enqueues one chapter version for download. Enqueuing a version
// that is already queued returns the existing item.
func (s *Store) AddToQueue(bookmarkID int64, number chapter.Number, url, chapterTitle string) (*models.DownloadQueueItem, error) {
	if err := checkVersion(number, url); err != nil {
		return nil, err
	}
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO download_queue (bookmark_id, number, url, chapter_title, created_at)
		VALUES (?, ?, ?, ?, ?)`, bookmarkID, number, url, chapterTitle, time.Now())
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrBookmarkNotFound
		}
		return nil, err
	}
	var item models.DownloadQueueItem
	err = s.db.Get(&item, "SELECT "+queueColumns+" FROM download_queue WHERE bookmark_id = ? AND url = ?", bookmarkID, url)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetDownloadQueue() ([]*models.DownloadQueueItem, error) {
	var items []*models.DownloadQueueItem
	err := s.db.Select(&items, "SELECT "+queueColumns+" FROM download_queue ORDER BY created_at DESC, id DESC")
	return items, err
}

// GetQueuedDownloadItems retrieves a limited number of items with a 'queued' status.
func (s *Store) GetQueuedDownloadItems(limit int) ([]*models.DownloadQueueItem, error) {
	var items []*models.DownloadQueueItem
	err := s.db.Select(&items, "SELECT "+queueColumns+" FROM download_queue WHERE status = 'queued' ORDER BY created_at ASC, id ASC LIMIT ?", limit)
	return items, err
}

// GetDownloadQueueItem retrieves a single item from the download queue by ID.
func (s *Store) GetDownloadQueueItem(id int64) (*models.DownloadQueueItem, error) {
	var item models.DownloadQueueItem
	err := s.db.Get(&item, "SELECT "+queueColumns+" FROM download_queue WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQueueItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateQueueItemStatus changes an item's status and message.
func (s *Store) UpdateQueueItemStatus(id int64, status, message string) error {
	_, err := s.db.Exec("UPDATE download_queue SET status = ?, message = ? WHERE id = ?", status, message, id)
	return err
}

// UpdateQueueItemProgress changes an item's progress percentage.
func (s *Store) UpdateQueueItemProgress(id int64, progress int) error {
	_, err := s.db.Exec("UPDATE download_queue SET progress = ? WHERE id = ?", progress, id)
	return err
}

// ResetInProgressQueueItems sets items from 'in_progress' back to 'queued' on startup.
func (s *Store) ResetInProgressQueueItems() error {
	_, err := s.db.Exec("UPDATE download_queue SET status = 'queued', progress = 0, message = 'Re-queued after restart' WHERE status = 'in_progress'")
	return err
}

// ResetFailedQueueItems sets items from 'failed' back to 'queued' to be retried.
func (s *Store) ResetFailedQueueItems() error {
	_, err := s.db.Exec("UPDATE download_queue SET status = 'queued', progress = 0, message = 'Re-queued by user' WHERE status = 'failed'")
	return err
}

// DeleteCompletedQueueItems removes successfully completed items from the queue.
func (s *Store) DeleteCompletedQueueItems() error {
	_, err := s.db.Exec("DELETE FROM download_queue WHERE status = 'completed'")
	return err
}

// DeleteQueueItem removes a specific item from the download queue by ID.
func (s *Store) DeleteQueueItem(id int64) error {
	res, err := s.db.Exec("DELETE FROM download_queue WHERE id = ?", id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrQueueItemNotFound
	}
	return nil
}

// ClaimQueueItem moves a queued item to in_progress for a worker. An item
// paused, deleted or claimed since it was listed is left alone and reported
// as ErrInvalidQueueTransition or ErrQueueItemNotFound.
func (s *Store) ClaimQueueItem(id int64) error {
	return s.transitionQueueItem(id,
		"UPDATE download_queue SET status = 'in_progress', message = 'Starting download...' WHERE id = ? AND status = 'queued'")
}

// PauseQueueItem pauses a queued or running item.
func (s *Store) PauseQueueItem(id int64) error {
	return s.transitionQueueItem(id,
		"UPDATE download_queue SET status = 'paused', message = 'Paused by user' WHERE id = ? AND status IN ('queued', 'in_progress')")
}

// ResumeQueueItem puts a paused item back in the queue.
func (s *Store) ResumeQueueItem(id int64) error {
	return s.transitionQueueItem(id,
		"UPDATE download_queue SET status = 'queued', message = 'Resumed by user' WHERE id = ? AND status = 'paused'")
}

// RetryQueueItem re-queues a failed item from the start.
func (s *Store) RetryQueueItem(id int64) error {
	return s.transitionQueueItem(id,
		"UPDATE download_queue SET status = 'queued', progress = 0, message = 'Re-queued for retry by user' WHERE id = ? AND status = 'failed'")
}

// transitionQueueItem runs a guarded status update. ErrQueueItemNotFound
// means the id is unknown; ErrInvalidQueueTransition means the item is in
// the wrong state.
func (s *Store) transitionQueueItem(id int64, query string) error {
	res, err := s.db.Exec(query, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}
	if _, err := s.GetDownloadQueueItem(id); err != nil {
		return err
	}
	return ErrInvalidQueueTransition
}
