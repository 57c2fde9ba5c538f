package models

import (
	"time"

	"github.com/vrsandeep/mango-shelf/internal/chapter"
)

// DownloadQueueItem is one chapter version waiting for, or going through, download.
type DownloadQueueItem struct {
	ID           int64          `json:"id" db:"id"`
	BookmarkID   int64          `json:"bookmark_id" db:"bookmark_id"`
	Number       chapter.Number `json:"number" db:"number"`
	URL          string         `json:"url" db:"url"`
	ChapterTitle string         `json:"chapter_title" db:"chapter_title"`
	Status       string         `json:"status" db:"status"`     // "queued", "in_progress", "completed", "failed"
	Progress     int            `json:"progress" db:"progress"` // Percentage of download progress
	Message      string         `json:"message" db:"message"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}
