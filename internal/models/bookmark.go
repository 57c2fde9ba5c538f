// This file defines the core data structures (models) for tracked bookmarks,
// their chapter versions and the change reports produced when a fresh
// chapter list is merged into them.

package models

import (
	"maps"
	"slices"
	"time"

	"github.com/vrsandeep/mango-shelf/internal/chapter"
)

// Bookmark is one tracked series from an external source.
type Bookmark struct {
	ID               int64  `json:"id"`
	SourceURL        string `json:"source_url"`
	Website          string `json:"website"`
	Title            string `json:"title"`
	ProviderID       string `json:"provider_id"`
	SeriesIdentifier string `json:"series_identifier"`

	// Chapters is ordered by number, then URL.
	Chapters []ChapterEntry `json:"chapters"`

	// Download Ledger.
	DownloadedChapterNumbers chapter.NumberSet                 `json:"downloaded_chapter_numbers"`
	DownloadedVersionURLs    map[chapter.Number]chapter.URLSet `json:"downloaded_version_urls"`

	// Masks.
	DeletedURLs            chapter.URLSet    `json:"deleted_urls"`
	ExcludedChapterNumbers chapter.NumberSet `json:"excluded_chapter_numbers"`

	DuplicateChapters      map[chapter.Number]int         `json:"duplicate_chapters"`
	PendingNewDuplicates   chapter.NumberSet              `json:"pending_new_duplicates"`
	PendingUpdatedChapters map[chapter.Number]UpdateEvent `json:"pending_updated_chapters"`

	UniqueChapterCount int        `json:"unique_chapter_count"`
	TotalChapterCount  int        `json:"total_chapter_count"`
	LastReconciledAt   *time.Time `json:"last_reconciled_at,omitempty"`
	SnapshotDigest     string     `json:"snapshot_digest,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// EnsureCollections replaces nil collections with empty ones so callers
// can mutate them without checks.
func (b *Bookmark) EnsureCollections() {
	if b.DownloadedChapterNumbers == nil {
		b.DownloadedChapterNumbers = chapter.NumberSet{}
	}
	if b.DownloadedVersionURLs == nil {
		b.DownloadedVersionURLs = map[chapter.Number]chapter.URLSet{}
	}
	if b.DeletedURLs == nil {
		b.DeletedURLs = chapter.URLSet{}
	}
	if b.ExcludedChapterNumbers == nil {
		b.ExcludedChapterNumbers = chapter.NumberSet{}
	}
	if b.DuplicateChapters == nil {
		b.DuplicateChapters = map[chapter.Number]int{}
	}
	if b.PendingNewDuplicates == nil {
		b.PendingNewDuplicates = chapter.NumberSet{}
	}
	if b.PendingUpdatedChapters == nil {
		b.PendingUpdatedChapters = map[chapter.Number]UpdateEvent{}
	}
}

// Clone deep-copies every collection of b so the copy can be mutated
// without touching b.
func (b Bookmark) Clone() Bookmark {
	out := b
	out.Chapters = slices.Clone(b.Chapters)
	out.DownloadedChapterNumbers = b.DownloadedChapterNumbers.Clone()
	out.DownloadedVersionURLs = make(map[chapter.Number]chapter.URLSet, len(b.DownloadedVersionURLs))
	for n, urls := range b.DownloadedVersionURLs {
		out.DownloadedVersionURLs[n] = urls.Clone()
	}
	out.DeletedURLs = b.DeletedURLs.Clone()
	out.ExcludedChapterNumbers = b.ExcludedChapterNumbers.Clone()
	out.DuplicateChapters = maps.Clone(b.DuplicateChapters)
	out.PendingNewDuplicates = b.PendingNewDuplicates.Clone()
	out.PendingUpdatedChapters = make(map[chapter.Number]UpdateEvent, len(b.PendingUpdatedChapters))
	for n, ev := range b.PendingUpdatedChapters {
		ev.NewURLs = ev.NewURLs.Clone()
		out.PendingUpdatedChapters[n] = ev
	}
	if b.LastReconciledAt != nil {
		t := *b.LastReconciledAt
		out.LastReconciledAt = &t
	}
	out.EnsureCollections()
	return out
}

// ChapterEntry is one (number, url) version known for a bookmark.
type ChapterEntry struct {
	Number       chapter.Number `json:"number" db:"number"`
	URL          string         `json:"url" db:"url"`
	Title        string         `json:"title" db:"title"`
	ReleaseGroup string         `json:"release_group,omitempty" db:"release_group"`
	UploadedAt   string         `json:"uploaded_at,omitempty" db:"uploaded_at"`

	// RemovedFromRemote marks a version missing from the latest snapshot
	// that is kept because it was downloaded.
	RemovedFromRemote bool `json:"removed_from_remote" db:"removed_from_remote"`
	// IsOldVersion marks a superseded URL kept for chapter history.
	IsOldVersion bool `json:"is_old_version" db:"is_old_version"`
	// URLChanged marks the old half of a detected URL change.
	URLChanged bool `json:"url_changed" db:"url_changed"`
}

// Key returns the version identity of the entry.
func (e ChapterEntry) Key() chapter.Key {
	return chapter.Key{Number: e.Number, URL: e.URL}
}

// UpdateKind classifies an UpdateEvent.
type UpdateKind string

const (
	UpdateURLChanged UpdateKind = "url_changed"
	UpdateNewVersion UpdateKind = "new_version"
)

// UpdateEvent records a change to a chapter the user has downloaded.
type UpdateEvent struct {
	Number     chapter.Number `json:"number"`
	OldURL     string         `json:"old_url,omitempty"`
	NewURLs    chapter.URLSet `json:"new_urls"`
	Kind       UpdateKind     `json:"kind"`
	DetectedAt time.Time      `json:"detected_at"`
}

// ChangeReport is what a reconciliation surfaces to subscribers.
type ChangeReport struct {
	NewDuplicates            []chapter.Number `json:"new_duplicates"`
	UpdatedChapters          []UpdateEvent    `json:"updated_chapters"`
	RemovedFromRemoteNumbers []chapter.Number `json:"removed_from_remote_numbers"`
}

// IsEmpty reports whether the report carries no change at all.
func (r ChangeReport) IsEmpty() bool {
	return len(r.NewDuplicates) == 0 && len(r.UpdatedChapters) == 0 && len(r.RemovedFromRemoteNumbers) == 0
}

// ScrapedChapter is one row of a source's chapter list at scrape time.
type ScrapedChapter struct {
	Number       chapter.Number `json:"number"`
	Title        string         `json:"title"`
	URL          string         `json:"url"`
	ReleaseGroup string         `json:"release_group,omitempty"`
	UploadedAt   string         `json:"uploaded_at,omitempty"`
}

// DuplicateCount is the number of versions a source lists for a chapter.
type DuplicateCount struct {
	Number chapter.Number `json:"number"`
	Count  int            `json:"count"`
}

// Snapshot is a source's chapter list plus its duplicate summary.
type Snapshot struct {
	Chapters   []ScrapedChapter `json:"chapters"`
	Duplicates []DuplicateCount `json:"duplicates"`
}

// AcknowledgeUpdate clears the pending update event for number.
func (b *Bookmark) AcknowledgeUpdate(number chapter.Number) bool {
	if _, ok := b.PendingUpdatedChapters[number]; !ok {
		return false
	}
	delete(b.PendingUpdatedChapters, number)
	return true
}
