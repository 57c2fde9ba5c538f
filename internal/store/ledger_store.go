package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/ledger"
	"github.com/vrsandeep/mango-shelf/internal/mask"
	"github.com/vrsandeep/mango-shelf/internal/models"
)

// ErrInvalidVersion is returned when a chapter number or URL is unusable.
var ErrInvalidVersion = errors.New("invalid chapter version")

// RecordDownload adds a version to the download ledger and remembers the
// archive it was written to. Recording the same version again only
// refreshes the path.
func (s *Store) RecordDownload(ctx context.Context, bookmarkID int64, number chapter.Number, url, path string) (*models.Bookmark, error) {
	if err := checkVersion(number, url); err != nil {
		return nil, err
	}
	paths := map[chapter.Key]string{{Number: number, URL: url}: path}
	return s.mutate(ctx, bookmarkID, paths, func(b *models.Bookmark) bool {
		ledger.For(b).RecordDownload(number, url)
		return true
	})
}

// RecordDeletion removes a version from the download ledger and hides its
// URL from the listing.
func (s *Store) RecordDeletion(ctx context.Context, bookmarkID int64, number chapter.Number, url string) (*models.Bookmark, error) {
	if err := checkVersion(number, url); err != nil {
		return nil, err
	}
	return s.mutate(ctx, bookmarkID, nil, func(b *models.Bookmark) bool {
		ledger.For(b).RecordDeletion(number, url)
		return true
	})
}

// ExcludeChapter hides every version of a chapter number.
func (s *Store) ExcludeChapter(ctx context.Context, bookmarkID int64, number chapter.Number) (*models.Bookmark, error) {
	if !number.Valid() {
		return nil, ErrInvalidVersion
	}
	return s.mutate(ctx, bookmarkID, nil, func(b *models.Bookmark) bool {
		return mask.Exclude(b, number)
	})
}

// RestoreChapter lifts a chapter exclusion.
func (s *Store) RestoreChapter(ctx context.Context, bookmarkID int64, number chapter.Number) (*models.Bookmark, error) {
	if !number.Valid() {
		return nil, ErrInvalidVersion
	}
	return s.mutate(ctx, bookmarkID, nil, func(b *models.Bookmark) bool {
		return mask.RestoreChapter(b, number)
	})
}

// RestoreVersion makes a deleted version URL visible again.
func (s *Store) RestoreVersion(ctx context.Context, bookmarkID int64, url string) (*models.Bookmark, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrInvalidVersion
	}
	return s.mutate(ctx, bookmarkID, nil, func(b *models.Bookmark) bool {
		return mask.RestoreVersion(b, url)
	})
}

// AcknowledgeUpdate clears the pending update event of a chapter.
func (s *Store) AcknowledgeUpdate(ctx context.Context, bookmarkID int64, number chapter.Number) (*models.Bookmark, error) {
	return s.mutate(ctx, bookmarkID, nil, func(b *models.Bookmark) bool {
		return b.AcknowledgeUpdate(number)
	})
}

// FindDownloadByPath maps an archive path back to the version it holds.
func (s *Store) FindDownloadByPath(ctx context.Context, path string) (int64, chapter.Key, error) {
	var row struct {
		BookmarkID int64          `db:"bookmark_id"`
		Number     chapter.Number `db:"number"`
		URL        string         `db:"url"`
	}
	err := s.db.GetContext(ctx, &row, "SELECT bookmark_id, number, url FROM downloaded_versions WHERE path = ? LIMIT 1", path)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, chapter.Key{}, ErrVersionNotFound
	}
	if err != nil {
		return 0, chapter.Key{}, err
	}
	return row.BookmarkID, chapter.Key{Number: row.Number, URL: row.URL}, nil
}

// DownloadRef is a recorded archive and the version it holds.
type DownloadRef struct {
	BookmarkID int64          `db:"bookmark_id"`
	Number     chapter.Number `db:"number"`
	URL        string         `db:"url"`
	Path       string         `db:"path"`
}

// Key returns the version identity of the archive.
func (r DownloadRef) Key() chapter.Key {
	return chapter.Key{Number: r.Number, URL: r.URL}
}

// ListDownloadPaths returns every version with a recorded archive path,
// optionally limited to paths under dir.
func (s *Store) ListDownloadPaths(ctx context.Context, dir string) ([]DownloadRef, error) {
	query := "SELECT bookmark_id, number, url, path FROM downloaded_versions WHERE path <> ''"
	var args []any
	if dir != "" {
		query += " AND instr(path, ?) = 1"
		args = append(args, strings.TrimRight(dir, "/")+"/")
	}
	query += " ORDER BY bookmark_id, number, url"
	var refs []DownloadRef
	if err := s.db.SelectContext(ctx, &refs, query, args...); err != nil {
		return nil, err
	}
	return refs, nil
}

// DownloadPath returns the archive path recorded for a version.
func (s *Store) DownloadPath(ctx context.Context, bookmarkID int64, key chapter.Key) (string, error) {
	var path string
	err := s.db.GetContext(ctx, &path, "SELECT path FROM downloaded_versions WHERE bookmark_id = ? AND number = ? AND url = ?",
		bookmarkID, key.Number, key.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrVersionNotFound
	}
	return path, err
}

func checkVersion(number chapter.Number, url string) error {
	if !number.Valid() || strings.TrimSpace(url) == "" {
		return ErrInvalidVersion
	}
	return nil
}

// mutate loads a bookmark, applies fn in memory and writes back only the
// rows that changed, all in one transaction. fn reports whether it changed
// anything.
func (s *Store) mutate(ctx context.Context, bookmarkID int64, paths map[chapter.Key]string, fn func(b *models.Bookmark) bool) (*models.Bookmark, error) {
	var result *models.Bookmark
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := loadBookmark(ctx, tx, bookmarkID)
		if err != nil {
			return err
		}
		after := before.Clone()
		if !fn(&after) {
			result = before
			return nil
		}
		if err := writeUserChanges(ctx, tx, before, &after, paths); err != nil {
			return err
		}
		result = &after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func writeUserChanges(ctx context.Context, tx *sqlx.Tx, before, after *models.Bookmark, paths map[chapter.Key]string) error {
	id := after.ID
	numberTables := []struct {
		table         string
		before, after chapter.NumberSet
	}{
		{"downloaded_chapters", before.DownloadedChapterNumbers, after.DownloadedChapterNumbers},
		{"excluded_chapters", before.ExcludedChapterNumbers, after.ExcludedChapterNumbers},
		{"pending_new_duplicates", before.PendingNewDuplicates, after.PendingNewDuplicates},
	}
	for _, nt := range numberTables {
		for n := range nt.before {
			if !nt.after.Has(n) {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+nt.table+" WHERE bookmark_id = ? AND number = ?", id, n); err != nil {
					return fmt.Errorf("delete from %s: %w", nt.table, err)
				}
			}
		}
		for n := range nt.after {
			if !nt.before.Has(n) {
				if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO "+nt.table+" (bookmark_id, number) VALUES (?, ?)", id, n); err != nil {
					return fmt.Errorf("insert into %s: %w", nt.table, err)
				}
			}
		}
	}

	for u := range before.DeletedURLs {
		if !after.DeletedURLs.Has(u) {
			if _, err := tx.ExecContext(ctx, "DELETE FROM deleted_urls WHERE bookmark_id = ? AND url = ?", id, u); err != nil {
				return fmt.Errorf("delete deleted url: %w", err)
			}
		}
	}
	for u := range after.DeletedURLs {
		if !before.DeletedURLs.Has(u) {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO deleted_urls (bookmark_id, url) VALUES (?, ?)", id, u); err != nil {
				return fmt.Errorf("insert deleted url: %w", err)
			}
		}
	}

	beforeVersions := versionSet(before)
	afterVersions := versionSet(after)
	for key := range beforeVersions {
		if _, ok := afterVersions[key]; !ok {
			if _, err := tx.ExecContext(ctx, "DELETE FROM downloaded_versions WHERE bookmark_id = ? AND number = ? AND url = ?",
				id, key.Number, key.URL); err != nil {
				return fmt.Errorf("delete downloaded version: %w", err)
			}
		}
	}
	now := time.Now()
	for key := range afterVersions {
		path, hasPath := paths[key]
		if _, existed := beforeVersions[key]; existed && !hasPath {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO downloaded_versions (bookmark_id, number, url, path, downloaded_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(bookmark_id, number, url) DO UPDATE SET path = excluded.path, downloaded_at = excluded.downloaded_at`,
			id, key.Number, key.URL, path, now); err != nil {
			return fmt.Errorf("record downloaded version: %w", err)
		}
	}

	for n := range before.PendingUpdatedChapters {
		if _, ok := after.PendingUpdatedChapters[n]; !ok {
			if _, err := tx.ExecContext(ctx, "DELETE FROM pending_updates WHERE bookmark_id = ? AND number = ?", id, n); err != nil {
				return fmt.Errorf("delete pending update: %w", err)
			}
		}
	}

	after.UpdatedAt = now
	_, err := tx.ExecContext(ctx, "UPDATE bookmarks SET unique_chapter_count = ?, updated_at = ? WHERE id = ?",
		after.UniqueChapterCount, now, id)
	return err
}

func versionSet(b *models.Bookmark) map[chapter.Key]struct{} {
	out := map[chapter.Key]struct{}{}
	for _, key := range ledger.For(b).Versions() {
		out[key] = struct{}{}
	}
	return out
}
