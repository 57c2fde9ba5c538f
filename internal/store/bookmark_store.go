package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/models"
	"github.com/vrsandeep/mango-shelf/internal/util"
)

const bookmarkColumns = `id, source_url, website, title, provider_id, series_identifier,
	unique_chapter_count, total_chapter_count, last_reconciled_at, snapshot_digest, created_at, updated_at`

type bookmarkRow struct {
	ID                 int64      `db:"id"`
	SourceURL          string     `db:"source_url"`
	Website            string     `db:"website"`
	Title              string     `db:"title"`
	ProviderID         string     `db:"provider_id"`
	SeriesIdentifier   string     `db:"series_identifier"`
	UniqueChapterCount int        `db:"unique_chapter_count"`
	TotalChapterCount  int        `db:"total_chapter_count"`
	LastReconciledAt   *time.Time `db:"last_reconciled_at"`
	SnapshotDigest     string     `db:"snapshot_digest"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

func (r bookmarkRow) toModel() *models.Bookmark {
	b := &models.Bookmark{
		ID:                 r.ID,
		SourceURL:          r.SourceURL,
		Website:            r.Website,
		Title:              r.Title,
		ProviderID:         r.ProviderID,
		SeriesIdentifier:   r.SeriesIdentifier,
		Chapters:           []models.ChapterEntry{},
		UniqueChapterCount: r.UniqueChapterCount,
		TotalChapterCount:  r.TotalChapterCount,
		LastReconciledAt:   r.LastReconciledAt,
		SnapshotDigest:     r.SnapshotDigest,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	b.EnsureCollections()
	return b
}

type versionRow struct {
	Number chapter.Number `db:"number"`
	URL    string         `db:"url"`
}

type duplicateRow struct {
	Number chapter.Number `db:"number"`
	Count  int            `db:"count"`
}

type pendingUpdateRow struct {
	Number     chapter.Number `db:"number"`
	OldURL     string         `db:"old_url"`
	NewURLs    string         `db:"new_urls"`
	Kind       string         `db:"kind"`
	DetectedAt time.Time      `db:"detected_at"`
}

// CreateBookmark starts tracking a series. The source URL must be unique.
func (s *Store) CreateBookmark(ctx context.Context, b *models.Bookmark) (*models.Bookmark, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (source_url, website, title, provider_id, series_identifier, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.SourceURL, b.Website, b.Title, b.ProviderID, b.SeriesIdentifier, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrBookmarkExists
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetBookmark(ctx, id)
}

// GetBookmark loads the full record, every collection included.
func (s *Store) GetBookmark(ctx context.Context, id int64) (*models.Bookmark, error) {
	return loadBookmark(ctx, s.db, id)
}

// GetBookmarkBySourceURL loads the bookmark tracking sourceURL.
func (s *Store) GetBookmarkBySourceURL(ctx context.Context, sourceURL string) (*models.Bookmark, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, "SELECT id FROM bookmarks WHERE source_url = ?", sourceURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookmarkNotFound
	}
	if err != nil {
		return nil, err
	}
	return loadBookmark(ctx, s.db, id)
}

// ListBookmarks returns every bookmark without its collections, sorted by
// title with numeric-aware collation.
func (s *Store) ListBookmarks(ctx context.Context) ([]*models.Bookmark, error) {
	var rows []bookmarkRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+bookmarkColumns+" FROM bookmarks"); err != nil {
		return nil, err
	}
	bookmarks := make([]*models.Bookmark, 0, len(rows))
	for _, r := range rows {
		bookmarks = append(bookmarks, r.toModel())
	}
	slices.SortStableFunc(bookmarks, func(a, b *models.Bookmark) int {
		return util.CompareTitles(a.Title, b.Title)
	})
	return bookmarks, nil
}

// DeleteBookmark removes a bookmark and everything it owns.
func (s *Store) DeleteBookmark(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bookmarks WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBookmarkNotFound
	}
	return nil
}

// LoadBookmarkTx loads a bookmark inside tx, so the read and the following
// write see the same state.
func (s *Store) LoadBookmarkTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Bookmark, error) {
	return loadBookmark(ctx, tx, id)
}

func loadBookmark(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Bookmark, error) {
	var row bookmarkRow
	err := sqlx.GetContext(ctx, q, &row, "SELECT "+bookmarkColumns+" FROM bookmarks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookmarkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load bookmark %d: %w", id, err)
	}
	b := row.toModel()

	if err := sqlx.SelectContext(ctx, q, &b.Chapters, `
		SELECT number, url, title, release_group, uploaded_at, removed_from_remote, is_old_version, url_changed
		FROM chapters WHERE bookmark_id = ? ORDER BY number, url`, id); err != nil {
		return nil, fmt.Errorf("load chapters: %w", err)
	}
	if b.Chapters == nil {
		b.Chapters = []models.ChapterEntry{}
	}

	numberSets := []struct {
		table string
		set   chapter.NumberSet
	}{
		{"downloaded_chapters", b.DownloadedChapterNumbers},
		{"excluded_chapters", b.ExcludedChapterNumbers},
		{"pending_new_duplicates", b.PendingNewDuplicates},
	}
	for _, ns := range numberSets {
		var numbers []chapter.Number
		if err := sqlx.SelectContext(ctx, q, &numbers, "SELECT number FROM "+ns.table+" WHERE bookmark_id = ?", id); err != nil {
			return nil, fmt.Errorf("load %s: %w", ns.table, err)
		}
		for _, n := range numbers {
			ns.set.Add(n)
		}
	}

	var versions []versionRow
	if err := sqlx.SelectContext(ctx, q, &versions, "SELECT number, url FROM downloaded_versions WHERE bookmark_id = ?", id); err != nil {
		return nil, fmt.Errorf("load downloaded_versions: %w", err)
	}
	for _, v := range versions {
		if b.DownloadedVersionURLs[v.Number] == nil {
			b.DownloadedVersionURLs[v.Number] = chapter.URLSet{}
		}
		b.DownloadedVersionURLs[v.Number].Add(v.URL)
	}

	var deleted []string
	if err := sqlx.SelectContext(ctx, q, &deleted, "SELECT url FROM deleted_urls WHERE bookmark_id = ?", id); err != nil {
		return nil, fmt.Errorf("load deleted_urls: %w", err)
	}
	for _, u := range deleted {
		b.DeletedURLs.Add(u)
	}

	var dups []duplicateRow
	if err := sqlx.SelectContext(ctx, q, &dups, "SELECT number, count FROM duplicate_chapters WHERE bookmark_id = ?", id); err != nil {
		return nil, fmt.Errorf("load duplicate_chapters: %w", err)
	}
	for _, d := range dups {
		b.DuplicateChapters[d.Number] = d.Count
	}

	var pending []pendingUpdateRow
	if err := sqlx.SelectContext(ctx, q, &pending, `
		SELECT number, old_url, new_urls, kind, detected_at
		FROM pending_updates WHERE bookmark_id = ?`, id); err != nil {
		return nil, fmt.Errorf("load pending_updates: %w", err)
	}
	for _, p := range pending {
		ev := models.UpdateEvent{
			Number:     p.Number,
			OldURL:     p.OldURL,
			Kind:       models.UpdateKind(p.Kind),
			DetectedAt: p.DetectedAt,
		}
		if err := json.Unmarshal([]byte(p.NewURLs), &ev.NewURLs); err != nil {
			return nil, fmt.Errorf("decode pending update %s: %w", p.Number, err)
		}
		b.PendingUpdatedChapters[p.Number] = ev
	}

	return b, nil
}

// SaveReconciliationTx writes the fields a reconciliation owns: the chapter
// list, the duplicate map, new pending duplicates, new update events and
// the counts. The ledger and the masks are never written here, and pending
// entries are only ever added.
func (s *Store) SaveReconciliationTx(ctx context.Context, tx *sqlx.Tx, b *models.Bookmark, report models.ChangeReport) error {
	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE bookmarks
		SET unique_chapter_count = ?, total_chapter_count = ?, last_reconciled_at = ?, snapshot_digest = ?, updated_at = ?
		WHERE id = ?`,
		b.UniqueChapterCount, b.TotalChapterCount, b.LastReconciledAt, b.SnapshotDigest, now, b.ID)
	if err != nil {
		return fmt.Errorf("update bookmark: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return ErrBookmarkNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chapters WHERE bookmark_id = ?", b.ID); err != nil {
		return fmt.Errorf("clear chapters: %w", err)
	}
	chapterStmt, err := tx.PreparexContext(ctx, `
		INSERT INTO chapters (bookmark_id, number, url, title, release_group, uploaded_at, removed_from_remote, is_old_version, url_changed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer chapterStmt.Close()
	for _, e := range b.Chapters {
		if _, err := chapterStmt.ExecContext(ctx, b.ID, e.Number, e.URL, e.Title, e.ReleaseGroup, e.UploadedAt,
			e.RemovedFromRemote, e.IsOldVersion, e.URLChanged); err != nil {
			return fmt.Errorf("insert chapter %s: %w", e.Key(), err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM duplicate_chapters WHERE bookmark_id = ?", b.ID); err != nil {
		return fmt.Errorf("clear duplicate_chapters: %w", err)
	}
	for n, count := range b.DuplicateChapters {
		if _, err := tx.ExecContext(ctx, "INSERT INTO duplicate_chapters (bookmark_id, number, count) VALUES (?, ?, ?)", b.ID, n, count); err != nil {
			return fmt.Errorf("insert duplicate %s: %w", n, err)
		}
	}

	for _, n := range b.PendingNewDuplicates.Slice() {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO pending_new_duplicates (bookmark_id, number) VALUES (?, ?)", b.ID, n); err != nil {
			return fmt.Errorf("insert pending duplicate %s: %w", n, err)
		}
	}

	for _, ev := range report.UpdatedChapters {
		if err := upsertPendingUpdate(ctx, tx, b.ID, ev); err != nil {
			return err
		}
	}
	return nil
}

func upsertPendingUpdate(ctx context.Context, tx *sqlx.Tx, bookmarkID int64, ev models.UpdateEvent) error {
	newURLs, err := json.Marshal(ev.NewURLs)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO pending_updates (bookmark_id, number, old_url, new_urls, kind, detected_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bookmark_id, number) DO UPDATE SET
			old_url = excluded.old_url, new_urls = excluded.new_urls,
			kind = excluded.kind, detected_at = excluded.detected_at`,
		bookmarkID, ev.Number, ev.OldURL, string(newURLs), string(ev.Kind), ev.DetectedAt)
	if err != nil {
		return fmt.Errorf("upsert pending update %s: %w", ev.Number, err)
	}
	return nil
}
