package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/models"
	"github.com/vrsandeep/mango-shelf/internal/store"
	"github.com/vrsandeep/mango-shelf/internal/testutil"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(testutil.SetupTestDB(t))
}

func createBookmark(t *testing.T, s *store.Store, title, url string) *models.Bookmark {
	t.Helper()
	b, err := s.CreateBookmark(context.Background(), &models.Bookmark{
		SourceURL: url, Website: "mangadex.org", Title: title, ProviderID: "mockadex", SeriesIdentifier: "series-1",
	})
	require.NoError(t, err)
	return b
}

func TestCreateAndGetBookmark(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	b := createBookmark(t, s, "Series", "https://mangadex.org/title/1")
	assert.NotZero(t, b.ID)
	assert.Equal(t, "Series", b.Title)
	assert.Empty(t, b.Chapters)
	assert.NotNil(t, b.DownloadedVersionURLs)
	assert.Nil(t, b.LastReconciledAt)

	byURL, err := s.GetBookmarkBySourceURL(ctx, "https://mangadex.org/title/1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, byURL.ID)

	_, err = s.CreateBookmark(ctx, &models.Bookmark{SourceURL: "https://mangadex.org/title/1"})
	assert.ErrorIs(t, err, store.ErrBookmarkExists)

	_, err = s.GetBookmark(ctx, 999)
	assert.ErrorIs(t, err, store.ErrBookmarkNotFound)
	_, err = s.GetBookmarkBySourceURL(ctx, "https://nowhere")
	assert.ErrorIs(t, err, store.ErrBookmarkNotFound)
}

func TestListBookmarksTitleOrder(t *testing.T) {
	s := newStore(t)
	createBookmark(t, s, "Series 10", "u10")
	createBookmark(t, s, "Series 2", "u2")
	createBookmark(t, s, "another", "ua")

	list, err := s.ListBookmarks(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "another", list[0].Title)
	assert.Equal(t, "Series 2", list[1].Title)
	assert.Equal(t, "Series 10", list[2].Title)
}

func TestDeleteBookmark(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	b := createBookmark(t, s, "Series", "u")

	require.NoError(t, s.DeleteBookmark(ctx, b.ID))
	assert.ErrorIs(t, s.DeleteBookmark(ctx, b.ID), store.ErrBookmarkNotFound)
}

func TestSaveReconciliationRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	b := createBookmark(t, s, "Series", "u")

	reconciled := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	b.Chapters = []models.ChapterEntry{
		{Number: 1, URL: "a", Title: "One", ReleaseGroup: "g"},
		{Number: 10.5, URL: "x", Title: "Extra", RemovedFromRemote: true, IsOldVersion: true, URLChanged: true},
	}
	b.DuplicateChapters = map[chapter.Number]int{1: 2}
	b.PendingNewDuplicates = chapter.NewNumberSet(1)
	b.UniqueChapterCount = 2
	b.TotalChapterCount = 3
	b.LastReconciledAt = &reconciled
	b.SnapshotDigest = "digest"
	report := models.ChangeReport{UpdatedChapters: []models.UpdateEvent{{
		Number: 10.5, OldURL: "x", NewURLs: chapter.NewURLSet("y"), Kind: models.UpdateURLChanged, DetectedAt: reconciled,
	}}}

	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.SaveReconciliationTx(ctx, tx, b, report)
	})
	require.NoError(t, err)

	got, err := s.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Chapters, got.Chapters)
	assert.Equal(t, 2, got.DuplicateChapters[1])
	assert.True(t, got.PendingNewDuplicates.Has(1))
	assert.Equal(t, 2, got.UniqueChapterCount)
	assert.Equal(t, 3, got.TotalChapterCount)
	assert.Equal(t, "digest", got.SnapshotDigest)
	require.NotNil(t, got.LastReconciledAt)
	assert.True(t, reconciled.Equal(*got.LastReconciledAt))

	ev, ok := got.PendingUpdatedChapters[10.5]
	require.True(t, ok)
	assert.Equal(t, "x", ev.OldURL)
	assert.Equal(t, []string{"y"}, ev.NewURLs.Slice())
	assert.Equal(t, models.UpdateURLChanged, ev.Kind)
}

func TestSaveReconciliationLeavesLedgerAndMasksAlone(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	b := createBookmark(t, s, "Series", "u")

	_, err := s.RecordDownload(ctx, b.ID, 1, "a", "/lib/a.cbz")
	require.NoError(t, err)
	_, err = s.ExcludeChapter(ctx, b.ID, 2)
	require.NoError(t, err)

	// A stale in-memory copy without the ledger must not erase it.
	stale := createStale(b)
	err = s.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.SaveReconciliationTx(ctx, tx, stale, models.ChangeReport{})
	})
	require.NoError(t, err)

	got, err := s.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.DownloadedChapterNumbers.Has(1))
	assert.True(t, got.DownloadedVersionURLs[1].Has("a"))
	assert.True(t, got.ExcludedChapterNumbers.Has(2))
}

func createStale(b *models.Bookmark) *models.Bookmark {
	stale := &models.Bookmark{ID: b.ID, Chapters: []models.ChapterEntry{{Number: 3, URL: "c"}}}
	stale.EnsureCollections()
	return stale
}

func TestSaveReconciliationUnknownBookmark(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	b := &models.Bookmark{ID: 42}
	b.EnsureCollections()
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.SaveReconciliationTx(ctx, tx, b, models.ChangeReport{})
	})
	assert.ErrorIs(t, err, store.ErrBookmarkNotFound)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	b := createBookmark(t, s, "Series", "u")
	b.Chapters = []models.ChapterEntry{{Number: 1, URL: "a"}}

	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.SaveReconciliationTx(ctx, tx, b, models.ChangeReport{}); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	got, err := s.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Chapters)
}
