package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/models"
	"github.com/vrsandeep/mango-shelf/internal/store"
)

func TestRecordDownloadAndDeletion(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	b := createBookmark(t, s, "Series", "u")

	// Pending duplicate is acknowledged by downloading the chapter.
	_, err := s.RecordDownload(ctx, b.ID, 4, "a", "/lib/Series/4-a.cbz")
	require.NoError(t, err)
	_, err = s.RecordDownload(ctx, b.ID, 4, "b", "/lib/Series/4-b.cbz")
	require.NoError(t, err)
	got, err := s.RecordDownload(ctx, b.ID, 4, "b", "/lib/Series/4-b2.cbz")
	require.NoError(t, err, "recording the same version twice is allowed")
	assert.Equal(t, []string{"a", "b"}, got.DownloadedVersionURLs[4].Slice())

	path, err := s.DownloadPath(ctx, b.ID, chapter.Key{Number: 4, URL: "b"})
	require.NoError(t, err)
	assert.Equal(t, "/lib/Series/4-b2.cbz", path)

	bookmarkID, key, err := s.FindDownloadByPath(ctx, "/lib/Series/4-a.cbz")
	require.NoError(t, err)
	assert.Equal(t, b.ID, bookmarkID)
	assert.Equal(t, chapter.Key{Number: 4, URL: "a"}, key)

	got, err = s.RecordDeletion(ctx, b.ID, 4, "a")
	require.NoError(t, err)
	assert.True(t, got.DownloadedChapterNumbers.Has(4), "another version is still on disk")
	assert.True(t, got.DeletedURLs.Has("a"))

	got, err = s.RecordDeletion(ctx, b.ID, 4, "b")
	require.NoError(t, err)
	assert.False(t, got.DownloadedChapterNumbers.Has(4))
	assert.NotContains(t, got.DownloadedVersionURLs, chapter.Number(4))

	stored, err := s.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, got.DownloadedChapterNumbers, stored.DownloadedChapterNumbers)
	assert.Equal(t, got.DeletedURLs, stored.DeletedURLs)
	assert.Empty(t, stored.DownloadedVersionURLs)

	_, _, err = s.FindDownloadByPath(ctx, "/lib/Series/4-a.cbz")
	assert.ErrorIs(t, err, store.ErrVersionNotFound)
}

func TestRecordDownloadClearsPendingDuplicate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	b := createBookmark(t, s, "Series", "u")
	b.PendingNewDuplicates = chapter.NewNumberSet(7)
	saveReconciled(t, s, b)

	got, err := s.RecordDownload(ctx, b.ID, 7, "x", "")
	require.NoError(t, err)
	assert.False(t, got.PendingNewDuplicates.Has(7))

	stored, err := s.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, stored.PendingNewDuplicates.Has(7))
}

func TestRecordDownloadValidation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.RecordDownload(ctx, 1, 1, "", "")
	assert.ErrorIs(t, err, store.ErrInvalidVersion)
	_, err = s.RecordDownload(ctx, 999, 1, "a", "")
	assert.ErrorIs(t, err, store.ErrBookmarkNotFound)
}

func TestExcludeAndRestoreChapter(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	b := createBookmark(t, s, "Series", "u")
	b.Chapters = []models.ChapterEntry{{Number: 1, URL: "a"}, {Number: 2, URL: "b"}, {Number: 3, URL: "c"}}
	b.UniqueChapterCount = 3
	saveReconciled(t, s, b)

	got, err := s.ExcludeChapter(ctx, b.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UniqueChapterCount)

	stored, err := s.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, stored.ExcludedChapterNumbers.Has(2))
	assert.Equal(t, 2, stored.UniqueChapterCount)
	assert.Len(t, stored.Chapters, 3)

	got, err = s.RestoreChapter(ctx, b.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, got.UniqueChapterCount)
	stored, _ = s.GetBookmark(ctx, b.ID)
	assert.Empty(t, stored.ExcludedChapterNumbers)
	assert.Equal(t, 3, stored.UniqueChapterCount)
}

func TestRestoreVersion(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	b := createBookmark(t, s, "Series", "u")
	_, err := s.RecordDownload(ctx, b.ID, 1, "a", "/x.cbz")
	require.NoError(t, err)
	_, err = s.RecordDeletion(ctx, b.ID, 1, "a")
	require.NoError(t, err)

	got, err := s.RestoreVersion(ctx, b.ID, "a")
	require.NoError(t, err)
	assert.False(t, got.DeletedURLs.Has("a"))
	assert.False(t, got.DownloadedChapterNumbers.Has(1), "restoring a version does not bring back the file")

	stored, _ := s.GetBookmark(ctx, b.ID)
	assert.Empty(t, stored.DeletedURLs)

	_, err = s.RestoreVersion(ctx, b.ID, " ")
	assert.ErrorIs(t, err, store.ErrInvalidVersion)
}

func TestAcknowledgeUpdate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	b := createBookmark(t, s, "Series", "u")
	report := models.ChangeReport{UpdatedChapters: []models.UpdateEvent{{
		Number: 5, NewURLs: chapter.NewURLSet("a", "b"), Kind: models.UpdateNewVersion,
	}}}
	saveReconciledWithReport(t, s, b, report)

	stored, _ := s.GetBookmark(ctx, b.ID)
	require.Contains(t, stored.PendingUpdatedChapters, chapter.Number(5))

	got, err := s.AcknowledgeUpdate(ctx, b.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, got.PendingUpdatedChapters)
	stored, _ = s.GetBookmark(ctx, b.ID)
	assert.Empty(t, stored.PendingUpdatedChapters)

	_, err = s.AcknowledgeUpdate(ctx, 999, 5)
	assert.ErrorIs(t, err, store.ErrBookmarkNotFound)
}

func TestListDownloadPaths(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	b := createBookmark(t, s, "Series", "u")

	_, err := s.RecordDownload(ctx, b.ID, 1, "a", "/lib/Series/1.cbz")
	require.NoError(t, err)
	_, err = s.RecordDownload(ctx, b.ID, 2, "b", "/lib/Series 2/2.cbz")
	require.NoError(t, err)
	_, err = s.RecordDownload(ctx, b.ID, 3, "c", "")
	require.NoError(t, err)

	all, err := s.ListDownloadPaths(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2, "versions without a path are not listed")

	under, err := s.ListDownloadPaths(ctx, "/lib/Series")
	require.NoError(t, err)
	require.Len(t, under, 1)
	assert.Equal(t, "/lib/Series/1.cbz", under[0].Path)
	assert.Equal(t, chapter.Key{Number: 1, URL: "a"}, under[0].Key())
}
