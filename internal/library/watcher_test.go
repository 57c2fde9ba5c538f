package library_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/core"
	"github.com/vrsandeep/mango-shelf/internal/library"
	"github.com/vrsandeep/mango-shelf/internal/models"
	"github.com/vrsandeep/mango-shelf/internal/testutil"
)

func setupLibrary(t *testing.T) (*core.App, *models.Bookmark) {
	t.Helper()
	app, _ := testutil.SetupTestApp(t)
	b, err := app.Store().CreateBookmark(context.Background(), &models.Bookmark{
		SourceURL: "https://mockadex.org/title/s1", Website: "mockadex.org", Title: "Series", ProviderID: "mockadex",
	})
	require.NoError(t, err)
	return app, b
}

func recordArchive(t *testing.T, app *core.App, b *models.Bookmark, dir, name string, number chapter.Number, url string) string {
	t.Helper()
	path := testutil.CreateTestCBZ(t, dir, name, 2)
	_, err := app.Store().RecordDownload(context.Background(), b.ID, number, url, path)
	require.NoError(t, err)
	return path
}

func startWatcher(t *testing.T, app *core.App) *library.WatcherService {
	t.Helper()
	w := library.NewWatcherService(app)
	w.SetDebounceDelay(50 * time.Millisecond)
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Stop() })
	return w
}

func TestWatcherService_StartStop(t *testing.T) {
	app, _ := setupLibrary(t)
	w := library.NewWatcherService(app)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop(), "stopping twice is harmless")
}

func TestWatcherService_RemovedArchiveRecordsDeletion(t *testing.T) {
	app, b := setupLibrary(t)
	dir := filepath.Join(app.Config().Library.Path, "Series")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := recordArchive(t, app, b, dir, "ch1.cbz", 1, "u1")
	keep := recordArchive(t, app, b, dir, "ch2.cbz", 2, "u2")
	startWatcher(t, app)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		got, err := app.Store().GetBookmark(context.Background(), b.ID)
		return err == nil && !got.DownloadedChapterNumbers.Has(1)
	}, 5*time.Second, 20*time.Millisecond)

	got, err := app.Store().GetBookmark(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, got.DeletedURLs.Has("u1"))
	assert.True(t, got.DownloadedChapterNumbers.Has(2), "other archives are untouched")
	assert.FileExists(t, keep)
}

func TestWatcherService_RemovedDirectoryRecordsAllVersions(t *testing.T) {
	app, b := setupLibrary(t)
	dir := filepath.Join(app.Config().Library.Path, "Series")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	recordArchive(t, app, b, dir, "ch1.cbz", 1, "u1")
	recordArchive(t, app, b, dir, "ch1-alt.cbz", 1, "u1b")
	startWatcher(t, app)

	require.NoError(t, os.RemoveAll(dir))

	require.Eventually(t, func() bool {
		got, err := app.Store().GetBookmark(context.Background(), b.ID)
		return err == nil && len(got.DownloadedChapterNumbers) == 0 && got.DeletedURLs.Has("u1") && got.DeletedURLs.Has("u1b")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcherService_WatchesNewDirectories(t *testing.T) {
	app, b := setupLibrary(t)
	startWatcher(t, app)

	dir := filepath.Join(app.Config().Library.Path, "Later")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	// Give the watcher a moment to add the new directory.
	time.Sleep(200 * time.Millisecond)
	path := recordArchive(t, app, b, dir, "ch5.cbz", 5, "u5")
	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		got, err := app.Store().GetBookmark(context.Background(), b.ID)
		return err == nil && got.DeletedURLs.Has("u5")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRecordRemovedArchivesSkipsFilesStillOnDisk(t *testing.T) {
	app, b := setupLibrary(t)
	dir := filepath.Join(app.Config().Library.Path, "Series")
	path := recordArchive(t, app, b, dir, "ch1.cbz", 1, "u1")

	n, err := library.RecordRemovedArchives(context.Background(), app.Store(), []string{path, filepath.Join(dir, "unknown.cbz")})
	require.NoError(t, err)
	assert.Zero(t, n)

	got, _ := app.Store().GetBookmark(context.Background(), b.ID)
	assert.True(t, got.DownloadedChapterNumbers.Has(1))
}

func TestRunSweepRecordsMissingArchives(t *testing.T) {
	app, b := setupLibrary(t)
	dir := filepath.Join(app.Config().Library.Path, "Series")
	gone := recordArchive(t, app, b, dir, "ch1.cbz", 1, "u1")
	recordArchive(t, app, b, dir, "ch2.cbz", 2, "u2")
	require.NoError(t, os.Remove(gone))

	library.RunSweep(app)

	got, err := app.Store().GetBookmark(context.Background(), b.ID)
	require.NoError(t, err)
	assert.False(t, got.DownloadedChapterNumbers.Has(1))
	assert.True(t, got.DeletedURLs.Has("u1"))
	assert.True(t, got.DownloadedChapterNumbers.Has(2))
}
