package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/mango-shelf/internal/core"
	"github.com/vrsandeep/mango-shelf/internal/downloader/providers/mockadex"
	"github.com/vrsandeep/mango-shelf/internal/models"
	"github.com/vrsandeep/mango-shelf/internal/testutil"
)

type cliTestEnv struct {
	app  *core.App
	mock *mockadex.MockadexProvider
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	app, mock := testutil.SetupTestApp(t)
	return &cliTestEnv{app: app, mock: mock}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(newCommandContext(env.app))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAddListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No bookmarks tracked.")

	out, err = env.run(t, "add", mockadex.SeriesURL("abc"), "--title", "Mock Series")
	require.NoError(t, err)
	assert.Contains(t, out, "Tracking #1 Mock Series (mockadex.org)")

	_, err = env.run(t, "add", "https://unknown.example/title/1")
	assert.Error(t, err)

	out, err = env.run(t, "check", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "#1 Mock Series: 25 unique chapters, 26 versions")
	assert.Contains(t, out, "new duplicate")

	out, err = env.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Mock Series")
	assert.Contains(t, strings.ToLower(out), "last checked")
	assert.NotContains(t, out, "╭", "plain style when not writing to a terminal")

	out, err = env.run(t, "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Chapters:     25 unique, 26 versions")
	assert.Contains(t, out, "Chapter 25: The Mocking")
	assert.Contains(t, out, "duplicate")
	assert.Contains(t, out, "New duplicates: 25")

	_, err = env.run(t, "show", "abc")
	assert.Error(t, err)
	_, err = env.run(t, "show", "99")
	assert.Error(t, err)
}

func TestCheckArguments(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "check")
	assert.Error(t, err)
	_, err = env.run(t, "check", "1", "--all")
	assert.Error(t, err)

	_, err = env.run(t, "add", mockadex.SeriesURL("a"))
	require.NoError(t, err)
	env.mock.SetChapters("a", []models.ScrapedChapter{})
	out, err := env.run(t, "check", "--all")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "skipped")

	_, err = env.run(t, "check", "1")
	assert.Error(t, err, "an empty scrape is reported")
}

func TestMaskCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	env.mock.SetChapters("abc", []models.ScrapedChapter{
		{Number: 1, Title: "One", URL: "https://mockadex.org/chapter/abc-1"},
		{Number: 2, Title: "Two", URL: "https://mockadex.org/chapter/abc-2"},
	})
	_, err := env.run(t, "add", mockadex.SeriesURL("abc"), "--title", "Series")
	require.NoError(t, err)
	_, err = env.run(t, "check", "1")
	require.NoError(t, err)

	out, err := env.run(t, "exclude", "1", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Excluded chapter 2 of #1 Series (1 unique chapters)")

	out, err = env.run(t, "show", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, "Two")
	out, err = env.run(t, "show", "1", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "excluded")

	out, err = env.run(t, "restore", "1", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "(2 unique chapters)")

	_, err = env.run(t, "exclude", "1", "NaN")
	assert.Error(t, err)

	_, err = env.app.Store().RecordDownload(ctx, 1, 1, "https://mockadex.org/chapter/abc-1", "")
	require.NoError(t, err)
	_, err = env.app.Store().RecordDeletion(ctx, 1, 1, "https://mockadex.org/chapter/abc-1")
	require.NoError(t, err)
	out, err = env.run(t, "restore-version", "1", "https://mockadex.org/chapter/abc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored https://mockadex.org/chapter/abc-1 on #1 Series")

	b, err := env.app.Store().GetBookmark(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, b.DeletedURLs)
}

func TestAckCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	env.mock.SetChapters("abc", []models.ScrapedChapter{{Number: 5, URL: "https://mockadex.org/chapter/abc-5"}})
	_, err := env.run(t, "add", mockadex.SeriesURL("abc"))
	require.NoError(t, err)
	_, err = env.run(t, "check", "1")
	require.NoError(t, err)
	_, err = env.app.Store().RecordDownload(ctx, 1, 5, "https://mockadex.org/chapter/abc-5", "")
	require.NoError(t, err)

	env.mock.SetChapters("abc", []models.ScrapedChapter{{Number: 5, URL: "https://mockadex.org/chapter/abc-5-v2"}})
	out, err := env.run(t, "check", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "url_changed")

	out, err = env.run(t, "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Update: chapter 5 url_changed (was https://mockadex.org/chapter/abc-5)")

	out, err = env.run(t, "ack", "1", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Acknowledged update of chapter 5")

	b, err := env.app.Store().GetBookmark(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, b.PendingUpdatedChapters)
}
