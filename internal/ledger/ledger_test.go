package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/models"
)

func TestRecordDownload(t *testing.T) {
	b := &models.Bookmark{}
	b.EnsureCollections()
	b.PendingNewDuplicates.Add(5)

	l := For(b)
	l.RecordDownload(5, "urlA")
	l.RecordDownload(5, "urlA")

	assert.True(t, b.DownloadedChapterNumbers.Has(5))
	assert.Equal(t, []string{"urlA"}, b.DownloadedVersionURLs[5].Slice())
	assert.False(t, b.PendingNewDuplicates.Has(5), "download acknowledges the new duplicate")
	assert.True(t, l.IsPreserved("urlA"))
	assert.False(t, l.IsPreserved("urlB"))
}

func TestRecordDeletion(t *testing.T) {
	b := &models.Bookmark{}
	l := For(b)
	l.RecordDownload(3, "a")
	l.RecordDownload(3, "b")

	l.RecordDeletion(3, "a")
	assert.True(t, l.IsDownloaded(3), "another version is still on disk")
	assert.True(t, b.DeletedURLs.Has("a"))
	assert.False(t, l.IsPreserved("a"))

	l.RecordDeletion(3, "b")
	assert.False(t, l.IsDownloaded(3))
	_, ok := b.DownloadedVersionURLs[3]
	assert.False(t, ok)
	assert.True(t, b.DeletedURLs.Has("b"))
}

func TestRecordDeletionOfUnknownVersionStillMasks(t *testing.T) {
	b := &models.Bookmark{}
	l := For(b)
	l.RecordDeletion(8, "never-downloaded")
	assert.True(t, b.DeletedURLs.Has("never-downloaded"))
	assert.Empty(t, b.DownloadedChapterNumbers)
}

func TestVersionsAreOrdered(t *testing.T) {
	l := For(&models.Bookmark{})
	l.RecordDownload(10.5, "z")
	l.RecordDownload(2, "b")
	l.RecordDownload(2, "a")

	assert.Equal(t, []chapter.Key{
		{Number: 2, URL: "a"},
		{Number: 2, URL: "b"},
		{Number: 10.5, URL: "z"},
	}, l.Versions())
}
