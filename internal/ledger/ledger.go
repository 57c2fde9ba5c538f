// Package ledger tracks which chapter versions of a bookmark have local
// content. It is written by the download subsystem and read by the
// reconciler, which must never drop a version the ledger preserves.
package ledger

import (
	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/models"
)

// Ledger operates on the download fields of a bookmark in memory.
type Ledger struct {
	b *models.Bookmark
}

// For returns the ledger of b.
func For(b *models.Bookmark) *Ledger {
	b.EnsureCollections()
	return &Ledger{b: b}
}

// RecordDownload marks url as downloaded content for number. Recording the
// same version twice is a no-op. Downloading a chapter acknowledges it as a
// new duplicate.
func (l *Ledger) RecordDownload(number chapter.Number, url string) {
	urls, ok := l.b.DownloadedVersionURLs[number]
	if !ok {
		urls = chapter.URLSet{}
		l.b.DownloadedVersionURLs[number] = urls
	}
	urls.Add(url)
	l.b.DownloadedChapterNumbers.Add(number)
	l.b.PendingNewDuplicates.Remove(number)
}

// RecordDeletion removes the local copy of one version and hides the URL.
// The chapter number stays downloaded while any other version remains.
func (l *Ledger) RecordDeletion(number chapter.Number, url string) {
	if urls, ok := l.b.DownloadedVersionURLs[number]; ok {
		urls.Remove(url)
		if len(urls) == 0 {
			delete(l.b.DownloadedVersionURLs, number)
			l.b.DownloadedChapterNumbers.Remove(number)
		}
	}
	l.b.DeletedURLs.Add(url)
}

// IsPreserved reports whether url is a recorded download for any number.
func (l *Ledger) IsPreserved(url string) bool {
	for _, urls := range l.b.DownloadedVersionURLs {
		if urls.Has(url) {
			return true
		}
	}
	return false
}

// IsDownloaded reports whether number has at least one local version.
func (l *Ledger) IsDownloaded(number chapter.Number) bool {
	return l.b.DownloadedChapterNumbers.Has(number)
}

// Versions lists every recorded (number, url) pair in key order.
func (l *Ledger) Versions() []chapter.Key {
	var keys []chapter.Key
	for _, n := range sortedNumbers(l.b.DownloadedVersionURLs) {
		for _, u := range l.b.DownloadedVersionURLs[n].Slice() {
			keys = append(keys, chapter.Key{Number: n, URL: u})
		}
	}
	return keys
}

func sortedNumbers(m map[chapter.Number]chapter.URLSet) []chapter.Number {
	s := make(chapter.NumberSet, len(m))
	for n := range m {
		s.Add(n)
	}
	return s.Slice()
}
