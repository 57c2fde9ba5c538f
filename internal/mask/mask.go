// Package mask implements the user's exclusion and deletion overrides.
// Masks only affect what is shown and counted; the underlying chapter
// entries are never removed, so a later scrape cannot bring hidden content
// back into view.
package mask

import (
	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/models"
)

// Masks holds the two independent predicates.
type Masks struct {
	Excluded chapter.NumberSet
	Deleted  chapter.URLSet
}

// Of returns the masks of b. The sets are shared with b, not copied.
func Of(b *models.Bookmark) Masks {
	return Masks{Excluded: b.ExcludedChapterNumbers, Deleted: b.DeletedURLs}
}

// IsExcluded reports whether the whole chapter number is hidden.
func (m Masks) IsExcluded(number chapter.Number) bool {
	return m.Excluded.Has(number)
}

// IsDeleted reports whether one specific version URL is hidden.
func (m Masks) IsDeleted(url string) bool {
	return m.Deleted.Has(url)
}

// Hidden reports whether an entry is masked by either predicate.
func (m Masks) Hidden(e models.ChapterEntry) bool {
	return m.IsExcluded(e.Number) || m.IsDeleted(e.URL)
}

// Visible returns the entries that survive both masks, in input order.
func (m Masks) Visible(entries []models.ChapterEntry) []models.ChapterEntry {
	out := make([]models.ChapterEntry, 0, len(entries))
	for _, e := range entries {
		if !m.Hidden(e) {
			out = append(out, e)
		}
	}
	return out
}

// UniqueCount counts distinct chapter numbers that are not excluded.
// Deleted versions still count: deleting a version hides the URL, not the
// chapter.
func (m Masks) UniqueCount(entries []models.ChapterEntry) int {
	seen := chapter.NumberSet{}
	for _, e := range entries {
		if !m.IsExcluded(e.Number) {
			seen.Add(e.Number)
		}
	}
	return len(seen)
}

// Exclude hides every version of number and refreshes the unique count.
// It reports false when the number was already excluded.
func Exclude(b *models.Bookmark, number chapter.Number) bool {
	b.EnsureCollections()
	if !b.ExcludedChapterNumbers.Add(number) {
		return false
	}
	b.UniqueChapterCount = Of(b).UniqueCount(b.Chapters)
	return true
}

// RestoreChapter lifts the exclusion of number.
func RestoreChapter(b *models.Bookmark, number chapter.Number) bool {
	b.EnsureCollections()
	if !b.ExcludedChapterNumbers.Has(number) {
		return false
	}
	b.ExcludedChapterNumbers.Remove(number)
	b.UniqueChapterCount = Of(b).UniqueCount(b.Chapters)
	return true
}

// RestoreVersion makes a deleted URL visible again. The download ledger is
// untouched: the local copy stays gone until it is downloaded again.
func RestoreVersion(b *models.Bookmark, url string) bool {
	b.EnsureCollections()
	if !b.DeletedURLs.Has(url) {
		return false
	}
	b.DeletedURLs.Remove(url)
	return true
}
