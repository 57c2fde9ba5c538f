// Package reconcile merges a fresh, untrusted chapter snapshot of a source
// into a bookmark's persisted state. It never drops a downloaded version,
// never touches the download ledger or the user's masks, and reports each
// change once.
package reconcile

import (
	"maps"
	"slices"
	"time"

	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/ledger"
	"github.com/vrsandeep/mango-shelf/internal/mask"
	"github.com/vrsandeep/mango-shelf/internal/models"
)

// Reconcile computes the new state of b for the given snapshot. It does not
// modify b. The snapshot must already have passed Validate.
func Reconcile(b models.Bookmark, snap models.Snapshot, now time.Time) (models.Bookmark, models.ChangeReport) {
	out := b.Clone()
	led := ledger.For(&out)
	masks := mask.Of(&out)
	report := models.ChangeReport{
		NewDuplicates:            []chapter.Number{},
		UpdatedChapters:          []models.UpdateEvent{},
		RemovedFromRemoteNumbers: []chapter.Number{},
	}

	// Index the snapshot. The first row for a version wins.
	fresh := map[chapter.Key]models.ChapterEntry{}
	live := map[chapter.Number]chapter.URLSet{}
	for _, c := range snap.Chapters {
		key := chapter.Key{Number: c.Number, URL: c.URL}
		if _, seen := fresh[key]; seen {
			continue
		}
		fresh[key] = models.ChapterEntry{
			Number:       c.Number,
			URL:          c.URL,
			Title:        c.Title,
			ReleaseGroup: c.ReleaseGroup,
			UploadedAt:   c.UploadedAt,
		}
		if live[c.Number] == nil {
			live[c.Number] = chapter.URLSet{}
		}
		live[c.Number].Add(c.URL)
	}

	prev := map[chapter.Key]models.ChapterEntry{}
	prevLive := chapter.NumberSet{}
	prevKnown := chapter.NumberSet{}
	for _, e := range b.Chapters {
		prev[e.Key()] = e
		prevKnown.Add(e.Number)
		if !e.RemovedFromRemote {
			prevLive.Add(e.Number)
		}
	}

	// Classify every downloaded version against the snapshot.
	retained := map[chapter.Key]models.ChapterEntry{}
	changedNow := chapter.NumberSet{}
	removed := chapter.NumberSet{}
	for _, key := range led.Versions() {
		urls := live[key.Number]
		if urls.Has(key.URL) {
			continue
		}
		old, known := prev[key]
		entry := old
		entry.Number, entry.URL = key.Number, key.URL
		entry.RemovedFromRemote = true

		if len(urls) > 0 {
			entry.IsOldVersion = true
			entry.URLChanged = true
			retained[key] = entry
			if known && old.URLChanged {
				continue
			}
			ev := models.UpdateEvent{
				Number:     key.Number,
				OldURL:     key.URL,
				NewURLs:    urls.Clone(),
				Kind:       models.UpdateURLChanged,
				DetectedAt: now,
			}
			report.UpdatedChapters = append(report.UpdatedChapters, ev)
			out.PendingUpdatedChapters[key.Number] = ev
			changedNow.Add(key.Number)
			continue
		}

		retained[key] = entry
		if prevLive.Has(key.Number) || !prevKnown.Has(key.Number) {
			removed.Add(key.Number)
		}
	}
	report.RemovedFromRemoteNumbers = append(report.RemovedFromRemoteNumbers, removed.Slice()...)

	// Duplicates: a number needs two live, non-deleted versions to count.
	visibleCount := func(n chapter.Number) int {
		count := 0
		for u := range live[n] {
			if !masks.IsDeleted(u) {
				count++
			}
		}
		return count
	}
	dups := map[chapter.Number]int{}
	for _, d := range snap.Duplicates {
		if d.Count < 2 || visibleCount(d.Number) < 2 {
			continue
		}
		if d.Count > dups[d.Number] {
			dups[d.Number] = d.Count
		}
	}
	for _, n := range slices.Sorted(maps.Keys(dups)) {
		if _, known := b.DuplicateChapters[n]; known {
			continue
		}
		report.NewDuplicates = append(report.NewDuplicates, n)
		if !led.IsDownloaded(n) {
			out.PendingNewDuplicates.Add(n)
		}
	}

	for _, n := range out.DownloadedChapterNumbers.Slice() {
		if visibleCount(n) < 2 || changedNow.Has(n) {
			continue
		}
		if _, known := b.DuplicateChapters[n]; known {
			continue
		}
		// An unacknowledged event already describes this number: a pending
		// new_version, or any event for the same live URL set.
		if pending, ok := b.PendingUpdatedChapters[n]; ok &&
			(pending.Kind == models.UpdateNewVersion || pending.NewURLs.Equal(live[n])) {
			continue
		}
		ev := models.UpdateEvent{
			Number:     n,
			NewURLs:    live[n].Clone(),
			Kind:       models.UpdateNewVersion,
			DetectedAt: now,
		}
		report.UpdatedChapters = append(report.UpdatedChapters, ev)
		out.PendingUpdatedChapters[n] = ev
	}

	// Merge: snapshot rows, then retained old versions, then any earlier
	// entry whose URL is still on disk. Everything else is dropped.
	merged := make(map[chapter.Key]models.ChapterEntry, len(fresh)+len(retained))
	maps.Copy(merged, fresh)
	for key, e := range retained {
		if _, ok := merged[key]; !ok {
			merged[key] = e
		}
	}
	for _, e := range b.Chapters {
		key := e.Key()
		if _, ok := merged[key]; ok {
			continue
		}
		if led.IsPreserved(e.URL) {
			e.RemovedFromRemote = true
			merged[key] = e
		}
	}
	out.Chapters = slices.SortedFunc(maps.Values(merged), func(a, b models.ChapterEntry) int {
		ka, kb := a.Key(), b.Key()
		switch {
		case ka.Less(kb):
			return -1
		case kb.Less(ka):
			return 1
		}
		return 0
	})

	out.TotalChapterCount = len(snap.Chapters)
	out.UniqueChapterCount = masks.UniqueCount(out.Chapters)
	out.DuplicateChapters = dups
	reconciledAt := now
	out.LastReconciledAt = &reconciledAt
	out.SnapshotDigest = Digest(snap)

	return out, report
}
