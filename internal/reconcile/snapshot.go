package reconcile

import (
	"cmp"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/models"
	"golang.org/x/crypto/blake2b"
)

// Validate checks a snapshot before anything is read or written.
// An empty chapter list is treated as a failed or partial scrape, never as
// "the source removed everything".
func Validate(snap models.Snapshot) error {
	if len(snap.Chapters) == 0 {
		return &InputError{Field: "chapters", Reason: "empty chapter list"}
	}
	for i, c := range snap.Chapters {
		if !c.Number.Valid() {
			return &InputError{Field: fmt.Sprintf("chapters[%d].number", i), Reason: "not a finite number"}
		}
		if strings.TrimSpace(c.URL) == "" {
			return &InputError{Field: fmt.Sprintf("chapters[%d].url", i), Reason: "missing"}
		}
	}
	for i, d := range snap.Duplicates {
		if !d.Number.Valid() {
			return &InputError{Field: fmt.Sprintf("duplicates[%d].number", i), Reason: "not a finite number"}
		}
		if d.Count < 0 {
			return &InputError{Field: fmt.Sprintf("duplicates[%d].count", i), Reason: "negative count"}
		}
	}
	return nil
}

type wireChapter struct {
	Number       *chapter.Number `json:"number"`
	Title        string          `json:"title"`
	URL          *string         `json:"url"`
	ReleaseGroup string          `json:"release_group,omitempty"`
	UploadedAt   string          `json:"uploaded_at,omitempty"`
}

type wireDuplicate struct {
	Number *chapter.Number `json:"number"`
	Count  *int            `json:"count"`
}

type wireSnapshot struct {
	Chapters   []wireChapter   `json:"chapters"`
	Duplicates []wireDuplicate `json:"duplicates"`
}

// DecodeSnapshot reads a snapshot from JSON, reporting absent numbers, URLs
// and counts as input errors. When the duplicate list is omitted it is
// derived from the chapters.
func DecodeSnapshot(r io.Reader) (models.Snapshot, error) {
	var w wireSnapshot
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return models.Snapshot{}, &InputError{Field: "body", Reason: err.Error()}
	}

	snap := models.Snapshot{Chapters: make([]models.ScrapedChapter, 0, len(w.Chapters))}
	for i, c := range w.Chapters {
		if c.Number == nil {
			return models.Snapshot{}, &InputError{Field: fmt.Sprintf("chapters[%d].number", i), Reason: "missing"}
		}
		if c.URL == nil {
			return models.Snapshot{}, &InputError{Field: fmt.Sprintf("chapters[%d].url", i), Reason: "missing"}
		}
		snap.Chapters = append(snap.Chapters, models.ScrapedChapter{
			Number:       *c.Number,
			Title:        c.Title,
			URL:          *c.URL,
			ReleaseGroup: c.ReleaseGroup,
			UploadedAt:   c.UploadedAt,
		})
	}

	if w.Duplicates == nil {
		snap.Duplicates = SummarizeDuplicates(snap.Chapters)
	} else {
		for i, d := range w.Duplicates {
			if d.Number == nil || d.Count == nil {
				return models.Snapshot{}, &InputError{Field: fmt.Sprintf("duplicates[%d]", i), Reason: "number and count are required"}
			}
			snap.Duplicates = append(snap.Duplicates, models.DuplicateCount{Number: *d.Number, Count: *d.Count})
		}
	}
	return snap, Validate(snap)
}

// SummarizeDuplicates counts distinct URLs per chapter number and returns
// the numbers listed with two or more, in ascending order.
func SummarizeDuplicates(chapters []models.ScrapedChapter) []models.DuplicateCount {
	urls := map[chapter.Number]chapter.URLSet{}
	for _, c := range chapters {
		if urls[c.Number] == nil {
			urls[c.Number] = chapter.URLSet{}
		}
		urls[c.Number].Add(c.URL)
	}
	var out []models.DuplicateCount
	for n, set := range urls {
		if len(set) >= 2 {
			out = append(out, models.DuplicateCount{Number: n, Count: len(set)})
		}
	}
	slices.SortFunc(out, func(a, b models.DuplicateCount) int {
		return cmp.Compare(a.Number, b.Number)
	})
	return out
}

// Digest fingerprints a snapshot independent of row order.
func Digest(snap models.Snapshot) string {
	rows := make([]string, 0, len(snap.Chapters)+len(snap.Duplicates))
	for _, c := range snap.Chapters {
		rows = append(rows, strings.Join([]string{"c", c.Number.String(), c.URL, c.Title, c.ReleaseGroup, c.UploadedAt}, "\x1f"))
	}
	for _, d := range snap.Duplicates {
		rows = append(rows, strings.Join([]string{"d", d.Number.String(), fmt.Sprint(d.Count)}, "\x1f"))
	}
	slices.Sort(rows)
	sum := blake2b.Sum256([]byte(strings.Join(rows, "\x1e")))
	return hex.EncodeToString(sum[:])
}
