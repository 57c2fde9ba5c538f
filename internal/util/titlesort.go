package util

import (
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// A Collator keeps per-call buffers, so access is serialized.
var (
	titleMu       sync.Mutex
	titleCollator = collate.New(language.Und, collate.IgnoreCase, collate.Numeric)
)

// CompareTitles orders series titles the way a reader expects: digit runs
// compare by value ("Vol 2" before "Vol 10"), case is ignored and accented
// letters sort next to their base letter. Titles that collate equal fall
// back to byte order so the result is total.
func CompareTitles(a, b string) int {
	titleMu.Lock()
	c := titleCollator.CompareString(a, b)
	titleMu.Unlock()
	if c != 0 {
		return c
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// TitleLess reports whether title a sorts before title b.
func TitleLess(a, b string) bool {
	return CompareTitles(a, b) < 0
}
