package chapter

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// NumberSet is a set of chapter numbers.
type NumberSet map[Number]struct{}

// NewNumberSet builds a set from the given numbers.
func NewNumberSet(numbers ...Number) NumberSet {
	s := make(NumberSet, len(numbers))
	for _, n := range numbers {
		s[n] = struct{}{}
	}
	return s
}

func (s NumberSet) Has(n Number) bool {
	_, ok := s[n]
	return ok
}

// Add inserts n and reports whether it was absent.
func (s NumberSet) Add(n Number) bool {
	if _, ok := s[n]; ok {
		return false
	}
	s[n] = struct{}{}
	return true
}

func (s NumberSet) Remove(n Number) { delete(s, n) }

// Slice returns the numbers in ascending order.
func (s NumberSet) Slice() []Number {
	return slices.Sorted(maps.Keys(s))
}

// Clone returns an independent copy. A nil set clones to an empty set.
func (s NumberSet) Clone() NumberSet {
	out := make(NumberSet, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

func (s NumberSet) MarshalJSON() ([]byte, error) {
	out := s.Slice()
	if out == nil {
		out = []Number{}
	}
	return json.Marshal(out)
}

func (s *NumberSet) UnmarshalJSON(data []byte) error {
	var numbers []Number
	if err := json.Unmarshal(data, &numbers); err != nil {
		return err
	}
	*s = NewNumberSet(numbers...)
	return nil
}

// URLSet is a set of version URLs.
type URLSet map[string]struct{}

// NewURLSet builds a set from the given URLs, ignoring empty strings.
func NewURLSet(urls ...string) URLSet {
	s := make(URLSet, len(urls))
	for _, u := range urls {
		if u != "" {
			s[u] = struct{}{}
		}
	}
	return s
}

func (s URLSet) Has(url string) bool {
	_, ok := s[url]
	return ok
}

// Add inserts url and reports whether it was absent.
func (s URLSet) Add(url string) bool {
	if _, ok := s[url]; ok {
		return false
	}
	s[url] = struct{}{}
	return true
}

func (s URLSet) Remove(url string) { delete(s, url) }

// Slice returns the URLs in lexical order.
func (s URLSet) Slice() []string {
	return slices.Sorted(maps.Keys(s))
}

func (s URLSet) Clone() URLSet {
	out := make(URLSet, len(s))
	for u := range s {
		out[u] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same URLs.
func (s URLSet) Equal(other URLSet) bool {
	if len(s) != len(other) {
		return false
	}
	for u := range s {
		if !other.Has(u) {
			return false
		}
	}
	return true
}

func (s URLSet) MarshalJSON() ([]byte, error) {
	out := s.Slice()
	if out == nil {
		out = []string{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts an array of URLs or, for records written before
// versions were tracked as sets, a single URL string.
func (s *URLSet) UnmarshalJSON(data []byte) error {
	var urls []string
	if err := json.Unmarshal(data, &urls); err == nil {
		*s = NewURLSet(urls...)
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("version urls must be a string or an array of strings")
	}
	*s = NewURLSet(single)
	return nil
}
