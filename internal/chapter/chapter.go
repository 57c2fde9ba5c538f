// Package chapter defines how chapters and their versions are identified.
//
// A chapter's logical identity is its number. A version is the pair
// (number, url): two entries with the same number and different URLs are
// versions of the same chapter. Numbers are compared with exact float64
// equality, so 10.5 and 10.50000001 are different chapters.
package chapter

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number is a chapter number. Fractional values denote extra or side
// chapters (e.g. 10.5).
type Number float64

// Float returns the number as a float64.
func (n Number) Float() float64 { return float64(n) }

// String renders the number in its shortest form: "7", "10.5".
func (n Number) String() string { return FormatNumber(float64(n)) }

// Valid reports whether n can identify a chapter. NaN and infinities can't.
func (n Number) Valid() bool {
	f := float64(n)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MarshalJSON encodes the number as a JSON number.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid() {
		return nil, fmt.Errorf("chapter number %v is not a finite value", float64(n))
	}
	return []byte(n.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (n *Number) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = Number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("chapter number must be a number or numeric string: %w", err)
	}
	parsed, err := ParseNumber(s)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// MarshalText lets Number be used as a JSON object key.
func (n Number) MarshalText() ([]byte, error) {
	if !n.Valid() {
		return nil, fmt.Errorf("chapter number %v is not a finite value", float64(n))
	}
	return []byte(n.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (n *Number) UnmarshalText(text []byte) error {
	parsed, err := ParseNumber(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// FormatNumber renders a chapter number without trailing zeros.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseNumber parses a chapter number such as "12", "010" or "10.5".
func ParseNumber(s string) (Number, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty chapter number")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chapter number %q: %w", s, err)
	}
	n := Number(f)
	if !n.Valid() {
		return 0, fmt.Errorf("invalid chapter number %q", s)
	}
	return n, nil
}

// Key is the identity of one version of a chapter.
type Key struct {
	Number Number
	URL    string
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", k.Number, k.URL)
}

// Less orders keys by number, then URL.
func (k Key) Less(other Key) bool {
	if k.Number != other.Number {
		return k.Number < other.Number
	}
	return k.URL < other.URL
}
