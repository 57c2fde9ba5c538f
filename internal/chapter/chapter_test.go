package chapter

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearEqualNumbersAreDifferentChapters(t *testing.T) {
	a := Number(10.5)
	b := Number(10.50000001)

	assert.NotEqual(t, a, b)

	set := NewNumberSet(a, b)
	assert.Len(t, set, 2)
	assert.True(t, set.Has(10.5))
	assert.False(t, set.Has(10.5000001))
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		7:           "7",
		10.5:        "10.5",
		10.50000001: "10.50000001",
		0:           "0",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatNumber(in))
	}
}

func TestParseNumber(t *testing.T) {
	n, err := ParseNumber(" 010 ")
	require.NoError(t, err)
	assert.Equal(t, Number(10), n)

	n, err = ParseNumber("10.5")
	require.NoError(t, err)
	assert.Equal(t, Number(10.5), n)

	_, err = ParseNumber("")
	assert.Error(t, err)
	_, err = ParseNumber("NaN")
	assert.Error(t, err)
	_, err = ParseNumber("extra")
	assert.Error(t, err)
}

func TestNumberValid(t *testing.T) {
	assert.True(t, Number(1).Valid())
	assert.False(t, Number(math.NaN()).Valid())
	assert.False(t, Number(math.Inf(1)).Valid())
}

func TestNumberJSON(t *testing.T) {
	var n Number
	require.NoError(t, json.Unmarshal([]byte(`"12.5"`), &n))
	assert.Equal(t, Number(12.5), n)
	require.NoError(t, json.Unmarshal([]byte(`3`), &n))
	assert.Equal(t, Number(3), n)

	counts := map[Number]int{10.5: 2, 3: 4}
	data, err := json.Marshal(counts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"3":4,"10.5":2}`, string(data))

	var back map[Number]int
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, counts, back)
}

func TestNumberSetSliceIsSorted(t *testing.T) {
	s := NewNumberSet(9, 1.5, 3)
	assert.Equal(t, []Number{1.5, 3, 9}, s.Slice())
	assert.False(t, s.Add(3))
	assert.True(t, s.Add(4))
	s.Remove(9)
	assert.Equal(t, []Number{1.5, 3, 4}, s.Slice())

	data, err := json.Marshal(NumberSet(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestURLSetAcceptsLegacySingleURL(t *testing.T) {
	var s URLSet
	require.NoError(t, json.Unmarshal([]byte(`"https://example.com/c/1"`), &s))
	assert.Equal(t, []string{"https://example.com/c/1"}, s.Slice())

	require.NoError(t, json.Unmarshal([]byte(`["b","a","a"]`), &s))
	assert.Equal(t, []string{"a", "b"}, s.Slice())

	assert.Error(t, json.Unmarshal([]byte(`42`), &s))
}

func TestURLSetEqual(t *testing.T) {
	assert.True(t, NewURLSet("a", "b").Equal(NewURLSet("b", "a")))
	assert.False(t, NewURLSet("a").Equal(NewURLSet("a", "b")))
	assert.Empty(t, NewURLSet(""))
}

func TestKeyLess(t *testing.T) {
	assert.True(t, Key{Number: 1, URL: "z"}.Less(Key{Number: 2, URL: "a"}))
	assert.True(t, Key{Number: 2, URL: "a"}.Less(Key{Number: 2, URL: "b"}))
	assert.False(t, Key{Number: 2, URL: "b"}.Less(Key{Number: 2, URL: "b"}))
}
