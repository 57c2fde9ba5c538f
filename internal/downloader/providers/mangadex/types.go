package mangadex

import (
	"sort"
	"time"
)

// Wire shapes of the api.mangadex.org responses, reduced to the fields the
// provider reads.

type relationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		FileName string `json:"fileName"`
		Name     string `json:"name"`
	} `json:"attributes"`
}

// related returns the first relationship of the given type.
func related(rels []relationship, kind string) (relationship, bool) {
	for _, rel := range rels {
		if rel.Type == kind {
			return rel, true
		}
	}
	return relationship{}, false
}

// localizedString maps a language code to text.
type localizedString map[string]string

// preferred returns the English text, then romanized Japanese, then the
// first remaining language in code order.
func (ls localizedString) preferred() string {
	for _, lang := range []string{"en", "ja-ro"} {
		if v := ls[lang]; v != "" {
			return v
		}
	}
	langs := make([]string, 0, len(ls))
	for lang := range ls {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if ls[lang] != "" {
			return ls[lang]
		}
	}
	return ""
}

type mangaList struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Title localizedString `json:"title"`
		} `json:"attributes"`
		Relationships []relationship `json:"relationships"`
	} `json:"data"`
}

type chapterFeed struct {
	Data  []feedChapter `json:"data"`
	Total int           `json:"total"`
}

type feedChapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Title     string    `json:"title"`
		Volume    string    `json:"volume"`
		Chapter   string    `json:"chapter"`
		PublishAt time.Time `json:"publishAt"`
	} `json:"attributes"`
	Relationships []relationship `json:"relationships"`
}

type atHomeServer struct {
	BaseURL string `json:"baseUrl"`
	Chapter struct {
		Hash string   `json:"hash"`
		Data []string `json:"data"`
	} `json:"chapter"`
}
