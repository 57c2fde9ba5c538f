package weebcentral

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/models"
)

// WeebCentralProvider implements the Provider interface for WeebCentral.
type WeebCentralProvider struct {
	client  *http.Client
	baseURL string
}

func New() *WeebCentralProvider {
	return NewWithBaseURL("https://weebcentral.com")
}

// NewWithBaseURL points the provider at another host, e.g. a test server.
func NewWithBaseURL(baseURL string) *WeebCentralProvider {
	return &WeebCentralProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

var (
	chapterNumberRegex = regexp.MustCompile(`(?i)(?:ch\.?|chapter)\s*(\d+(?:\.\d+)?)`)
	anyNumberRegex     = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
)

func (p *WeebCentralProvider) GetInfo() models.ProviderInfo {
	return models.ProviderInfo{
		ID:      "weebcentral",
		Name:    "WeebCentral",
		Website: "weebcentral.com",
	}
}

// Search runs the site's quick search, the same htmx fragment its search
// box loads.
func (p *WeebCentralProvider) Search(query string) ([]models.SearchResult, error) {
	form := url.Values{"text": {query}}
	doc, err := p.fragment(http.MethodPost, "/search/simple?location=main", htmxHeaders{
		target:      "quick-search-result",
		trigger:     "quick-search-input",
		triggerName: "text",
		currentPath: "/",
	}, form)
	if err != nil {
		return nil, err
	}

	var results []models.SearchResult
	doc.Find("#quick-search-result > div > a").Each(func(i int, s *goquery.Selection) {
		link, _ := s.Attr("href")
		id, err := pathID(link, "series")
		if err != nil {
			return
		}
		results = append(results, models.SearchResult{
			Title:      strings.TrimSpace(s.Find(".flex-1").Text()),
			CoverURL:   coverImage(s),
			Identifier: id,
			SourceURL:  fmt.Sprintf("%s/series/%s", p.baseURL, id),
		})
	})
	if len(results) == 0 {
		return nil, errors.New("no results found")
	}
	return results, nil
}

func coverImage(s *goquery.Selection) string {
	if src, ok := s.Find("source").Attr("srcset"); ok {
		return src
	}
	src, _ := s.Find("img").Attr("src")
	return src
}

// SeriesIdentifier extracts the id from https://weebcentral.com/series/<id>[/slug].
func (p *WeebCentralProvider) SeriesIdentifier(sourceURL string) (string, error) {
	return pathID(sourceURL, "series")
}

type htmxHeaders struct {
	target      string
	trigger     string
	triggerName string
	currentPath string
}

// fragment requests an htmx partial and parses it. The site serves these
// only to requests that look like they came from its own pages.
func (p *WeebCentralProvider) fragment(method, path string, h htmxHeaders, form url.Values) (*goquery.Document, error) {
	var body *bytes.Buffer
	if form != nil {
		body = bytes.NewBufferString(form.Encode())
	} else {
		body = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, p.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("HX-Request", "true")
	for name, value := range map[string]string{
		"HX-Target":       h.target,
		"HX-Trigger":      h.trigger,
		"HX-Trigger-Name": h.triggerName,
	} {
		if value != "" {
			req.Header.Set(name, value)
		}
	}
	if h.currentPath != "" {
		req.Header.Set("HX-Current-URL", p.baseURL+h.currentPath)
		if method == http.MethodGet {
			req.Header.Set("Referer", p.baseURL+h.currentPath)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weebcentral %s: unexpected status %s", req.URL.Path, resp.Status)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func (p *WeebCentralProvider) GetChapters(seriesIdentifier string) ([]models.ScrapedChapter, error) {
	seriesPath := "/series/" + seriesIdentifier
	doc, err := p.fragment(http.MethodGet, seriesPath+"/full-chapter-list", htmxHeaders{
		target:      "chapter-list",
		currentPath: seriesPath,
	}, nil)
	if err != nil {
		return nil, err
	}

	var chapters []models.ScrapedChapter
	doc.Find("div.flex.items-center").Each(func(i int, s *goquery.Selection) {
		if sc, ok := p.chapterRow(s); ok {
			chapters = append(chapters, sc)
		}
	})
	if len(chapters) == 0 {
		return nil, errors.New("no chapters found")
	}
	// The list is newest first; reversing keeps uploads of the same number
	// in release order through the stable sort.
	slices.Reverse(chapters)
	slices.SortStableFunc(chapters, func(a, b models.ScrapedChapter) int {
		return cmp.Compare(a.Number, b.Number)
	})
	return chapters, nil
}

func (p *WeebCentralProvider) chapterRow(s *goquery.Selection) (models.ScrapedChapter, bool) {
	a := s.Find("a")
	href, ok := a.Attr("href")
	if !ok {
		return models.ScrapedChapter{}, false
	}
	title := strings.TrimSpace(a.Find("span.grow > span").First().Text())
	number, ok := parseChapterNumber(title)
	if !ok {
		return models.ScrapedChapter{}, false
	}
	link, err := p.absolute(href)
	if err != nil {
		return models.ScrapedChapter{}, false
	}
	sc := models.ScrapedChapter{Number: number, Title: title, URL: link}
	if datetime, ok := s.Find("time").Attr("datetime"); ok {
		if parsed, err := time.Parse(time.RFC3339, datetime); err == nil {
			sc.UploadedAt = parsed.UTC().Format(time.RFC3339)
		}
	}
	return sc, true
}

func (p *WeebCentralProvider) GetPageURLs(chapterURL string) ([]string, error) {
	chapterID, err := pathID(chapterURL, "chapters")
	if err != nil {
		return nil, err
	}
	chapterPath := "/chapters/" + chapterID
	doc, err := p.fragment(http.MethodGet, chapterPath+"/images?is_prev=False&reading_style=long_strip", htmxHeaders{
		currentPath: chapterPath,
	}, nil)
	if err != nil {
		return nil, err
	}
	pages := imageSources(doc.Find("section.flex-1 img"))
	if len(pages) == 0 {
		pages = imageSources(doc.Find("img"))
	}
	if len(pages) == 0 {
		return nil, errors.New("no pages found")
	}
	return pages, nil
}

// imageSources returns the distinct non-empty src attributes in order.
func imageSources(sel *goquery.Selection) []string {
	var srcs []string
	sel.Each(func(i int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" && !slices.Contains(srcs, src) {
			srcs = append(srcs, src)
		}
	})
	return srcs
}

// parseChapterNumber prefers the number after "Ch." so "Vol. 2 Ch. 7"
// gives 7, and falls back to the first number in the title.
func parseChapterNumber(title string) (chapter.Number, bool) {
	match := chapterNumberRegex.FindStringSubmatch(title)
	if match == nil {
		match = anyNumberRegex.FindStringSubmatch(title)
	}
	if match == nil {
		return 0, false
	}
	n, err := chapter.ParseNumber(match[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func (p *WeebCentralProvider) absolute(link string) (string, error) {
	base, err := url.Parse(p.baseURL + "/")
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func pathID(rawURL, kind string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == kind && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("no %s id in weebcentral url %s", kind, rawURL)
}
