// A mock provider for development and testing purposes. It simulates
// searching and fetching from a real site without making network calls.
// Chapter lists can be replaced per series so a test can play back a
// sequence of scrapes.
package mockadex

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/models"
)

// Website is the domain mockadex source URLs live on.
const Website = "mockadex.org"

type MockadexProvider struct {
	mu       sync.RWMutex
	chapters map[string][]models.ScrapedChapter
	pageBase string
	pages    int
}

func New() *MockadexProvider {
	return &MockadexProvider{
		chapters: make(map[string][]models.ScrapedChapter),
		pageBase: "https://placehold.co/800x1200?text=Page+",
		pages:    20,
	}
}

func (p *MockadexProvider) GetInfo() models.ProviderInfo {
	return models.ProviderInfo{
		ID:      "mockadex",
		Name:    "Mockadex",
		Website: Website,
	}
}

func (p *MockadexProvider) Search(query string) ([]models.SearchResult, error) {
	var results []models.SearchResult
	for i := 1; i <= 10; i++ {
		id := fmt.Sprintf("mock-series-%d", i)
		results = append(results, models.SearchResult{
			Title:      fmt.Sprintf("%s - Result %d", query, i),
			CoverURL:   fmt.Sprintf("https://placehold.co/400x600/2a2a2a/f0f0f0?text=Cover+%d", i),
			Identifier: id,
			SourceURL:  SeriesURL(id),
		})
	}
	return results, nil
}

// SeriesURL returns the source URL of a mock series.
func SeriesURL(seriesIdentifier string) string {
	return fmt.Sprintf("https://%s/title/%s", Website, seriesIdentifier)
}

// ChapterURL returns the URL of the n-th listed version of a mock chapter.
func ChapterURL(seriesIdentifier string, number chapter.Number, version int) string {
	u := fmt.Sprintf("https://%s/chapter/%s-%s", Website, seriesIdentifier, number)
	if version > 1 {
		u = fmt.Sprintf("%s-v%d", u, version)
	}
	return u
}

// SeriesIdentifier extracts the id from https://mockadex.org/title/<id>.
func (p *MockadexProvider) SeriesIdentifier(sourceURL string) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", err
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "title" || parts[1] == "" {
		return "", fmt.Errorf("not a mockadex series url: %s", sourceURL)
	}
	return parts[1], nil
}

// SetChapters replaces the chapter list served for a series.
func (p *MockadexProvider) SetChapters(seriesIdentifier string, chapters []models.ScrapedChapter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chapters[seriesIdentifier] = slices.Clone(chapters)
}

// SetPages makes GetPageURLs return count URLs of the form base+index.
func (p *MockadexProvider) SetPages(base string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageBase = base
	p.pages = count
}

// GetChapters returns the list set with SetChapters, or a default list of
// 25 chapters where chapter 25 is listed by two groups.
func (p *MockadexProvider) GetChapters(seriesIdentifier string) ([]models.ScrapedChapter, error) {
	p.mu.RLock()
	list, ok := p.chapters[seriesIdentifier]
	p.mu.RUnlock()
	if ok {
		return slices.Clone(list), nil
	}

	var results []models.ScrapedChapter
	for i := 1; i <= 25; i++ {
		n := chapter.Number(i)
		results = append(results, models.ScrapedChapter{
			Number:       n,
			Title:        fmt.Sprintf("Chapter %d: The Mocking", i),
			URL:          ChapterURL(seriesIdentifier, n, 1),
			ReleaseGroup: "mock-group",
		})
	}
	results = append(results, models.ScrapedChapter{
		Number:       25,
		Title:        "Chapter 25: The Mocking",
		URL:          ChapterURL(seriesIdentifier, 25, 2),
		ReleaseGroup: "other-group",
	})
	return results, nil
}

func (p *MockadexProvider) GetPageURLs(chapterURL string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var urls []string
	for i := 1; i <= p.pages; i++ {
		urls = append(urls, fmt.Sprintf("%s%d", p.pageBase, i))
	}
	return urls, nil
}
