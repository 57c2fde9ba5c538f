package mangadex

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/models"
)

const siteBaseURL = "https://mangadex.org"

// MangaDexProvider implements the Provider interface for MangaDex.
type MangaDexProvider struct {
	client          *http.Client
	apiBaseURL      string
	coverArtBaseURL string
}

// New creates a new instance of the MangaDexProvider.
func New() *MangaDexProvider {
	return NewWithBaseURL("https://api.mangadex.org", "https://uploads.mangadex.org")
}

// NewWithBaseURL points the provider at another API host, e.g. a test server.
func NewWithBaseURL(apiBaseURL, coverArtBaseURL string) *MangaDexProvider {
	return &MangaDexProvider{
		client:          &http.Client{Timeout: 20 * time.Second},
		apiBaseURL:      apiBaseURL,
		coverArtBaseURL: coverArtBaseURL,
	}
}

// GetInfo returns static information about this provider.
func (p *MangaDexProvider) GetInfo() models.ProviderInfo {
	return models.ProviderInfo{
		ID:      "mangadex",
		Name:    "MangaDex",
		Website: "mangadex.org",
	}
}

func (p *MangaDexProvider) getJSON(endpoint string, query url.Values, out any) error {
	req, err := http.NewRequest("GET", p.apiBaseURL+endpoint, nil)
	if err != nil {
		return err
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mangadex %s: unexpected status %s", endpoint, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Search sends a request to the MangaDex API to search for manga.
func (p *MangaDexProvider) Search(query string) ([]models.SearchResult, error) {
	q := url.Values{}
	q.Add("title", query)
	q.Add("limit", "25")
	q.Add("includes[]", "cover_art")

	var list mangaList
	if err := p.getJSON("/manga", q, &list); err != nil {
		return nil, err
	}

	var results []models.SearchResult
	for _, m := range list.Data {
		coverURL := ""
		if cover, ok := related(m.Relationships, "cover_art"); ok && cover.Attributes.FileName != "" {
			coverURL = fmt.Sprintf("%s/covers/%s/%s.256.jpg", p.coverArtBaseURL, m.ID, cover.Attributes.FileName)
		}
		results = append(results, models.SearchResult{
			Title:      m.Attributes.Title.preferred(),
			CoverURL:   coverURL,
			Identifier: m.ID,
			SourceURL:  fmt.Sprintf("%s/title/%s", siteBaseURL, m.ID),
		})
	}

	return results, nil
}

// SeriesIdentifier extracts the manga id from https://mangadex.org/title/<id>[/slug].
func (p *MangaDexProvider) SeriesIdentifier(sourceURL string) (string, error) {
	return pathID(sourceURL, "title")
}

// GetChapters fetches the English chapter list for a given series from
// MangaDex. Every upload is returned, so a chapter translated by several
// groups shows up once per group.
func (p *MangaDexProvider) GetChapters(seriesIdentifier string) ([]models.ScrapedChapter, error) {
	var allChapters []models.ScrapedChapter
	offset := 0
	limit := 500

	for {
		q := url.Values{}
		q.Add("limit", fmt.Sprintf("%d", limit))
		q.Add("offset", fmt.Sprintf("%d", offset))
		q.Add("order[volume]", "asc")
		q.Add("order[chapter]", "asc")
		q.Add("translatedLanguage[]", "en")
		q.Add("includes[]", "scanlation_group")

		var feed chapterFeed
		if err := p.getJSON(fmt.Sprintf("/manga/%s/feed", seriesIdentifier), q, &feed); err != nil {
			return nil, err
		}

		for _, c := range feed.Data {
			sc, ok := toScrapedChapter(c)
			if !ok {
				log.Printf("mangadex: skipping chapter %s with number %q", c.ID, c.Attributes.Chapter)
				continue
			}
			allChapters = append(allChapters, sc)
		}

		offset += len(feed.Data)
		if len(feed.Data) < limit || offset >= feed.Total {
			break
		}
	}

	return allChapters, nil
}

func toScrapedChapter(d feedChapter) (models.ScrapedChapter, bool) {
	number, err := chapter.ParseNumber(d.Attributes.Chapter)
	if err != nil {
		// Oneshots have no chapter number.
		return models.ScrapedChapter{}, false
	}

	var title strings.Builder
	if d.Attributes.Volume != "" {
		fmt.Fprintf(&title, "Vol. %s ", d.Attributes.Volume)
	}
	fmt.Fprintf(&title, "Ch. %s", d.Attributes.Chapter)
	if d.Attributes.Title != "" {
		fmt.Fprintf(&title, " %s", d.Attributes.Title)
	}

	group := ""
	if rel, ok := related(d.Relationships, "scanlation_group"); ok {
		group = rel.Attributes.Name
	}

	uploaded := ""
	if !d.Attributes.PublishAt.IsZero() {
		uploaded = d.Attributes.PublishAt.UTC().Format(time.RFC3339)
	}

	return models.ScrapedChapter{
		Number:       number,
		Title:        title.String(),
		URL:          fmt.Sprintf("%s/chapter/%s", siteBaseURL, d.ID),
		ReleaseGroup: group,
		UploadedAt:   uploaded,
	}, true
}

// GetPageURLs retrieves the page URLs for a chapter URL from MangaDex.
func (p *MangaDexProvider) GetPageURLs(chapterURL string) ([]string, error) {
	chapterID, err := pathID(chapterURL, "chapter")
	if err != nil {
		return nil, err
	}

	var server atHomeServer
	if err := p.getJSON("/at-home/server/"+chapterID, nil, &server); err != nil {
		return nil, err
	}

	pageURLs := make([]string, 0, len(server.Chapter.Data))
	for _, pageFile := range server.Chapter.Data {
		pageURLs = append(pageURLs, fmt.Sprintf("%s/data/%s/%s", server.BaseURL, server.Chapter.Hash, pageFile))
	}

	return pageURLs, nil
}

// pathID returns the segment following kind in a mangadex.org URL.
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
	return "", fmt.Errorf("no %s id in mangadex url %s", kind, rawURL)
}
