package models

// ProviderInfo contains static information about a provider.
type ProviderInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Website is the registrable domain the provider serves, e.g. "mangadex.org".
	Website string `json:"website"`
}

// SearchResult represents a single series found by a provider.
type SearchResult struct {
	Title      string `json:"title"`
	CoverURL   string `json:"cover_url"`
	Identifier string `json:"identifier"` // Unique ID for the series on the source site
	SourceURL  string `json:"source_url"`
}

// Provider defines the contract that every website connector must implement.
// GetChapters returns the source's chapter list as it is right now; one
// chapter number may appear with several URLs.
type Provider interface {
	GetInfo() ProviderInfo
	Search(query string) ([]SearchResult, error)
	SeriesIdentifier(sourceURL string) (string, error)
	GetChapters(seriesIdentifier string) ([]ScrapedChapter, error)
	GetPageURLs(chapterURL string) ([]string, error)
}
