package providers

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/vrsandeep/mango-shelf/internal/models"
	"golang.org/x/net/publicsuffix"
)

// ErrNoProvider is returned when no registered provider serves a website.
var ErrNoProvider = errors.New("no provider for website")

var (
	mu       sync.RWMutex
	registry = make(map[string]models.Provider)
)

// Register adds a new provider to the registry. It's called at startup.
func Register(p models.Provider) {
	mu.Lock()
	defer mu.Unlock()
	info := p.GetInfo()
	if _, exists := registry[info.ID]; exists {
		// Panic is appropriate here as it's a developer error during setup.
		panic(fmt.Sprintf("provider with ID '%s' is already registered", info.ID))
	}
	registry[info.ID] = p
}

// UnregisterAll empties the registry. Tests use it to start clean.
func UnregisterAll() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]models.Provider)
}

// Get returns a provider by its ID.
func Get(id string) (models.Provider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := registry[id]
	return p, ok
}

// GetAll returns a list of information for all registered providers,
// sorted by ID.
func GetAll() []models.ProviderInfo {
	mu.RLock()
	defer mu.RUnlock()
	var providers []models.ProviderInfo
	for _, p := range registry {
		providers = append(providers, p.GetInfo())
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })
	return providers
}

// WebsiteOf returns the website identifier of a source URL: its registrable
// domain, so "https://www.mangadex.org/title/x" gives "mangadex.org".
func WebsiteOf(sourceURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		return "", fmt.Errorf("invalid source url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("invalid source url %q: missing host", sourceURL)
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(host))
	if err != nil {
		// Hosts like "localhost" have no registrable domain; use them as-is.
		return strings.ToLower(host), nil
	}
	return domain, nil
}

// ForSourceURL finds the provider serving the website of sourceURL.
func ForSourceURL(sourceURL string) (models.Provider, string, error) {
	website, err := WebsiteOf(sourceURL)
	if err != nil {
		return nil, "", err
	}
	p, ok := ForWebsite(website)
	if !ok {
		return nil, website, fmt.Errorf("%w %s", ErrNoProvider, website)
	}
	return p, website, nil
}

// ForWebsite returns the provider whose website matches.
func ForWebsite(website string) (models.Provider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	for _, p := range registry {
		if strings.EqualFold(p.GetInfo().Website, website) {
			return p, true
		}
	}
	return nil, false
}

// ForBookmark returns the provider a bookmark was created with, falling
// back to the one serving its website.
func ForBookmark(b *models.Bookmark) (models.Provider, error) {
	if b.ProviderID != "" {
		if p, ok := Get(b.ProviderID); ok {
			return p, nil
		}
	}
	if p, ok := ForWebsite(b.Website); ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w %s", ErrNoProvider, b.Website)
}
