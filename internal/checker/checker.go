// Package checker turns a provider's current chapter list into a snapshot
// and hands it to the reconcile service. It runs on a schedule through the
// job manager and on demand from the API and the CLI.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/vrsandeep/mango-shelf/internal/downloader/providers"
	"github.com/vrsandeep/mango-shelf/internal/models"
	"github.com/vrsandeep/mango-shelf/internal/reconcile"
	"github.com/vrsandeep/mango-shelf/internal/store"
)

var (
	// ErrEmptyScrape is returned when a provider lists no chapters at all.
	// Nothing is reconciled; the next cycle tries again.
	ErrEmptyScrape = errors.New("provider returned no chapters")
	// ErrUnsupportedSource is returned when no provider can serve a source URL.
	ErrUnsupportedSource = errors.New("unsupported source")
)

// Reconciler is the part of reconcile.Service the checker needs.
type Reconciler interface {
	Reconcile(ctx context.Context, bookmarkID int64, snap models.Snapshot) (*models.Bookmark, models.ChangeReport, error)
}

// Service holds the dependencies for the bookmark checker.
type Service struct {
	st         *store.Store
	reconciler Reconciler
	timeout    time.Duration
}

// NewService creates a checker. A zero timeout means no limit.
func NewService(st *store.Store, reconciler Reconciler, timeout time.Duration) *Service {
	return &Service{st: st, reconciler: reconciler, timeout: timeout}
}

// Summary counts the outcome of a CheckAll run.
type Summary struct {
	Total   int `json:"total"`
	Checked int `json:"checked"`
	Changed int `json:"changed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Track creates a bookmark for sourceURL, resolving its provider and series.
// An empty title falls back to the source URL.
func (s *Service) Track(ctx context.Context, sourceURL, title string) (*models.Bookmark, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	provider, website, err := providers.ForSourceURL(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	series, err := provider.SeriesIdentifier(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	if strings.TrimSpace(title) == "" {
		title = sourceURL
	}
	b, err := s.st.CreateBookmark(ctx, &models.Bookmark{
		SourceURL:        sourceURL,
		Website:          website,
		Title:            strings.TrimSpace(title),
		ProviderID:       provider.GetInfo().ID,
		SeriesIdentifier: series,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Tracking '%s' from %s (provider %s, series %s)", b.Title, website, b.ProviderID, series)
	return b, nil
}

// CheckBookmark fetches the bookmark's chapter list from its provider and
// reconciles it. Errors from the reconcile service are returned unchanged,
// including a committed result that failed to emit.
func (s *Service) CheckBookmark(ctx context.Context, bookmarkID int64) (*models.Bookmark, models.ChangeReport, error) {
	b, err := s.st.GetBookmark(ctx, bookmarkID)
	if err != nil {
		return nil, models.ChangeReport{}, err
	}
	provider, err := providers.ForBookmark(b)
	if err != nil {
		return nil, models.ChangeReport{}, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}

	series := b.SeriesIdentifier
	if series == "" {
		if series, err = provider.SeriesIdentifier(b.SourceURL); err != nil {
			return nil, models.ChangeReport{}, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
		}
	}

	scraped, err := s.fetch(ctx, provider, series)
	if err != nil {
		return nil, models.ChangeReport{}, fmt.Errorf("fetch chapters for bookmark %d: %w", bookmarkID, err)
	}
	if len(scraped) == 0 {
		log.Printf("Check: provider %s listed no chapters for '%s', skipping", provider.GetInfo().ID, b.Title)
		return nil, models.ChangeReport{}, ErrEmptyScrape
	}

	snap := models.Snapshot{Chapters: scraped, Duplicates: reconcile.SummarizeDuplicates(scraped)}
	return s.reconciler.Reconcile(ctx, bookmarkID, snap)
}

// CheckAll checks every bookmark in turn. Bookmarks that are busy or
// whose source listed nothing are skipped; other failures are logged and
// counted. onProgress, if set, is called after each bookmark.
func (s *Service) CheckAll(ctx context.Context, onProgress func(done, total int, b *models.Bookmark)) (Summary, error) {
	bookmarks, err := s.st.ListBookmarks(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Total: len(bookmarks)}
	for i, b := range bookmarks {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		_, report, err := s.CheckBookmark(ctx, b.ID)
		switch {
		case err == nil:
			summary.Checked++
			if !report.IsEmpty() {
				summary.Changed++
			}
		case errors.Is(err, reconcile.ErrConflict):
			log.Printf("Check: '%s' is already being reconciled, skipping", b.Title)
			summary.Skipped++
		case errors.Is(err, ErrEmptyScrape):
			summary.Skipped++
		default:
			log.Printf("Check Error: '%s': %v", b.Title, err)
			summary.Failed++
		}
		if onProgress != nil {
			onProgress(i+1, len(bookmarks), b)
		}
	}
	log.Printf("Checked %d bookmarks: %d changed, %d skipped, %d failed",
		summary.Total, summary.Changed, summary.Skipped, summary.Failed)
	return summary, nil
}

// fetch runs GetChapters with the configured timeout. Providers are not
// context aware, so a timed out call is abandoned rather than cancelled.
func (s *Service) fetch(ctx context.Context, p models.Provider, series string) ([]models.ScrapedChapter, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	type result struct {
		chapters []models.ScrapedChapter
		err      error
	}
	done := make(chan result, 1)
	go func() {
		chapters, err := p.GetChapters(series)
		done <- result{chapters, err}
	}()

	select {
	case r := <-done:
		return r.chapters, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
