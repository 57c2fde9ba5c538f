package downloader

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/core"
	"github.com/vrsandeep/mango-shelf/internal/downloader/providers"
	"github.com/vrsandeep/mango-shelf/internal/models"
	"github.com/vrsandeep/mango-shelf/internal/store"
)

var ErrDownloadPaused = errors.New("download paused by user")

var (
	invalidFilenameChars = regexp.MustCompile(`[\x00-\x1f\x7f\\/:*?"<>|]`)
	repeatedDashes       = regexp.MustCompile(`-{2,}`)
)

// Downloader turns queued chapter versions into CBZ archives under the
// library path and records each finished archive in the download ledger.
type Downloader struct {
	app          *core.App
	st           *store.Store
	client       *http.Client
	numWorkers   int
	pageDelay    time.Duration
	pollInterval time.Duration
	jobQueue     chan *models.DownloadQueueItem

	mu       sync.Mutex
	isPaused bool
}

// New creates a downloader using the configured number of workers.
func New(app *core.App) *Downloader {
	workers := app.Config().Downloader.Workers
	if workers < 1 {
		workers = 1
	}
	return &Downloader{
		app:          app,
		st:           app.Store(),
		client:       &http.Client{Timeout: 60 * time.Second},
		numWorkers:   workers,
		pageDelay:    250 * time.Millisecond,
		pollInterval: 5 * time.Second,
	}
}

// StartWorkerPool initializes and starts the download workers. They stop
// when ctx is cancelled.
func (d *Downloader) StartWorkerPool(ctx context.Context) {
	d.jobQueue = make(chan *models.DownloadQueueItem, d.numWorkers)

	// On startup, re-queue any items that were "in_progress".
	if err := d.st.ResetInProgressQueueItems(); err != nil {
		log.Printf("Error re-queuing interrupted downloads: %v", err)
	}

	for i := 1; i <= d.numWorkers; i++ {
		go d.worker(ctx, i)
	}
	go d.poll(ctx)
}

// poll periodically moves queued items to the workers. Items are marked
// in_progress before they are handed over so the next poll skips them.
func (d *Downloader) poll(ctx context.Context) {
	defer close(d.jobQueue)
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		if !d.IsPaused() && len(d.jobQueue) == 0 {
			items, err := d.st.GetQueuedDownloadItems(d.numWorkers)
			if err != nil {
				log.Printf("Error fetching queued items: %v", err)
			}
			for _, item := range items {
				if err := d.st.ClaimQueueItem(item.ID); err != nil {
					if !errors.Is(err, store.ErrInvalidQueueTransition) && !errors.Is(err, store.ErrQueueItemNotFound) {
						log.Printf("Error claiming queue item %d: %v", item.ID, err)
					}
					continue
				}
				item.Status = "in_progress"
				d.jobQueue <- item
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *Downloader) worker(ctx context.Context, id int) {
	log.Printf("Starting download worker %d", id)
	for job := range d.jobQueue {
		if _, err := d.Process(ctx, job); err != nil {
			if errors.Is(err, ErrDownloadPaused) {
				log.Printf("Download paused for item %d", job.ID)
				// Don't change the status as it's already set to "paused" by the API
				continue
			}
			errMsg := fmt.Sprintf("Download failed: %v", err)
			log.Println(errMsg)
			d.st.UpdateQueueItemStatus(job.ID, "failed", errMsg)
			d.sendDownloaderProgressUpdate(job, errMsg, "failed", float64(job.Progress))
			continue
		}
		d.st.UpdateQueueItemStatus(job.ID, "completed", "Download finished successfully.")
	}
	log.Printf("Download worker %d stopped", id)
}

// Process downloads one queued version, writes its archive and records it
// in the ledger. It returns the archive path.
func (d *Downloader) Process(ctx context.Context, job *models.DownloadQueueItem) (string, error) {
	bookmark, err := d.st.GetBookmark(ctx, job.BookmarkID)
	if err != nil {
		return "", err
	}
	provider, err := providers.ForBookmark(bookmark)
	if err != nil {
		return "", err
	}

	pageURLs, err := provider.GetPageURLs(job.URL)
	if err != nil {
		return "", fmt.Errorf("could not get page URLs: %w", err)
	}
	if len(pageURLs) == 0 {
		return "", fmt.Errorf("no pages found for chapter")
	}

	// Create a buffer to hold the zip archive in memory
	buf := new(bytes.Buffer)
	zipWriter := zip.NewWriter(buf)

	total := len(pageURLs)
	for i, pageURL := range pageURLs {
		// Check if the item has been paused before starting each page download
		currentItem, err := d.st.GetDownloadQueueItem(job.ID)
		if err == nil && currentItem.Status == "paused" {
			log.Printf("Download paused for item %d at page %d/%d", job.ID, i+1, total)
			return "", ErrDownloadPaused
		}

		// Respectful delay between page downloads
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(d.pageDelay):
		}

		pageData, err := d.fetchPage(ctx, pageURL)
		if err != nil {
			return "", fmt.Errorf("failed to download page %d: %w", i+1, err)
		}

		fileName := fmt.Sprintf("page_%03d%s", i+1, pageExt(pageURL))
		f, err := zipWriter.Create(fileName)
		if err != nil {
			return "", fmt.Errorf("failed to create file in zip: %w", err)
		}
		if _, err := f.Write(pageData); err != nil {
			return "", fmt.Errorf("failed to write file to zip: %w", err)
		}

		progress := int((float64(i+1) / float64(total)) * 100)
		job.Progress = progress
		d.st.UpdateQueueItemProgress(job.ID, progress)
		d.sendDownloaderProgressUpdate(job, fmt.Sprintf("Downloaded page %d of %d", i+1, total), "in_progress", float64(progress))
	}

	if err := zipWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize zip archive: %w", err)
	}

	seriesDir := filepath.Join(d.app.Config().Library.Path, SanitizeFilename(bookmark.Title))
	if err := os.MkdirAll(seriesDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create series directory: %w", err)
	}
	cbzPath := filepath.Join(seriesDir, ArchiveName(job))
	if err := os.WriteFile(cbzPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to save CBZ file: %w", err)
	}

	if _, err := d.st.RecordDownload(ctx, bookmark.ID, job.Number, job.URL, cbzPath); err != nil {
		os.Remove(cbzPath)
		return "", fmt.Errorf("failed to record download: %w", err)
	}

	d.sendDownloaderProgressUpdate(job, "Download finished successfully.", "completed", 100)
	log.Printf("Downloaded chapter %s of '%s' to %s", job.Number, bookmark.Title, cbzPath)
	return cbzPath, nil
}

func (d *Downloader) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// DeleteDownload removes the archive recorded for a version, if any, and
// records the deletion in the ledger.
func (d *Downloader) DeleteDownload(ctx context.Context, bookmarkID int64, number chapter.Number, url string) (*models.Bookmark, error) {
	archive, err := d.st.DownloadPath(ctx, bookmarkID, chapter.Key{Number: number, URL: url})
	switch {
	case err == nil && archive != "":
		if err := os.Remove(archive); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove archive %s: %w", archive, err)
		}
	case err != nil && !errors.Is(err, store.ErrVersionNotFound):
		return nil, err
	}
	return d.st.RecordDeletion(ctx, bookmarkID, number, url)
}

// ArchiveName is the file name of a version's archive. Versions of the
// same chapter get different names through a short tag derived from the URL.
func ArchiveName(job *models.DownloadQueueItem) string {
	title := strings.TrimSpace(job.ChapterTitle)
	if title == "" {
		title = "Ch. " + job.Number.String()
	}
	tag := uuid.NewSHA1(uuid.NameSpaceURL, []byte(job.URL)).String()[:8]
	return fmt.Sprintf("%s [%s].cbz", SanitizeFilename(title), tag)
}

// SanitizeFilename replaces characters that are invalid in file names on
// common filesystems.
func SanitizeFilename(filename string) string {
	safe := invalidFilenameChars.ReplaceAllString(filename, "-")
	safe = repeatedDashes.ReplaceAllString(safe, "-")
	safe = strings.TrimLeft(strings.TrimSpace(safe), ".-")
	safe = strings.TrimRight(safe, ". ")
	if safe == "" {
		safe = "untitled"
	}
	return safe
}

func pageExt(pageURL string) string {
	p := pageURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := path.Ext(p)
	if ext == "" || len(ext) > 5 {
		return ".jpg"
	}
	return ext
}

// Control functions for the download queue
func (d *Downloader) PauseDownloads() {
	d.mu.Lock()
	d.isPaused = true
	d.mu.Unlock()
	log.Println("Download queue paused.")
}

func (d *Downloader) ResumeDownloads() {
	d.mu.Lock()
	d.isPaused = false
	d.mu.Unlock()
	log.Println("Download queue resumed.")
}

func (d *Downloader) IsPaused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isPaused
}

// PauseQueueItem pauses a specific item and broadcasts the status change
func (d *Downloader) PauseQueueItem(itemID int64) error {
	return d.transition(itemID, d.st.PauseQueueItem, "Download paused by user", "paused")
}

// ResumeQueueItem resumes a specific item and broadcasts the status change
func (d *Downloader) ResumeQueueItem(itemID int64) error {
	return d.transition(itemID, d.st.ResumeQueueItem, "Download resumed by user", "queued")
}

// RetryQueueItem re-queues a failed item and broadcasts the status change
func (d *Downloader) RetryQueueItem(itemID int64) error {
	return d.transition(itemID, d.st.RetryQueueItem, "Download re-queued by user", "queued")
}

func (d *Downloader) transition(itemID int64, apply func(int64) error, message, status string) error {
	if err := apply(itemID); err != nil {
		return err
	}
	item, err := d.st.GetDownloadQueueItem(itemID)
	if err != nil {
		return err
	}
	d.sendDownloaderProgressUpdate(item, message, status, float64(item.Progress))
	return nil
}

func (d *Downloader) sendDownloaderProgressUpdate(item *models.DownloadQueueItem, message, status string, progress float64) {
	update := models.NewProgressUpdate("downloader", status, message, progress)
	update.ItemID = item.ID
	update.BookmarkID = item.BookmarkID
	if err := d.app.WsHub().BroadcastJSON(update); err != nil {
		log.Printf("Failed to broadcast download progress: %v", err)
	}
}
