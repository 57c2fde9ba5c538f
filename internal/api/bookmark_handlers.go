package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/mask"
	"github.com/vrsandeep/mango-shelf/internal/models"
	"github.com/vrsandeep/mango-shelf/internal/reconcile"
)

// BookmarkSummary is the list view of a bookmark.
type BookmarkSummary struct {
	ID                 int64      `json:"id"`
	Title              string     `json:"title"`
	SourceURL          string     `json:"source_url"`
	Website            string     `json:"website"`
	UniqueChapterCount int        `json:"unique_chapter_count"`
	TotalChapterCount  int        `json:"total_chapter_count"`
	DownloadedCount    int        `json:"downloaded_count"`
	PendingDuplicates  int        `json:"pending_duplicates"`
	PendingUpdates     int        `json:"pending_updates"`
	LastReconciledAt   *time.Time `json:"last_reconciled_at,omitempty"`
}

// ReconcileResponse is returned by the check and reconcile endpoints.
type ReconcileResponse struct {
	Bookmark *models.Bookmark    `json:"bookmark"`
	Report   models.ChangeReport `json:"report"`
	Warning  string              `json:"warning,omitempty"`
}

// VisibleChapters is the masked chapter listing of a bookmark.
type VisibleChapters struct {
	BookmarkID         int64                 `json:"bookmark_id"`
	UniqueChapterCount int                   `json:"unique_chapter_count"`
	Chapters           []models.ChapterEntry `json:"chapters"`
}

type versionPayload struct {
	Number *chapter.Number `json:"number"`
	URL    string          `json:"url"`
	Path   string          `json:"path,omitempty"`
	Title  string          `json:"title,omitempty"`
}

func summarize(b *models.Bookmark) BookmarkSummary {
	return BookmarkSummary{
		ID:                 b.ID,
		Title:              b.Title,
		SourceURL:          b.SourceURL,
		Website:            b.Website,
		UniqueChapterCount: b.UniqueChapterCount,
		TotalChapterCount:  b.TotalChapterCount,
		DownloadedCount:    len(b.DownloadedChapterNumbers),
		PendingDuplicates:  len(b.PendingNewDuplicates),
		PendingUpdates:     len(b.PendingUpdatedChapters),
		LastReconciledAt:   b.LastReconciledAt,
	}
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := s.store.ListBookmarks(r.Context())
	if err != nil {
		RespondWithDomainError(w, err)
		return
	}
	out := make([]BookmarkSummary, 0, len(bookmarks))
	for _, b := range bookmarks {
		out = append(out, summarize(b))
	}
	RespondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateBookmark(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SourceURL string `json:"source_url"`
		Title     string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(payload.SourceURL) == "" {
		RespondWithError(w, http.StatusBadRequest, "source_url is required")
		return
	}
	b, err := s.app.Checker().Track(r.Context(), payload.SourceURL, payload.Title)
	if err != nil {
		RespondWithDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusCreated, b)
}

func (s *Server) handleGetBookmark(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBookmark(r.Context(), bookmarkIDFromContext(r))
	if err != nil {
		RespondWithDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteBookmark(r.Context(), bookmarkIDFromContext(r)); err != nil {
		RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetVisibleChapters lists the chapters that survive the exclusion
// and deletion masks. The ETag changes whenever the bookmark is written.
func (s *Server) handleGetVisibleChapters(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBookmark(r.Context(), bookmarkIDFromContext(r))
	if err != nil {
		RespondWithDomainError(w, err)
		return
	}
	etag := chaptersETag(b)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	RespondWithJSON(w, http.StatusOK, VisibleChapters{
		BookmarkID:         b.ID,
		UniqueChapterCount: b.UniqueChapterCount,
		Chapters:           mask.Of(b).Visible(b.Chapters),
	})
}

func chaptersETag(b *models.Bookmark) string {
	digest := b.SnapshotDigest
	if len(digest) > 16 {
		digest = digest[:16]
	}
	return fmt.Sprintf(`"%s-%d"`, digest, b.UpdatedAt.UnixNano())
}

func (s *Server) handleCheckBookmark(w http.ResponseWriter, r *http.Request) {
	b, report, err := s.app.Checker().CheckBookmark(r.Context(), bookmarkIDFromContext(r))
	s.respondReconciled(w, b, report, err)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	snap, err := reconcile.DecodeSnapshot(r.Body)
	if err != nil {
		RespondWithDomainError(w, err)
		return
	}
	b, report, err := s.app.Reconciler().Reconcile(r.Context(), bookmarkIDFromContext(r), snap)
	s.respondReconciled(w, b, report, err)
}

// respondReconciled treats a committed reconciliation whose report failed
// to emit as a success carrying a warning.
func (s *Server) respondReconciled(w http.ResponseWriter, b *models.Bookmark, report models.ChangeReport, err error) {
	if err != nil && b == nil {
		RespondWithDomainError(w, err)
		return
	}
	resp := ReconcileResponse{Bookmark: b, Report: report}
	if err != nil {
		log.Printf("API Warning: %v", err)
		resp.Warning = err.Error()
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

func decodeVersion(w http.ResponseWriter, r *http.Request) (versionPayload, bool) {
	var payload versionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return payload, false
	}
	if payload.Number == nil || strings.TrimSpace(payload.URL) == "" {
		RespondWithError(w, http.StatusBadRequest, "number and url are required")
		return payload, false
	}
	return payload, true
}

func (s *Server) handleRecordDownload(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeVersion(w, r)
	if !ok {
		return
	}
	b, err := s.store.RecordDownload(r.Context(), bookmarkIDFromContext(r), *payload.Number, payload.URL, payload.Path)
	if err != nil {
		RespondWithDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, b)
}

func (s *Server) handleRecordDeletion(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeVersion(w, r)
	if !ok {
		return
	}
	id := bookmarkIDFromContext(r)
	var (
		b   *models.Bookmark
		err error
	)
	if s.downloader != nil {
		b, err = s.downloader.DeleteDownload(r.Context(), id, *payload.Number, payload.URL)
	} else {
		b, err = s.store.RecordDeletion(r.Context(), id, *payload.Number, payload.URL)
	}
	if err != nil {
		RespondWithDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, b)
}

func (s *Server) handleExcludeChapter(w http.ResponseWriter, r *http.Request) {
	s.applyNumberAction(w, r, s.store.ExcludeChapter)
}

func (s *Server) handleRestoreChapter(w http.ResponseWriter, r *http.Request) {
	s.applyNumberAction(w, r, s.store.RestoreChapter)
}

func (s *Server) handleAcknowledgeUpdate(w http.ResponseWriter, r *http.Request) {
	s.applyNumberAction(w, r, s.store.AcknowledgeUpdate)
}

func (s *Server) applyNumberAction(w http.ResponseWriter, r *http.Request,
	action func(ctx context.Context, bookmarkID int64, number chapter.Number) (*models.Bookmark, error)) {
	number, ok := numberParam(r)
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid chapter number")
		return
	}
	b, err := action(r.Context(), bookmarkIDFromContext(r), number)
	if err != nil {
		RespondWithDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, b)
}

func (s *Server) handleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	b, err := s.store.RestoreVersion(r.Context(), bookmarkIDFromContext(r), payload.URL)
	if err != nil {
		RespondWithDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, b)
}

// handleEnqueueChapter queues one chapter version for download. The title
// defaults to the one stored for that version.
func (s *Server) handleEnqueueChapter(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeVersion(w, r)
	if !ok {
		return
	}
	b, err := s.store.GetBookmark(r.Context(), bookmarkIDFromContext(r))
	if err != nil {
		RespondWithDomainError(w, err)
		return
	}
	title := payload.Title
	if title == "" {
		for _, e := range b.Chapters {
			if e.Number == *payload.Number && e.URL == payload.URL {
				title = e.Title
				break
			}
		}
	}
	item, err := s.store.AddToQueue(b.ID, *payload.Number, payload.URL, title)
	if err != nil {
		RespondWithDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusAccepted, item)
}
