package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vrsandeep/mango-shelf/internal/downloader/providers"
)

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providerList := providers.GetAll()
	if providerList == nil {
		RespondWithJSON(w, http.StatusOK, []any{})
		return
	}
	RespondWithJSON(w, http.StatusOK, providerList)
}

func (s *Server) handleGetDownloadQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.GetDownloadQueue()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to retrieve download queue")
		return
	}
	if items == nil {
		RespondWithJSON(w, http.StatusOK, []any{})
		return
	}
	RespondWithJSON(w, http.StatusOK, items)
}

func (s *Server) handleQueueAction(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	var err error
	switch payload.Action {
	case "pause_all":
		if s.downloader != nil {
			s.downloader.PauseDownloads()
		}
	case "resume_all":
		if s.downloader != nil {
			s.downloader.ResumeDownloads()
		}
	case "retry_failed":
		err = s.store.ResetFailedQueueItems()
	case "delete_completed":
		err = s.store.DeleteCompletedQueueItems()
	default:
		RespondWithError(w, http.StatusBadRequest, "Invalid action")
		return
	}
	if err != nil {
		RespondWithDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleQueueItemAction(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}
	var payload struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	var apply func(int64) error
	switch payload.Action {
	case "pause":
		apply = s.store.PauseQueueItem
		if s.downloader != nil {
			apply = s.downloader.PauseQueueItem
		}
	case "resume":
		apply = s.store.ResumeQueueItem
		if s.downloader != nil {
			apply = s.downloader.ResumeQueueItem
		}
	case "retry":
		apply = s.store.RetryQueueItem
		if s.downloader != nil {
			apply = s.downloader.RetryQueueItem
		}
	case "delete":
		apply = s.store.DeleteQueueItem
	default:
		RespondWithError(w, http.StatusBadRequest, "Invalid action")
		return
	}
	if err := apply(itemID); err != nil {
		RespondWithDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
