// Helper functions for sending standardized JSON responses.

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/vrsandeep/mango-shelf/internal/checker"
	"github.com/vrsandeep/mango-shelf/internal/jobs"
	"github.com/vrsandeep/mango-shelf/internal/reconcile"
	"github.com/vrsandeep/mango-shelf/internal/store"
)

// RespondWithJSON writes a JSON response with the given status code and payload.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		// If marshaling fails, return an error response
		RespondWithError(w, http.StatusInternalServerError, "Failed to marshal response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// RespondWithError writes a standardized JSON error response.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// statusFor maps a domain error onto an HTTP status code. A
// *reconcile.PersistenceError and anything unknown are server errors.
func statusFor(err error) int {
	switch {
	case reconcile.IsInputError(err),
		errors.Is(err, store.ErrInvalidVersion),
		errors.Is(err, checker.ErrUnsupportedSource):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrBookmarkNotFound),
		errors.Is(err, store.ErrVersionNotFound),
		errors.Is(err, store.ErrQueueItemNotFound),
		errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrConflict),
		errors.Is(err, jobs.ErrJobRunning),
		errors.Is(err, store.ErrBookmarkExists),
		errors.Is(err, store.ErrInvalidQueueTransition):
		return http.StatusConflict
	case errors.Is(err, checker.ErrEmptyScrape):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithDomainError writes err with the status statusFor picks.
// Server side failures are logged; their details stay out of the body.
func RespondWithDomainError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Printf("API Error: %v", err)
		RespondWithError(w, code, "Internal server error")
		return
	}
	RespondWithError(w, code, err.Error())
}
