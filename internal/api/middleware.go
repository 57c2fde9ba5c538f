package api

// This file contains the middleware and URL parameter helpers shared by the
// bookmark routes.

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vrsandeep/mango-shelf/internal/chapter"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey string

const bookmarkIDContextKey = contextKey("bookmarkID")

// BookmarkIDMiddleware parses the {bookmarkID} URL parameter and injects it
// into the request context. Malformed ids are rejected before any handler
// touches the database.
func BookmarkIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "bookmarkID"), 10, 64)
		if err != nil || id <= 0 {
			RespondWithError(w, http.StatusBadRequest, "Invalid bookmark ID")
			return
		}
		ctx := context.WithValue(r.Context(), bookmarkIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bookmarkIDFromContext returns the id stored by BookmarkIDMiddleware.
func bookmarkIDFromContext(r *http.Request) int64 {
	id, _ := r.Context().Value(bookmarkIDContextKey).(int64)
	return id
}

// numberParam parses the {number} URL parameter as a chapter number.
func numberParam(r *http.Request) (chapter.Number, bool) {
	n, err := chapter.ParseNumber(chi.URLParam(r, "number"))
	if err != nil {
		return 0, false
	}
	return n, true
}
