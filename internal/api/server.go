// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vrsandeep/mango-shelf/internal/core"
	"github.com/vrsandeep/mango-shelf/internal/downloader"
	"github.com/vrsandeep/mango-shelf/internal/store"
	"github.com/vrsandeep/mango-shelf/internal/websocket"
)

// Server holds the dependencies for our API.
type Server struct {
	app        *core.App
	store      *store.Store
	downloader *downloader.Downloader
}

// NewServer creates a new Server instance.
func NewServer(app *core.App, dl *downloader.Downloader) *Server {
	return &Server{
		app:        app,
		store:      app.Store(),
		downloader: dl,
	}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)    // Logs requests to the console
	r.Use(middleware.Recoverer) // Recovers from panics
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleGetVersion)

		r.Get("/bookmarks", s.handleListBookmarks)
		r.Post("/bookmarks", s.handleCreateBookmark)
		r.Route("/bookmarks/{bookmarkID}", func(r chi.Router) {
			r.Use(BookmarkIDMiddleware)

			r.Get("/", s.handleGetBookmark)
			r.Delete("/", s.handleDeleteBookmark)
			r.Get("/chapters", s.handleGetVisibleChapters)
			r.Post("/check", s.handleCheckBookmark)
			r.Post("/reconcile", s.handleReconcile)

			// Download Ledger
			r.Post("/downloads", s.handleRecordDownload)
			r.Delete("/downloads", s.handleRecordDeletion)

			// Masks
			r.Post("/excluded/{number}", s.handleExcludeChapter)
			r.Delete("/excluded/{number}", s.handleRestoreChapter)
			r.Post("/versions/restore", s.handleRestoreVersion)

			r.Delete("/updates/{number}", s.handleAcknowledgeUpdate)
			r.Post("/queue", s.handleEnqueueChapter)
		})

		// Downloader Routes
		r.Get("/providers", s.handleListProviders)
		r.Get("/downloads/queue", s.handleGetDownloadQueue)
		r.Post("/downloads/action", s.handleQueueAction)
		r.Post("/downloads/queue/{itemID}/action", s.handleQueueItemAction)

		// Admin Job Triggers
		r.Route("/admin", func(r chi.Router) {
			r.Get("/jobs/status", s.handleGetAdminJobsStatus)
			r.Post("/jobs/run", s.handleRunAdminJob)
		})
	})

	// WebSocket route
	r.Get("/ws/notifications", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(s.app.WsHub(), w, r)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DB().PingContext(r.Context()); err != nil {
		RespondWithError(w, http.StatusServiceUnavailable, "Database connection failed")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
