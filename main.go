package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vrsandeep/mango-shelf/internal/api"
	"github.com/vrsandeep/mango-shelf/internal/core"
	"github.com/vrsandeep/mango-shelf/internal/downloader"
	"github.com/vrsandeep/mango-shelf/internal/downloader/providers"
	"github.com/vrsandeep/mango-shelf/internal/downloader/providers/mangadex"
	"github.com/vrsandeep/mango-shelf/internal/downloader/providers/weebcentral"
	"github.com/vrsandeep/mango-shelf/internal/jobs"
	"github.com/vrsandeep/mango-shelf/internal/library"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// MANGO_CONFIG names a config file other than ./config.yml.
	app, err := core.NewFromFile(os.Getenv("MANGO_CONFIG"))
	if err != nil {
		log.Fatalf("Fatal error during application setup: %v", err)
	}
	defer app.Close()

	// Register all available downloader providers here.
	providers.Register(mangadex.New())
	providers.Register(weebcentral.New())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Start the download worker pool
	dl := downloader.New(app)
	dl.StartWorkerPool(ctx)

	// Archives removed from the library are recorded as deletions.
	watcher := library.NewWatcherService(app)
	if err := watcher.Start(); err != nil {
		log.Printf("Warning: library watcher not started: %v", err)
	} else {
		defer watcher.Stop()
	}

	// Catch removals that happened while the server was down.
	if err := app.JobManager().RunJob(library.SweepJobID, app); err != nil {
		log.Printf("Warning: initial library sweep not started: %v", err)
	}

	scheduler := jobs.StartJobs(app)
	defer scheduler.Stop()

	// Setup the API server
	server := api.NewServer(app, dl)
	addr := fmt.Sprintf(":%d", app.Config().Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}
	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		log.Printf("Starting web server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %v", err)
		}
	}()

	// Wait for an interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	stop()

	// Create a context with a timeout to allow existing connections to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Attempt a graceful shutdown.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
