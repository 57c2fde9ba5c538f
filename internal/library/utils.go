// This file contains utility functions shared across the library package.

package library

import (
	"log"
	"path/filepath"
	"strings"

	"github.com/vrsandeep/mango-shelf/internal/jobs"
	"github.com/vrsandeep/mango-shelf/internal/models"
)

// IsSupportedArchive reports whether name is a chapter archive the
// downloader writes or a user may drop into the library.
func IsSupportedArchive(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".cbz", ".zip":
		return true
	}
	return false
}

// sendProgress sends a progress update via WebSocket to connected clients.
func sendProgress(ctx jobs.JobContext, jobID, status, message string, progress float64) {
	if err := ctx.WsHub().BroadcastJSON(models.NewProgressUpdate(jobID, status, message, progress)); err != nil {
		log.Printf("Failed to broadcast progress for job %s: %v", jobID, err)
	}
}
