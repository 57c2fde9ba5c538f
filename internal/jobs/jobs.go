package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/vrsandeep/mango-shelf/internal/models"
)

const (
	BookmarkCheckJobID = "bookmark-check"
	QueueCleanupJobID  = "queue-cleanup"
)

// RegisterDefaults registers the jobs the server and the CLI know about.
func RegisterDefaults(jm *JobManager) {
	jm.Register(BookmarkCheckJobID, "Check Bookmarks", RunBookmarkCheck)
	jm.Register(QueueCleanupJobID, "Clear Completed Downloads", RunQueueCleanup)
}

// StartJobs starts the background job scheduler.
func StartJobs(app JobContext) *gocron.Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	startBookmarkCheckJob(s, app)

	log.Println("Starting background job scheduler...")
	s.StartAsync()
	return s
}

func startBookmarkCheckJob(s *gocron.Scheduler, app JobContext) {
	interval := app.Config().CheckInterval
	if interval <= 0 {
		log.Println("Bookmark check interval is 0, scheduled checks are disabled.")
		return
	}

	log.Printf("Scheduling job: '%s' to run every %d minutes.", BookmarkCheckJobID, interval)

	_, err := s.Every(interval).Minutes().Do(func() {
		log.Println("Scheduler is triggering job:", BookmarkCheckJobID)
		// Submit the job to the manager instead of running it directly.
		// This prevents conflicts with manually triggered jobs.
		err := app.JobManager().RunJob(BookmarkCheckJobID, app)
		if err != nil {
			log.Printf("Scheduled job '%s' could not start: %v", BookmarkCheckJobID, err)
		}
	})
	if err != nil {
		log.Printf("Error scheduling '%s' job: %v", BookmarkCheckJobID, err)
	}
}

// RunBookmarkCheck reconciles every bookmark against its source.
func RunBookmarkCheck(app JobContext) {
	sendProgress(app, BookmarkCheckJobID, "in_progress", "Checking bookmarks...", 0)

	summary, err := app.Checker().CheckAll(context.Background(), func(done, total int, b *models.Bookmark) {
		msg := fmt.Sprintf("Checked '%s' (%d/%d)", b.Title, done, total)
		sendProgress(app, BookmarkCheckJobID, "in_progress", msg, float64(done)/float64(total)*100)
	})
	if err != nil {
		msg := fmt.Sprintf("Bookmark check failed: %v", err)
		sendProgress(app, BookmarkCheckJobID, "failed", msg, 100)
		app.JobManager().MarkFailed(BookmarkCheckJobID, msg)
		return
	}

	msg := fmt.Sprintf("Checked %d bookmarks: %d changed, %d skipped, %d failed",
		summary.Total, summary.Changed, summary.Skipped, summary.Failed)
	sendProgress(app, BookmarkCheckJobID, "completed", msg, 100)
}

// RunQueueCleanup removes finished items from the download queue.
func RunQueueCleanup(app JobContext) {
	if err := app.Store().DeleteCompletedQueueItems(); err != nil {
		msg := fmt.Sprintf("Queue cleanup failed: %v", err)
		sendProgress(app, QueueCleanupJobID, "failed", msg, 100)
		app.JobManager().MarkFailed(QueueCleanupJobID, msg)
		return
	}
	sendProgress(app, QueueCleanupJobID, "completed", "Completed downloads cleared.", 100)
}

func sendProgress(app JobContext, jobID, status, message string, progress float64) {
	if err := app.WsHub().BroadcastJSON(models.NewProgressUpdate(jobID, status, message, progress)); err != nil {
		log.Printf("Failed to broadcast progress for job %s: %v", jobID, err)
	}
}
