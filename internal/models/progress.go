package models

// ProgressUpdate is broadcast over the websocket hub while a job or a
// download runs. Type is always "progress" so clients can tell it apart
// from chapter change notifications on the same stream.
type ProgressUpdate struct {
	Type       string  `json:"type"`
	JobID      string  `json:"job_id"`
	Message    string  `json:"message"`
	Progress   float64 `json:"progress"`
	ItemID     int64   `json:"item_id,omitempty"`
	BookmarkID int64   `json:"bookmark_id,omitempty"`
	Status     string  `json:"status"` // "queued", "in_progress", "completed", "failed"
	Done       bool    `json:"done"`
}

// NewProgressUpdate fills in the message type.
func NewProgressUpdate(jobID, status, message string, progress float64) ProgressUpdate {
	return ProgressUpdate{
		Type:     "progress",
		JobID:    jobID,
		Message:  message,
		Progress: progress,
		Status:   status,
		Done:     status == "completed" || status == "failed",
	}
}
