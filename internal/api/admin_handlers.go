package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vrsandeep/mango-shelf/internal/jobs"
)

type runJobRequest struct {
	JobName string `json:"job_name"`
}

type runJobResponse struct {
	Message string          `json:"message"`
	Job     *jobs.JobStatus `json:"job,omitempty"`
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"version": s.app.Version})
}

// handleRunAdminJob starts a registered job such as "bookmark-check".
// Unknown ids are 404 and a busy manager is 409.
func (s *Server) handleRunAdminJob(w http.ResponseWriter, r *http.Request) {
	var req runJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	id := strings.TrimSpace(req.JobName)
	if id == "" {
		RespondWithError(w, http.StatusBadRequest, "job_name is required")
		return
	}

	manager := s.app.JobManager()
	if err := manager.RunJob(id, s.app); err != nil {
		RespondWithDomainError(w, err)
		return
	}

	resp := runJobResponse{Message: "Job '" + id + "' started."}
	for _, st := range manager.GetStatus() {
		if st.ID == id {
			resp.Job = &st
			break
		}
	}
	RespondWithJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleGetAdminJobsStatus(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.JobManager().GetStatus())
}
