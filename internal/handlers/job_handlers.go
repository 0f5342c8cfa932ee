package handlers

import (
	"net/http"

	"assetflow/internal/common"
	"assetflow/internal/jobs/background"

	"github.com/labstack/echo/v4"
)

// JobRunner is the part of the scheduler exposed over HTTP.
type JobRunner interface {
	GetJobStatus() []background.JobStatus
	RunNow(name string) error
}

// JobHandlers exposes the background jobs
type JobHandlers struct {
	jobs JobRunner
}

// NewJobHandlers creates job handlers
func NewJobHandlers(jobs JobRunner) *JobHandlers {
	return &JobHandlers{jobs: jobs}
}

// ListJobs handles GET /v1/jobs
func (h *JobHandlers) ListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"jobs": h.jobs.GetJobStatus(),
	})
}

// TriggerJob runs a maintenance job outside its schedule, e.g. to drain the
// projection retry queue after an outage.
func (h *JobHandlers) TriggerJob(c echo.Context) error {
	name := c.Param("name")
	if err := h.jobs.RunNow(name); err != nil {
		return common.SendError(c, common.NewNotFound("job", name))
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "job triggered",
		"job":     name,
	})
}
