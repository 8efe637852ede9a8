package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/qaprobe/config"
	"github.com/use-agent/qaprobe/models"
	"github.com/use-agent/qaprobe/report"
	"github.com/use-agent/qaprobe/runner"
	"github.com/use-agent/qaprobe/store"
)

// Executor performs a run. *runner.Runner implements it.
type Executor interface {
	Execute(ctx context.Context, job runner.Job) (*models.Report, error)
}

// Runs serves the run endpoints and owns the background run goroutines.
type Runs struct {
	ctx     context.Context
	store   *store.Store
	exec    Executor
	target  string
	reports config.ReportConfig
	slots   chan struct{}
	wg      sync.WaitGroup
}

// NewRuns creates the run handlers. Runs started through it are cancelled
// when ctx is done. At most maxRuns run concurrently.
func NewRuns(ctx context.Context, st *store.Store, exec Executor, defaultTarget string, maxRuns int, reports config.ReportConfig) *Runs {
	if maxRuns <= 0 {
		maxRuns = 1
	}
	return &Runs{
		ctx:     ctx,
		store:   st,
		exec:    exec,
		target:  defaultTarget,
		reports: reports,
		slots:   make(chan struct{}, maxRuns),
	}
}

// Wait blocks until every started run has finished.
func (h *Runs) Wait() { h.wg.Wait() }

// Create returns a handler for POST /api/v1/runs. It answers 202 with the run
// id and executes the run in the background, or 503 when all slots are busy.
func (h *Runs) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RunRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Error: &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()},
				})
				return
			}
		}
		target := req.TargetWebsite
		if target == "" {
			target = h.target
		}

		select {
		case h.slots <- struct{}{}:
		default:
			c.JSON(http.StatusServiceUnavailable, models.RunResponse{
				Status: models.RunFailed,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeBusy,
					Message: "all run slots are busy, retry later",
				},
			})
			return
		}

		run := h.store.Create(target, req.WebhookURL)
		h.wg.Add(1)
		go h.execute(run)

		c.JSON(http.StatusAccepted, models.RunResponse{ID: run.ID, Status: run.Status})
	}
}

func (h *Runs) execute(run models.Run) {
	defer h.wg.Done()
	defer func() { <-h.slots }()

	h.store.Update(run.ID, func(r *models.Run) { r.Status = models.RunRunning })

	rep, err := h.exec.Execute(h.ctx, runner.Job{
		ID:           run.ID,
		Target:       run.Target,
		WebhookURL:   run.WebhookURL,
		AsyncWebhook: true,
	})

	var files []string
	if err == nil {
		files, err = report.Save(rep, h.reports.Dir, h.reports.Formats)
		if err != nil {
			slog.Error("failed to save report", "run_id", run.ID, "error", err)
			err = nil
		}
	}

	h.store.Update(run.ID, func(r *models.Run) {
		r.FinishedAt = time.Now()
		r.Report = rep
		r.Files = files
		r.Err = err
		if err != nil {
			r.Status = models.RunFailed
		} else {
			r.Status = models.RunCompleted
		}
	})
	if err != nil {
		slog.Error("run failed", "run_id", run.ID, "error", err)
	}
}

// Get returns a handler for GET /api/v1/runs/:id.
func (h *Runs) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		run, ok := h.store.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: &models.ErrorDetail{Code: models.ErrCodeNotFound, Message: "run not found or expired"},
			})
			return
		}
		c.JSON(http.StatusOK, statusResponse(run))
	}
}

func statusResponse(run models.Run) models.RunStatusResponse {
	resp := models.RunStatusResponse{
		ID:        run.ID,
		Status:    run.Status,
		Target:    run.Target,
		StartedAt: run.StartedAt,
		Report:    run.Report,
		Files:     run.Files,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		resp.FinishedAt = &finished
	}

	switch run.Status {
	case models.RunCompleted:
		code := report.ExitCode(run.Report.Summary)
		resp.ExitCode = &code
	case models.RunFailed:
		code := report.ExitFailure
		resp.ExitCode = &code
		resp.Error = errorDetail(run.Err)
	}
	return resp
}

func errorDetail(err error) *models.ErrorDetail {
	if err == nil {
		return nil
	}
	var pe *models.ProbeError
	if errors.As(err, &pe) {
		return pe.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}
