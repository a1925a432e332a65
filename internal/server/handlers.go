package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/solarworks/sunray/internal/core/event"
	"github.com/solarworks/sunray/internal/core/job"
	"github.com/solarworks/sunray/internal/scene"
)

// Upload names inside a job directory.
const (
	SceneFileName = "scene.json"
	EPWFileName   = "weather.epw"
)

// Handlers is the HTTP surface: typed JSON endpoints via huma, multipart
// upload and binary download as raw echo routes.
type Handlers struct {
	store   *job.Store
	proc    *job.Processor
	bus     event.Bus
	jobsDir string
}

func NewHandlers(store *job.Store, proc *job.Processor, jobsDir string) *Handlers {
	return &Handlers{store: store, proc: proc, jobsDir: jobsDir}
}

// WithBus attaches the lifecycle event bus.
func (h *Handlers) WithBus(bus event.Bus) *Handlers {
	h.bus = bus
	return h
}

// Register wires all routes onto the echo instance.
func (h *Handlers) Register(e *echo.Echo) {
	cfg := huma.DefaultConfig("Sunray Solar Analysis API", "1.0.0")
	cfg.Info.Description = "Remote ray-based solar analysis job server"
	api := humaecho.New(e, cfg)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Server health and job queue summary",
		Tags:        []string{"Jobs"},
	}, h.Health)

	huma.Register(api, huma.Operation{
		OperationID: "job-status",
		Method:      http.MethodGet,
		Path:        "/status/{job_id}",
		Summary:     "Check job status",
		Tags:        []string{"Jobs"},
	}, h.Status)

	huma.Register(api, huma.Operation{
		OperationID: "job-delete",
		Method:      http.MethodDelete,
		Path:        "/job/{job_id}",
		Summary:     "Delete a job and its files",
		Tags:        []string{"Jobs"},
	}, h.Delete)

	e.POST("/submit", h.Submit)
	e.GET("/result/:job_id", h.Result)
}

// Typed endpoint shapes

type HealthBody struct {
	Status string     `json:"status" doc:"Server state"`
	Jobs   job.Counts `json:"jobs" doc:"Job counts by status"`
}

type HealthOutput struct {
	Body HealthBody
}

func (h *Handlers) Health(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	return &HealthOutput{Body: HealthBody{
		Status: "running",
		Jobs:   h.store.Counts(),
	}}, nil
}

type JobIDInput struct {
	JobID string `path:"job_id" doc:"Job ID"`
}

type StatusBody struct {
	JobID       string     `json:"job_id"`
	Status      string     `json:"status" doc:"queued, processing, complete or error"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Traceback   string     `json:"traceback,omitempty" doc:"Diagnostic detail for failed jobs"`
}

type StatusOutput struct {
	Body StatusBody
}

func (h *Handlers) Status(ctx context.Context, input *JobIDInput) (*StatusOutput, error) {
	rec, err := h.store.Get(input.JobID)
	if err != nil {
		return nil, huma.Error404NotFound("job not found")
	}

	body := StatusBody{
		JobID:       rec.ID,
		Status:      string(rec.Status),
		SubmittedAt: rec.SubmittedAt,
		StartedAt:   rec.StartedAt,
	}
	if rec.Status == job.StatusComplete {
		body.CompletedAt = rec.CompletedAt
	}
	if rec.Status == job.StatusError {
		body.CompletedAt = rec.CompletedAt
		body.Error = rec.Error
		body.Traceback = rec.ErrorDetail
	}
	return &StatusOutput{Body: body}, nil
}

type DeleteBody struct {
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

type DeleteOutput struct {
	Body DeleteBody
}

func (h *Handlers) Delete(ctx context.Context, input *JobIDInput) (*DeleteOutput, error) {
	if err := h.store.Delete(input.JobID); err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return nil, huma.Error404NotFound("job not found")
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	h.publish(ctx, event.EventJobDeleted, event.JobEvent{JobID: input.JobID, Status: "deleted"})
	return &DeleteOutput{Body: DeleteBody{Message: "Job deleted", JobID: input.JobID}}, nil
}

// Raw echo routes

// Submit accepts the multipart upload (fields usd_file and epw_file),
// registers the job and hands it to the processor pool. The request returns
// as soon as the job is queued; it never waits for processing.
func (h *Handlers) Submit(c echo.Context) error {
	usdFile, err := c.FormFile("usd_file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing usd_file field"})
	}
	epwFile, err := c.FormFile("epw_file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing epw_file field"})
	}

	rec := h.store.Create(h.jobsDir)
	if err := os.MkdirAll(rec.Dir, 0o755); err != nil {
		_ = h.store.Delete(rec.ID)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create job directory"})
	}

	scenePath := filepath.Join(rec.Dir, SceneFileName)
	epwPath := filepath.Join(rec.Dir, EPWFileName)
	if err := saveUpload(usdFile, scenePath); err != nil {
		_ = h.store.Delete(rec.ID)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to store scene upload"})
	}
	if err := saveUpload(epwFile, epwPath); err != nil {
		_ = h.store.Delete(rec.ID)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to store environment upload"})
	}

	// Point the scene's environment reference at the uploaded copy. A scene
	// that cannot be parsed here fails the same way in the pipeline and is
	// recorded as a job error there.
	if s, err := scene.Read(scenePath); err == nil {
		s.SetEPWFile(epwPath)
		if err := s.Write(scenePath); err != nil {
			log.Warn().Err(err).Str("job_id", rec.ID).Msg("failed to rewrite scene epw reference")
		}
	}

	if err := h.proc.Enqueue(job.Work{JobID: rec.ID, ScenePath: scenePath, Dir: rec.Dir}); err != nil {
		_ = h.store.Delete(rec.ID)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "job queue full, try again later"})
	}

	h.publish(c.Request().Context(), event.EventJobQueued, event.JobEvent{
		JobID:  rec.ID,
		Status: string(job.StatusQueued),
	})
	log.Info().Str("job_id", rec.ID).
		Int64("scene_bytes", usdFile.Size).
		Int64("epw_bytes", epwFile.Size).
		Msg("job submitted")

	return c.JSON(http.StatusOK, echo.Map{
		"job_id":  rec.ID,
		"status":  string(job.StatusQueued),
		"message": "Job submitted successfully",
	})
}

// Result streams the completed result document as an opaque attachment.
func (h *Handlers) Result(c echo.Context) error {
	rec, err := h.store.Get(c.Param("job_id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
	}
	if rec.Status != job.StatusComplete {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "job not ready",
			"status":  string(rec.Status),
			"message": "wait for status to be 'complete'",
		})
	}

	f, err := os.Open(rec.ResultPath)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "result file not found"})
	}
	defer f.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="solar_results_%s.json"`, rec.ID))
	return c.Stream(http.StatusOK, echo.MIMEOctetStream, f)
}

func (h *Handlers) publish(ctx context.Context, t event.EventType, payload event.JobEvent) {
	if h.bus == nil {
		return
	}
	_ = h.bus.Publish(ctx, event.Event{Type: t, Payload: payload})
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}
