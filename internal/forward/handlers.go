package forward

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for forward job operations.
type Handlers struct {
	manager *Manager
}

// NewHandlers creates a new forward handlers instance.
func NewHandlers(m *Manager) *Handlers {
	return &Handlers{manager: m}
}

// RegisterRoutes registers the forward job routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListJobs)
	g.POST("", h.StartJob)
	g.GET("/:id", h.GetJob)
	g.GET("/:id/logs", h.GetJobLogs)
	g.POST("/:id/stop", h.StopJob)
}

// ListJobs handles GET /api/v1/forward
func (h *Handlers) ListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.List())
}

// StartJob handles POST /api/v1/forward
func (h *Handlers) StartJob(c echo.Context) error {
	var cfg JobConfig
	if err := c.Bind(&cfg); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	job, err := h.manager.Start(cfg)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, job)
}

// GetJob handles GET /api/v1/forward/:id
func (h *Handlers) GetJob(c echo.Context) error {
	job, err := h.manager.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, job)
}

// GetJobLogs handles GET /api/v1/forward/:id/logs
func (h *Handlers) GetJobLogs(c echo.Context) error {
	job, err := h.manager.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"jobId": job.ID,
		"logs":  job.Logs,
	})
}

// StopJob handles POST /api/v1/forward/:id/stop
func (h *Handlers) StopJob(c echo.Context) error {
	job, err := h.manager.Stop(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrJobNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		case errors.Is(err, ErrNotRunning):
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, job)
}
