package supervisor

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for backend lifecycle operations.
type Handlers struct {
	supervisor *Supervisor
}

// NewHandlers creates a new supervisor handlers instance.
func NewHandlers(s *Supervisor) *Handlers {
	return &Handlers{supervisor: s}
}

// RegisterRoutes registers the backend routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListBackends)
	g.GET("/:kind", h.GetBackend)
	g.POST("/:kind/start", h.StartBackend)
	g.POST("/:kind/stop", h.StopBackend)
	g.GET("/:kind/logs", h.GetBackendLogs)
}

// ListBackends handles GET /api/v1/backends
func (h *Handlers) ListBackends(c echo.Context) error {
	return c.JSON(http.StatusOK, h.supervisor.StatusAll())
}

// GetBackend handles GET /api/v1/backends/:kind
func (h *Handlers) GetBackend(c echo.Context) error {
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown backend kind"})
	}

	snap, err := h.supervisor.Status(kind)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, snap)
}

// StartBackend handles POST /api/v1/backends/:kind/start
func (h *Handlers) StartBackend(c echo.Context) error {
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown backend kind"})
	}

	snap, err := h.supervisor.Start(kind)
	if err != nil {
		if errors.Is(err, ErrSpawn) {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, snap)
}

// StopBackend handles POST /api/v1/backends/:kind/stop
func (h *Handlers) StopBackend(c echo.Context) error {
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown backend kind"})
	}

	if err := h.supervisor.Stop(kind); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	snap, _ := h.supervisor.Status(kind)
	return c.JSON(http.StatusOK, snap)
}

// GetBackendLogs handles GET /api/v1/backends/:kind/logs
func (h *Handlers) GetBackendLogs(c echo.Context) error {
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown backend kind"})
	}

	lines, err := h.supervisor.Logs(kind)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"kind":  kind,
		"lines": lines,
	})
}
