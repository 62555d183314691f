package downloads

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for download management.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new downloads handlers instance.
func NewHandlers(s *Service) *Handlers {
	return &Handlers{service: s}
}

// RegisterRoutes registers the download routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListDownloads)
	g.GET("/file", h.GetFile)
	g.DELETE("/file", h.DeleteFile)
}

// ListDownloads handles GET /api/v1/downloads
func (h *Handlers) ListDownloads(c echo.Context) error {
	entries, err := h.service.List()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, entries)
}

// GetFile handles GET /api/v1/downloads/file?folder=...&name=...
func (h *Handlers) GetFile(c echo.Context) error {
	folder := c.QueryParam("folder")
	name := c.QueryParam("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	f, entry, err := h.service.Open(folder, name)
	if err != nil {
		return downloadError(c, err)
	}
	defer f.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+entry.Name+`"`)
	return c.Stream(http.StatusOK, "application/octet-stream", f)
}

// DeleteFile handles DELETE /api/v1/downloads/file?folder=...&name=...
func (h *Handlers) DeleteFile(c echo.Context) error {
	folder := c.QueryParam("folder")
	name := c.QueryParam("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	if err := h.service.Delete(folder, name); err != nil {
		return downloadError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func downloadError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrInvalidPath):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid path"})
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "file not found"})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
