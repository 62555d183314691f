package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tgmanager/tgmanager/internal/transfer"
)

// listTransfers handles GET /api/v1/transfers
func (s *Server) listTransfers(c echo.Context) error {
	return c.JSON(http.StatusOK, s.transferRouter.Tasks())
}

// getTransfer handles GET /api/v1/transfers/:id
func (s *Server) getTransfer(c echo.Context) error {
	task, err := s.transferRouter.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, transfer.ErrTaskNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "transfer not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, task)
}

// downloadURLRequest is the body for POST /api/v1/transfers/url.
type downloadURLRequest struct {
	URL string `json:"url"`
}

// downloadURL handles POST /api/v1/transfers/url: fetch a generic URL
// into the links folder, same path the bot takes for plain links.
func (s *Server) downloadURL(c echo.Context) error {
	var req downloadURLRequest
	if err := c.Bind(&req); err != nil || req.URL == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "url is required"})
	}

	task, err := s.transferRouter.DownloadURL(c.Request().Context(), req.URL, s.cfg.Downloads.LinksFolder, nil)
	if err != nil {
		if errors.Is(err, transfer.ErrValidation) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		// Task carries the failure detail; surface both.
		if task != nil {
			return c.JSON(http.StatusBadGateway, task)
		}
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, task)
}
