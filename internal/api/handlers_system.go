package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tgmanager/tgmanager/internal/config"
	"github.com/tgmanager/tgmanager/internal/logger"
	"github.com/tgmanager/tgmanager/internal/scheduler"
	"github.com/tgmanager/tgmanager/internal/telegram"
)

// healthCheck handles GET /health
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// getStatus handles GET /api/v1/status
func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":          config.Version,
		"identifyingLabel": telegram.MaskToken(s.cfg.Telegram.BotToken),
		"backends":         s.supervisorService.StatusAll(),
		"connectedClients": s.hub.ClientCount(),
		"activities":       s.progressManager.GetAllActivities(),
	})
}

// statusText renders the /status bot reply from the backend snapshots.
func (s *Server) statusText() string {
	var b strings.Builder
	for _, snap := range s.supervisorService.StatusAll() {
		fmt.Fprintf(&b, "%s: %s", snap.Kind, snap.Status)
		if snap.PID > 0 {
			fmt.Fprintf(&b, " (pid %d)", snap.PID)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// listActivities handles GET /api/v1/activities
func (s *Server) listActivities(c echo.Context) error {
	return c.JSON(http.StatusOK, s.progressManager.GetAllActivities())
}

// getActivity handles GET /api/v1/activities/:id
func (s *Server) getActivity(c echo.Context) error {
	activity := s.progressManager.GetActivity(c.Param("id"))
	if activity == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "activity not found"})
	}
	return c.JSON(http.StatusOK, activity)
}

// getRecentLogs handles GET /api/v1/logs?limit=N
func (s *Server) getRecentLogs(c echo.Context) error {
	if s.logBroadcaster == nil {
		return c.JSON(http.StatusOK, []logger.LogEntry{})
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = n
	}

	logs := s.logBroadcaster.GetRecentLogs(limit)
	if logs == nil {
		logs = []logger.LogEntry{}
	}
	return c.JSON(http.StatusOK, logs)
}

// downloadLogFile handles GET /api/v1/logs/download
func (s *Server) downloadLogFile(c echo.Context) error {
	if s.logFilePath == "" {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no log file configured"})
	}
	if _, err := os.Stat(s.logFilePath); os.IsNotExist(err) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "log file not found"})
	}
	return c.Attachment(s.logFilePath, "tgmanager.log")
}

// listTasks handles GET /api/v1/tasks
func (s *Server) listTasks(c echo.Context) error {
	if s.schedulerSvc == nil {
		return c.JSON(http.StatusOK, []interface{}{})
	}
	return c.JSON(http.StatusOK, s.schedulerSvc.ListTasks())
}

// getTask handles GET /api/v1/tasks/:id
func (s *Server) getTask(c echo.Context) error {
	if s.schedulerSvc == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "scheduler not running"})
	}

	info, err := s.schedulerSvc.GetTask(c.Param("id"))
	if err != nil {
		if errors.Is(err, scheduler.ErrTaskNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, info)
}

// runTask handles POST /api/v1/tasks/:id/run
func (s *Server) runTask(c echo.Context) error {
	if s.schedulerSvc == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "scheduler not running"})
	}

	taskID := c.Param("id")
	if err := s.schedulerSvc.RunNow(taskID); err != nil {
		if errors.Is(err, scheduler.ErrTaskNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Task started",
		"taskId":  taskID,
	})
}
