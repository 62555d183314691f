package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tgmanager/tgmanager/internal/downloads"
	"github.com/tgmanager/tgmanager/internal/forward"
	"github.com/tgmanager/tgmanager/internal/supervisor"
)

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Request body size limit (2MB)
	s.echo.Use(middleware.BodyLimit("2M"))

	// CORS
	s.echo.Use(middleware.CORS())

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	// Gzip compression
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)
	api.GET("/ws", s.hub.HandleWebSocket)

	supervisorHandlers := supervisor.NewHandlers(s.supervisorService)
	supervisorHandlers.RegisterRoutes(api.Group("/backends"))

	forwardHandlers := forward.NewHandlers(s.forwardManager)
	forwardHandlers.RegisterRoutes(api.Group("/forward"))

	downloadHandlers := downloads.NewHandlers(s.downloadsService)
	downloadHandlers.RegisterRoutes(api.Group("/downloads"))

	api.GET("/transfers", s.listTransfers)
	api.GET("/transfers/:id", s.getTransfer)
	api.POST("/transfers/url", s.downloadURL)

	api.GET("/activities", s.listActivities)
	api.GET("/activities/:id", s.getActivity)
	api.GET("/logs", s.getRecentLogs)
	api.GET("/logs/download", s.downloadLogFile)

	api.GET("/tasks", s.listTasks)
	api.GET("/tasks/:id", s.getTask)
	api.POST("/tasks/:id/run", s.runTask)
}
