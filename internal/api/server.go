// Package api is the HTTP boundary: an echo server exposing backend
// lifecycle, transfer, forward-job and download-management operations,
// plus the WebSocket push channel.
package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tgmanager/tgmanager/internal/bot"
	"github.com/tgmanager/tgmanager/internal/config"
	"github.com/tgmanager/tgmanager/internal/downloads"
	"github.com/tgmanager/tgmanager/internal/forward"
	"github.com/tgmanager/tgmanager/internal/linktoken"
	"github.com/tgmanager/tgmanager/internal/logger"
	"github.com/tgmanager/tgmanager/internal/progress"
	"github.com/tgmanager/tgmanager/internal/scheduler"
	"github.com/tgmanager/tgmanager/internal/supervisor"
	"github.com/tgmanager/tgmanager/internal/telegram"
	"github.com/tgmanager/tgmanager/internal/transfer"
	"github.com/tgmanager/tgmanager/internal/websocket"
	"github.com/tgmanager/tgmanager/internal/youtube"
)

// Server handles HTTP requests for the tgmanager API.
type Server struct {
	echo   *echo.Echo
	hub    *websocket.Hub
	logger zerolog.Logger
	cfg    *config.Config

	logBroadcaster *logger.LogBroadcaster
	logFilePath    string
	schedulerSvc   *scheduler.Scheduler

	// Services
	supervisorService *supervisor.Supervisor
	botAPI            *telegram.BotAPI
	transferRouter    *transfer.Router
	pipeline          *youtube.Pipeline
	tokenStore        *linktoken.Store
	forwardManager    *forward.Manager
	downloadsService  *downloads.Service
	progressManager   *progress.Manager
	dispatcher        *bot.Dispatcher
}

// NewServer creates a new API server instance and builds the object graph
// behind it. The large-file client may be nil; the router then fails
// oversized transfers fast.
func NewServer(cfg *config.Config, hub *websocket.Hub, large telegram.LargeFileClient, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		hub:    hub,
		logger: log,
		cfg:    cfg,
	}

	// Process supervision and status events
	s.supervisorService = supervisor.New(cfg, log)
	s.supervisorService.SetBroadcaster(hub)

	// Platform clients and the transfer router
	s.botAPI = telegram.NewBotAPI(cfg.Telegram.BotToken, log)
	s.transferRouter = transfer.NewRouter(cfg.Transfer, s.botAPI, large, log)

	s.pipeline = youtube.NewPipeline(cfg.YouTube, cfg.Downloads, log)
	s.tokenStore = linktoken.NewStore(cfg.LinkTokens.Capacity,
		time.Duration(cfg.LinkTokens.TTLHours)*time.Hour, log)

	s.forwardManager = forward.NewManager(func() forward.Engine {
		return forward.NewSubprocessEngine(cfg.Forward, cfg.Telegram, log)
	}, log)
	s.forwardManager.SetBroadcaster(hub)

	s.downloadsService = downloads.NewService(cfg.Downloads, log)
	s.progressManager = progress.NewManager(hub, log)

	// Inbound update dispatch
	s.dispatcher = bot.NewDispatcher(s.botAPI, s.transferRouter, s.pipeline, s.tokenStore, cfg, log)
	s.dispatcher.SetProgressManager(s.progressManager)
	s.dispatcher.SetStatusFunc(s.statusText)

	// Fresh status push for newly connected dashboard clients
	hub.SetStatusRequestHandler(func() {
		_ = hub.Broadcast("backend:status:all", s.supervisorService.StatusAll())
	})

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// SetLogAccess wires the in-memory log stream and the log file path for
// the logs endpoints.
func (s *Server) SetLogAccess(b *logger.LogBroadcaster, filePath string) {
	s.logBroadcaster = b
	s.logFilePath = filePath
}

// SetScheduler wires the background scheduler for the tasks endpoints.
func (s *Server) SetScheduler(sched *scheduler.Scheduler) {
	s.schedulerSvc = sched
}

// Supervisor exposes the process supervisor for lifecycle wiring in main.
func (s *Server) Supervisor() *supervisor.Supervisor {
	return s.supervisorService
}

// Dispatcher exposes the update dispatcher for the poll loop in main.
func (s *Server) Dispatcher() *bot.Dispatcher {
	return s.dispatcher
}

// TokenStore exposes the link-token store for scheduler wiring.
func (s *Server) TokenStore() *linktoken.Store {
	return s.tokenStore
}

// Downloads exposes the downloads service for scheduler wiring.
func (s *Server) Downloads() *downloads.Service {
	return s.downloadsService
}

// Start begins listening on the given address. Blocks until shutdown.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting API server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
