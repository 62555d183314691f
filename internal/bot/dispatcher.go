// Package bot turns inbound platform updates into download work: media
// messages go to the transfer router, recognized video links get a
// video/audio prompt correlated through a one-time token, and other links
// are fetched directly.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tgmanager/tgmanager/internal/config"
	"github.com/tgmanager/tgmanager/internal/linktoken"
	"github.com/tgmanager/tgmanager/internal/progress"
	"github.com/tgmanager/tgmanager/internal/telegram"
	"github.com/tgmanager/tgmanager/internal/transfer"
	"github.com/tgmanager/tgmanager/internal/youtube"
)

const (
	pollLimit       = 100
	pollTimeoutSecs = 30
	pollRetryDelay  = 3 * time.Second
)

// API is the messaging surface the dispatcher needs.
type API interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) error
	AnswerCallbackQuery(ctx context.Context, queryID, text string) error
	GetUpdates(ctx context.Context, offset int64, limit, timeoutSecs int) ([]telegram.Update, error)
}

// Downloader is the transfer-router surface the dispatcher needs. Pipeline
// downloads register their own task so they appear in the unified listing.
type Downloader interface {
	DownloadPlatformFile(ctx context.Context, ref transfer.PlatformFile, destDir string, onProgress transfer.ProgressFunc) (*transfer.Task, error)
	DownloadURL(ctx context.Context, rawURL, destDir string, onProgress transfer.ProgressFunc) (*transfer.Task, error)
	RegisterYouTubeTask(destPath string) *transfer.Task
	CompleteTask(id, destPath string)
	FailTask(id string, err error)
}

// MediaPipeline is the video-platform pipeline surface.
type MediaPipeline interface {
	IsSupported(rawURL string) bool
	Download(ctx context.Context, rawURL string, profile youtube.Profile) (*youtube.Result, error)
}

// Dispatcher consumes the update stream and routes each update to the
// right subsystem. Transfers run in their own goroutines so the poll loop
// never waits on a download.
type Dispatcher struct {
	api      API
	router   Downloader
	pipeline MediaPipeline
	tokens   *linktoken.Store
	cfg      *config.Config
	logger   zerolog.Logger

	// statusText renders the /status reply; wired from the supervisor.
	statusText func() string

	// activities is optional; when set, transfers report through it.
	activities *progress.Manager

	wg sync.WaitGroup
}

// NewDispatcher creates the update dispatcher.
func NewDispatcher(api API, router Downloader, pipeline MediaPipeline, tokens *linktoken.Store, cfg *config.Config, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		api:      api,
		router:   router,
		pipeline: pipeline,
		tokens:   tokens,
		cfg:      cfg,
		logger:   log.With().Str("component", "bot").Logger(),
	}
}

// SetStatusFunc wires the /status reply text source.
func (d *Dispatcher) SetStatusFunc(f func() string) {
	d.statusText = f
}

// SetProgressManager enables activity reporting for transfers.
func (d *Dispatcher) SetProgressManager(m *progress.Manager) {
	d.activities = m
}

// Run polls for updates until the context is cancelled, then waits for
// in-flight transfers to settle.
func (d *Dispatcher) Run(ctx context.Context) {
	var offset int64

	for {
		updates, err := d.api.GetUpdates(ctx, offset, pollLimit, pollTimeoutSecs)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			d.logger.Warn().Err(err).Msg("update poll failed, retrying")
			select {
			case <-ctx.Done():
			case <-time.After(pollRetryDelay):
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			d.HandleUpdate(ctx, update)
		}

		if ctx.Err() != nil {
			break
		}
	}

	d.wg.Wait()
}

// HandleUpdate routes one update.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update telegram.Update) {
	switch {
	case update.Message != nil:
		d.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		d.handleCallback(ctx, update.CallbackQuery)
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *telegram.Message) {
	if !d.authorized(msg.From) {
		d.logger.Warn().Interface("from", msg.From).Msg("message from unauthorized user ignored")
		return
	}

	if strings.HasPrefix(msg.Text, "/") {
		d.handleCommand(ctx, msg)
		return
	}

	if ref, ok := mediaRef(msg); ok {
		d.startMediaTransfer(ctx, msg.Chat.ID, ref)
		return
	}

	if link := firstLink(msg.Text); link != "" {
		d.handleLink(ctx, msg.Chat.ID, link)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg *telegram.Message) {
	cmd := strings.Fields(msg.Text)[0]
	switch cmd {
	case "/start":
		d.reply(ctx, msg.Chat.ID, "Hi! Send me a file, a link, or a video-platform URL and I'll download it for you.")
	case "/help":
		d.reply(ctx, msg.Chat.ID,
			"Send a document, photo, video or audio to download it.\n"+
				"Send a video-platform link to pick video or audio.\n"+
				"Send any other link to fetch it directly.\n"+
				"/status shows the managed backends.")
	case "/status":
		text := "status unavailable"
		if d.statusText != nil {
			text = d.statusText()
		}
		d.reply(ctx, msg.Chat.ID, text)
	default:
		d.reply(ctx, msg.Chat.ID, "Unknown command. Try /help.")
	}
}

// handleLink registers recognized video-platform links for a deferred
// video/audio choice; everything else is fetched directly.
func (d *Dispatcher) handleLink(ctx context.Context, chatID int64, link string) {
	if d.pipeline != nil && d.pipeline.IsSupported(link) {
		token := d.tokens.Register(link)
		err := d.api.SendMessage(ctx, chatID, "What should I download?", &telegram.SendOptions{
			InlineKeyboard: [][]telegram.InlineButton{{
				{Text: "Video", CallbackData: "video:" + token},
				{Text: "Audio", CallbackData: "audio:" + token},
			}},
		})
		if err != nil {
			d.logger.Error().Err(err).Msg("sending choice prompt failed")
		}
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		onProgress, done := d.trackActivity(progress.ActivityTypeTransfer, link)
		task, err := d.router.DownloadURL(ctx, link, d.cfg.Downloads.LinksFolder, onProgress)
		done(err)
		if err != nil {
			d.reply(ctx, chatID, "Download failed: "+err.Error())
			return
		}
		d.reply(ctx, chatID, "Saved "+taskName(task))
	}()
}

func (d *Dispatcher) startMediaTransfer(ctx context.Context, chatID int64, ref transfer.PlatformFile) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		onProgress, done := d.trackActivity(progress.ActivityTypeTransfer, ref.FileName)
		task, err := d.router.DownloadPlatformFile(ctx, ref, d.cfg.Downloads.CompletedFolder, onProgress)
		done(err)
		if err != nil {
			if errors.Is(err, transfer.ErrProtocolUnavailable) {
				d.reply(ctx, chatID, "This file needs the large-file client, which is not connected. Start the client backend and retry.")
				return
			}
			d.reply(ctx, chatID, "Download failed: "+err.Error())
			return
		}
		d.reply(ctx, chatID, "Saved "+taskName(task))
	}()
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	choice, token, ok := strings.Cut(cb.Data, ":")
	if !ok {
		_ = d.api.AnswerCallbackQuery(ctx, cb.ID, "")
		return
	}

	link, err := d.tokens.Resolve(token)
	if err != nil {
		// Absent or already consumed; a normal outcome for stale prompts.
		_ = d.api.AnswerCallbackQuery(ctx, cb.ID, "This selection has expired, send the link again.")
		return
	}

	profile, err := youtube.ParseProfile(choice)
	if err != nil {
		_ = d.api.AnswerCallbackQuery(ctx, cb.ID, "Unknown selection.")
		return
	}

	_ = d.api.AnswerCallbackQuery(ctx, cb.ID, "Starting "+choice+" download")

	var chatID int64
	if cb.Message != nil {
		chatID = cb.Message.Chat.ID
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		task := d.router.RegisterYouTubeTask(link)
		_, done := d.trackActivity(progress.ActivityTypeYouTube, link)
		result, err := d.pipeline.Download(ctx, link, profile)
		done(err)
		if err != nil {
			d.router.FailTask(task.ID, err)
			d.reply(ctx, chatID, "Download failed: "+err.Error())
			return
		}
		d.router.CompleteTask(task.ID, result.FilePath)
		d.reply(ctx, chatID, "Saved "+result.Filename)
	}()
}

// trackActivity opens a progress activity and returns the per-percent
// callback plus a closer that records the outcome. Both are no-ops when
// no progress manager is wired.
func (d *Dispatcher) trackActivity(kind progress.ActivityType, title string) (transfer.ProgressFunc, func(error)) {
	if d.activities == nil {
		return nil, func(error) {}
	}

	id := uuid.NewString()
	d.activities.StartActivity(id, kind, title)

	onProgress := func(percent int) {
		d.activities.UpdateActivity(id, "Transferring", percent)
	}
	done := func(err error) {
		if err != nil {
			d.activities.FailActivity(id, err.Error())
			return
		}
		d.activities.CompleteActivity(id, "Done")
	}
	return onProgress, done
}

// authorized enforces the single-operator model: when an authorized user
// is configured, everyone else is ignored.
func (d *Dispatcher) authorized(from *telegram.User) bool {
	allowed := d.cfg.Telegram.AuthorizedUserID
	if allowed == 0 {
		return true
	}
	return from != nil && from.ID == allowed
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if chatID == 0 {
		return
	}
	if err := d.api.SendMessage(ctx, chatID, text, nil); err != nil {
		d.logger.Error().Err(err).Int64("chat", chatID).Msg("sending reply failed")
	}
}

// mediaRef extracts the transferable attachment from a message. Photos
// arrive as size variants; the largest one is the artifact.
func mediaRef(msg *telegram.Message) (transfer.PlatformFile, bool) {
	switch {
	case msg.Document != nil:
		return transfer.PlatformFile{
			FileID:    msg.Document.FileID,
			FileName:  msg.Document.FileName,
			SizeBytes: msg.Document.FileSize,
		}, true
	case msg.Video != nil:
		return transfer.PlatformFile{
			FileID:    msg.Video.FileID,
			FileName:  msg.Video.FileName,
			SizeBytes: msg.Video.FileSize,
		}, true
	case msg.Audio != nil:
		return transfer.PlatformFile{
			FileID:    msg.Audio.FileID,
			FileName:  msg.Audio.FileName,
			SizeBytes: msg.Audio.FileSize,
		}, true
	case len(msg.Photo) > 0:
		best := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.FileSize > best.FileSize {
				best = p
			}
		}
		return transfer.PlatformFile{
			FileID:    best.FileID,
			FileName:  fmt.Sprintf("photo_%d.jpg", msg.MessageID),
			SizeBytes: best.FileSize,
		}, true
	}
	return transfer.PlatformFile{}, false
}

// firstLink returns the first http(s) URL in the text, or "".
func firstLink(text string) string {
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			return field
		}
	}
	return ""
}

func taskName(task *transfer.Task) string {
	if task == nil {
		return "file"
	}
	snap := task.Snapshot()
	if snap.DestinationPath == "" {
		return "file"
	}
	parts := strings.Split(snap.DestinationPath, "/")
	return parts[len(parts)-1]
}
