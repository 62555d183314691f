package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tgmanager/tgmanager/internal/config"
	"github.com/tgmanager/tgmanager/internal/telegram"
)

// SmallFileClient is the Bot API surface the router needs: resolve a file
// reference, then stream its content.
type SmallFileClient interface {
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	OpenFile(ctx context.Context, filePath string) (io.ReadCloser, int64, error)
}

// PlatformFile identifies an inbound platform attachment.
type PlatformFile struct {
	FileID    string
	AccessRef string
	FileName  string
	SizeBytes int64
}

// Router picks the transfer protocol for an inbound artifact from its size
// and streams the bytes to the destination tree.
type Router struct {
	small      SmallFileClient
	large      telegram.LargeFileClient
	threshold  int64
	httpClient *http.Client
	logger     zerolog.Logger

	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRouter creates a download router. The large-file client may be nil;
// oversized transfers then fail fast with ErrProtocolUnavailable.
func NewRouter(cfg config.TransferConfig, small SmallFileClient, large telegram.LargeFileClient, log zerolog.Logger) *Router {
	return &Router{
		small:     small,
		large:     large,
		threshold: cfg.LargeFileThreshold,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second,
		},
		logger: log.With().Str("component", "transfer").Logger(),
		tasks:  make(map[string]*Task),
	}
}

// SelectProtocol decides the transfer path for a platform file of the
// given size. The two protocols are mutually exclusive: the small-file
// API rejects artifacts above the threshold, so there is no fallback.
func (r *Router) SelectProtocol(sizeBytes int64) (SourceKind, error) {
	if sizeBytes > r.threshold {
		if r.large == nil || !r.large.IsConnected() {
			return "", ErrProtocolUnavailable
		}
		return SourcePlatformLarge, nil
	}
	return SourcePlatformSmall, nil
}

// DownloadPlatformFile transfers a platform attachment to destDir,
// choosing the protocol from the file size.
func (r *Router) DownloadPlatformFile(ctx context.Context, ref PlatformFile, destDir string, onProgress ProgressFunc) (*Task, error) {
	if ref.FileID == "" {
		return nil, fmt.Errorf("%w: missing file id", ErrValidation)
	}

	source, err := r.SelectProtocol(ref.SizeBytes)
	if err != nil {
		return nil, err
	}

	name := SanitizeFilename(ref.FileName)
	if name == "" {
		name = syntheticFilename()
	}

	task := r.newTask(source, ref.SizeBytes, filepath.Join(destDir, name))

	if err := os.MkdirAll(destDir, 0755); err != nil {
		task.fail(err)
		return task, fmt.Errorf("creating destination directory: %w", err)
	}

	switch source {
	case SourcePlatformLarge:
		err = r.downloadLarge(ctx, ref, name, task, onProgress)
	default:
		err = r.downloadSmall(ctx, ref, task, onProgress)
	}
	if err != nil {
		return task, err
	}

	r.notify(onProgress, task, 100)
	return task, nil
}

// downloadLarge streams through the session-based secondary protocol.
// Progress arrives coarse-grained from the client, not per byte.
func (r *Router) downloadLarge(ctx context.Context, ref PlatformFile, destName string, task *Task, onProgress ProgressFunc) error {
	task.setTransferring()

	destPath, err := r.large.DownloadFile(ctx, telegram.FileRef{
		FileID:    ref.FileID,
		AccessRef: ref.AccessRef,
		SizeBytes: ref.SizeBytes,
	}, destName, func(percent int) {
		r.notify(onProgress, task, percent)
	})
	if err != nil {
		task.fail(err)
		return fmt.Errorf("large-file transfer: %w", err)
	}

	task.complete(destPath)
	return nil
}

// downloadSmall streams through the Bot API. The transport is a
// pass-through stream, so progress is completion-only.
func (r *Router) downloadSmall(ctx context.Context, ref PlatformFile, task *Task, onProgress ProgressFunc) error {
	task.setTransferring()

	file, err := r.small.GetFile(ctx, ref.FileID)
	if err != nil {
		task.fail(err)
		return fmt.Errorf("resolving file reference: %w", err)
	}

	body, _, err := r.small.OpenFile(ctx, file.FilePath)
	if err != nil {
		task.fail(err)
		return fmt.Errorf("opening file stream: %w", err)
	}
	defer body.Close()

	if err := r.streamToFile(body, task.DestinationPath); err != nil {
		task.fail(err)
		return err
	}

	task.complete(task.DestinationPath)
	return nil
}

// DownloadURL fetches a generic URL to destDir, deriving the filename from
// the URL path. The request is bounded by the configured HTTP timeout.
func (r *Router) DownloadURL(ctx context.Context, rawURL, destDir string, onProgress ProgressFunc) (*Task, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: not a downloadable url", ErrValidation)
	}

	name := FilenameFromURL(rawURL)
	task := r.newTask(SourceDirectHTTP, 0, filepath.Join(destDir, name))

	if err := os.MkdirAll(destDir, 0755); err != nil {
		task.fail(err)
		return task, fmt.Errorf("creating destination directory: %w", err)
	}

	task.setTransferring()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		task.fail(err)
		return task, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		task.fail(err)
		return task, fmt.Errorf("fetching url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("fetching url: unexpected status %d", resp.StatusCode)
		task.fail(err)
		return task, err
	}

	task.setSize(resp.ContentLength)

	if err := r.streamToFile(resp.Body, task.DestinationPath); err != nil {
		task.fail(err)
		return task, err
	}

	task.complete(task.DestinationPath)
	r.notify(onProgress, task, 100)
	return task, nil
}

// streamToFile copies the stream to destPath. On a mid-stream failure the
// partial file is left in place for inspection, not rolled back.
func (r *Router) streamToFile(src io.Reader, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}

	_, copyErr := io.Copy(out, src)
	closeErr := out.Close()
	if copyErr != nil {
		return fmt.Errorf("streaming to %s: %w", filepath.Base(destPath), copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("finalizing %s: %w", filepath.Base(destPath), closeErr)
	}
	return nil
}

// RegisterYouTubeTask records a task owned by the YouTube pipeline so it
// shows up in the unified transfer listing. The pipeline drives the task
// to its terminal state through CompleteTask or FailTask.
func (r *Router) RegisterYouTubeTask(destPath string) *Task {
	task := r.newTask(SourceYouTube, 0, destPath)
	task.setTransferring()
	return task
}

// CompleteTask marks an externally-driven task finished at destPath.
func (r *Router) CompleteTask(id, destPath string) {
	r.mu.RLock()
	task, ok := r.tasks[id]
	r.mu.RUnlock()
	if ok {
		task.complete(destPath)
	}
}

// FailTask marks an externally-driven task failed.
func (r *Router) FailTask(id string, err error) {
	r.mu.RLock()
	task, ok := r.tasks[id]
	r.mu.RUnlock()
	if ok {
		task.fail(err)
	}
}

// Get returns a snapshot of one task.
func (r *Router) Get(id string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return task.Snapshot(), nil
}

// Tasks returns snapshots of all known tasks, newest first.
func (r *Router) Tasks() []Task {
	r.mu.RLock()
	out := make([]Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		out = append(out, task.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *Router) newTask(source SourceKind, sizeBytes int64, destPath string) *Task {
	task := &Task{
		ID:              uuid.NewString(),
		Source:          source,
		SizeBytes:       sizeBytes,
		DestinationPath: destPath,
		Status:          StatusPending,
		CreatedAt:       time.Now(),
	}

	r.mu.Lock()
	r.tasks[task.ID] = task
	r.mu.Unlock()
	return task
}

// notify advances the task progress and forwards it to the caller's
// callback when one was supplied.
func (r *Router) notify(onProgress ProgressFunc, task *Task, percent int) {
	task.setProgress(percent)
	if onProgress != nil {
		onProgress(percent)
	}
}
