// Package transfer routes inbound file transfers to the correct protocol
// and streams them to the destination tree.
package transfer

import (
	"errors"
	"sync"
	"time"
)

// Common errors for transfer operations.
var (
	// ErrProtocolUnavailable means the large-file path was required but the
	// secondary protocol client is not connected. No transfer is attempted:
	// the small-file protocol is known to reject oversized artifacts, so a
	// silent fallback would only fail later and more confusingly.
	ErrProtocolUnavailable = errors.New("large-file protocol client not connected")

	// ErrValidation means required transfer input was missing or malformed.
	ErrValidation = errors.New("invalid transfer request")

	// ErrTaskNotFound means the referenced task id is unknown.
	ErrTaskNotFound = errors.New("transfer task not found")
)

// SourceKind identifies the transfer mechanism used for a task.
type SourceKind string

const (
	SourcePlatformSmall SourceKind = "platform-small"
	SourcePlatformLarge SourceKind = "platform-large"
	SourceDirectHTTP    SourceKind = "direct-http"
	SourceYouTube       SourceKind = "youtube"
)

// TaskStatus represents the state of a transfer task.
type TaskStatus string

const (
	StatusPending      TaskStatus = "pending"
	StatusTransferring TaskStatus = "transferring"
	StatusCompleted    TaskStatus = "completed"
	StatusFailed       TaskStatus = "failed"
)

// ProgressFunc receives transfer progress in percent.
type ProgressFunc func(percent int)

// Task represents one file transfer. Terminal on completed/failed; a
// failed transfer is never retried automatically.
type Task struct {
	ID              string     `json:"id"`
	Source          SourceKind `json:"source"`
	SizeBytes       int64      `json:"sizeBytes,omitempty"`
	DestinationPath string     `json:"destinationPath"`
	ProgressPercent int        `json:"progressPercent"`
	Status          TaskStatus `json:"status"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`

	mu sync.Mutex
}

// setProgress advances the task progress. Progress is monotonically
// non-decreasing until the task is terminal.
func (t *Task) setProgress(percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if percent > t.ProgressPercent && percent <= 100 {
		t.ProgressPercent = percent
	}
}

// setTransferring moves the task out of pending.
func (t *Task) setTransferring() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = StatusTransferring
}

// setSize records the artifact size once the transport reports it.
func (t *Task) setSize(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > 0 {
		t.SizeBytes = n
	}
}

// complete marks the task terminal-successful.
func (t *Task) complete(destPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = StatusCompleted
	t.DestinationPath = destPath
	t.ProgressPercent = 100
}

// fail marks the task terminal-failed, recording the transport error. Any
// partial artifact stays on disk.
func (t *Task) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = StatusFailed
	t.Error = err.Error()
}

// Snapshot returns a copy of the task safe for serialization.
func (t *Task) Snapshot() Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Task{
		ID:              t.ID,
		Source:          t.Source,
		SizeBytes:       t.SizeBytes,
		DestinationPath: t.DestinationPath,
		ProgressPercent: t.ProgressPercent,
		Status:          t.Status,
		Error:           t.Error,
		CreatedAt:       t.CreatedAt,
	}
}
