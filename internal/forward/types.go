// Package forward manages message-copy jobs between two chats, delegating
// the copy loop itself to an external forwarding engine process.
package forward

import (
	"errors"
	"time"
)

// Common errors for forward operations.
var (
	// ErrValidation means the job configuration is missing required fields
	// or carries out-of-range offsets.
	ErrValidation = errors.New("invalid forward job configuration")

	// ErrJobNotFound means the referenced job id is unknown.
	ErrJobNotFound = errors.New("forward job not found")

	// ErrNotRunning means the job is not in a state the operation applies to.
	ErrNotRunning = errors.New("forward job is not running")
)

// JobState is the lifecycle state of a forward job.
type JobState string

const (
	StateIdle      JobState = "idle"
	StateRunning   JobState = "running"
	StatePaused    JobState = "paused"
	StateCompleted JobState = "completed"
	StateError     JobState = "error"
)

// JobConfig describes one copy run. Resuming a paused job means starting a
// new run with the same config and the already-advanced OffsetFrom.
type JobConfig struct {
	SourceChatID int64 `json:"sourceChatId"`
	DestChatID   int64 `json:"destChatId"`
	OffsetFrom   int64 `json:"offsetFrom"`
	OffsetTo     int64 `json:"offsetTo"`
}

// Validate checks the required fields and offset ranges.
func (c JobConfig) Validate() error {
	if c.SourceChatID == 0 {
		return errors.New("source chat id is required")
	}
	if c.DestChatID == 0 {
		return errors.New("destination chat id is required")
	}
	if c.OffsetFrom < 0 || c.OffsetTo < 0 {
		return errors.New("offsets must be non-negative")
	}
	if c.OffsetTo > 0 && c.OffsetTo < c.OffsetFrom {
		return errors.New("offset range is inverted")
	}
	return nil
}

// Job is a point-in-time view of one forward job.
type Job struct {
	ID              string    `json:"id"`
	Config          JobConfig `json:"config"`
	State           JobState  `json:"state"`
	CurrentOffset   int64     `json:"currentOffset"`
	ProgressPercent int       `json:"progressPercent"`
	Error           string    `json:"error,omitempty"`
	Logs            []string  `json:"logs,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// EngineStatus is a fresh pull of the engine's own view of the run, merged
// into job snapshots so status queries see offsets that arrived between
// callback deliveries.
type EngineStatus struct {
	Running       bool
	CurrentOffset int64
	RecentLines   []string
}

// Callbacks deliver engine events to the job owner. OnProgress fires per
// forwarded message, OnExit exactly once when the run ends.
type Callbacks struct {
	OnProgress func(offset int64, line string)
	OnExit     func(err error)
}

// Engine runs one copy loop. Implementations are single-use: one Start per
// engine instance.
type Engine interface {
	Start(cfg JobConfig, cb Callbacks) error
	Stop()
	Status() EngineStatus
}

// EngineFactory builds a fresh engine for a job run.
type EngineFactory func() Engine
