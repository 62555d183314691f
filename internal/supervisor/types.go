// Package supervisor manages the lifecycle of the external automation
// backends: spawning, output capture, health snapshots and teardown.
package supervisor

import (
	"errors"
	"time"

	"github.com/tgmanager/tgmanager/internal/logger"
)

// Common errors for backend lifecycle operations.
var (
	ErrUnknownKind = errors.New("unknown backend kind")
	ErrSpawn       = errors.New("failed to spawn backend process")
)

// Kind identifies one of the independently-implemented automation backends.
type Kind string

const (
	KindNodeClient   Kind = "node-client"
	KindPythonClient Kind = "python-client"
	KindPythonCopier Kind = "python-copier"
)

// Kinds lists every managed backend kind.
var Kinds = []Kind{KindNodeClient, KindPythonClient, KindPythonCopier}

// ParseKind validates a kind string from the API boundary.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindNodeClient, KindPythonClient, KindPythonCopier:
		return Kind(s), nil
	}
	return "", ErrUnknownKind
}

// Status represents the lifecycle state of a managed backend.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusCrashed  Status = "crashed"
)

// Snapshot is a read-only view of a managed backend, safe to serialize.
type Snapshot struct {
	Kind             Kind       `json:"kind"`
	Status           Status     `json:"status"`
	Running          bool       `json:"running"`
	PID              int        `json:"pid,omitempty"`
	IdentifyingLabel string     `json:"identifyingLabel,omitempty"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	LastActivityAt   *time.Time `json:"lastActivityAt,omitempty"`
}

// managedProcess tracks one running backend instance. The exec handle is
// exclusively owned by the supervisor and never escapes.
type managedProcess struct {
	kind           Kind
	status         Status
	pid            int
	startedAt      time.Time
	lastActivityAt time.Time
	env            []string // write-once snapshot of the injected environment
	buf            *logger.LineBuffer

	stopRequested bool // distinguishes operator stops from crashes

	stop func() // sends the termination signal, idempotent
	done chan struct{}
}
