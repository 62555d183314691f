package forward

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Broadcaster publishes job status changes to connected clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

type jobState struct {
	job           Job
	engine        Engine
	stopRequested bool
}

// Manager owns the forward-job state machines. The copy loop runs in an
// engine per job; the manager tracks lifecycle, offset cursor and the
// terminal outcome. Jobs run independently: there is no cross-job mutual
// exclusion here beyond what the messaging account itself enforces.
type Manager struct {
	newEngine   EngineFactory
	logger      zerolog.Logger
	broadcaster Broadcaster

	mu   sync.RWMutex
	jobs map[string]*jobState
}

// NewManager creates a forward job manager.
func NewManager(newEngine EngineFactory, log zerolog.Logger) *Manager {
	return &Manager{
		newEngine: newEngine,
		logger:    log.With().Str("component", "forward").Logger(),
		jobs:      make(map[string]*jobState),
	}
}

// SetBroadcaster enables job status events over the WebSocket hub.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

// Start validates the configuration, allocates a job and hands the copy
// loop to a fresh engine. The cursor starts at OffsetFrom and only moves
// forward from there.
func (m *Manager) Start(cfg JobConfig) (Job, error) {
	if err := cfg.Validate(); err != nil {
		return Job{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	now := time.Now()
	js := &jobState{
		job: Job{
			ID:            uuid.NewString(),
			Config:        cfg,
			State:         StateIdle,
			CurrentOffset: cfg.OffsetFrom,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		engine: m.newEngine(),
	}

	m.mu.Lock()
	m.jobs[js.job.ID] = js
	m.mu.Unlock()

	id := js.job.ID
	err := js.engine.Start(cfg, Callbacks{
		OnProgress: func(offset int64, line string) { m.handleProgress(id, offset) },
		OnExit:     func(err error) { m.handleExit(id, err) },
	})
	if err != nil {
		m.mu.Lock()
		js.job.State = StateError
		js.job.Error = err.Error()
		js.job.UpdatedAt = time.Now()
		m.mu.Unlock()
		return m.snapshot(js), fmt.Errorf("starting forward engine: %w", err)
	}

	// A very short run can already have exited through OnExit; a terminal
	// state observed here must not be wound back to running.
	m.mu.Lock()
	if js.job.State == StateIdle {
		js.job.State = StateRunning
		js.job.UpdatedAt = time.Now()
	}
	m.mu.Unlock()

	m.logger.Info().
		Str("jobId", id).
		Int64("source", cfg.SourceChatID).
		Int64("dest", cfg.DestChatID).
		Msg("forward job started")
	m.broadcastJob(js)

	return m.snapshot(js), nil
}

// Stop signals the job's engine to halt at the next safe boundary. The
// job reaches paused once the engine's exit is observed; the current
// offset is preserved, never rewound.
func (m *Manager) Stop(jobID string) (Job, error) {
	m.mu.Lock()
	js, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return Job{}, ErrJobNotFound
	}
	if js.job.State != StateRunning {
		m.mu.Unlock()
		return Job{}, fmt.Errorf("%w: state is %s", ErrNotRunning, js.job.State)
	}
	js.stopRequested = true
	js.job.UpdatedAt = time.Now()
	m.mu.Unlock()

	m.logger.Info().Str("jobId", jobID).Msg("stopping forward job")
	js.engine.Stop()

	return m.Status(jobID)
}

// Status returns the job merged with a fresh engine pull, so the caller
// observes offsets that arrived between callback deliveries.
func (m *Manager) Status(jobID string) (Job, error) {
	m.mu.RLock()
	js, ok := m.jobs[jobID]
	m.mu.RUnlock()

	if !ok {
		return Job{}, ErrJobNotFound
	}
	return m.snapshot(js), nil
}

// List returns merged snapshots of all jobs, newest first.
func (m *Manager) List() []Job {
	m.mu.RLock()
	states := make([]*jobState, 0, len(m.jobs))
	for _, js := range m.jobs {
		states = append(states, js)
	}
	m.mu.RUnlock()

	out := make([]Job, 0, len(states))
	for _, js := range states {
		out = append(out, m.snapshot(js))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// handleProgress advances the job's offset cursor. The cursor is
// monotonic: it never falls below OffsetFrom or an already-seen offset.
func (m *Manager) handleProgress(jobID string, offset int64) {
	m.mu.Lock()
	js, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if offset > js.job.CurrentOffset {
		js.job.CurrentOffset = offset
		js.job.ProgressPercent = progressFor(js.job.Config, offset)
	}
	js.job.UpdatedAt = time.Now()
	m.mu.Unlock()

	m.broadcastJob(js)
}

// handleExit records the run's terminal state: paused when the stop was
// requested, completed on a clean exit, error otherwise.
func (m *Manager) handleExit(jobID string, err error) {
	m.mu.Lock()
	js, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return
	}

	switch {
	case js.stopRequested:
		js.job.State = StatePaused
	case err == nil:
		js.job.State = StateCompleted
		js.job.ProgressPercent = 100
	default:
		js.job.State = StateError
		js.job.Error = err.Error()
	}
	js.job.UpdatedAt = time.Now()
	state := js.job.State
	m.mu.Unlock()

	m.logger.Info().Str("jobId", jobID).Str("state", string(state)).Msg("forward job ended")
	m.broadcastJob(js)
}

// snapshot merges the manager's record with the engine's own view.
func (m *Manager) snapshot(js *jobState) Job {
	es := js.engine.Status()

	m.mu.RLock()
	job := js.job
	m.mu.RUnlock()

	if es.CurrentOffset > job.CurrentOffset {
		job.CurrentOffset = es.CurrentOffset
		if job.State == StateRunning {
			job.ProgressPercent = progressFor(job.Config, es.CurrentOffset)
		}
	}
	job.Logs = es.RecentLines
	return job
}

// progressFor maps the offset cursor onto a percentage of the configured
// range. Open-ended jobs (OffsetTo == 0) report no meaningful percentage.
func progressFor(cfg JobConfig, offset int64) int {
	if cfg.OffsetTo <= cfg.OffsetFrom {
		return 0
	}
	p := int((offset - cfg.OffsetFrom) * 100 / (cfg.OffsetTo - cfg.OffsetFrom))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func (m *Manager) broadcastJob(js *jobState) {
	if m.broadcaster == nil {
		return
	}
	_ = m.broadcaster.Broadcast("forward:status", m.snapshot(js))
}
