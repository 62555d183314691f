package supervisor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tgmanager/tgmanager/internal/config"
	"github.com/tgmanager/tgmanager/internal/logger"
	"github.com/tgmanager/tgmanager/internal/telegram"
)

// stopGraceTimeout is how long a backend gets to exit after SIGTERM
// before it is killed.
const stopGraceTimeout = 5 * time.Second

// Broadcaster publishes backend status changes to connected clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Supervisor spawns and tears down the automation backends. It enforces
// the singleton-per-kind invariant: the backends share one platform
// session per kind, so two concurrent instances would corrupt it.
type Supervisor struct {
	cfg    *config.Config
	logger zerolog.Logger

	// launch is overridable in tests; defaults to launchCommand.
	launch func(kind Kind) (string, []string, error)

	broadcaster Broadcaster

	opMu  sync.Mutex // serializes Start/Stop sequences
	mu    sync.RWMutex
	procs map[Kind]*managedProcess
}

// New creates a supervisor for the configured backends.
func New(cfg *config.Config, log zerolog.Logger) *Supervisor {
	s := &Supervisor{
		cfg:    cfg,
		logger: log.With().Str("component", "supervisor").Logger(),
		procs:  make(map[Kind]*managedProcess),
	}
	s.launch = func(kind Kind) (string, []string, error) {
		return launchCommand(kind, cfg)
	}
	return s
}

// SetBroadcaster enables status change events over the WebSocket hub.
func (s *Supervisor) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetLaunchFunc overrides the backend launch command. Used by tests.
func (s *Supervisor) SetLaunchFunc(f func(kind Kind) (string, []string, error)) {
	s.launch = f
}

// Start launches the backend of the given kind. A pre-existing instance of
// the same kind is stopped synchronously first.
func (s *Supervisor) Start(kind Kind) (Snapshot, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if _, err := ParseKind(string(kind)); err != nil {
		return Snapshot{}, err
	}

	s.stopLocked(kind)

	bin, args, err := s.launch(kind)
	if err != nil {
		return Snapshot{}, err
	}

	env := buildEnv(s.cfg)

	cmd := exec.Command(bin, args...)
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSpawn, err)
	}

	proc := &managedProcess{
		kind:   kind,
		status: StatusStarting,
		env:    env,
		buf:    logger.NewLineBuffer(),
		done:   make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("backend spawn failed")
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSpawn, err)
	}

	now := time.Now()
	osProc := cmd.Process

	proc.status = StatusRunning
	proc.pid = osProc.Pid
	proc.startedAt = now
	proc.lastActivityAt = now
	proc.stop = func() {
		_ = osProc.Signal(syscall.SIGTERM)
	}

	s.mu.Lock()
	s.procs[kind] = proc
	s.mu.Unlock()

	s.logger.Info().Str("kind", string(kind)).Int("pid", proc.pid).Msg("backend started")
	proc.buf.Append("system", fmt.Sprintf("started %s (pid %d)", kind, proc.pid))
	s.broadcastStatus(kind)

	var scanners sync.WaitGroup
	scanners.Add(2)
	go s.consumeStream(proc, "stdout", stdout, &scanners)
	go s.consumeStream(proc, "stderr", stderr, &scanners)
	go s.watchExit(proc, cmd, &scanners)

	return s.snapshot(proc), nil
}

// consumeStream appends backend output lines to the process buffer,
// classified by stream origin.
func (s *Supervisor) consumeStream(proc *managedProcess, stream string, r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		proc.buf.Append(stream, scanner.Text())
		s.mu.Lock()
		proc.lastActivityAt = time.Now()
		s.mu.Unlock()
	}
}

// watchExit observes the backend's exit and records the outcome. The
// status only leaves running after the exit event has been seen, never
// merely after a signal was sent.
func (s *Supervisor) watchExit(proc *managedProcess, cmd *exec.Cmd, scanners *sync.WaitGroup) {
	scanners.Wait()
	err := cmd.Wait()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	s.mu.Lock()
	proc.pid = 0
	proc.lastActivityAt = time.Now()
	switch {
	case exitCode == 0 || proc.stopRequested:
		proc.status = StatusStopped
		proc.buf.Append("system", fmt.Sprintf("process exited with code %d", exitCode))
	default:
		proc.status = StatusCrashed
		proc.buf.Append("system", fmt.Sprintf("process crashed with exit code %d", exitCode))
	}
	s.mu.Unlock()

	close(proc.done)

	s.logger.Info().
		Str("kind", string(proc.kind)).
		Int("exitCode", exitCode).
		Msg("backend exited")
	s.broadcastStatus(proc.kind)
}

// Stop sends a termination signal to the backend and waits for its exit to
// be observed. Idempotent if the backend is not running.
func (s *Supervisor) Stop(kind Kind) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}

	s.stopLocked(kind)
	return nil
}

// stopLocked performs the synchronous stop sequence. Callers hold opMu.
func (s *Supervisor) stopLocked(kind Kind) {
	s.mu.RLock()
	proc := s.procs[kind]
	s.mu.RUnlock()

	if proc == nil {
		return
	}

	select {
	case <-proc.done:
		return // already exited
	default:
	}

	s.logger.Info().Str("kind", string(kind)).Msg("stopping backend")
	s.mu.Lock()
	proc.stopRequested = true
	s.mu.Unlock()
	proc.stop()

	select {
	case <-proc.done:
	case <-time.After(stopGraceTimeout):
		s.logger.Warn().Str("kind", string(kind)).Msg("backend ignored SIGTERM, killing")
		s.mu.RLock()
		pid := proc.pid
		s.mu.RUnlock()
		if pid > 0 {
			if p, err := os.FindProcess(pid); err == nil {
				_ = p.Kill()
			}
		}
		<-proc.done
	}
}

// Status returns a read-only snapshot of the backend. It never blocks on
// the process itself.
func (s *Supervisor) Status(kind Kind) (Snapshot, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return Snapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	proc := s.procs[kind]
	if proc == nil {
		return Snapshot{Kind: kind, Status: StatusStopped}, nil
	}
	return s.snapshotLocked(proc), nil
}

// StatusAll returns snapshots for every backend kind.
func (s *Supervisor) StatusAll() []Snapshot {
	out := make([]Snapshot, 0, len(Kinds))
	for _, kind := range Kinds {
		snap, _ := s.Status(kind)
		out = append(out, snap)
	}
	return out
}

// Logs returns the current log buffer snapshot for the backend.
func (s *Supervisor) Logs(kind Kind) ([]logger.Line, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	s.mu.RLock()
	proc := s.procs[kind]
	s.mu.RUnlock()

	if proc == nil {
		return []logger.Line{}, nil
	}
	return proc.buf.Lines(), nil
}

// ShutdownAll stops every running backend. Called on server shutdown.
func (s *Supervisor) ShutdownAll() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	for _, kind := range Kinds {
		s.stopLocked(kind)
	}
}

func (s *Supervisor) snapshot(proc *managedProcess) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(proc)
}

func (s *Supervisor) snapshotLocked(proc *managedProcess) Snapshot {
	snap := Snapshot{
		Kind:             proc.kind,
		Status:           proc.status,
		Running:          proc.status == StatusRunning || proc.status == StatusStarting,
		PID:              proc.pid,
		IdentifyingLabel: telegram.MaskToken(s.cfg.Telegram.BotToken),
	}
	if !proc.startedAt.IsZero() {
		t := proc.startedAt
		snap.StartedAt = &t
	}
	if !proc.lastActivityAt.IsZero() {
		t := proc.lastActivityAt
		snap.LastActivityAt = &t
	}
	return snap
}

func (s *Supervisor) broadcastStatus(kind Kind) {
	if s.broadcaster == nil {
		return
	}
	snap, err := s.Status(kind)
	if err != nil {
		return
	}
	_ = s.broadcaster.Broadcast("backend:status", snap)
}
