package forward

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/tgmanager/tgmanager/internal/config"
)

// forwardedLine matches the copier's per-message progress line.
var forwardedLine = regexp.MustCompile(`Forwarded message with id = (\d+)`)

// parseForwardedID extracts the message id from a copier stdout line.
func parseForwardedID(line string) (int64, bool) {
	m := forwardedLine.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// engineLogKeep bounds the per-run line history returned in status pulls.
const engineLogKeep = 50

// SubprocessEngine runs the external copier script for one job. Offsets
// and chat ids travel through the environment; progress comes back as
// stdout lines, one per forwarded message.
type SubprocessEngine struct {
	forwardCfg  config.ForwardConfig
	telegramCfg config.TelegramConfig
	logger      zerolog.Logger

	mu            sync.Mutex
	running       bool
	pid           int
	currentOffset int64
	lines         []string
}

// NewSubprocessEngine creates an engine bound to the configured copier
// script. One engine drives one run.
func NewSubprocessEngine(forwardCfg config.ForwardConfig, telegramCfg config.TelegramConfig, log zerolog.Logger) *SubprocessEngine {
	return &SubprocessEngine{
		forwardCfg:  forwardCfg,
		telegramCfg: telegramCfg,
		logger:      log.With().Str("component", "forward-engine").Logger(),
	}
}

// Start spawns the copier and consumes its output until exit. Callbacks
// fire from the consumer goroutine.
func (e *SubprocessEngine) Start(cfg JobConfig, cb Callbacks) error {
	cmd := exec.Command(e.forwardCfg.PythonBinary, e.forwardCfg.ScriptPath)
	cmd.Env = e.buildEnv(cfg)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("attaching to copier output: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("attaching to copier output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting copier: %w", err)
	}

	e.mu.Lock()
	e.running = true
	e.pid = cmd.Process.Pid
	e.currentOffset = cfg.OffsetFrom
	e.mu.Unlock()

	e.logger.Info().
		Int64("source", cfg.SourceChatID).
		Int64("dest", cfg.DestChatID).
		Int64("offsetFrom", cfg.OffsetFrom).
		Msg("copier started")

	var streams sync.WaitGroup
	streams.Add(2)
	go e.consumeStdout(stdout, cb, &streams)
	go e.consumeStderr(stderr, &streams)

	go func() {
		streams.Wait()
		err := cmd.Wait()

		e.mu.Lock()
		e.running = false
		e.pid = 0
		e.mu.Unlock()

		e.logger.Info().Err(err).Msg("copier exited")
		if cb.OnExit != nil {
			cb.OnExit(err)
		}
	}()

	return nil
}

func (e *SubprocessEngine) consumeStdout(r io.Reader, cb Callbacks, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		e.appendLine(line)

		id, ok := parseForwardedID(line)
		if !ok {
			continue
		}

		e.mu.Lock()
		if id > e.currentOffset {
			e.currentOffset = id
		}
		e.mu.Unlock()

		if cb.OnProgress != nil {
			cb.OnProgress(id, line)
		}
	}
}

func (e *SubprocessEngine) consumeStderr(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		e.appendLine(scanner.Text())
	}
}

func (e *SubprocessEngine) appendLine(line string) {
	e.mu.Lock()
	e.lines = append(e.lines, line)
	if len(e.lines) > engineLogKeep {
		e.lines = e.lines[len(e.lines)-engineLogKeep:]
	}
	e.mu.Unlock()
}

// Stop signals the copier to halt at the next safe boundary. The run's
// exit is still delivered through OnExit; whether the halt counts as a
// pause is the manager's call, not the engine's.
func (e *SubprocessEngine) Stop() {
	e.mu.Lock()
	pid := e.pid
	e.mu.Unlock()

	if pid > 0 {
		if p, err := os.FindProcess(pid); err == nil {
			_ = p.Signal(syscall.SIGTERM)
		}
	}
}

// Status returns the engine's own view of the run.
func (e *SubprocessEngine) Status() EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineStatus{
		Running:       e.running,
		CurrentOffset: e.currentOffset,
		RecentLines:   append([]string(nil), e.lines...),
	}
}

// buildEnv injects the credentials and job parameters the copier reads.
func (e *SubprocessEngine) buildEnv(cfg JobConfig) []string {
	env := os.Environ()

	set := func(key, value string) {
		env = append(env, key+"="+value)
	}

	set("TG_API_ID", strconv.Itoa(e.telegramCfg.APIID))
	set("TG_API_HASH", e.telegramCfg.APIHash)
	set("TG_SESSION", e.telegramCfg.Session)
	set("TG_SESSION_STRING", e.telegramCfg.SessionString)

	set("FORWARD_GROUP_SOURCE", strconv.FormatInt(cfg.SourceChatID, 10))
	set("FORWARD_GROUP_DESTINATION", strconv.FormatInt(cfg.DestChatID, 10))
	set("FORWARD_OFFSET_FROM", strconv.FormatInt(cfg.OffsetFrom, 10))
	set("FORWARD_OFFSET_TO", strconv.FormatInt(cfg.OffsetTo, 10))
	set("FORWARD_CONFIG_DIR", e.forwardCfg.ConfigDir)

	return env
}
