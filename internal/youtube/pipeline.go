// Package youtube retrieves video or audio renditions of recognized
// video-platform links through an external command-line downloader.
package youtube

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tgmanager/tgmanager/internal/config"
)

// Common errors for pipeline operations.
var (
	// ErrSpawn means the downloader binary could not be launched at all
	// (missing, not executable). Distinct from a nonzero exit.
	ErrSpawn = errors.New("downloader could not be started")

	// ErrUnsupportedURL means the link's host is not a recognized video
	// platform.
	ErrUnsupportedURL = errors.New("url is not a supported video platform link")
)

// Profile selects which rendition the pipeline produces.
type Profile string

const (
	// ProfileVideo downloads the best combined video+audio rendition,
	// remuxed into an mp4 container.
	ProfileVideo Profile = "video"

	// ProfileAudio extracts the best audio rendition, transcoded to mp3 at
	// the configured bitrate.
	ProfileAudio Profile = "audio"
)

// ParseProfile converts a user-facing choice string to a Profile.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video":
		return ProfileVideo, nil
	case "audio":
		return ProfileAudio, nil
	}
	return "", fmt.Errorf("unknown profile %q", s)
}

// Result describes a finished download.
type Result struct {
	// FilePath is the artifact's absolute path as printed by the tool, or a
	// synthesized fallback when the tool printed none.
	FilePath string

	// Filename is the base name of FilePath.
	Filename string
}

// Pipeline drives the external downloader. The destination tree is split
// by profile and grouped by uploader through the tool's own output
// template; the pipeline learns the final filename only from the path the
// tool prints on stdout, because the template placeholders are resolved by
// the tool, not here.
type Pipeline struct {
	cfg      config.YouTubeConfig
	videoDir string
	audioDir string
	logger   zerolog.Logger

	// newCommand is overridable in tests; defaults to downloaderCommand.
	newCommand func(ctx context.Context, rawURL string, profile Profile) *exec.Cmd
}

// NewPipeline creates the download pipeline.
func NewPipeline(cfg config.YouTubeConfig, downloads config.DownloadsConfig, log zerolog.Logger) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		videoDir: downloads.YouTubeVideoPath,
		audioDir: downloads.YouTubeAudioPath,
		logger:   log.With().Str("component", "youtube").Logger(),
	}
	p.newCommand = p.downloaderCommand
	return p
}

// SetCommandFunc overrides downloader command construction. Used by tests.
func (p *Pipeline) SetCommandFunc(f func(ctx context.Context, rawURL string, profile Profile) *exec.Cmd) {
	p.newCommand = f
}

// IsSupported reports whether the link's host belongs to a configured
// video platform domain.
func (p *Pipeline) IsSupported(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range p.cfg.LinksSupported {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Download runs the external tool to completion for the given link and
// profile. It blocks until the tool exits; the tool's own retry settings
// govern how long that takes, there is no additional deadline here.
func (p *Pipeline) Download(ctx context.Context, rawURL string, profile Profile) (*Result, error) {
	if !p.IsSupported(rawURL) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
	}

	cmd := p.newCommand(ctx, rawURL, profile)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		p.logger.Error().Err(err).Str("url", rawURL).Msg("downloader spawn failed")
		return nil, fmt.Errorf("%w: %s", ErrSpawn, err)
	}

	p.logger.Info().
		Str("url", rawURL).
		Str("profile", string(profile)).
		Msg("downloader started")

	scanner := &outputScanner{}

	var streams sync.WaitGroup
	streams.Add(2)
	go func() {
		defer streams.Done()
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			scanner.Scan(line)
			p.logger.Debug().Str("stream", "stdout").Msg(line)
		}
	}()
	go func() {
		defer streams.Done()
		// The tool narrates progress and warnings on stderr; lines there
		// are not failures by themselves.
		sc := bufio.NewScanner(stderr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			p.logger.Debug().Str("stream", "stderr").Msg(sc.Text())
		}
	}()

	streams.Wait()
	if err := cmd.Wait(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		p.logger.Error().Int("exitCode", exitCode).Str("url", rawURL).Msg("downloader failed")
		return nil, fmt.Errorf("download failed (exit code %d)", exitCode)
	}

	artifact := scanner.ArtifactPath()
	if artifact == "" {
		// Tool finished cleanly but never printed the final path; fall back
		// to a generic name in the profile directory.
		artifact = filepath.Join(p.destDir(profile), fallbackFilename(profile))
		p.logger.Warn().Str("url", rawURL).Msg("no artifact path captured, using fallback name")
	}

	result := &Result{FilePath: artifact, Filename: filepath.Base(artifact)}
	p.logger.Info().Str("file", result.Filename).Msg("download completed")
	return result, nil
}

// downloaderCommand builds the yt-dlp invocation for the profile. The
// output template groups artifacts by uploader; its placeholders are
// resolved by the tool, which is why the final path must be printed back.
func (p *Pipeline) downloaderCommand(ctx context.Context, rawURL string, profile Profile) *exec.Cmd {
	template := filepath.Join(p.destDir(profile), "%(uploader)s", "%(title)s.%(ext)s")

	args := []string{
		"--no-playlist",
		"--retries", strconv.Itoa(p.cfg.Retries),
		"--output", template,
		"--print", "after_move:filepath",
		"--no-simulate",
	}

	switch profile {
	case ProfileAudio:
		args = append(args,
			"--format", p.cfg.FormatAudio,
			"--extract-audio",
			"--audio-format", "mp3",
			"--audio-quality", p.cfg.AudioBitrate,
		)
	default:
		args = append(args,
			"--format", p.cfg.FormatVideo,
			"--remux-video", "mp4",
		)
	}

	args = append(args, rawURL)
	return exec.CommandContext(ctx, p.cfg.BinaryPath, args...)
}

func (p *Pipeline) destDir(profile Profile) string {
	if profile == ProfileAudio {
		return p.audioDir
	}
	return p.videoDir
}

func fallbackFilename(profile Profile) string {
	ext := ".mp4"
	if profile == ProfileAudio {
		ext = ".mp3"
	}
	return fmt.Sprintf("media_%d%s", time.Now().UnixMilli(), ext)
}
