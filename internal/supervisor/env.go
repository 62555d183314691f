package supervisor

import (
	"fmt"
	"os"
	"strconv"

	"github.com/tgmanager/tgmanager/internal/config"
)

// buildEnv constructs the environment injected into a backend process:
// platform credentials, destination paths and feature flags. The backends
// read everything from the environment, so this is the whole contract.
func buildEnv(cfg *config.Config) []string {
	env := os.Environ()

	set := func(key, value string) {
		env = append(env, key+"="+value)
	}

	set("TG_API_ID", strconv.Itoa(cfg.Telegram.APIID))
	set("TG_API_HASH", cfg.Telegram.APIHash)
	set("TG_BOT_TOKEN", cfg.Telegram.BotToken)
	set("TG_AUTHORIZED_USER_ID", strconv.FormatInt(cfg.Telegram.AuthorizedUserID, 10))
	set("TG_SESSION", cfg.Telegram.Session)
	set("TG_SESSION_STRING", cfg.Telegram.SessionString)
	set("APP_LANGUAGE", cfg.Telegram.Language)

	set("TG_MAX_PARALLEL", strconv.Itoa(cfg.Features.MaxParallel))
	set("TG_DL_TIMEOUT", strconv.Itoa(cfg.Features.DownloadTimeout))
	set("ENABLED_UNZIP", fmt.Sprintf("%t", cfg.Features.EnableUnzip))
	set("ENABLED_UNRAR", fmt.Sprintf("%t", cfg.Features.EnableUnrar))
	set("TG_PROGRESS_DOWNLOAD", fmt.Sprintf("%t", cfg.Features.ShowProgress))

	set("TG_DOWNLOAD_PATH", cfg.Downloads.BasePath)
	set("YOUTUBE_VIDEO_FOLDER", cfg.Downloads.YouTubeVideoPath)
	set("YOUTUBE_AUDIO_FOLDER", cfg.Downloads.YouTubeAudioPath)
	set("YOUTUBE_DEFAULT_DOWNLOAD", cfg.YouTube.DefaultChoice)

	return env
}

// launchCommand returns the binary and arguments for a backend kind.
func launchCommand(kind Kind, cfg *config.Config) (string, []string, error) {
	switch kind {
	case KindNodeClient:
		return cfg.Supervisor.NodeBinary, []string{cfg.Supervisor.NodeClientScript}, nil
	case KindPythonClient:
		return cfg.Supervisor.PythonBinary, []string{cfg.Supervisor.PythonBotScript}, nil
	case KindPythonCopier:
		return cfg.Supervisor.PythonBinary, []string{cfg.Supervisor.CopierScript}, nil
	}
	return "", nil, ErrUnknownKind
}
