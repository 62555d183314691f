package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Downloads  DownloadsConfig  `mapstructure:"downloads"`
	Transfer   TransferConfig   `mapstructure:"transfer"`
	YouTube    YouTubeConfig    `mapstructure:"youtube"`
	Forward    ForwardConfig    `mapstructure:"forward"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Features   FeaturesConfig   `mapstructure:"features"`
	LinkTokens LinkTokensConfig `mapstructure:"link_tokens"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// TelegramConfig holds platform credentials shared by the managed backends.
type TelegramConfig struct {
	APIID            int    `mapstructure:"api_id"`
	APIHash          string `mapstructure:"api_hash"`
	BotToken         string `mapstructure:"bot_token"`
	AuthorizedUserID int64  `mapstructure:"authorized_user_id"`
	Session          string `mapstructure:"session"`
	SessionString    string `mapstructure:"session_string"`
	Language         string `mapstructure:"language"`
}

// DownloadsConfig holds the destination directory layout.
type DownloadsConfig struct {
	BasePath         string `mapstructure:"base_path"`
	CompletedFolder  string `mapstructure:"completed_folder"`
	LinksFolder      string `mapstructure:"links_folder"`
	TempFolder       string `mapstructure:"temp_folder"`
	YouTubeVideoPath string `mapstructure:"youtube_video_path"`
	YouTubeAudioPath string `mapstructure:"youtube_audio_path"`
}

// TransferConfig controls the download router. The threshold and timeout
// are deployment-tunable rather than hardcoded.
type TransferConfig struct {
	// LargeFileThreshold is the size in bytes above which the large-file
	// protocol must be used. Defaults to 20 MiB, the Bot API file limit.
	LargeFileThreshold int64 `mapstructure:"large_file_threshold"`

	// HTTPTimeoutSeconds bounds the wait for a remote server's response on
	// direct/small-file transfers.
	HTTPTimeoutSeconds int `mapstructure:"http_timeout_seconds"`
}

// YouTubeConfig controls the yt-dlp pipeline.
type YouTubeConfig struct {
	BinaryPath     string   `mapstructure:"binary_path"`
	FormatVideo    string   `mapstructure:"format_video"`
	FormatAudio    string   `mapstructure:"format_audio"`
	AudioBitrate   string   `mapstructure:"audio_bitrate"`
	Retries        int      `mapstructure:"retries"`
	LinksSupported []string `mapstructure:"links_supported"`
	DefaultChoice  string   `mapstructure:"default_choice"`
}

// ForwardConfig controls the message-copy engine.
type ForwardConfig struct {
	PythonBinary string `mapstructure:"python_binary"`
	ScriptPath   string `mapstructure:"script_path"`
	ConfigDir    string `mapstructure:"config_dir"`
}

// SupervisorConfig holds the launch commands for the managed backends.
type SupervisorConfig struct {
	NodeBinary       string `mapstructure:"node_binary"`
	PythonBinary     string `mapstructure:"python_binary"`
	NodeClientScript string `mapstructure:"node_client_script"`
	PythonBotScript  string `mapstructure:"python_bot_script"`
	CopierScript     string `mapstructure:"copier_script"`
}

// FeaturesConfig holds feature flags injected into managed backends.
type FeaturesConfig struct {
	MaxParallel     int  `mapstructure:"max_parallel"`
	DownloadTimeout int  `mapstructure:"download_timeout"`
	EnableUnzip     bool `mapstructure:"enable_unzip"`
	EnableUnrar     bool `mapstructure:"enable_unrar"`
	ShowProgress    bool `mapstructure:"show_progress"`
}

// LinkTokensConfig bounds the link-selection correlation table.
type LinkTokensConfig struct {
	Capacity  int    `mapstructure:"capacity"`
	TTLHours  int    `mapstructure:"ttl_hours"`
	SweepCron string `mapstructure:"sweep_cron"`
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.tgmanager")
	}

	v.SetEnvPrefix("TGMANAGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDerivedPaths()

	return cfg, nil
}

// applyDerivedPaths fills folder paths that default relative to the base path.
func (c *Config) applyDerivedPaths() {
	base := c.Downloads.BasePath
	if c.Downloads.CompletedFolder == "" {
		c.Downloads.CompletedFolder = filepath.Join(base, "completed")
	}
	if c.Downloads.LinksFolder == "" {
		c.Downloads.LinksFolder = filepath.Join(base, "links")
	}
	if c.Downloads.TempFolder == "" {
		c.Downloads.TempFolder = filepath.Join(base, "tmp")
	}
	if c.Downloads.YouTubeVideoPath == "" {
		c.Downloads.YouTubeVideoPath = filepath.Join(base, "youtube", "video")
	}
	if c.Downloads.YouTubeAudioPath == "" {
		c.Downloads.YouTubeAudioPath = filepath.Join(base, "youtube", "audio")
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")

	v.SetDefault("telegram.session", "bot_session")
	v.SetDefault("telegram.language", "en_EN")

	v.SetDefault("downloads.base_path", "./downloads")

	v.SetDefault("transfer.large_file_threshold", int64(20*1024*1024))
	v.SetDefault("transfer.http_timeout_seconds", 30)

	v.SetDefault("youtube.binary_path", "yt-dlp")
	v.SetDefault("youtube.format_video", "bestvideo+bestaudio/best")
	v.SetDefault("youtube.format_audio", "bestaudio/best")
	v.SetDefault("youtube.audio_bitrate", "192")
	v.SetDefault("youtube.retries", 5)
	v.SetDefault("youtube.links_supported", []string{"youtube.com", "youtu.be"})
	v.SetDefault("youtube.default_choice", "VIDEO")

	v.SetDefault("forward.python_binary", "python3")
	v.SetDefault("forward.script_path", "./bot_source/python-copier/forwarder.py")
	v.SetDefault("forward.config_dir", "./tmp/config")

	v.SetDefault("supervisor.node_binary", "node")
	v.SetDefault("supervisor.python_binary", "python3")
	v.SetDefault("supervisor.node_client_script", "./bot_source/node-client/index.js")
	v.SetDefault("supervisor.python_bot_script", "./bot_source/main.py")
	v.SetDefault("supervisor.copier_script", "./bot_source/python-copier/forwarder.py")

	v.SetDefault("features.max_parallel", 4)
	v.SetDefault("features.download_timeout", 3600)
	v.SetDefault("features.enable_unzip", true)
	v.SetDefault("features.enable_unrar", true)
	v.SetDefault("features.show_progress", true)

	v.SetDefault("link_tokens.capacity", 1000)
	v.SetDefault("link_tokens.ttl_hours", 24)
	v.SetDefault("link_tokens.sweep_cron", "0 * * * *")
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
