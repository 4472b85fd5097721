// Package config holds the complete application configuration, loaded from
// an optional YAML file with environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Catalog scanning configuration
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`

	// Playback session configuration
	Playback PlaybackConfig `yaml:"playback" json:"playback"`

	// Progress persistence configuration
	Progress ProgressConfig `yaml:"progress" json:"progress"`

	// Transcoding configuration
	Transcode TranscodeConfig `yaml:"transcode" json:"transcode"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// CatalogConfig holds catalog builder configuration. Extensions are compared
// case-insensitively and include the leading dot.
type CatalogConfig struct {
	VideoExtensions    []string      `yaml:"video_extensions" json:"video_extensions"`
	AudioExtensions    []string      `yaml:"audio_extensions" json:"audio_extensions"`
	SubtitleExtensions []string      `yaml:"subtitle_extensions" json:"subtitle_extensions"`
	ReadTags           bool          `yaml:"read_tags" json:"read_tags"`
	WatchRoot          bool          `yaml:"watch_root" json:"watch_root"`
	RescanDebounce     time.Duration `yaml:"rescan_debounce" json:"rescan_debounce"`
}

// PlaybackConfig holds session state machine configuration
type PlaybackConfig struct {
	// PrevRestartThreshold is the position beyond which prev() restarts the
	// current item instead of moving back.
	PrevRestartThreshold float64 `yaml:"prev_restart_threshold" json:"prev_restart_threshold"`

	// ShuffleAllowRepeat keeps the shuffle-with-replacement behavior where
	// the same item may be drawn twice in a row.
	ShuffleAllowRepeat bool `yaml:"shuffle_allow_repeat" json:"shuffle_allow_repeat"`
}

// ProgressConfig holds progress persistence and resume configuration
type ProgressConfig struct {
	FileName        string        `yaml:"file_name" json:"file_name"`
	ThrottleWindow  time.Duration `yaml:"throttle_window" json:"throttle_window"`
	PauseSettle     time.Duration `yaml:"pause_settle" json:"pause_settle"`
	ResumeCountdown time.Duration `yaml:"resume_countdown" json:"resume_countdown"`
}

// TranscodeConfig holds codec compatibility pipeline configuration
type TranscodeConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path" json:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path" json:"ffprobe_path"`
	WorkDir     string `yaml:"work_dir" json:"work_dir"`

	// ProblematicExtensions is the set of container extensions that may
	// carry encodings the native renderer cannot decode. Anything else
	// takes the fast path untouched.
	ProblematicExtensions []string `yaml:"problematic_extensions" json:"problematic_extensions"`

	// IncompatibleVideoCodecs are codec families that require re-encoding.
	IncompatibleVideoCodecs []string `yaml:"incompatible_video_codecs" json:"incompatible_video_codecs"`

	// MaxAudioChannels is the channel count above which audio is
	// re-encoded down to stereo.
	MaxAudioChannels int `yaml:"max_audio_channels" json:"max_audio_channels"`

	Preset      string `yaml:"preset" json:"preset"`
	CRF         int    `yaml:"crf" json:"crf"`
	CacheDBPath string `yaml:"cache_db_path" json:"cache_db_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Catalog: CatalogConfig{
			VideoExtensions:    []string{".mp4", ".mkv", ".webm", ".avi", ".mov", ".m4v", ".ts"},
			AudioExtensions:    []string{".mp3", ".flac", ".m4a", ".aac", ".ogg", ".opus", ".wav"},
			SubtitleExtensions: []string{".srt", ".vtt", ".ass", ".ssa", ".sub"},
			ReadTags:           true,
			WatchRoot:          true,
			RescanDebounce:     2 * time.Second,
		},
		Playback: PlaybackConfig{
			PrevRestartThreshold: 3.0,
			ShuffleAllowRepeat:   true,
		},
		Progress: ProgressConfig{
			FileName:        ".playra/progress.json",
			ThrottleWindow:  5 * time.Second,
			PauseSettle:     500 * time.Millisecond,
			ResumeCountdown: 15 * time.Second,
		},
		Transcode: TranscodeConfig{
			FFmpegPath:              "ffmpeg",
			FFprobePath:             "ffprobe",
			WorkDir:                 defaultWorkDir(),
			ProblematicExtensions:   []string{".mkv", ".avi", ".ts", ".wmv", ".flv"},
			IncompatibleVideoCodecs: []string{"hevc", "mpeg2video", "vc1", "msmpeg4v3", "wmv3"},
			MaxAudioChannels:        2,
			Preset:                  "veryfast",
			CRF:                     23,
			CacheDBPath:             filepath.Join(defaultWorkDir(), "probe-cache.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given YAML file path (empty path skips
// the file), then applies environment overrides. Missing files are not an
// error; malformed files are.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides select fields from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("PLAYRA_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PLAYRA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("PLAYRA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PLAYRA_FFMPEG_PATH"); v != "" {
		c.Transcode.FFmpegPath = v
	}
	if v := os.Getenv("PLAYRA_FFPROBE_PATH"); v != "" {
		c.Transcode.FFprobePath = v
	}
	if v := os.Getenv("PLAYRA_WORK_DIR"); v != "" {
		c.Transcode.WorkDir = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Progress.ThrottleWindow <= 0 {
		return fmt.Errorf("progress throttle window must be positive")
	}
	if c.Progress.ResumeCountdown <= 0 {
		return fmt.Errorf("resume countdown must be positive")
	}
	if c.Playback.PrevRestartThreshold < 0 {
		return fmt.Errorf("prev restart threshold must not be negative")
	}
	if c.Transcode.MaxAudioChannels < 1 {
		return fmt.Errorf("max audio channels must be at least 1")
	}
	return nil
}

func defaultWorkDir() string {
	if dir := os.Getenv("PLAYRA_WORK_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), "playra")
}
