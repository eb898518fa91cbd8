package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultCaptureFPS      = 30
	defaultCaptureWidth    = 1920
	defaultCaptureHeight   = 1080
	defaultOBSPort         = 4455
	defaultMatcherWorkers  = 0 // 0 = GOMAXPROCS
	defaultGroupSizeLimit  = 10
	defaultVolumeMultiply  = 1.0
	defaultGraceTimeout    = 60 * time.Second
	defaultSleepDelay      = 5 * time.Second
	defaultMinFreeDisk     = 10 * GB
	defaultEventBuffer     = 256
	defaultProgressBuffer  = 500
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Capture     CaptureConfig     `mapstructure:"capture"`
	OBS         OBSConfig         `mapstructure:"obs"`
	Matcher     MatcherConfig     `mapstructure:"matcher"`
	OCR         OCRConfig         `mapstructure:"ocr"`
	Editor      EditorConfig      `mapstructure:"editor"`
	Upload      UploadConfig      `mapstructure:"upload"`
	Process     ProcessConfig     `mapstructure:"process"`
	Transcriber TranscriberConfig `mapstructure:"transcriber"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds the sqlite job-history database configuration.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds the asset storage configuration.
type StorageConfig struct {
	BaseDir     string   `mapstructure:"base_dir"`
	TempDir     string   `mapstructure:"temp_dir"`
	MinFreeDisk ByteSize `mapstructure:"min_free_disk"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// CaptureConfig holds the capture device configuration.
type CaptureConfig struct {
	DeviceName string `mapstructure:"device_name"`
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	FPS        int    `mapstructure:"fps"`
}

// OBSConfig holds the recorder websocket connection configuration.
type OBSConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Container string        `mapstructure:"container"` // mkv, mp4
}

// MatcherConfig holds matcher definition configuration.
type MatcherConfig struct {
	ConfigPath string `mapstructure:"config_path"` // YAML matcher definitions
	AssetsDir  string `mapstructure:"assets_dir"`  // template and mask images
	Workers    int    `mapstructure:"workers"`     // 0 = GOMAXPROCS
}

// OCRConfig holds the OCR engine configuration.
type OCRConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // tesseract (empty = $PATH)
	Language   string `mapstructure:"language"`
}

// EditorConfig holds the ffmpeg-backed editor configuration.
type EditorConfig struct {
	FFmpegPath       string  `mapstructure:"ffmpeg_path"`  // empty = auto-detect
	FFprobePath      string  `mapstructure:"ffprobe_path"` // empty = auto-detect
	VolumeMultiplier float64 `mapstructure:"volume_multiplier"`
	GroupSizeLimit   int     `mapstructure:"group_size_limit"`
	FontPath         string  `mapstructure:"font_path"`
	TitleTemplate    string  `mapstructure:"title_template"`
	DescTemplate     string  `mapstructure:"description_template"`
	ChapterTemplate  string  `mapstructure:"chapter_template"`
}

// UploadConfig holds YouTube upload configuration.
type UploadConfig struct {
	CredentialsFile string   `mapstructure:"credentials_file"`
	TokenFile       string   `mapstructure:"token_file"`
	Privacy         string   `mapstructure:"privacy"` // public, unlisted, private
	Tags            []string `mapstructure:"tags"`
	PlaylistID      string   `mapstructure:"playlist_id"`
	CaptionLanguage string   `mapstructure:"caption_language"`
	CaptionName     string   `mapstructure:"caption_name"`
}

// ProcessConfig holds auto-process behavior flags.
type ProcessConfig struct {
	EditAfterPowerOff bool          `mapstructure:"edit_after_power_off"`
	SleepAfterUpload  bool          `mapstructure:"sleep_after_upload"`
	GraceTimeout      time.Duration `mapstructure:"grace_timeout"`
	SleepDelay        time.Duration `mapstructure:"sleep_delay"`
	Schedule          string        `mapstructure:"schedule"` // cron expression, empty = disabled
}

// TranscriberConfig holds speech transcription configuration.
type TranscriberConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BinaryPath string `mapstructure:"binary_path"`
	ModelPath  string `mapstructure:"model_path"`
	Language   string `mapstructure:"language"`
	Device     string `mapstructure:"device"` // microphone device name
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with SPLAT_ using underscores for nesting.
// Example: SPLAT_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/splat-replay")
		v.AddConfigPath("$HOME/.splat-replay")
	}

	v.SetEnvPrefix("SPLAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine: defaults and env vars carry the run.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.dsn", "splat-replay.db")
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.min_free_disk", int64(defaultMinFreeDisk))

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Capture defaults
	v.SetDefault("capture.device_name", "")
	v.SetDefault("capture.width", defaultCaptureWidth)
	v.SetDefault("capture.height", defaultCaptureHeight)
	v.SetDefault("capture.fps", defaultCaptureFPS)

	// OBS defaults
	v.SetDefault("obs.host", "127.0.0.1")
	v.SetDefault("obs.port", defaultOBSPort)
	v.SetDefault("obs.password", "")
	v.SetDefault("obs.timeout", 10*time.Second)
	v.SetDefault("obs.container", "mkv")

	// Matcher defaults
	v.SetDefault("matcher.config_path", "matchers.yaml")
	v.SetDefault("matcher.assets_dir", "assets/matchers")
	v.SetDefault("matcher.workers", defaultMatcherWorkers)

	// OCR defaults
	v.SetDefault("ocr.binary_path", "")
	v.SetDefault("ocr.language", "eng")

	// Editor defaults
	v.SetDefault("editor.ffmpeg_path", "")
	v.SetDefault("editor.ffprobe_path", "")
	v.SetDefault("editor.volume_multiplier", defaultVolumeMultiply)
	v.SetDefault("editor.group_size_limit", defaultGroupSizeLimit)
	v.SetDefault("editor.font_path", "assets/fonts/overlay.ttf")
	v.SetDefault("editor.title_template", "{{.Date}} {{.Match}} {{.Rule}}")
	v.SetDefault("editor.description_template", "Recorded {{.Date}}. {{.Count}} battles.")
	v.SetDefault("editor.chapter_template", "{{.Judgement}} {{.Stage}}")

	// Upload defaults
	v.SetDefault("upload.credentials_file", "credentials.json")
	v.SetDefault("upload.token_file", "token.json")
	v.SetDefault("upload.privacy", "private")
	v.SetDefault("upload.tags", []string{})
	v.SetDefault("upload.playlist_id", "")
	v.SetDefault("upload.caption_language", "en")
	v.SetDefault("upload.caption_name", "game audio")

	// Process defaults
	v.SetDefault("process.edit_after_power_off", true)
	v.SetDefault("process.sleep_after_upload", false)
	v.SetDefault("process.grace_timeout", defaultGraceTimeout)
	v.SetDefault("process.sleep_delay", defaultSleepDelay)
	v.SetDefault("process.schedule", "")

	// Transcriber defaults
	v.SetDefault("transcriber.enabled", false)
	v.SetDefault("transcriber.binary_path", "")
	v.SetDefault("transcriber.model_path", "")
	v.SetDefault("transcriber.language", "en")
	v.SetDefault("transcriber.device", "")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Capture.Width < 1 || c.Capture.Height < 1 {
		return fmt.Errorf("capture dimensions must be positive")
	}
	if c.Capture.FPS < 1 {
		return fmt.Errorf("capture.fps must be at least 1")
	}

	validContainers := map[string]bool{"mkv": true, "mp4": true}
	if !validContainers[c.OBS.Container] {
		return fmt.Errorf("obs.container must be one of: mkv, mp4")
	}

	if c.Editor.VolumeMultiplier <= 0 {
		return fmt.Errorf("editor.volume_multiplier must be positive")
	}
	if c.Editor.GroupSizeLimit < 1 {
		return fmt.Errorf("editor.group_size_limit must be at least 1")
	}

	validPrivacy := map[string]bool{"public": true, "unlisted": true, "private": true}
	if !validPrivacy[c.Upload.Privacy] {
		return fmt.Errorf("upload.privacy must be one of: public, unlisted, private")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RecordedPath returns the directory recorded assets are stored in.
func (c *StorageConfig) RecordedPath() string {
	return filepath.Join(c.BaseDir, "recorded")
}

// EditedPath returns the directory edited assets are stored in.
func (c *StorageConfig) EditedPath() string {
	return filepath.Join(c.BaseDir, "edited")
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return filepath.Join(c.BaseDir, c.TempDir)
}
