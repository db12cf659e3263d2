package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains input and destination directory configuration.
type Paths struct {
	InputRoot       string `toml:"input_root"`
	OriginalsDir    string `toml:"originals_dir"`
	PreservationDir string `toml:"preservation_dir"`
	EditDir         string `toml:"edit_dir"`
	WorkDir         string `toml:"work_dir"`
	LogDir          string `toml:"log_dir"`
}

// Project contains the archival naming convention.
type Project struct {
	Prefix    string `toml:"prefix"`
	Extension string `toml:"extension"`
}

// Loudness contains Edit Master normalization settings.
type Loudness struct {
	Enabled        bool    `toml:"enabled"`
	TargetLUFS     float64 `toml:"target_lufs"`
	ToleranceLU    float64 `toml:"tolerance_lu"`
	MeasureTimeout int     `toml:"measure_timeout"`
}

// Tools selects the audio engine and external binaries.
type Tools struct {
	Engine         string `toml:"engine"`
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	CommandTimeout int    `toml:"command_timeout"`
}

// Batch contains batch runner settings.
type Batch struct {
	Workers int `toml:"workers"`
}

// Watch contains watch mode settings.
type Watch struct {
	QuietSeconds int `toml:"quiet_seconds"`
}

// Notifications contains ntfy delivery settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for splice.
//
// Configuration sections by subsystem:
//   - Paths: input root and the three destination roles
//   - Project: archival filename prefix and master extension
//   - Loudness: Edit Master target and tolerance
//   - Tools: audio engine selection and tool timeouts
//   - Batch: worker pool size
//   - Watch: new-session settle time
//   - Notifications: ntfy topic for run summaries and failures
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Project       Project       `toml:"project"`
	Loudness      Loudness      `toml:"loudness"`
	Tools         Tools         `toml:"tools"`
	Batch         Batch         `toml:"batch"`
	Watch         Watch         `toml:"watch"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/splice/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	// A missing .env is the common case.
	_ = godotenv.Load()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("splice.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the destination, work, and log directories.
// The input root is never created; it must already hold extraction output.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OriginalsDir, c.Paths.PreservationDir, c.Paths.EditDir, c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MeasureTimeout returns the loudness measurement deadline.
func (c *Config) MeasureTimeout() time.Duration {
	return time.Duration(c.Loudness.MeasureTimeout) * time.Second
}

// CommandTimeout returns the per-invocation deadline for external tools.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Tools.CommandTimeout) * time.Second
}

// WatchQuietPeriod returns how long a session directory must stay idle before processing.
func (c *Config) WatchQuietPeriod() time.Duration {
	return time.Duration(c.Watch.QuietSeconds) * time.Second
}

// NotifyTimeout returns the per-request deadline for ntfy deliveries.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
