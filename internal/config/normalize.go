package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProject()
	c.normalizeLoudness()
	c.normalizeTools()
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = defaultWorkers
	}
	if c.Watch.QuietSeconds <= 0 {
		c.Watch.QuietSeconds = defaultWatchQuietPeriod
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if value, ok := os.LookupEnv("SPLICE_NTFY_TOPIC"); ok && c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = strings.TrimSpace(value)
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("SPLICE_INPUT_ROOT"); ok && strings.TrimSpace(value) != "" {
		c.Paths.InputRoot = strings.TrimSpace(value)
	}
	fields := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.input_root", &c.Paths.InputRoot, defaultInputRoot},
		{"paths.originals_dir", &c.Paths.OriginalsDir, defaultOriginalsDir},
		{"paths.preservation_dir", &c.Paths.PreservationDir, defaultPreservationDir},
		{"paths.edit_dir", &c.Paths.EditDir, defaultEditDir},
		{"paths.work_dir", &c.Paths.WorkDir, defaultWorkDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeProject() {
	c.Project.Prefix = strings.ToLower(strings.TrimSpace(c.Project.Prefix))
	if c.Project.Prefix == "" {
		if value, ok := os.LookupEnv("SPLICE_PREFIX"); ok {
			c.Project.Prefix = strings.ToLower(strings.TrimSpace(value))
		}
	}
	c.Project.Extension = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Project.Extension), "."))
	if c.Project.Extension == "" {
		c.Project.Extension = defaultExtension
	}
}

func (c *Config) normalizeLoudness() {
	if c.Loudness.TargetLUFS == 0 {
		c.Loudness.TargetLUFS = defaultTargetLUFS
	}
	if c.Loudness.ToleranceLU == 0 {
		c.Loudness.ToleranceLU = defaultToleranceLU
	}
	if c.Loudness.MeasureTimeout <= 0 {
		c.Loudness.MeasureTimeout = defaultMeasureTimeout
	}
}

func (c *Config) normalizeTools() {
	c.Tools.Engine = strings.ToLower(strings.TrimSpace(c.Tools.Engine))
	if c.Tools.Engine == "" {
		c.Tools.Engine = defaultEngine
	}
	c.Tools.FFmpegBinary = strings.TrimSpace(c.Tools.FFmpegBinary)
	if c.Tools.FFmpegBinary == "" {
		c.Tools.FFmpegBinary = defaultFFmpegBinary
	}
	c.Tools.FFprobeBinary = strings.TrimSpace(c.Tools.FFprobeBinary)
	if c.Tools.FFprobeBinary == "" {
		c.Tools.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Tools.CommandTimeout <= 0 {
		c.Tools.CommandTimeout = defaultCommandTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
