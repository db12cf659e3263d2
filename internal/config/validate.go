package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. An empty project prefix is
// accepted here because the CLI may supply it per invocation; ValidatePrefix
// is applied once the effective prefix is known.
func (c *Config) Validate() error {
	if c.Project.Prefix != "" {
		if err := ValidatePrefix(c.Project.Prefix); err != nil {
			return err
		}
	}
	if err := c.validateLoudness(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if c.Batch.Workers < 1 {
		return errors.New("batch.workers must be >= 1")
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0 (0 keeps every log)")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic %q must be an http(s) URL", topic)
	}
	return nil
}

// ValidatePrefix checks the short alphabetic project prefix used in master filenames.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return errors.New("project.prefix must be set (or pass --prefix / SPLICE_PREFIX)")
	}
	if len(prefix) > 8 {
		return fmt.Errorf("project.prefix %q must be at most 8 letters", prefix)
	}
	for _, r := range prefix {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return fmt.Errorf("project.prefix %q must contain only ASCII letters", prefix)
		}
	}
	return nil
}

func (c *Config) validateLoudness() error {
	if c.Loudness.ToleranceLU <= 0 {
		return errors.New("loudness.tolerance_lu must be positive")
	}
	if c.Loudness.TargetLUFS >= 0 {
		return errors.New("loudness.target_lufs must be negative")
	}
	if c.Loudness.MeasureTimeout <= 0 {
		return errors.New("loudness.measure_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateTools() error {
	switch c.Tools.Engine {
	case EngineNative, EngineFFmpeg:
	default:
		return fmt.Errorf("tools.engine %q must be %q or %q", c.Tools.Engine, EngineNative, EngineFFmpeg)
	}
	if c.Tools.Engine == EngineNative && c.Project.Extension != "wav" {
		return fmt.Errorf("project.extension %q requires tools.engine %q", c.Project.Extension, EngineFFmpeg)
	}
	if c.Tools.CommandTimeout <= 0 {
		return errors.New("tools.command_timeout must be positive (seconds)")
	}
	return nil
}
