package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCollaborators(); err != nil {
		return err
	}
	if err := c.validateBrowser(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		return errors.New("paths.cache_dir must be set")
	}
	return nil
}

func (c *Config) validateCollaborators() error {
	if c.Bundler.TimeoutSeconds <= 0 {
		return errors.New("bundler.timeout_seconds must be positive")
	}
	if c.Renderer.TimeoutSeconds <= 0 {
		return errors.New("renderer.timeout_seconds must be positive")
	}
	switch c.Renderer.Container {
	case "mp4", "webm", "mov", "mkv":
	default:
		return fmt.Errorf("renderer.container: unsupported container %q", c.Renderer.Container)
	}
	return nil
}

func (c *Config) validateBrowser() error {
	if !c.Browser.AutoDownload {
		return nil
	}
	if strings.TrimSpace(c.Browser.DownloadURL) == "" {
		return errors.New("browser.download_url must be set when browser.auto_download is true")
	}
	if c.Browser.DownloadTimeoutSeconds <= 0 {
		return errors.New("browser.download_timeout_seconds must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
