package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBundler(); err != nil {
		return err
	}
	c.normalizeRenderer()
	c.normalizeBrowser()
	c.normalizeStaging()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBundler() error {
	c.Bundler.Binary = strings.TrimSpace(c.Bundler.Binary)
	if c.Bundler.Binary == "" {
		c.Bundler.Binary = defaultBundlerBinary
	}
	if c.Bundler.TimeoutSeconds <= 0 {
		c.Bundler.TimeoutSeconds = defaultBundlerTimeout
	}
	dirs := make([]string, 0, len(c.Bundler.ResolveDirs))
	for _, dir := range c.Bundler.ResolveDirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		expanded, err := expandPath(dir)
		if err != nil {
			return fmt.Errorf("bundler.resolve_dirs: %w", err)
		}
		dirs = append(dirs, expanded)
	}
	c.Bundler.ResolveDirs = dirs
	return nil
}

func (c *Config) normalizeRenderer() {
	c.Renderer.Binary = strings.TrimSpace(c.Renderer.Binary)
	if c.Renderer.Binary == "" {
		c.Renderer.Binary = defaultRendererBinary
	}
	c.Renderer.Container = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Renderer.Container), "."))
	if c.Renderer.Container == "" {
		c.Renderer.Container = defaultContainer
	}
	if c.Renderer.TimeoutSeconds <= 0 {
		c.Renderer.TimeoutSeconds = defaultRendererTimeout
	}
}

func (c *Config) normalizeBrowser() {
	c.Browser.Binary = strings.TrimSpace(c.Browser.Binary)
	if c.Browser.Binary == "" {
		c.Browser.Binary = defaultBrowserBinary
	}
	c.Browser.DownloadURL = strings.TrimSpace(c.Browser.DownloadURL)
	if c.Browser.DownloadURL == "" {
		c.Browser.DownloadURL = defaultBrowserDownloadURL
	}
	if c.Browser.DownloadTimeoutSeconds <= 0 {
		c.Browser.DownloadTimeoutSeconds = defaultBrowserDownloadTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeStaging() {
	if c.Staging.MinFreeGiB < 0 {
		c.Staging.MinFreeGiB = 0
	}
	if c.Staging.MaxAgeHours <= 0 {
		c.Staging.MaxAgeHours = defaultStagingMaxAgeHours
	}
}
