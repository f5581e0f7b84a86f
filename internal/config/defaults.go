package config

const (
	defaultStagingDir             = "~/.local/share/reelforge/staging"
	defaultCacheDir               = "~/.cache/reelforge"
	defaultLogDir                 = "~/.local/share/reelforge/logs"
	defaultBundlerBinary          = "reel-bundler"
	defaultBundlerTimeout         = 600
	defaultRendererBinary         = "reel-renderer"
	defaultRendererTimeout        = 3600
	defaultContainer              = "mp4"
	defaultBrowserBinary          = "headless-chromium"
	defaultBrowserDownloadURL     = "https://dl.reelforge.dev/runtime/linux_x64/headless-chromium"
	defaultBrowserDownloadTimeout = 600
	defaultStagingMinFreeGiB      = 2
	defaultStagingMaxAgeHours     = 24
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			CacheDir:   defaultCacheDir,
			LogDir:     defaultLogDir,
		},
		Bundler: Bundler{
			Binary:         defaultBundlerBinary,
			TimeoutSeconds: defaultBundlerTimeout,
		},
		Renderer: Renderer{
			Binary:         defaultRendererBinary,
			Container:      defaultContainer,
			TimeoutSeconds: defaultRendererTimeout,
		},
		Browser: Browser{
			Binary:                 defaultBrowserBinary,
			AutoDownload:           true,
			DownloadURL:            defaultBrowserDownloadURL,
			DownloadTimeoutSeconds: defaultBrowserDownloadTimeout,
		},
		Staging: Staging{
			MinFreeGiB:  defaultStagingMinFreeGiB,
			MaxAgeHours: defaultStagingMaxAgeHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
