package config

const (
	defaultLogDir               = "~/.local/share/embymerge/logs"
	defaultLogFile              = "emby-merge-version.log"
	defaultLogRetention         = 7
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultEmbyRequestTimeout   = 30
	defaultServerBind           = "0.0.0.0:5000"
	defaultWebhookPath          = "/emby-webhook"
	defaultNotifyRequestTimeout = 10
	defaultPreferredProvider    = "Tmdb"
	defaultItemType             = "Movie"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Emby: Emby{
			RequestTimeout: defaultEmbyRequestTimeout,
		},
		Server: Server{
			Bind:        defaultServerBind,
			WebhookPath: defaultWebhookPath,
			Metrics:     true,
		},
		Merge: Merge{
			Providers: []string{defaultPreferredProvider},
			ItemTypes: []string{defaultItemType},
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Merges:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format:    defaultLogFormat,
			Level:     defaultLogLevel,
			File:      defaultLogFile,
			Retention: defaultLogRetention,
		},
	}
}
