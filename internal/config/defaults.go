package config

const (
	defaultDataDir             = "~/.local/share/clipper"
	defaultLogDir              = "~/.local/share/clipper/logs"
	defaultContactsPath        = "~/.config/clipper/contacts.json"
	defaultRequestTimeout      = 120
	defaultHealthTimeout       = 5
	defaultHealthPath          = "/health"
	defaultQueuePollInterval   = 2
	defaultErrorRetryInterval  = 10
	defaultMaxRetries          = 3
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Endpoint: Endpoint{
			RequestTimeout: defaultRequestTimeout,
			HealthTimeout:  defaultHealthTimeout,
			HealthPath:     defaultHealthPath,
		},
		Transport: Transport{
			AllowMetered: false,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			MaxRetries:         defaultMaxRetries,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Uploads:        true,
			Errors:         true,
			QueueDrained:   true,
		},
		Contacts: Contacts{
			Path: defaultContactsPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
