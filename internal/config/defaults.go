package config

const (
	defaultDataDir    = "~/.local/share/gloss/data"
	defaultLogDir     = "~/.local/share/gloss/logs"
	defaultArchiveDir = "~/.local/share/gloss/exports"
	defaultAPIBind    = "127.0.0.1:7319"

	defaultPoolSize            = 3
	defaultMaxAttempts         = 3
	defaultRetryInitialSeconds = 2
	defaultRetryMaxSeconds     = 30
	defaultRequestTimeout      = 120
	defaultPollInterval        = 2

	defaultAIBaseURL = "http://127.0.0.1:8760"
	defaultAIModel   = "gloss-enhance-1"

	defaultStorageBaseURL = "http://127.0.0.1:8761"

	defaultDamSubfolderPattern = "date"
	defaultDamVisibility       = "private"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			ArchiveDir: defaultArchiveDir,
			APIBind:    defaultAPIBind,
		},
		Processing: Processing{
			PoolSize:            defaultPoolSize,
			MaxAttempts:         defaultMaxAttempts,
			RetryInitialSeconds: defaultRetryInitialSeconds,
			RetryMaxSeconds:     defaultRetryMaxSeconds,
			RequestTimeout:      defaultRequestTimeout,
			PollInterval:        defaultPollInterval,
		},
		AI: AI{
			BaseURL: defaultAIBaseURL,
			Model:   defaultAIModel,
		},
		Storage: Storage{
			BaseURL: defaultStorageBaseURL,
		},
		Dam: Dam{
			SubfolderPattern: defaultDamSubfolderPattern,
			Visibility:       defaultDamVisibility,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
