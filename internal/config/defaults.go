package config

const (
	defaultDataDir             = "~/.local/share/gavel"
	defaultLogDir              = "~/.local/share/gavel/logs"
	defaultAPIBind             = "127.0.0.1:7319"
	defaultWorkerTimeout       = 600
	defaultSimilarityFloor     = 0.55
	defaultAutoAcceptThreshold = 80
	defaultMaxSuggestions      = 5
	defaultMaxCost             = 50.0
	defaultMaxHearings         = 25
	defaultStatePollSeconds    = 5
	defaultSchedulerTick       = 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Workers: Workers{
			RequestTimeout: defaultWorkerTimeout,
		},
		Matching: Matching{
			SimilarityFloor:     defaultSimilarityFloor,
			AutoAcceptThreshold: defaultAutoAcceptThreshold,
			MaxSuggestions:      defaultMaxSuggestions,
		},
		Pipeline: Pipeline{
			MaxCost:          defaultMaxCost,
			MaxHearings:      defaultMaxHearings,
			StatePollSeconds: defaultStatePollSeconds,
		},
		Scheduler: Scheduler{
			Enabled:     true,
			TickSeconds: defaultSchedulerTick,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
