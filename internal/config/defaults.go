package config

const (
	defaultDataDir             = "~/.local/share/apogee"
	defaultLogDir              = "~/.local/share/apogee/logs"
	defaultQueuePollSeconds    = 1
	defaultQueueWorkers        = 2
	defaultMineTimeoutSeconds  = 300
	defaultResearchTimeoutSecs = 120
	defaultScriptTimeoutSecs   = 180
	defaultReviewTimeoutSecs   = 60
	defaultApprovalTimeoutHrs  = 48
	defaultApprovalPollSeconds = 60
	defaultSchedule            = "0 8 * * *"
	defaultMaxScriptAttempts   = 2
	defaultSimilarityThreshold = 0.75
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "anthropic/claude-sonnet-4.5"
	defaultLLMTimeoutSeconds   = 60
	defaultNtfyTimeoutSeconds  = 10
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
		Queue: Queue{
			PollIntervalSeconds:    defaultQueuePollSeconds,
			Workers:                defaultQueueWorkers,
			MineTimeoutSeconds:     defaultMineTimeoutSeconds,
			ResearchTimeoutSeconds: defaultResearchTimeoutSecs,
			ScriptTimeoutSeconds:   defaultScriptTimeoutSecs,
			ReviewTimeoutSeconds:   defaultReviewTimeoutSecs,
		},
		Approval: Approval{
			TimeoutHours:        defaultApprovalTimeoutHrs,
			PollIntervalSeconds: defaultApprovalPollSeconds,
		},
		Pipeline: Pipeline{
			Schedule:            defaultSchedule,
			MaxScriptAttempts:   defaultMaxScriptAttempts,
			SimilarityThreshold: defaultSimilarityThreshold,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
