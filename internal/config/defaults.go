package config

const (
	defaultDataDir                = "~/.local/share/clipguard"
	defaultLogDir                 = "~/.local/share/clipguard/logs"
	defaultAPIBind                = "127.0.0.1:7490"
	defaultProviderTimeoutSeconds = 30
	defaultProviderRPS            = 5.0
	defaultStreamBaseURL          = "https://stream.mux.com"
	defaultRenditionName          = "high.mp4"
	defaultReadinessAttempts      = 9
	defaultReadinessBaseDelayMS   = 1000
	defaultReadinessMaxDelayMS    = 5000
	defaultRenditionPollAttempts  = 24
	defaultRenditionPollInterval  = 5
	defaultModerationTimeout      = 90
	defaultWorkflowWorkers        = 1
	defaultWorkflowMaxAttempts    = 1
	defaultRetryBackoffSeconds    = 60
	defaultRetryBackoffMaxSeconds = 3600
	defaultQueuePollInterval      = 5
	defaultErrorRetryInterval     = 10
	defaultHeartbeatInterval      = 15
	defaultHeartbeatTimeout       = 600
	defaultNotifyRequestTimeout   = 10
	defaultEventsSubject          = "clipguard.verdicts"
	defaultEventsStream           = "CLIPGUARD"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Provider: Provider{
			StreamBaseURL:         defaultStreamBaseURL,
			RenditionName:         defaultRenditionName,
			RequestTimeoutSeconds: defaultProviderTimeoutSeconds,
			RequestsPerSecond:     defaultProviderRPS,
		},
		Readiness: Readiness{
			Attempts:    defaultReadinessAttempts,
			BaseDelayMS: defaultReadinessBaseDelayMS,
			MaxDelayMS:  defaultReadinessMaxDelayMS,
		},
		Rendition: Rendition{
			PollAttempts:        defaultRenditionPollAttempts,
			PollIntervalSeconds: defaultRenditionPollInterval,
		},
		Moderation: Moderation{
			TimeoutSeconds: defaultModerationTimeout,
		},
		Workflow: Workflow{
			Workers:                defaultWorkflowWorkers,
			MaxAttempts:            defaultWorkflowMaxAttempts,
			RetryBackoffSeconds:    defaultRetryBackoffSeconds,
			RetryBackoffMaxSeconds: defaultRetryBackoffMaxSeconds,
			QueuePollInterval:      defaultQueuePollInterval,
			ErrorRetryInterval:     defaultErrorRetryInterval,
			HeartbeatInterval:      defaultHeartbeatInterval,
			HeartbeatTimeout:       defaultHeartbeatTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Flagged:        true,
			Aborted:        true,
		},
		Events: Events{
			Subject: defaultEventsSubject,
			Stream:  defaultEventsStream,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
