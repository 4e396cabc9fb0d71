package config

import "runtime"

const (
	defaultDataDir               = "~/.local/share/inkwell"
	defaultLogDir                = "~/.local/share/inkwell/logs"
	defaultTargetDir             = "~/inkwell/converted"
	defaultMaxRetries            = 5
	defaultTimeoutSeconds        = 300
	defaultSofficeBinary         = "soffice"
	defaultQueueCapacityFactor   = 10
	defaultIdleSeconds           = 60
	defaultIngestIntervalSeconds = 60
	defaultAdmitIntervalSeconds  = 5
	defaultIngestParallelism     = 4
	defaultRecentLimit           = 200
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	core := runtime.NumCPU()
	maxWorkers := core + 1
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			TargetDir: defaultTargetDir,
		},
		Pool: Pool{
			CoreWorkers:   core,
			MaxWorkers:    maxWorkers,
			QueueCapacity: maxWorkers * defaultQueueCapacityFactor,
			IdleSeconds:   defaultIdleSeconds,
		},
		Convert: Convert{
			MaxRetries:     defaultMaxRetries,
			TimeoutSeconds: defaultTimeoutSeconds,
			SofficeBinary:  defaultSofficeBinary,
		},
		Scheduler: Scheduler{
			IngestIntervalSeconds: defaultIngestIntervalSeconds,
			AdmitIntervalSeconds:  defaultAdmitIntervalSeconds,
			IngestParallelism:     defaultIngestParallelism,
			RecentLimit:           defaultRecentLimit,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
