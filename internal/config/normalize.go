package config

import "strings"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePool()
	c.normalizeConvert()
	c.normalizeScheduler()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	for _, field := range []*string{&c.Paths.DataDir, &c.Paths.LogDir, &c.Paths.TargetDir} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}

func (c *Config) normalizePool() {
	defaults := Default().Pool
	if c.Pool.CoreWorkers <= 0 {
		c.Pool.CoreWorkers = defaults.CoreWorkers
	}
	if c.Pool.MaxWorkers < c.Pool.CoreWorkers {
		c.Pool.MaxWorkers = c.Pool.CoreWorkers
	}
	if c.Pool.QueueCapacity <= 0 {
		c.Pool.QueueCapacity = c.Pool.MaxWorkers * defaultQueueCapacityFactor
	}
	if c.Pool.IdleSeconds <= 0 {
		c.Pool.IdleSeconds = defaultIdleSeconds
	}
}

func (c *Config) normalizeConvert() {
	if c.Convert.MaxRetries < 0 {
		c.Convert.MaxRetries = 0
	}
	if c.Convert.TimeoutSeconds <= 0 {
		c.Convert.TimeoutSeconds = defaultTimeoutSeconds
	}
	if strings.TrimSpace(c.Convert.SofficeBinary) == "" {
		c.Convert.SofficeBinary = defaultSofficeBinary
	}
}

func (c *Config) normalizeScheduler() {
	if c.Scheduler.IngestIntervalSeconds <= 0 {
		c.Scheduler.IngestIntervalSeconds = defaultIngestIntervalSeconds
	}
	if c.Scheduler.AdmitIntervalSeconds <= 0 {
		c.Scheduler.AdmitIntervalSeconds = defaultAdmitIntervalSeconds
	}
	if c.Scheduler.IngestParallelism <= 0 {
		c.Scheduler.IngestParallelism = defaultIngestParallelism
	}
	if c.Scheduler.RecentLimit <= 0 {
		c.Scheduler.RecentLimit = defaultRecentLimit
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
