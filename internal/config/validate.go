package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports configuration values that cannot be repaired by
// normalization.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.TargetDir) == "" {
		problems = append(problems, "paths.target_dir must be set")
	}
	if c.Pool.MaxWorkers < c.Pool.CoreWorkers {
		problems = append(problems, fmt.Sprintf(
			"pool.max_workers (%d) must be >= pool.core_workers (%d)",
			c.Pool.MaxWorkers, c.Pool.CoreWorkers))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
