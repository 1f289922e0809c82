package scheduler

import (
	"os"
	"strconv"
	"strings"
	"time"

	appconfig "github.com/doseline/doseline/internal/config"
)

// Config controls scheduler intervals, horizons and job selection.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	HorizonDays int
	LockTTL     time.Duration
	// EnabledJobs restricts which jobs this replica runs. Empty means
	// all jobs (monolith mode).
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		JobTimeout:  5 * time.Minute,
		HorizonDays: 7,
		LockTTL:     10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaults.HorizonDays
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

// ProvideConfig derives the scheduler config from the app config plus
// scheduler-specific environment variables.
func ProvideConfig(cfg appconfig.Config) Config {
	out := DefaultConfig()
	out.HorizonDays = cfg.GenerationHorizonDays

	if seconds := envSeconds("SCHEDULER_RUN_INTERVAL_SECONDS"); seconds > 0 {
		out.RunInterval = seconds
	}
	if seconds := envSeconds("SCHEDULER_JOB_TIMEOUT_SECONDS"); seconds > 0 {
		out.JobTimeout = seconds
	}
	if seconds := envSeconds("SCHEDULER_LOCK_TTL_SECONDS"); seconds > 0 {
		out.LockTTL = seconds
	}
	if raw := strings.TrimSpace(os.Getenv("SCHEDULER_ENABLED_JOBS")); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				out.EnabledJobs = append(out.EnabledJobs, trimmed)
			}
		}
	}
	return out.withDefaults()
}

func envSeconds(key string) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
