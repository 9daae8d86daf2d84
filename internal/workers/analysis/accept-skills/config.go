// internal/workers/analysis/accept-skills/config.go
package acceptskills

import (
	"time"

	"devmatch-workers/internal/common/config"
)

type Config struct {
	Enabled bool
	Timeout time.Duration
}

func LoadConfig(appCfg *config.Config) *Config {
	wc := config.GetWorkerConfig(appCfg, TaskType)
	cfg := &Config{
		Enabled: wc.Enabled,
		Timeout: config.GetDuration(wc.Timeout),
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg
}
