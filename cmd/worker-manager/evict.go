// cmd/worker-manager/evict.go
package main

import (
	"context"
	"fmt"

	"devmatch-workers/internal/common/config"
	"devmatch-workers/internal/common/logger"
	"devmatch-workers/internal/scheduler"

	"github.com/spf13/cobra"
)

var evictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Run one eviction sweep over the shared job store and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.JobStore.Backend != "redis" {
			return fmt.Errorf("evict needs the redis job store; the memory store lives inside the serve process")
		}

		zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
		defer zapLog.Sync()
		log := logger.NewZapAdapter(zapLog)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		rc, err := connectRedis(ctx, cfg.Database.Redis, log)
		if err != nil {
			return err
		}
		if rc != nil {
			defer rc.Close()
		}

		store, err := buildJobStore(cfg, rc)
		if err != nil {
			return err
		}

		n, err := scheduler.NewEvictor(store, cfg.JobStore.EvictSchedule, config.Hours(cfg.JobStore.RetentionHours), log).RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "evicted %d jobs\n", n)
		return nil
	},
}
