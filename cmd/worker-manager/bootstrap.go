// cmd/worker-manager/bootstrap.go
package main

import (
	"context"
	"fmt"
	"time"

	"devmatch-workers/internal/common/config"
	"devmatch-workers/internal/common/database"
	"devmatch-workers/internal/common/logger"
	"devmatch-workers/internal/jobstore"
	"devmatch-workers/internal/notify"
)

func connectPostgres(ctx context.Context, cfg config.PostgresConfig, log logger.Logger) (*database.PostgresClient, error) {
	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pg.Ping(pingCtx); err != nil {
			pg.Close()
			return err
		}
		return nil
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	log.Info("PostgreSQL connected successfully", nil)
	return pg, nil
}

// connectRedis returns nil when no address is configured.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (*database.RedisClient, error) {
	if cfg.Address == "" {
		return nil, nil
	}

	var rc *database.RedisClient
	err := retryWithBackoff(func() error {
		var err error
		rc, err = database.NewRedis(cfg)
		if err != nil {
			return err
		}
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return err
		}
		return nil
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		return nil, err
	}
	log.Info("Redis connected successfully", nil)
	return rc, nil
}

func buildJobStore(cfg *config.Config, rc *database.RedisClient) (jobstore.Store, error) {
	opts := jobstore.Options{MaxWorkUnits: cfg.Analysis.MaxWorkUnits}

	switch cfg.JobStore.Backend {
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("jobstore backend redis needs database.redis.address")
		}
		return jobstore.NewRedisStore(rc.Client, cfg.JobStore.KeyPrefix, opts), nil
	default:
		return jobstore.NewMemoryStore(opts), nil
	}
}

// buildNotifier fans out to every enabled channel. A channel that cannot be
// set up is logged and skipped.
func buildNotifier(ctx context.Context, cfg *config.Config, rc *database.RedisClient, log logger.Logger) notify.Notifier {
	var channels notify.Multi

	if cfg.Notifications.Redis.Enabled {
		if rc == nil {
			log.Warn("redis notifications enabled without a redis connection", nil)
		} else {
			channels = append(channels, notify.NewRedisNotifier(rc.Client, cfg.Notifications.Redis.Channel))
		}
	}

	if cfg.Notifications.SNS.Enabled {
		sns, err := notify.NewSNSNotifier(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN)
		if err != nil {
			log.Error("sns notifier unavailable", map[string]interface{}{"error": err})
		} else {
			channels = append(channels, sns)
		}
	}

	if len(channels) == 0 {
		return notify.Nop{}
	}
	return channels
}
