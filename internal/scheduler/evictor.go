// Package scheduler runs the periodic eviction of finished analysis jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"devmatch-workers/internal/common/logger"
	"devmatch-workers/internal/common/metrics"

	"github.com/robfig/cron/v3"
)

const (
	DefaultSpec   = "@every 1h"
	DefaultMaxAge = 24 * time.Hour
)

// Evictable is implemented by jobstore.Store.
type Evictable interface {
	Evict(ctx context.Context, maxAge time.Duration) (int, error)
}

// Evictor wraps robfig/cron and drives Store.Evict on a schedule.
type Evictor struct {
	cron   *cron.Cron
	store  Evictable
	spec   string
	maxAge time.Duration
	logger logger.Logger
}

func NewEvictor(store Evictable, spec string, maxAge time.Duration, log logger.Logger) *Evictor {
	if spec == "" {
		spec = DefaultSpec
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	log = log.WithFields(map[string]interface{}{"component": "evictor"})
	return &Evictor{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{log}))),
		store:  store,
		spec:   spec,
		maxAge: maxAge,
		logger: log,
	}
}

// Start registers the eviction job and starts the cron loop.
func (e *Evictor) Start(ctx context.Context) error {
	_, err := e.cron.AddFunc(e.spec, func() {
		_, _ = e.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	e.cron.Start()
	e.logger.Info("eviction schedule started", map[string]interface{}{
		"spec":   e.spec,
		"maxAge": e.maxAge.String(),
	})
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish.
func (e *Evictor) Stop() {
	<-e.cron.Stop().Done()
	e.logger.Info("eviction schedule stopped", nil)
}

// RunOnce performs a single sweep.
func (e *Evictor) RunOnce(ctx context.Context) (int, error) {
	n, err := e.store.Evict(ctx, e.maxAge)
	if err != nil {
		e.logger.Error("eviction sweep failed", map[string]interface{}{"error": err, "evicted": n})
		return n, err
	}

	metrics.JobsEvicted.Add(float64(n))
	e.logger.Info("eviction sweep complete", map[string]interface{}{"evicted": n})
	return n, nil
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := kvFields(keysAndValues)
	fields["error"] = err
	l.log.Error(msg, fields)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
