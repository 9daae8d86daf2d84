// cmd/worker-manager/serve.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devmatch-workers/internal/analysis"
	"devmatch-workers/internal/common/camunda"
	"devmatch-workers/internal/common/config"
	"devmatch-workers/internal/common/gemini"
	"devmatch-workers/internal/common/github"
	"devmatch-workers/internal/common/logger"
	"devmatch-workers/internal/common/observability"
	"devmatch-workers/internal/feed"
	"devmatch-workers/internal/matching"
	"devmatch-workers/internal/pipeline"
	"devmatch-workers/internal/repository"
	"devmatch-workers/internal/runner"
	"devmatch-workers/internal/scheduler"
	"devmatch-workers/pkg/registry"

	as "devmatch-workers/internal/workers/analysis/accept-skills"
	ast "devmatch-workers/internal/workers/analysis/analysis-status"
	sa "devmatch-workers/internal/workers/analysis/submit-analysis"
	bf "devmatch-workers/internal/workers/feed/build-feed"
	ro "devmatch-workers/internal/workers/matching/rescore-opportunity"
	rs "devmatch-workers/internal/workers/matching/rescore-seeker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the background pools, the eviction schedule and the Zeebe workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("Starting worker manager...", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	ctx := context.Background()

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		log.Warn("otel exporter unavailable, job instruments disabled", map[string]interface{}{"error": err})
	}

	// --- Storage ---
	pg, err := connectPostgres(ctx, cfg.Database.Postgres, log)
	if err != nil {
		return err
	}
	defer pg.Close()

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
	repo := repository.NewPostgres(pg.DB, config.GetDuration(cfg.Database.Postgres.QueryTimeout))

	// --- Collaborators ---
	gem, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:         cfg.GenAI.APIKey,
		Model:          cfg.GenAI.Model,
		EmbeddingModel: cfg.GenAI.EmbeddingModel,
	})
	if err != nil {
		return err
	}
	inspector := github.NewClient(github.Config{
		BaseURL: cfg.GitHub.APIURL,
		Token:   cfg.GitHub.Token,
		Timeout: config.GetDuration(cfg.GitHub.Timeout),
	})
	analyzer := analysis.NewRepoAnalyzer(gem, inspector, log)

	// --- Background pipeline ---
	jobRunner := runner.New(store, analyzer, runner.Config{
		Workers:            cfg.Analysis.Workers,
		QueueSize:          cfg.Analysis.QueueSize,
		UnitTimeout:        config.GetDuration(cfg.Analysis.UnitTimeout),
		RateLimitPerMinute: cfg.Analysis.RateLimitPerMinute,
		CancelSuperseded:   cfg.Analysis.CancelSuperseded,
	}, obs, log)

	coordinator := matching.NewCoordinator(repo, gem, matching.Config{
		Workers:      cfg.Matching.Workers,
		QueueSize:    cfg.Matching.QueueSize,
		EmbedTimeout: config.GetDuration(cfg.GenAI.EmbedTimeout),
	}, log)

	ranker := feed.NewRanker(repo, feed.Config{
		DefaultLimit:      cfg.Feed.DefaultLimit,
		MaxLimit:          cfg.Feed.MaxLimit,
		ExposureWorkers:   cfg.Feed.ExposureWorkers,
		ExposureQueueSize: cfg.Feed.ExposureQueueSize,
	}, log)

	pipe := pipeline.New(pipeline.Deps{
		Store:    store,
		Runner:   jobRunner,
		Seekers:  repo,
		Rescorer: coordinator,
		Feed:     ranker,
		Notifier: buildNotifier(ctx, cfg, rc, log),
	}, pipeline.Config{
		FreshWindow: config.Hours(cfg.Feed.FreshWindowHours),
	}, log)
	jobRunner.OnFinish(pipe.HandleJobFinished)

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	jobRunner.Start(bgCtx)
	coordinator.Start(bgCtx)
	ranker.Start(bgCtx)

	evictor := scheduler.NewEvictor(store, cfg.JobStore.EvictSchedule, config.Hours(cfg.JobStore.RetentionHours), log)
	if err := evictor.Start(bgCtx); err != nil {
		return err
	}

	// --- Zeebe workers ---
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.Connect(ctx, &camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		}, log)
		if err != nil {
			return err
		}
		registerWorkers(zeebe, cfg, pipe, coordinator, log)
	} else {
		log.Warn("camunda disabled, no workers registered", nil)
	}

	// --- Health & metrics ---
	server := newHTTPServer(cfg.Metrics.Address, pg, zeebe)
	go func() {
		log.Info("http server listening", map[string]interface{}{"address": cfg.Metrics.Address})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", map[string]interface{}{"error": err})
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("Shutdown signal received, stopping workers...", nil)

	// Stop accepting workflow jobs first, then drain the pools.
	if zeebe != nil {
		zeebe.Close()
	}
	evictor.Stop()
	jobRunner.Stop()
	coordinator.Stop()
	ranker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", map[string]interface{}{"error": err})
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Warn("observability shutdown", map[string]interface{}{"error": err})
	}

	log.Info("worker manager stopped", nil)
	return nil
}

func registerWorkers(zeebe *camunda.Client, cfg *config.Config, pipe *pipeline.Pipeline, coordinator *matching.Coordinator, log logger.Logger) {
	reg := registry.Default(cfg.Analysis.MaxWorkUnits)

	submit := sa.NewHandler(sa.LoadConfig(cfg), reg, pipe, log)
	zeebe.Open(sa.TaskType, config.GetWorkerConfig(cfg, sa.TaskType), submit.Handle)

	status := ast.NewHandler(ast.LoadConfig(cfg), reg, pipe, log)
	zeebe.Open(ast.TaskType, config.GetWorkerConfig(cfg, ast.TaskType), status.Handle)

	accept := as.NewHandler(as.LoadConfig(cfg), reg, pipe, log)
	zeebe.Open(as.TaskType, config.GetWorkerConfig(cfg, as.TaskType), accept.Handle)

	rescoreOpp := ro.NewHandler(ro.LoadConfig(cfg), reg, coordinator, log)
	zeebe.Open(ro.TaskType, config.GetWorkerConfig(cfg, ro.TaskType), rescoreOpp.Handle)

	rescoreSeeker := rs.NewHandler(rs.LoadConfig(cfg), reg, coordinator, log)
	zeebe.Open(rs.TaskType, config.GetWorkerConfig(cfg, rs.TaskType), rescoreSeeker.Handle)

	buildFeed := bf.NewHandler(bf.LoadConfig(cfg), reg, pipe, log)
	zeebe.Open(bf.TaskType, config.GetWorkerConfig(cfg, bf.TaskType), buildFeed.Handle)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func newHTTPServer(addr string, db pinger, zeebe *camunda.Client) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", map[string]string{"postgres": err.Error()})
			return
		}
		if zeebe != nil {
			if err := zeebe.HealthCheck(ctx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "not ready", map[string]string{"zeebe": err.Error()})
				return
			}
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})

	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeStatus(w http.ResponseWriter, code int, status string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(details) > 0 {
		body["details"] = details
	}
	json.NewEncoder(w).Encode(body)
}
