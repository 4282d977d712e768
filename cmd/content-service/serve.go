// cmd/content-service/serve.go
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"content-workers/internal/api"
	"content-workers/internal/common/aws"
	"content-workers/internal/common/camunda"
	"content-workers/internal/common/config"
	"content-workers/internal/common/observability"
	"content-workers/internal/common/validation"
	"content-workers/internal/generation"
	"content-workers/internal/llm"
	"content-workers/internal/notify"
	"content-workers/internal/search"
	"content-workers/internal/store"
	at "content-workers/internal/workers/content/approve-topics"
	gc "content-workers/internal/workers/content/generate-content"
	gt "content-workers/internal/workers/content/generate-topics"
	"content-workers/pkg/registry"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when camunda is enabled, the job workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.zapLog.Sync()
		return serve(cmd.Context(), rt)
	},
}

func serve(parent context.Context, rt *runtime) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := rt.cfg
	zapLog := rt.zapLog
	log := rt.log
	zapLog.Info("Starting content service...", zap.String("version", cfg.App.Version))

	shutdownTracing, err := observability.InitTracing(cfg.Tracing, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	obs := observability.New(cfg.App.Name, zapLog)

	// --- Storage ---
	pg, err := rt.connectPostgres(ctx)
	if err != nil {
		return err
	}
	defer pg.Close()

	if current, err := store.CurrentVersion(ctx, pg.DB); err != nil || current < store.LatestVersion() {
		zapLog.Warn("database schema is not current, run the migrate command",
			zap.Int("current", current), zap.Int("latest", store.LatestVersion()), zap.Error(err))
	}

	st := store.New(pg.DB)
	checks := map[string]api.Check{"postgres": pg.Ping}

	var catalog generation.Catalog = st
	if cfg.Database.Redis.Enabled {
		rdb, err := rt.connectRedis(ctx)
		if err != nil {
			return err
		}
		defer rdb.Close()
		catalog = store.NewCachedCatalog(st, rdb, time.Duration(cfg.Database.Redis.CacheTTL)*time.Second, log)
		checks["redis"] = rdb.Ping
	}

	var searcher generation.Searcher
	var indexer generation.ContentIndexer
	if cfg.Database.Elasticsearch.Enabled {
		es, err := rt.connectElasticsearch(ctx)
		if err != nil {
			return err
		}
		idx := search.New(es.Client, cfg.Database.Elasticsearch)
		if err := idx.EnsureIndices(ctx); err != nil {
			zapLog.Warn("could not prepare search indices", zap.Error(err))
		}
		searcher, indexer = idx, idx
		checks["elasticsearch"] = es.Ping
	}

	// --- Notifications ---
	var publisher notify.EventPublisher
	var email notify.EmailSender
	if cfg.Notifications.SNS.Enabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			return fmt.Errorf("sns client: %w", err)
		}
		publisher = sns
	}
	if cfg.Notifications.Email.Enabled {
		ses, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			return fmt.Errorf("ses client: %w", err)
		}
		email = ses
	}

	// --- Pipeline ---
	reg, err := registry.Default()
	if err != nil {
		return err
	}
	validator, err := validation.NewValidator(reg)
	if err != nil {
		return err
	}

	provider := llm.NewOpenAI(cfg.OpenAI, log)
	retriever := generation.NewRetriever(searcher, st, cfg.Generation.CandidatePoolSize, cfg.Generation.CandidateMaxLength, log)
	svc := generation.NewService(generation.Deps{
		Assembler:     generation.NewAssembler(catalog, retriever, cfg.Generation.ProductQueryLimit, log),
		Retriever:     retriever,
		Completer:     provider,
		Images:        provider,
		Topics:        st,
		Content:       st,
		Indexer:       indexer,
		Notifier:      notify.New(cfg.Notifications, publisher, email, log),
		Observability: obs,
		Config:        cfg.Generation,
		Logger:        log,
	})

	// --- Workers ---
	var workers []*camunda.CamundaWorker
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClientWithConfig(ctx, camunda.ConfigFrom(cfg.Camunda))
		if err != nil {
			return fmt.Errorf("zeebe client failed: %w", err)
		}
		defer zeebe.Close()
		checks["camunda"] = zeebe.HealthCheck
		zapLog.Info("Zeebe client connected successfully")

		workers, err = startWorkers(zeebe, cfg, svc, validator, rt)
		if err != nil {
			return err
		}
	}

	// --- HTTP ---
	server := api.New(cfg.HTTP, svc, st, validator, checks, log)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		zapLog.Info("shutdown signal received")
	case err = <-errCh:
		if err != nil {
			zapLog.Error("http server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		zapLog.Error("http shutdown failed", zap.Error(serr))
	}
	obs.Shutdown(shutdownCtx)
	if terr := shutdownTracing(shutdownCtx); terr != nil {
		zapLog.Warn("tracing shutdown failed", zap.Error(terr))
	}

	zapLog.Info("content service stopped")
	return err
}

func startWorkers(zeebe *camunda.Client, cfg *config.Config, svc *generation.Service, validator *validation.Validator, rt *runtime) ([]*camunda.CamundaWorker, error) {
	var workers []*camunda.CamundaWorker
	open := func(taskType string, wc config.WorkerConfig, handler camunda.JobHandler) {
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), taskType, camunda.WorkerOptions{
			MaxJobsActive: wc.MaxJobsActive,
			Timeout:       config.GetDuration(wc.Timeout),
		}, handler, rt.zapLog))
	}

	if config.IsWorkerEnabled(cfg, gt.ActivityID) {
		wc := config.GetWorkerConfig(cfg, gt.ActivityID)
		c := gt.FromWorkerConfig(wc)
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", gt.TaskType, err)
		}
		open(gt.TaskType, wc, gt.NewHandler(c, svc, validator, rt.log))
	}

	if config.IsWorkerEnabled(cfg, gc.ActivityID) {
		wc := config.GetWorkerConfig(cfg, gc.ActivityID)
		c := gc.FromWorkerConfig(wc)
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", gc.TaskType, err)
		}
		open(gc.TaskType, wc, gc.NewHandler(c, svc, validator, rt.log))
	}

	if config.IsWorkerEnabled(cfg, at.ActivityID) {
		wc := config.GetWorkerConfig(cfg, at.ActivityID)
		c := at.FromWorkerConfig(wc)
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", at.TaskType, err)
		}
		open(at.TaskType, wc, at.NewHandler(c, svc, validator, rt.log))
	}

	rt.zapLog.Info("workers registered", zap.Int("count", len(workers)))
	return workers, nil
}
