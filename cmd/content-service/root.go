// cmd/content-service/root.go
package main

import (
	"context"
	"fmt"
	"time"

	"content-workers/internal/common/config"
	"content-workers/internal/common/database"
	"content-workers/internal/common/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "content-service",
	Short:         "Product content generation service and Zeebe workers",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd, reindexCmd, activitiesCmd)
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Load()
}

// runtime holds what every subcommand needs once the config is known.
type runtime struct {
	cfg    *config.Config
	zapLog *zap.Logger
	log    logger.Logger
}

func newRuntime() (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	zapLog := logger.Build(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}).With(zap.String("service", cfg.App.Name), zap.String("environment", cfg.App.Environment))

	return &runtime{cfg: cfg, zapLog: zapLog, log: logger.NewZapAdapter(zapLog)}, nil
}

func (rt *runtime) connectPostgres(ctx context.Context) (*database.PostgresClient, error) {
	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(rt.cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		return nil
	}, 15, 2*time.Second, rt.zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	rt.zapLog.Info("PostgreSQL connected successfully")
	return pg, nil
}

func (rt *runtime) connectRedis(ctx context.Context) (*database.RedisClient, error) {
	var rdb *database.RedisClient
	err := retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(rt.cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, rt.zapLog, "Redis connection")
	if err != nil {
		return nil, err
	}
	rt.zapLog.Info("Redis connected successfully")
	return rdb, nil
}

func (rt *runtime) connectElasticsearch(ctx context.Context) (*database.ElasticsearchClient, error) {
	var es *database.ElasticsearchClient
	err := retryWithBackoff(func() error {
		var err error
		es, err = database.NewElasticsearch(rt.cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return es.Ping(ctx)
	}, 15, 2*time.Second, rt.zapLog, "Elasticsearch connection")
	if err != nil {
		return nil, err
	}
	rt.zapLog.Info("Elasticsearch connected successfully")
	return es, nil
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
