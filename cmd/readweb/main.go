package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/readweb/internal/ai"
	"github.com/xxxsen/readweb/internal/config"
	"github.com/xxxsen/readweb/internal/db"
	"github.com/xxxsen/readweb/internal/handler"
	"github.com/xxxsen/readweb/internal/job"
	"github.com/xxxsen/readweb/internal/lease"
	"github.com/xxxsen/readweb/internal/metrics"
	"github.com/xxxsen/readweb/internal/middleware"
	"github.com/xxxsen/readweb/internal/repo"
	"github.com/xxxsen/readweb/internal/schedule"
	"github.com/xxxsen/readweb/internal/service"
	"github.com/xxxsen/readweb/internal/summarizer"
)

func main() {
	var (
		configPath string
		envFile    string
	)

	rootCmd := &cobra.Command{
		Use:   "readweb",
		Short: "readweb backend server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "optional .env file loaded before the config")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run readweb server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, envFile)
			if err != nil {
				return err
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, envFile)
			if err != nil {
				return err
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			logutil.GetLogger(context.Background()).Info("migrations applied", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(configPath, envFile string) (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return cfg, nil
}

func openDB(cfg *config.Config) (*sqlx.DB, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return conn, nil
}

func buildSummarizer(cfg *config.Config) (summarizer.Summarizer, error) {
	gen, err := ai.BuildGenerator(cfg.AI.Providers)
	if err != nil {
		return nil, err
	}
	var sum summarizer.Summarizer
	if gen == nil {
		logutil.GetLogger(context.Background()).Warn("no ai provider configured, using stub summarizer")
		sum = summarizer.NewStub()
	} else {
		sum = summarizer.NewLLM(gen, summarizer.LLMConfig{
			MaxCommentChars: cfg.AI.MaxCommentChars,
		})
	}
	sum = summarizer.NewRateLimited(sum, cfg.AI.RatePerMinute, cfg.AI.Burst)
	// ai.timeout covers the rate limit wait as well as the upstream call.
	sum = summarizer.NewTimeout(sum, time.Duration(cfg.AI.Timeout)*time.Second)
	return summarizer.NewCached(sum, cfg.AI.CacheSize, time.Duration(cfg.AI.CacheTTLSeconds)*time.Second), nil
}

func runServer(cfg *config.Config, conn *sqlx.DB) error {
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("lease", cfg.Lease.Type),
		zap.Int("ai_providers", len(cfg.AI.Providers)),
	)

	sum, err := buildSummarizer(cfg)
	if err != nil {
		return fmt.Errorf("init summarizer: %w", err)
	}
	locker, err := lease.New(cfg.Lease)
	if err != nil {
		return fmt.Errorf("init lease: %w", err)
	}
	if closer, ok := locker.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	novelRepo := repo.NewNovelRepo(conn)
	commentRepo := repo.NewCommentRepo(conn)
	summaryRepo := repo.NewSummaryRepo(conn)

	novelService := service.NewNovelService(novelRepo)
	commentService := service.NewCommentService(conn, novelRepo, commentRepo, service.NewInvalidator(summaryRepo))
	summaryService := service.NewSummaryService(novelRepo, commentRepo, summaryRepo, sum, locker, recorder, cfg.AI.BatchSize)

	deps := handler.RouterDeps{
		Novels:          handler.NewNovelHandler(novelService),
		Comments:        handler.NewCommentHandler(commentService),
		Summaries:       handler.NewSummaryHandler(summaryService),
		Metrics:         metrics.Handler(registry),
		SummaryCooldown: time.Duration(cfg.Summary.CooldownSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.AccessLog(),
			middleware.CORS(cfg.CORS),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var scheduler *schedule.CronScheduler
	if cfg.Summary.WarmCron != "" {
		scheduler = schedule.NewCronScheduler()
		if err := scheduler.AddJob(job.NewSummaryWarmJob(summaryService, cfg.Summary.WarmBatch), cfg.Summary.WarmCron); err != nil {
			return err
		}
		scheduler.Start(ctx)
	}

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	if scheduler != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := scheduler.Stop(stopCtx); err != nil {
			logutil.GetLogger(context.Background()).Warn("scheduler stop timed out", zap.Error(err))
		}
	}
	return nil
}
