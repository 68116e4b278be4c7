package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clipforge/internal/config"
	pg "clipforge/internal/infra/db/postgres"
	"clipforge/internal/infra/ffmpeg"
	"clipforge/internal/infra/logging"
	"clipforge/internal/infra/metrics"
	red "clipforge/internal/infra/redis"
	"clipforge/internal/infra/sched"
	"clipforge/internal/infra/storage"
	"clipforge/internal/infra/web"
	"clipforge/internal/infra/worker"
	"clipforge/internal/infra/ytdlp"
	"clipforge/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	limiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	userRepo := pg.NewPostgresUserRepo(pool)
	jobRepo := pg.NewJobRepo(pool, tm)

	// ---- Adapters ----
	blobStore := storage.NewS3Store(cfg.Storage)
	fetcher := ytdlp.NewFetcher(cfg.Pipeline.YtDlpBin, logger)
	transcoder := ffmpeg.NewTranscoder(cfg.Pipeline.FFmpegBin, logger)

	// ---- Use cases ----
	publisher := usecase.NewArtifactPublisher(blobStore)
	ledgerUC := usecase.NewLedgerUseCase(userRepo, jobRepo, tm, locker, logger)
	userUC := usecase.NewUserUseCase(userRepo, cfg.Auth.SignupCredits, logger)
	jobUC := usecase.NewJobUseCase(userRepo, jobRepo, ledgerUC, fetcher, publisher, cfg.Retention.Window, logger)
	sweepUC := usecase.NewSweepUseCase(jobRepo, publisher, logger)

	// ---- Pipeline ----
	workerPool := worker.NewPool(cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, logger)
	workerPool.Start(ctx)
	processor := worker.NewClipJobProcessor(jobRepo, ledgerUC, publisher, fetcher, transcoder,
		cfg.Pipeline.WorkDir, cfg.Pipeline.JobTimeout, logger)
	go processor.Start(ctx, workerPool)

	// ---- Retention sweep ----
	retention := sched.NewRetentionWorker(cfg.Retention.SweepInterval, sweepUC, logger)
	go func() {
		if err := retention.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("retention worker stopped")
		}
	}()

	// ---- HTTP ----
	authMgr := web.NewAuthManager(cfg.Auth.HMACSecret, cfg.Auth.TokenTTL)
	server := web.NewServer(userUC, jobUC, authMgr, limiter, logger)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
	workerPool.Stop()
	logger.Info().Msg("bye")
}
