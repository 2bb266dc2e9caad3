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

	"ewintr.nl/capsum/auth"
	"ewintr.nl/capsum/config"
	"ewintr.nl/capsum/fetcher"
	"ewintr.nl/capsum/handler"
	"ewintr.nl/capsum/process"
	"ewintr.nl/capsum/storage"
	"github.com/robfig/cron/v3"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/exp/slog"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

func main() {
	cfg, err := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	postgres, err := storage.NewPostgres(storage.PostgresInfo{
		URL:      cfg.Postgres.URL,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
	})
	if err != nil {
		logger.Error("unable to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer postgres.Close()
	videoRepo := storage.NewPostgresVideoRepository(postgres)

	audioStore, err := storage.NewMinioAudioStore(ctx, storage.MinioInfo{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Region:    cfg.Storage.Region,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Error("unable to connect to object storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var vecRepo storage.VideoVecRepository
	if cfg.Weaviate.Enabled() {
		weaviate, err := storage.NewWeaviate(storage.WeaviateInfo{
			Scheme:       cfg.Weaviate.Scheme,
			Host:         cfg.Weaviate.Host,
			ApiKey:       cfg.Weaviate.APIKey,
			OpenAIApiKey: cfg.OpenAI.APIKey,
		})
		if err != nil {
			logger.Error("unable to create weaviate client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := weaviate.EnsureSchema(ctx); err != nil {
			logger.Error("unable to prepare weaviate schema", slog.String("error", err.Error()))
			os.Exit(1)
		}
		vecRepo = weaviate
	}

	var mdFetcher fetcher.MetadataFetcher
	if cfg.YouTube.APIKey != "" {
		ytClient, err := youtube.NewService(ctx, option.WithAPIKey(cfg.YouTube.APIKey))
		if err != nil {
			logger.Error("unable to create youtube service", slog.String("error", err.Error()))
			os.Exit(1)
		}
		mdFetcher = fetcher.NewYoutube(ytClient)
	}

	httpClient := &http.Client{Timeout: cfg.Caption.FetchTimeout}
	captionFetcher := fetcher.NewCaptionFetcher(httpClient, fetcher.CaptionConfig{
		WatchBaseURL: cfg.Caption.WatchBaseURL,
		Language:     cfg.Caption.Language,
		UserAgent:    cfg.Caption.UserAgent,
	}, logger)

	openAIConfig := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		openAIConfig.BaseURL = cfg.OpenAI.BaseURL
	}
	openAIClient := openai.NewClientWithConfig(openAIConfig)

	procs := process.NewProcessors(
		process.NewExtractor(captionFetcher, mdFetcher, logger),
		process.NewOpenAISummarizer(openAIClient, cfg.OpenAI.Model),
		process.NewOpenAISynthesizer(openAIClient, audioStore),
	)
	pipeline := process.NewPipeline(cfg.Schedule.QueueSize, procs, videoRepo, vecRepo, logger)
	pipeCtx, cancelPipe := context.WithCancel(context.Background())
	defer cancelPipe()
	go pipeline.Run(pipeCtx)

	sweeper := process.NewSweeper(videoRepo, pipeline, logger)
	sweeper.Sweep(ctx)
	scheduler := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(cfg.Schedule.Sweep, func() { sweeper.Sweep(ctx) }); err != nil {
		logger.Error("invalid sweep schedule", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.Miniflux.Enabled() {
		mflx := fetcher.NewMiniflux(fetcher.MinifluxInfo{
			Endpoint: cfg.Miniflux.Endpoint,
			ApiKey:   cfg.Miniflux.APIKey,
		})
		feedFetcher := fetcher.NewFetch(videoRepo, mflx, pipeline, cfg.Miniflux.OwnerID, logger)
		if _, err := scheduler.AddFunc(cfg.Schedule.Feed, func() { feedFetcher.ReadFeeds(ctx) }); err != nil {
			logger.Error("invalid feed schedule", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("feed import enabled", slog.String("owner", cfg.Miniflux.OwnerID))
	}
	scheduler.Start()
	logger.Info("process service started")

	sessions := handler.NewSessions(cfg.Auth.SessionSecret, cfg.Auth.SecureCookie)
	gotrue := auth.NewGoTrue(&http.Client{Timeout: cfg.Caption.FetchTimeout}, auth.GoTrueInfo{
		URL:     cfg.Auth.URL,
		AnonKey: cfg.Auth.AnonKey,
	})
	server, err := handler.NewServer(
		handler.NewVideoAPI(videoRepo, audioStore, vecRepo, pipeline, logger),
		handler.NewAuthAPI(gotrue, sessions, cfg.Auth.RedirectURL, logger),
		cfg.HTTP.RateLimit,
		logger,
	)
	if err != nil {
		logger.Error("unable to create http server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()
	logger.Info("http server started", slog.Int("port", cfg.HTTP.Port))

	<-ctx.Done()
	logger.Info("stopping service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	<-scheduler.Stop().Done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("unable to stop http server", slog.String("error", err.Error()))
	}
	pipeline.Close()
	select {
	case <-pipeline.Done():
	case <-shutdownCtx.Done():
		// unfinished videos are picked up by the sweep after a restart
		cancelPipe()
		<-pipeline.Done()
	}

	logger.Info("service stopped")
}
