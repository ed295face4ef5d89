package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/shrinkray-io/shrinkray/config"
	appcache "github.com/shrinkray-io/shrinkray/internal/app/cache"
	appmodel "github.com/shrinkray-io/shrinkray/internal/app/model"
	apprepository "github.com/shrinkray-io/shrinkray/internal/app/repository"
	appserver "github.com/shrinkray-io/shrinkray/internal/app/server"
	appservice "github.com/shrinkray-io/shrinkray/internal/app/service"
	"github.com/shrinkray-io/shrinkray/internal/app/shortcode"
	"github.com/shrinkray-io/shrinkray/internal/infra/logger"
	infraNATS "github.com/shrinkray-io/shrinkray/internal/infra/nats"
	infraPostgres "github.com/shrinkray-io/shrinkray/internal/infra/postgres"
	infraPrometheus "github.com/shrinkray-io/shrinkray/internal/infra/prometheus"
	infraRedis "github.com/shrinkray-io/shrinkray/internal/infra/redis"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.String("base_url", cfg.Server.BaseURL),
	)

	// The store is the only hard dependency; everything else degrades.
	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.ShortLink{}, &appmodel.ClickEvent{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient := infraRedis.NewClient(cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}
	cacheFacade := appcache.New(redisClient, log)

	linkRepo := apprepository.NewLinkRepository(gormDB)
	clickRepo := apprepository.NewClickEventRepository(gormDB)

	filter := shortcode.NewFilter()
	if codes, err := linkRepo.ListCodes(ctx); err != nil {
		log.Warn("Failed to seed code filter, continuing empty", zap.Error(err))
	} else {
		filter.Seed(codes)
		log.Info("Seeded code filter", zap.Int("codes", len(codes)))
	}

	var clickSink appservice.ClickSink
	if cfg.NATS.Enabled {
		natsConn, js, err := infraNATS.Connect(cfg.NATS)
		if err != nil {
			log.Warn("NATS unavailable, writing click events directly", zap.Error(err))
		} else {
			defer natsConn.Drain()
			consumer := appservice.NewClickConsumer(js, log, clickRepo)
			if err := consumer.Start(); err != nil {
				log.Warn("Failed to start click consumer, writing click events directly", zap.Error(err))
			} else {
				clickSink = appservice.NewClickPublisher(js)
				log.Info("Connected to NATS successfully")
			}
		}
	}
	if clickSink == nil {
		clickSink = appservice.NewDirectClickSink(clickRepo)
	}

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	sweeper := appservice.NewExpirySweeper(log, linkRepo, time.Minute)
	sweeper.Start()
	defer sweeper.Stop()

	shortener := appservice.NewShortenerService(appservice.ShortenerDeps{
		Logger:      log,
		Links:       linkRepo,
		Cache:       cacheFacade,
		Clicks:      clickSink,
		Filter:      filter,
		BaseURL:     cfg.Server.BaseURL,
		URLCacheTTL: time.Duration(cfg.Server.URLCacheTTL) * time.Second,
	})

	analytics := appservice.NewAnalyticsService(appservice.AnalyticsDeps{
		Logger:   log,
		Links:    linkRepo,
		Clicks:   clickRepo,
		Cache:    cacheFacade,
		CacheTTL: time.Duration(cfg.Server.AnalyticsCacheTTL) * time.Second,
	})

	server := appserver.New(appserver.Dependencies{
		Logger:     log,
		Postgres:   pool,
		Redis:      redisClient,
		Cache:      cacheFacade,
		Shortener:  shortener,
		Analytics:  analytics,
		Production: !isDev,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	if err := server.Listen(addr); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
