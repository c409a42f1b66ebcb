package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/pyrelog/pyre/config"
	appmodel "github.com/pyrelog/pyre/internal/app/model"
	apprepository "github.com/pyrelog/pyre/internal/app/repository"
	appserver "github.com/pyrelog/pyre/internal/app/server"
	appservice "github.com/pyrelog/pyre/internal/app/service"
	httpUtil "github.com/pyrelog/pyre/internal/http/util"
	"github.com/pyrelog/pyre/internal/infra/logger"
	infraNATS "github.com/pyrelog/pyre/internal/infra/nats"
	infraPostgres "github.com/pyrelog/pyre/internal/infra/postgres"
	infraPrometheus "github.com/pyrelog/pyre/internal/infra/prometheus"
	infraRedis "github.com/pyrelog/pyre/internal/infra/redis"
	"github.com/pyrelog/pyre/internal/patledger"
	"github.com/pyrelog/pyre/internal/ratelimit"
	"github.com/pyrelog/pyre/internal/screen"
	"github.com/pyrelog/pyre/internal/secretid"
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

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Duration("worry_ttl", cfg.Sweep.TTL),
		zap.Duration("sweep_interval", cfg.Sweep.Interval),
		zap.Duration("retention_grace", cfg.Sweep.RetentionGrace),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.Worry{}, &appmodel.LifecycleEvent{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()

	log.Info("Connected to Postgres successfully")

	worryRepo := apprepository.NewWorryRepository(gormDB, pool)
	eventRepo := apprepository.NewLifecycleEventRepository(gormDB)

	// Admission windows and the pat ledger live in Redis when it is
	// configured, otherwise in process memory. In-process state does
	// not survive restarts, which is acceptable for both.
	var (
		limiter ratelimit.Limiter
		ledger  patledger.Ledger
	)
	rlConfig := ratelimit.Config{
		Capacity: cfg.RateLimit.Capacity,
		Window:   cfg.RateLimit.Window,
	}
	if cfg.Redis.Host != "" {
		redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		log.Info("Connected to Redis successfully")

		limiter = ratelimit.NewRedisLimiter(redisClient, rlConfig, "ratelimit")
		ledger = patledger.NewRedisLedger(redisClient, "pat",
			cfg.Sweep.TTL+cfg.Sweep.RetentionGrace)
	} else {
		log.Info("Redis not configured, using in-process rate limiter and pat ledger")
		memLimiter := ratelimit.NewMemoryLimiter(rlConfig, cfg.RateLimit.CleanupInterval)
		defer memLimiter.Close()
		limiter = memLimiter
		ledger = patledger.NewMemoryLedger()
	}

	var publisher *appservice.EventPublisher
	if cfg.NATS.Host != "" {
		natsConn, js, err := infraNATS.Connect(cfg.NATS)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Drain()
		log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

		publisher = appservice.NewEventPublisher(js)
		consumer := appservice.NewEventConsumer(js, log, eventRepo)
		if err := consumer.Start(); err != nil {
			log.Fatal("Failed to start lifecycle event consumer", zap.Error(err))
		}
	} else {
		log.Info("NATS not configured, lifecycle events disabled")
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

	// Prime the id filter so lookups for ids that were never issued can
	// be answered without touching Postgres. The filter is process-local
	// and never propagated, so it only runs in the single-process setup;
	// with Redis configured, sibling instances may be writing to the
	// shared store and their ids would be invisible to this filter.
	var idFilter *secretid.Filter
	if cfg.Redis.Host == "" {
		idFilter = secretid.NewFilter(1_000_000, 0.001)
		liveIDs, err := worryRepo.ListLiveIDs(ctx)
		if err != nil {
			log.Fatal("Failed to prime id filter", zap.Error(err))
		}
		idFilter.Prime(liveIDs)
		log.Info("Primed id filter", zap.Int("live_ids", len(liveIDs)))
	} else {
		log.Info("Skipping id filter, store may have multiple writers")
	}

	contentScreen := screen.New(cfg.Screen.Keywords)
	helplines := cfg.Screen.Helplines
	if len(helplines) == 0 {
		helplines = screen.DefaultHelplines()
	}

	var certificates *httpUtil.CertificateSigner
	if cfg.Certificate.Secret != "" {
		certificates = httpUtil.NewCertificateSigner([]byte(cfg.Certificate.Secret))
	} else {
		log.Warn("Certificate secret not configured, burn certificates disabled")
	}

	svcDeps := appservice.Deps{
		Logger:         log,
		Worries:        worryRepo,
		Ledger:         ledger,
		Screen:         contentScreen,
		IDFilter:       idFilter,
		Publisher:      publisher,
		TTL:            cfg.Sweep.TTL,
		RetentionGrace: cfg.Sweep.RetentionGrace,
	}
	if certificates != nil {
		svcDeps.Certificates = certificates
	}
	worryService := appservice.NewWorryService(svcDeps)

	sweeper := appservice.NewSweeper(log, worryService, cfg.Sweep.Interval)
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.Cron.Secret == "" {
		log.Warn("Cron secret not configured, the cleanup endpoint will reject all callers")
	}

	server := appserver.New(appserver.Dependencies{
		Logger:       log,
		Worries:      worryService,
		Events:       eventRepo,
		Limiter:      limiter,
		LimitCap:     cfg.RateLimit.Capacity,
		Screen:       contentScreen,
		Helplines:    helplines,
		Certificates: certificates,
		CronSecret:   cfg.Cron.Secret,
		BaseURL:      cfg.Server.BaseURL,
	})

	if err := server.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
