package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/William9701/blockchain-hr-platform/config"
	"github.com/William9701/blockchain-hr-platform/internal/handlers"
	"github.com/William9701/blockchain-hr-platform/internal/repositories/activity"
	"github.com/William9701/blockchain-hr-platform/internal/repositories/agreement"
	"github.com/William9701/blockchain-hr-platform/internal/repositories/profile"
	"github.com/William9701/blockchain-hr-platform/internal/repositories/quarantine"
	"github.com/William9701/blockchain-hr-platform/internal/repositories/watermark"
	"github.com/William9701/blockchain-hr-platform/pkg/database"
	"github.com/William9701/blockchain-hr-platform/pkg/feed"
	"github.com/William9701/blockchain-hr-platform/pkg/httpclient"
	"github.com/William9701/blockchain-hr-platform/pkg/ledger"
	"github.com/William9701/blockchain-hr-platform/pkg/logging"
	"github.com/William9701/blockchain-hr-platform/pkg/middleware"
	"github.com/William9701/blockchain-hr-platform/pkg/projector"
	"github.com/William9701/blockchain-hr-platform/pkg/publish"
	"github.com/William9701/blockchain-hr-platform/pkg/reconcile"
	"github.com/William9701/blockchain-hr-platform/pkg/redis"
	"github.com/William9701/blockchain-hr-platform/pkg/routes/health"
	"github.com/William9701/blockchain-hr-platform/pkg/startup"
	"github.com/William9701/blockchain-hr-platform/pkg/tracing"
	"github.com/William9701/blockchain-hr-platform/pkg/tracing/exporters"
)

const version = "1.0.0"

// dependency adapts closures to the startup lifecycle.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string     { return d.name }
func (d *dependency) DependsOn() []string { return d.dependsOn }
func (d *dependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}
func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:       cfg.LogLevel,
		Pretty:      cfg.PrettyLogs,
		ServiceName: cfg.AppName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exporter, err := newTraceExporter(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to build trace exporter")
		os.Exit(1)
	}
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tracerProvider)
	tracing.SetTracer(tracerProvider.Tracer(cfg.AppName))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracerProvider.Shutdown(shutdownCtx)
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Indexer exited with error")
		os.Exit(1)
	}
}

// newTraceExporter selects the span exporter from configuration; anything
// other than "otlp" falls back to the console exporter.
func newTraceExporter(ctx context.Context, cfg config.Config) (sdktrace.SpanExporter, error) {
	if cfg.TracingExporter == "otlp" {
		return exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.TracingOTLPEndpoint,
			Protocol: cfg.TracingOTLPProtocol,
			Insecure: cfg.TracingOTLPInsecure,
		})
	}
	return &exporters.ConsoleExporter{}, nil
}

func run(ctx context.Context, cfg config.Config, logger ectologger.Logger) error {
	var db database.DB
	var redisClient *redis.Client

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	boot.AddDependency(&dependency{
		name: "database",
		start: func(ctx context.Context) error {
			sqlxDB, err := database.Connect(ctx, database.ConnectConfig{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				UserName:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}

			driver, err := postgres.WithInstance(sqlxDB.DB, &postgres.Config{})
			if err != nil {
				return err
			}

			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
				return err
			}

			db = database.NewDatabaseInstance(sqlxDB, logger)
			return nil
		},
		stop: func(ctx context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	})

	boot.AddDependency(&dependency{
		name: "redis",
		start: func(ctx context.Context) error {
			client, err := redis.NewClient(redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			if err != nil {
				return err
			}
			redisClient = client
			return nil
		},
		stop: func(ctx context.Context) error {
			if redisClient == nil {
				return nil
			}
			return redisClient.Close()
		},
	})

	if err := boot.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = boot.Stop(stopCtx)
	}()

	// Repositories and domain services
	activityRepo := activity.NewRepository(db, logger)
	agreementRepo := agreement.NewRepository(db, logger)
	profileRepo := profile.NewRepository(db, logger)
	watermarkRepo := watermark.NewRepository(db, logger)
	quarantineRepo := quarantine.NewRepository(db, logger)

	gateway := ledger.NewGateway(ledger.GatewayConfig{
		BaseURL: cfg.LedgerGatewayURL,
		Timeout: cfg.LedgerRequestTimeout,
	}, httpclient.NewClient(httpclient.DefaultConfig(), logger), logger)

	sink := publish.NewSink(redisClient, logger, cfg.RedisChannelPrefix)
	applier := projector.New(profileRepo, logger, cfg.LedgerPlatformFeeBasisPoint)

	engine := reconcile.NewEngine(reconcile.Config{
		WorkerCount:  cfg.ReconcileWorkerCount,
		MaxAttempts:  cfg.ReconcileMaxAttempts,
		RetryBackoff: cfg.ReconcileRetryBackoff,
		QueueDepth:   cfg.ReconcileQueueDepth,
	}, gateway, db, activityRepo, agreementRepo, watermarkRepo, quarantineRepo, applier, sink, logger)

	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = engine.Stop() }()

	var consumer *feed.Consumer
	if cfg.KafkaConsumerEnabled {
		consumer = feed.NewConsumer(feed.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			TopicPrefix:   cfg.KafkaTopicPrefix,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, engine.Handle)
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = consumer.Stop() }()
	}

	// HTTP server
	checker := health.NewChecker(db, redisClient, version)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	checker.RegisterRoutes(e)
	handlers.NewAgreementHandler(agreementRepo, logger).RegisterRoutes(e)
	handlers.NewActivityHandler(activityRepo, logger).RegisterRoutes(e)
	handlers.NewProfileHandler(profileRepo, logger).RegisterRoutes(e)
	handlers.NewQuarantineHandler(quarantineRepo, logger).RegisterRoutes(e)
	handlers.NewSessionHandler(profileRepo, gateway, logger).RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on :%d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Close the gap between the stored watermarks and the live feed, then
	// advertise readiness. Overlap with live delivery is absorbed by dedup.
	go func() {
		replayer := feed.NewReplayer(gateway, logger, int(cfg.LedgerReplayBatchSize))
		if err := engine.CatchUp(ctx, replayer); err != nil {
			logger.WithError(err).Error("Catch-up replay failed; readiness withheld")
			return
		}
		checker.SetReady(true)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
