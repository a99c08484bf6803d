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
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/arbor/config"
	"github.com/Ramsey-B/arbor/internal/repositories/events"
	"github.com/Ramsey-B/arbor/pkg/database"
	"github.com/Ramsey-B/arbor/pkg/graph"
	"github.com/Ramsey-B/arbor/pkg/ingest"
	"github.com/Ramsey-B/arbor/pkg/kafka"
	"github.com/Ramsey-B/arbor/pkg/middleware"
	"github.com/Ramsey-B/arbor/pkg/redis"
	"github.com/Ramsey-B/arbor/pkg/resolver"
	"github.com/Ramsey-B/arbor/pkg/routes/health"
	resolverroutes "github.com/Ramsey-B/arbor/pkg/routes/resolver"
	"github.com/Ramsey-B/arbor/pkg/startup"
	"github.com/Ramsey-B/arbor/pkg/tracing"
	"github.com/Ramsey-B/arbor/pkg/tracing/exporters"
)

const serviceVersion = "0.1.0"

func main() {
	// Missing .env is fine; containers set real env vars.
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func run(ctx context.Context, cfg config.Config, logger ectologger.Logger) error {
	shutdownTracing, err := initTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	var (
		db            database.DB
		redisClient   *redis.Client
		graphClient   *graph.Client
		lineage       *graph.LineageService
		consumer      *kafka.Consumer
		producer      *kafka.Producer
		httpServer    *echo.Echo
		healthChecker *health.Checker
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	boot.AddDependency(&startup.Func{
		Name: "database",
		StartFunc: func(ctx context.Context) error {
			db, err = database.Connect(ctx, database.ConnectionConfig{
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
			return err
		},
		StopFunc: func(ctx context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	})

	boot.AddDependency(&startup.Func{
		Name:  "migrations",
		Needs: []string{"database"},
		StartFunc: func(ctx context.Context) error {
			driver, err := migratepg.WithInstance(db.Unsafe().DB, &migratepg.Config{})
			if err != nil {
				return err
			}
			ms := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			return ms.Migrate(cfg.DatabaseName, driver)
		},
	})

	if cfg.RedisEnabled {
		boot.AddDependency(&startup.Func{
			Name: "redis",
			StartFunc: func(ctx context.Context) error {
				redisClient, err = redis.NewClient(redis.Config{
					Host:     cfg.RedisHost,
					Port:     cfg.RedisPort,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				}, logger)
				return err
			},
			StopFunc: func(ctx context.Context) error {
				if redisClient == nil {
					return nil
				}
				return redisClient.Close()
			},
		})
	}

	if cfg.GraphDBEnabled {
		boot.AddDependency(&startup.Func{
			Name: "graph",
			StartFunc: func(ctx context.Context) error {
				graphClient, err = graph.NewClient(graph.Config{
					Host:     cfg.GraphDBHost,
					Port:     cfg.GraphDBPort,
					Username: cfg.GraphDBUser,
					Password: cfg.GraphDBPassword,
				}, logger)
				if err != nil {
					return err
				}
				if err := graphClient.VerifyConnectivity(ctx); err != nil {
					return err
				}
				lineage = graph.NewLineageService(graphClient, logger)
				return nil
			},
			StopFunc: func(ctx context.Context) error {
				if graphClient == nil {
					return nil
				}
				return graphClient.Close(ctx)
			},
		})
	}

	if cfg.KafkaConsumerEnabled {
		needs := []string{"database", "migrations"}
		if cfg.GraphDBEnabled {
			needs = append(needs, "graph")
		}
		boot.AddDependency(&startup.Func{
			Name:  "kafka",
			Needs: needs,
			StartFunc: func(ctx context.Context) error {
				producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaDeadLetterTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, logger)

				repo := events.NewRepository(db, logger)
				processor := ingest.NewProcessor(logger, repo, lineage, producer)
				consumer = kafka.NewConsumer(cfg, logger, processor.HandleMessage)
				return consumer.Start(ctx)
			},
			StopFunc: func(ctx context.Context) error {
				if consumer != nil {
					if err := consumer.Stop(); err != nil {
						return err
					}
				}
				if producer != nil {
					return producer.Close()
				}
				return nil
			},
		})
	}

	httpNeeds := []string{"database", "migrations"}
	if cfg.RedisEnabled {
		httpNeeds = append(httpNeeds, "redis")
	}
	if cfg.GraphDBEnabled {
		httpNeeds = append(httpNeeds, "graph")
	}
	boot.AddDependency(&startup.Func{
		Name:  "http",
		Needs: httpNeeds,
		StartFunc: func(ctx context.Context) error {
			httpServer, healthChecker = buildServer(cfg, logger, db, redisClient, graphClient, lineage)

			go func() {
				addr := fmt.Sprintf(":%d", cfg.Port)
				if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
					logger.WithError(err).Error("HTTP server stopped unexpectedly")
				}
			}()
			healthChecker.SetReady(true)
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			if httpServer == nil {
				return nil
			}
			healthChecker.SetReady(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	})

	if err := boot.Start(ctx); err != nil {
		return err
	}
	logger.WithContext(ctx).WithField("port", cfg.Port).Info("Service started")

	<-ctx.Done()
	logger.Info("Shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return boot.Stop(stopCtx)
}

func buildServer(cfg config.Config, logger ectologger.Logger, db database.DB, redisClient *redis.Client, graphClient *graph.Client, lineage *graph.LineageService) (*echo.Echo, *health.Checker) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.HTTPErrorHandler = middleware.Error(logger)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	var redisPinger health.Pinger
	var cache resolver.StatsCache
	if redisClient != nil {
		redisPinger = redisClient
		cache = redis.NewStatsCache(redisClient, cfg.StatsCacheTTL, logger)
	}

	checker := health.NewChecker(db, redisPinger, graphClient, serviceVersion)
	checker.RegisterRoutes(e)

	selector := events.NewSelector(events.NewRepository(db, logger), events.NewLegacyRepository(db, logger))
	service := resolver.NewService(selector, lineage, cache, logger, cfg.ResolverMaxPageSize)

	handler := resolverroutes.NewHandler(service, resolverroutes.Defaults{
		Ancestors:   cfg.ResolverDefaultAncestors,
		Children:    cfg.ResolverDefaultChildren,
		Generations: cfg.ResolverDefaultGenerations,
		Events:      cfg.ResolverDefaultEvents,
	}, logger)
	handler.Register(e.Group("/api/v1/resolver"))

	return e, checker
}

func initTracing(ctx context.Context, cfg config.Config) (func(), error) {
	var exporter sdktrace.SpanExporter
	if cfg.OTLPEnabled {
		otlp, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		exporter = otlp
	} else {
		exporter = &exporters.ConsoleExporter{}
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}, nil
}
