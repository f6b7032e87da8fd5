// Command worker consumes pose jobs from Kafka and executes them through the
// run pipeline. It shares the apiserver's backing stack but serves only
// health and metrics endpoints over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/molforge/fragelab/internal/application/elaboration"
	appposing "github.com/molforge/fragelab/internal/application/posing"
	appruns "github.com/molforge/fragelab/internal/application/runs"
	appscreening "github.com/molforge/fragelab/internal/application/screening"
	"github.com/molforge/fragelab/internal/config"
	"github.com/molforge/fragelab/internal/domain/fragment"
	domainposing "github.com/molforge/fragelab/internal/domain/posing"
	domainscreening "github.com/molforge/fragelab/internal/domain/screening"
	neo4jdriver "github.com/molforge/fragelab/internal/infrastructure/database/neo4j"
	neo4jrepo "github.com/molforge/fragelab/internal/infrastructure/database/neo4j/repositories"
	"github.com/molforge/fragelab/internal/infrastructure/database/postgres"
	pgrepo "github.com/molforge/fragelab/internal/infrastructure/database/postgres/repositories"
	"github.com/molforge/fragelab/internal/infrastructure/database/redis"
	"github.com/molforge/fragelab/internal/infrastructure/messaging/kafka"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/prometheus"
	"github.com/molforge/fragelab/internal/infrastructure/search/milvus"
	"github.com/molforge/fragelab/internal/infrastructure/storage/local"
	"github.com/molforge/fragelab/internal/infrastructure/storage/minio"
	"github.com/molforge/fragelab/internal/interfaces/http/handlers"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

const (
	startupTimeout = 30 * time.Second
	localPosesDir  = "data/poses"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	healthAddr := flag.String("health-addr", ":9090", "listen address for health and metrics")
	flag.Parse()

	cfg := loadConfig(*configPath)

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: init logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	logger.Info("starting worker",
		logging.String("version", version),
		logging.String("commit", gitCommit),
		logging.String("topic", cfg.Kafka.PoseJobsTopic),
	)

	if err := run(cfg, *healthAddr, logger); err != nil {
		logger.Fatal("worker failed", logging.Err(err))
	}
}

func loadConfig(path string) *config.Config {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return config.MustLoad(path)
		}
		fmt.Fprintf(os.Stderr, "worker: config file %s not found, using defaults\n", path)
	}
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func run(cfg *config.Config, healthAddr string, logger logging.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	var (
		appMetrics     *prometheus.AppMetrics
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			Subsystem:            "worker",
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, logger)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		appMetrics = prometheus.NewAppMetrics(collector)
		metricsHandler = collector.Handler()
	}

	conn, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()
	repo := pgrepo.NewRunRepository(conn.Pool(), logger)

	rdb, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()
	cache := redis.NewCache(rdb, logger)

	library, err := fragment.LoadLibraryFile(cfg.Library.Path)
	if err != nil {
		return fmt.Errorf("load library: %w", err)
	}

	var (
		source      fragment.ElaborationSource
		minioClient *minio.Client
		deps        appruns.Deps
	)
	deps.Repo = repo

	switch cfg.Library.Source {
	case "bucket":
		minioClient, err = minio.NewClient(cfg.MinIO, logger)
		if err != nil {
			return fmt.Errorf("connect minio: %w", err)
		}
		defer minioClient.Close()
		source = minio.NewElaborationStore(minioClient, logger)
		deps.Poses = minio.NewPoseStore(minioClient, logger)
	default:
		source = local.NewElaborationDir(cfg.Library.ElaborationsDir, logger)
		deps.Poses = local.NewPoseDir(localPosesDir, logger)
	}

	milvusClient, err := milvus.NewClient(ctx, cfg.Milvus, logger)
	if err != nil {
		return fmt.Errorf("connect milvus: %w", err)
	}
	defer milvusClient.Close()
	if err := milvusClient.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure milvus collection: %w", err)
	}

	neoDriver, err := neo4jdriver.NewDriver(ctx, cfg.Neo4j, logger)
	if err != nil {
		return fmt.Errorf("connect neo4j: %w", err)
	}
	defer neoDriver.Close()

	elabSvc := elaboration.NewService(library, source, logger, appMetrics)

	screenSvc, err := appscreening.NewService(appscreening.Config{
		Thresholds:  thresholdsFromConfig(cfg.Screening),
		EnablePAINS: cfg.Screening.EnablePAINS,
	}, cache, logger, appMetrics)
	if err != nil {
		return fmt.Errorf("init screening: %w", err)
	}

	poseSvc, err := appposing.NewService(library, domainposing.DefaultToolkit(), appposing.Config{
		Strategy:        domainposing.Strategy(cfg.Posing.Strategy),
		NumConformers:   cfg.Posing.NumConformers,
		EnsembleSeed:    cfg.Posing.EnsembleSeed,
		ConstrainedSeed: cfg.Posing.ConstrainedSeed,
		Workers:         cfg.Posing.Workers,
	}, logger, appMetrics)
	if err != nil {
		return fmt.Errorf("init posing: %w", err)
	}

	deps.Elaboration = elabSvc
	deps.Screening = screenSvc
	deps.Posing = poseSvc
	deps.Similarity = milvus.NewIndex(milvusClient, logger)
	deps.Lineage = neo4jrepo.NewLineageRepo(neoDriver, logger)
	deps.Logger = logger
	deps.Metrics = appMetrics

	runSvc, err := appruns.NewService(deps)
	if err != nil {
		return fmt.Errorf("init run service: %w", err)
	}

	tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}
	if err := tm.EnsureDefaultTopics(ctx); err != nil {
		tm.Close()
		return fmt.Errorf("ensure topics: %w", err)
	}
	tm.Close()

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID,
		Topic:           cfg.Kafka.PoseJobsTopic,
		AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
		Retry: kafka.RetryPolicy{
			MaxRetries:      cfg.Worker.MaxRetries,
			RetryBackoff:    cfg.Worker.RetryBackoff,
			DeadLetterTopic: cfg.Kafka.DLQTopic,
		},
	}, kafka.NewPoseJobHandler(runSvc, logger), logger)
	if err != nil {
		return fmt.Errorf("init consumer: %w", err)
	}

	if err := consumer.Start(context.Background()); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	// Probe endpoints for orchestration; the worker serves no API routes.
	health := handlers.NewHealthHandler(version, logger, appMetrics)
	health.Register("postgres", handlers.PingFunc(conn.HealthCheck))
	health.Register("redis", rdb)
	health.Register("milvus", milvusClient)
	health.Register("neo4j", handlers.PingFunc(neoDriver.HealthCheck))
	if minioClient != nil {
		health.Register("minio", minioClient)
	}

	gin.SetMode(gin.ReleaseMode)
	probes := gin.New()
	probes.GET("/healthz", health.Liveness)
	probes.GET("/readyz", health.Readiness)
	if metricsHandler != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		probes.GET(path, gin.WrapH(metricsHandler))
	}
	healthSrv := &http.Server{Addr: healthAddr, Handler: probes}

	go func() {
		logger.Info("health endpoint listening", logging.String("addr", healthAddr))
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health endpoint error", logging.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", logging.String("signal", sig.String()))

	// Close drains the in-flight message before returning.
	if err := consumer.Close(); err != nil {
		logger.Error("consumer close error", logging.Err(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("health endpoint shutdown error", logging.Err(err))
	}

	logger.Info("worker stopped")
	return nil
}

func thresholdsFromConfig(sc config.ScreeningConfig) domainscreening.Thresholds {
	th := domainscreening.DefaultThresholds()
	if sc.MaxMolWeight > 0 {
		th.MaxMolWeight = sc.MaxMolWeight
	}
	if sc.MaxLogP > 0 {
		th.MaxCLogP = sc.MaxLogP
	}
	if sc.MaxHBA > 0 {
		th.MaxHBA = sc.MaxHBA
	}
	if sc.MaxViolations > 0 {
		th.MaxViolations = sc.MaxViolations
	}
	if sc.MaxHBD > 0 {
		th.MaxHBD = sc.MaxHBD
	}
	return th
}
