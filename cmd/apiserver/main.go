// Command apiserver runs the fragment-elaboration HTTP API against the full
// backing stack: PostgreSQL for run state, Redis for descriptor caching,
// local disk or MinIO for SDF payloads, Milvus for fingerprint search, Neo4j
// for lineage, and Kafka for asynchronous run dispatch.
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
	httpserver "github.com/molforge/fragelab/internal/interfaces/http"
	"github.com/molforge/fragelab/internal/interfaces/http/handlers"
)

// Build-time variables, set via -ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
)

const (
	startupTimeout = 30 * time.Second

	// localPosesDir receives pose SDF files when the library source is local.
	localPosesDir = "data/poses"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	port := flag.Int("port", 0, "override the configured HTTP port")
	flag.Parse()

	cfg := loadConfig(*configPath)
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: init logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	logger.Info("starting apiserver",
		logging.String("version", version),
		logging.String("commit", gitCommit),
		logging.Int("port", cfg.Server.Port),
	)

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Fatal("apiserver failed", logging.Err(err))
	}
}

// loadConfig reads the named config file, or falls back to defaults plus
// environment overrides when no path is given or the file is missing.
func loadConfig(path string) *config.Config {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return config.MustLoad(path)
		}
		fmt.Fprintf(os.Stderr, "apiserver: config file %s not found, using defaults\n", path)
	}
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func run(cfg *config.Config, configPath string, logger logging.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	// Metrics.
	var (
		appMetrics     *prometheus.AppMetrics
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			Subsystem:            "apiserver",
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, logger)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		appMetrics = prometheus.NewAppMetrics(collector)
		metricsHandler = collector.Handler()
	}

	// Run state.
	conn, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()
	if err := conn.Migrate(); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	repo := pgrepo.NewRunRepository(conn.Pool(), logger)

	// Descriptor cache.
	rdb, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()
	cache := redis.NewCache(rdb, logger)

	// Fragment library and elaboration payloads.
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
		if err := minioClient.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}
		source = minio.NewElaborationStore(minioClient, logger)
		deps.Poses = minio.NewPoseStore(minioClient, logger)
	default:
		source = local.NewElaborationDir(cfg.Library.ElaborationsDir, logger)
		deps.Poses = local.NewPoseDir(localPosesDir, logger)
	}

	// Fingerprint index.
	milvusClient, err := milvus.NewClient(ctx, cfg.Milvus, logger)
	if err != nil {
		return fmt.Errorf("connect milvus: %w", err)
	}
	defer milvusClient.Close()
	if err := milvusClient.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure milvus collection: %w", err)
	}
	index := milvus.NewIndex(milvusClient, logger)

	// Lineage graph.
	neoDriver, err := neo4jdriver.NewDriver(ctx, cfg.Neo4j, logger)
	if err != nil {
		return fmt.Errorf("connect neo4j: %w", err)
	}
	defer neoDriver.Close()
	lineage := neo4jrepo.NewLineageRepo(neoDriver, logger)

	// Asynchronous dispatch only runs through Kafka in distributed mode; in
	// local mode the run service executes async requests on a goroutine.
	if cfg.Worker.Mode == "distributed" {
		tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		if err := tm.EnsureDefaultTopics(ctx); err != nil {
			tm.Close()
			return fmt.Errorf("ensure topics: %w", err)
		}
		tm.Close()

		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:    cfg.Kafka.Brokers,
			MaxRetries: cfg.Kafka.ProducerRetries,
		}, logger)
		if err != nil {
			return fmt.Errorf("init kafka producer: %w", err)
		}
		defer producer.Close()
		deps.Publisher = kafka.NewPoseJobPublisher(producer, cfg.Kafka.PoseJobsTopic)
	}

	// Application services.
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
	deps.Similarity = index
	deps.Lineage = lineage
	deps.Logger = logger
	deps.Metrics = appMetrics

	runSvc, err := appruns.NewService(deps)
	if err != nil {
		return fmt.Errorf("init run service: %w", err)
	}

	// Health probes.
	health := handlers.NewHealthHandler(version, logger, appMetrics)
	health.Register("postgres", handlers.PingFunc(conn.HealthCheck))
	health.Register("redis", rdb)
	health.Register("milvus", milvusClient)
	health.Register("neo4j", handlers.PingFunc(neoDriver.HealthCheck))
	if minioClient != nil {
		health.Register("minio", minioClient)
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:         logger,
		Metrics:        appMetrics,
		Mode:           cfg.Server.Mode,
		Elaboration:    elabSvc,
		Runs:           runSvc,
		Similarity:     index,
		Health:         health,
		MetricsHandler: metricsHandler,
		MetricsPath:    cfg.Metrics.Path,
	})
	srv := httpserver.NewServer(cfg.Server, router, logger)

	// Hot-reload the log level on config file edits.
	if configPath != "" {
		if setter, ok := logger.(logging.LevelSetter); ok {
			config.Watch(configPath, func(updated *config.Config) {
				setter.SetLevel(updated.Logging.Level)
				logger.Info("log level updated", logging.String("level", updated.Logging.Level))
			})
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", logging.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("apiserver stopped")
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
	if sc.MaxHBD > 0 {
		th.MaxHBD = sc.MaxHBD
	}
	if sc.MaxViolations > 0 {
		th.MaxViolations = sc.MaxViolations
	}
	return th
}
