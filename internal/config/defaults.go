package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "fragelab"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBUser     = "fragelab"
	DefaultDBName     = "fragelab"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisDB        = 0
	DefaultRedisTTL       = 6 * time.Hour
	DefaultRedisKeyPrefix = "fragelab:"

	DefaultKafkaBroker   = "localhost:9092"
	DefaultKafkaGroupID  = "fragelab-posing"
	DefaultPoseJobsTopic = "fragelab.pose.jobs"
	DefaultDLQTopic      = "fragelab.pose.jobs.dlq"

	DefaultMilvusAddr       = "localhost:19530"
	DefaultEmbeddingDim     = 2048
	DefaultMilvusIndexType  = "IVF_FLAT"
	DefaultMilvusNList      = 128
	DefaultMilvusTopK       = 10
	DefaultCollectionPrefix = "fragelab_"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "fragelab"

	DefaultNeo4jURI      = "bolt://localhost:7687"
	DefaultNeo4jDatabase = "neo4j"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWorkerConcurrency = 4

	DefaultLibraryPath     = "data/library.sdf"
	DefaultElaborationsDir = "data/elaborations"

	DefaultMaxMolWeight  = 500.0
	DefaultMaxLogP       = 5.0
	DefaultMaxHBA        = 10
	DefaultMaxHBD        = 5
	DefaultMaxViolations = 2

	DefaultNumConformers   = 100
	DefaultConstrainedSeed = 42
	DefaultPoseWorkers     = 4
)

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// It must be called after unmarshalling raw config data and before Validate()
// so that optional-but-defaulted fields are never seen as missing. Fields
// already set by the caller are left unchanged so that explicit configuration
// always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// ── Neo4j ─────────────────────────────────────────────────────────────────
	if cfg.Neo4j.URI == "" {
		cfg.Neo4j.URI = DefaultNeo4jURI
	}
	if cfg.Neo4j.Database == "" {
		cfg.Neo4j.Database = DefaultNeo4jDatabase
	}
	if cfg.Neo4j.ConnectionTimeout == 0 {
		cfg.Neo4j.ConnectionTimeout = 5 * time.Second
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	// DB is an int; 0 is a valid explicit value so we cannot distinguish "not
	// set" from "set to 0". We leave it as-is (0 is also the default).
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.PoseJobsTopic == "" {
		cfg.Kafka.PoseJobsTopic = DefaultPoseJobsTopic
	}
	if cfg.Kafka.DLQTopic == "" {
		cfg.Kafka.DLQTopic = DefaultDLQTopic
	}

	// ── Milvus ────────────────────────────────────────────────────────────────
	if cfg.Milvus.Addr == "" {
		cfg.Milvus.Addr = DefaultMilvusAddr
	}
	if cfg.Milvus.EmbeddingDim == 0 {
		cfg.Milvus.EmbeddingDim = DefaultEmbeddingDim
	}
	if cfg.Milvus.IndexType == "" {
		cfg.Milvus.IndexType = DefaultMilvusIndexType
	}
	if cfg.Milvus.NList == 0 {
		cfg.Milvus.NList = DefaultMilvusNList
	}
	if cfg.Milvus.DefaultTopK == 0 {
		cfg.Milvus.DefaultTopK = DefaultMilvusTopK
	}
	if cfg.Milvus.CollectionPrefix == "" {
		cfg.Milvus.CollectionPrefix = DefaultCollectionPrefix
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = 24 * time.Hour
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Mode == "" {
		cfg.Worker.Mode = "local"
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.HeartbeatInterval == 0 {
		cfg.Worker.HeartbeatInterval = 30 * time.Second
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = 2 * time.Second
	}

	// ── Library ───────────────────────────────────────────────────────────────
	if cfg.Library.Path == "" {
		cfg.Library.Path = DefaultLibraryPath
	}
	if cfg.Library.ElaborationsDir == "" {
		cfg.Library.ElaborationsDir = DefaultElaborationsDir
	}
	if cfg.Library.Source == "" {
		cfg.Library.Source = "local"
	}

	// ── Screening ─────────────────────────────────────────────────────────────
	if cfg.Screening.MaxMolWeight == 0 {
		cfg.Screening.MaxMolWeight = DefaultMaxMolWeight
	}
	if cfg.Screening.MaxLogP == 0 {
		cfg.Screening.MaxLogP = DefaultMaxLogP
	}
	if cfg.Screening.MaxHBA == 0 {
		cfg.Screening.MaxHBA = DefaultMaxHBA
	}
	if cfg.Screening.MaxHBD == 0 {
		cfg.Screening.MaxHBD = DefaultMaxHBD
	}
	if cfg.Screening.MaxViolations == 0 {
		cfg.Screening.MaxViolations = DefaultMaxViolations
	}

	// ── Posing ────────────────────────────────────────────────────────────────
	if cfg.Posing.NumConformers == 0 {
		cfg.Posing.NumConformers = DefaultNumConformers
	}
	// EnsembleSeed 0 means unseeded, which is also the default.
	if cfg.Posing.ConstrainedSeed == 0 {
		cfg.Posing.ConstrainedSeed = DefaultConstrainedSeed
	}
	if cfg.Posing.Strategy == "" {
		cfg.Posing.Strategy = "ensemble"
	}
	if cfg.Posing.Workers == 0 {
		cfg.Posing.Workers = DefaultPoseWorkers
	}

	// ── Logging ───────────────────────────────────────────────────────────────
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if len(cfg.Logging.OutputPaths) == 0 {
		cfg.Logging.OutputPaths = []string{"stdout"}
	}
	if len(cfg.Logging.ErrorOutputPaths) == 0 {
		cfg.Logging.ErrorOutputPaths = []string{"stderr"}
	}
}
