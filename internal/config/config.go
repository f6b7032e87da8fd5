// Package config defines all configuration structures for the fragelab
// platform. No I/O or parsing logic lives here, only plain data types and
// validation.
package config

import (
	"fmt"
	"time"

	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN renders the config as a PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// Neo4jConfig holds Neo4j lineage-graph connection parameters.
type Neo4jConfig struct {
	URI                   string        `mapstructure:"uri"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	MaxConnectionPoolSize int           `mapstructure:"max_connection_pool_size"`
	ConnectionTimeout     time.Duration `mapstructure:"connection_timeout"`
	Database              string        `mapstructure:"database"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka producer/consumer parameters for the pose-job queue.
type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	AutoOffsetReset string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	PoseJobsTopic   string   `mapstructure:"pose_jobs_topic"`
	DLQTopic        string   `mapstructure:"dlq_topic"`
	ProducerRetries int      `mapstructure:"producer_retries"`
	BatchSize       int      `mapstructure:"batch_size"`
}

// MilvusConfig holds vector-store connection parameters for fingerprint search.
type MilvusConfig struct {
	Addr             string `mapstructure:"addr"`
	DBName           string `mapstructure:"db_name"`
	EmbeddingDim     int    `mapstructure:"embedding_dim"`
	IndexType        string `mapstructure:"index_type"`
	NList            int    `mapstructure:"nlist"`
	DefaultTopK      int    `mapstructure:"default_top_k"`
	CollectionPrefix string `mapstructure:"collection_prefix"`
}

// MinIOConfig holds object-storage parameters for elaboration inputs and pose
// outputs.
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// WorkerConfig holds background pose-worker execution parameters.
type WorkerConfig struct {
	Mode              string        `mapstructure:"mode"` // "local" | "distributed"
	Concurrency       int           `mapstructure:"concurrency"`
	QueueDepth        int           `mapstructure:"queue_depth"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
}

// LibraryConfig locates the fragment library and its elaboration sets.
type LibraryConfig struct {
	// Path is the SDF file holding the fragment library, in screening order.
	Path string `mapstructure:"path"`
	// ElaborationsDir holds one SDF per elaboration set, named after the
	// canonical selection key.
	ElaborationsDir string `mapstructure:"elaborations_dir"`
	// Source selects where elaboration sets are read from:
	// "local" for ElaborationsDir, "bucket" for the MinIO bucket.
	Source string `mapstructure:"source"`
}

// ScreeningConfig holds druglikeness thresholds and the PAINS toggle.
// A candidate is kept when it breaks fewer than MaxViolations rules.
type ScreeningConfig struct {
	MaxMolWeight  float64 `mapstructure:"max_mol_weight"`
	MaxLogP       float64 `mapstructure:"max_logp"`
	MaxHBA        int     `mapstructure:"max_hba"`
	MaxHBD        int     `mapstructure:"max_hbd"`
	MaxViolations int     `mapstructure:"max_violations"`
	EnablePAINS   bool    `mapstructure:"enable_pains"`
}

// PosingConfig holds conformer generation and scoring parameters.
type PosingConfig struct {
	NumConformers int `mapstructure:"num_conformers"`
	// EnsembleSeed seeds ensemble embedding; 0 draws a fresh random stream
	// per run.
	EnsembleSeed int64 `mapstructure:"ensemble_seed"`
	// ConstrainedSeed seeds constrained embedding, which is deterministic by
	// default.
	ConstrainedSeed int64  `mapstructure:"constrained_seed"`
	Strategy        string `mapstructure:"strategy"` // "ensemble" | "constrained"
	Workers         int    `mapstructure:"workers"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the entire platform.
// Every infrastructure component and application service reads its settings
// from the relevant sub-struct.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Database  DatabaseConfig    `mapstructure:"database"`
	Neo4j     Neo4jConfig       `mapstructure:"neo4j"`
	Redis     RedisConfig       `mapstructure:"redis"`
	Kafka     KafkaConfig       `mapstructure:"kafka"`
	Milvus    MilvusConfig      `mapstructure:"milvus"`
	MinIO     MinIOConfig       `mapstructure:"minio"`
	Worker    WorkerConfig      `mapstructure:"worker"`
	Logging   logging.LogConfig `mapstructure:"logging"`
	Library   LibraryConfig     `mapstructure:"library"`
	Screening ScreeningConfig   `mapstructure:"screening"`
	Posing    PosingConfig      `mapstructure:"posing"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}
	if c.Kafka.PoseJobsTopic == "" {
		return fmt.Errorf("config: kafka.pose_jobs_topic is required")
	}

	// Milvus
	if c.Milvus.Addr == "" {
		return fmt.Errorf("config: milvus.addr is required")
	}
	if c.Milvus.EmbeddingDim < 1 {
		return fmt.Errorf("config: milvus.embedding_dim must be ≥ 1, got %d", c.Milvus.EmbeddingDim)
	}

	// Worker
	switch c.Worker.Mode {
	case "local", "distributed":
	default:
		return fmt.Errorf("config: worker.mode %q is invalid; expected local|distributed", c.Worker.Mode)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be ≥ 1, got %d", c.Worker.Concurrency)
	}

	// Library
	if c.Library.Path == "" {
		return fmt.Errorf("config: library.path is required")
	}
	switch c.Library.Source {
	case "local", "bucket":
	default:
		return fmt.Errorf("config: library.source %q is invalid; expected local|bucket", c.Library.Source)
	}
	if c.Library.Source == "local" && c.Library.ElaborationsDir == "" {
		return fmt.Errorf("config: library.elaborations_dir is required when library.source is \"local\"")
	}

	// Screening
	if c.Screening.MaxMolWeight <= 0 {
		return fmt.Errorf("config: screening.max_mol_weight must be > 0, got %g", c.Screening.MaxMolWeight)
	}
	if c.Screening.MaxViolations < 1 {
		return fmt.Errorf("config: screening.max_violations must be ≥ 1, got %d", c.Screening.MaxViolations)
	}

	// Posing
	if c.Posing.NumConformers < 1 {
		return fmt.Errorf("config: posing.num_conformers must be ≥ 1, got %d", c.Posing.NumConformers)
	}
	switch c.Posing.Strategy {
	case "ensemble", "constrained":
	default:
		return fmt.Errorf("config: posing.strategy %q is invalid; expected ensemble|constrained", c.Posing.Strategy)
	}
	if c.Posing.Workers < 1 {
		return fmt.Errorf("config: posing.workers must be ≥ 1, got %d", c.Posing.Workers)
	}

	// Logging
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q is invalid; expected debug|info|warn|error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: logging.format %q is invalid; expected json|console", c.Logging.Format)
	}

	return nil
}
