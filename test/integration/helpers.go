//go:build integration

// Package integration exercises the real backing services. Each test skips
// unless its service's address is set in the environment, so the suite can
// run piecemeal against whatever docker-compose brings up.
package integration

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/molforge/fragelab/internal/config"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
)

// Environment variables selecting the services under test.
const (
	EnvRedisAddr     = "FRAGELAB_TEST_REDIS_ADDR"
	EnvMinIOEndpoint = "FRAGELAB_TEST_MINIO_ENDPOINT"
	EnvMinIOAccess   = "FRAGELAB_TEST_MINIO_ACCESS_KEY"
	EnvMinIOSecret   = "FRAGELAB_TEST_MINIO_SECRET_KEY"
	EnvMilvusAddr    = "FRAGELAB_TEST_MILVUS_ADDR"
	EnvKafkaBrokers  = "FRAGELAB_TEST_KAFKA_BROKERS"
)

func testLogger() logging.Logger {
	return logging.NewNopLogger()
}

func redisConfig(t *testing.T) config.RedisConfig {
	t.Helper()
	addr := os.Getenv(EnvRedisAddr)
	if addr == "" {
		t.Skipf("%s not set; skipping", EnvRedisAddr)
	}
	return config.RedisConfig{
		Addr:        addr,
		DB:          15,
		DialTimeout: 5 * time.Second,
		KeyPrefix:   "fragelab_test",
		DefaultTTL:  time.Minute,
	}
}

func minioConfig(t *testing.T) config.MinIOConfig {
	t.Helper()
	endpoint := os.Getenv(EnvMinIOEndpoint)
	if endpoint == "" {
		t.Skipf("%s not set; skipping", EnvMinIOEndpoint)
	}
	access := os.Getenv(EnvMinIOAccess)
	if access == "" {
		access = "minioadmin"
	}
	secret := os.Getenv(EnvMinIOSecret)
	if secret == "" {
		secret = "minioadmin"
	}
	return config.MinIOConfig{
		Endpoint:      endpoint,
		AccessKey:     access,
		SecretKey:     secret,
		Bucket:        "fragelab-test",
		PresignExpiry: time.Minute,
	}
}

func milvusConfig(t *testing.T) config.MilvusConfig {
	t.Helper()
	addr := os.Getenv(EnvMilvusAddr)
	if addr == "" {
		t.Skipf("%s not set; skipping", EnvMilvusAddr)
	}
	return config.MilvusConfig{
		Addr:             addr,
		EmbeddingDim:     config.DefaultEmbeddingDim,
		DefaultTopK:      10,
		CollectionPrefix: "fragelab_test_",
	}
}

func kafkaBrokers(t *testing.T) []string {
	t.Helper()
	brokers := os.Getenv(EnvKafkaBrokers)
	if brokers == "" {
		t.Skipf("%s not set; skipping", EnvKafkaBrokers)
	}
	return strings.Split(brokers, ",")
}
