package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_USER", "testuser")
	t.Setenv("DB_PASSWORD", "testpass")
	t.Setenv("DB_NAME", "testdb")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("RABBITMQ_HOST", "broker")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PAYLOAD_CACHE_TTL", "30s")
	t.Setenv("WORKER_PREFETCH", "4")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "db", cfg.DBHost)
	assert.Equal(t, "5433", cfg.DBPort)
	assert.Equal(t, "testuser", cfg.DBUser)
	assert.Equal(t, "testpass", cfg.DBPassword)
	assert.Equal(t, "testdb", cfg.DBName)
	assert.Equal(t, "cache", cfg.RedisHost)
	assert.Equal(t, "6380", cfg.RedisPort)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "broker", cfg.RabbitMQHost)
	assert.Equal(t, "test-secret", cfg.JWTSecret)
	assert.Equal(t, 30*time.Second, cfg.PayloadCacheTTL)
	assert.Equal(t, 4, cfg.WorkerPrefetch)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("PAYLOAD_CACHE_TTL", "")
	t.Setenv("WORKER_PREFETCH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8006", cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 10*time.Minute, cfg.PayloadCacheTTL)
	assert.Equal(t, 10, cfg.WorkerPrefetch)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	t.Setenv("WORKER_PREFETCH", "many")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("WORKER_PREFETCH", "")
	t.Setenv("PAYLOAD_CACHE_TTL", "forever")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("PAYLOAD_CACHE_TTL", "")
	t.Setenv("STORE_DRIVER", "mongo")
	_, err = Load()
	assert.Error(t, err)
}

func TestConnectionStrings(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "herald", DBSSLMode: "disable",
		RabbitMQHost: "mq", RabbitMQPort: "5672", RabbitMQUser: "guest", RabbitMQPassword: "secret",
	}

	assert.Equal(t, "host=db user=u password=p dbname=herald port=5432 sslmode=disable", cfg.PostgresDSN())
	assert.Equal(t, "amqp://guest:secret@mq:5672/", cfg.RabbitMQURL())
}
