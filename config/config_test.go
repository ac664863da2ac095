package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
database:
  driver: memory
  max_retries: 5
jwt:
  secret: test-secret
outbox:
  poll_interval: 250ms
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := writeConfig(t, testConfig)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, uint64(5), cfg.Database.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
	// untouched keys keep their defaults
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, BrokerRedis, cfg.Broker.Kind)
	assert.Equal(t, "read_committed", cfg.Database.Isolation)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := writeConfig(t, testConfig)
	t.Setenv("SCHED_DATABASE_HOST", "db.internal")
	t.Setenv("SCHED_DATABASE_MAX_RETRIES", "7")
	t.Setenv("SCHED_BROKER_KIND", "kafka")
	t.Setenv("SCHED_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, uint64(7), cfg.Database.MaxRetries)
	assert.Equal(t, BrokerKafka, cfg.Broker.Kind)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfigRejectsInvalidDriver(t *testing.T) {
	dir := writeConfig(t, "database:\n  driver: mysql\njwt:\n  secret: s\n")

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "invalid database driver")
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	dir := writeConfig(t, "database:\n  driver: memory\n")

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "jwt secret is required")
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=disable", c.DSN())
}

func TestToWorkerConfig(t *testing.T) {
	c := OutboxConfig{BatchSize: 10, PollInterval: time.Second, RetryAttempts: 4, RetryDelay: 2 * time.Second, Retention: time.Hour}

	wc := c.ToWorkerConfig("appointments")
	assert.Equal(t, "appointments", wc.Topic)
	assert.Equal(t, 10, wc.BatchSize)
	assert.Equal(t, 4, wc.RetryAttempts)
	assert.Equal(t, time.Hour, wc.Retention)
}
