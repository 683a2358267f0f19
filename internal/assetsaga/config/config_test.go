// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/assetsaga/internal/assetsaga/events"
	"github.com/innovationmech/assetsaga/pkg/saga/storage"
)

const sampleConfig = `
log:
  level: debug
database:
  host: mysql.internal
  dbname: inventory
storage:
  type: redis
  redis:
    addr: redis.internal:6379
    key_prefix: "saga:"
    terminal_ttl: 72h
events:
  broker: kafka
  kafka:
    brokers: ["k1:9092", "k2:9092"]
    topic: inventory-events
auth:
  jwt:
    secret: file-secret
    issuer: inventory
saga:
  max_retries: 5
  step_timeout: 3s
retry:
  schedule: "@every 1m"
  initial_delay: 10s
tracing:
  enabled: true
  exporter:
    type: console
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assetsaga.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "mysql.internal", cfg.Database.Host)
	assert.Equal(t, "3306", cfg.Database.Port)
	assert.Equal(t, storage.TypeRedis, cfg.Storage.Type)
	assert.Equal(t, "saga:", cfg.Storage.Redis.KeyPrefix)
	assert.Equal(t, 72*time.Hour, cfg.Storage.Redis.TerminalTTL)
	assert.Equal(t, events.BrokerKafka, cfg.Events.Broker)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Kafka.Brokers)
	assert.Equal(t, "inventory-events", cfg.Events.Kafka.Topic)
	assert.Equal(t, "file-secret", cfg.Auth.JWT.Secret)
	assert.Equal(t, "inventory", cfg.Auth.JWT.Issuer)
	assert.Equal(t, 5, cfg.Saga.MaxRetries)
	assert.Equal(t, 3*time.Second, cfg.Saga.StepTimeout)
	assert.Equal(t, "@every 1m", cfg.Retry.Schedule)
	assert.Equal(t, 10*time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, 30*time.Minute, cfg.Retry.MaxDelay)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "console", cfg.Tracing.Exporter.Type)
	assert.Equal(t, "asset-saga", cfg.Tracing.ServiceName)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ASSETSAGA_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("ASSETSAGA_SAGA_MAX_RETRIES", "7")
	t.Setenv("ASSETSAGA_EVENTS_BROKER", "nats")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
	assert.Equal(t, 7, cfg.Saga.MaxRetries)
	assert.Equal(t, events.BrokerNATS, cfg.Events.Broker)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ASSETSAGA_AUTH_JWT_SECRET", "only-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, storage.TypeMemory, cfg.Storage.Type)
	assert.Equal(t, events.BrokerLog, cfg.Events.Broker)
	assert.Equal(t, 3, cfg.Saga.MaxRetries)
	assert.Equal(t, "@every 30s", cfg.Retry.Schedule)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.False(t, cfg.Sentry.Enabled)
	assert.Equal(t, 1.0, cfg.Sentry.SampleRate)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "auth: [unclosed"))
	assert.Error(t, err)

	t.Chdir(t.TempDir())
	_, err = Load("")
	assert.ErrorContains(t, err, "auth.jwt.secret")
}

func TestAssetSagaConfig_Validate(t *testing.T) {
	valid := func() *AssetSagaConfig {
		cfg, err := Load(writeConfig(t, sampleConfig))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*AssetSagaConfig)
		want   string
	}{
		{"unknown storage", func(c *AssetSagaConfig) { c.Storage.Type = "etcd" }, "storage.type"},
		{"sql without dsn", func(c *AssetSagaConfig) { c.Storage.Type = storage.TypeSQL }, "storage.sql.dsn"},
		{"unknown broker", func(c *AssetSagaConfig) { c.Events.Broker = "sqs" }, "events.broker"},
		{"negative retries", func(c *AssetSagaConfig) { c.Saga.MaxRetries = -1 }, "saga.max_retries"},
		{"bad jitter", func(c *AssetSagaConfig) { c.Retry.Jitter = 2 }, "retry.jitter"},
		{"bad multiplier", func(c *AssetSagaConfig) { c.Retry.Multiplier = 0.5 }, "retry.multiplier"},
		{"no database", func(c *AssetSagaConfig) { c.Database.Host = "" }, "database.host"},
		{"sentry without dsn", func(c *AssetSagaConfig) { c.Sentry.Enabled = true }, "sentry DSN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
