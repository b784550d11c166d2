package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.RemoteAnalysisEnabled())
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
port: "8080"
log_level: debug
database:
  driver: postgres
  dsn: host=db user=app
ai:
  api_key: file-key
  timeout: 3s
kafka:
  brokers: [k1:9092]
  audit_topic: audit-file
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	cfg, err := LoadFile(path, envMap(map[string]string{
		"PORT":              "9090",
		"OPENAI_TIMEOUT":    "750ms",
		"KAFKA_BROKERS":     "a:9092, b:9092",
		"ALLOWED_ORIGINS":   "https://ops.example.com",
		"SEED_SAMPLE_DATA":  "true",
		"REDIS_ADDR":        "localhost:6379",
		"SLACK_BOT_TOKEN":   "xoxb",
		"ADMIN_EMAIL":       "admin@example.com",
		"OPENAI_MAX_TOKENS": "",
	}))
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=db user=app", cfg.Database.DSN)
	assert.Equal(t, "file-key", cfg.AI.APIKey)
	assert.Equal(t, 750*time.Millisecond, cfg.AI.Timeout)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "audit-file", cfg.Kafka.AuditTopic)
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.SeedSampleData)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "xoxb", cfg.Slack.BotToken)
	assert.Equal(t, "admin@example.com", cfg.Email.AdminEmail)
	assert.Equal(t, 0, cfg.AI.MaxTokens)
	assert.True(t, cfg.RemoteAnalysisEnabled())
}

func TestInvalidEnvValuesKeepDefaults(t *testing.T) {
	cfg, err := LoadFile("", envMap(map[string]string{
		"OPENAI_TIMEOUT":   "soon",
		"DISABLE_AI":       "maybe",
		"REDIS_DB":         "x",
		"SEED_SAMPLE_DATA": "nope",
	}))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.AI.Timeout)
	assert.False(t, cfg.AI.Disabled)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.False(t, cfg.SeedSampleData)
}

func TestDisableAIOverridesKey(t *testing.T) {
	cfg, err := LoadFile("", envMap(map[string]string{"OPENAI_API_KEY": "k", "DISABLE_AI": "true"}))
	require.NoError(t, err)
	assert.False(t, cfg.RemoteAnalysisEnabled())
}

func TestMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0o600))
	_, err := LoadFile(path, envMap(nil))
	assert.Error(t, err)
}

func TestConfigureLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.GetLevel())
	defer logrus.SetFormatter(&logrus.TextFormatter{})

	Config{LogLevel: "warn", LogFormat: "json"}.ConfigureLogging()
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	_, isJSON := logrus.StandardLogger().Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)

	Config{LogLevel: "loud"}.ConfigureLogging()
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}
