// Package config loads server settings from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "config.yaml"

type Config struct {
	Port           string         `yaml:"port"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	SeedSampleData bool           `yaml:"seed_sample_data"`
	LogLevel       string         `yaml:"log_level"`
	LogFormat      string         `yaml:"log_format"`
	Database       DatabaseConfig `yaml:"database"`
	AI             AIConfig       `yaml:"ai"`
	Redis          RedisConfig    `yaml:"redis"`
	Kafka          KafkaConfig    `yaml:"kafka"`
	Slack          SlackConfig    `yaml:"slack"`
	Email          EmailConfig    `yaml:"email"`
	Pipeline       PipelineConfig `yaml:"pipeline"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type AIConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	Disabled    bool          `yaml:"disabled"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	AuditTopic string   `yaml:"audit_topic"`
}

type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

type EmailConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	From            string `yaml:"from"`
	AdminEmail      string `yaml:"admin_email"`
}

type PipelineConfig struct {
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port: "2000",
		AllowedOrigins: []string{
			"http://localhost:1000",
			"http://127.0.0.1:1000",
		},
		LogLevel:  "info",
		LogFormat: "text",
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "data/disputes.db",
		},
		AI: AIConfig{
			Model:   "gpt-3.5-turbo",
			BaseURL: "https://api.openai.com/v1",
			Timeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			LockTTL: 2 * time.Minute,
		},
		Kafka: KafkaConfig{
			AuditTopic: "dispute-audit",
		},
		Email: EmailConfig{
			Region: "us-east-1",
		},
		Pipeline: PipelineConfig{
			LockTimeout: 30 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at CONFIG_PATH
// (or DefaultPath) if present, then environment overrides.
func Load() (Config, error) {
	path := strings.TrimSpace(os.Getenv("CONFIG_PATH"))
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path, os.LookupEnv)
}

// LoadFile is Load with an explicit file path and environment lookup.
// A missing file is not an error.
func LoadFile(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}
	applyEnv(&cfg, lookup)
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	env := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	str := func(key string, dst *string) {
		if v, ok := env(key); ok {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := env(key); ok {
			*dst = splitList(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := env(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				logrus.WithField("key", key).WithError(err).Warn("ignoring invalid boolean")
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := env(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				logrus.WithField("key", key).WithError(err).Warn("ignoring invalid integer")
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := env(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				logrus.WithField("key", key).WithError(err).Warn("ignoring invalid number")
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := env(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				logrus.WithField("key", key).WithField("value", v).Warn("ignoring invalid duration")
				return
			}
			*dst = d
		}
	}

	str("PORT", &cfg.Port)
	list("ALLOWED_ORIGINS", &cfg.AllowedOrigins)
	boolean("SEED_SAMPLE_DATA", &cfg.SeedSampleData)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	str("DATABASE_DRIVER", &cfg.Database.Driver)
	str("DATABASE_DSN", &cfg.Database.DSN)

	str("OPENAI_API_KEY", &cfg.AI.APIKey)
	str("OPENAI_MODEL", &cfg.AI.Model)
	str("OPENAI_BASE_URL", &cfg.AI.BaseURL)
	float("OPENAI_TEMPERATURE", &cfg.AI.Temperature)
	integer("OPENAI_MAX_TOKENS", &cfg.AI.MaxTokens)
	duration("OPENAI_TIMEOUT", &cfg.AI.Timeout)
	boolean("DISABLE_AI", &cfg.AI.Disabled)

	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	integer("REDIS_DB", &cfg.Redis.DB)
	duration("REDIS_LOCK_TTL", &cfg.Redis.LockTTL)

	list("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	str("KAFKA_AUDIT_TOPIC", &cfg.Kafka.AuditTopic)

	str("SLACK_BOT_TOKEN", &cfg.Slack.BotToken)
	str("SLACK_CHANNEL_ID", &cfg.Slack.ChannelID)

	str("AWS_REGION", &cfg.Email.Region)
	str("AWS_ACCESS_KEY_ID", &cfg.Email.AccessKeyID)
	str("AWS_SECRET_ACCESS_KEY", &cfg.Email.SecretAccessKey)
	str("ALERT_FROM_EMAIL", &cfg.Email.From)
	str("ADMIN_EMAIL", &cfg.Email.AdminEmail)

	duration("PIPELINE_LOCK_TIMEOUT", &cfg.Pipeline.LockTimeout)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RemoteAnalysisEnabled reports whether the remote analyst should be constructed.
func (c Config) RemoteAnalysisEnabled() bool {
	return !c.AI.Disabled && strings.TrimSpace(c.AI.APIKey) != ""
}

// ConfigureLogging applies the level and format to the standard logrus logger.
func (c Config) ConfigureLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.WithField("level", c.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if strings.EqualFold(c.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
