package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App      App      `yaml:"app"`
	HTTP     HTTP     `yaml:"http"`
	Log      Log      `yaml:"log"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Bus      Bus      `yaml:"bus"`
	Client   Client   `yaml:"client"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"contactdesk"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"contactdesk"`
}

type Redis struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"contact-events"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"contact-audit-1"`
}

// Bus configures the cross-session notification channel.
type Bus struct {
	Channel      string        `yaml:"channel" env:"BUS_CHANNEL" env-default:"contactdesk:bus"`
	StorageDir   string        `yaml:"storage_dir" env:"BUS_STORAGE_DIR" env-default:"/tmp/contactdesk-bus"`
	PollInterval time.Duration `yaml:"poll_interval" env:"BUS_POLL_INTERVAL" env-default:"250ms"`
}

// Client configures the entity client's HTTP leg. Timeout and retry are
// explicit policy, not platform defaults: conditional writes stay correct
// only while the cached version token is reasonably fresh.
type Client struct {
	BaseURL    string        `yaml:"base_url" env:"CLIENT_BASE_URL" env-default:"http://localhost:8080"`
	Timeout    time.Duration `yaml:"timeout" env:"CLIENT_TIMEOUT" env-default:"10s"`
	MaxRetries int           `yaml:"max_retries" env:"CLIENT_MAX_RETRIES" env-default:"2"`
	RetryDelay time.Duration `yaml:"retry_delay" env:"CLIENT_RETRY_DELAY" env-default:"200ms"`
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		cleanenv.ReadEnv(cfg)
	}

	return cfg, nil
}
