package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Storage struct {
		Backend string `yaml:"backend"`
	} `yaml:"storage"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	AMQP struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`
	Quiz struct {
		CacheTTL      string   `yaml:"cache_ttl"`
		TimeLimit     string   `yaml:"time_limit"`
		QuestionLimit int      `yaml:"question_limit"`
		TickInterval  string   `yaml:"tick_interval"`
		RequireAnswer bool     `yaml:"require_answer"`
		Admins        []string `yaml:"admins"`
	} `yaml:"quiz"`
}

// Default is the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Storage.Backend = BackendMemory
	cfg.Mongo.Database = "skillquiz"
	cfg.Redis.TTL = "10m"
	cfg.AMQP.Exchange = "quiz.events"
	cfg.Quiz.CacheTTL = "5m"
	cfg.Quiz.TimeLimit = "600s"
	cfg.Quiz.QuestionLimit = 10
	cfg.Quiz.TickInterval = "1s"
	return cfg
}

// Load reads YAML config from path on top of Default. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.Server.Port, "PORT")
	override(&c.Storage.Backend, "STORAGE_BACKEND")
	override(&c.Postgres.URL, "POSTGRES_URL")
	override(&c.Mongo.URI, "MONGO_URI")
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.AMQP.URL, "AMQP_URL")
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("postgres backend requires postgres.url")
		}
	case BackendMongo:
		if c.Mongo.URI == "" {
			return errors.New("mongo backend requires mongo.uri")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Quiz.QuestionLimit < 0 {
		return fmt.Errorf("quiz.question_limit must not be negative")
	}
	return nil
}

// Duration parses a duration string or returns the fallback if empty or malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
