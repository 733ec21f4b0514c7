package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Store struct {
		Backend       string        `yaml:"backend" default:"redis"`
		URL           string        `yaml:"url" default:"redis://localhost:6379/0"`
		Prefix        string        `yaml:"prefix"`
		PoolSize      int           `yaml:"pool_size" default:"20"`
		MinIdle       int           `yaml:"min_idle" default:"2"`
		DialTimeout   time.Duration `yaml:"dial_timeout" default:"5s"`
		CommitTimeout time.Duration `yaml:"commit_timeout" default:"2s"`
	} `yaml:"store"`
	Ingest struct {
		HistoryCap        int64         `yaml:"history_cap" default:"200"`
		TimelineCap       int64         `yaml:"timeline_cap" default:"200"`
		FeatureHistoryCap int64         `yaml:"feature_history_cap" default:"500"`
		PendingCap        int64         `yaml:"pending_cap" default:"50"`
		ResultTTL         time.Duration `yaml:"result_ttl" default:"168h"`
	} `yaml:"ingest"`
	Predictor struct {
		Type          string `yaml:"type" default:"heuristic"`
		Seed          int64  `yaml:"seed"`
		HistoryWindow int    `yaml:"history_window" default:"60"`
		ML            struct {
			URL     string        `yaml:"url"`
			Timeout time.Duration `yaml:"timeout" default:"3s"`
		} `yaml:"ml"`
	} `yaml:"predictor"`
	Lock struct {
		Distributed bool          `yaml:"distributed"`
		TTL         time.Duration `yaml:"ttl" default:"5s"`
		Wait        time.Duration `yaml:"wait" default:"3s"`
	} `yaml:"lock"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			Spins  string `yaml:"spins" default:"roulette.spins"`
			Events string `yaml:"events" default:"roulette.events"`
			Logs   string `yaml:"logs" default:"spinpull.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"spinpull"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"roulette.spins.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"1"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"2s"`
		Prefix     string        `yaml:"prefix" default:"spinpull:queue"`
	} `yaml:"queue"`
	RateLimit struct {
		Capacity     int     `yaml:"capacity" default:"20"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"10"`
	} `yaml:"ratelimit"`
	Gate struct {
		DedupWindow time.Duration `yaml:"dedup_window" default:"10m"`
		MaxRPS      float64       `yaml:"max_rps" default:"20"`
	} `yaml:"gate"`
	Cache struct {
		StatsTTL time.Duration `yaml:"stats_ttl" default:"5s"`
	} `yaml:"cache"`
	Auth struct {
		SecretKey string `yaml:"secret_key"`
	} `yaml:"auth"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment looked up through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("REDIS_URL"); v != "" {
		c.Store.URL = v
	}
	if v := getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := getenv("SECRET_KEY"); v != "" {
		c.Auth.SecretKey = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("PREDICTOR_TYPE"); v != "" {
		c.Predictor.Type = v
	}
	if v := getenv("ML_SERVICE_URL"); v != "" {
		c.Predictor.ML.URL = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Store.Backend {
	case "redis":
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required for the redis backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be 'redis' or 'memory', got '%s'", c.Store.Backend)
	}
	if c.Store.CommitTimeout <= 0 {
		return fmt.Errorf("store.commit_timeout must be positive")
	}
	switch c.Predictor.Type {
	case "heuristic":
	case "ensemble", "xgboost":
		if c.Predictor.ML.URL == "" {
			return fmt.Errorf("predictor.ml.url is required for predictor type '%s'", c.Predictor.Type)
		}
	default:
		return fmt.Errorf("predictor.type must be 'heuristic', 'ensemble' or 'xgboost', got '%s'", c.Predictor.Type)
	}
	if c.Ingest.HistoryCap <= 0 || c.Ingest.TimelineCap <= 0 || c.Ingest.FeatureHistoryCap <= 0 || c.Ingest.PendingCap <= 0 {
		return fmt.Errorf("ingest capacities must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Lock.Distributed && c.Store.Backend != "redis" {
		return fmt.Errorf("lock.distributed requires the redis store backend")
	}
	return nil
}
