package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	LeaseLocal = "local"
	LeaseRedis = "redis"
)

type Config struct {
	Port      int              `json:"port"`
	Database  DatabaseConfig   `json:"database"`
	LogConfig logger.LogConfig `json:"log_config"`
	AI        AIConfig         `json:"ai"`
	Lease     LeaseConfig      `json:"lease"`
	Summary   SummaryConfig    `json:"summary"`
	CORS      []string         `json:"cors"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
	Path     string `json:"path"`
}

type AIProviderConfig struct {
	Name     string      `json:"name"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Providers       []AIProviderConfig `json:"providers"`
	Timeout         int                `json:"timeout"`
	MaxCommentChars int                `json:"max_comment_chars"`
	BatchSize       int                `json:"batch_size"`
	RatePerMinute   int                `json:"rate_per_minute"`
	Burst           int                `json:"burst"`
	CacheSize       int                `json:"cache_size"`
	CacheTTLSeconds int                `json:"cache_ttl_seconds"`
}

type LeaseConfig struct {
	Type       string `json:"type"`
	RedisURL   string `json:"redis_url"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type SummaryConfig struct {
	CooldownSeconds int    `json:"cooldown_seconds"`
	WarmCron        string `json:"warm_cron"`
	WarmBatch       int    `json:"warm_batch"`
}

// LoadEnvFile loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := decodeYAML([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeYAML goes through JSON so the json tags stay the single source of key names,
// including the ones on logger.LogConfig.
func decodeYAML(data []byte, dst *Config) error {
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	buf, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, dst)
}

func (cfg *Config) normalize() error {
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if err := cfg.Database.normalize(); err != nil {
		return err
	}
	cfg.AI.normalize()
	for i, p := range cfg.AI.Providers {
		if strings.TrimSpace(p.Provider) == "" {
			return fmt.Errorf("ai.providers[%d].provider is required", i)
		}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("ai.providers[%d].model is required", i)
		}
		if p.Name == "" {
			cfg.AI.Providers[i].Name = p.Provider
		}
	}
	if cfg.Lease.Type == "" {
		cfg.Lease.Type = LeaseLocal
	}
	switch cfg.Lease.Type {
	case LeaseLocal:
	case LeaseRedis:
		if cfg.Lease.RedisURL == "" {
			return fmt.Errorf("lease.redis_url is required for redis lease")
		}
	default:
		return fmt.Errorf("lease.type must be local or redis")
	}
	if cfg.Lease.TTLSeconds <= 0 {
		cfg.Lease.TTLSeconds = 120
	}
	if cfg.Summary.CooldownSeconds < 0 {
		return fmt.Errorf("summary.cooldown_seconds must not be negative")
	}
	if cfg.Summary.WarmBatch <= 0 {
		cfg.Summary.WarmBatch = 20
	}
	return nil
}

func (d *DatabaseConfig) normalize() error {
	if d.Driver == "" {
		d.Driver = DriverPostgres
	}
	switch d.Driver {
	case DriverPostgres:
		if d.DSN == "" && d.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required for postgres")
		}
		if d.Port == 0 {
			d.Port = 5432
		}
		if d.SSLMode == "" {
			d.SSLMode = "disable"
		}
	case DriverSQLite:
		if d.DSN == "" && d.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite")
	}
	return nil
}

func (a *AIConfig) normalize() {
	if a.Timeout <= 0 {
		a.Timeout = 30
	}
	if a.MaxCommentChars <= 0 {
		a.MaxCommentChars = 500
	}
	if a.BatchSize <= 0 {
		a.BatchSize = 50
	}
	if a.CacheSize < 0 {
		a.CacheSize = 0
	}
	if a.CacheTTLSeconds <= 0 {
		a.CacheTTLSeconds = 7200
	}
}
