package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Username     string        `yaml:"username"`
	PasswordHash string        `yaml:"password_hash"` // bcrypt
	JWTSecret    string        `yaml:"jwt_secret"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
	CookieDomain string        `yaml:"cookie_domain"`
}

type StoreConfig struct {
	Path string `yaml:"path"` // JSON document path
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // when set, Postgres replaces the file store
}

type RedisConfig struct {
	URL      string `yaml:"url"` // when set, Redis backs the rate limiter
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LimiterConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
}

type SweepConfig struct {
	Interval time.Duration `yaml:"interval"`
	Grace    time.Duration `yaml:"grace"` // keep expired codes visible for this long
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Limiter  LimiterConfig  `yaml:"limiter"`
	Sweep    SweepConfig    `yaml:"sweep"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "data/access.json"
	}
	if cfg.Limiter.MaxAttempts <= 0 {
		cfg.Limiter.MaxAttempts = 10
	}
	if cfg.Limiter.Window <= 0 {
		cfg.Limiter.Window = time.Minute
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Sweep.Interval <= 0 {
		cfg.Sweep.Interval = 5 * time.Minute
	}
	if cfg.Sweep.Grace <= 0 {
		cfg.Sweep.Grace = 24 * time.Hour
	}

	// Minimal validation
	if cfg.Admin.Username == "" {
		return nil, errors.New("admin.username is required")
	}
	if cfg.Admin.PasswordHash == "" {
		return nil, errors.New("admin.password_hash is required")
	}
	if cfg.Admin.JWTSecret == "" {
		return nil, errors.New("admin.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
