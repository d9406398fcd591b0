// config - источник загрузки конфигурации клиента Pixsort.
//
// Источники (по убыванию приоритета):
//  1. явный путь --config;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. только ENV (cleanenv).
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Виды хранилища пары токенов.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	GRPC     GRPCConfig    `yaml:"grpc"`
	API      APIConfig     `yaml:"api"`
	Store    StoreConfig   `yaml:"store"`
	Session  SessionConfig `yaml:"session"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// HTTPConfig — локальный HTTP-демон.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"127.0.0.1"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8765"`
	// CORSOrigins — origin'ы UI, которым разрешены запросы к демону
	// и подписка на события сессии ("*" — любой).
	CORSOrigins []string `yaml:"cors_origins" env:"HTTP_CORS_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// GRPCConfig — gRPC health-check демона (grpc.health.v1).
type GRPCConfig struct {
	Enabled bool   `yaml:"enabled" env:"GRPC_ENABLED" env-default:"true"`
	Host    string `yaml:"host"    env:"GRPC_HOST"    env-default:"127.0.0.1"`
	Port    string `yaml:"port"    env:"GRPC_PORT"    env-default:"8766"`
}

func (g GRPCConfig) Addr() string { return net.JoinHostPort(g.Host, g.Port) }

// APIConfig — бэкенд Pixsort.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"   env:"API_BASE_URL"   env-default:"http://127.0.0.1:8000"`
	UserAgent string `yaml:"user_agent" env:"API_USER_AGENT" env-default:"pixsort-client"`
}

// StoreConfig — где хранится пара токенов.
type StoreConfig struct {
	Kind     string        `yaml:"kind"      env:"STORE_KIND"      env-default:"file"`
	FilePath string        `yaml:"file_path" env:"STORE_FILE_PATH"`
	RedisURL string        `yaml:"redis_url" env:"STORE_REDIS_URL" env-default:"redis://127.0.0.1:6379/0"`
	Key      string        `yaml:"key"       env:"STORE_KEY"`
	TTL      time.Duration `yaml:"ttl"       env:"STORE_TTL"       env-default:"0s"`
}

// ResolvedFilePath — FilePath или <UserConfigDir>/pixsort/authTokens.json.
func (s StoreConfig) ResolvedFilePath() (string, error) {
	if s.FilePath != "" {
		return s.FilePath, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve store file path: %w", err)
	}

	return filepath.Join(dir, "pixsort", "authTokens.json"), nil
}

// SessionConfig — поведение менеджера сессии.
type SessionConfig struct {
	// ExpiryLeeway — запас до exp, с которого токен обновляется заранее.
	ExpiryLeeway time.Duration `yaml:"expiry_leeway" env:"SESSION_EXPIRY_LEEWAY" env-default:"0s"`
	// LogoutOnUnauthorized — завершать сессию на 401 от бэкенда.
	LogoutOnUnauthorized bool `yaml:"logout_on_unauthorized" env:"SESSION_LOGOUT_ON_UNAUTHORIZED" env-default:"false"`
}

// TimeoutConfig — таймауты демона и исходящих запросов.
type TimeoutConfig struct {
	Request  time.Duration `yaml:"request"  env:"TIMEOUT_REQUEST"  env-default:"30s"`
	Upstream time.Duration `yaml:"upstream" env:"TIMEOUT_UPSTREAM" env-default:"15s"`
}

// Validate проверяет значения, которые cleanenv проверить не может.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case StoreFile, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("store.kind: unknown %q (want file, redis or memory)", c.Store.Kind)
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url: invalid %q", c.API.BaseURL)
	}

	if c.Session.ExpiryLeeway < 0 {
		return errors.New("session.expiry_leeway: must not be negative")
	}

	return nil
}

// MustLoad — паника при ошибке загрузки.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	fromFile := func(p string) (*Config, error) {
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return validated(&cfg)
	}

	explicit := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		return fromFile(p)
	}

	// 1) --config
	if path != "" {
		return explicit(path)
	}

	// 2) CONFIG_PATH
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return explicit(envPath)
	}

	// 3) ./local.yaml
	if _, err := os.Stat("local.yaml"); err == nil {
		return fromFile("local.yaml")
	}

	// 4) только ENV
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return validated(&cfg)
}

func validated(cfg *Config) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
