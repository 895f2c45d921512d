// Package bootstrap is the composition root: configuration loading,
// logger setup and the wiring of stores, strategy and HTTP server.
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/latchkey-io/latchkey/internal/auth"
)

// Session store backends for session_db_auth.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config is the resolved runtime configuration. It merges file
// defaults and environment overrides so local runs and deployments use
// the same code path.
type Config struct {
	ServiceID string
	HTTPPort  int

	AuthType        string
	SessionName     string
	SessionDuration time.Duration
	SessionStore    string
	ExcludedPaths   []string

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int

	BcryptCost int

	ShutdownTimeout time.Duration
}

// configFile mirrors the YAML schema of configs/default.yaml.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
	} `yaml:"service"`
	Auth struct {
		Type            string   `yaml:"type"`
		SessionName     string   `yaml:"session_name"`
		SessionDuration int      `yaml:"session_duration_seconds"`
		SessionStore    string   `yaml:"session_store"`
		ExcludedPaths   []string `yaml:"excluded_paths"`
	} `yaml:"auth"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
}

// LoadConfig resolves configuration in priority order: defaults ->
// file -> env. A missing file is fine; a file that exists but does not
// parse is an error.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:       "latchkey",
		HTTPPort:        8080,
		AuthType:        auth.TypeBasic,
		SessionName:     auth.DefaultCookieName,
		SessionStore:    StorePostgres,
		MaxDBConns:      20,
		BcryptCost:      12,
		ShutdownTimeout: 10 * time.Second,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Auth.Type != "" {
			cfg.AuthType = f.Auth.Type
		}
		if f.Auth.SessionName != "" {
			cfg.SessionName = f.Auth.SessionName
		}
		if f.Auth.SessionDuration > 0 {
			cfg.SessionDuration = time.Duration(f.Auth.SessionDuration) * time.Second
		}
		if f.Auth.SessionStore != "" {
			cfg.SessionStore = f.Auth.SessionStore
		}
		if len(f.Auth.ExcludedPaths) > 0 {
			cfg.ExcludedPaths = f.Auth.ExcludedPaths
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
	}

	cfg.AuthType = envOrDefault("AUTH_TYPE", cfg.AuthType)
	cfg.SessionName = envOrDefault("SESSION_NAME", cfg.SessionName)
	cfg.SessionDuration = time.Duration(envInt("SESSION_DURATION", int(cfg.SessionDuration.Seconds()))) * time.Second
	cfg.SessionStore = strings.ToLower(envOrDefault("SESSION_STORE", cfg.SessionStore))
	cfg.ExcludedPaths = envCSV("EXCLUDED_PATHS", cfg.ExcludedPaths)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.MaxDBConns = envInt("DB_MAX_CONNS", cfg.MaxDBConns)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)

	// An unset duration means sessions never expire; a negative value
	// is treated the same rather than rejecting startup.
	if cfg.SessionDuration < 0 {
		cfg.SessionDuration = 0
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.AuthType {
	case auth.TypeBasic, auth.TypeSession, auth.TypeSessionExp:
	case auth.TypeSessionDB:
		switch c.SessionStore {
		case StorePostgres:
			if c.DatabaseURL == "" {
				return fmt.Errorf("session_db_auth with postgres store: missing DB_URL/POSTGRES_URL")
			}
		case StoreRedis:
			if c.RedisURL == "" {
				return fmt.Errorf("session_db_auth with redis store: missing REDIS_URL")
			}
		default:
			return fmt.Errorf("unknown session store %q (want %s or %s)", c.SessionStore, StorePostgres, StoreRedis)
		}
	default:
		// Unknown types are not rejected here; the registry decides at
		// wiring time so embedder-registered strategies still work.
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", c.HTTPPort)
	}
	if c.SessionName == "" {
		return fmt.Errorf("SESSION_NAME must not be empty")
	}
	return nil
}

// envOrDefault returns an env var when present, otherwise the fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty or
// invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envCSV splits a comma-separated env var, dropping empty entries.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
