// Package settings reads server settings from the environment.
//
// Every variable is prefixed with MEMORY_GAME_. Command line flags in main
// override the host, port, deck directory, session store, debug and ngrok
// values.
package settings

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every environment variable name
const Prefix = "MEMORY_GAME_"

// Session store kinds
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreBolt   = "bolt"
)

// Settings holds everything the server needs to start
type Settings struct {
	Host      string `env:"HOST" envDefault:"localhost"`
	Port      int    `env:"PORT" envDefault:"8080"`
	ConfigDir string `env:"CONFIG_DIR" envDefault:"configs"`
	StaticDir string `env:"STATIC_DIR" envDefault:"static"`
	Debug     bool   `env:"DEBUG"`

	SessionStore  string        `env:"SESSION_STORE" envDefault:"file"`
	SessionsDir   string        `env:"SESSIONS_DIR" envDefault:"sessions"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	SQLitePath    string        `env:"SQLITE_PATH" envDefault:"sessions.db"`
	BoltPath      string        `env:"BOLT_PATH" envDefault:"sessions.bolt"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" envDefault:"24h"`
	CleanupEvery  time.Duration `env:"CLEANUP_INTERVAL" envDefault:"10m"`
	SyncEvery     time.Duration `env:"SYNC_INTERVAL" envDefault:"1m"`

	CookieSecret string        `env:"COOKIE_SECRET"`
	CookieTTL    time.Duration `env:"COOKIE_TTL" envDefault:"30m"`

	RateLimit      float64  `env:"RATE_LIMIT" envDefault:"10"`
	RateBurst      int      `env:"RATE_BURST" envDefault:"20"`
	AllowedOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	NATSURL    string `env:"NATS_URL"`
	NATSPrefix string `env:"NATS_PREFIX" envDefault:"memorygame"`

	NgrokEnabled bool   `env:"NGROK_ENABLED"`
	NgrokAuth    string `env:"NGROK_AUTHTOKEN"`
	NgrokDomain  string `env:"NGROK_DOMAIN"`
}

// Load parses the environment into Settings and validates the result
func Load() (*Settings, error) {
	return LoadFrom(nil)
}

// LoadFrom parses settings from environ instead of the process environment
// when environ is non-nil
func LoadFrom(environ map[string]string) (*Settings, error) {
	var s Settings
	opts := env.Options{Prefix: Prefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks values the environment parser cannot
func (s *Settings) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("settings: port must be between 1 and 65535, got %d", s.Port)
	}

	s.SessionStore = strings.ToLower(strings.TrimSpace(s.SessionStore))
	switch s.SessionStore {
	case StoreMemory, StoreFile, StoreRedis, StoreSQLite, StoreBolt:
	default:
		return fmt.Errorf("settings: unknown session store %q", s.SessionStore)
	}

	if s.SessionMaxAge <= 0 {
		return fmt.Errorf("settings: session max age must be positive")
	}
	if s.CookieTTL <= 0 {
		return fmt.Errorf("settings: cookie ttl must be positive")
	}
	if s.RateLimit < 0 || s.RateBurst < 0 {
		return fmt.Errorf("settings: rate limit and burst cannot be negative")
	}
	return nil
}

// Addr returns host:port
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
