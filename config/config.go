// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Drafts  DraftsConfig
	Live    LiveConfig
	Static  StaticConfig
	Log     LogConfig
	CORS    CORSConfig
	Seed    SeedConfig
	Limiter LimiterConfig
}

type ServerConfig struct {
	Port              string        `env:"PORT"                 env-default:":8080"`
	PublicURL         string        `env:"PUBLIC_URL"           env-default:"http://localhost:8080"`
	ReadTimeout       time.Duration `env:"SERVER_READ_TIMEOUT"  env-default:"7s"`
	WriteTimeout      time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT"  env-default:"120s"`
	ReadHeaderTimeout time.Duration `env:"SERVER_HEADER_TIMEOUT" env-default:"2s"`
	ShutdownTimeout   time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	RequestTimeout    time.Duration `env:"SERVER_REQUEST_TIMEOUT" env-default:"5s"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database string `env:"MONGO_DB"  env-default:"recipebox"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_URL"      env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"       env-default:"0"`
}

type AuthConfig struct {
	// JWTSecret verifies HS256 ID tokens, JWTPublicKey (PEM) RS256 ones.
	// At least one is required.
	JWTSecret    string        `env:"AUTH_JWT_SECRET"`
	JWTPublicKey string        `env:"AUTH_JWT_PUBLIC_KEY"`
	CookieName   string        `env:"AUTH_COOKIE_NAME"   env-default:"session"`
	SessionTTL   time.Duration `env:"AUTH_SESSION_TTL"   env-default:"168h"`
	SecureCookie bool          `env:"AUTH_SECURE_COOKIE" env-default:"true"`
	// PublicPaths extends the paths reachable without a session.
	PublicPaths []string `env:"AUTH_PUBLIC_PATHS" env-separator:","`
}

type DraftsConfig struct {
	Backend   string        `env:"DRAFTS_BACKEND"    env-default:"redis"`
	KeyPrefix string        `env:"DRAFTS_KEY_PREFIX" env-default:"recipe-form"`
	TTL       time.Duration `env:"DRAFTS_TTL"        env-default:"720h"`
	Timeout   time.Duration `env:"DRAFTS_TIMEOUT"    env-default:"2s"`
}

type LiveConfig struct {
	Feed string `env:"LIVE_FEED" env-default:"redis"`
}

type StaticConfig struct {
	Dir string `env:"STATIC_DIR" env-default:"./build"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
}

// CORSConfig also decides which origins may open the live websocket. When
// unset only the origin of PUBLIC_URL is allowed.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:","`
}

// AllowsAnyOrigin reports whether the wildcard origin was configured.
func (c CORSConfig) AllowsAnyOrigin() bool {
	return slices.Contains(c.AllowedOrigins, "*")
}

type SeedConfig struct {
	GlobalTags bool `env:"SEED_GLOBAL_TAGS" env-default:"false"`
}

type LimiterConfig struct {
	// requests per second per client on the session endpoint
	SessionRate  float64 `env:"SESSION_RATE_LIMIT" env-default:"5"`
	SessionBurst int     `env:"SESSION_RATE_BURST" env-default:"5"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Auth.JWTSecret) == "" && strings.TrimSpace(c.Auth.JWTPublicKey) == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET or AUTH_JWT_PUBLIC_KEY is required"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("AUTH_SESSION_TTL must be positive"))
	}
	switch c.Drafts.Backend {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("DRAFTS_BACKEND %q: want redis or memory", c.Drafts.Backend))
	}
	switch c.Live.Feed {
	case "redis", "changestream":
	default:
		errs = append(errs, fmt.Errorf("LIVE_FEED %q: want redis or changestream", c.Live.Feed))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q: want json or console", c.Log.Format))
	}
	if c.Limiter.SessionRate <= 0 || c.Limiter.SessionBurst <= 0 {
		errs = append(errs, errors.New("session rate limit must be positive"))
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		origin, err := originOf(c.Server.PublicURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("PUBLIC_URL: %w", err))
		} else {
			c.CORS.AllowedOrigins = []string{origin}
		}
	}
	if !strings.HasPrefix(c.Server.Port, ":") {
		c.Server.Port = ":" + c.Server.Port
	}

	return errors.Join(errs...)
}

// originOf reduces a URL to scheme://host[:port].
func originOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%q is not an absolute URL", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}
