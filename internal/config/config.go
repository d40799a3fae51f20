package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DefaultDBName         = "mongoflow"
	DefaultCollectionName = "items"

	defaultBreakerFailures = 3

	mongoURIVar = "MONGODB_URI"
)

// ErrConfigMissing is returned when a setting needed by an operation was never
// provided. It names the variable, never its value.
var ErrConfigMissing = errors.New("configuration missing")

// Config is read once at startup and is immutable afterwards.
type Config struct {
	MongoDBURI          string `env:"MONGODB_URI"`
	MongoDBURIParameter string `env:"MONGODB_URI_PARAMETER"`
	DBName              string `env:"DB_NAME" envDefault:"mongoflow"`
	CollectionName      string `env:"COLLECTION_NAME" envDefault:"items"`

	Mongo  MongoConfig
	CORS   CORSConfig
	Server ServerConfig
	Log    LogConfig
}

type MongoConfig struct {
	ConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	Timeout        time.Duration `env:"MONGODB_TIMEOUT" envDefault:"5s"`
	MaxPoolSize    uint64        `env:"MONGODB_MAX_POOL_SIZE" envDefault:"10"`

	// BreakerFailures consecutive failures open the breaker for BreakerTimeout.
	BreakerFailures uint32        `env:"MONGODB_BREAKER_FAILURES" envDefault:"3"`
	BreakerTimeout  time.Duration `env:"MONGODB_BREAKER_TIMEOUT" envDefault:"30s"`
}

// CORSConfig mirrors the four knobs of the cross-origin policy. The defaults
// are fully permissive; tighten them per deployment.
type CORSConfig struct {
	AllowOrigins     []string `env:"CORS_ALLOW_ORIGINS" envDefault:"*" envSeparator:","`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	AllowMethods     []string `env:"CORS_ALLOW_METHODS" envDefault:"*" envSeparator:","`
	AllowHeaders     []string `env:"CORS_ALLOW_HEADERS" envDefault:"*" envSeparator:","`
	ExposeHeaders    []string `env:"CORS_EXPOSE_HEADERS" envSeparator:","`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"600"`
}

type ServerConfig struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses the process environment. Optional dotenv files are applied first
// and never override variables that are already set.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("loading env files: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// normalize treats blank names as unset.
func (c *Config) normalize() {
	c.MongoDBURI = strings.TrimSpace(c.MongoDBURI)
	c.MongoDBURIParameter = strings.TrimSpace(c.MongoDBURIParameter)

	c.DBName = strings.TrimSpace(c.DBName)
	if c.DBName == "" {
		c.DBName = DefaultDBName
	}
	c.CollectionName = strings.TrimSpace(c.CollectionName)
	if c.CollectionName == "" {
		c.CollectionName = DefaultCollectionName
	}

	if c.Mongo.BreakerFailures == 0 {
		c.Mongo.BreakerFailures = defaultBreakerFailures
	}

	c.CORS.AllowOrigins = compact(c.CORS.AllowOrigins)
	c.CORS.AllowMethods = compact(c.CORS.AllowMethods)
	c.CORS.AllowHeaders = compact(c.CORS.AllowHeaders)
	c.CORS.ExposeHeaders = compact(c.CORS.ExposeHeaders)
}

// RequireMongoURI reports whether a connection string is available for
// database-backed operations.
func (c *Config) RequireMongoURI() error {
	if c.MongoDBURI == "" {
		return fmt.Errorf("%w: %s is not set", ErrConfigMissing, mongoURIVar)
	}
	return nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
