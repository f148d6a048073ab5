// Package config loads server settings from defaults, an optional TOML file
// and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the full server configuration.
type Config struct {
	Port           string        `toml:"port"`
	GinMode        string        `toml:"gin_mode"`
	JWTSecret      string        `toml:"jwt_secret"`
	JWTTTL         time.Duration `toml:"jwt_ttl"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	CORSOrigins    []string      `toml:"cors_origins"`

	Store     StoreConfig     `toml:"store"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Feed      FeedConfig      `toml:"feed"`
}

// StoreConfig selects the persistence backend.
// Type determines which of the other fields are relevant.
type StoreConfig struct {
	Type              string `toml:"type"` // "memory", "mongo", "sqlite" or "postgres"
	MongoURI          string `toml:"mongo_uri,omitempty"`
	MongoDatabase     string `toml:"mongo_database,omitempty"`
	MongoTransactions bool   `toml:"mongo_transactions,omitempty"` // needs a replica set
	SQLitePath        string `toml:"sqlite_path,omitempty"`
	PostgresDSN       string `toml:"postgres_dsn,omitempty"`
}

type RateLimitConfig struct {
	Requests int           `toml:"requests"`
	Window   time.Duration `toml:"window"`
}

type FeedConfig struct {
	PageSize    int `toml:"page_size"`
	MaxPageSize int `toml:"max_page_size"`
}

const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Port:           "8080",
		GinMode:        "debug",
		JWTTTL:         7 * 24 * time.Hour,
		RequestTimeout: 10 * time.Second,
		CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
		Store: StoreConfig{
			Type:          StoreMemory,
			MongoURI:      "mongodb://127.0.0.1:27017",
			MongoDatabase: "chirp",
			SQLitePath:    "chirp.db",
		},
		RateLimit: RateLimitConfig{Requests: 60, Window: time.Minute},
		Feed:      FeedConfig{PageSize: 20, MaxPageSize: 50},
	}
}

// Read decodes TOML from r over the defaults.
func Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes cfg as TOML.
func Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads .env (if present), then the TOML file named by CHIRP_CONFIG (if
// set), then applies environment overrides and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CHIRP_CONFIG"); path != "" {
		var err error
		if cfg, err = ReadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("GIN_MODE", &c.GinMode)
	str("JWT_SECRET", &c.JWTSecret)
	str("STORE_TYPE", &c.Store.Type)
	str("MONGODB_URI", &c.Store.MongoURI)
	str("MONGODB_DATABASE", &c.Store.MongoDatabase)
	str("SQLITE_PATH", &c.Store.SQLitePath)
	str("DATABASE_URL", &c.Store.PostgresDSN)

	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORSOrigins = append(c.CORSOrigins, o)
			}
		}
	}
	if v, ok := lookup("MONGODB_TRANSACTIONS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MONGODB_TRANSACTIONS: %w", err)
		}
		c.Store.MongoTransactions = b
	}
	durations := map[string]*time.Duration{
		"JWT_TTL":         &c.JWTTTL,
		"REQUEST_TIMEOUT": &c.RequestTimeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate reports the first setting that would keep the server from
// starting.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt_secret (JWT_SECRET) must be set")
	}
	switch c.Store.Type {
	case StoreMemory:
	case StoreMongo:
		if c.Store.MongoURI == "" {
			return errors.New("store.mongo_uri required for mongo store")
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path required for sqlite store")
		}
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn required for postgres store")
		}
	default:
		return fmt.Errorf("unknown store type: %q", c.Store.Type)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate_limit requests and window must be positive")
	}
	if c.Feed.PageSize <= 0 || c.Feed.MaxPageSize < c.Feed.PageSize {
		return fmt.Errorf("feed page_size %d must be positive and at most max_page_size %d",
			c.Feed.PageSize, c.Feed.MaxPageSize)
	}
	return nil
}
