package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestRead_OverridesDefaults(t *testing.T) {
	input := `
port = "9090"
jwt_secret = "s3cret"
request_timeout = "5s"
cors_origins = ["https://chirp.example.com"]

[store]
type = "sqlite"
sqlite_path = "/var/lib/chirp/chirp.db"

[feed]
page_size = 10
`
	cfg, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if cfg.Store.Type != StoreSQLite || cfg.Store.SQLitePath != "/var/lib/chirp/chirp.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Feed.PageSize != 10 || cfg.Feed.MaxPageSize != 50 {
		t.Errorf("Feed = %+v, want page_size 10 and default max 50", cfg.Feed)
	}
	if cfg.RateLimit.Requests != 60 {
		t.Errorf("RateLimit.Requests = %d, want default 60", cfg.RateLimit.Requests)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://chirp.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestRead_InvalidTOML(t *testing.T) {
	if _, err := Read(strings.NewReader("port = ")); err == nil {
		t.Error("Read() expected error for invalid TOML")
	}
}

func TestReadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chirp.toml")
	if err := os.WriteFile(path, []byte("jwt_secret = \"x\"\n[store]\ntype = \"mongo\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if cfg.Store.Type != StoreMongo || cfg.Store.MongoURI == "" {
		t.Errorf("Store = %+v, want mongo with default uri", cfg.Store)
	}

	if _, err := ReadFromFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("ReadFromFile() expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"PORT":                 "3000",
		"JWT_SECRET":           "from-env",
		"MONGODB_URI":          "mongodb://db:27017",
		"STORE_TYPE":           "mongo",
		"MONGODB_TRANSACTIONS": "true",
		"CORS_ORIGINS":         " https://a.example.com , https://b.example.com,",
		"REQUEST_TIMEOUT":      "3s",
		"GIN_MODE":             "",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Port != "3000" || cfg.JWTSecret != "from-env" {
		t.Errorf("Port/JWTSecret = %q/%q", cfg.Port, cfg.JWTSecret)
	}
	if cfg.GinMode != "debug" {
		t.Errorf("GinMode = %q, empty env must not override", cfg.GinMode)
	}
	if cfg.Store.Type != StoreMongo || cfg.Store.MongoURI != "mongodb://db:27017" || !cfg.Store.MongoTransactions {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", cfg.RequestTimeout)
	}
}

func TestApplyEnv_BadValues(t *testing.T) {
	for _, vars := range []map[string]string{
		{"MONGODB_TRANSACTIONS": "maybe"},
		{"JWT_TTL": "forever"},
	} {
		if err := Default().ApplyEnv(env(vars)); err == nil {
			t.Errorf("ApplyEnv(%v) expected error", vars)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.JWTSecret = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with secret", func(*Config) {}, false},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"unknown store", func(c *Config) { c.Store.Type = "redis" }, true},
		{"postgres without dsn", func(c *Config) { c.Store.Type = StorePostgres }, true},
		{"postgres with dsn", func(c *Config) {
			c.Store.Type = StorePostgres
			c.Store.PostgresDSN = "postgres://localhost/chirp"
		}, false},
		{"sqlite without path", func(c *Config) {
			c.Store.Type = StoreSQLite
			c.Store.SQLitePath = ""
		}, true},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"zero rate limit", func(c *Config) { c.RateLimit.Requests = 0 }, true},
		{"page size above max", func(c *Config) { c.Feed.PageSize = 100 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
