package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	DriverPostgres = "pgx"
	DriverDuckDB   = "duckdb"

	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Model         ModelConfig
	Pipeline      PipelineConfig
	Seed          SeedConfig
	ObjectStore   ObjectStoreConfig
	Archive       ArchiveConfig
	Snapshot      SnapshotConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
	RowLimit        int
}

type ModelConfig struct {
	Backend       string
	BaseURL       string
	APIKey        string
	Name          string
	MaxTokens     int
	Temperature   float64
	TopP          float64
	ContextLength int
	Timeout       time.Duration
	Stream        bool
}

type PipelineConfig struct {
	FailOnQueryError bool
}

type SeedConfig struct {
	Customers  int
	Products   int
	Orders     int
	Reviews    int
	RandomSeed int64
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ArchiveConfig struct {
	Enabled bool
	Prefix  string
}

type SnapshotConfig struct {
	Prefix string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SHOPQA_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SHOPQA_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "SHOPQA_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "SHOPQA_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "SHOPQA_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "SHOPQA_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "SHOPQA_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },

		func() error { return applyString(lookup, "SHOPQA_DATABASE_DRIVER", &cfg.Database.Driver) },
		func() error { return applyString(lookup, "SHOPQA_DATABASE_DSN", &cfg.Database.DSN) },
		func() error { return applyString(lookup, "SHOPQA_DATABASE_HOST", &cfg.Database.Host) },
		func() error { return applyInt(lookup, "SHOPQA_DATABASE_PORT", &cfg.Database.Port) },
		func() error { return applyString(lookup, "SHOPQA_DATABASE_NAME", &cfg.Database.Name) },
		func() error { return applyString(lookup, "SHOPQA_DATABASE_USER", &cfg.Database.User) },
		func() error { return applyRaw(lookup, "SHOPQA_DATABASE_PASSWORD", &cfg.Database.Password) },
		func() error { return applyString(lookup, "SHOPQA_DATABASE_SSLMODE", &cfg.Database.SSLMode) },
		func() error { return applyString(lookup, "SHOPQA_DATABASE_PATH", &cfg.Database.Path) },
		func() error { return applyInt(lookup, "SHOPQA_DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns) },
		func() error { return applyInt(lookup, "SHOPQA_DATABASE_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "SHOPQA_DATABASE_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime)
		},
		func() error {
			return applyDuration(lookup, "SHOPQA_DATABASE_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)
		},
		func() error { return applyDuration(lookup, "SHOPQA_DATABASE_QUERY_TIMEOUT", &cfg.Database.QueryTimeout) },
		func() error { return applyInt(lookup, "SHOPQA_DATABASE_ROW_LIMIT", &cfg.Database.RowLimit) },

		func() error { return applyString(lookup, "SHOPQA_MODEL_BACKEND", &cfg.Model.Backend) },
		func() error { return applyString(lookup, "SHOPQA_MODEL_BASE_URL", &cfg.Model.BaseURL) },
		func() error { return applyString(lookup, "SHOPQA_MODEL_API_KEY", &cfg.Model.APIKey) },
		func() error { return applyString(lookup, "SHOPQA_MODEL_NAME", &cfg.Model.Name) },
		func() error { return applyInt(lookup, "SHOPQA_MODEL_MAX_TOKENS", &cfg.Model.MaxTokens) },
		func() error { return applyFloat(lookup, "SHOPQA_MODEL_TEMPERATURE", &cfg.Model.Temperature) },
		func() error { return applyFloat(lookup, "SHOPQA_MODEL_TOP_P", &cfg.Model.TopP) },
		func() error { return applyInt(lookup, "SHOPQA_MODEL_CONTEXT_LENGTH", &cfg.Model.ContextLength) },
		func() error { return applyDuration(lookup, "SHOPQA_MODEL_TIMEOUT", &cfg.Model.Timeout) },
		func() error { return applyBool(lookup, "SHOPQA_MODEL_STREAM", &cfg.Model.Stream) },

		func() error {
			return applyBool(lookup, "SHOPQA_PIPELINE_FAIL_ON_QUERY_ERROR", &cfg.Pipeline.FailOnQueryError)
		},

		func() error { return applyInt(lookup, "SHOPQA_SEED_CUSTOMERS", &cfg.Seed.Customers) },
		func() error { return applyInt(lookup, "SHOPQA_SEED_PRODUCTS", &cfg.Seed.Products) },
		func() error { return applyInt(lookup, "SHOPQA_SEED_ORDERS", &cfg.Seed.Orders) },
		func() error { return applyInt(lookup, "SHOPQA_SEED_REVIEWS", &cfg.Seed.Reviews) },
		func() error { return applyInt64(lookup, "SHOPQA_SEED_RANDOM_SEED", &cfg.Seed.RandomSeed) },

		func() error { return applyString(lookup, "SHOPQA_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "SHOPQA_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "SHOPQA_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "SHOPQA_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error {
			return applyString(lookup, "SHOPQA_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "SHOPQA_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "SHOPQA_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "SHOPQA_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},

		func() error { return applyBool(lookup, "SHOPQA_ARCHIVE_ENABLED", &cfg.Archive.Enabled) },
		func() error { return applyString(lookup, "SHOPQA_ARCHIVE_PREFIX", &cfg.Archive.Prefix) },
		func() error { return applyString(lookup, "SHOPQA_SNAPSHOT_PREFIX", &cfg.Snapshot.Prefix) },

		func() error { return applyBool(lookup, "SHOPQA_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "SHOPQA_LOG_LEVEL", &cfg.Observability.LogLevel) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	cfg.Model.Backend = strings.ToLower(cfg.Model.Backend)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" && c.Database.Host == "" {
			return fmt.Errorf("SHOPQA_DATABASE_HOST or SHOPQA_DATABASE_DSN is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("SHOPQA_DATABASE_PORT must be between 1 and 65535")
		}
	case DriverDuckDB:
	default:
		return fmt.Errorf("invalid SHOPQA_DATABASE_DRIVER: %q", c.Database.Driver)
	}
	if c.Database.RowLimit < 0 {
		return fmt.Errorf("SHOPQA_DATABASE_ROW_LIMIT must be >= 0")
	}
	switch c.Model.Backend {
	case BackendOllama, BackendOpenAI:
	default:
		return fmt.Errorf("invalid SHOPQA_MODEL_BACKEND: %q", c.Model.Backend)
	}
	if c.Model.Name == "" {
		return fmt.Errorf("SHOPQA_MODEL_NAME is required")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("SHOPQA_MODEL_MAX_TOKENS must be > 0")
	}
	if c.Model.ContextLength <= 0 {
		return fmt.Errorf("SHOPQA_MODEL_CONTEXT_LENGTH must be > 0")
	}
	if c.Model.TopP <= 0 || c.Model.TopP > 1 {
		return fmt.Errorf("SHOPQA_MODEL_TOP_P must be in (0, 1]")
	}
	if c.Model.Temperature < 0 {
		return fmt.Errorf("SHOPQA_MODEL_TEMPERATURE must be >= 0")
	}
	if c.Seed.Customers <= 0 || c.Seed.Products <= 0 {
		return fmt.Errorf("SHOPQA_SEED_CUSTOMERS and SHOPQA_SEED_PRODUCTS must be > 0")
	}
	if c.Seed.Orders < 0 || c.Seed.Reviews < 0 {
		return fmt.Errorf("SHOPQA_SEED_ORDERS and SHOPQA_SEED_REVIEWS must be >= 0")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "shopqa"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          DriverPostgres,
			Host:            "localhost",
			Port:            5432,
			Name:            "rag_test_db",
			User:            "postgres",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    5,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
			RowLimit:        200,
		},
		Model: ModelConfig{
			Backend:       BackendOllama,
			BaseURL:       "http://localhost:11434",
			Name:          "deepseek-coder:1.3b-base",
			MaxTokens:     256,
			Temperature:   0.7,
			TopP:          0.95,
			ContextLength: 2048,
			Timeout:       2 * time.Minute,
			Stream:        false,
		},
		Seed: SeedConfig{
			Customers:  1000,
			Products:   500,
			Orders:     2000,
			Reviews:    3000,
			RandomSeed: time.Now().UTC().UnixNano(),
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "shopqa",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			AutoCreateBucket: true,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Prefix:  "outcomes",
		},
		Snapshot: SnapshotConfig{
			Prefix: "snapshots/latest",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelInfo,
			LogJSON:  false,
		},
	}

	switch profile {
	case ProfileDev:
		cfg.Observability.LogLevel = slog.LevelDebug
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Database.Driver = DriverDuckDB
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Seed.RandomSeed = 42
	case ProfileProd:
		cfg.Observability.LogJSON = true
		cfg.Database.SSLMode = "require"
		cfg.Database.QueryTimeout = 30 * time.Second
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

// applyRaw keeps surrounding whitespace; passwords may contain it.
func applyRaw(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = raw
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
