package config

import "fmt"

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	MinIO      MinIOConfig
	RateLimit  RateLimitConfig
	Worker     WorkerConfig
	Log        LogConfig
	Sentry     SentryConfig
	Engine     EngineConfig
	Assets     AssetsConfig
	Catalog    CatalogConfig
	Retention  RetentionConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// DSN returns the PostgreSQL connection string
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MinIOConfig holds MinIO configuration
type MinIOConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	TileBucket   string `mapstructure:"tile_bucket"`
	ExportBucket string `mapstructure:"export_bucket"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	RequestsPerMin int  `mapstructure:"requests_per_min"`
	SubmitPerMin   int  `mapstructure:"submit_per_min"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	Concurrency   int    `mapstructure:"concurrency"`
	QueueCritical string `mapstructure:"queue_critical"`
	QueueDefault  string `mapstructure:"queue_default"`
	QueueLow      string `mapstructure:"queue_low"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SentryConfig holds Sentry error reporting configuration
type SentryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DSN              string  `mapstructure:"dsn"`
	Environment      string  `mapstructure:"environment"`
	Release          string  `mapstructure:"release"`
	Debug            bool    `mapstructure:"debug"`
	SampleRate       float64 `mapstructure:"sample_rate"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// EngineConfig holds raster engine configuration
type EngineConfig struct {
	// MaxParallelLoads bounds concurrent scene materialization per collection.
	MaxParallelLoads int `mapstructure:"max_parallel_loads"`
}

// AssetsConfig holds network coefficient asset configuration
type AssetsConfig struct {
	// Source selects where coefficient banks are loaded from: postgres or file.
	Source string `mapstructure:"source"`
	// Path points at the coefficient JSON file when Source is file.
	Path string `mapstructure:"path"`
}

// CatalogConfig holds scene and land cover catalog configuration
type CatalogConfig struct {
	// LandCoverVersion selects the land cover epoch used for partition
	// maps, one of the published map years.
	LandCoverVersion int `mapstructure:"landcover_version"`
}

// RetentionConfig holds data retention configuration
type RetentionConfig struct {
	Days    int  `mapstructure:"days"`
	Enabled bool `mapstructure:"enabled"`
}

// IsDevelopment returns true if running in development mode
func (c Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c Config) IsProduction() bool {
	return c.Server.Env == "production"
}
