package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers
const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverSQLite   = "sqlite"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Worker     WorkerConfig
	Dispatcher DispatcherConfig
	Retry      RetryConfig
	Reconciler ReconcilerConfig
	Secrets    SecretsConfig
	Source     SourceConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file path (":memory:" for in-memory)
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// WorkerConfig holds sync worker and interval trigger configuration
type WorkerConfig struct {
	Enabled        bool
	PollInterval   time.Duration
	FailureDelay   time.Duration
	TriggerEnabled bool
	CheckInterval  time.Duration
	SyncInterval   time.Duration
}

// DispatcherConfig holds the per-destination token bucket budgets
type DispatcherConfig struct {
	GeneralCapacity    int
	GeneralPerSecond   float64
	InventoryCapacity  int
	InventoryPerSecond float64
	MaxQueueDepth      int
}

// RetryConfig holds the transient-failure retry policy settings
type RetryConfig struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// ReconcilerConfig holds catalog reconciliation tuning
type ReconcilerConfig struct {
	InterCallDelay time.Duration
}

// SecretsConfig holds the credential encryption settings
type SecretsConfig struct {
	Passphrase string
	Salt       string
}

// SourceConfig holds source catalog settings
type SourceConfig struct {
	Shopify ShopifySourceConfig
	Feed    FeedSourceConfig
}

// ShopifySourceConfig holds the Shopify source store settings
type ShopifySourceConfig struct {
	Enabled     bool
	ShopDomain  string
	AccessToken string
	Primary     bool
}

// FeedSourceConfig holds the JSON feed source settings
type FeedSourceConfig struct {
	Enabled     bool
	Name        string
	URL         string
	BearerToken string
	Primary     bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CHANNELSYNC_ prefix (e.g., CHANNELSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("CHANNELSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Worker: WorkerConfig{
			Enabled:        v.GetBool("worker.enabled"),
			PollInterval:   v.GetDuration("worker.poll_interval"),
			FailureDelay:   v.GetDuration("worker.failure_delay"),
			TriggerEnabled: v.GetBool("worker.trigger_enabled"),
			CheckInterval:  v.GetDuration("worker.check_interval"),
			SyncInterval:   v.GetDuration("worker.sync_interval"),
		},
		Dispatcher: DispatcherConfig{
			GeneralCapacity:    v.GetInt("dispatcher.general_capacity"),
			GeneralPerSecond:   v.GetFloat64("dispatcher.general_per_second"),
			InventoryCapacity:  v.GetInt("dispatcher.inventory_capacity"),
			InventoryPerSecond: v.GetFloat64("dispatcher.inventory_per_second"),
			MaxQueueDepth:      v.GetInt("dispatcher.max_queue_depth"),
		},
		Retry: RetryConfig{
			MaxRetries:        v.GetInt("retry.max_retries"),
			BaseDelay:         v.GetDuration("retry.base_delay"),
			MaxDelay:          v.GetDuration("retry.max_delay"),
			BackoffMultiplier: v.GetFloat64("retry.backoff_multiplier"),
		},
		Reconciler: ReconcilerConfig{
			InterCallDelay: v.GetDuration("reconciler.inter_call_delay"),
		},
		Secrets: SecretsConfig{
			Passphrase: v.GetString("secrets.passphrase"),
			Salt:       v.GetString("secrets.salt"),
		},
		Source: SourceConfig{
			Shopify: ShopifySourceConfig{
				Enabled:     v.GetBool("source.shopify.enabled"),
				ShopDomain:  v.GetString("source.shopify.shop_domain"),
				AccessToken: v.GetString("source.shopify.access_token"),
				Primary:     v.GetBool("source.shopify.primary"),
			},
			Feed: FeedSourceConfig{
				Enabled:     v.GetBool("source.feed.enabled"),
				Name:        v.GetString("source.feed.name"),
				URL:         v.GetString("source.feed.url"),
				BearerToken: v.GetString("source.feed.bearer_token"),
				Primary:     v.GetBool("source.feed.primary"),
			},
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "channelsync-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DatabaseDriverPostgres
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "channelsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "channelsync.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until explicitly
	// configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 5 * time.Second
	}
	if cfg.Worker.FailureDelay == 0 {
		cfg.Worker.FailureDelay = time.Second
	}
	if cfg.Worker.CheckInterval == 0 {
		cfg.Worker.CheckInterval = time.Minute
	}
	if cfg.Worker.SyncInterval == 0 {
		cfg.Worker.SyncInterval = 6 * time.Hour
	}
	if cfg.Dispatcher.GeneralCapacity == 0 {
		cfg.Dispatcher.GeneralCapacity = 40
	}
	if cfg.Dispatcher.GeneralPerSecond == 0 {
		cfg.Dispatcher.GeneralPerSecond = 40
	}
	if cfg.Dispatcher.InventoryCapacity == 0 {
		cfg.Dispatcher.InventoryCapacity = 2
	}
	if cfg.Dispatcher.InventoryPerSecond == 0 {
		cfg.Dispatcher.InventoryPerSecond = 2
	}
	if cfg.Dispatcher.MaxQueueDepth == 0 {
		cfg.Dispatcher.MaxQueueDepth = 1000
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 30 * time.Second
	}
	if cfg.Retry.BackoffMultiplier == 0 {
		cfg.Retry.BackoffMultiplier = 2
	}
	if cfg.Reconciler.InterCallDelay == 0 {
		cfg.Reconciler.InterCallDelay = 250 * time.Millisecond
	}
	if cfg.Source.Feed.Name == "" {
		cfg.Source.Feed.Name = "feed"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.Driver != DatabaseDriverPostgres && c.Database.Driver != DatabaseDriverSQLite {
		return fmt.Errorf("database.driver must be %q or %q, got %q",
			DatabaseDriverPostgres, DatabaseDriverSQLite, c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Dispatcher.GeneralCapacity <= 0 || c.Dispatcher.InventoryCapacity <= 0 {
		return fmt.Errorf("dispatcher bucket capacities must be positive")
	}
	if c.Dispatcher.GeneralPerSecond <= 0 || c.Dispatcher.InventoryPerSecond <= 0 {
		return fmt.Errorf("dispatcher refill rates must be positive")
	}
	if c.Dispatcher.MaxQueueDepth <= 0 {
		return fmt.Errorf("dispatcher.max_queue_depth must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative")
	}
	if c.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("retry.backoff_multiplier must be at least 1")
	}
	if c.Source.Shopify.Enabled {
		if c.Source.Shopify.ShopDomain == "" {
			return fmt.Errorf("source.shopify.shop_domain is required when the shopify source is enabled")
		}
		if c.Source.Shopify.AccessToken == "" {
			return fmt.Errorf("source.shopify.access_token is required when the shopify source is enabled")
		}
	}
	if c.Source.Feed.Enabled && c.Source.Feed.URL == "" {
		return fmt.Errorf("source.feed.url is required when the feed source is enabled")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Secrets.Passphrase == "" {
			return fmt.Errorf("secrets.passphrase is required in production")
		}
		if len(c.Secrets.Passphrase) < 32 {
			return fmt.Errorf("secrets.passphrase must be at least 32 characters in production")
		}
		if c.Database.Driver == DatabaseDriverPostgres {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == DatabaseDriverSQLite {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
