package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Database  DatabaseConfig
	Lock      LockConfig
	Auth      AuthConfig
	Sweeper   SweeperConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"arcadeswap-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	LoginKey    string `envconfig:"LOGIN_KEY" default:""` // Admin endpoints key
}

// DatabaseConfig selects and configures the trade store.
type DatabaseConfig struct {
	Driver string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite, mysql, or postgres
	Path   string `envconfig:"DB_PATH" default:"./data/arcadeswap.db"`
	// MySQL / PostgreSQL settings
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"0"`
	Name     string `envconfig:"DB_NAME" default:"arcadeswap"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASS" default:""`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	// Pool settings (0 keeps the driver default)
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"0"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"0"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	TxTimeout       time.Duration `envconfig:"DB_TX_TIMEOUT" default:"10s"`
}

// LockConfig holds proposal lock settings.
type LockConfig struct {
	Type string        `envconfig:"LOCK_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"LOCK_TTL" default:"10s"`
	Wait time.Duration `envconfig:"LOCK_WAIT" default:"2s"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" default:""`
	Issuer    string `envconfig:"JWT_ISSUER" default:""`
}

// SweeperConfig holds stale trade sweeper settings.
type SweeperConfig struct {
	Enabled   bool          `envconfig:"SWEEPER_ENABLED" default:"true"`
	Interval  time.Duration `envconfig:"SWEEPER_INTERVAL" default:"10m"`
	BatchSize int           `envconfig:"SWEEPER_BATCH_SIZE" default:"200"`
}

// TelemetryConfig holds tracing settings. Tracing stays off without an endpoint.
type TelemetryConfig struct {
	Endpoint string `envconfig:"OTEL_EXPORTER_ENDPOINT" default:""`
	Enabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (l *LockConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", l.RedisHost, l.RedisPort)
}

// MySQLDSN returns the MySQL data source name.
func (d *DatabaseConfig) MySQLDSN() string {
	port := d.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		d.User, d.Password, d.Host, port, d.Name)
}

// PostgresDSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) PostgresDSN() string {
	port := d.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, port, d.Name, d.SSLMode)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate rejects combinations that cannot start.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch c.Lock.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported LOCK_TYPE %q", c.Lock.Type)
	}
	if c.App.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
