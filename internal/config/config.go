package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	JWT           JWTConfig
	Log           LogConfig
	HTTP          HTTPConfig
	Orders        OrdersConfig
	Manufacturing ManufacturingConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxTimeout       time.Duration // upper bound for a single business transaction
	AutoMigrate     bool
}

// JWTConfig holds the shared secret used to verify access tokens
type JWTConfig struct {
	Secret string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	CORSAllowOrigins []string
}

// OrdersConfig holds order numbering settings
type OrdersConfig struct {
	NumberPrefix string
}

// ManufacturingConfig holds batch production settings
type ManufacturingConfig struct {
	BatchNumberPrefix string
	RequireQC         bool // when true a batch must pass QC_PENDING before completion
}

// Load reads configuration with the following priority (highest first):
// 1. Environment variables with MEDSUPPLY_ prefix (e.g. MEDSUPPLY_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
//
// envFile is loaded into the process environment first when it exists.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// A missing .env file is fine; the caller logs it.
		_ = godotenv.Load(envFile)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MEDSUPPLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			TxTimeout:       v.GetDuration("database.tx_timeout"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Orders: OrdersConfig{
			NumberPrefix: v.GetString("orders.number_prefix"),
		},
		Manufacturing: ManufacturingConfig{
			BatchNumberPrefix: v.GetString("manufacturing.batch_number_prefix"),
			RequireQC:         v.GetBool("manufacturing.require_qc"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "medsupply")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.tx_timeout", "10s")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("jwt.secret", "default_super_secret_key")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("http.cors_allow_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})

	v.SetDefault("orders.number_prefix", "ORD")
	v.SetDefault("manufacturing.batch_number_prefix", "BATCH")
	v.SetDefault("manufacturing.require_qc", false)
}

// Validate rejects configurations that must never reach production
func (c *Config) Validate() error {
	if c.App.Env == "production" && (c.JWT.Secret == "" || c.JWT.Secret == "default_super_secret_key") {
		return errors.New("jwt.secret must be set in production")
	}
	if c.Database.TxTimeout <= 0 {
		return errors.New("database.tx_timeout must be positive")
	}
	if c.Orders.NumberPrefix == "" {
		return errors.New("orders.number_prefix must not be empty")
	}
	return nil
}

// IsProduction reports whether the app runs in production mode
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN builds the postgres connection string
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}
