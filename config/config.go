package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pyrelog/pyre/internal/screen"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis; when Host is empty the rate limiter and pat ledger fall
	// back to their in-process backings.
	Redis RedisConfig `mapstructure:"redis"`

	// NATS; when Host is empty lifecycle events are not published.
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Rate limiting
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`

	// Expiry sweeping
	Sweep SweepConfig `mapstructure:"sweep"`

	// Cron trigger auth
	Cron CronConfig `mapstructure:"cron"`

	// Sensitive-content screen
	Screen ScreenConfig `mapstructure:"screen"`

	// Burn certificates
	Certificate CertificateConfig `mapstructure:"certificate"`
}

type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

type RateLimitConfig struct {
	Capacity        int           `mapstructure:"capacity"`
	Window          time.Duration `mapstructure:"window"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type SweepConfig struct {
	// TTL is the worry lifetime; ExpiresAt is fixed at creation.
	TTL time.Duration `mapstructure:"ttl"`

	// Interval drives the in-process sweeper ticker.
	Interval time.Duration `mapstructure:"interval"`

	// RetentionGrace keeps expired-but-unburned rows around past expiry
	// before the sweep removes them. Zero purges at expiry.
	RetentionGrace time.Duration `mapstructure:"retention_grace"`
}

type CronConfig struct {
	Secret string `mapstructure:"secret"`
}

type ScreenConfig struct {
	Keywords  []string          `mapstructure:"keywords"`
	Helplines []screen.Helpline `mapstructure:"helplines"`
}

type CertificateConfig struct {
	Secret string `mapstructure:"secret"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve flat env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")

	v.SetDefault("ratelimit.capacity", 10)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.cleanup_interval", time.Minute)

	v.SetDefault("sweep.ttl", 24*time.Hour)
	v.SetDefault("sweep.interval", 10*time.Minute)
	v.SetDefault("sweep.retention_grace", time.Duration(0))
}

func bindEnvVars(v *viper.Viper) {
	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")

	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.base_url", "BASE_URL")

	// Secrets
	v.BindEnv("cron.secret", "CRON_SECRET")
	v.BindEnv("certificate.secret", "CERTIFICATE_SECRET")
}
