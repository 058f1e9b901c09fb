package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Log       LogConfig
	Tracing   TracingConfig
	RateLimit RateLimitConfig
	Kafka     KafkaConfig
	Secrets   SecretsConfig
	Scheduler SchedulerConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Version     string
}

func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// CIDRs or IPs whose X-Forwarded-For is honoured. Empty trusts none.
	TrustedProxies []string
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (d DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.SQLitePath
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type LogConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Insecure    bool
	SampleRate  float64
}

type RateLimitConfig struct {
	// Per client IP
	RequestsPerSecond float64
	BurstSize         int
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	DispatchTopic string
	WriteTimeout  time.Duration
}

// SecretsConfig names secrets that override plain configuration values at startup.
type SecretsConfig struct {
	Provider           string // "" | "aws"
	Region             string
	DBPasswordSecretID string
	JWTSecretID        string
}

type SchedulerConfig struct {
	DBStatsInterval time.Duration
}

type binding struct {
	key string
	env string
	def any
}

var bindings = []binding{
	{"app.name", "APP_NAME", "medrx-api"},
	{"app.environment", "APP_ENV", "development"},
	{"app.version", "APP_VERSION", "0.0.0"},

	{"server.host", "SERVER_HOST", "0.0.0.0"},
	{"server.port", "SERVER_PORT", 8080},
	{"server.read_timeout", "SERVER_READ_TIMEOUT", 15 * time.Second},
	{"server.write_timeout", "SERVER_WRITE_TIMEOUT", 15 * time.Second},
	{"server.idle_timeout", "SERVER_IDLE_TIMEOUT", 60 * time.Second},
	{"server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT", 30 * time.Second},
	{"server.trusted_proxies", "SERVER_TRUSTED_PROXIES", ""},

	{"database.driver", "DB_DRIVER", DriverPostgres},
	{"database.host", "DB_HOST", "localhost"},
	{"database.port", "DB_PORT", 5432},
	{"database.name", "DB_NAME", "medrx"},
	{"database.user", "DB_USER", "medrx"},
	{"database.password", "DB_PASSWORD", ""},
	{"database.sslmode", "DB_SSLMODE", "require"},
	{"database.sqlite_path", "DB_SQLITE_PATH", "file:medrx.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
	{"database.max_open_conns", "DB_MAX_OPEN_CONNS", 25},
	{"database.max_idle_conns", "DB_MAX_IDLE_CONNS", 10},
	{"database.conn_max_lifetime", "DB_CONN_MAX_LIFETIME", 30 * time.Minute},
	{"database.conn_max_idle_time", "DB_CONN_MAX_IDLE_TIME", 5 * time.Minute},

	{"jwt.secret", "JWT_SECRET", ""},
	{"jwt.issuer", "JWT_ISSUER", "medrx-auth"},

	{"log.level", "LOG_LEVEL", "info"},
	{"log.format", "LOG_FORMAT", "json"},
	{"log.output", "LOG_OUTPUT", "stdout"},

	{"tracing.enabled", "TRACING_ENABLED", false},
	{"tracing.service_name", "TRACING_SERVICE_NAME", "medrx-api"},
	{"tracing.endpoint", "OTLP_ENDPOINT", "otel-collector:4318"},
	{"tracing.insecure", "OTLP_INSECURE", true},
	{"tracing.sample_rate", "TRACING_SAMPLE_RATE", 0.1},

	{"rate_limit.rps", "RATE_LIMIT_RPS", 50.0},
	{"rate_limit.burst", "RATE_LIMIT_BURST", 100},

	{"kafka.enabled", "KAFKA_ENABLED", false},
	{"kafka.brokers", "KAFKA_BROKERS", "localhost:9092"},
	{"kafka.dispatch_topic", "KAFKA_DISPATCH_TOPIC", "prescriptions.dispatched"},
	{"kafka.write_timeout", "KAFKA_WRITE_TIMEOUT", 5 * time.Second},

	{"secrets.provider", "SECRETS_PROVIDER", ""},
	{"secrets.region", "AWS_REGION", "us-east-1"},
	{"secrets.db_password_id", "DB_PASSWORD_SECRET_ID", ""},
	{"secrets.jwt_secret_id", "JWT_SECRET_ID", ""},

	{"scheduler.db_stats_interval", "SCHEDULER_DB_STATS_INTERVAL", 15 * time.Second},
}

// Load reads configuration from an optional file (CONFIG_FILE) and the environment.
// Environment variables win over file values.
func Load() (*Config, error) {
	v := viper.New()
	for _, b := range bindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", b.env, err)
		}
		v.SetDefault(b.key, b.def)
	}

	_ = v.BindEnv("config_file", "CONFIG_FILE")
	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("app.name"),
			Environment: v.GetString("app.environment"),
			Version:     v.GetString("app.version"),
		},
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			TrustedProxies:  getList(v, "server.trusted_proxies"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			Name:            v.GetString("database.name"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetDuration("database.conn_max_idle_time"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			OutputPath: v.GetString("log.output"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("tracing.enabled"),
			ServiceName: v.GetString("tracing.service_name"),
			Endpoint:    v.GetString("tracing.endpoint"),
			Insecure:    v.GetBool("tracing.insecure"),
			SampleRate:  v.GetFloat64("tracing.sample_rate"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("rate_limit.rps"),
			BurstSize:         v.GetInt("rate_limit.burst"),
		},
		Kafka: KafkaConfig{
			Enabled:       v.GetBool("kafka.enabled"),
			Brokers:       getList(v, "kafka.brokers"),
			DispatchTopic: v.GetString("kafka.dispatch_topic"),
			WriteTimeout:  v.GetDuration("kafka.write_timeout"),
		},
		Secrets: SecretsConfig{
			Provider:           strings.ToLower(v.GetString("secrets.provider")),
			Region:             v.GetString("secrets.region"),
			DBPasswordSecretID: v.GetString("secrets.db_password_id"),
			JWTSecretID:        v.GetString("secrets.jwt_secret_id"),
		},
		Scheduler: SchedulerConfig{
			DBStatsInterval: v.GetDuration("scheduler.db_stats_interval"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces production security requirements. It is exported so that
// the entry point can re-run it after secrets have been resolved.
func (cfg *Config) Validate() error {
	var errs []string

	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Sprintf("DB_DRIVER %q is not supported (postgres, sqlite)", cfg.Database.Driver))
	}

	awsSecrets := cfg.Secrets.Provider == "aws"
	if cfg.Secrets.Provider != "" && !awsSecrets {
		errs = append(errs, fmt.Sprintf("SECRETS_PROVIDER %q is not supported", cfg.Secrets.Provider))
	}

	jwtFromSecret := awsSecrets && cfg.Secrets.JWTSecretID != ""
	if cfg.JWT.Secret == "" && !jwtFromSecret {
		errs = append(errs, "JWT_SECRET is required")
	} else if cfg.JWT.Secret != "" && len(cfg.JWT.Secret) < 32 && cfg.App.IsProduction() {
		errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
	}

	if cfg.Database.Driver == DriverPostgres {
		pwFromSecret := awsSecrets && cfg.Secrets.DBPasswordSecretID != ""
		if cfg.Database.Password == "" && !pwFromSecret && cfg.App.Environment != "development" {
			errs = append(errs, "DB_PASSWORD is required in non-development environments")
		}
		if cfg.Database.SSLMode == "disable" && cfg.App.IsProduction() {
			errs = append(errs, "DB_SSLMODE=disable is not allowed in production")
		}
	}

	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		errs = append(errs, "KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}

	if cfg.RateLimit.RequestsPerSecond <= 0 || cfg.RateLimit.BurstSize <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}

// getList accepts either a comma separated string (env) or a native list (config file).
func getList(v *viper.Viper, key string) []string {
	raw, ok := v.Get(key).(string)
	if !ok {
		return v.GetStringSlice(key)
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			result = append(result, t)
		}
	}
	return result
}
