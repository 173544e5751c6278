package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds service configuration.
type Config struct {
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	Postgres      PostgresConfig
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	ServerAddr    string `env:"SERVER_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER"`

	BuyerDecisionWindow  time.Duration `env:"BUYER_DECISION_WINDOW" envDefault:"48h"`
	SellerDecisionWindow time.Duration `env:"SELLER_DECISION_WINDOW" envDefault:"24h"`
	AllowObjectionOnHold bool          `env:"ALLOW_OBJECTION_ON_HOLD" envDefault:"false"`

	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	SweepBatchSize int           `env:"SWEEP_BATCH_SIZE" envDefault:"100"`

	AuditSigningKeyHex string `env:"AUDIT_SIGNING_KEY"`
	AuditSigningKey    []byte

	Redis     RedisConfig
	RateLimit RateLimitConfig

	RabbitMQURL      string `env:"RABBITMQ_URL"`
	RabbitMQExchange string `env:"RABBITMQ_EXCHANGE" envDefault:"groupbuy.events"`
	EventBufferSize  int    `env:"EVENT_BUFFER_SIZE" envDefault:"1024"`
}

// PostgresConfig is used to build DatabaseURL when it is not set directly.
type PostgresConfig struct {
	User     string `env:"POSTGRES_USER" envDefault:"groupbuy"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"groupbuy_pass"`
	DB       string `env:"POSTGRES_DB" envDefault:"groupbuy"`
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	SSLMode  string `env:"DATABASE_SSLMODE" envDefault:"disable"`
}

// RedisConfig points at the shared rate-limit store. An empty Addr keeps
// rate limiting in process.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// RateLimitConfig sizes the per-caller token bucket on write routes.
type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"20"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" envDefault:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL" envDefault:"10m"`
	Prefix         string        `env:"RATE_LIMIT_PREFIX" envDefault:"groupbuy:rl"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, describeParseError(err)
	}
	if cfg.DatabaseURL == "" {
		p := cfg.Postgres
		cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
	}
	if cfg.AuditSigningKeyHex != "" {
		key, err := hex.DecodeString(cfg.AuditSigningKeyHex)
		if err != nil {
			return nil, fmt.Errorf("AUDIT_SIGNING_KEY must be hex: %w", err)
		}
		cfg.AuditSigningKey = key
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.StorageDriver != DriverPostgres && c.StorageDriver != DriverMemory {
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StorageDriver))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.BuyerDecisionWindow <= 0 || c.SellerDecisionWindow <= 0 {
		errs = append(errs, errors.New("decision windows must be positive"))
	}
	if c.SweepInterval < 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must not be negative"))
	}
	if c.SweepBatchSize <= 0 {
		errs = append(errs, errors.New("SWEEP_BATCH_SIZE must be positive"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Capacity <= 0 || c.RateLimit.RefillTokens <= 0 || c.RateLimit.RefillInterval <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_CAPACITY, RATE_LIMIT_REFILL_TOKENS and RATE_LIMIT_REFILL_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// describeParseError names the environment variables behind the struct
// fields env reports.
func describeParseError(err error) error {
	fields := make(map[string][]string)
	collectEnvKeys(reflect.TypeOf(Config{}), fields)
	msg := err.Error()
	var keys []string
	for field, envKeys := range fields {
		if strings.Contains(msg, `"`+field+`"`) {
			keys = append(keys, envKeys...)
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("parse env: %w", err)
	}
	sort.Strings(keys)
	return fmt.Errorf("invalid value for %s: %w", strings.Join(keys, ", "), err)
}

func collectEnvKeys(t reflect.Type, out map[string][]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if key := f.Tag.Get("env"); key != "" {
			out[f.Name] = append(out[f.Name], key)
			continue
		}
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Time{}) {
			collectEnvKeys(f.Type, out)
		}
	}
}
