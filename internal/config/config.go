// Package config собирает настройки сервера: значения по умолчанию,
// затем переменные окружения GOPHGATE_*, затем флаги командной строки.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrConfig невалидная конфигурация
var ErrConfig = errors.New("invalid configuration")

// DevSecret используется, если секрет не задан. Только для разработки.
const DevSecret = "gophgate-dev-secret-change-me"

const envPrefix = "GOPHGATE_"

// Драйверы хранилищ
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	LedgerSQL       = "sql"
	LedgerRedis     = "redis"
)

// Config настройки сервера
type Config struct {
	Addr      string
	LogLevel  string
	LogFormat string

	Storage     string // sqlite | postgres
	DBPath      string
	DatabaseURL string

	Ledger        string // sql | redis
	RedisAddr     string
	RedisPassword string
	RedisPrefix   string
	RedisDB       int

	JWTSecret     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	TempTTL       time.Duration
	SweepInterval time.Duration

	BcryptCost int
	RateLimit  int // запросов в RateWindow с одного IP
	RateWindow time.Duration

	MetricsEnabled bool

	// InsecureSecret true, если подставлен DevSecret
	InsecureSecret bool
	ShowVersion    bool
}

// Default возвращает конфигурацию для локальной разработки
func Default() *Config {
	return &Config{
		Addr:           ":8080",
		LogLevel:       "info",
		LogFormat:      "text",
		Storage:        StorageSQLite,
		DBPath:         "gophgate.db",
		Ledger:         LedgerSQL,
		RedisAddr:      "localhost:6379",
		RedisPrefix:    "gophgate",
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     7 * 24 * time.Hour,
		TempTTL:        10 * time.Minute,
		SweepInterval:  time.Hour,
		BcryptCost:     12,
		RateLimit:      100,
		RateWindow:     time.Minute,
		MetricsEnabled: true,
	}
}

// Load применяет окружение и флаги поверх Default и проверяет результат
func Load(args []string) (*Config, error) {
	cfg := Default()
	if err := cfg.LoadFromEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.ParseFlags(args); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = DevSecret
		cfg.InsecureSecret = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv перекрывает поля значениями из окружения.
// getenv передается параметром, в тестах это map.
func (c *Config) LoadFromEnv(getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	str("ADDR", &c.Addr)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("STORAGE", &c.Storage)
	str("DB_PATH", &c.DBPath)
	str("DATABASE_URL", &c.DatabaseURL)
	str("LEDGER", &c.Ledger)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	str("REDIS_PREFIX", &c.RedisPrefix)
	str("JWT_SECRET", &c.JWTSecret)

	durations := []struct {
		dst  *time.Duration
		name string
	}{
		{&c.AccessTTL, "ACCESS_TTL"},
		{&c.RefreshTTL, "REFRESH_TTL"},
		{&c.TempTTL, "TEMP_TTL"},
		{&c.SweepInterval, "SWEEP_INTERVAL"},
		{&c.RateWindow, "RATE_WINDOW"},
	}
	for _, d := range durations {
		v := getenv(envPrefix + d.name)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s: %v", ErrConfig, envPrefix, d.name, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		dst  *int
		name string
	}{
		{&c.RedisDB, "REDIS_DB"},
		{&c.BcryptCost, "BCRYPT_COST"},
		{&c.RateLimit, "RATE_LIMIT"},
	}
	for _, i := range ints {
		v := getenv(envPrefix + i.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s: %v", ErrConfig, envPrefix, i.name, err)
		}
		*i.dst = n
	}

	if v := getenv(envPrefix + "METRICS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sMETRICS: %v", ErrConfig, envPrefix, err)
		}
		c.MetricsEnabled = b
	}

	return nil
}

// ParseFlags перекрывает поля флагами. Значения по умолчанию флагов
// берутся из текущих полей, поэтому неуказанный флаг ничего не меняет.
func (c *Config) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("gophgate-server", flag.ContinueOnError)

	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
	fs.StringVar(&c.Storage, "storage", c.Storage, "credential storage: sqlite or postgres")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path")
	fs.StringVar(&c.DatabaseURL, "database-url", c.DatabaseURL, "PostgreSQL DSN")
	fs.StringVar(&c.Ledger, "ledger", c.Ledger, "token ledger backend: sql or redis")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.StringVar(&c.RedisPrefix, "redis-prefix", c.RedisPrefix, "Redis key prefix")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")
	fs.StringVar(&c.JWTSecret, "jwt-secret", c.JWTSecret, "HMAC secret for access tokens")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "refresh token lifetime")
	fs.DurationVar(&c.TempTTL, "temp-ttl", c.TempTTL, "registration token lifetime")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "expired token sweep interval")
	fs.IntVar(&c.BcryptCost, "bcrypt-cost", c.BcryptCost, "bcrypt cost")
	fs.IntVar(&c.RateLimit, "rate-limit", c.RateLimit, "requests per rate window per client IP")
	fs.DurationVar(&c.RateWindow, "rate-window", c.RateWindow, "rate limit window")
	fs.BoolVar(&c.MetricsEnabled, "metrics", c.MetricsEnabled, "expose /metrics")
	fs.BoolVar(&c.ShowVersion, "version", false, "show version information and exit")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	switch c.Storage {
	case StorageSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("db path is required for sqlite storage"))
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database url is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q", c.Storage))
	}
	switch c.Ledger {
	case LedgerSQL:
	case LedgerRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis addr is required for redis ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger %q", c.Ledger))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	for name, d := range map[string]time.Duration{
		"access ttl":     c.AccessTTL,
		"refresh ttl":    c.RefreshTTL,
		"temp ttl":       c.TempTTL,
		"sweep interval": c.SweepInterval,
		"rate window":    c.RateWindow,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.RateLimit <= 0 {
		errs = append(errs, errors.New("rate limit must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
	}
	return nil
}
