package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config содержит конфигурацию приложения.
type Config struct {
	RunAddress  string
	DatabaseURI string
	LogLevel    string

	ProviderAddress string
	ProviderAPIKey  string
	ProviderTimeout time.Duration
	MainAccountRef  string
	PlatformFeeRate decimal.Decimal
	AmountPolicy    string

	WebhookSecret string
	JWTSecret     string

	RedisAddress string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string

	NotifyWorkers   int
	NotifyQueueSize int

	SweepInterval         time.Duration
	NotificationRetention time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load загружает конфигурацию из .env, флагов командной строки и переменных окружения.
// Приоритет: переменные окружения > флаги > значения по умолчанию.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(os.Args[0], os.Args[1:], os.Getenv)
}

func parse(name string, args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.RunAddress, "a", "localhost:8080", "адрес и порт запуска сервиса")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "строка подключения к PostgreSQL")
	fs.StringVar(&cfg.ProviderAddress, "p", "", "адрес API платёжного провайдера")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	env := envReader{getenv: getenv}
	env.str(&cfg.RunAddress, "RUN_ADDRESS")
	env.str(&cfg.DatabaseURI, "DATABASE_URI")
	env.str(&cfg.ProviderAddress, "PROVIDER_ADDRESS")

	cfg.LogLevel = "info"
	env.str(&cfg.LogLevel, "LOG_LEVEL")

	env.str(&cfg.ProviderAPIKey, "PROVIDER_API_KEY")
	cfg.ProviderTimeout = 5 * time.Second
	env.duration(&cfg.ProviderTimeout, "PROVIDER_TIMEOUT")
	env.str(&cfg.MainAccountRef, "MAIN_ACCOUNT_REF")

	cfg.PlatformFeeRate = decimal.RequireFromString("0.03")
	if v := getenv("PLATFORM_FEE_RATE"); v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil {
			env.fail("PLATFORM_FEE_RATE", err)
		} else if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			env.fail("PLATFORM_FEE_RATE", fmt.Errorf("must be in [0, 1), got %s", v))
		} else {
			cfg.PlatformFeeRate = rate
		}
	}

	cfg.AmountPolicy = "split"
	env.str(&cfg.AmountPolicy, "AMOUNT_POLICY")

	env.str(&cfg.WebhookSecret, "WEBHOOK_SECRET")
	cfg.JWTSecret = "default-secret-change-in-production"
	env.str(&cfg.JWTSecret, "JWT_SECRET")

	env.str(&cfg.RedisAddress, "REDIS_ADDRESS")
	env.str(&cfg.SMTPHost, "SMTP_HOST")
	cfg.SMTPPort = 587
	env.integer(&cfg.SMTPPort, "SMTP_PORT")
	env.str(&cfg.SMTPUser, "SMTP_USER")
	env.str(&cfg.SMTPPassword, "SMTP_PASSWORD")
	cfg.EmailFrom = "noreply@crowdfund.local"
	env.str(&cfg.EmailFrom, "EMAIL_FROM")

	cfg.NotifyWorkers = 4
	env.integer(&cfg.NotifyWorkers, "NOTIFY_WORKERS")
	cfg.NotifyQueueSize = 256
	env.integer(&cfg.NotifyQueueSize, "NOTIFY_QUEUE_SIZE")

	cfg.SweepInterval = time.Hour
	env.duration(&cfg.SweepInterval, "SWEEP_INTERVAL")
	cfg.NotificationRetention = 30 * 24 * time.Hour
	env.duration(&cfg.NotificationRetention, "NOTIFICATION_RETENTION")

	cfg.RateLimitRPS = 5
	if v := getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			env.fail("RATE_LIMIT_RPS", err)
		} else if f <= 0 {
			env.fail("RATE_LIMIT_RPS", fmt.Errorf("must be positive, got %s", v))
		} else {
			cfg.RateLimitRPS = f
		}
	}
	cfg.RateLimitBurst = 10
	env.integer(&cfg.RateLimitBurst, "RATE_LIMIT_BURST")
	if cfg.RateLimitBurst <= 0 {
		env.fail("RATE_LIMIT_BURST", fmt.Errorf("must be positive, got %d", cfg.RateLimitBurst))
	}

	if env.err != nil {
		return nil, env.err
	}
	return cfg, nil
}

// envReader переопределяет значения из окружения и запоминает первую ошибку разбора.
type envReader struct {
	getenv func(string) string
	err    error
}

func (r *envReader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("config %s: %w", key, err)
	}
}

func (r *envReader) str(dst *string, key string) {
	if v := r.getenv(key); v != "" {
		*dst = v
	}
}

func (r *envReader) integer(dst *int, key string) {
	v := r.getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = n
}

func (r *envReader) duration(dst *time.Duration, key string) {
	v := r.getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = d
}
