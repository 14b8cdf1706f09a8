package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseDriver       string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret string
	JWTTTL    time.Duration

	LogLevel string

	// AMQP publishing is disabled when AMQPURL is empty.
	AMQPURL      string
	AMQPExchange string

	// Invite mail is disabled when SESFromAddress is empty.
	SESFromAddress string
	AppBaseURL     string

	WorkerEnabled    bool
	ReminderLeadTime time.Duration
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var errs []error

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseDriver:       strings.ToLower(getenv("DATABASE_DRIVER", "postgres")),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		LogLevel:             getenv("LOG_LEVEL", "info"),
		AMQPURL:              getenv("AMQP_URL", ""),
		AMQPExchange:         getenv("AMQP_EXCHANGE", "moiledger"),
		SESFromAddress:       getenv("SES_FROM_ADDRESS", ""),
		AppBaseURL:           getenv("APP_BASE_URL", "http://localhost:3000"),
		WorkerEnabled:        getenv("WORKER_ENABLED", "true") == "true",
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	var err error
	if cfg.DatabaseURL, err = requireEnv("DATABASE_URL"); err != nil {
		errs = append(errs, err)
	}
	if cfg.JWTSecret, err = requireEnv("JWT_SECRET"); err != nil {
		errs = append(errs, err)
	}
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 7*24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.ReminderLeadTime, err = getDuration("REMINDER_LEAD_TIME", 24*time.Hour); err != nil {
		errs = append(errs, err)
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("invalid DATABASE_DRIVER %q: must be postgres or sqlite", cfg.DatabaseDriver))
	}

	if len(errs) > 0 {
		return cfg, errors.Join(errs...)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func requireEnv(key string) (string, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", fmt.Errorf("missing env: %s", key)
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def, fmt.Errorf("invalid duration for %s: %q", key, v)
	}
	return d, nil
}
