package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string

	// DefaultTimezone is the fallback resolution timezone for
	// medications that carry no zone of their own.
	DefaultTimezone string

	// GenerationHorizonDays is how far forward dose instances are
	// materialized, both on schedule changes and by the daily top-up.
	GenerationHorizonDays int
	// ReminderLeadMinutes is how far before the scheduled time a dose
	// reminder goes out.
	ReminderLeadMinutes int
	// SweepBatchSize bounds how many overdue rows a single sweep query
	// pulls at a time.
	SweepBatchSize int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	NotificationDriver string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:               getenv("APP_SERVICE", "doseline"),
		AppVersion:            getenv("APP_VERSION", "0.1.0"),
		Environment:           getenv("ENVIRONMENT", "development"),
		HTTPAddr:              getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:          getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:                getenv("DATABASE_TYPE", "postgres"),
		DBHost:                getenv("DATABASE_HOST", "localhost"),
		DBPort:                getenv("DATABASE_PORT", "5432"),
		DBName:                getenv("DATABASE_NAME", "doseline"),
		DBUser:                getenv("DATABASE_USER", "postgres"),
		DBPassword:            getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:             getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:         getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:         getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime:     getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		RedisAddr:             getenv("REDIS_ADDR", ""),
		RedisPassword:         getenv("REDIS_PASSWORD", ""),
		DefaultTimezone:       getenv("DEFAULT_TIMEZONE", "UTC"),
		GenerationHorizonDays: getenvInt("GENERATION_HORIZON_DAYS", 7),
		ReminderLeadMinutes:   getenvInt("REMINDER_LEAD_MINUTES", 30),
		SweepBatchSize:        getenvInt("SWEEP_BATCH_SIZE", 500),
		SMTPHost:              getenv("SMTP_HOST", ""),
		SMTPPort:              getenvInt("SMTP_PORT", 587),
		SMTPUsername:          getenv("SMTP_USERNAME", ""),
		SMTPPassword:          getenv("SMTP_PASSWORD", ""),
		SMTPFrom:              getenv("SMTP_FROM", "reminders@doseline.app"),
		NotificationDriver:    strings.ToLower(getenv("NOTIFICATION_DRIVER", "noop")),
	}
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewAdherenceConfigHolder),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
