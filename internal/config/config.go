package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort             string        `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL          string        `env:"DATABASE_URL,required"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile              string        `env:"LOG_FILE"`
	JWTSecret            string        `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int           `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int           `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`
	MaxBlockedRangeDays  int           `env:"MAX_BLOCKED_RANGE_DAYS" envDefault:"366"`
	SMTPHost             string        `env:"SMTP_HOST"`
	SMTPPort             int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser             string        `env:"SMTP_USER"`
	SMTPPass             string        `env:"SMTP_PASS"`
	SMTPFrom             string        `env:"SMTP_FROM"`
	SMTPFromName         string        `env:"SMTP_FROM_NAME"`
	SMTPUseTLS           bool          `env:"SMTP_USE_TLS" envDefault:"false"`
	RedisAddr            string        `env:"REDIS_ADDR"`
	RedisPassword        string        `env:"REDIS_PASSWORD"`
	RedisDB              int           `env:"REDIS_DB" envDefault:"0"`
	KafkaBrokers         []string      `env:"KAFKA_BROKERS" envSeparator:","`
	OTelEnabled          bool          `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint         string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTelSampleRatio      float64       `env:"OTEL_SAMPLING_RATIO" envDefault:"1"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
