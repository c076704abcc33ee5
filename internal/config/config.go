package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN         string        `env:"DATABASE_DSN,required=true"`
	RabbitMQURL         string        `env:"RABBITMQ_URL,required=true"`
	RedisURL            string        `env:"REDIS_URL,required=true"`
	DispatchQueue       string        `env:"DISPATCH_QUEUE,default=sms.dispatch"`
	SettingsKey         string        `env:"SMS_SETTINGS_KEY,default=sms"`
	SettingsRefresh     time.Duration `env:"SMS_SETTINGS_REFRESH,default=30s"`
	DispatchTimeout     time.Duration `env:"DISPATCH_TIMEOUT,default=30s"`
	WorkerConcurrency   int           `env:"WORKER_CONCURRENCY,default=8"`
	WorkerQueueSize     int           `env:"WORKER_QUEUE_SIZE,default=256"`
	SendRateLimitPerSec int           `env:"SMS_RATE_LIMIT_PER_SEC,default=100"`
	SMSMonthlyLimit     int64         `env:"SMS_MONTHLY_LIMIT,default=0"`
	UsageReportBuffer   int           `env:"USAGE_REPORT_BUFFER,default=1024"`
	ConsumerPrefetch    int           `env:"CONSUMER_PREFETCH,default=4"`
	APIPort             int           `env:"API_PORT,default=8080"`
	LogLevel            string        `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DispatchTimeout <= 0 {
		return nil, fmt.Errorf("failed to load config: DISPATCH_TIMEOUT must be positive")
	}
	return &cfg, nil
}
