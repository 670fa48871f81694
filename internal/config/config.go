package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	MySQLDSN  string `envconfig:"MYSQL_DSN" default:"root:root@tcp(localhost:3306)/mavex?parseTime=true"`
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`

	// AMQPURL empty means order-created events are only logged.
	AMQPURL        string `envconfig:"AMQP_URL" default:""`
	NotifyExchange string `envconfig:"NOTIFY_EXCHANGE" default:"storefront.orders"`
	NotifyWorkers  int    `envconfig:"NOTIFY_WORKERS" default:"4"`

	QueueSize          int           `envconfig:"QUEUE_SIZE" default:"1024"`
	RateLimitPerWindow int           `envconfig:"RATE_LIMIT_PER_WINDOW" default:"30"`
	RateLimitWindow    time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
