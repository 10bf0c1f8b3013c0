// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Relayer configures the cross-network relayer process.
type Relayer struct {
	NetworksFile string `env:"NETWORKS_FILE" envDefault:"networks.json"`

	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"127.0.0.1:9092"`
	KafkaGroup   string `env:"KAFKA_GROUP" envDefault:"credit-relayer"`
	TopicPrefix  string `env:"RELAY_TOPIC_PREFIX" envDefault:"credit.relay."`

	GasStrategy  string        `env:"GAS_STRATEGY" envDefault:"AVERAGE"`
	MaxRetries   int           `env:"SUBMIT_MAX_RETRIES" envDefault:"3"`
	RetryDelay   time.Duration `env:"SUBMIT_RETRY_DELAY" envDefault:"5s"`
	PollInterval time.Duration `env:"MONITOR_POLL_INTERVAL" envDefault:"5s"`

	// PGDSN enables the Postgres delivery-history trail when set.
	PGDSN string `env:"PG_DSN"`
}

func LoadRelayer() (Relayer, error) {
	var c Relayer
	if err := env.Parse(&c); err != nil {
		return Relayer{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}
