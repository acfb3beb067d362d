package consumer

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Default values applied by WithDefaults.
const (
	DefaultConcurrency     = 1
	DefaultShutdownTimeout = 30 * time.Second
)

// Config holds the configuration for a Consumer.
type Config struct {
	Queue            string         `env:"POSIXMQ_QUEUE"             envDefault:"/posixmq"` // Queue to consume from, created if missing
	DLQQueue         string         `env:"POSIXMQ_DLQ_QUEUE"`                               // Dead letter queue for failed messages, disabled when empty
	Concurrency      int64          `env:"POSIXMQ_CONCURRENCY"       envDefault:"1"`        // Maximum concurrent message processors
	RetryInterrupted bool           `env:"POSIXMQ_RETRY_INTERRUPTED" envDefault:"true"`     // Retry receives interrupted by a signal
	ShutdownTimeout  *time.Duration `env:"POSIXMQ_SHUTDOWN_TIMEOUT"  envDefault:"30s"`      // How long to wait for in-flight messages on shutdown
}

// LoadConfig loads consumer configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse consumer config: %w", err)
	}
	return cfg, nil
}

// WithDefaults returns a copy of the config with default values filled in for
// unset fields. This method does not mutate the original config.
func (c Config) WithDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.ShutdownTimeout == nil {
		timeout := DefaultShutdownTimeout
		c.ShutdownTimeout = &timeout
	}
	return c
}
