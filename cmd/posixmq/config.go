package main

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/posixmq/pkg/consumer"
	"github.com/ava-labs/posixmq/pkg/mq"
	"github.com/ava-labs/posixmq/pkg/utils"
)

// Config holds all configuration for a posixmq command
type Config struct {
	// Application settings
	Verbose bool

	// Queue settings
	Queue    string
	Encoding string
	ExistOK  bool

	// Send settings, a nil Payload is read from stdin
	Payload  *string
	Priority uint

	// Receive settings
	Count int

	// Consumer settings
	Consumer consumer.Config

	// Metrics settings
	MetricsHost string
	MetricsPort int
	Environment string
	Host        string
}

// MetricsAddr returns the formatted metrics address
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// buildConfig builds a Config from CLI context flags
func buildConfig(c *cli.Context) (*Config, error) {
	cfg := &Config{
		Verbose:     c.Bool("verbose"),
		Queue:       c.Args().First(),
		Encoding:    c.String("encoding"),
		ExistOK:     c.Bool("exist-ok"),
		Priority:    c.Uint("priority"),
		Count:       c.Int("count"),
		MetricsHost: c.String("metrics-host"),
		MetricsPort: c.Int("metrics-port"),
		Environment: c.String("environment"),
	}
	if c.NArg() > 1 {
		payload := c.Args().Get(1)
		cfg.Payload = &payload
	}

	if c.Command.Name == "consume" {
		consumerCfg, err := buildConsumerConfig(c)
		if err != nil {
			return nil, err
		}
		cfg.Consumer = consumerCfg
		if cfg.Queue == "" {
			cfg.Queue = consumerCfg.Queue
		}
		cfg.Host, _ = os.Hostname()
	}

	if cfg.Queue == "" {
		return nil, errors.New("queue name is required")
	}
	if err := mq.ValidateName(cfg.Queue); err != nil {
		return nil, fmt.Errorf("invalid queue name %q: %w", cfg.Queue, err)
	}
	if cfg.Encoding != "" && !slices.Contains(utils.Encodings, cfg.Encoding) {
		return nil, fmt.Errorf("unknown encoding %q", cfg.Encoding)
	}
	if c.IsSet("count") && cfg.Count < 1 {
		return nil, fmt.Errorf("count must be at least 1, got %d", cfg.Count)
	}
	return cfg, nil
}

// buildConsumerConfig loads the consumer environment and applies the flags
// that were set explicitly.
func buildConsumerConfig(c *cli.Context) (consumer.Config, error) {
	cfg, err := consumer.LoadConfig()
	if err != nil {
		return consumer.Config{}, err
	}

	if name := c.Args().First(); name != "" {
		cfg.Queue = name
	}
	if c.IsSet("concurrency") {
		cfg.Concurrency = c.Int64("concurrency")
	}
	if c.IsSet("dlq") {
		cfg.DLQQueue = c.String("dlq")
	}
	if c.IsSet("retry-interrupted") {
		cfg.RetryInterrupted = c.Bool("retry-interrupted")
	}
	if c.IsSet("shutdown-timeout") {
		timeout := c.Duration("shutdown-timeout")
		cfg.ShutdownTimeout = &timeout
	}
	if cfg.DLQQueue != "" {
		if err := mq.ValidateName(cfg.DLQQueue); err != nil {
			return consumer.Config{}, fmt.Errorf("invalid dlq name %q: %w", cfg.DLQQueue, err)
		}
	}
	return cfg.WithDefaults(), nil
}
