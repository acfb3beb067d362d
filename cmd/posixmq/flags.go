package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/posixmq/pkg/utils"
)

// globalFlags returns the flags shared by every command
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
			Value:   false,
		},
	}
}

func encodingFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "encoding",
		Aliases: []string{"e"},
		Usage:   "Payload encoding (text, hex or base64)",
		Value:   utils.EncodingText,
	}
}

func createFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "exist-ok",
			Usage: "Open the queue instead of failing when it already exists",
		},
	}
}

func sendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.UintFlag{
			Name:    "priority",
			Aliases: []string{"p"},
			Usage:   "Message priority, higher values are delivered first",
			Value:   0,
		},
		encodingFlag(),
	}
}

func receiveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"n"},
			Usage:   "Number of messages to receive, blocking until each arrives",
			Value:   1,
		},
		encodingFlag(),
	}
}

// consumeFlags override the POSIXMQ_* consumer environment when set
func consumeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:    "concurrency",
			Aliases: []string{"c"},
			Usage:   "Maximum number of messages processed concurrently",
		},
		&cli.StringFlag{
			Name:  "dlq",
			Usage: "Queue receiving messages that failed processing",
		},
		&cli.BoolFlag{
			Name:  "retry-interrupted",
			Usage: "Retry receives interrupted by a signal",
		},
		&cli.DurationFlag{
			Name:  "shutdown-timeout",
			Usage: "How long to wait for in-flight messages on shutdown",
			Value: 30 * time.Second,
		},
		encodingFlag(),
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Aliases: []string{"m"},
			Usage:   "Port for Prometheus metrics server, 0 disables it",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.StringFlag{
			Name:    "environment",
			Usage:   "Deployment environment label for metrics (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
			Value:   "",
		},
	}
}
