package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ava-labs/posixmq/pkg/mq"
	"github.com/ava-labs/posixmq/pkg/utils"
)

type commands struct {
	opts []mq.Option
}

// setup builds the config and logger shared by every command.
func (cmd *commands) setup(c *cli.Context) (*Config, *zap.SugaredLogger, []mq.Option, error) {
	cfg, err := buildConfig(c)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	opts := append([]mq.Option{mq.WithLogger(sugar)}, cmd.opts...)
	return cfg, sugar, opts, nil
}

func (cmd *commands) create(c *cli.Context) error {
	cfg, sugar, opts, err := cmd.setup(c)
	if err != nil {
		return err
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	open := mq.Create
	if cfg.ExistOK {
		open = mq.OpenOrCreate
	}
	q, err := open(cfg.Queue, opts...)
	if err != nil {
		return fmt.Errorf("failed to create queue: %w", err)
	}
	defer q.Close()

	attrs := q.Attributes()
	fmt.Fprintf(c.App.Writer, "%s ready: max %d messages of %s\n",
		q.Name(), attrs.MaxPending, humanize.IBytes(uint64(attrs.MaxMessageSize)))
	return nil
}

func (cmd *commands) send(c *cli.Context) error {
	cfg, sugar, opts, err := cmd.setup(c)
	if err != nil {
		return err
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	var raw string
	if cfg.Payload != nil {
		raw = *cfg.Payload
	} else {
		b, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return fmt.Errorf("failed to read payload from stdin: %w", err)
		}
		raw = string(b)
	}
	payload, err := utils.DecodePayload(raw, cfg.Encoding)
	if err != nil {
		return err
	}

	q, err := mq.Open(cfg.Queue, opts...)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer q.Close()

	if err := q.Send(mq.NewMessage(payload, cfg.Priority)); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	sugar.Debugw("message sent", "queue", cfg.Queue, "size", len(payload), "priority", cfg.Priority)
	return nil
}

func (cmd *commands) receive(c *cli.Context) error {
	cfg, sugar, opts, err := cmd.setup(c)
	if err != nil {
		return err
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	q, err := mq.Open(cfg.Queue, opts...)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer q.Close()

	for range cfg.Count {
		msg, err := q.Receive()
		if err != nil {
			return fmt.Errorf("failed to receive: %w", err)
		}
		out, err := utils.EncodePayload(msg.Payload(), cfg.Encoding)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%d\t%s\n", msg.Priority(), out)
	}
	return nil
}

func (cmd *commands) stat(c *cli.Context) error {
	cfg, sugar, opts, err := cmd.setup(c)
	if err != nil {
		return err
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	q, err := mq.Open(cfg.Queue, opts...)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer q.Close()

	attrs, err := q.Stat()
	if err != nil {
		return fmt.Errorf("failed to read attributes: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "name:             %s\n", q.Name())
	fmt.Fprintf(w, "messages:         %d\n", attrs.CurrentCount)
	fmt.Fprintf(w, "max messages:     %d\n", attrs.MaxPending)
	fmt.Fprintf(w, "max message size: %s (%d bytes)\n", humanize.IBytes(uint64(attrs.MaxMessageSize)), attrs.MaxMessageSize)
	fmt.Fprintf(w, "max queue size:   %s\n", humanize.IBytes(uint64(attrs.MaxPending*attrs.MaxMessageSize)))
	return nil
}

func (cmd *commands) delete(c *cli.Context) error {
	cfg, sugar, opts, err := cmd.setup(c)
	if err != nil {
		return err
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	q, err := mq.Open(cfg.Queue, opts...)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer q.Close()

	if err := q.Delete(); err != nil {
		return fmt.Errorf("failed to delete queue: %w", err)
	}
	sugar.Infof("queue %s deleted", cfg.Queue)
	return nil
}
