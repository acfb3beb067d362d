package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/posixmq/pkg/mq"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp builds the command tree. The mq options are applied to every queue
// the commands open.
func newApp(opts ...mq.Option) *cli.App {
	cmd := &commands{opts: opts}

	return &cli.App{
		Name:  "posixmq",
		Usage: "Manage and use POSIX message queues",
		Flags: globalFlags(),
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a queue with the kernel default limits",
				ArgsUsage: "NAME",
				Flags:     createFlags(),
				Action:    cmd.create,
			},
			{
				Name:      "send",
				Usage:     "Send one message, read from stdin when PAYLOAD is omitted",
				ArgsUsage: "NAME [PAYLOAD]",
				Flags:     sendFlags(),
				Action:    cmd.send,
			},
			{
				Name:      "receive",
				Usage:     "Receive messages, blocking while the queue is empty",
				ArgsUsage: "NAME",
				Flags:     receiveFlags(),
				Action:    cmd.receive,
			},
			{
				Name:      "stat",
				Usage:     "Show the queue limits and the number of queued messages",
				ArgsUsage: "NAME",
				Action:    cmd.stat,
			},
			{
				Name:      "delete",
				Usage:     "Remove a queue name; open handles keep working",
				ArgsUsage: "NAME",
				Action:    cmd.delete,
			},
			{
				Name:      "consume",
				Usage:     "Consume messages, printing one JSON line per message",
				ArgsUsage: "[NAME]",
				Flags:     consumeFlags(),
				Action:    cmd.consume,
			},
		},
	}
}
