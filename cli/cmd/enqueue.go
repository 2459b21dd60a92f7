package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lonnen/jansky/iox"
	"github.com/lonnen/jansky/queue"
)

// EnqueueCommand returns the enqueue command, a seeding tool that pushes
// crash ids onto the work queue. Production traffic arrives from the
// collector; this exists for reprocessing and local testing.
func EnqueueCommand() *cli.Command {
	return &cli.Command{
		Name:      "enqueue",
		Usage:     "Push crash ids onto the work queue",
		ArgsUsage: "CRASH_ID [CRASH_ID...]",
		Flags: []cli.Flag{
			ConfigFlag,
			QueueURLFlag,
		},
		Action: enqueueAction,
	}
}

func enqueueAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one crash id is required", 1)
	}

	cfg, err := resolveConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	source, err := queue.NewRedisSource(queue.RedisConfig{
		URL:           cfg.Queue.URL,
		QueueKey:      cfg.Queue.Key,
		ProcessingKey: cfg.Queue.ProcessingKey,
		Timeout:       cfg.Queue.Timeout.Duration,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("queue: %v", err), 1)
	}
	defer iox.DiscardClose(source)

	for _, crashID := range c.Args().Slice() {
		if err := source.Enqueue(c.Context, crashID); err != nil {
			return cli.Exit(fmt.Sprintf("enqueue %s: %v", crashID, err), 1)
		}
		fmt.Fprintln(c.App.Writer, crashID)
	}
	return nil
}
