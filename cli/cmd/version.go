package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lonnen/jansky/types"
)

// VersionCommand returns the version command. It must not contact the
// queue or the store.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "jansky %s (commit: %s)\n", types.Version, commit)
			return nil
		},
	}
}
