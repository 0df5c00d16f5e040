package events

import (
	"github.com/mitchellh/cli"

	"github.com/brandonyach/teamworksams/internal/cmd/base"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Export, import, and delete event data"
}

func (c *Command) Help() string {
	return `Usage: amsctl events <subcommand> [options]

  This command groups subcommands for working with event data.`
}

func (c *Command) Run(args []string) int {
	return cli.RunResultHelp
}
