package database

import (
	"github.com/mitchellh/cli"

	"github.com/brandonyach/teamworksams/internal/cmd/base"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Fetch, import, and delete database form entries"
}

func (c *Command) Help() string {
	return `Usage: amsctl database <subcommand> [options]

  This command groups subcommands for working with database form entries.`
}

func (c *Command) Run(args []string) int {
	return cli.RunResultHelp
}
