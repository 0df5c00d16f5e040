package version

import (
	"github.com/brandonyach/teamworksams/internal/cmd/base"
	appversion "github.com/brandonyach/teamworksams/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version"
}

func (c *Command) Help() string {
	return `Usage: amsctl version

  Prints the CLI version.`
}

func (c *Command) Run(args []string) int {
	c.UI.Output(appversion.Version)
	return 0
}
