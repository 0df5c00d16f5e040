package login

import (
	"context"
	"flag"
	"fmt"

	"github.com/brandonyach/teamworksams/internal/cmd/base"
)

type Command struct {
	*base.Command

	clientFlags base.ClientFlags
}

func (c *Command) Synopsis() string {
	return "Verify credentials against an AMS instance"
}

func (c *Command) Help() string {
	return `Usage: amsctl login [options]

  Logs into the configured AMS instance and prints the authenticated
  identity. Useful for checking a config file or credentials before
  running data operations.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("login", flag.ExitOnError))
	c.clientFlags.Register(f)
	return f
}

func (c *Command) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	cl, err := c.Connect(context.Background(), c.clientFlags)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	info := cl.LoginInfo()
	c.UI.Output(fmt.Sprintf("Logged in to %s as %s %s (user id %d, application id %d)",
		cl.URL(), info.FirstName, info.LastName, info.UserID, info.ApplicationID))
	return 0
}
