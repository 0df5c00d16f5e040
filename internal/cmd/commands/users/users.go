package users

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/mitchellh/cli"

	"github.com/brandonyach/teamworksams/internal/cmd/base"
	usersapi "github.com/brandonyach/teamworksams/pkg/users"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "List and inspect user accounts"
}

func (c *Command) Help() string {
	return `Usage: amsctl users <subcommand> [options]

  This command groups subcommands for working with user accounts.`
}

func (c *Command) Run(args []string) int {
	return cli.RunResultHelp
}

// ListCommand exports user accounts as a table.
type ListCommand struct {
	*base.Command

	clientFlags base.ClientFlags
	flagKey     string
	flagValues  string
	flagOutput  string
}

func (c *ListCommand) Synopsis() string {
	return "List user accounts"
}

func (c *ListCommand) Help() string {
	return `Usage: amsctl users list [options]

  Lists the user accounts the session can see, optionally narrowed by an
  identity filter, and writes them as CSV.` + c.Flags().Help()
}

func (c *ListCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("users list", flag.ExitOnError))
	c.clientFlags.Register(f)
	f.StringVar(&c.flagKey, "key", "",
		"Filter key: username, email, about, uuid, or group.")
	f.StringVar(&c.flagValues, "values", "",
		"Comma-separated filter values.")
	f.StringVar(&c.flagOutput, "output", "",
		"Output file (.csv or .xlsx). Empty writes CSV to stdout.")
	return f
}

func (c *ListCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if (c.flagKey == "") != (c.flagValues == "") {
		c.UI.Error("-key and -values must be used together")
		return 1
	}

	ctx := context.Background()
	cl, err := c.Connect(ctx, c.clientFlags)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	var filter *usersapi.Filter
	if c.flagKey != "" {
		filter = &usersapi.Filter{
			Key:    c.flagKey,
			Values: strings.Split(c.flagValues, ","),
		}
	}
	t, err := usersapi.GetUsers(ctx, cl, filter, usersapi.Options{Logger: c.Log})
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	if err := c.WriteTable(t, c.flagOutput); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	return 0
}

// GroupsCommand lists the groups the session can see.
type GroupsCommand struct {
	*base.Command

	clientFlags base.ClientFlags
	flagOutput  string
}

func (c *GroupsCommand) Synopsis() string {
	return "List athlete groups"
}

func (c *GroupsCommand) Help() string {
	return `Usage: amsctl users groups [options]

  Lists the athlete groups visible to the logged-in account.` + c.Flags().Help()
}

func (c *GroupsCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("users groups", flag.ExitOnError))
	c.clientFlags.Register(f)
	f.StringVar(&c.flagOutput, "output", "",
		"Output file (.csv or .xlsx). Empty writes CSV to stdout.")
	return f
}

func (c *GroupsCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	ctx := context.Background()
	cl, err := c.Connect(ctx, c.clientFlags)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	t, err := usersapi.GetGroups(ctx, cl, usersapi.Options{Logger: c.Log})
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	if err := c.WriteTable(t, c.flagOutput); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	return 0
}
