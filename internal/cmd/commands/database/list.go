package database

import (
	"context"
	"flag"
	"fmt"

	"github.com/brandonyach/teamworksams/internal/cmd/base"
	databaseapi "github.com/brandonyach/teamworksams/pkg/database"
)

// ListCommand fetches a page of entries from a database form.
type ListCommand struct {
	*base.Command

	clientFlags base.ClientFlags

	flagForm   string
	flagLimit  int
	flagOffset int
	flagOutput string
}

func (c *ListCommand) Synopsis() string {
	return "Fetch entries from a database form"
}

func (c *ListCommand) Help() string {
	return `Usage: amsctl database list -form=<name> [options]

  Fetches a page of entries from a database form and writes them as CSV to
  stdout, or to a file with -output.` + c.Flags().Help()
}

func (c *ListCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("database list", flag.ExitOnError))
	c.clientFlags.Register(f)
	f.StringVar(&c.flagForm, "form", "", "(Required) Database form name.")
	f.IntVar(&c.flagLimit, "limit", 10000, "Maximum number of entries to fetch.")
	f.IntVar(&c.flagOffset, "offset", 0, "Number of entries to skip.")
	f.StringVar(&c.flagOutput, "output", "", "Output file (.csv or .xlsx). Defaults to stdout.")
	return f
}

func (c *ListCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagForm == "" {
		c.UI.Error("form flag is required")
		return 1
	}

	ctx := context.Background()
	cl, err := c.Connect(ctx, c.clientFlags)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	t, err := databaseapi.GetDatabase(ctx, cl, c.flagForm, c.flagLimit, c.flagOffset,
		databaseapi.Options{Logger: c.Log})
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
