package database

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/brandonyach/teamworksams/internal/cmd/base"
	databaseapi "github.com/brandonyach/teamworksams/pkg/database"
)

// DeleteCommand deletes a single database form entry.
type DeleteCommand struct {
	*base.Command

	clientFlags base.ClientFlags

	flagID  int64
	flagYes bool
}

func (c *DeleteCommand) Synopsis() string {
	return "Delete a database form entry"
}

func (c *DeleteCommand) Help() string {
	return `Usage: amsctl database delete -id=<entry id> [options]

  Permanently deletes a single database form entry.` + c.Flags().Help()
}

func (c *DeleteCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("database delete", flag.ExitOnError))
	c.clientFlags.Register(f)
	f.Int64Var(&c.flagID, "id", 0, "(Required) Entry id to delete.")
	f.BoolVar(&c.flagYes, "yes", false, "Skip the confirmation prompt.")
	return f
}

func (c *DeleteCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagID <= 0 {
		c.UI.Error("id flag is required and must be positive")
		return 1
	}

	if !c.flagYes {
		answer, err := c.UI.Ask(fmt.Sprintf(
			"Permanently delete database entry %d? (y/N)", c.flagID))
		if err != nil || !strings.EqualFold(strings.TrimSpace(answer), "y") {
			c.UI.Output("Cancelled.")
			return 0
		}
	}

	ctx := context.Background()
	cl, err := c.Connect(ctx, c.clientFlags)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	if err := databaseapi.DeleteDatabaseEntry(ctx, cl, c.flagID); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(fmt.Sprintf("Deleted database entry %d", c.flagID))
	return 0
}
