package events

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/brandonyach/teamworksams/internal/cmd/base"
	"github.com/brandonyach/teamworksams/pkg/deletion"
)

// DeleteCommand permanently removes events by ID.
type DeleteCommand struct {
	*base.Command

	clientFlags base.ClientFlags

	flagIDs string
	flagYes bool
}

func (c *DeleteCommand) Synopsis() string {
	return "Delete events by ID"
}

func (c *DeleteCommand) Help() string {
	return `Usage: amsctl events delete -ids=<id,id,...> [options]

  Permanently deletes the named events. A single ID uses the per-event
  endpoint and prints the server's acknowledgement; multiple IDs are
  deleted in one batch.` + c.Flags().Help()
}

func (c *DeleteCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("events delete", flag.ExitOnError))
	c.clientFlags.Register(f)
	f.StringVar(&c.flagIDs, "ids", "", "(Required) Comma-separated event IDs.")
	f.BoolVar(&c.flagYes, "yes", false, "Skip the confirmation prompt.")
	return f
}

func (c *DeleteCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagIDs == "" {
		c.UI.Error("ids flag is required")
		return 1
	}
	var ids []int64
	for _, raw := range strings.Split(c.flagIDs, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			c.UI.Error(fmt.Sprintf("invalid event id '%s'", raw))
			return 1
		}
		ids = append(ids, id)
	}

	ctx := context.Background()
	cl, err := c.Connect(ctx, c.clientFlags)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	opts := deletion.Options{Logger: c.Log}
	if !c.flagYes {
		opts.Confirm = func(count int) bool {
			answer, err := c.UI.Ask(fmt.Sprintf(
				"Permanently delete %d events? (y/N)", count))
			return err == nil && strings.EqualFold(strings.TrimSpace(answer), "y")
		}
	}

	if len(ids) == 1 {
		msg, err := deletion.DeleteEvent(ctx, cl, ids[0], opts)
		if err != nil {
			c.UI.Error(err.Error())
			return 1
		}
		c.UI.Output(msg)
		return 0
	}
	if err := deletion.DeleteMultipleEvents(ctx, cl, ids, opts); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(fmt.Sprintf("Deleted %d events", len(ids)))
	return 0
}
