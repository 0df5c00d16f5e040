package events

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/brandonyach/teamworksams/internal/cmd/base"
	"github.com/brandonyach/teamworksams/pkg/importer"
	"github.com/brandonyach/teamworksams/pkg/result"
)

// ImportCommand imports event data from a CSV or XLSX file.
type ImportCommand struct {
	*base.Command

	clientFlags base.ClientFlags

	flagForm        string
	flagInput       string
	flagMode        string
	flagIDColumn    string
	flagTableFields string
	flagYes         bool
}

func (c *ImportCommand) Synopsis() string {
	return "Import event data from a file"
}

func (c *ImportCommand) Help() string {
	return `Usage: amsctl events import -form=<name> -input=<file> [options]

  Reads a CSV or XLSX file and imports its rows as events. Rows sharing a
  user and start date become one event; declared table fields become
  numbered table rows. Updates require an event_id column.` + c.Flags().Help()
}

func (c *ImportCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("events import", flag.ExitOnError))
	c.clientFlags.Register(f)
	f.StringVar(&c.flagForm, "form", "", "(Required) Event form name.")
	f.StringVar(&c.flagInput, "input", "", "(Required) Input file (.csv or .xlsx).")
	f.StringVar(&c.flagMode, "mode", "insert", "Import mode: insert, update, or upsert.")
	f.StringVar(&c.flagIDColumn, "id-column", "",
		"Column identifying the athlete: user_id, username, email, or about.")
	f.StringVar(&c.flagTableFields, "table-fields", "",
		"Comma-separated columns belonging to the form's table section.")
	f.BoolVar(&c.flagYes, "yes", false, "Skip the confirmation prompt on updates.")
	return f
}

func (c *ImportCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagForm == "" || c.flagInput == "" {
		c.UI.Error("form and input flags are required")
		return 1
	}

	t, err := c.ReadTable(c.flagInput)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	ctx := context.Background()
	cl, err := c.Connect(ctx, c.clientFlags)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	opts := importer.Options{
		IDColumn: c.flagIDColumn,
		Logger:   c.Log,
	}
	if c.flagTableFields != "" {
		opts.TableFields = strings.Split(c.flagTableFields, ",")
	}
	if !c.flagYes {
		opts.Confirm = func(count int, form string) bool {
			answer, err := c.UI.Ask(fmt.Sprintf(
				"About to overwrite %d events on '%s'. Continue? (y/N)", count, form))
			return err == nil && strings.EqualFold(strings.TrimSpace(answer), "y")
		}
	}

	var report *result.Report
	switch c.flagMode {
	case "insert":
		report, err = importer.InsertEventData(ctx, cl, t, c.flagForm, opts)
	case "update":
		report, err = importer.UpdateEventData(ctx, cl, t, c.flagForm, opts)
	case "upsert":
		report, err = importer.UpsertEventData(ctx, cl, t, c.flagForm, opts)
	default:
		c.UI.Error(fmt.Sprintf("unknown mode '%s' (want insert, update, or upsert)", c.flagMode))
		return 1
	}
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	c.UI.Output(report.String())
	if report.Failed() > 0 {
		return 1
	}
	return 0
}
