package database

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/brandonyach/teamworksams/internal/cmd/base"
	databaseapi "github.com/brandonyach/teamworksams/pkg/database"
	"github.com/brandonyach/teamworksams/pkg/result"
)

// ImportCommand imports database form entries from a CSV or XLSX file.
type ImportCommand struct {
	*base.Command

	clientFlags base.ClientFlags

	flagForm        string
	flagInput       string
	flagMode        string
	flagTableFields string
	flagYes         bool
}

func (c *ImportCommand) Synopsis() string {
	return "Import database form entries from a file"
}

func (c *ImportCommand) Help() string {
	return `Usage: amsctl database import -form=<name> -input=<file> [options]

  Reads a CSV or XLSX file and imports its rows as database form entries.
  Declared table fields become numbered table rows. Updates require an
  entry_id column.` + c.Flags().Help()
}

func (c *ImportCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("database import", flag.ExitOnError))
	c.clientFlags.Register(f)
	f.StringVar(&c.flagForm, "form", "", "(Required) Database form name.")
	f.StringVar(&c.flagInput, "input", "", "(Required) Input file (.csv or .xlsx).")
	f.StringVar(&c.flagMode, "mode", "insert", "Import mode: insert or update.")
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

	opts := databaseapi.Options{Logger: c.Log}
	if c.flagTableFields != "" {
		opts.TableFields = strings.Split(c.flagTableFields, ",")
	}
	if !c.flagYes {
		opts.Confirm = func(count int, form string) bool {
			answer, err := c.UI.Ask(fmt.Sprintf(
				"About to overwrite %d entries on '%s'. Continue? (y/N)", count, form))
			return err == nil && strings.EqualFold(strings.TrimSpace(answer), "y")
		}
	}

	var report *result.Report
	switch c.flagMode {
	case "insert":
		report, err = databaseapi.InsertDatabaseEntry(ctx, cl, t, c.flagForm, opts)
	case "update":
		report, err = databaseapi.UpdateDatabaseEntry(ctx, cl, t, c.flagForm, opts)
	default:
		c.UI.Error(fmt.Sprintf("unknown mode '%s' (want insert or update)", c.flagMode))
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
