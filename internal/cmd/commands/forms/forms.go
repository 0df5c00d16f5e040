package forms

import (
	"context"
	"flag"
	"fmt"

	"github.com/mitchellh/cli"

	"github.com/brandonyach/teamworksams/internal/cmd/base"
	formsapi "github.com/brandonyach/teamworksams/pkg/forms"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "List forms and inspect their schemas"
}

func (c *Command) Help() string {
	return `Usage: amsctl forms <subcommand> [options]

  This command groups subcommands for working with forms.`
}

func (c *Command) Run(args []string) int {
	return cli.RunResultHelp
}

// ListCommand prints the accessible forms.
type ListCommand struct {
	*base.Command

	clientFlags base.ClientFlags
}

func (c *ListCommand) Synopsis() string {
	return "List accessible forms"
}

func (c *ListCommand) Help() string {
	return `Usage: amsctl forms list [options]

  Lists every form the logged-in account can reach, with its type and
  category.` + c.Flags().Help()
}

func (c *ListCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("forms list", flag.ExitOnError))
	c.clientFlags.Register(f)
	return f
}

func (c *ListCommand) Run(args []string) int {
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

	forms, err := formsapi.GetForms(ctx, cl, formsapi.Options{Logger: c.Log})
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	for _, f := range forms {
		line := fmt.Sprintf("%-10d %-10s %s", f.ID, f.Type, f.Name)
		if f.ReadOnly {
			line += " (read only)"
		}
		c.UI.Output(line)
	}
	return 0
}

// SchemaCommand prints a form's schema summary.
type SchemaCommand struct {
	*base.Command

	clientFlags base.ClientFlags
	flagForm    string
}

func (c *SchemaCommand) Synopsis() string {
	return "Print a form's schema"
}

func (c *SchemaCommand) Help() string {
	return `Usage: amsctl forms schema -form=<name> [options]

  Resolves a form by name and prints its sections, required fields, and
  field types.` + c.Flags().Help()
}

func (c *SchemaCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("forms schema", flag.ExitOnError))
	c.clientFlags.Register(f)
	f.StringVar(&c.flagForm, "form", "", "(Required) Form name.")
	return f
}

func (c *SchemaCommand) Run(args []string) int {
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

	schema, err := formsapi.GetFormSchema(ctx, cl, c.flagForm, formsapi.Options{Logger: c.Log})
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(schema.Summary())
	return 0
}
