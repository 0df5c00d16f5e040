package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/brandonyach/teamworksams/internal/cmd/base"
	"github.com/brandonyach/teamworksams/internal/cmd/commands/database"
	"github.com/brandonyach/teamworksams/internal/cmd/commands/events"
	"github.com/brandonyach/teamworksams/internal/cmd/commands/forms"
	"github.com/brandonyach/teamworksams/internal/cmd/commands/login"
	"github.com/brandonyach/teamworksams/internal/cmd/commands/users"
	"github.com/brandonyach/teamworksams/internal/cmd/commands/version"
)

// Commands is the CLI command registry, populated by initCommands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	b := &base.Command{Log: log, UI: ui}

	Commands = map[string]cli.CommandFactory{
		"login": func() (cli.Command, error) {
			return &login.Command{Command: b}, nil
		},
		"users": func() (cli.Command, error) {
			return &users.Command{Command: b}, nil
		},
		"users list": func() (cli.Command, error) {
			return &users.ListCommand{Command: b}, nil
		},
		"users groups": func() (cli.Command, error) {
			return &users.GroupsCommand{Command: b}, nil
		},
		"forms": func() (cli.Command, error) {
			return &forms.Command{Command: b}, nil
		},
		"forms list": func() (cli.Command, error) {
			return &forms.ListCommand{Command: b}, nil
		},
		"forms schema": func() (cli.Command, error) {
			return &forms.SchemaCommand{Command: b}, nil
		},
		"events": func() (cli.Command, error) {
			return &events.Command{Command: b}, nil
		},
		"events export": func() (cli.Command, error) {
			return &events.ExportCommand{Command: b}, nil
		},
		"events import": func() (cli.Command, error) {
			return &events.ImportCommand{Command: b}, nil
		},
		"events delete": func() (cli.Command, error) {
			return &events.DeleteCommand{Command: b}, nil
		},
		"database": func() (cli.Command, error) {
			return &database.Command{Command: b}, nil
		},
		"database list": func() (cli.Command, error) {
			return &database.ListCommand{Command: b}, nil
		},
		"database import": func() (cli.Command, error) {
			return &database.ImportCommand{Command: b}, nil
		},
		"database delete": func() (cli.Command, error) {
			return &database.DeleteCommand{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
