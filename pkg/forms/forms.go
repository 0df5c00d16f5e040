// Package forms lists the forms a session can reach and summarises their
// schemas: sections, required fields, linked fields, and field types.
package forms

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"

	"github.com/brandonyach/teamworksams/pkg/client"
)

// Form is one accessible form summary.
type Form struct {
	ID                int64  `mapstructure:"id"`
	Name              string `mapstructure:"name"`
	Type              string `mapstructure:"-"`
	MainCategory      string `mapstructure:"mainCategory"`
	ReadOnly          bool   `mapstructure:"isReadOnly"`
	GroupEntryEnabled bool   `mapstructure:"groupEntryEnabled"`
}

// Options adjusts form lookups.
type Options struct {
	Logger hclog.Logger
}

func (o Options) logger() hclog.Logger {
	if o.Logger == nil {
		return hclog.NewNullLogger()
	}
	return o.Logger
}

// GetForms lists every form the session can access, grouped flat with each
// form carrying its type ("event", "profile", "database", and the linked
// variants).
func GetForms(ctx context.Context, c *client.Client, opts Options) ([]Form, error) {
	log := opts.logger()
	log.Debug("requesting accessible forms")

	body, err := c.Fetch(ctx, http.MethodGet, "forms/summaries", nil, client.WithVersion("v3"))
	if err != nil {
		return nil, err
	}
	byType, ok := body.(map[string]any)
	if !ok {
		return nil, client.NewError("no valid forms data returned from server")
	}

	var forms []Form
	for formType, raw := range byType {
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			var f Form
			if err := mapstructure.WeakDecode(item, &f); err != nil {
				return nil, client.WrapError(err, "unexpected form summary shape")
			}
			f.Type = formType
			forms = append(forms, f)
		}
	}
	if len(forms) == 0 {
		return nil, client.NewError("no accessible forms found")
	}
	log.Info("retrieved forms", "count", len(forms))
	return forms, nil
}

// FindForm resolves a form name to its summary. Form names must be unique
// within an instance.
func FindForm(ctx context.Context, c *client.Client, name string, opts Options) (Form, error) {
	forms, err := GetForms(ctx, c, opts)
	if err != nil {
		return Form{}, err
	}
	var found []Form
	for _, f := range forms {
		if f.Name == name {
			found = append(found, f)
		}
	}
	switch len(found) {
	case 0:
		return Form{}, client.NewError(fmt.Sprintf("form '%s' not found", name))
	case 1:
		return found[0], nil
	default:
		return Form{}, client.NewError(
			fmt.Sprintf("multiple forms found with the name '%s'", name))
	}
}
