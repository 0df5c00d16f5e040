package forms

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/brandonyach/teamworksams/pkg/client"
)

// Field is one form item in a schema.
type Field struct {
	Name          string
	Type          string
	Instructions  string
	Required      bool
	DefaultsLast  bool
	Options       []string
	Scores        []string
	DateSelection string
}

// Section is one field set in a schema.
type Section struct {
	Name         string
	Instructions string
}

// Schema summarises a form's structure.
type Schema struct {
	FormName string
	FormID   int64
	Sections []Section
	Fields   []Field
	// Raw is the full decoded schema document for callers that need
	// details the summary drops.
	Raw any
}

// linkedTypes are the field types whose values come from another form.
var linkedTypes = map[string]struct{}{
	"Linked Text": {}, "Linked Option": {}, "Linked Value": {},
	"Linked Date": {}, "Linked Time": {},
}

// GetFormSchema fetches and summarises the schema of the named form.
func GetFormSchema(ctx context.Context, c *client.Client, formName string, opts Options) (*Schema, error) {
	if formName == "" {
		return nil, client.NewError("form name is required")
	}
	form, err := FindForm(ctx, c, formName, opts)
	if err != nil {
		return nil, err
	}
	log := opts.logger()
	log.Info("fetching form schema", "form", formName, "id", form.ID, "type", form.Type)

	endpoint := fmt.Sprintf("forms/%s/%d", form.Type, form.ID)
	body, err := c.Fetch(ctx, http.MethodGet, endpoint, nil, client.WithVersion("v3"))
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, client.NewError(fmt.Sprintf("no schema returned for form '%s'", formName))
	}
	return parseSchema(body)
}

func parseSchema(body any) (*Schema, error) {
	var root struct {
		Name string `mapstructure:"name"`
		ID   int64  `mapstructure:"id"`
	}
	if err := mapstructure.WeakDecode(body, &root); err != nil {
		return nil, client.WrapError(err, "unexpected form schema shape")
	}
	s := &Schema{FormName: root.Name, FormID: root.ID, Raw: body}
	walkSchema(body, s)
	return s, nil
}

// walkSchema descends the schema tree collecting field sets and form items.
func walkSchema(node any, s *Schema) {
	m, ok := node.(map[string]any)
	if !ok {
		return
	}
	switch m["type"] {
	case "FormFieldSet":
		var sec struct {
			Name         string `mapstructure:"name"`
			Instructions string `mapstructure:"instructions"`
		}
		if err := mapstructure.WeakDecode(m, &sec); err == nil {
			s.Sections = append(s.Sections, Section(sec))
		}
	case "FormItem":
		var item struct {
			Name                     string   `mapstructure:"name"`
			FormItemType             string   `mapstructure:"formItemType"`
			Instructions             string   `mapstructure:"instructions"`
			Required                 bool     `mapstructure:"required"`
			DefaultsToLastKnownValue bool     `mapstructure:"defaultsToLastKnownValue"`
			Options                  []string `mapstructure:"options"`
			Scores                   []string `mapstructure:"scores"`
			DateSelection            string   `mapstructure:"dateSelection"`
		}
		if err := mapstructure.WeakDecode(m, &item); err == nil {
			s.Fields = append(s.Fields, Field{
				Name:          item.Name,
				Type:          item.FormItemType,
				Instructions:  item.Instructions,
				Required:      item.Required,
				DefaultsLast:  item.DefaultsToLastKnownValue,
				Options:       item.Options,
				Scores:        item.Scores,
				DateSelection: item.DateSelection,
			})
		}
	}
	children, _ := m["children"].([]any)
	for _, child := range children {
		walkSchema(child, s)
	}
}

// RequiredFields returns the fields an entry must fill.
func (s *Schema) RequiredFields() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// LinkedFields returns the fields whose values come from another form.
func (s *Schema) LinkedFields() []Field {
	var out []Field
	for _, f := range s.Fields {
		if _, ok := linkedTypes[f.Type]; ok {
			out = append(out, f)
		}
	}
	return out
}

// FieldsByType buckets fields by their form item type.
func (s *Schema) FieldsByType() map[string][]Field {
	out := make(map[string][]Field)
	for _, f := range s.Fields {
		t := f.Type
		if t == "" {
			t = "Unknown"
		}
		out[t] = append(out[t], f)
	}
	return out
}

// Summary renders a human-readable schema overview.
func (s *Schema) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Form Schema Summary: %s\n", s.FormName)
	fmt.Fprintf(&b, "Form ID: %d\n\n", s.FormID)

	fmt.Fprintf(&b, "Sections (%d)\n", len(s.Sections))
	for _, sec := range s.Sections {
		name := sec.Name
		if name == "" {
			name = "Unnamed Section"
		}
		fmt.Fprintf(&b, "  - %s\n", name)
	}

	required := s.RequiredFields()
	fmt.Fprintf(&b, "\nRequired Fields (%d)\n", len(required))
	for _, f := range required {
		fmt.Fprintf(&b, "  - %s\n", f.Name)
	}

	linked := s.LinkedFields()
	fmt.Fprintf(&b, "\nLinked Fields (%d)\n", len(linked))
	for _, f := range linked {
		fmt.Fprintf(&b, "  - %s\n", f.Name)
	}

	byType := s.FieldsByType()
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	fmt.Fprintf(&b, "\nField Types (%d)\n", len(types))
	for _, t := range types {
		fmt.Fprintf(&b, "  - %s: %d field(s)\n", t, len(byType[t]))
	}
	return b.String()
}
