package users

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Filter narrows a user lookup to accounts matching one identity attribute.
type Filter struct {
	// Key is the attribute to match: "username", "email", "about", "uuid",
	// or "group".
	Key string
	// Values are the attribute values to match. A group filter uses the
	// group names.
	Values []string
}

// Validate checks the filter key and values.
func (f *Filter) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.Key,
			validation.Required,
			validation.In("username", "email", "about", "uuid", "group")),
		validation.Field(&f.Values, validation.Required),
	)
}

// payload builds the identification payload usersearch expects. An about
// filter searches everyone and narrows client-side, since the server does
// not index full names.
func (f *Filter) payload() map[string]any {
	if f == nil || f.Key == "about" {
		return map[string]any{"identification": []any{}}
	}
	ident := make([]any, 0, len(f.Values))
	for _, v := range f.Values {
		ident = append(ident, map[string]any{f.Key: v})
	}
	return map[string]any{"identification": ident}
}
