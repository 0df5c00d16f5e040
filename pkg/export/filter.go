package export

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// conditionMap translates filter condition operators onto the numeric codes
// filteredeventsearch expects.
var conditionMap = map[string]int{
	"=": 1, "!=": 2, "contains": 3, "<": 4, ">": 5, "<=": 6, ">=": 7,
}

// EventFilter narrows an event export by athlete and by form field value.
type EventFilter struct {
	// UserKey and UserValues narrow the athletes: "username", "email",
	// "about", or "group".
	UserKey    string
	UserValues []string

	// DataKey, DataValue, and DataCondition narrow events by one field:
	// events where DataKey DataCondition DataValue. All three must be set
	// together.
	DataKey       string
	DataValue     string
	DataCondition string

	// EventsPerUser caps how many events the server returns per athlete.
	EventsPerUser int
}

// Validate checks the filter's key and condition.
func (f *EventFilter) Validate() error {
	if err := validation.ValidateStruct(f,
		validation.Field(&f.UserKey,
			validation.In("username", "email", "about", "group")),
		validation.Field(&f.EventsPerUser, validation.Min(0)),
	); err != nil {
		return err
	}
	if f.UserKey != "" && len(f.UserValues) == 0 {
		return fmt.Errorf("user filter values are required with a user key")
	}
	hasData := f.DataKey != "" || f.DataValue != "" || f.DataCondition != ""
	if hasData {
		if f.DataKey == "" || f.DataValue == "" || f.DataCondition == "" {
			return fmt.Errorf("data key, value, and condition must be set together")
		}
		if _, ok := conditionMap[f.DataCondition]; !ok {
			return fmt.Errorf("invalid data condition '%s'", f.DataCondition)
		}
	}
	return nil
}

func (f *EventFilter) hasDataFilter() bool {
	return f != nil && f.DataKey != "" && f.DataValue != "" && f.DataCondition != ""
}

// UserFilter narrows a profile or sync export by athlete.
type UserFilter struct {
	UserKey    string
	UserValues []string
}

// Validate checks the filter key.
func (f *UserFilter) Validate() error {
	if err := validation.ValidateStruct(f,
		validation.Field(&f.UserKey,
			validation.In("username", "email", "about", "group")),
	); err != nil {
		return err
	}
	if f.UserKey != "" && len(f.UserValues) == 0 {
		return fmt.Errorf("user filter values are required with a user key")
	}
	return nil
}
