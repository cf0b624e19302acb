package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// StringArray is a list column stored as a JSON array, used for comment mentions. Rows
// written by hand as "a,b" or a bare JSON string still scan.
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	out := make([]string, 0, len(a))
	for _, s := range a {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *StringArray) Scan(value interface{}) error {
	if a == nil {
		return fmt.Errorf("models.StringArray: Scan on nil pointer")
	}
	var raw string
	switch v := value.(type) {
	case nil:
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("models.StringArray: unsupported Scan type %T", value)
	}

	raw = strings.TrimSpace(raw)
	*a = StringArray{}
	switch {
	case raw == "" || raw == "null":
		return nil
	case strings.HasPrefix(raw, "["):
		var arr []string
		if err := json.Unmarshal([]byte(raw), &arr); err != nil {
			return fmt.Errorf("models.StringArray: %w", err)
		}
		*a = arr
		return nil
	case strings.HasPrefix(raw, `"`):
		var single string
		if err := json.Unmarshal([]byte(raw), &single); err == nil && single != "" {
			*a = StringArray{single}
		}
		return nil
	}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*a = append(*a, part)
		}
	}
	return nil
}
