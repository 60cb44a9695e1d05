package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/pvl/internal/ir"
)

// timeLayout keeps sub-second precision and sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func marshalTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func unmarshalTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unmarshal time %q: %w", s, err)
	}
	return t, nil
}

// marshalVars converts run variables to canonical JSON TEXT so equal
// maps are stored identically.
func marshalVars(vars map[string]string) (string, error) {
	obj := make(map[string]any, len(vars))
	for k, v := range vars {
		obj[k] = v
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal vars: %w", err)
	}
	return string(data), nil
}

func unmarshalVars(data string) (map[string]string, error) {
	vars := map[string]string{}
	if data == "" || data == "{}" {
		return vars, nil
	}
	if err := json.Unmarshal([]byte(data), &vars); err != nil {
		return nil, fmt.Errorf("unmarshal vars: %w", err)
	}
	return vars, nil
}
