package builtin

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// BuiltinFunc is shared by the text/template and pongo2 evaluators.
var BuiltinFunc = map[string]interface{}{
	"json":    builtinJSONFunction,
	"default": builtinDefaultFunction,
	"addDays": builtinAddDaysFunction,
	"date":    builtinDateFunction,
	"lower":   strings.ToLower,
	"upper":   strings.ToUpper,
}

func builtinJSONFunction(values ...interface{}) (interface{}, error) {
	if len(values) == 0 {
		return "null", nil
	}
	output, err := json.Marshal(values[0])
	if err != nil {
		return nil, errors.New("invalid data")
	}
	return string(output), nil
}

// builtinDefaultFunction returns value unless it is nil or an empty string.
func builtinDefaultFunction(fallback, value interface{}) interface{} {
	if value == nil {
		return fallback
	}
	if s, ok := value.(string); ok && s == "" {
		return fallback
	}
	return value
}

func builtinAddDaysFunction(t interface{}, days int) (time.Time, error) {
	base, err := toTime(t)
	if err != nil {
		return time.Time{}, err
	}
	return base.AddDate(0, 0, days), nil
}

func builtinDateFunction(t interface{}) (string, error) {
	base, err := toTime(t)
	if err != nil {
		return "", err
	}
	return base.Format("2006-01-02"), nil
}

func toTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t != nil {
			return *t, nil
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, nil
		}
		if parsed, err := time.Parse("2006-01-02", t); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("not a time: %v", v)
}
