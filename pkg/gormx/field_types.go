package gormx

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

func scan(s interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, s)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("failed to unmarshal JSON value: %v", v)
	}
}

// SliceJson stores a JSON array in a text column.
type SliceJson []interface{}

func (s *SliceJson) Scan(value interface{}) error {
	return scan(s, value)
}

func (s SliceJson) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// MapJson stores a JSON object in a text column.
type MapJson map[string]interface{}

func (m *MapJson) Scan(value interface{}) error {
	return scan(m, value)
}

func (m MapJson) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// GetString returns the string stored under key, or "".
func (m MapJson) GetString(key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
