package executor

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"autoflow/app/db/models"
)

const (
	CondAll     = "all"
	CondAny     = "any"
	CondNot     = "not"
	CondCompare = "compare"
)

var compareOps = map[string]bool{
	"eq": true, "ne": true, "gt": true, "gte": true, "lt": true, "lte": true,
	"contains": true, "in": true, "exists": true,
	"older_than_days": true, "newer_than_days": true,
}

// ValidateCondition reports problems of a predicate tree keyed by the path of
// the offending node, rooted at prefix.
func ValidateCondition(c *models.Condition, prefix string) map[string]string {
	fields := map[string]string{}
	validateCondition(c, prefix, fields)
	return fields
}

func validateCondition(c *models.Condition, path string, fields map[string]string) {
	if c == nil {
		return
	}
	switch c.Type {
	case CondAll, CondAny:
		for i := range c.Conditions {
			validateCondition(&c.Conditions[i], fmt.Sprintf("%s.conditions[%d]", path, i), fields)
		}
	case CondNot:
		if len(c.Conditions) != 1 {
			fields[path+".conditions"] = "not takes exactly one condition"
			return
		}
		validateCondition(&c.Conditions[0], path+".conditions[0]", fields)
	case CondCompare, "":
		if c.Field == "" {
			fields[path+".field"] = "required"
		}
		if !compareOps[c.Op] {
			fields[path+".op"] = fmt.Sprintf("unknown operator %q", c.Op)
			return
		}
		switch c.Op {
		case "in":
			if v := reflect.ValueOf(c.Value); !v.IsValid() || v.Kind() != reflect.Slice {
				fields[path+".value"] = "must be a list"
			}
		case "older_than_days", "newer_than_days", "gt", "gte", "lt", "lte":
			if c.Value == nil {
				fields[path+".value"] = "required"
			}
		}
		if c.Op == "older_than_days" || c.Op == "newer_than_days" {
			if _, ok := toFloat(c.Value); !ok {
				fields[path+".value"] = "must be a number of days"
			}
		}
	default:
		fields[path+".type"] = fmt.Sprintf("unknown condition type %q", c.Type)
	}
}

// Match evaluates c against one item. A nil condition matches everything.
func Match(c *models.Condition, item map[string]interface{}, now time.Time) (bool, error) {
	if c == nil {
		return true, nil
	}
	switch c.Type {
	case CondAll:
		for i := range c.Conditions {
			ok, err := Match(&c.Conditions[i], item, now)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case CondAny:
		for i := range c.Conditions {
			ok, err := Match(&c.Conditions[i], item, now)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case CondNot:
		if len(c.Conditions) != 1 {
			return false, fmt.Errorf("not condition needs exactly one operand")
		}
		ok, err := Match(&c.Conditions[0], item, now)
		return !ok, err
	case CondCompare, "":
		value, present := lookup(item, c.Field)
		return compare(c.Op, value, present, c.Value, now)
	}
	return false, fmt.Errorf("unknown condition type %q", c.Type)
}

// lookup resolves a dotted path through nested maps.
func lookup(item map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = item
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func compare(op string, actual interface{}, present bool, expected interface{}, now time.Time) (bool, error) {
	switch op {
	case "exists":
		want := true
		if b, ok := expected.(bool); ok {
			want = b
		}
		has := present && actual != nil && actual != ""
		return has == want, nil
	case "eq":
		return present && equal(actual, expected), nil
	case "ne":
		return !present || !equal(actual, expected), nil
	case "in":
		list := reflect.ValueOf(expected)
		if !list.IsValid() || list.Kind() != reflect.Slice {
			return false, fmt.Errorf("in expects a list")
		}
		for i := 0; i < list.Len(); i++ {
			if present && equal(actual, list.Index(i).Interface()) {
				return true, nil
			}
		}
		return false, nil
	case "contains":
		if !present {
			return false, nil
		}
		if s, ok := actual.(string); ok {
			return strings.Contains(strings.ToLower(s), strings.ToLower(fmt.Sprint(expected))), nil
		}
		rv := reflect.ValueOf(actual)
		if rv.Kind() == reflect.Slice {
			for i := 0; i < rv.Len(); i++ {
				if equal(rv.Index(i).Interface(), expected) {
					return true, nil
				}
			}
		}
		return false, nil
	case "gt", "gte", "lt", "lte":
		if !present || actual == nil {
			return false, nil
		}
		cmp, ok := order(actual, expected)
		if !ok {
			return false, nil
		}
		switch op {
		case "gt":
			return cmp > 0, nil
		case "gte":
			return cmp >= 0, nil
		case "lt":
			return cmp < 0, nil
		}
		return cmp <= 0, nil
	case "older_than_days", "newer_than_days":
		if !present {
			return false, nil
		}
		t, ok := toTime(actual)
		if !ok {
			return false, nil
		}
		days, ok := toFloat(expected)
		if !ok {
			return false, fmt.Errorf("%s expects a number of days", op)
		}
		cutoff := now.Add(-time.Duration(days * float64(24*time.Hour)))
		if op == "older_than_days" {
			return t.Before(cutoff), nil
		}
		return t.After(cutoff), nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

func equal(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ba == bb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// order compares numbers, then times, then strings. ok is false when the two
// values have no common ordering.
func order(a, b interface{}) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	if ta, ok := toTime(a); ok {
		tb, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
