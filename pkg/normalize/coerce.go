package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// boolFromString converts the literal strings "true" and "false" to
// booleans. Anything else, native booleans included, is returned as is.
func boolFromString(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return v
}

// toInt coerces a numeric value or a base-10 numeric string to int64.
func toInt(v interface{}) (int64, error) {
	switch n := v.(type) {
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not a base-10 integer: %q", n)
		}
		return i, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("not an integer: %s", n)
		}
		return i, nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int64(n), nil
	case float32:
		return toInt(float64(n))
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("integer overflow: %d", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// tagsToMap converts "key=value" strings into a mapping. A bare string is
// treated as a one-element list. Later duplicate keys win.
func tagsToMap(v interface{}) (map[string]string, error) {
	var items []interface{}
	switch t := v.(type) {
	case string:
		items = []interface{}{t}
	case []interface{}:
		items = t
	case []string:
		items = make([]interface{}, len(t))
		for i, s := range t {
			items[i] = s
		}
	case map[string]interface{}:
		out := make(map[string]string, len(t))
		for k, val := range t {
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("tag %q: expected string value, got %T", k, val)
			}
			out[k] = s
		}
		return out, nil
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("array of key/values required, got %T", v)
	}

	out := make(map[string]string, len(items))
	for i, item := range items {
		kv, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("element %d: expected key/value string, got %T", i, item)
		}
		if strings.Count(kv, "=") != 1 {
			return nil, fmt.Errorf("element %d: key/value string expected, got %q", i, kv)
		}
		k, val, _ := strings.Cut(kv, "=")
		out[k] = val
	}
	return out, nil
}
