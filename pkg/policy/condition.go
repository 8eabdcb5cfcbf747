package policy

import (
	"strings"
)

// EvaluateCondition evaluates one condition against an event document.
// The condition's field is resolved as a dot-separated path into the
// event; if any path segment is absent the condition is not satisfied,
// regardless of type. not_equals against an absent field is also false:
// "we could not see the value" never counts as a violation.
func EvaluateCondition(cond Condition, event map[string]interface{}) bool {
	resolved, ok := resolvePath(event, cond.Field)
	if !ok {
		return false
	}

	switch cond.Type {
	case ConditionEquals:
		return looseEqual(resolved, cond.Value)
	case ConditionNotEquals:
		return !looseEqual(resolved, cond.Value)
	case ConditionContains:
		return contains(resolved, cond.Value)
	case ConditionGreaterThan:
		a, b, ok := numericPair(resolved, cond.Value)
		return ok && a > b
	case ConditionLessThan:
		a, b, ok := numericPair(resolved, cond.Value)
		return ok && a < b
	default:
		return false
	}
}

// resolvePath traverses nested maps by splitting the path on ".". The
// second return value is false when any segment is missing or the
// current value is not a map.
func resolvePath(event map[string]interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}

	var current interface{} = event
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// looseEqual compares two values with numeric normalization: JSON
// decoding yields float64 for all numbers, while stored condition values
// can be ints, so 9876 and float64(9876) must compare equal.
func looseEqual(a, b interface{}) bool {
	if fa, fb, ok := numericPair(a, b); ok {
		return fa == fb
	}
	return a == b
}

func contains(resolved, value interface{}) bool {
	needle, ok := value.(string)
	switch haystack := resolved.(type) {
	case string:
		return ok && strings.Contains(haystack, needle)
	case []interface{}:
		for _, item := range haystack {
			if looseEqual(item, value) {
				return true
			}
		}
	case []string:
		for _, item := range haystack {
			if ok && item == needle {
				return true
			}
		}
	}
	return false
}

// numericPair normalizes both operands to float64. Non-numeric operands
// make the pair non-comparable.
func numericPair(a, b interface{}) (float64, float64, bool) {
	fa, ok := toFloat(a)
	if !ok {
		return 0, 0, false
	}
	fb, ok := toFloat(b)
	if !ok {
		return 0, 0, false
	}
	return fa, fb, true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
