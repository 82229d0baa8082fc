package lambdaproxy

import "strings"

// FilterValue converts the strings "true", "false" and "null" (in any case)
// to true, false and nil. Other strings keep their original case and
// non-string values pass through unchanged.
func FilterValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}

	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	default:
		return s
	}
}
