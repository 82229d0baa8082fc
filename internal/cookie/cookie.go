// Package cookie parses Cookie request headers and serializes Set-Cookie
// values.
package cookie

import (
	"net/http"
	"net/url"
	"strings"
)

// Pair is a single name/value taken from a Cookie header.
type Pair struct {
	Name  string
	Value string
}

// Parse reads a Cookie header. Pairs without a name or "=" are skipped,
// surrounding quotes are removed and percent-encoded values are decoded when
// they are valid. The first occurrence of a name wins.
func Parse(header string) []Pair {
	var pairs []Pair

	seen := map[string]bool{}

	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}

		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}

		value = strings.TrimSpace(value)
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}

		seen[name] = true

		pairs = append(pairs, Pair{Name: name, Value: Decode(value)})
	}

	return pairs
}

// Decode percent-decodes a cookie value, returning it unchanged when it is
// not valid percent-encoding.
func Decode(value string) string {
	if !strings.Contains(value, "%") {
		return value
	}

	decoded, err := url.PathUnescape(value)
	if err != nil {
		return value
	}

	return decoded
}

// unreserved undoes the escapes QueryEscape applies to characters that
// encodeURIComponent leaves alone.
var unreserved = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// Encode percent-encodes a cookie value the way encodeURIComponent does:
// spaces become %20 and !'()* are kept.
func Encode(value string) string {
	return unreserved.Replace(url.QueryEscape(value))
}

// Serialize renders c as a Set-Cookie header value. The value is written as
// given; callers encode it first. An empty string is returned for cookies
// net/http considers invalid, such as names containing separators.
func Serialize(c *http.Cookie) string {
	return c.String()
}
