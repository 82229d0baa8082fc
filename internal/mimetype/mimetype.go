// Package mimetype resolves short type tokens to MIME types and matches
// Content-Type values against type patterns.
package mimetype

import (
	"mime"
	"path"
	"strings"
)

// OctetStream is returned for tokens that cannot be resolved when a
// fallback is required.
const OctetStream = "application/octet-stream"

// types holds the extensions seen on API responses. The platform table is
// consulted for anything else.
var types = map[string]string{
	"atom":  "application/atom+xml",
	"bin":   OctetStream,
	"css":   "text/css",
	"csv":   "text/csv",
	"form":  "application/x-www-form-urlencoded",
	"gif":   "image/gif",
	"htm":   "text/html",
	"html":  "text/html",
	"ico":   "image/x-icon",
	"jpeg":  "image/jpeg",
	"jpg":   "image/jpeg",
	"js":    "application/javascript",
	"json":  "application/json",
	"md":    "text/markdown",
	"mjs":   "application/javascript",
	"mp4":   "video/mp4",
	"pdf":   "application/pdf",
	"png":   "image/png",
	"rss":   "application/rss+xml",
	"svg":   "image/svg+xml",
	"text":  "text/plain",
	"txt":   "text/plain",
	"wasm":  "application/wasm",
	"webp":  "image/webp",
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"xml":   "application/xml",
	"yaml":  "application/yaml",
	"yml":   "application/yaml",
	"zip":   "application/zip",
}

// Resolver is the default MIME resolver.
type Resolver struct{}

// Resolve implements the token lookup for callers holding a Resolver value.
func (Resolver) Resolve(token string) (string, bool) {
	return Lookup(token)
}

// Lookup maps "html", ".html" or "index.html" to a MIME type. Tokens that
// already contain a slash are returned unchanged.
func Lookup(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	if strings.Contains(token, "/") {
		return token, true
	}

	ext := strings.ToLower(path.Ext("x." + token))
	ext = strings.TrimPrefix(ext, ".")

	if ext == "" {
		return "", false
	}

	if t, ok := types[ext]; ok {
		return t, true
	}

	full := mime.TypeByExtension("." + ext)
	if full == "" {
		return "", false
	}

	mediaType, _, err := mime.ParseMediaType(full)
	if err != nil {
		return "", false
	}

	return mediaType, true
}

// Normalize turns a pattern into a full type pattern. Extension tokens are
// resolved, "+json" style suffixes become "*/*+json" and full types pass
// through.
func Normalize(pattern string) (string, bool) {
	pattern = strings.ToLower(strings.TrimSpace(pattern))

	switch {
	case pattern == "":
		return "", false
	case strings.HasPrefix(pattern, "+"):
		return "*/*" + pattern, true
	case strings.Contains(pattern, "/"):
		return pattern, true
	}

	return Lookup(pattern)
}

// Match reports whether contentType (parameters allowed) matches pattern.
// Patterns may be tokens ("html"), full types ("text/html"), wildcards
// ("text/*", "*/*") or suffix wildcards ("application/*+json", "+json").
func Match(contentType, pattern string) bool {
	actual, ok := parseType(contentType)
	if !ok {
		return false
	}

	expected, ok := Normalize(pattern)
	if !ok {
		return false
	}

	return matchType(expected, actual)
}

// parseType strips parameters and lowercases a media type.
func parseType(contentType string) (string, bool) {
	if strings.TrimSpace(contentType) == "" {
		return "", false
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Fall back to the part before the first parameter.
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}

	if strings.Count(mediaType, "/") != 1 {
		return "", false
	}

	return mediaType, true
}

func matchType(expected, actual string) bool {
	expectedParts := strings.SplitN(expected, "/", 2)
	actualParts := strings.SplitN(actual, "/", 2)

	if len(expectedParts) != 2 || len(actualParts) != 2 {
		return false
	}

	if expectedParts[0] != "*" && expectedParts[0] != actualParts[0] {
		return false
	}

	if strings.HasPrefix(expectedParts[1], "*+") {
		suffix := expectedParts[1][1:]

		return len(actualParts[1]) > len(suffix) && strings.HasSuffix(actualParts[1], suffix)
	}

	return expectedParts[1] == "*" || expectedParts[1] == actualParts[1]
}
