// Package cors validates request origins for cross-origin responses.
package cors

import (
	"strings"
)

// Wildcard allows every origin when listed in the allowed domains.
const Wildcard = "*"

// Options controls which origins are allowed.
type Options struct {
	// AllowHTTP determines if HTTP (non-HTTPS) origins are allowed
	AllowHTTP bool

	// AllowedDomains is a list of domain suffixes that are allowed in CORS requests
	// e.g. [".example.com", "api.example.org"]
	// You can also use "*" to allow all origins
	AllowedDomains []string
}

// AllowOriginFunc creates a function that validates CORS origins based on
// the allowed domains and HTTP settings.
func AllowOriginFunc(opts Options) func(origin string) bool {
	return func(origin string) bool {
		if origin == "" {
			return false
		}

		if !opts.AllowHTTP && !strings.HasPrefix(origin, "https://") {
			return false
		}

		for _, domain := range opts.AllowedDomains {
			if domain == Wildcard || strings.HasSuffix(origin, domain) {
				return true
			}
		}

		return false
	}
}
