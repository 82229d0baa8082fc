// Package negotiate selects the best media type for an Accept header.
//
// Matching follows RFC 7231 section 5.3.2: every candidate is paired with the
// most specific Accept entry that covers it, candidates with a zero quality
// are dropped and the rest are ordered by quality, specificity, the position
// of the Accept entry and finally the order the candidates were given in.
package negotiate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/elnormous/contenttype"
)

// Negotiator is the default content negotiator.
type Negotiator struct{}

// BestMatch implements the negotiation for callers holding a Negotiator
// value.
func (Negotiator) BestMatch(accept string, candidates []string) (string, bool) {
	return BestMatch(accept, candidates)
}

// accepted is one parsed entry of an Accept header.
type accepted struct {
	typ     string
	subtype string
	params  map[string]string
	q       float64
	index   int
}

// priority describes how a candidate was matched.
type priority struct {
	candidate int
	accept    int
	q         float64
	s         int
}

// BestMatch returns the candidate that best satisfies the Accept header.
// Candidates must be full media types. An empty header accepts the first
// candidate.
func BestMatch(accept string, candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	if strings.TrimSpace(accept) == "" {
		return candidates[0], true
	}

	ranges := parseAccept(accept)
	matches := make([]priority, 0, len(candidates))

	for i, candidate := range candidates {
		p, ok := bestRange(candidate, ranges)
		if !ok || p.q <= 0 {
			continue
		}

		p.candidate = i
		matches = append(matches, p)
	}

	if len(matches) == 0 {
		return "", false
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]

		switch {
		case a.q != b.q:
			return a.q > b.q
		case a.s != b.s:
			return a.s > b.s
		case a.accept != b.accept:
			return a.accept < b.accept
		}

		return a.candidate < b.candidate
	})

	return candidates[matches[0].candidate], true
}

// parseAccept splits an Accept header into its media ranges. Malformed entries
// are skipped.
func parseAccept(accept string) []accepted {
	var ranges []accepted

	for i, part := range splitOutsideQuotes(accept, ',') {
		r, ok := parseRange(part, i)
		if ok {
			ranges = append(ranges, r)
		}
	}

	return ranges
}

// parseRange reads one media range. The grammar is checked by contenttype;
// the quality is taken out of the parameters.
func parseRange(s string, index int) (accepted, bool) {
	fields := splitOutsideQuotes(s, ';')
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	mediaType, err := contenttype.ParseMediaType(strings.ToLower(strings.Join(fields, ";")))
	if err != nil || mediaType.Type == "" || mediaType.Subtype == "" {
		return accepted{}, false
	}

	r := accepted{
		typ:     mediaType.Type,
		subtype: mediaType.Subtype,
		params:  map[string]string{},
		q:       1,
		index:   index,
	}

	for key, value := range mediaType.Parameters {
		if key != "q" {
			r.params[key] = value

			continue
		}

		// An unreadable quality keeps the default.
		if q, err := strconv.ParseFloat(value, 64); err == nil {
			r.q = q
		}
	}

	return r, true
}

// bestRange finds the Accept entry that describes candidate most precisely.
func bestRange(candidate string, ranges []accepted) (priority, bool) {
	want, ok := parseRange(candidate, -1)
	if !ok {
		return priority{}, false
	}

	best := priority{accept: -1}
	found := false

	for _, r := range ranges {
		s, ok := specify(want, r)
		if !ok {
			continue
		}

		better := !found ||
			s > best.s ||
			(s == best.s && r.q > best.q) ||
			(s == best.s && r.q == best.q && r.index > best.accept)

		if better {
			best = priority{accept: r.index, q: r.q, s: s}
			found = true
		}
	}

	return best, found
}

// specify scores how specifically r covers want: type 4, subtype 2,
// parameters 1.
func specify(want, r accepted) (int, bool) {
	s := 0

	switch {
	case r.typ == want.typ:
		s |= 4
	case r.typ != "*":
		return 0, false
	}

	switch {
	case r.subtype == want.subtype:
		s |= 2
	case r.subtype != "*":
		return 0, false
	}

	if len(r.params) > 0 {
		for key, value := range r.params {
			if value != "*" && !strings.EqualFold(value, want.params[key]) {
				return 0, false
			}
		}

		s |= 1
	}

	return s, true
}

// splitOutsideQuotes splits s on sep, ignoring separators inside quoted
// strings.
func splitOutsideQuotes(s string, sep rune) []string {
	var (
		parts  []string
		quoted bool
		start  int
	)

	for i, c := range s {
		switch {
		case c == '"':
			quoted = !quoted
		case c == sep && !quoted:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}

	return append(parts, s[start:])
}
