package lambdaproxy

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/navigacontentlab/lambdaproxy/internal/cookie"
	"github.com/navigacontentlab/lambdaproxy/internal/mimetype"
	"github.com/navigacontentlab/lambdaproxy/internal/negotiate"
)

// JSONCookiePrefix marks cookie values holding JSON-encoded data.
const JSONCookiePrefix = "j:"

var (
	// ErrCookieNotFound is returned when a requested cookie is not present.
	ErrCookieNotFound = errors.New("cookie not found")

	// ErrNotJSONCookie is returned when a cookie does not carry the JSON marker.
	ErrNotJSONCookie = errors.New("cookie is not a JSON cookie")
)

// Negotiator picks the best of a list of full media types for an Accept
// header.
type Negotiator interface {
	BestMatch(accept string, candidates []string) (string, bool)
}

// MIMEResolver maps a short type token such as "html" to a MIME type.
type MIMEResolver interface {
	Resolve(token string) (string, bool)
}

// RequestOption configures the collaborators of a Request.
type RequestOption func(*Request)

// WithNegotiator replaces the content negotiator used by Accepts.
func WithNegotiator(n Negotiator) RequestOption {
	return func(r *Request) {
		r.negotiator = n
	}
}

// WithMIMEResolver replaces the resolver used to expand type tokens.
func WithMIMEResolver(m MIMEResolver) RequestOption {
	return func(r *Request) {
		r.resolver = m
	}
}

// Request is a read-only, Express-like view of a proxy event. It serializes
// with json.Marshal and is restored with ParseRequest, so a parsed request
// can be handed on to another function.
type Request struct {
	// Body is the decoded JSON body, the raw string when the body is not
	// JSON, or nil when there is no body.
	Body any `json:"body"`

	// Headers holds the request headers with lowercase keys. Referer is
	// also available as referrer.
	Headers map[string]string `json:"headers"`

	// Cookies holds the parsed cookies with lowercase names and filtered
	// values.
	Cookies map[string]any `json:"cookies"`

	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`

	// Params holds the path parameters.
	Params map[string]string `json:"params"`

	// Query holds the query string parameters.
	Query map[string]string `json:"query"`

	Path   string `json:"path"`
	Method string `json:"method"`

	// Referrer is the parsed referrer header, empty when absent. It is
	// derived from Headers and not serialized.
	Referrer *url.URL `json:"-"`

	// XHR is always false: proxy events carry no reliable signal for it.
	XHR bool `json:"xhr"`

	// Event is the event the request was built from.
	Event *Event `json:"rawLambdaEvent"`

	negotiator Negotiator
	resolver   MIMEResolver
}

// NewRequest builds a Request from event. A nil event yields a request with
// every field at its default.
func NewRequest(event *Event, opts ...RequestOption) *Request {
	r := &Request{Event: event}
	r.derive()

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ParseRequest decodes either a raw proxy event or a Request serialized with
// json.Marshal. A payload carrying a rawLambdaEvent key is treated as a
// serialized Request: its fields are kept and only missing ones are derived
// from the embedded event.
func ParseRequest(data []byte, opts ...RequestOption) (*Request, error) {
	var envelope struct {
		RawLambdaEvent json.RawMessage `json:"rawLambdaEvent"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}

	if envelope.RawLambdaEvent == nil {
		event, err := ParseEvent(data)
		if err != nil {
			return nil, err
		}

		return NewRequest(event, opts...), nil
	}

	r := &Request{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// UnmarshalJSON restores a serialized Request. Fields missing from data are
// derived from the embedded event; Referrer and the default collaborators
// are always re-created.
func (r *Request) UnmarshalJSON(data []byte) error {
	type serialized Request

	var s serialized
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}

	*r = Request(s)
	r.derive()

	return nil
}

// derive fills every unset field from the event.
func (r *Request) derive() {
	if r.Event == nil {
		r.Event = &Event{}
	}

	event := r.Event

	if r.Body == nil {
		r.Body = ParseBody(event)
	}

	if r.Headers == nil {
		r.Headers = ParseHeaders(event)
	}

	if r.Cookies == nil {
		r.Cookies = ParseCookies(r.Headers["cookie"])
	}

	if r.IP == "" {
		r.IP = contextString(event.RequestContext, "identity.sourceIp")
	}

	if r.UserAgent == "" {
		r.UserAgent = contextString(event.RequestContext, "identity.userAgent")
	}

	if r.Params == nil {
		r.Params = copyMap(event.PathParameters)
	}

	if r.Query == nil {
		r.Query = queryParams(event)
	}

	if r.Path == "" {
		r.Path = event.Path
	}

	if r.Method == "" {
		r.Method = strings.ToUpper(event.HTTPMethod)
	}

	if r.Method == "" {
		r.Method = "GET"
	}

	r.Referrer = parseReferrer(r.Headers["referrer"])
	r.negotiator = negotiate.Negotiator{}
	r.resolver = mimetype.Resolver{}
}

// Get returns the first non-empty query parameter, else the cookie, else
// the header named field. Query and cookie names are case-sensitive, header
// names are not.
func (r *Request) Get(field string) (any, bool) {
	if v, ok := r.Query[field]; ok && v != "" {
		return v, true
	}

	if v, ok := r.Cookies[field]; ok {
		return v, true
	}

	v, ok := r.Headers[strings.ToLower(field)]
	if !ok {
		return nil, false
	}

	return v, true
}

// GetQueryParam returns the filtered value of a query parameter.
func (r *Request) GetQueryParam(field string) (any, bool) {
	v, ok := r.Query[field]
	if !ok {
		return nil, false
	}

	return FilterValue(v), true
}

// GetCookie returns a cookie by case-insensitive name.
func (r *Request) GetCookie(name string) (any, bool) {
	v, ok := r.Cookies[strings.ToLower(name)]

	return v, ok
}

// GetHeader returns a header by case-insensitive name.
func (r *Request) GetHeader(field string) (string, bool) {
	v, ok := r.Headers[strings.ToLower(field)]

	return v, ok
}

// GetJSONCookie decodes a cookie written with the JSON marker into v.
func (r *Request) GetJSONCookie(name string, v any) error {
	raw, ok := r.GetCookie(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCookieNotFound, name)
	}

	s, ok := raw.(string)
	if !ok || !strings.HasPrefix(s, JSONCookiePrefix) {
		return fmt.Errorf("%w: %s", ErrNotJSONCookie, name)
	}

	if err := json.Unmarshal([]byte(strings.TrimPrefix(s, JSONCookiePrefix)), v); err != nil {
		return fmt.Errorf("failed to decode cookie %s: %w", name, err)
	}

	return nil
}

// Is reports whether the Content-Type header matches pattern. The pattern
// may be a token ("html"), a full type ("text/html") or a wildcard
// ("text/*").
//
//	// With Content-Type: text/html; charset=utf-8
//	req.Is("html")      // true
//	req.Is("text/*")    // true
//	req.Is("json")      // false
func (r *Request) Is(pattern string) bool {
	contentType, ok := r.Headers["content-type"]
	if !ok || contentType == "" {
		return false
	}

	if !strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "+") {
		resolved, ok := r.resolver.Resolve(pattern)
		if !ok {
			return false
		}

		pattern = resolved
	}

	return mimetype.Match(contentType, pattern)
}

// Accepts returns the candidate type that best matches the Accept header.
// Each argument may be a token ("json"), a full type or a comma-separated
// list of either. Without an Accept header the first candidate is returned.
//
//	// Accept: text/*;q=.5, application/json
//	req.Accepts("html", "json") // "json", true
//	req.Accepts("png")          // "", false
func (r *Request) Accepts(types ...string) (string, bool) {
	var candidates []string

	for _, t := range types {
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				candidates = append(candidates, part)
			}
		}
	}

	if len(candidates) == 0 {
		return "", false
	}

	accept := r.Headers["accept"]
	if strings.TrimSpace(accept) == "" {
		return candidates[0], true
	}

	mimes := make([]string, 0, len(candidates))
	index := make(map[string]int, len(candidates))

	for i, c := range candidates {
		m := c
		if !strings.Contains(c, "/") {
			resolved, ok := r.resolver.Resolve(c)
			if !ok {
				continue
			}

			m = resolved
		}

		if _, dup := index[m]; !dup {
			index[m] = i
			mimes = append(mimes, m)
		}
	}

	best, ok := r.negotiator.BestMatch(accept, mimes)
	if !ok {
		return "", false
	}

	return candidates[index[best]], true
}

// Context looks up a dotted path such as "identity.sourceIp" in the event's
// request context.
func (r *Request) Context(path string) (any, bool) {
	return lookupPath(r.Event.RequestContext, path)
}

// ParseBody decodes the event body. Structured bodies are returned as
// decoded, JSON strings are parsed, strings that are not JSON are returned
// unchanged and missing bodies yield nil.
func ParseBody(event *Event) any {
	raw := strings.TrimSpace(string(event.Body))
	if raw == "" || raw == "null" {
		return nil
	}

	if raw[0] != '"' {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil
		}

		return v
	}

	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s == "" {
		return nil
	}

	if event.IsBase64Encoded {
		if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
			s = string(decoded)
		}
	}

	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}

	return v
}

// ParseHeaders lowercases the header names of event. Multi-value headers
// missing from the single-value map are joined in.
func ParseHeaders(event *Event) map[string]string {
	headers := make(map[string]string, len(event.Headers))

	for k, values := range event.MultiValueHeaders {
		if len(values) == 0 {
			continue
		}

		sep := ", "
		if strings.EqualFold(k, "cookie") {
			sep = "; "
		}

		setHeader(headers, k, strings.Join(values, sep))
	}

	for k, v := range event.Headers {
		setHeader(headers, k, v)
	}

	return headers
}

func setHeader(headers map[string]string, key, value string) {
	key = strings.ToLower(key)
	headers[key] = value

	if key == "referer" {
		headers["referrer"] = value
	}
}

// ParseCookies parses a Cookie header into lowercase names and filtered
// values.
func ParseCookies(header string) map[string]any {
	cookies := map[string]any{}

	for _, pair := range cookie.Parse(header) {
		cookies[strings.ToLower(pair.Name)] = FilterValue(pair.Value)
	}

	return cookies
}

func queryParams(event *Event) map[string]string {
	query := copyMap(event.QueryStringParameters)

	for k, values := range event.MultiValueQueryStringParameters {
		if _, ok := query[k]; !ok && len(values) > 0 {
			query[k] = values[len(values)-1]
		}
	}

	return query
}

func parseReferrer(referrer string) *url.URL {
	u, err := url.Parse(referrer)
	if err != nil {
		return &url.URL{}
	}

	return u
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

func contextString(requestContext map[string]any, path string) string {
	v, ok := lookupPath(requestContext, path)
	if !ok {
		return ""
	}

	s, _ := v.(string)

	return s
}

func lookupPath(m map[string]any, path string) (any, bool) {
	if m == nil || path == "" {
		return nil, false
	}

	var current any = m

	for _, segment := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = obj[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}
