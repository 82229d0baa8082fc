package lambdaproxy

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/spf13/cast"

	"github.com/navigacontentlab/lambdaproxy/internal/cookie"
	"github.com/navigacontentlab/lambdaproxy/internal/mimetype"
)

// Content types applied when a response does not set one.
const (
	ContentTypeText   = "text/plain"
	ContentTypeJSON   = "application/json"
	ContentTypeBinary = mimetype.OctetStream
)

// ResponseOptions configures a new Response.
type ResponseOptions struct {
	// StatusCode to respond with, 200 when zero
	StatusCode int

	// Headers are merged into the response with Set
	Headers map[string]any

	// CORS adds Access-Control-Allow-Origin: *
	CORS bool

	// IsBase64Encoded marks the body as base64 encoded
	IsBase64Encoded bool

	// Body is sent by End
	Body string
}

// CookieOptions are the attributes of a cookie set with Response.Cookie.
type CookieOptions struct {
	// Path defaults to "/"
	Path   string
	Domain string

	// MaxAge is converted to both Expires and Max-Age (whole seconds).
	MaxAge   time.Duration
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// Response accumulates a proxy-integration response. It is meant to be
// finished once with Send, JSON or End.
type Response struct {
	StatusCode      int
	CORS            bool
	IsBase64Encoded bool

	header   http.Header
	body     string
	resolver MIMEResolver
	now      func() time.Time
	err      error
}

// NewResponse creates a Response. Only the first options value is used.
func NewResponse(opts ...ResponseOptions) *Response {
	var o ResponseOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	r := &Response{
		StatusCode:      o.StatusCode,
		CORS:            o.CORS,
		IsBase64Encoded: o.IsBase64Encoded,
		header:          http.Header{},
		body:            o.Body,
		resolver:        mimetype.Resolver{},
		now:             time.Now,
	}

	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}

	r.SetHeaders(o.Headers)

	if r.CORS {
		r.Set("Access-Control-Allow-Origin", "*")
	}

	return r
}

// Header exposes the accumulated headers.
func (r *Response) Header() http.Header {
	return r.header
}

// Set sets header field to value, replacing earlier values. Slices and
// arrays set one value per element; everything is converted to strings.
//
//	res.Set("X-Limit", 200)
//	res.Set("Link", []string{"<a>", "<b>"})
func (r *Response) Set(field string, value any) *Response {
	r.header[http.CanonicalHeaderKey(field)] = toStrings(value)

	return r
}

// SetHeaders sets every header of headers.
func (r *Response) SetHeaders(headers map[string]any) *Response {
	for field, value := range headers {
		r.Set(field, value)
	}

	return r
}

// Append adds value to header field, keeping earlier values.
func (r *Response) Append(field string, value any) *Response {
	key := http.CanonicalHeaderKey(field)
	r.header[key] = append(r.header[key], toStrings(value)...)

	return r
}

// Get returns the first value of header field, or "" when unset.
func (r *Response) Get(field string) string {
	return r.header.Get(field)
}

// Values returns every value of header field.
func (r *Response) Values(field string) []string {
	return r.header.Values(field)
}

// Status sets the status code.
func (r *Response) Status(code int) *Response {
	r.StatusCode = code

	return r
}

// ContentType sets Content-Type. Values containing "/" are used as given,
// anything else is looked up as a file extension ("html", ".png").
func (r *Response) ContentType(typ string) *Response {
	ct := typ
	if !strings.Contains(typ, "/") {
		resolved, ok := r.resolver.Resolve(typ)
		if !ok {
			resolved = ContentTypeBinary
		}

		ct = resolved
	}

	return r.Set("Content-Type", ct)
}

// Cookie appends a Set-Cookie header. Strings are percent-encoded, other
// values, nil included, are stored as JSON behind the "j:" marker. The path
// defaults to "/".
//
//	res.Cookie("rememberme", "1", CookieOptions{MaxAge: 15 * time.Minute, HTTPOnly: true})
func (r *Response) Cookie(name string, value any, opts ...CookieOptions) *Response {
	var o CookieOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	var val string

	switch v := value.(type) {
	case string:
		val = cookie.Encode(v)
	default:
		// nil is structured too and is written as j:null.
		data, err := marshalJSON(v)
		if err != nil {
			r.setErr(fmt.Errorf("failed to encode cookie %s: %w", name, err))

			return r
		}

		val = JSONCookiePrefix + cookie.Encode(string(data))
	}

	c := &http.Cookie{
		Name:     name,
		Value:    val,
		Path:     o.Path,
		Domain:   o.Domain,
		Expires:  o.Expires,
		Secure:   o.Secure,
		HttpOnly: o.HTTPOnly,
		SameSite: o.SameSite,
	}

	if c.Path == "" {
		c.Path = "/"
	}

	if o.MaxAge != 0 {
		c.Expires = r.now().Add(o.MaxAge)
		c.MaxAge = int(o.MaxAge / time.Second)

		if c.MaxAge == 0 {
			c.MaxAge = -1
		}
	}

	serialized := cookie.Serialize(c)
	if serialized == "" {
		r.setErr(fmt.Errorf("invalid cookie name %q", name))

		return r
	}

	return r.Append("Set-Cookie", serialized)
}

// Send finishes the response with body. Strings and nil (typed nil pointers,
// maps and slices included) are sent as text, byte slices as binary,
// anything else as JSON. A Content-Type that was already set is kept.
func (r *Response) Send(body any) (events.APIGatewayProxyResponse, error) {
	var text string

	switch v := body.(type) {
	case nil:
		r.defaultContentType(ContentTypeText)
	case string:
		text = v
		r.defaultContentType(ContentTypeText)
	case []byte:
		text = string(v)
		if r.IsBase64Encoded {
			text = base64.StdEncoding.EncodeToString(v)
		}

		r.defaultContentType(ContentTypeBinary)
	default:
		if !isNil(v) {
			return r.JSON(v)
		}

		r.defaultContentType(ContentTypeText)
	}

	if r.err != nil {
		return events.APIGatewayProxyResponse{}, r.err
	}

	return r.result(text), nil
}

// End sends the default body.
func (r *Response) End() (events.APIGatewayProxyResponse, error) {
	return r.Send(r.body)
}

// JSON sets Content-Type to application/json and sends value encoded as
// JSON.
func (r *Response) JSON(value any) (events.APIGatewayProxyResponse, error) {
	data, err := marshalJSON(value)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to encode response body: %w", err)
	}

	r.ContentType("json")

	return r.Send(string(data))
}

func (r *Response) defaultContentType(ct string) {
	if r.Get("Content-Type") == "" {
		r.Set("Content-Type", ct)
	}
}

func (r *Response) setErr(err error) {
	if r.err == nil {
		r.err = err
	}
}

// result renders the accumulated state. Fields with a single value go to
// Headers, fields with several values to MultiValueHeaders.
func (r *Response) result(body string) events.APIGatewayProxyResponse {
	res := events.APIGatewayProxyResponse{
		StatusCode: r.StatusCode,
		Headers:    map[string]string{},
		Body:       body,
	}

	for field, values := range r.header {
		switch len(values) {
		case 0:
			continue
		case 1:
			res.Headers[field] = values[0]
		default:
			if res.MultiValueHeaders == nil {
				res.MultiValueHeaders = map[string][]string{}
			}

			res.MultiValueHeaders[field] = append([]string(nil), values...)
		}
	}

	if r.IsBase64Encoded {
		res.IsBase64Encoded = true
	}

	return res
}

// marshalJSON encodes v like JSON.stringify: no HTML escaping and no
// trailing newline.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// toStrings converts a header value to its string form. Slices and arrays
// other than []byte yield one string per element.
func toStrings(value any) []string {
	if _, ok := value.([]byte); !ok && value != nil {
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			values := make([]string, rv.Len())
			for i := range values {
				values[i] = cast.ToString(rv.Index(i).Interface())
			}

			return values
		}
	}

	return []string{cast.ToString(value)}
}

// isNil reports whether v holds a nil pointer, map, slice, interface,
// channel or function.
func isNil(v any) bool {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
