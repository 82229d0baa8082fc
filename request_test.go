package lambdaproxy_test

import (
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navigacontentlab/lambdaproxy"
)

const testUserAgent = "Mozilla/5.0 (X11; Linux x86_64) Gecko/20100101 Firefox/128.0"

// loadEvent reads a fresh copy of the GET fixture.
func loadEvent(t *testing.T) *lambdaproxy.Event {
	t.Helper()

	data, err := os.ReadFile("testdata/get_event.json")
	require.NoError(t, err)

	event, err := lambdaproxy.ParseEvent(data)
	require.NoError(t, err)

	return event
}

func TestNewRequestDefaults(t *testing.T) {
	req := lambdaproxy.NewRequest(nil)

	assert.Nil(t, req.Body)
	assert.Empty(t, req.Headers)
	assert.Empty(t, req.Cookies)
	assert.Equal(t, "", req.IP)
	assert.Empty(t, req.Params)
	assert.Empty(t, req.Query)
	assert.Equal(t, "", req.Path)
	assert.False(t, req.XHR)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, &url.URL{}, req.Referrer)
	assert.Equal(t, "", req.UserAgent)

	assert.NotNil(t, req.Params)
	assert.NotNil(t, req.Query)
}

func TestParseEventInvalidJSON(t *testing.T) {
	_, err := lambdaproxy.ParseEvent([]byte(`{"headers":`))
	require.Error(t, err)
}

func TestRequestFromGETEvent(t *testing.T) {
	req := lambdaproxy.NewRequest(loadEvent(t))

	t.Run("headers", func(t *testing.T) {
		assert.Equal(t, map[string]string{
			"accept":                       "*/*",
			"accept-encoding":              "gzip, deflate, br",
			"accept-language":              "en-US,en;q=0.8",
			"cache-control":                "no-cache",
			"cloudfront-forwarded-proto":   "https",
			"cloudfront-is-desktop-viewer": "true",
			"cloudfront-is-mobile-viewer":  "false",
			"cloudfront-viewer-country":    "SE",
			"cookie":                       "some=thing; testbool=false; testnull=null",
			"host":                         "api.example.com",
			"referer":                      "https://www.example.com/page/?cool=true",
			"referrer":                     "https://www.example.com/page/?cool=true",
			"user-agent":                   testUserAgent,
			"via":                          "1.1 abc123.cloudfront.net (CloudFront)",
			"x-forwarded-for":              "203.0.113.10, 198.51.100.7",
			"x-forwarded-port":             "443",
			"x-forwarded-proto":            "https",
		}, req.Headers)
	})

	t.Run("cookies", func(t *testing.T) {
		assert.Equal(t, map[string]any{
			"some":     "thing",
			"testbool": false,
			"testnull": nil,
		}, req.Cookies)
	})

	t.Run("path params", func(t *testing.T) {
		assert.Equal(t, map[string]string{"itemId": "hooray"}, req.Params)
	})

	t.Run("query params", func(t *testing.T) {
		assert.Equal(t, map[string]string{"et": "something"}, req.Query)
	})

	t.Run("referrer", func(t *testing.T) {
		assert.Equal(t, "https", req.Referrer.Scheme)
		assert.Equal(t, "www.example.com", req.Referrer.Host)
		assert.Equal(t, "/page/", req.Referrer.Path)
		assert.Equal(t, "true", req.Referrer.Query().Get("cool"))
	})

	t.Run("other properties", func(t *testing.T) {
		assert.Equal(t, "203.0.113.10", req.IP)
		assert.Equal(t, testUserAgent, req.UserAgent)
		assert.Equal(t, "GET", req.Method)
		assert.Equal(t, "/api/items/hooray/", req.Path)
		assert.False(t, req.XHR)
		assert.Nil(t, req.Body)
	})
}

func TestRequestMethodIsUppercased(t *testing.T) {
	event := loadEvent(t)
	event.HTTPMethod = "post"

	assert.Equal(t, "POST", lambdaproxy.NewRequest(event).Method)
}

func TestParseBody(t *testing.T) {
	body := map[string]any{"some": "object", "thing": true}

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	stringified, err := json.Marshal(string(encoded))
	require.NoError(t, err)

	tests := []struct {
		name   string
		raw    string
		base64 bool
		want   any
	}{
		{name: "structured body", raw: string(encoded), want: body},
		{name: "stringified JSON", raw: string(stringified), want: body},
		{name: "non-JSON string", raw: `"<a>b</a>"`, want: "<a>b</a>"},
		{name: "JSON scalar string", raw: `"6000"`, want: float64(6000)},
		{name: "absent", raw: "", want: nil},
		{name: "null", raw: "null", want: nil},
		{name: "empty string", raw: `""`, want: nil},
		{name: "base64 JSON", raw: `"eyJhIjoxfQ=="`, base64: true, want: map[string]any{"a": float64(1)}},
		{name: "invalid base64", raw: `"not base64!"`, base64: true, want: "not base64!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &lambdaproxy.Event{
				Body:            json.RawMessage(tt.raw),
				IsBase64Encoded: tt.base64,
			}

			assert.Equal(t, tt.want, lambdaproxy.ParseBody(event))
			assert.Equal(t, tt.want, lambdaproxy.NewRequest(event).Body)
		})
	}
}

func TestParseHeadersMultiValue(t *testing.T) {
	headers := lambdaproxy.ParseHeaders(&lambdaproxy.Event{
		Headers: map[string]string{"X-Single": "one"},
		MultiValueHeaders: map[string][]string{
			"X-Single": {"ignored"},
			"X-Multi":  {"a", "b"},
			"Cookie":   {"a=1", "b=2"},
		},
	})

	assert.Equal(t, "one", headers["x-single"])
	assert.Equal(t, "a, b", headers["x-multi"])
	assert.Equal(t, "a=1; b=2", headers["cookie"])
}

func TestRequestGet(t *testing.T) {
	t.Run("returns not found", func(t *testing.T) {
		req := lambdaproxy.NewRequest(loadEvent(t))

		_, ok := req.Get("nothing_That_exists")
		assert.False(t, ok)
	})

	t.Run("query param first", func(t *testing.T) {
		event := loadEvent(t)
		event.QueryStringParameters = map[string]string{"find": "me1"}
		event.Headers["Cookie"] = "find=me2"
		event.Headers["Find"] = "me3"

		v, ok := lambdaproxy.NewRequest(event).Get("find")
		assert.True(t, ok)
		assert.Equal(t, "me1", v)
	})

	t.Run("cookie second", func(t *testing.T) {
		event := loadEvent(t)
		event.Headers["Cookie"] = "find=me2"
		event.Headers["Find"] = "me3"

		v, ok := lambdaproxy.NewRequest(event).Get("find")
		assert.True(t, ok)
		assert.Equal(t, "me2", v)
	})

	t.Run("header third", func(t *testing.T) {
		event := loadEvent(t)
		event.Headers["Find"] = "me3"

		v, ok := lambdaproxy.NewRequest(event).Get("find")
		assert.True(t, ok)
		assert.Equal(t, "me3", v)
	})

	t.Run("filtered cookie value is returned", func(t *testing.T) {
		req := lambdaproxy.NewRequest(loadEvent(t))

		v, ok := req.Get("testbool")
		assert.True(t, ok)
		assert.Equal(t, false, v)
	})
}

func TestRequestGetCookie(t *testing.T) {
	req := lambdaproxy.NewRequest(loadEvent(t))

	_, ok := req.GetCookie("nothing_That_exists")
	assert.False(t, ok)

	event := loadEvent(t)
	event.Headers["Cookie"] = "Find=me2"

	v, ok := lambdaproxy.NewRequest(event).GetCookie("fInd")
	assert.True(t, ok)
	assert.Equal(t, "me2", v)
}

func TestRequestGetHeader(t *testing.T) {
	req := lambdaproxy.NewRequest(loadEvent(t))

	_, ok := req.GetHeader("nothing_That_exists")
	assert.False(t, ok)

	event := loadEvent(t)
	event.Headers["Find"] = "me3"

	v, ok := lambdaproxy.NewRequest(event).GetHeader("fInd")
	assert.True(t, ok)
	assert.Equal(t, "me3", v)
}

func TestRequestGetQueryParam(t *testing.T) {
	tests := []struct {
		value string
		want  any
	}{
		{value: "true", want: true},
		{value: "false", want: false},
		{value: "FALSE", want: false},
		{value: "null", want: nil},
		{value: "SomeThing", want: "SomeThing"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			event := loadEvent(t)
			event.QueryStringParameters["success"] = tt.value

			v, ok := lambdaproxy.NewRequest(event).GetQueryParam("success")
			assert.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}

	_, ok := lambdaproxy.NewRequest(loadEvent(t)).GetQueryParam("nothing_That_exists")
	assert.False(t, ok)
}

func TestRequestIs(t *testing.T) {
	event := loadEvent(t)
	event.Headers["Content-Type"] = "text/html; charset=utf-8"

	req := lambdaproxy.NewRequest(event)

	assert.True(t, req.Is("html"))
	assert.True(t, req.Is("text/html"))
	assert.True(t, req.Is("text/*"))
	assert.False(t, req.Is("json"))

	assert.False(t, lambdaproxy.NewRequest(loadEvent(t)).Is("html"), "no content type")
}

func TestRequestAccepts(t *testing.T) {
	t.Run("wildcard subtype", func(t *testing.T) {
		event := loadEvent(t)
		event.Headers["Accept"] = "image/webp,image/*"
		req := lambdaproxy.NewRequest(event)

		typ, ok := req.Accepts("gif")
		assert.True(t, ok)
		assert.Equal(t, "gif", typ)

		typ, ok = req.Accepts("json")
		assert.False(t, ok)
		assert.Equal(t, "", typ)
	})

	t.Run("no accept header", func(t *testing.T) {
		event := loadEvent(t)
		delete(event.Headers, "Accept")

		typ, ok := lambdaproxy.NewRequest(event).Accepts("html")
		assert.True(t, ok)
		assert.Equal(t, "html", typ)
	})

	t.Run("quality values", func(t *testing.T) {
		event := loadEvent(t)
		event.Headers["Accept"] = "text/*;q=.5, application/json"
		req := lambdaproxy.NewRequest(event)

		for _, args := range [][]string{{"html", "json"}, {"html, json"}} {
			typ, ok := req.Accepts(args...)
			assert.True(t, ok)
			assert.Equal(t, "json", typ)
		}

		typ, ok := req.Accepts("text/html")
		assert.True(t, ok)
		assert.Equal(t, "text/html", typ)

		_, ok = req.Accepts("png")
		assert.False(t, ok)
	})

	t.Run("specificity wins over order", func(t *testing.T) {
		event := loadEvent(t)
		event.Headers["Accept"] = "*/*;q=0.8, text/html"

		typ, ok := lambdaproxy.NewRequest(event).Accepts("json", "html")
		assert.True(t, ok)
		assert.Equal(t, "html", typ)
	})

	t.Run("zero quality rejects", func(t *testing.T) {
		event := loadEvent(t)
		event.Headers["Accept"] = "application/json;q=0, */*"

		typ, ok := lambdaproxy.NewRequest(event).Accepts("json", "text")
		assert.True(t, ok)
		assert.Equal(t, "text", typ)
	})
}

type stubNegotiator struct {
	accept     string
	candidates []string
}

func (s *stubNegotiator) BestMatch(accept string, candidates []string) (string, bool) {
	s.accept, s.candidates = accept, candidates

	return candidates[len(candidates)-1], true
}

func TestRequestWithNegotiator(t *testing.T) {
	event := loadEvent(t)
	event.Headers["Accept"] = "text/plain"

	stub := &stubNegotiator{}
	req := lambdaproxy.NewRequest(event, lambdaproxy.WithNegotiator(stub))

	typ, ok := req.Accepts("json", "text")
	assert.True(t, ok)
	assert.Equal(t, "text", typ)
	assert.Equal(t, "text/plain", stub.accept)
	assert.Equal(t, []string{"application/json", "text/plain"}, stub.candidates)
}

func TestRequestContext(t *testing.T) {
	req := lambdaproxy.NewRequest(loadEvent(t))

	v, ok := req.Context("identity.sourceIp")
	assert.True(t, ok)
	assert.Equal(t, "203.0.113.10", v)

	v, ok = req.Context("stage")
	assert.True(t, ok)
	assert.Equal(t, "dev", v)

	_, ok = req.Context("identity.nothing.here")
	assert.False(t, ok)

	_, ok = lambdaproxy.NewRequest(nil).Context("stage")
	assert.False(t, ok)
}

func TestRequestGetJSONCookie(t *testing.T) {
	event := loadEvent(t)
	event.Headers["Cookie"] = "prefs=j%3A%7B%22theme%22%3A%22dark%22%7D; plain=value; guy=j:%7B%22blah%22%3A%22meh%22%7D"
	req := lambdaproxy.NewRequest(event)

	var prefs struct {
		Theme string `json:"theme"`
	}

	require.NoError(t, req.GetJSONCookie("prefs", &prefs))
	assert.Equal(t, "dark", prefs.Theme)

	var guy map[string]string

	require.NoError(t, req.GetJSONCookie("guy", &guy))
	assert.Equal(t, map[string]string{"blah": "meh"}, guy)

	err := req.GetJSONCookie("plain", &prefs)
	assert.True(t, errors.Is(err, lambdaproxy.ErrNotJSONCookie))

	err = req.GetJSONCookie("missing", &prefs)
	assert.True(t, errors.Is(err, lambdaproxy.ErrCookieNotFound))
}

func TestFilterValue(t *testing.T) {
	assert.Equal(t, true, lambdaproxy.FilterValue("true"))
	assert.Equal(t, true, lambdaproxy.FilterValue("TRUE"))
	assert.Equal(t, false, lambdaproxy.FilterValue("FALSE"))
	assert.Nil(t, lambdaproxy.FilterValue("null"))
	assert.Equal(t, "SomeThing", lambdaproxy.FilterValue("SomeThing"))
	assert.Equal(t, 42, lambdaproxy.FilterValue(42))
}

func TestRequestSerializationRoundTrip(t *testing.T) {
	event := loadEvent(t)
	event.HTTPMethod = "POST"
	event.Headers["Content-Type"] = "application/json"
	event.Body = json.RawMessage(`"{\"name\":\"widget\"}"`)

	original := lambdaproxy.NewRequest(event)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &keys))

	for _, key := range []string{
		"body", "headers", "cookies", "ip", "params", "query",
		"path", "method", "userAgent", "rawLambdaEvent",
	} {
		assert.Contains(t, keys, key)
	}

	restored, err := lambdaproxy.ParseRequest(data)
	require.NoError(t, err)

	assert.Equal(t, original.Body, restored.Body)
	assert.Equal(t, original.Headers, restored.Headers)
	assert.Equal(t, original.Cookies, restored.Cookies)
	assert.Equal(t, original.IP, restored.IP)
	assert.Equal(t, original.UserAgent, restored.UserAgent)
	assert.Equal(t, original.Params, restored.Params)
	assert.Equal(t, original.Query, restored.Query)
	assert.Equal(t, original.Path, restored.Path)
	assert.Equal(t, "POST", restored.Method)
	assert.Equal(t, original.Referrer.String(), restored.Referrer.String())
	assert.Equal(t, "/api/items/{itemId}", restored.Event.Resource)

	assert.True(t, restored.Is("json"))

	typ, ok := restored.Accepts("json")
	assert.True(t, ok)
	assert.Equal(t, "json", typ)

	v, ok := restored.Context("identity.sourceIp")
	assert.True(t, ok)
	assert.Equal(t, "203.0.113.10", v)
}

func TestParseRequestKeepsSerializedFields(t *testing.T) {
	data := []byte(`{
		"method": "PATCH",
		"query": {"page": "2"},
		"cookies": {"theme": "dark"},
		"rawLambdaEvent": {
			"path": "/from/event",
			"httpMethod": "GET",
			"headers": {"Referer": "https://www.example.com/start", "Cookie": "theme=light"},
			"queryStringParameters": {"page": "1"},
			"requestContext": {"identity": {"sourceIp": "192.0.2.1"}}
		}
	}`)

	req, err := lambdaproxy.ParseRequest(data)
	require.NoError(t, err)

	assert.Equal(t, "PATCH", req.Method)
	assert.Equal(t, map[string]string{"page": "2"}, req.Query)
	assert.Equal(t, map[string]any{"theme": "dark"}, req.Cookies)

	// Missing fields come from the embedded event.
	assert.Equal(t, "/from/event", req.Path)
	assert.Equal(t, "192.0.2.1", req.IP)
	assert.Equal(t, "www.example.com", req.Referrer.Host)
	assert.NotNil(t, req.Params)
}

func TestParseRequestFromEvent(t *testing.T) {
	data, err := os.ReadFile("testdata/get_event.json")
	require.NoError(t, err)

	req, err := lambdaproxy.ParseRequest(data)
	require.NoError(t, err)

	assert.Equal(t, lambdaproxy.NewRequest(loadEvent(t)).Headers, req.Headers)
	assert.Equal(t, "/api/items/hooray/", req.Path)

	_, err = lambdaproxy.ParseRequest([]byte(`[`))
	require.Error(t, err)
}

func TestParseRequestWithOptions(t *testing.T) {
	original := lambdaproxy.NewRequest(loadEvent(t))

	data, err := json.Marshal(original)
	require.NoError(t, err)

	stub := &stubNegotiator{}

	req, err := lambdaproxy.ParseRequest(data, lambdaproxy.WithNegotiator(stub))
	require.NoError(t, err)

	typ, ok := req.Accepts("json", "text")
	assert.True(t, ok)
	assert.Equal(t, "text", typ)
	assert.Equal(t, "*/*", stub.accept)
}
