package lambdaproxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// Event is an API Gateway proxy-integration event. The request context is
// kept as a generic map so that Request.Context can reach any field, and the
// body is kept raw so that both string and already-decoded bodies survive.
type Event struct {
	Resource                        string              `json:"resource"`
	Path                            string              `json:"path"`
	HTTPMethod                      string              `json:"httpMethod"`
	Headers                         map[string]string   `json:"headers"`
	MultiValueHeaders               map[string][]string `json:"multiValueHeaders"`
	QueryStringParameters           map[string]string   `json:"queryStringParameters"`
	MultiValueQueryStringParameters map[string][]string `json:"multiValueQueryStringParameters"`
	PathParameters                  map[string]string   `json:"pathParameters"`
	StageVariables                  map[string]string   `json:"stageVariables"`
	RequestContext                  map[string]any      `json:"requestContext"`
	Body                            json.RawMessage     `json:"body"`
	IsBase64Encoded                 bool                `json:"isBase64Encoded"`
}

// ParseEvent decodes a raw proxy-integration payload.
func ParseEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to decode proxy event: %w", err)
	}

	return &event, nil
}

// FromAPIGatewayProxyRequest converts a typed REST API event.
func FromAPIGatewayProxyRequest(req events.APIGatewayProxyRequest) *Event {
	return &Event{
		Resource:                        req.Resource,
		Path:                            req.Path,
		HTTPMethod:                      req.HTTPMethod,
		Headers:                         req.Headers,
		MultiValueHeaders:               req.MultiValueHeaders,
		QueryStringParameters:           req.QueryStringParameters,
		MultiValueQueryStringParameters: req.MultiValueQueryStringParameters,
		PathParameters:                  req.PathParameters,
		StageVariables:                  req.StageVariables,
		RequestContext:                  toMap(req.RequestContext),
		Body:                            stringBody(req.Body),
		IsBase64Encoded:                 req.IsBase64Encoded,
	}
}

// FromALBRequest converts an ALB target group event. ALB carries no caller
// identity, so it is taken from the X-Forwarded-For and User-Agent headers.
func FromALBRequest(req events.ALBTargetGroupRequest) *Event {
	requestContext := toMap(req.RequestContext)
	requestContext["identity"] = map[string]any{
		"sourceIp":  clientIP(headerValue(req.Headers, req.MultiValueHeaders, "X-Forwarded-For")),
		"userAgent": headerValue(req.Headers, req.MultiValueHeaders, "User-Agent"),
	}

	return &Event{
		Path:                            req.Path,
		HTTPMethod:                      req.HTTPMethod,
		Headers:                         req.Headers,
		MultiValueHeaders:               req.MultiValueHeaders,
		QueryStringParameters:           req.QueryStringParameters,
		MultiValueQueryStringParameters: req.MultiValueQueryStringParameters,
		RequestContext:                  requestContext,
		Body:                            stringBody(req.Body),
		IsBase64Encoded:                 req.IsBase64Encoded,
	}
}

// FromAPIGatewayV2Request converts an HTTP API (payload version 2.0) event.
// Cookies arrive in their own field and are folded back into the Cookie
// header.
func FromAPIGatewayV2Request(req events.APIGatewayV2HTTPRequest) *Event {
	headers := make(map[string]string, len(req.Headers)+1)
	for k, v := range req.Headers {
		headers[k] = v
	}

	if len(req.Cookies) > 0 {
		headers["cookie"] = strings.Join(req.Cookies, "; ")
	}

	requestContext := toMap(req.RequestContext)
	requestContext["identity"] = map[string]any{
		"sourceIp":  req.RequestContext.HTTP.SourceIP,
		"userAgent": req.RequestContext.HTTP.UserAgent,
	}

	path := req.RawPath
	if path == "" {
		path = req.RequestContext.HTTP.Path
	}

	return &Event{
		Resource:              req.RouteKey,
		Path:                  path,
		HTTPMethod:            req.RequestContext.HTTP.Method,
		Headers:               headers,
		QueryStringParameters: req.QueryStringParameters,
		PathParameters:        req.PathParameters,
		StageVariables:        req.StageVariables,
		RequestContext:        requestContext,
		Body:                  stringBody(req.Body),
		IsBase64Encoded:       req.IsBase64Encoded,
	}
}

// ToALBResponse reshapes a proxy response for an ALB target group.
func ToALBResponse(resp events.APIGatewayProxyResponse) events.ALBTargetGroupResponse {
	return events.ALBTargetGroupResponse{
		StatusCode:        resp.StatusCode,
		StatusDescription: fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		Headers:           resp.Headers,
		MultiValueHeaders: resp.MultiValueHeaders,
		Body:              resp.Body,
		IsBase64Encoded:   resp.IsBase64Encoded,
	}
}

// ToAPIGatewayV2Response reshapes a proxy response for an HTTP API. Set-Cookie
// values move to the Cookies field, which is the only place HTTP APIs read
// them from.
func ToAPIGatewayV2Response(resp events.APIGatewayProxyResponse) events.APIGatewayV2HTTPResponse {
	out := events.APIGatewayV2HTTPResponse{
		StatusCode:      resp.StatusCode,
		Headers:         map[string]string{},
		Body:            resp.Body,
		IsBase64Encoded: resp.IsBase64Encoded,
	}

	for k, v := range resp.Headers {
		if textproto.CanonicalMIMEHeaderKey(k) == "Set-Cookie" {
			out.Cookies = append(out.Cookies, v)

			continue
		}

		out.Headers[k] = v
	}

	for k, values := range resp.MultiValueHeaders {
		if textproto.CanonicalMIMEHeaderKey(k) == "Set-Cookie" {
			out.Cookies = append(out.Cookies, values...)

			continue
		}

		if out.MultiValueHeaders == nil {
			out.MultiValueHeaders = map[string][]string{}
		}

		out.MultiValueHeaders[k] = values
	}

	return out
}

// stringBody encodes a platform body string as a JSON string literal. An
// empty body is treated as absent.
func stringBody(body string) json.RawMessage {
	if body == "" {
		return nil
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil
	}

	return raw
}

// toMap re-expresses a typed request context as a generic map. Typed
// contexts always encode, so a failure only leaves the map empty.
func toMap(v any) map[string]any {
	m := map[string]any{}

	data, err := json.Marshal(v)
	if err != nil {
		return m
	}

	_ = json.Unmarshal(data, &m)

	return m
}

func headerValue(headers map[string]string, multi map[string][]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}

	for k, values := range multi {
		if strings.EqualFold(k, name) && len(values) > 0 {
			return values[0]
		}
	}

	return ""
}

// clientIP returns the left-most address of an X-Forwarded-For value.
func clientIP(forwardedFor string) string {
	first, _, _ := strings.Cut(forwardedFor, ",")

	return strings.TrimSpace(first)
}
