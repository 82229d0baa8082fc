// Package lambdaproxy turns AWS Lambda proxy-integration events into
// Express-like request objects and builds proxy responses with a fluent
// API. It offers:
//
// # Features
//
//   - Request parsing: headers, cookies, query, path parameters and body
//   - Content-Type matching and Accept negotiation
//   - Response building with headers, cookies and JSON bodies
//   - Adapters for REST API, HTTP API (v2) and ALB events
//   - Logging, X-Ray and OpenTelemetry middleware
//
// # Architecture
//
// Request and Response are plain values created once per invocation. The
// App wraps a single handler in middleware and converts between the
// platform events and those values; it does no routing.
//
// # Usage
//
//	app := lambdaproxy.New(logger,
//	    func(ctx context.Context, req *lambdaproxy.Request, res *lambdaproxy.Response) (events.APIGatewayProxyResponse, error) {
//	        if _, ok := req.Accepts("json"); !ok {
//	            return res.Status(http.StatusNotAcceptable).Send(nil)
//	        }
//
//	        return res.JSON(map[string]any{"path": req.Path})
//	    },
//	    lambdaproxy.WithCORS(lambdaproxy.CORSOptions{AllowedDomains: []string{".example.com"}}),
//	    lambdaproxy.WithXRay("my-function"),
//	)
//
// Then start the Lambda handler:
//
//	lambda.Start(app.Handle())
package lambdaproxy

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/chainguard-dev/clog"
)

// HandlerFunc handles one proxy request. It finishes res with Send, JSON or
// End and returns the result.
type HandlerFunc func(ctx context.Context, req *Request, res *Response) (events.APIGatewayProxyResponse, error)

// Middleware wraps a HandlerFunc.
type Middleware func(HandlerFunc) HandlerFunc

// App adapts a HandlerFunc to the Lambda event types.
type App struct {
	handler         HandlerFunc
	logger          *slog.Logger
	middlewares     []Middleware
	responseOptions ResponseOptions
}

// New creates a new App serving handler with the given options.
func New(logger *slog.Logger, handler HandlerFunc, options ...Option) *App {
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{
		handler: handler,
		logger:  logger,
	}

	for _, opt := range options {
		opt(app)
	}

	return app
}

// Middlewares returns the configured middleware, outermost first.
func (a *App) Middlewares() []Middleware {
	return a.middlewares
}

// chain applies the middleware so that the first one registered runs first.
func (a *App) chain() HandlerFunc {
	handler := a.handler

	for i := len(a.middlewares) - 1; i >= 0; i-- {
		handler = a.middlewares[i](handler)
	}

	return handler
}

// serve runs handler for event. Handler errors are logged and answered with
// a 500 so the platform always receives a well-formed response.
func (a *App) serve(ctx context.Context, handler HandlerFunc, event *Event) events.APIGatewayProxyResponse {
	ctx = clog.WithLogger(ctx, clog.New(a.logger.Handler()))

	req := NewRequest(event)
	res := NewResponse(a.responseOptions)

	a.logger.Debug("ProxyRequest",
		"method", req.Method,
		"path", req.Path,
		"ip", req.IP,
		"headers", req.Headers)

	resp, err := handler(ctx, req, res)
	if err != nil {
		a.logger.Error("Handler failed",
			"method", req.Method,
			"path", req.Path,
			"error", err)

		return errorResponse(http.StatusInternalServerError)
	}

	return resp
}

// Handle returns a Lambda handler function for raw proxy events.
func (a *App) Handle() func(context.Context, Event) (events.APIGatewayProxyResponse, error) {
	handler := a.chain()

	return func(ctx context.Context, event Event) (events.APIGatewayProxyResponse, error) {
		return a.serve(ctx, handler, &event), nil
	}
}

// HandleAPIGatewayProxy returns a Lambda handler function for typed REST API
// events.
func (a *App) HandleAPIGatewayProxy() func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	handler := a.chain()

	return func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return a.serve(ctx, handler, FromAPIGatewayProxyRequest(event)), nil
	}
}

// HandleALB returns a Lambda handler function for ALB events.
func (a *App) HandleALB() func(context.Context, events.ALBTargetGroupRequest) (events.ALBTargetGroupResponse, error) {
	handler := a.chain()

	return func(ctx context.Context, event events.ALBTargetGroupRequest) (events.ALBTargetGroupResponse, error) {
		return ToALBResponse(a.serve(ctx, handler, FromALBRequest(event))), nil
	}
}

// HandleAPIGatewayV2 returns a Lambda handler function for HTTP API events.
func (a *App) HandleAPIGatewayV2() func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	handler := a.chain()

	return func(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return ToAPIGatewayV2Response(a.serve(ctx, handler, FromAPIGatewayV2Request(event))), nil
	}
}

func errorResponse(status int) events.APIGatewayProxyResponse {
	// A string body cannot fail to send.
	resp, _ := NewResponse().Status(status).Send(http.StatusText(status))

	return resp
}
