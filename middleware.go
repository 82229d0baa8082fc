package lambdaproxy

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-xray-sdk-go/xray"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/navigacontentlab/lambdaproxy/internal/cors"
)

// Headers sent with allowed cross-origin responses.
const (
	corsAllowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, Accept, Authorization, X-Requested-With"
	corsMaxAge       = "86400"
)

// CORSOptions controls the behaviour of the CORS middleware.
type CORSOptions struct {
	// AllowHTTP determines if HTTP (non-HTTPS) origins are allowed
	AllowHTTP bool

	// AllowedDomains is a list of domain suffixes that are allowed in CORS requests
	// e.g. [".example.com"], or "*" to allow all origins
	AllowedDomains []string
}

// Logging returns a middleware that logs requests with timing information.
func Logging(logger *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request, res *Response) (events.APIGatewayProxyResponse, error) {
			// Record start time
			start := time.Now()

			logAttrs := []any{
				"path", req.Path,
				"method", req.Method,
			}

			// Extract request ID from the request context
			if requestID, ok := req.Context("requestId"); ok {
				logAttrs = append(logAttrs, "request_id", requestID)
			}

			logger.Info("request started", logAttrs...)

			// Process request
			resp, err := next(ctx, req, res)

			// Log completion with duration and status
			logAttrs = append(logAttrs, "duration_ms", time.Since(start).Milliseconds())

			if err != nil {
				logAttrs = append(logAttrs, "error", err.Error())
				logger.Error("request failed", logAttrs...)
			} else {
				logAttrs = append(logAttrs, "status", resp.StatusCode)
				logger.Info("request completed", logAttrs...)
			}

			return resp, err
		}
	}
}

// CORS returns a middleware for cross-origin requests. Allowed origins are
// echoed in Access-Control-Allow-Origin; OPTIONS requests from an allowed
// origin are answered directly with 204.
func CORS(opts CORSOptions) Middleware {
	allowOrigin := cors.AllowOriginFunc(cors.Options{
		AllowHTTP:      opts.AllowHTTP,
		AllowedDomains: opts.AllowedDomains,
	})

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request, res *Response) (events.APIGatewayProxyResponse, error) {
			// Skip requests from origins we do not allow
			origin, _ := req.GetHeader("Origin")
			if !allowOrigin(origin) {
				return next(ctx, req, res)
			}

			// Echo the allowed origin
			res.Set("Access-Control-Allow-Origin", origin).
				Append("Vary", "Origin").
				Set("Access-Control-Allow-Credentials", "true")

			if req.Method != http.MethodOptions {
				return next(ctx, req, res)
			}

			// Answer preflight requests directly
			allowHeaders := corsAllowHeaders
			if requested, ok := req.GetHeader("Access-Control-Request-Headers"); ok && requested != "" {
				allowHeaders = requested
			}

			return res.Status(http.StatusNoContent).
				Set("Access-Control-Allow-Methods", corsAllowMethods).
				Set("Access-Control-Allow-Headers", allowHeaders).
				Set("Access-Control-Max-Age", corsMaxAge).
				Send(nil)
		}
	}
}

// XRay returns a middleware that wraps every request in an X-Ray
// subsegment. Without an active segment the request runs untraced.
func XRay(name string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request, res *Response) (events.APIGatewayProxyResponse, error) {
			// Start a subsegment under the Lambda segment
			subCtx, seg := xray.BeginSubsegment(ctx, name)
			if seg == nil {
				return next(ctx, req, res)
			}

			// Annotation failures cannot be acted on.
			_ = seg.AddAnnotation("http.method", req.Method)
			_ = seg.AddAnnotation("http.path", req.Path)

			// Record error or status on the subsegment
			resp, err := next(subCtx, req, res)
			if err != nil {
				_ = seg.AddError(err)
			} else {
				_ = seg.AddAnnotation("http.status", resp.StatusCode)
			}

			seg.Close(err)

			return resp, err
		}
	}
}

// Tracing returns a middleware that starts a server span per request.
func Tracing(tp trace.TracerProvider, name string) Middleware {
	tracer := tp.Tracer(name)

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request, res *Response) (events.APIGatewayProxyResponse, error) {
			// Start a server span
			spanName := req.Method + " " + spanRoute(req)

			ctx, span := tracer.Start(ctx, spanName,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("url.path", req.Path),
					attribute.String("client.address", req.IP),
					attribute.String("user_agent.original", req.UserAgent),
				),
			)
			defer span.End()

			// Record the error on the span
			resp, err := next(ctx, req, res)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())

				return resp, err
			}

			// Record the response status
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

			if resp.StatusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
			}

			return resp, nil
		}
	}
}

// spanRoute prefers the templated resource ("/users/{id}") over the raw
// path to keep span names low-cardinality.
func spanRoute(req *Request) string {
	if req.Event.Resource != "" && !strings.Contains(req.Event.Resource, " ") {
		return req.Event.Resource
	}

	return req.Path
}
