// Command echo is a Lambda function that answers every proxy request with
// the parsed view of the request, as JSON or plain text depending on the
// Accept header.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"

	"github.com/navigacontentlab/lambdaproxy"
	"github.com/navigacontentlab/lambdaproxy/internal/telemetry"
)

// Environment variable names and defaults.
const (
	EnvLogFormat      = "LOG_FORMAT"
	EnvServiceName    = "SERVICE_NAME"
	EnvCORSDomains    = "CORS_DOMAINS"
	EnvEventSource    = "EVENT_SOURCE"
	EnvMetricsEnabled = "METRICS_ENABLED"

	LogFormatJSON = "json"
	LogFormatText = "text"

	DefaultServiceName = "lambdaproxy-echo"
)

// getEnvDefault returns the value of an environment variable,
// or the default value if the variable is not set or empty.
func getEnvDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return defaultValue
}

// newSlogHandler picks a JSON or text handler from LOG_FORMAT.
func newSlogHandler() slog.Handler {
	opts := &slog.HandlerOptions{}

	switch strings.ToLower(getEnvDefault(EnvLogFormat, LogFormatJSON)) {
	case LogFormatText:
		return slog.NewTextHandler(os.Stderr, opts)
	default:
		return slog.NewJSONHandler(os.Stderr, opts)
	}
}

func echo(ctx context.Context, req *lambdaproxy.Request, res *lambdaproxy.Response) (events.APIGatewayProxyResponse, error) {
	clog.FromContext(ctx).Debugf("echo %s %s", req.Method, req.Path)

	view := map[string]any{
		"method":    req.Method,
		"path":      req.Path,
		"ip":        req.IP,
		"userAgent": req.UserAgent,
		"referrer":  req.Referrer.String(),
		"headers":   req.Headers,
		"cookies":   req.Cookies,
		"query":     req.Query,
		"params":    req.Params,
		"body":      req.Body,
	}

	res.Cookie("last_path", req.Path)

	switch typ, _ := req.Accepts("json", "text"); typ {
	case "json":
		return res.JSON(view)
	case "text":
		var b strings.Builder
		for _, key := range []string{"method", "path", "ip", "userAgent", "referrer"} {
			fmt.Fprintf(&b, "%s: %v\n", key, view[key])
		}

		return res.Send(b.String())
	default:
		return res.Status(http.StatusNotAcceptable).Send(nil)
	}
}

func main() {
	ctx := context.Background()
	logger := slog.New(newSlogHandler())

	serviceName := getEnvDefault(EnvServiceName, DefaultServiceName)

	options := []lambdaproxy.Option{
		lambdaproxy.WithRequestLogging(),
		lambdaproxy.WithXRay(serviceName),
		lambdaproxy.WithOpenTelemetry(serviceName),
	}

	if domains := os.Getenv(EnvCORSDomains); domains != "" {
		options = append(options, lambdaproxy.WithCORS(lambdaproxy.CORSOptions{
			AllowedDomains: strings.Split(domains, ","),
		}))
	}

	if getEnvDefault(EnvMetricsEnabled, "false") == "true" {
		shutdown, err := telemetry.Initialize(ctx, serviceName, telemetry.Options{})
		if err != nil {
			logger.Error("failed to initialize telemetry", "error", err)
			os.Exit(1)
		}

		defer func() {
			if err := shutdown(ctx); err != nil {
				logger.Error("failed to shut down telemetry", "error", err)
			}
		}()

		options = append(options, lambdaproxy.WithMetrics())
	}

	app := lambdaproxy.New(logger, echo, options...)

	switch getEnvDefault(EnvEventSource, "apigateway") {
	case "alb":
		lambda.Start(otellambda.InstrumentHandler(app.HandleALB()))
	case "httpapi":
		lambda.Start(otellambda.InstrumentHandler(app.HandleAPIGatewayV2()))
	default:
		lambda.Start(otellambda.InstrumentHandler(app.Handle()))
	}
}
