package lambdaproxy

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Constants for telemetry.
const (
	// UnknownValue is used when the real value cannot be determined.
	UnknownValue = "unknown"

	// InstrumentationName identifies the meter used by Metrics.
	InstrumentationName = "github.com/navigacontentlab/lambdaproxy"
)

// Metrics returns a middleware recording request and response counts and
// request duration.
func Metrics(mp metric.MeterProvider) Middleware {
	meter := mp.Meter(InstrumentationName)

	// Instrument creation only fails on invalid names; the returned
	// instruments are no-ops in that case.
	requestCounter, _ := meter.Int64Counter("proxy.requests",
		metric.WithDescription("Number of proxy requests received"),
	)

	responseCounter, _ := meter.Int64Counter("proxy.responses",
		metric.WithDescription("Number of proxy responses sent"),
	)

	durationHistogram, _ := meter.Float64Histogram("proxy.duration_ms",
		metric.WithDescription("Duration of proxy requests in milliseconds"),
		metric.WithUnit("ms"),
	)

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request, res *Response) (events.APIGatewayProxyResponse, error) {
			resource := req.Event.Resource
			if resource == "" {
				resource = UnknownValue
			}

			commonAttrs := []attribute.KeyValue{
				attribute.String("method", req.Method),
				attribute.String("resource", resource),
			}

			startTime := time.Now()

			requestCounter.Add(ctx, 1, metric.WithAttributes(commonAttrs...))

			resp, err := next(ctx, req, res)

			status := "error"
			if err == nil {
				status = strconv.Itoa(resp.StatusCode)
			}

			responseAttrs := make([]attribute.KeyValue, len(commonAttrs)+1)
			copy(responseAttrs, commonAttrs)
			responseAttrs[len(commonAttrs)] = attribute.String("status", status)

			responseCounter.Add(ctx, 1, metric.WithAttributes(responseAttrs...))
			durationHistogram.Record(ctx, float64(time.Since(startTime).Milliseconds()), metric.WithAttributes(commonAttrs...))

			return resp, err
		}
	}
}
