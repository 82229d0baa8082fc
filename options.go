package lambdaproxy

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Option is a function that configures the App.
type Option func(*App)

// WithResponseOptions sets the options every Response starts from.
//
// Example:
//
//	app := lambdaproxy.New(logger, handler,
//	    lambdaproxy.WithResponseOptions(lambdaproxy.ResponseOptions{
//	        Headers: map[string]any{"Cache-Control": "no-store"},
//	    }),
//	)
func WithResponseOptions(opts ResponseOptions) Option {
	return func(a *App) {
		a.responseOptions = opts
	}
}

// WithMiddleware adds middleware to the app. The first middleware added is
// the outermost.
func WithMiddleware(m ...Middleware) Option {
	return func(a *App) {
		a.middlewares = append(a.middlewares, m...)
	}
}

// WithRequestLogging logs the start and completion of every request with
// the app logger.
func WithRequestLogging() Option {
	return func(a *App) {
		a.middlewares = append(a.middlewares, Logging(a.logger))
	}
}

// WithCORS answers preflight requests and echoes allowed origins.
func WithCORS(opts CORSOptions) Option {
	return func(a *App) {
		a.middlewares = append(a.middlewares, CORS(opts))

		a.logger.Info("CORS support added",
			"allowed_domains", opts.AllowedDomains,
			"allow_http", opts.AllowHTTP)
	}
}

// WithXRay adds an X-Ray subsegment named name around every request.
func WithXRay(name string) Option {
	return func(a *App) {
		a.middlewares = append(a.middlewares, XRay(name))
	}
}

// WithOpenTelemetry adds a span per request using the global
// TracerProvider.
func WithOpenTelemetry(name string) Option {
	return func(a *App) {
		a.middlewares = append(a.middlewares, Tracing(otel.GetTracerProvider(), name))
	}
}

// WithMetrics records request counts and durations with the global
// MeterProvider.
func WithMetrics() Option {
	return func(a *App) {
		a.middlewares = append(a.middlewares, Metrics(otel.GetMeterProvider()))
	}
}

// WithMeterProvider records request counts and durations with mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(a *App) {
		a.middlewares = append(a.middlewares, Metrics(mp))
	}
}
