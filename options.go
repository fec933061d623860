package datalake

import (
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/datalake/client"
	"github.com/adamwoolhether/datalake/settings"
)

// Option configures a [Datalake] built by [New].
type Option func(*options) error
type options struct {
	settings      *settings.Settings
	logger        *slog.Logger
	tracer        trace.Tracer
	meterProvider metric.MeterProvider
	httpOpts      []client.Option
}

// WithSettings replaces the production preset. The settings are validated by [New].
func WithSettings(s settings.Settings) Option {
	return func(o *options) error {
		o.settings = &s
		return nil
	}
}

// WithLogger injects a custom [slog.Logger]. It is shared with the HTTP client.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithTracer records a span for every operation and HTTP call.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

// WithMeterProvider enables the token refresh, poll and chunk counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) error {
		if mp == nil {
			return errors.New("meter provider must not be nil")
		}
		o.meterProvider = mp
		return nil
	}
}

// WithHTTPOptions forwards options to the underlying [client.Build],
// e.g. [client.WithThrottle] or [client.WithTimeout]. They are applied
// after the defaults, so they take precedence.
func WithHTTPOptions(opts ...client.Option) Option {
	return func(o *options) error {
		for i, opt := range opts {
			if opt == nil {
				return fmt.Errorf("http option %d is nil", i)
			}
		}
		o.httpOpts = append(o.httpOpts, opts...)
		return nil
	}
}
