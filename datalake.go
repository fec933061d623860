// Package datalake is a client for the Datalake threat intelligence API.
//
// A [Datalake] authenticates with either a username/password pair or a
// long-term token, renews short-lived tokens transparently, and exposes
// atom classification, chunked bulk lookup and asynchronous bulk search:
//
//	dtl, err := datalake.New(datalake.UserPassword(user, pass))
//	csv, err := dtl.BulkLookup(ctx, []string{"example.com", "1.2.3.4"}, datalake.TreatHashesAsFile)
//
// Every error returned by an operation is an [*Error]; its kind can be
// matched with errors.Is against [ErrAuthentication], [ErrHTTP],
// [ErrTimeout], [ErrAPI], [ErrParse] and [ErrUnexpectedLib].
//
// A Datalake issues its requests sequentially and is not meant to be
// shared between goroutines running operations concurrently.
package datalake

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/datalake/client"
	"github.com/adamwoolhether/datalake/settings"
)

const (
	instrumentationName = "github.com/adamwoolhether/datalake"
	userAgent           = "datalake-go"
)

// Datalake is an authenticated API client.
type Datalake struct {
	settings settings.Settings
	routes   settings.Routes
	http     *client.Client
	session  *Session
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  instruments
}

type instruments struct {
	refreshes    metric.Int64Counter
	polls        metric.Int64Counter
	lookupChunks metric.Int64Counter
}

// New builds a Datalake for the given credentials. Settings default to
// [settings.Prod].
func New(creds Credentials, optFns ...Option) (*Datalake, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	dtl := Datalake{
		settings: settings.Prod(),
		logger:   slog.Default(),
		tracer:   tracenoop.NewTracerProvider().Tracer(instrumentationName),
	}

	if opts.settings != nil {
		if err := opts.settings.Validate(); err != nil {
			return nil, fmt.Errorf("validating settings: %w", err)
		}
		dtl.settings = *opts.settings
	}

	if opts.logger != nil {
		dtl.logger = opts.logger
	}

	if opts.tracer != nil {
		dtl.tracer = opts.tracer
	}

	var mp metric.MeterProvider = metricnoop.NewMeterProvider()
	if opts.meterProvider != nil {
		mp = opts.meterProvider
	}
	m, err := newInstruments(mp.Meter(instrumentationName))
	if err != nil {
		return nil, fmt.Errorf("creating instruments: %w", err)
	}
	dtl.metrics = m

	httpOpts := []client.Option{
		client.WithLogger(dtl.logger),
		client.WithTracer(dtl.tracer),
		client.WithUserAgent(userAgent),
		client.WithRequestID(),
	}
	httpOpts = append(httpOpts, opts.httpOpts...)

	hc, err := client.Build(httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("building http client: %w", err)
	}
	dtl.http = hc

	dtl.routes = dtl.settings.Routes()
	dtl.session = newSession(creds, hc, dtl.routes, dtl.logger, dtl.tracer, dtl.metrics.refreshes)

	return &dtl, nil
}

func newInstruments(meter metric.Meter) (instruments, error) {
	refreshes, err := meter.Int64Counter("datalake.token.refreshes",
		metric.WithDescription("Access token refreshes, including fallbacks to a full login."))
	if err != nil {
		return instruments{}, err
	}

	polls, err := meter.Int64Counter("datalake.bulk_search.polls",
		metric.WithDescription("Bulk search task status polls."))
	if err != nil {
		return instruments{}, err
	}

	chunks, err := meter.Int64Counter("datalake.bulk_lookup.chunks",
		metric.WithDescription("Bulk lookup chunks sent."))
	if err != nil {
		return instruments{}, err
	}

	return instruments{refreshes: refreshes, polls: polls, lookupChunks: chunks}, nil
}

// Settings returns the settings the client was built with.
func (d *Datalake) Settings() settings.Settings {
	return d.settings
}

// AccessToken returns the current Authorization header value, logging in
// first when no token is cached.
func (d *Datalake) AccessToken(ctx context.Context) (string, error) {
	return d.session.AccessToken(ctx)
}

// startSpan starts an operation span. The returned func ends it,
// recording *errp when set.
func startSpan(ctx context.Context, tracer trace.Tracer, name string, errp *error) (context.Context, func()) {
	ctx, span := tracer.Start(ctx, name)

	return ctx, func() {
		if err := *errp; err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
