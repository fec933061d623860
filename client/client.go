package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/datalake/client/throttle"
)

// Client wraps the std-lib *http.Client.
// It sets a default *http.Client and *http.Transport, which
// can be customized via optional funcs.
type Client struct {
	c      *http.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// Build constructs a Client. Transport decorators are applied in a fixed
// order regardless of option order: request ID, then User-Agent, then throttle.
func Build(optFns ...Option) (*Client, error) {
	client := &Client{
		c:      &http.Client{},
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer(""),
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if opts.client != nil {
		client.c = opts.client
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.tracer != nil {
		client.tracer = opts.tracer
	}

	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.requestID {
		transport = requestID{base: transport}
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(opts.throttle.RPS, opts.throttle.Burst, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	return client, nil
}

// Send fires the request and buffers the whole response body.
// Any status code is a successful Send; interpreting it is up to the caller.
func (c *Client) Send(req *http.Request) (*Response, error) {
	ctx, span := c.tracer.Start(req.Context(), "http.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.String()),
	)

	start := time.Now()
	resp, err := c.c.Do(req.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, fmt.Errorf("exec http do: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reading body")
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logger.Debug("http request", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "since", time.Since(start).String())

	return &Response{
		StatusCode: resp.StatusCode,
		URL:        req.URL.String(),
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Tracer returns the tracer spans are recorded with.
func (c *Client) Tracer() trace.Tracer {
	return c.tracer
}

// Request instantiates an *http.Request with the provided information.
// It's just a convenience method that wraps the public Request func.
func (c *Client) Request(ctx context.Context, rawURL, method string, opts ...RequestOption) (*http.Request, error) {
	return Request(ctx, rawURL, method, opts...)
}

// Request instantiates an *http.Request with the provided information.
// Content-Type defaults to `application/json` if unspecified via WithContentType.
// The body is held in memory, so the returned request can be replayed with [Clone].
func Request(ctx context.Context, rawURL, method string, opts ...RequestOption) (*http.Request, error) {
	var settings requestOpts
	for _, opt := range opts {
		err := opt(&settings)
		if err != nil {
			return nil, err
		}
	}

	var payload bytes.Buffer
	if settings.body != nil {
		if err := json.NewEncoder(&payload).Encode(settings.body); err != nil {
			return nil, fmt.Errorf("encoding request payload: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, &payload)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	contentType := "application/json"
	if settings.contentType != nil {
		contentType = *settings.contentType
	}

	req.Header.Set("Content-Type", contentType)
	for k, v := range settings.headers {
		for _, element := range v {
			req.Header.Add(k, element)
		}
	}

	return req, nil
}

// Clone returns a copy of req that can be sent independently of the original.
// It fails with ErrNotReplayable when req carries a body that can only be read once.
func Clone(req *http.Request) (*http.Request, error) {
	hasBody := req.Body != nil && req.Body != http.NoBody
	if hasBody && req.GetBody == nil {
		return nil, ErrNotReplayable
	}

	cpy := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotReplayable, err)
		}
		cpy.Body = body
	}

	return cpy, nil
}
