package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/datalake/client/throttle"
)

// RequestIDHeader carries the per-attempt identifier set by [WithRequestID].
const RequestIDHeader = "X-Request-ID"

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	client            *http.Client
	rt                http.RoundTripper
	timeout           *time.Duration
	userAgent         string
	throttle          *throttle.Config
	noFollowRedirects bool
	requestID         bool
	logger            *slog.Logger
	tracer            trace.Tracer
}

// WithClient replaces the default [http.Client] used by the [Client].
func WithClient(hc *http.Client) Option {
	return func(c *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		c.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.rt = rt
		return nil
	}
}

// WithTimeout sets the per-request timeout on the underlying [http.Client].
func WithTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = &d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = header
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(c *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		c.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithNoFollowRedirects prevents the [Client] from following HTTP redirects.
func WithNoFollowRedirects() Option {
	return func(c *options) error {
		c.noFollowRedirects = true
		return nil
	}
}

// WithRequestID stamps every outgoing request with a random X-Request-ID.
// Retried requests get a fresh ID.
func WithRequestID() Option {
	return func(c *options) error {
		c.requestID = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithTracer records a client span for every request sent.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		c.tracer = tracer
		return nil
	}
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}

// requestID is an http.RoundTripper that sets RequestIDHeader when absent.
type requestID struct {
	base http.RoundTripper
}

func (rid requestID) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get(RequestIDHeader) != "" {
		return rid.base.RoundTrip(r)
	}

	cpy := r.Clone(r.Context())
	cpy.Header.Set(RequestIDHeader, uuid.NewString())
	return rid.base.RoundTrip(cpy)
}

// RequestOption is a functional option for [Request].
type RequestOption func(options *requestOpts) error

type requestOpts struct {
	body        any
	contentType *string
	headers     map[string][]string
}

// WithPayload sets the JSON-encoded request body.
func WithPayload(body any) RequestOption {
	return func(opts *requestOpts) error {
		opts.body = body

		return nil
	}
}

// WithContentType overrides the default "application/json" Content-Type header.
func WithContentType(contentType string) RequestOption {
	return func(opts *requestOpts) error {
		if contentType == "" {
			return errors.New("cannot use empty content type")
		}

		opts.contentType = &contentType

		return nil
	}
}

// WithHeaders adds custom headers to the outgoing request.
func WithHeaders(headers map[string][]string) RequestOption {
	return func(opts *requestOpts) error {
		opts.headers = headers

		return nil
	}
}
