package throttle

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// limiter is an http.RoundTripper that holds each request
// until the token bucket grants it a slot.
type limiter struct {
	bucket *rate.Limiter
	cfg    Config
	next   http.RoundTripper
	logFn  func() *slog.Logger
}

// NewRoundTripper wraps next so that at most rps requests per second (with
// the given burst) leave the process. logFn is resolved per request so the
// logger may be swapped after construction; when it returns nil, waits are
// not logged.
func NewRoundTripper(rps, burst int, logFn func() *slog.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
	}

	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	l := &limiter{
		bucket: rate.NewLimiter(rate.Limit(rps), burst),
		cfg:    Config{RPS: rps, Burst: burst},
		next:   next,
		logFn:  logFn,
	}

	return l, nil
}

func (l *limiter) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	reservation := l.bucket.Reserve()
	if !reservation.OK() {
		return nil, fmt.Errorf("%w: burst %d too small", ErrWaitingFailed, l.cfg.Burst)
	}

	delay := reservation.Delay()
	if delay > 0 {
		if logger := l.logFn(); logger != nil {
			logger.Info("throttling api call", "path", r.URL.Path, "wait", delay.String(), "rps", l.cfg.RPS, "burst", l.cfg.Burst)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			reservation.Cancel()
			return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, ctx.Err())
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return l.next.RoundTrip(r)
}
