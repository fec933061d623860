// Package throttle caps the rate of calls made against the Datalake API
// with an [http.RoundTripper] backed by [golang.org/x/time/rate].
//
// Requests over the burst capacity are held until the bucket refills or
// their context ends:
//
//	rt, err := throttle.NewRoundTripper(10, 5, func() *slog.Logger { return logger }, http.DefaultTransport)
//	hc := &http.Client{Transport: rt}
package throttle
