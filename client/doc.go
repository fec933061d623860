// Package client provides the HTTP transport used by the Datalake API
// client, built on [net/http].
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(30 * time.Second),
//		client.WithUserAgent("datalake-go/1.0"),
//		client.WithRequestID(),
//	)
//
// # Making Requests
//
// Construct a [Request] and execute it with [Client.Send]. The response
// body is read in full so callers can inspect the status before deciding
// how to interpret it:
//
//	req, err := client.Request(ctx, "https://host/api/v2/auth/token/", http.MethodPost,
//		client.WithPayload(creds),
//	)
//	resp, err := c.Send(req)
//	if err := resp.Expect(http.StatusOK); err != nil { ... }
//	err = resp.Decode(&tokens)
//
// # Replaying Requests
//
// Requests built by [Request] keep their body in memory. [Clone] returns an
// independent copy that can be re-sent, for example with a refreshed
// Authorization header after a 401.
//
// # Rate Limiting
//
// [WithThrottle] enables client-side token-bucket rate limiting via the
// [throttle] sub-package.
package client
