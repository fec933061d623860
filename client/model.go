package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// maxErrBodySize caps the amount of response body carried by an
// UnexpectedStatusError so error strings stay readable.
const maxErrBodySize = 4 << 10 // 4KB

var (
	// ErrUnexpectedStatusCode is the sentinel error wrapped by [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrAuthFailure is joined with [ErrUnexpectedStatusCode] when the server
	// responds with 401 Unauthorized or 403 Forbidden.
	ErrAuthFailure = errors.New("auth failure")
	// ErrNotReplayable is returned by [Clone] for requests whose body can't be read twice.
	ErrNotReplayable = errors.New("request body is not replayable")
)

// UnexpectedStatusError is returned when the HTTP response status code
// does not match the expected value.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	URL        string
	Header     http.Header
	Body       []byte
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Success reports whether the status code is in the 2xx range.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the JSON body into dest, which must be a pointer.
func (r *Response) Decode(dest any) error {
	if err := json.Unmarshal(r.Body, dest); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}

	return nil
}

// Expect returns an *UnexpectedStatusError if the status code isn't expCode.
func (r *Response) Expect(expCode int) error {
	if r.StatusCode == expCode {
		return nil
	}

	body := r.Body
	if len(body) > maxErrBodySize {
		body = body[:maxErrBodySize]
	}

	err := ErrUnexpectedStatusCode
	if r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden {
		err = fmt.Errorf("%w: %w", ErrAuthFailure, ErrUnexpectedStatusCode)
	}

	return &UnexpectedStatusError{
		StatusCode: r.StatusCode,
		Body:       string(body),
		Err:        err,
	}
}
