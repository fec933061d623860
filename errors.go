package datalake

import (
	"errors"
	"fmt"

	"github.com/adamwoolhether/datalake/client"
)

// Error kinds. Every error returned by a [Datalake] operation is an [*Error]
// whose Kind is one of these, so callers can branch with errors.Is.
var (
	ErrAuthentication = errors.New("authentication error")
	ErrHTTP           = errors.New("http error")
	ErrTimeout        = errors.New("timeout error")
	ErrAPI            = errors.New("api error")
	ErrParse          = errors.New("parse error")
	ErrUnexpectedLib  = errors.New("unexpected library error")
)

var (
	// ErrUnknownState is returned by [ParseState] for unrecognised task states.
	ErrUnknownState = errors.New("unknown bulk search state")
	// ErrTaskFailed marks a bulk search task that reached a failure state.
	ErrTaskFailed = errors.New("bulk search task failed")
	// ErrNotReady is returned when an export is requested before it can be downloaded.
	ErrNotReady = errors.New("bulk search not ready")
)

// Error describes a failed operation. URL, Response and StatusCode are
// set when the failure relates to a particular API exchange.
type Error struct {
	Kind       error
	Summary    string
	URL        string
	Response   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Summary)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// newError builds an *Error of the given kind, filling the API details
// from resp when it is non-nil.
func newError(kind error, summary string, resp *client.Response, cause error) *Error {
	e := &Error{
		Kind:    kind,
		Summary: summary,
		Err:     cause,
	}

	if resp != nil {
		e.URL = resp.URL
		e.Response = resp.Text()
		e.StatusCode = resp.StatusCode
	}

	return e
}

func httpError(url string, cause error) *Error {
	return &Error{
		Kind:    ErrHTTP,
		Summary: "could not fetch API for url " + url,
		URL:     url,
		Err:     cause,
	}
}

// GetError returns the *Error in err's chain, if any.
func GetError(err error) (*Error, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return nil, false
	}

	return e, true
}
