package datalake

import (
	"net/http"

	"github.com/adamwoolhether/datalake/client"
)

// authorized sends req with the session's access token. A 401 is retried
// exactly once with a refreshed token, unless the session uses a
// long-term token. req must be replayable, see [client.Clone].
func (d *Datalake) authorized(req *http.Request) (*client.Response, error) {
	ctx := req.Context()

	// Fail on a single-use body before any token is fetched.
	if _, err := client.Clone(req); err != nil {
		return nil, &Error{Kind: ErrUnexpectedLib, Summary: "can't clone given request", URL: req.URL.String(), Err: err}
	}

	token, err := d.session.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := d.attempt(req, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if d.session.LongLived() {
		return nil, newError(ErrAuthentication, "401 response: invalid long-term token", resp, nil)
	}

	pair, err := d.session.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	resp, err = d.attempt(req, pair.Access)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, newError(ErrAuthentication, "401 response despite refreshed token", resp, nil)
	}

	return resp, nil
}

func (d *Datalake) attempt(req *http.Request, token string) (*client.Response, error) {
	cpy, err := client.Clone(req)
	if err != nil {
		return nil, &Error{Kind: ErrUnexpectedLib, Summary: "can't clone given request", URL: req.URL.String(), Err: err}
	}
	cpy.Header.Set("Authorization", token)

	resp, err := d.http.Send(cpy)
	if err != nil {
		return nil, httpError(req.URL.String(), err)
	}

	return resp, nil
}
