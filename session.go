package datalake

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/datalake/client"
	"github.com/adamwoolhether/datalake/settings"
)

const tokenPrefix = "Token "

// Credentials identify the account a [Datalake] acts for. Build them with
// [UserPassword] or [LongTermToken].
type Credentials struct {
	username      string
	password      string
	longTermToken string
}

// UserPassword returns credentials that log in and renew short-lived tokens.
func UserPassword(username, password string) Credentials {
	return Credentials{username: username, password: password}
}

// LongTermToken returns credentials that send token as is, without login.
func LongTermToken(token string) Credentials {
	return Credentials{longTermToken: token}
}

func (c Credentials) validate() error {
	hasPair := c.username != "" && c.password != ""
	hasToken := c.longTermToken != ""
	partial := (c.username != "") != (c.password != "")

	if hasPair == hasToken || partial {
		return &Error{
			Kind:    ErrUnexpectedLib,
			Summary: "either username and password must be provided together or a long-term token must be present",
		}
	}

	return nil
}

// TokenPair holds the access and refresh tokens, both with the "Token " prefix.
type TokenPair struct {
	Access  string
	Refresh string
}

// Session owns the token state of a client. Tokens are obtained lazily and
// only replaced as a whole.
type Session struct {
	mu     sync.Mutex
	creds  Credentials
	tokens *TokenPair

	http      *client.Client
	routes    settings.Routes
	logger    *slog.Logger
	tracer    trace.Tracer
	refreshes metric.Int64Counter
}

func newSession(creds Credentials, hc *client.Client, routes settings.Routes, logger *slog.Logger, tracer trace.Tracer, refreshes metric.Int64Counter) *Session {
	return &Session{
		creds:     creds,
		http:      hc,
		routes:    routes,
		logger:    logger,
		tracer:    tracer,
		refreshes: refreshes,
	}
}

// LongLived reports whether the session uses a long-term token.
func (s *Session) LongLived() bool {
	return s.creds.longTermToken != ""
}

// AccessToken returns the Authorization header value. A long-term token
// never touches the network; otherwise the first call logs in and later
// calls return the cached token.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	if s.LongLived() {
		return tokenPrefix + s.creds.longTermToken, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens == nil {
		pair, err := s.login(ctx)
		if err != nil {
			return "", err
		}
		s.tokens = &pair
	}

	return s.tokens.Access, nil
}

// Refresh renews the access token with the refresh token, falling back to
// a full login when the refresh token is rejected. The new pair replaces
// the cached one.
func (s *Session) Refresh(ctx context.Context) (pair TokenPair, err error) {
	ctx, end := startSpan(ctx, s.tracer, "datalake.refresh", &err)
	defer end()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens == nil {
		return TokenPair{}, &Error{Kind: ErrUnexpectedLib, Summary: "refresh called with no token set"}
	}

	s.logger.Info("refreshing the access token")
	s.refreshes.Add(ctx, 1)

	url := s.routes.RefreshToken
	req, err := client.Request(ctx, url, http.MethodPost,
		client.WithHeaders(map[string][]string{"Authorization": {s.tokens.Refresh}}),
	)
	if err != nil {
		return TokenPair{}, &Error{Kind: ErrUnexpectedLib, Summary: "building refresh request", Err: err}
	}

	resp, err := s.http.Send(req)
	if err != nil {
		return TokenPair{}, httpError(url, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		s.logger.Info("refresh token is expired, authenticating from the start")
		pair, err = s.login(ctx)
		if err != nil {
			return TokenPair{}, err
		}
		s.tokens = &pair
		return pair, nil
	}

	fields, err := decodeObject(resp)
	if err != nil {
		return TokenPair{}, err
	}

	access, ok := fields["access_token"].(string)
	if !ok {
		return TokenPair{}, newError(ErrAuthentication, "invalid credentials", resp, nil)
	}

	pair = TokenPair{Access: tokenPrefix + access, Refresh: s.tokens.Refresh}
	s.tokens = &pair

	return pair, nil
}

// login must be called with s.mu held.
func (s *Session) login(ctx context.Context) (pair TokenPair, err error) {
	ctx, end := startSpan(ctx, s.tracer, "datalake.login", &err)
	defer end()

	s.logger.Info("authenticating", "username", s.creds.username)

	body := map[string]string{
		"email":    s.creds.username,
		"password": s.creds.password,
	}

	url := s.routes.Authentication
	req, err := client.Request(ctx, url, http.MethodPost, client.WithPayload(body))
	if err != nil {
		return TokenPair{}, &Error{Kind: ErrUnexpectedLib, Summary: "building login request", Err: err}
	}

	resp, err := s.http.Send(req)
	if err != nil {
		return TokenPair{}, httpError(url, err)
	}

	fields, err := decodeObject(resp)
	if err != nil {
		return TokenPair{}, err
	}

	access, okAccess := fields["access_token"].(string)
	refresh, okRefresh := fields["refresh_token"].(string)
	if !okAccess || !okRefresh {
		return TokenPair{}, newError(ErrAuthentication, "invalid credentials", resp, nil)
	}

	return TokenPair{Access: tokenPrefix + access, Refresh: tokenPrefix + refresh}, nil
}

// decodeObject parses a JSON body. A body that is not JSON is a ParseError;
// valid JSON that is not an object yields an empty map so callers report
// their own shape error.
func decodeObject(resp *client.Response) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return nil, newError(ErrParse, "response body is not valid JSON", resp, err)
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}

	return obj, nil
}
