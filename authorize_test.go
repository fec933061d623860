package datalake_test

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/datalake"
)

const extractOK = `{"results":{"domain":["domain.com"]}}`

func TestAuthorized_RefreshOnExpiry(t *testing.T) {
	api := newFakeAPI(t)
	api.loginOK("a1", "r1")
	api.handle(http.MethodPost, pathRefresh, respond(http.StatusOK, `{"access_token":"a2"}`))
	api.handle(http.MethodPost, pathExtract, sequence(
		respond(http.StatusUnauthorized, `{"detail":"expired"}`),
		respond(http.StatusOK, extractOK),
	))
	dtl := api.datalake(datalake.UserPassword("user", "pass"))

	got, err := dtl.ExtractAtomType(t.Context(), []string{"domain.com"}, datalake.TreatHashesAsFile)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"domain.com": "domain"}, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	calls := api.received()
	wantPaths := []string{pathToken, pathExtract, pathRefresh, pathExtract}
	if diff := cmp.Diff(wantPaths, api.paths()); diff != "" {
		t.Fatalf("call sequence mismatch (-want +got):\n%s", diff)
	}

	wantAuth := []string{"", "Token a1", "Token r1", "Token a2"}
	var gotAuth []string
	for _, c := range calls {
		gotAuth = append(gotAuth, c.Authorization)
	}
	if diff := cmp.Diff(wantAuth, gotAuth); diff != "" {
		t.Errorf("authorization headers mismatch (-want +got):\n%s", diff)
	}

	if calls[1].Body != calls[3].Body {
		t.Errorf("retried request body differs: %q vs %q", calls[1].Body, calls[3].Body)
	}

	// The refreshed token is cached for later calls.
	token, err := dtl.AccessToken(t.Context())
	if err != nil {
		t.Fatalf("access token: %v", err)
	}
	if token != "Token a2" {
		t.Errorf("expected refreshed token to be cached, got %q", token)
	}
}

func TestAuthorized_UnauthorizedAfterRefresh(t *testing.T) {
	api := newFakeAPI(t)
	api.loginOK("a1", "r1")
	api.handle(http.MethodPost, pathRefresh, respond(http.StatusOK, `{"access_token":"a2"}`))
	api.handle(http.MethodPost, pathExtract, respond(http.StatusUnauthorized, `{"detail":"nope"}`))
	dtl := api.datalake(datalake.UserPassword("user", "pass"))

	_, err := dtl.ExtractAtomType(t.Context(), []string{"domain.com"}, datalake.TreatHashesAsFile)

	dErr := requireError(t, err, datalake.ErrAuthentication)
	if dErr.Summary != "401 response despite refreshed token" {
		t.Errorf("unexpected summary %q", dErr.Summary)
	}
	if dErr.StatusCode != http.StatusUnauthorized || dErr.Response != `{"detail":"nope"}` {
		t.Errorf("expected 401 details, got status %d body %q", dErr.StatusCode, dErr.Response)
	}

	wantPaths := []string{pathToken, pathExtract, pathRefresh, pathExtract}
	if diff := cmp.Diff(wantPaths, api.paths()); diff != "" {
		t.Errorf("expected no third attempt (-want +got):\n%s", diff)
	}
}

func TestAuthorized_LongTermTokenRejected(t *testing.T) {
	api := newFakeAPI(t)
	api.handle(http.MethodPost, pathExtract, respond(http.StatusUnauthorized, `{"detail":"invalid token"}`))
	dtl := api.datalake(datalake.LongTermToken("long"))

	_, err := dtl.ExtractAtomType(t.Context(), []string{"domain.com"}, datalake.TreatHashesAsFile)

	dErr := requireError(t, err, datalake.ErrAuthentication)
	if dErr.Summary != "401 response: invalid long-term token" {
		t.Errorf("unexpected summary %q", dErr.Summary)
	}
	if dErr.URL != api.server.URL+pathExtract {
		t.Errorf("expected url %q, got %q", api.server.URL+pathExtract, dErr.URL)
	}

	calls := api.received()
	if len(calls) != 1 {
		t.Fatalf("expected a single attempt, got %d calls", len(calls))
	}
	if calls[0].Authorization != "Token long" {
		t.Errorf("expected long-term token header, got %q", calls[0].Authorization)
	}
}

func TestAuthorized_RefreshFallsBackToLogin(t *testing.T) {
	api := newFakeAPI(t)
	api.handle(http.MethodPost, pathToken, sequence(
		respond(http.StatusOK, `{"access_token":"a1","refresh_token":"r1"}`),
		respond(http.StatusOK, `{"access_token":"a3","refresh_token":"r3"}`),
	))
	api.handle(http.MethodPost, pathRefresh, respond(http.StatusUnauthorized, `{"detail":"refresh expired"}`))
	api.handle(http.MethodPost, pathExtract, sequence(
		respond(http.StatusUnauthorized, `{}`),
		respond(http.StatusOK, extractOK),
	))
	dtl := api.datalake(datalake.UserPassword("user", "pass"))

	if _, err := dtl.ExtractAtomType(t.Context(), []string{"domain.com"}, datalake.TreatHashesAsFile); err != nil {
		t.Fatalf("extract: %v", err)
	}

	wantPaths := []string{pathToken, pathExtract, pathRefresh, pathToken, pathExtract}
	if diff := cmp.Diff(wantPaths, api.paths()); diff != "" {
		t.Fatalf("call sequence mismatch (-want +got):\n%s", diff)
	}

	if got := api.received()[4].Authorization; got != "Token a3" {
		t.Errorf("expected re-login token on retry, got %q", got)
	}
}

func TestAuthorized_RefreshMissingAccessToken(t *testing.T) {
	api := newFakeAPI(t)
	api.loginOK("a1", "r1")
	api.handle(http.MethodPost, pathRefresh, respond(http.StatusOK, `{"unexpected":true}`))
	api.handle(http.MethodPost, pathExtract, respond(http.StatusUnauthorized, `{}`))
	dtl := api.datalake(datalake.UserPassword("user", "pass"))

	_, err := dtl.ExtractAtomType(t.Context(), []string{"domain.com"}, datalake.TreatHashesAsFile)

	dErr := requireError(t, err, datalake.ErrAuthentication)
	if dErr.URL != api.server.URL+pathRefresh {
		t.Errorf("expected refresh url in error, got %q", dErr.URL)
	}
}

func TestAuthorized_NonAuthErrorsPassThrough(t *testing.T) {
	api := newFakeAPI(t)
	api.loginOK("a1", "r1")
	api.handle(http.MethodPost, pathExtract, respond(http.StatusForbidden, `{"results":{}}`))
	dtl := api.datalake(datalake.UserPassword("user", "pass"))

	// A 403 is handed back to the caller untouched; the classifier then
	// decodes it like any other response.
	got, err := dtl.ExtractAtomType(t.Context(), []string{"x"}, datalake.TreatHashesAsFile)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty classification, got %v", got)
	}
	if len(api.received()) != 2 {
		t.Errorf("expected login and one attempt, got %v", api.paths())
	}
}
