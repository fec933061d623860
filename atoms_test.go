package datalake_test

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/datalake"
)

func TestExtractAtomType(t *testing.T) {
	tests := map[string]struct {
		values []string
		body   string
		want   map[string]string
	}{
		"mixedTypes": {
			values: []string{"domain.com", "4.4.4.4", "1.1.1.1"},
			body:   `{"results":{"domain":["domain.com"],"ip":["4.4.4.4"]}}`,
			want:   map[string]string{"domain.com": "domain", "4.4.4.4": "ip"},
		},
		"notFoundOmitted": {
			values: []string{"domain.com", "garbage"},
			body:   `{"results":{"domain":["domain.com"],"not_found":["garbage"]}}`,
			want:   map[string]string{"domain.com": "domain"},
		},
		"nothingRecognised": {
			values: []string{"garbage"},
			body:   `{"results":{}}`,
			want:   map[string]string{},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.handle(http.MethodPost, pathExtract, respond(http.StatusOK, tc.body))
			dtl := api.datalake(datalake.LongTermToken("tok"))

			got, err := dtl.ExtractAtomType(t.Context(), tc.values, datalake.TreatHashesAsCertificate)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("classification mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractAtomType_RequestBody(t *testing.T) {
	api := newFakeAPI(t)
	api.handle(http.MethodPost, pathExtract, respond(http.StatusOK, `{"results":{}}`))
	dtl := api.datalake(datalake.LongTermToken("tok"))

	if _, err := dtl.ExtractAtomType(t.Context(), []string{"a.com", "b.com", "1.2.3.4"}, datalake.TreatHashesAsFile); err != nil {
		t.Fatalf("extract: %v", err)
	}

	calls := api.received()
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}

	want := map[string]any{"content": "a.com b.com 1.2.3.4", "treat_hashes_like": "file"}
	if diff := cmp.Diff(want, decodeBody(t, calls[0].Body)); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
	if calls[0].Authorization != "Token tok" {
		t.Errorf("expected authorization header, got %q", calls[0].Authorization)
	}
}

func TestExtractAtomType_Errors(t *testing.T) {
	tests := map[string]struct {
		body     string
		wantKind error
	}{
		"missingResults":   {body: `{"detail":"oops"}`, wantKind: datalake.ErrAPI},
		"resultsNotObject": {body: `{"results":["domain.com"]}`, wantKind: datalake.ErrAPI},
		"valuesNotArray":   {body: `{"results":{"domain":"domain.com"}}`, wantKind: datalake.ErrAPI},
		"valueNotString":   {body: `{"results":{"ip":[4]}}`, wantKind: datalake.ErrAPI},
		"notAnObject":      {body: `[1,2,3]`, wantKind: datalake.ErrAPI},
		"notJSON":          {body: `<html></html>`, wantKind: datalake.ErrParse},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.handle(http.MethodPost, pathExtract, respond(http.StatusOK, tc.body))
			dtl := api.datalake(datalake.LongTermToken("tok"))

			_, err := dtl.ExtractAtomType(t.Context(), []string{"domain.com"}, datalake.TreatHashesAsFile)

			dErr := requireError(t, err, tc.wantKind)
			if dErr.Response != tc.body {
				t.Errorf("expected raw body %q, got %q", tc.body, dErr.Response)
			}
			if dErr.URL != api.server.URL+pathExtract {
				t.Errorf("expected url %q, got %q", api.server.URL+pathExtract, dErr.URL)
			}
			if dErr.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", dErr.StatusCode)
			}
		})
	}
}

func TestExtractAtomType_EmptyInput(t *testing.T) {
	api := newFakeAPI(t)
	dtl := api.datalake(datalake.UserPassword("user", "pass"))

	_, err := dtl.ExtractAtomType(t.Context(), nil, datalake.TreatHashesAsFile)

	requireError(t, err, datalake.ErrUnexpectedLib)
	if calls := api.received(); len(calls) != 0 {
		t.Errorf("expected no network calls, got %v", calls)
	}
}
