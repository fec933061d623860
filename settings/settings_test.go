package settings_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/datalake/settings"
)

func TestPresets(t *testing.T) {
	tests := map[string]struct {
		preset  settings.Settings
		baseURL string
	}{
		"prod": {
			preset:  settings.Prod(),
			baseURL: "https://datalake.cert.orangecyberdefense.com/api/v2",
		},
		"preprod": {
			preset:  settings.Preprod(),
			baseURL: "https://ti.extranet.mrti-center.com/api/v2",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if err := tc.preset.Validate(); err != nil {
				t.Fatalf("preset should validate: %v", err)
			}

			if tc.preset.BaseURL != tc.baseURL {
				t.Errorf("expected base url %q, got %q", tc.baseURL, tc.preset.BaseURL)
			}
			if tc.preset.BulkLookupChunkSize != 100 {
				t.Errorf("expected chunk size 100, got %d", tc.preset.BulkLookupChunkSize)
			}
			if tc.preset.BulkSearchTimeout != time.Hour {
				t.Errorf("expected timeout 1h, got %s", tc.preset.BulkSearchTimeout)
			}
			if tc.preset.BulkSearchRetryInterval != 10*time.Second {
				t.Errorf("expected retry interval 10s, got %s", tc.preset.BulkSearchRetryInterval)
			}

			routes := tc.preset.Routes()
			got := map[string]string{
				"authentication":       routes.Authentication,
				"refresh_token":        routes.RefreshToken,
				"atom_values_extract":  routes.AtomValuesExtract,
				"bulk_lookup":          routes.BulkLookup,
				"bulk_search":          routes.BulkSearch,
				"bulk_search_task":     routes.BulkSearchTask,
				"bulk_search_download": routes.BulkSearchDownload("abc-123"),
			}
			want := map[string]string{
				"authentication":       tc.baseURL + "/auth/token/",
				"refresh_token":        tc.baseURL + "/auth/refresh-token/",
				"atom_values_extract":  tc.baseURL + "/mrti/threats/atom-values-extract/",
				"bulk_lookup":          tc.baseURL + "/mrti/threats/bulk-lookup/",
				"bulk_search":          tc.baseURL + "/mrti/bulk-search/",
				"bulk_search_task":     tc.baseURL + "/mrti/bulk-search/tasks/",
				"bulk_search_download": tc.baseURL + "/mrti/bulk-search/tasks/abc-123",
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("routes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSetBaseURL(t *testing.T) {
	s := settings.Prod()
	s.SetBaseURL("http://127.0.0.1:8080/api/v2/")

	routes := s.Routes()
	if routes.Authentication != "http://127.0.0.1:8080/api/v2/auth/token/" {
		t.Errorf("unexpected authentication route %q", routes.Authentication)
	}
	if got := routes.BulkSearchDownload("u"); got != "http://127.0.0.1:8080/api/v2/mrti/bulk-search/tasks/u" {
		t.Errorf("unexpected download route %q", got)
	}
}

func TestParse(t *testing.T) {
	tests := map[string]struct {
		data    string
		env     map[string]string
		check   func(t *testing.T, s settings.Settings)
		wantErr error
	}{
		"overridesOnlyGivenKeys": {
			data: `
bulk_lookup_chunk_size = 5
bulk_search_retry_interval = "250ms"
`,
			check: func(t *testing.T, s settings.Settings) {
				if s.BulkLookupChunkSize != 5 {
					t.Errorf("expected chunk size 5, got %d", s.BulkLookupChunkSize)
				}
				if s.BulkSearchRetryInterval != 250*time.Millisecond {
					t.Errorf("expected retry interval 250ms, got %s", s.BulkSearchRetryInterval)
				}
				if s.BaseURL != settings.Prod().BaseURL {
					t.Errorf("expected prod base url to be kept, got %q", s.BaseURL)
				}
			},
		},
		"envWins": {
			data: `base_url = "https://file.example.com/api/v2"`,
			env: map[string]string{
				"DATALAKE_BASE_URL":                   "https://env.example.com/api/v2",
				"DATALAKE_BULK_LOOKUP_CHUNK_SIZE":     "7",
				"DATALAKE_BULK_SEARCH_TIMEOUT":        "2m",
				"DATALAKE_BULK_SEARCH_RETRY_INTERVAL": "1s",
			},
			check: func(t *testing.T, s settings.Settings) {
				want := settings.Settings{
					BaseURL:                 "https://env.example.com/api/v2",
					Templates:               settings.Prod().Templates,
					BulkLookupChunkSize:     7,
					BulkSearchTimeout:       2 * time.Minute,
					BulkSearchRetryInterval: time.Second,
				}
				if diff := cmp.Diff(want, s); diff != "" {
					t.Errorf("settings mismatch (-want +got):\n%s", diff)
				}
			},
		},
		"unknownKey": {
			data:    `bulk_lookup_chunks = 5`,
			wantErr: settings.ErrUnknownKey,
		},
		"malformedTOML": {
			data: `base_url = `,
		},
		"badEnvInt": {
			env: map[string]string{"DATALAKE_BULK_LOOKUP_CHUNK_SIZE": "many"},
		},
		"badEnvDuration": {
			env: map[string]string{"DATALAKE_BULK_SEARCH_TIMEOUT": "forever"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			s, err := settings.Parse([]byte(tc.data))

			if tc.check == nil {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
					t.Errorf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			tc.check(t, s)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate    func(s *settings.Settings)
		wantField string
	}{
		"missingBaseURL": {
			mutate:    func(s *settings.Settings) { s.BaseURL = "" },
			wantField: "base_url",
		},
		"invalidBaseURL": {
			mutate:    func(s *settings.Settings) { s.BaseURL = "not a url" },
			wantField: "base_url",
		},
		"zeroChunkSize": {
			mutate:    func(s *settings.Settings) { s.BulkLookupChunkSize = 0 },
			wantField: "bulk_lookup_chunk_size",
		},
		"zeroTimeout": {
			mutate:    func(s *settings.Settings) { s.BulkSearchTimeout = 0 },
			wantField: "bulk_search_timeout",
		},
		"negativeRetryInterval": {
			mutate:    func(s *settings.Settings) { s.BulkSearchRetryInterval = -time.Second },
			wantField: "bulk_search_retry_interval",
		},
		"downloadWithoutTaskPlaceholder": {
			mutate:    func(s *settings.Settings) { s.Templates.BulkSearchDownload = "{base_url}/mrti/bulk-search/tasks/" },
			wantField: "routes.bulk_search_download",
		},
		"routeWithoutBasePlaceholder": {
			mutate:    func(s *settings.Settings) { s.Templates.Authentication = "https://elsewhere/auth/token/" },
			wantField: "routes.authentication",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			s := settings.Prod()
			tc.mutate(&s)

			err := s.Validate()

			var fields settings.FieldErrors
			if !errors.As(err, &fields) {
				t.Fatalf("expected FieldErrors, got %v", err)
			}
			if len(fields) != 1 {
				t.Fatalf("expected exactly one field error, got %v", fields)
			}
			if fields[0].Field != tc.wantField {
				t.Errorf("expected field %q, got %q", tc.wantField, fields[0].Field)
			}
			if fields[0].Err == "" {
				t.Error("expected a translated message")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datalake.toml")
	if err := os.WriteFile(path, []byte(`base_url = "http://localhost:9000/api/v2"`), 0o600); err != nil {
		t.Fatalf("writing settings file: %v", err)
	}

	s, err := settings.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Routes().BulkLookup != "http://localhost:9000/api/v2/mrti/threats/bulk-lookup/" {
		t.Errorf("unexpected bulk lookup route %q", s.Routes().BulkLookup)
	}

	if _, err := settings.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
