// Package settings holds the environment-specific configuration of a
// Datalake client: base URL, route templates and bulk operation tuning.
//
// Two presets ship embedded in the binary, [Prod] and [Preprod]. A custom
// TOML file can be read with [Load]; values may then be overridden from
// DATALAKE_* environment variables.
package settings

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPrefix prefixes every environment override read by [Settings.ApplyEnv].
const EnvPrefix = "DATALAKE_"

const (
	baseURLPlaceholder  = "{base_url}"
	taskUUIDPlaceholder = "{task_uuid}"
)

var (
	//go:embed prod.toml
	prodTOML []byte

	//go:embed preprod.toml
	preprodTOML []byte
)

// ErrUnknownKey is returned when a settings file carries keys that map to no field.
var ErrUnknownKey = errors.New("unknown settings key")

// Settings configures a Datalake client.
type Settings struct {
	BaseURL                 string         `toml:"base_url" validate:"required,url"`
	Templates               RouteTemplates `toml:"routes" validate:"required"`
	BulkLookupChunkSize     int            `toml:"bulk_lookup_chunk_size" validate:"gt=0"`
	BulkSearchTimeout       time.Duration  `toml:"bulk_search_timeout" validate:"gt=0"`
	BulkSearchRetryInterval time.Duration  `toml:"bulk_search_retry_interval" validate:"gte=0"`
}

// RouteTemplates hold endpoint URLs with a {base_url} placeholder.
// BulkSearchDownload additionally carries {task_uuid}.
type RouteTemplates struct {
	Authentication     string `toml:"authentication" validate:"required,contains={base_url}"`
	RefreshToken       string `toml:"refresh_token" validate:"required,contains={base_url}"`
	AtomValuesExtract  string `toml:"atom_values_extract" validate:"required,contains={base_url}"`
	BulkLookup         string `toml:"bulk_lookup" validate:"required,contains={base_url}"`
	BulkSearch         string `toml:"bulk_search" validate:"required,contains={base_url}"`
	BulkSearchTask     string `toml:"bulk_search_task" validate:"required,contains={base_url}"`
	BulkSearchDownload string `toml:"bulk_search_download" validate:"required,contains={task_uuid}"`
}

// Routes are the fully resolved endpoint URLs.
type Routes struct {
	Authentication    string
	RefreshToken      string
	AtomValuesExtract string
	BulkLookup        string
	BulkSearch        string
	BulkSearchTask    string

	bulkSearchDownload string
}

// BulkSearchDownload returns the export URL of the given task.
func (r Routes) BulkSearchDownload(taskUUID string) string {
	return strings.ReplaceAll(r.bulkSearchDownload, taskUUIDPlaceholder, taskUUID)
}

// Prod returns the production preset.
func Prod() Settings {
	return mustPreset(prodTOML)
}

// Preprod returns the pre-production preset.
func Preprod() Settings {
	return mustPreset(preprodTOML)
}

func mustPreset(data []byte) Settings {
	s, err := decode(data, Settings{})
	if err != nil {
		panic(fmt.Sprintf("settings: decoding embedded preset: %v", err))
	}

	return s
}

// Load reads a TOML settings file. See [Parse].
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings file: %w", err)
	}

	return Parse(data)
}

// Parse decodes TOML over the production preset, so a file only needs the
// keys it changes. Environment overrides are applied and the result is
// validated.
func Parse(data []byte) (Settings, error) {
	s, err := decode(data, Prod())
	if err != nil {
		return Settings{}, err
	}

	if err := s.ApplyEnv(); err != nil {
		return Settings{}, err
	}

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("validating settings: %w", err)
	}

	return s, nil
}

func decode(data []byte, base Settings) (Settings, error) {
	md, err := toml.Decode(string(data), &base)
	if err != nil {
		return Settings{}, fmt.Errorf("decoding settings: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slices.Sort(keys)
		return Settings{}, fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(keys, ", "))
	}

	return base, nil
}

// ApplyEnv overrides fields from DATALAKE_BASE_URL,
// DATALAKE_BULK_LOOKUP_CHUNK_SIZE, DATALAKE_BULK_SEARCH_TIMEOUT and
// DATALAKE_BULK_SEARCH_RETRY_INTERVAL when they are set.
func (s *Settings) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvPrefix + "BASE_URL"); ok {
		s.BaseURL = v
	}

	if v, ok := os.LookupEnv(EnvPrefix + "BULK_LOOKUP_CHUNK_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %sBULK_LOOKUP_CHUNK_SIZE[%s]: %w", EnvPrefix, v, err)
		}
		s.BulkLookupChunkSize = n
	}

	durations := map[string]*time.Duration{
		"BULK_SEARCH_TIMEOUT":        &s.BulkSearchTimeout,
		"BULK_SEARCH_RETRY_INTERVAL": &s.BulkSearchRetryInterval,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %s%s[%s]: %w", EnvPrefix, key, v, err)
		}
		*dst = d
	}

	return nil
}

// SetBaseURL points every route at a different host, keeping the templates.
func (s *Settings) SetBaseURL(baseURL string) {
	s.BaseURL = baseURL
}

// Routes resolves the route templates against BaseURL.
func (s Settings) Routes() Routes {
	base := strings.TrimSuffix(s.BaseURL, "/")
	format := func(tmpl string) string {
		return strings.ReplaceAll(tmpl, baseURLPlaceholder, base)
	}

	return Routes{
		Authentication:     format(s.Templates.Authentication),
		RefreshToken:       format(s.Templates.RefreshToken),
		AtomValuesExtract:  format(s.Templates.AtomValuesExtract),
		BulkLookup:         format(s.Templates.BulkLookup),
		BulkSearch:         format(s.Templates.BulkSearch),
		BulkSearchTask:     format(s.Templates.BulkSearchTask),
		bulkSearchDownload: format(s.Templates.BulkSearchDownload),
	}
}
