package datalake

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/adamwoolhether/datalake/client"
)

// Hash treatment policies for [Datalake.ExtractAtomType] and
// [Datalake.BulkLookup]. Other values are forwarded to the API untouched.
const (
	TreatHashesAsFile        = "file"
	TreatHashesAsCertificate = "certificate"
)

const notFoundType = "not_found"

// ExtractAtomType asks the API to classify values and returns a map of
// value to atom type. Values the API does not recognise are left out.
func (d *Datalake) ExtractAtomType(ctx context.Context, values []string, treatHashesLike string) (result map[string]string, err error) {
	ctx, end := startSpan(ctx, d.tracer, "datalake.extract_atom_type", &err)
	defer end()

	if len(values) == 0 {
		return nil, &Error{Kind: ErrUnexpectedLib, Summary: "no atom values to extract"}
	}

	body := map[string]string{
		"content":           strings.Join(values, " "),
		"treat_hashes_like": treatHashesLike,
	}

	req, err := client.Request(ctx, d.routes.AtomValuesExtract, http.MethodPost, client.WithPayload(body))
	if err != nil {
		return nil, &Error{Kind: ErrUnexpectedLib, Summary: "building extract request", Err: err}
	}

	resp, err := d.authorized(req)
	if err != nil {
		return nil, err
	}

	fields, err := decodeObject(resp)
	if err != nil {
		return nil, err
	}

	result, ok := parseExtracted(fields)
	if !ok {
		return nil, newError(ErrAPI, "extracted API response not as expected", resp, nil)
	}

	return result, nil
}

// parseExtracted inverts {"results": {type: [values...]}}. Types are
// visited in sorted order so a value listed under two types resolves the
// same way every time.
func parseExtracted(fields map[string]any) (map[string]string, bool) {
	results, ok := fields["results"].(map[string]any)
	if !ok {
		return nil, false
	}

	types := make([]string, 0, len(results))
	for atomType := range results {
		types = append(types, atomType)
	}
	slices.Sort(types)

	extracted := make(map[string]string)
	for _, atomType := range types {
		atoms, ok := results[atomType].([]any)
		if !ok {
			return nil, false
		}

		for _, atom := range atoms {
			value, ok := atom.(string)
			if !ok {
				return nil, false
			}
			if atomType == notFoundType {
				continue
			}
			extracted[value] = atomType
		}
	}

	return extracted, true
}
