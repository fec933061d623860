package datalake

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/adamwoolhether/datalake/client"
)

// BulkLookup classifies and looks up values in chunks of
// Settings.BulkLookupChunkSize and merges the CSV answers into one
// document with a single header row. Any failing chunk aborts the
// lookup and nothing is returned.
func (d *Datalake) BulkLookup(ctx context.Context, values []string, treatHashesLike string) (csv string, err error) {
	ctx, end := startSpan(ctx, d.tracer, "datalake.bulk_lookup", &err)
	defer end()

	var (
		merged strings.Builder
		header string
		index  int
	)

	for chunk := range slices.Chunk(values, d.settings.BulkLookupChunkSize) {
		text, err := d.lookupChunk(ctx, chunk, treatHashesLike)
		if err != nil {
			return "", err
		}

		chunkHeader, body, found := strings.Cut(text, "\n")
		if !found {
			return "", &Error{Kind: ErrAPI, Summary: "unexpected csv result, missing body", Response: text}
		}

		if index == 0 {
			header = chunkHeader
			merged.WriteString(text)
		} else {
			if chunkHeader != header {
				d.logger.Warn("bulk lookup chunk header differs from first chunk", "chunk", index, "header", chunkHeader, "expected", header)
			}
			merged.WriteString(body)
		}

		if !strings.HasSuffix(merged.String(), "\n") {
			merged.WriteByte('\n')
		}
		index++
	}

	return merged.String(), nil
}

func (d *Datalake) lookupChunk(ctx context.Context, values []string, treatHashesLike string) (string, error) {
	extracted, err := d.ExtractAtomType(ctx, values, treatHashesLike)
	if err != nil {
		return "", err
	}

	d.metrics.lookupChunks.Add(ctx, 1)

	body := map[string]any{"hashkey_only": false}
	for _, value := range values {
		atomType, ok := extracted[value]
		if !ok {
			continue
		}
		grouped, _ := body[atomType].([]string)
		body[atomType] = append(grouped, value)
	}

	req, err := client.Request(ctx, d.routes.BulkLookup, http.MethodPost,
		client.WithPayload(body),
		client.WithHeaders(map[string][]string{"Accept": {"text/csv"}}),
	)
	if err != nil {
		return "", &Error{Kind: ErrUnexpectedLib, Summary: "building bulk lookup request", Err: err}
	}

	resp, err := d.authorized(req)
	if err != nil {
		return "", err
	}

	if !resp.Success() {
		return "", newError(ErrAPI, "bulk lookup API response not as expected", resp, resp.Expect(http.StatusOK))
	}

	return resp.Text(), nil
}
