package datalake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/datalake/client"
	"github.com/adamwoolhether/datalake/client/download"
)

// AtomValueQueryField is the query field selecting the atom value column.
const AtomValueQueryField = "atom_value"

// State is the lifecycle state of a bulk search task.
type State string

const (
	StateNew           State = "NEW"
	StateQueued        State = "QUEUED"
	StateInProgress    State = "IN_PROGRESS"
	StateDone          State = "DONE"
	StateCancelled     State = "CANCELLED"
	StateFailedError   State = "FAILED_ERROR"
	StateFailedTimeout State = "FAILED_TIMEOUT"
)

// ParseState maps an API state string to a State, returning
// ErrUnknownState for anything else.
func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case StateNew, StateQueued, StateInProgress, StateDone, StateCancelled, StateFailedError, StateFailedTimeout:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownState, s)
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s.Failed()
}

// Failed reports whether the task ended without an export.
func (s State) Failed() bool {
	switch s {
	case StateCancelled, StateFailedError, StateFailedTimeout:
		return true
	}
	return false
}

func (s State) String() string {
	return string(s)
}

// Task is a snapshot of a bulk search task.
type Task struct {
	UUID          string
	State         State
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	QueuePosition *int
	Results       *int
}

type taskJSON struct {
	UUID          string     `json:"uuid"`
	State         string     `json:"state"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	QueuePosition *int       `json:"queue_position"`
	Results       *int       `json:"results"`
}

// BulkSearch submits a bulk search, polls it every
// Settings.BulkSearchRetryInterval until it is done and returns the CSV
// export. It blocks for up to Settings.BulkSearchTimeout, measured from
// submission.
func (d *Datalake) BulkSearch(ctx context.Context, queryHash string, queryFields []string) (csv string, err error) {
	ctx, end := startSpan(ctx, d.tracer, "datalake.bulk_search", &err)
	defer end()

	taskUUID, err := d.CreateBulkSearchTask(ctx, queryHash, queryFields)
	if err != nil {
		return "", err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("datalake.task_uuid", taskUUID))

	if err := d.waitBulkSearch(ctx, taskUUID); err != nil {
		return "", err
	}

	return d.DownloadBulkSearch(ctx, taskUUID)
}

func (d *Datalake) waitBulkSearch(ctx context.Context, taskUUID string) error {
	timeout := d.settings.BulkSearchTimeout
	start := time.Now()

	for {
		if time.Since(start) > timeout {
			return &Error{
				Kind:    ErrTimeout,
				Summary: fmt.Sprintf("bulk search is not finished after %d seconds", int(timeout.Seconds())),
			}
		}

		if err := sleep(ctx, d.settings.BulkSearchRetryInterval); err != nil {
			return &Error{Kind: ErrTimeout, Summary: "bulk search wait cancelled", Err: err}
		}

		task, err := d.GetBulkSearchTask(ctx, taskUUID)
		if err != nil {
			return err
		}
		d.metrics.polls.Add(ctx, 1)
		d.logger.Debug("polled bulk search task", "task_uuid", taskUUID, "state", task.State, "queue_position", task.QueuePosition)

		switch {
		case task.State == StateDone:
			return nil
		case task.State.Failed():
			return &Error{
				Kind:    ErrAPI,
				Summary: fmt.Sprintf("bulk search ended with %s state", task.State),
				Err:     ErrTaskFailed,
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CreateBulkSearchTask submits a bulk search and returns its task uuid.
func (d *Datalake) CreateBulkSearchTask(ctx context.Context, queryHash string, queryFields []string) (string, error) {
	if queryFields == nil {
		queryFields = []string{}
	}

	body := map[string]any{
		"query_hash":   queryHash,
		"query_fields": queryFields,
	}

	req, err := client.Request(ctx, d.routes.BulkSearch, http.MethodPost, client.WithPayload(body))
	if err != nil {
		return "", &Error{Kind: ErrUnexpectedLib, Summary: "building bulk search request", Err: err}
	}

	resp, err := d.authorized(req)
	if err != nil {
		return "", err
	}

	fields, err := decodeObject(resp)
	if err != nil {
		return "", err
	}

	taskUUID, ok := fields["task_uuid"].(string)
	if !ok {
		return "", newError(ErrAPI, "bulk search API response not as expected", resp, nil)
	}

	d.logger.Info("bulk search submitted", "task_uuid", taskUUID, "query_hash", queryHash)

	return taskUUID, nil
}

// GetBulkSearchTask fetches the current snapshot of a bulk search task.
func (d *Datalake) GetBulkSearchTask(ctx context.Context, taskUUID string) (Task, error) {
	req, err := client.Request(ctx, d.routes.BulkSearchTask, http.MethodPost,
		client.WithPayload(map[string]string{"task_uuid": taskUUID}),
	)
	if err != nil {
		return Task{}, &Error{Kind: ErrUnexpectedLib, Summary: "building bulk search task request", Err: err}
	}

	resp, err := d.authorized(req)
	if err != nil {
		return Task{}, err
	}

	if !json.Valid(resp.Body) {
		return Task{}, newError(ErrParse, "response body is not valid JSON", resp, nil)
	}

	var envelope struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := resp.Decode(&envelope); err != nil || len(envelope.Results) == 0 {
		return Task{}, newError(ErrAPI, "bulk search task API response not as expected", resp, err)
	}

	var raw taskJSON
	if err := json.Unmarshal(envelope.Results[0], &raw); err != nil {
		return Task{}, newError(ErrAPI, "bulk search task API response not as expected", resp, err)
	}

	state, err := ParseState(raw.State)
	if err != nil {
		return Task{}, newError(ErrAPI, "bulk search is in unexpected state: "+raw.State, resp, err)
	}

	return Task{
		UUID:          raw.UUID,
		State:         state,
		CreatedAt:     raw.CreatedAt,
		StartedAt:     raw.StartedAt,
		FinishedAt:    raw.FinishedAt,
		QueuePosition: raw.QueuePosition,
		Results:       raw.Results,
	}, nil
}

// DownloadBulkSearch returns the CSV export of a finished task. A task that
// is not finished yet yields an error wrapping ErrNotReady.
func (d *Datalake) DownloadBulkSearch(ctx context.Context, taskUUID string) (string, error) {
	req, err := client.Request(ctx, d.routes.BulkSearchDownload(taskUUID), http.MethodGet,
		client.WithHeaders(map[string][]string{"Accept": {"text/csv"}}),
	)
	if err != nil {
		return "", &Error{Kind: ErrUnexpectedLib, Summary: "building bulk search download request", Err: err}
	}

	resp, err := d.authorized(req)
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusAccepted:
		summary := fmt.Sprintf("bulk search with task uuid: %s is not ready to be downloaded", taskUUID)
		return "", newError(ErrAPI, summary, resp, ErrNotReady)
	case !resp.Success():
		return "", newError(ErrAPI, "bulk search download failed", resp, resp.Expect(http.StatusOK))
	}

	return resp.Text(), nil
}

// BulkSearchToFile runs [Datalake.BulkSearch] and writes the export to
// destPath. The file only appears once it is complete and every check
// requested through opts has passed.
func (d *Datalake) BulkSearchToFile(ctx context.Context, queryHash string, queryFields []string, destPath string, opts ...download.Option) error {
	csv, err := d.BulkSearch(ctx, queryHash, queryFields)
	if err != nil {
		return err
	}

	// The export is buffered whole; only a checksum can reject it.
	if err := download.Save(ctx, strings.NewReader(csv), -1, destPath, d.logger, opts...); err != nil {
		kind := ErrUnexpectedLib
		switch {
		case errors.Is(err, download.ErrChecksumMismatch):
			kind = ErrAPI
		case errors.Is(err, download.ErrCancelled):
			kind = ErrTimeout
		}
		return &Error{Kind: kind, Summary: "saving bulk search export to " + destPath, Err: err}
	}

	return nil
}
