package health

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ProviderClient is the contract the sync pass needs from the platform health
// store: a status/permission query, time-ranged reads, and idempotent writes
// keyed by client record id.
type ProviderClient interface {
	SDKStatus(ctx context.Context) (SDKStatus, error)
	GrantedPermissions(ctx context.Context) (map[string]struct{}, error)
	UpdateGrantedPermissions(ctx context.Context, granted []string) error

	ReadSleepSessions(ctx context.Context, r TimeRange) ([]SleepSession, error)
	ReadExerciseSessions(ctx context.Context, r TimeRange) ([]ExerciseSession, error)
	ReadActiveCalories(ctx context.Context, r TimeRange) ([]ActiveCaloriesRecord, error)

	InsertExerciseSession(ctx context.Context, rec ExerciseSession) error
	InsertActiveCalories(ctx context.Context, rec ActiveCaloriesRecord) error
	InsertNutritionRecord(ctx context.Context, rec NutritionRecord) error
	DeleteNutritionRecords(ctx context.Context, clientRecordIDs []string) error
}

// HTTPProviderClient talks to the health store's REST bridge.
type HTTPProviderClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPProviderClient constructs a client with sane defaults.
func NewHTTPProviderClient(baseURL string) *HTTPProviderClient {
	return &HTTPProviderClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SDKStatus queries service availability.
func (c *HTTPProviderClient) SDKStatus(ctx context.Context) (SDKStatus, error) {
	var payload struct {
		Status SDKStatus `json:"status"`
	}
	if err := c.getJSON(ctx, "/v1/status", nil, &payload); err != nil {
		return SDKStatusUnavailable, err
	}
	switch payload.Status {
	case SDKStatusAvailable, SDKStatusUnavailable, SDKStatusUpdateRequired:
		return payload.Status, nil
	}
	return SDKStatusUnavailable, fmt.Errorf("unknown sdk status %q", payload.Status)
}

// GrantedPermissions returns the set of currently granted permission tokens.
func (c *HTTPProviderClient) GrantedPermissions(ctx context.Context) (map[string]struct{}, error) {
	var payload struct {
		Granted []string `json:"granted"`
	}
	if err := c.getJSON(ctx, "/v1/permissions", nil, &payload); err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(payload.Granted))
	for _, token := range payload.Granted {
		out[token] = struct{}{}
	}
	return out, nil
}

// UpdateGrantedPermissions replaces the granted permission set.
func (c *HTTPProviderClient) UpdateGrantedPermissions(ctx context.Context, granted []string) error {
	return c.send(ctx, http.MethodPut, "/v1/permissions", map[string]any{"granted": granted})
}

// ReadSleepSessions fetches sleep sessions overlapping the range.
func (c *HTTPProviderClient) ReadSleepSessions(ctx context.Context, r TimeRange) ([]SleepSession, error) {
	var payload struct {
		Records []SleepSession `json:"records"`
	}
	if err := c.getJSON(ctx, "/v1/records/sleep", rangeQuery(r), &payload); err != nil {
		return nil, err
	}
	return payload.Records, nil
}

// ReadExerciseSessions fetches exercise sessions overlapping the range.
func (c *HTTPProviderClient) ReadExerciseSessions(ctx context.Context, r TimeRange) ([]ExerciseSession, error) {
	var payload struct {
		Records []ExerciseSession `json:"records"`
	}
	if err := c.getJSON(ctx, "/v1/records/exercise", rangeQuery(r), &payload); err != nil {
		return nil, err
	}
	return payload.Records, nil
}

// ReadActiveCalories fetches active-calorie records overlapping the range.
func (c *HTTPProviderClient) ReadActiveCalories(ctx context.Context, r TimeRange) ([]ActiveCaloriesRecord, error) {
	var payload struct {
		Records []ActiveCaloriesRecord `json:"records"`
	}
	if err := c.getJSON(ctx, "/v1/records/active_calories", rangeQuery(r), &payload); err != nil {
		return nil, err
	}
	return payload.Records, nil
}

// InsertExerciseSession writes an exercise session, idempotent on client record id.
func (c *HTTPProviderClient) InsertExerciseSession(ctx context.Context, rec ExerciseSession) error {
	return c.send(ctx, http.MethodPut, "/v1/records/exercise", rec)
}

// InsertActiveCalories writes an active-calorie record, idempotent on client record id.
func (c *HTTPProviderClient) InsertActiveCalories(ctx context.Context, rec ActiveCaloriesRecord) error {
	return c.send(ctx, http.MethodPut, "/v1/records/active_calories", rec)
}

// InsertNutritionRecord writes a nutrition record, idempotent on client record id.
func (c *HTTPProviderClient) InsertNutritionRecord(ctx context.Context, rec NutritionRecord) error {
	return c.send(ctx, http.MethodPut, "/v1/records/nutrition", rec)
}

// DeleteNutritionRecords removes nutrition records by client record id.
func (c *HTTPProviderClient) DeleteNutritionRecords(ctx context.Context, clientRecordIDs []string) error {
	return c.send(ctx, http.MethodDelete, "/v1/records/nutrition", map[string]any{
		"client_record_ids": clientRecordIDs,
	})
}

func rangeQuery(r TimeRange) url.Values {
	q := url.Values{}
	q.Set("start", r.Start.UTC().Format(time.RFC3339))
	q.Set("end", r.End.UTC().Format(time.RFC3339))
	return q
}

func (c *HTTPProviderClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health provider error (%d): %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPProviderClient) send(ctx context.Context, method, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health provider error (%d): %s", resp.StatusCode, data)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
