// Package nutrition wraps the remote nutrition database's JSON API.
package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"example.com/mealplan/internal/domain"
)

// Client queries the nutrition database for per-serving macros.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client with sane defaults.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FoodResult is one match returned by Search.
type FoodResult struct {
	Name   string        `json:"name"`
	Macros domain.Macros `json:"macros"`
}

// Search looks up foods by name and returns the best matches.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]FoodResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/foods/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("nutrition database error (%d): %s", resp.StatusCode, body)
	}

	var payload struct {
		Results []FoodResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

// LookupMacros returns the macros of the closest match for a food name, or
// nil when the database has no match.
func (c *Client) LookupMacros(ctx context.Context, name string) (*domain.Macros, error) {
	results, err := c.Search(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	macros := results[0].Macros
	return &macros, nil
}
