// Package biclient is a thin client for the BI query store's HTTP API
// (Redash-shaped: GET /api/queries/{id} with an API-key header), grounded
// on the teacher's outbound-HTTP style in internal/auth/oauth.go's token
// exchange: a bounded client timeout, an explicit status-code check, and a
// capped error-body read.
package biclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxErrorBodyBytes = 4096

// Query is one BI query record.
type Query struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Query       string   `json:"query"`
	Tags        []string `json:"tags"`
}

// Client talks to the BI query store.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a Client with a bounded request timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchQuery retrieves one query by id.
func (c *Client) FetchQuery(ctx context.Context, id int) (*Query, error) {
	url := fmt.Sprintf("%s/api/queries/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("biclient: build request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("biclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("biclient: query %d: status %d: %s", id, resp.StatusCode, string(body))
	}

	var query Query
	if err := json.NewDecoder(resp.Body).Decode(&query); err != nil {
		return nil, fmt.Errorf("biclient: decode query %d: %w", id, err)
	}
	return &query, nil
}

// FetchResult pairs a query id with its fetch outcome, so a batch fetch can
// return per-ID success or structured error without aborting the batch.
type FetchResult struct {
	ID    int
	Query *Query
	Err   error
}

// FetchQueries fetches each id sequentially, continuing past individual
// failures.
func (c *Client) FetchQueries(ctx context.Context, ids []int) []FetchResult {
	results := make([]FetchResult, 0, len(ids))
	for _, id := range ids {
		query, err := c.FetchQuery(ctx, id)
		results = append(results, FetchResult{ID: id, Query: query, Err: err})
	}
	return results
}

// ParseQueryIDs parses a string of query IDs supporting commas, whitespace,
// or a mix of both as separators. It is idempotent: re-parsing the
// comma-joined output of a prior parse yields the same IDs.
func ParseQueryIDs(input string) ([]int, error) {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	ids := make([]int, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		var id int
		if _, err := fmt.Sscanf(field, "%d", &id); err != nil {
			return nil, fmt.Errorf("biclient: invalid query id %q", field)
		}
		if fmt.Sprintf("%d", id) != field {
			return nil, fmt.Errorf("biclient: invalid query id %q", field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
