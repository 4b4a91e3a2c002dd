package clockify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.clockify.me/api/v1"

// ErrNoWorkspace is returned when no workspace id is known.
var ErrNoWorkspace = errors.New("workspace ID is empty; set workspace_id in config or CLOCKIFY_WORKSPACE_ID env var")

// APIError is a non-retryable error response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *ProjectCache
	logger     *slog.Logger
	maxRetries int
}

func NewClient(apiKey string, baseURL string, cacheTTL time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:      NewProjectCache(cacheTTL),
		logger:     logger,
		maxRetries: 3,
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	url := c.baseURL + path
	c.logger.Debug("clockify API request", "method", method, "path", path)

	var resp *http.Response
	requestStart := time.Now()
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err = c.httpClient.Do(req)
		if err != nil {
			if attempt == c.maxRetries || ctx.Err() != nil {
				c.logger.Error("API request transport error", "method", method, "path", path, "error", err, "elapsed", time.Since(requestStart))
				return nil, fmt.Errorf("sending request: %w", err)
			}
			c.logger.Debug("API request transport error, retrying", "method", method, "path", path, "attempt", attempt+1, "error", err)
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == c.maxRetries {
				c.logger.Error("API request failed after retries", "method", method, "path", path, "status", resp.StatusCode, "attempts", c.maxRetries+1, "elapsed", time.Since(requestStart))
				return nil, fmt.Errorf("API returned status %d after %d retries", resp.StatusCode, c.maxRetries)
			}
			c.logger.Debug("API request retryable error", "method", method, "path", path, "status", resp.StatusCode, "attempt", attempt+1)
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("clockify API response", "method", method, "path", path, "status", resp.StatusCode, "bytes", len(respBody), "elapsed", time.Since(requestStart))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("API request failed", "method", method, "path", path, "status", resp.StatusCode, "response", truncate(string(respBody), 200))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 500)}
	}

	return respBody, nil
}

var backoff = func(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) GetUser(ctx context.Context) (*User, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("parsing user response: %w", err)
	}

	return &user, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// GetProjects lists active projects, served from cache within the TTL.
func (c *Client) GetProjects(ctx context.Context, workspaceID string) ([]Project, error) {
	if workspaceID == "" {
		return nil, ErrNoWorkspace
	}
	if cached := c.cache.Get(workspaceID); cached != nil {
		return cached, nil
	}

	var allProjects []Project
	page := 1
	pageSize := 500

	for {
		path := fmt.Sprintf("/workspaces/%s/projects?page-size=%d&page=%d&archived=false", workspaceID, pageSize, page)
		data, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, fmt.Errorf("getting projects: %w", err)
		}

		var projects []Project
		if err := json.Unmarshal(data, &projects); err != nil {
			return nil, fmt.Errorf("parsing projects response: %w", err)
		}

		allProjects = append(allProjects, projects...)

		if len(projects) < pageSize {
			break
		}
		page++
	}

	c.cache.Set(workspaceID, allProjects)
	return allProjects, nil
}

func (c *Client) CreateTimeEntry(ctx context.Context, workspaceID string, entry TimeEntryRequest) (*TimeEntry, error) {
	if workspaceID == "" {
		return nil, ErrNoWorkspace
	}
	path := fmt.Sprintf("/workspaces/%s/time-entries", workspaceID)
	data, err := c.doRequest(ctx, http.MethodPost, path, entry)
	if err != nil {
		return nil, fmt.Errorf("creating time entry: %w", err)
	}

	var created TimeEntry
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("parsing time entry response: %w", err)
	}

	return &created, nil
}
