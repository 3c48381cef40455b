package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
)

// Client provides typed access to the Site Right store API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client used for request/response calls.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithStreamClient overrides the HTTP client used for long-lived subscriptions.
// It must not carry an overall timeout.
func WithStreamClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.streamClient = h
		}
	}
}

// WithTimeout sets the timeout of request/response calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:      strings.TrimRight(trimmed, "/"),
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		streamClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, headers map[string]string, v any) (int, error) {
	if c == nil {
		return 0, fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return resp.StatusCode, APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil {
		return resp.StatusCode, nil
	}
	if raw, ok := v.(*string); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("read response: %w", err)
		}
		*raw = string(data)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// SessionResponse is the identity returned by POST /session.
type SessionResponse struct {
	User      domain.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresIn int64       `json:"expiresIn"`
}

// StartSession resumes the identity behind token or creates an anonymous one.
func (c *Client) StartSession(ctx context.Context, token string) (SessionResponse, error) {
	var resp SessionResponse
	body := map[string]string{"token": strings.TrimSpace(token)}
	if _, err := c.do(ctx, http.MethodPost, "/session", body, "", nil, &resp); err != nil {
		return SessionResponse{}, err
	}
	return resp, nil
}

// ListProjects returns the caller's projects, newest first.
func (c *Client) ListProjects(ctx context.Context, token string) ([]domain.Project, error) {
	var projects []domain.Project
	if _, err := c.do(ctx, http.MethodGet, "/projects", nil, token, nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, token, projectID string) (domain.Project, error) {
	path := fmt.Sprintf("/projects/%s", url.PathEscape(projectID))
	var project domain.Project
	if _, err := c.do(ctx, http.MethodGet, path, nil, token, nil, &project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// CreateProject registers a project.
func (c *Client) CreateProject(ctx context.Context, token, name string) (domain.Project, error) {
	var project domain.Project
	if _, err := c.do(ctx, http.MethodPost, "/projects", map[string]string{"name": name}, token, nil, &project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// ListLogs returns a project's entries in creation order.
func (c *Client) ListLogs(ctx context.Context, token, projectID string) ([]domain.LogEntry, error) {
	path := fmt.Sprintf("/projects/%s/logs", url.PathEscape(projectID))
	var entries []domain.LogEntry
	if _, err := c.do(ctx, http.MethodGet, path, nil, token, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetLog fetches one entry.
func (c *Client) GetLog(ctx context.Context, token, projectID, logID string) (domain.LogEntry, error) {
	path := fmt.Sprintf("/projects/%s/logs/%s", url.PathEscape(projectID), url.PathEscape(logID))
	var entry domain.LogEntry
	if _, err := c.do(ctx, http.MethodGet, path, nil, token, nil, &entry); err != nil {
		return domain.LogEntry{}, err
	}
	return entry, nil
}

// CreateLog writes a new entry. created is false when idempotencyKey matched
// an entry that already exists.
func (c *Client) CreateLog(ctx context.Context, token, projectID string, draft domain.LogDraft, idempotencyKey string) (domain.LogEntry, bool, error) {
	path := fmt.Sprintf("/projects/%s/logs", url.PathEscape(projectID))
	var headers map[string]string
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		headers = map[string]string{"Idempotency-Key": key}
	}
	var entry domain.LogEntry
	status, err := c.do(ctx, http.MethodPost, path, draft, token, headers, &entry)
	if err != nil {
		return domain.LogEntry{}, false, err
	}
	return entry, status == http.StatusCreated, nil
}

// CompleteInput carries optional completion notes and version guard.
type CompleteInput struct {
	Notes           string `json:"notes,omitempty"`
	ExpectedVersion *int64 `json:"expectedVersion,omitempty"`
}

// CompleteLog marks an entry completed.
func (c *Client) CompleteLog(ctx context.Context, token, projectID, logID string, input CompleteInput) (domain.LogEntry, error) {
	path := fmt.Sprintf("/projects/%s/logs/%s/complete", url.PathEscape(projectID), url.PathEscape(logID))
	var entry domain.LogEntry
	if _, err := c.do(ctx, http.MethodPost, path, input, token, nil, &entry); err != nil {
		return domain.LogEntry{}, err
	}
	return entry, nil
}

// AppendNotes appends text to an entry's notes server side.
func (c *Client) AppendNotes(ctx context.Context, token, projectID, logID, text string) (domain.LogEntry, error) {
	path := fmt.Sprintf("/projects/%s/logs/%s/notes", url.PathEscape(projectID), url.PathEscape(logID))
	var entry domain.LogEntry
	if _, err := c.do(ctx, http.MethodPost, path, map[string]string{"text": text}, token, nil, &entry); err != nil {
		return domain.LogEntry{}, err
	}
	return entry, nil
}

// ReportHTML fetches the rendered report markup for a project.
func (c *Client) ReportHTML(ctx context.Context, token, projectID string) (string, error) {
	path := fmt.Sprintf("/projects/%s/report", url.PathEscape(projectID))
	var markup string
	if _, err := c.do(ctx, http.MethodGet, path, nil, token, nil, &markup); err != nil {
		return "", err
	}
	return markup, nil
}
