package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"

	"github.com/zjrosen/linearmcp/internal/log"
)

const (
	// DefaultAPIURL is the public Linear GraphQL endpoint.
	DefaultAPIURL = "https://api.linear.app/graphql"
	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody caps, in cells, how much of a failed response body ends up in errors.
	maxErrorBody = 512
)

const teamByKeyQuery = `query TeamByKey($key: String!) {
  teams(filter: { key: { eq: $key } }) {
    nodes { id name key }
  }
}`

const listTeamsQuery = `query Teams {
  teams {
    nodes { id name key }
  }
}`

const issueQuery = `query Issue($id: String!) {
  issue(id: $id) {
    id identifier title description url priority
    state { name type }
    team { id name key }
  }
}`

// Client talks to one Linear workspace. The HTTP transport is created on the
// first call and released by Close; a closed Client recreates it on next use.
type Client struct {
	apiKey  string
	apiURL  string
	timeout time.Duration

	mu         sync.Mutex
	httpClient *http.Client
	transport  http.RoundTripper
}

// Option configures a Client.
type Option func(*Client)

// WithAPIURL overrides the GraphQL endpoint.
func WithAPIURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.apiURL = url
		}
	}
}

// WithTimeout sets the per-call timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTransport sets the RoundTripper used when the HTTP client is created.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// NewClient creates a client for the workspace owning apiKey. No connection is
// made until the first call.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		apiURL:  DefaultAPIURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIURL returns the configured endpoint.
func (c *Client) APIURL() string { return c.apiURL }

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Connected reports whether a transport is currently held.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.httpClient != nil
}

// GetTeamByKey returns the team with the given key, or nil if this workspace
// has no such team.
func (c *Client) GetTeamByKey(ctx context.Context, key string) (*Team, error) {
	var data struct {
		Teams struct {
			Nodes []Team `json:"nodes"`
		} `json:"teams"`
	}
	if err := c.do(ctx, "get_team_by_key", teamByKeyQuery, map[string]any{"key": key}, &data); err != nil {
		return nil, err
	}
	for i := range data.Teams.Nodes {
		if strings.EqualFold(data.Teams.Nodes[i].Key, key) {
			return &data.Teams.Nodes[i], nil
		}
	}
	return nil, nil
}

// ListTeams returns every team visible to this workspace's credential.
func (c *Client) ListTeams(ctx context.Context) ([]Team, error) {
	var data struct {
		Teams struct {
			Nodes []Team `json:"nodes"`
		} `json:"teams"`
	}
	if err := c.do(ctx, "list_teams", listTeamsQuery, nil, &data); err != nil {
		return nil, err
	}
	return data.Teams.Nodes, nil
}

// GetIssue returns the issue with the given identifier (e.g. "TEAM-123"), or
// nil if it does not exist in this workspace.
func (c *Client) GetIssue(ctx context.Context, identifier string) (*Issue, error) {
	var data struct {
		Issue *Issue `json:"issue"`
	}
	err := c.do(ctx, "get_issue", issueQuery, map[string]any{"id": identifier}, &data)
	if err != nil {
		if isEntityNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return data.Issue, nil
}

// Close releases idle connections and drops the transport.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
		c.httpClient = nil
	}
	return nil
}

func (c *Client) client() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient == nil {
		transport := c.transport
		if transport == nil {
			transport = http.DefaultTransport.(*http.Transport).Clone()
		}
		c.httpClient = &http.Client{Timeout: c.timeout, Transport: transport}
	}
	return c.httpClient
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// do sends one GraphQL request and decodes data into out.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return &ClientError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return &ClientError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("X-Request-Id", requestID)

	start := time.Now()
	resp, err := c.client().Do(req)
	if err != nil {
		log.Debug(log.CatLinear, "request failed", "op", op, "request_id", requestID, "error", err)
		return &ClientError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ClientError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	log.Debug(log.CatLinear, "request done", "op", op, "request_id", requestID,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := ansi.Truncate(strings.TrimSpace(string(raw)), maxErrorBody, "…")
		return &ClientError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	var gr graphQLResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return &ClientError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(gr.Errors) > 0 {
		return &ClientError{Op: op, Message: joinGraphQLErrors(gr.Errors), Err: graphQLErrors(gr.Errors)}
	}
	if out == nil || len(gr.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return &ClientError{Op: op, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

// graphQLErrors carries the raw error list so callers can inspect codes.
type graphQLErrors []graphQLError

func (e graphQLErrors) Error() string { return joinGraphQLErrors(e) }

func joinGraphQLErrors(errs []graphQLError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// isEntityNotFound reports whether err is Linear's "entity not found" GraphQL error.
func isEntityNotFound(err error) bool {
	var gerrs graphQLErrors
	if !errors.As(err, &gerrs) {
		return false
	}
	for _, e := range gerrs {
		if e.Extensions.Code == "ENTITY_NOT_FOUND" || strings.Contains(strings.ToLower(e.Message), "entity not found") {
			return true
		}
	}
	return false
}
