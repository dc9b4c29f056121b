// Package notify posts launch notifications as issues on a hosted repository.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lockview-project/lockview/pkg/logging"
)

// DefaultTimeout bounds each request attempt.
const DefaultTimeout = 15 * time.Second

// Issue is the notification payload.
type Issue struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Created is the subset of the API response the launcher reports.
type Created struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// Config controls retry behaviour.
type Config struct {
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// DefaultConfig returns the default notifier configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
		Timeout:    DefaultTimeout,
	}
}

// Client creates issues through the REST API at BaseURL.
type Client struct {
	BaseURL   string
	UserAgent string
	config    Config
	http      *http.Client
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: "lockview-launcher",
		config:    cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

// statusError is a non-2xx response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("api returned status %d", e.status)
	}
	return fmt.Sprintf("api returned status %d: %s", e.status, e.body)
}

// CreateIssue opens issue in ownerRepo ("owner/repo"). Dial failures and
// 5xx responses are retried. Any other failure is final: the POST may have
// reached the server, and a retry could open a duplicate issue.
func (c *Client) CreateIssue(ctx context.Context, ownerRepo, token string, issue Issue) (*Created, error) {
	if token == "" {
		return nil, errors.New("no access token")
	}
	owner, repo, ok := strings.Cut(strings.Trim(ownerRepo, "/"), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("invalid repository %q, want owner/repo", ownerRepo)
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues", c.BaseURL, url.PathEscape(owner), url.PathEscape(repo))

	payload, err := json.Marshal(issue)
	if err != nil {
		return nil, fmt.Errorf("marshal issue: %w", err)
	}

	log := logging.WithFields(map[string]any{"component": "notify", "repo": ownerRepo})

	var created *Created
	attempt := 0
	op := func() error {
		attempt++
		res, err := c.post(ctx, endpoint, token, payload)
		if err == nil {
			created = res
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		log.WarnErr("issue request failed", err, map[string]any{"attempt": attempt})
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.config.RetryDelay
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.config.MaxRetries)), ctx)

	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("create issue in %s: %w", ownerRepo, err)
	}
	log.Info("issue created", map[string]any{"number": created.Number, "attempts": attempt})
	return created, nil
}

// retryable reports whether err proves the request was not acted on.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func (c *Client) post(ctx context.Context, endpoint, token string, payload []byte) (*Created, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var created Created
	if len(body) > 0 {
		// The issue exists even if the response is odd; keep the zero value.
		_ = json.Unmarshal(body, &created)
	}
	return &created, nil
}

// LaunchIssue builds the notification posted when the launcher starts a
// window.
func LaunchIssue(host, runID string, at time.Time) Issue {
	if host == "" {
		host = "unknown host"
	}
	return Issue{
		Title: "Viewer launched",
		Body: fmt.Sprintf("The lockview launcher started a window on %s at %s.\n\nRun: %s",
			host, at.UTC().Format(time.RFC3339), runID),
	}
}
