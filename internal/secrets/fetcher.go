// Package secrets retrieves the remote secrets document from a content API.
package secrets

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lockview-project/lockview/pkg/errclass"
)

// DefaultTimeout bounds a single fetch.
const DefaultTimeout = 15 * time.Second

// maxEnvelopeBytes caps the response body read from the API.
const maxEnvelopeBytes = 1 << 20

// Document is the decoded secrets JSON object.
type Document map[string]any

// Strings converts document values to config-file values. Strings pass
// through, integral numbers lose their fraction, arrays of scalars are
// joined with ",". Nulls and objects are dropped.
func (d Document) Strings() map[string]string {
	out := make(map[string]string, len(d))
	for k, v := range d {
		if s, ok := scalarString(v); ok {
			out[k] = s
			continue
		}
		if arr, ok := v.([]any); ok {
			parts := make([]string, 0, len(arr))
			for _, item := range arr {
				if s, ok := scalarString(item); ok {
					parts = append(parts, s)
				}
			}
			out[k] = strings.Join(parts, ",")
		}
	}
	return out
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// envelope is the content API response.
type envelope struct {
	Content  *string `json:"content"`
	Encoding *string `json:"encoding"`
}

// Fetcher performs authenticated content retrieval.
type Fetcher struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

// NewFetcher returns a fetcher for baseURL with the default timeout.
func NewFetcher(baseURL string) *Fetcher {
	return &Fetcher{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		UserAgent:  "lockview-launcher",
	}
}

// Fetch retrieves path from ownerRepo at ref (empty for the default branch)
// and parses it as a JSON object.
func (f *Fetcher) Fetch(ctx context.Context, ownerRepo, path, ref, token string) (Document, error) {
	if token == "" {
		return nil, errclass.ErrMissingCredential.WithMessage("no access token for secrets repository")
	}
	owner, repo, err := ParseOwnerRepo(ownerRepo)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		strings.TrimRight(f.BaseURL, "/"), url.PathEscape(owner), url.PathEscape(repo), escapePath(path))
	if ref != "" {
		endpoint += "?ref=" + url.QueryEscape(ref)
	}

	client := f.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errclass.ErrRemoteUnavailable.WithMessagef("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errclass.ErrRemoteUnavailable.WithMessagef("request %s: %v", redactURL(endpoint), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
	if err != nil {
		return nil, errclass.ErrRemoteUnavailable.WithMessagef("read response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errclass.ErrRemoteUnavailable.WithMessagef("http %d fetching %s/%s", resp.StatusCode, ownerRepo, path)
	}

	return DecodeEnvelope(body)
}

// DecodeEnvelope extracts and parses the base64 content of a content API
// response body.
func DecodeEnvelope(body []byte) (Document, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errclass.ErrMalformedPayload.WithMessagef("response is not a content envelope: %v", err)
	}
	if env.Encoding == nil {
		return nil, errclass.ErrMalformedPayload.WithMessage("encoding field missing")
	}
	if *env.Encoding != "base64" {
		return nil, errclass.ErrMalformedPayload.WithMessagef("unexpected encoding %q", *env.Encoding)
	}
	if env.Content == nil {
		return nil, errclass.ErrMalformedPayload.WithMessage("content field missing")
	}

	// The API wraps base64 at 60 columns.
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, *env.Content)
	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, errclass.ErrMalformedPayload.WithMessagef("decode base64: %v", err)
	}

	return ParseDocument(raw)
}

// ParseDocument parses decoded content. The top level must be an object.
func ParseDocument(raw []byte) (Document, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errclass.ErrInvalidJSON.WithMessagef("parse secrets document: %v", err)
	}
	if doc == nil {
		return nil, errclass.ErrInvalidJSON.WithMessage("secrets document is not an object")
	}
	return doc, nil
}

func escapePath(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func redactURL(u string) string {
	if i := strings.Index(u, "?"); i >= 0 {
		return u[:i]
	}
	return u
}
