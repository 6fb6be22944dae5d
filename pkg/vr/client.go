// Package vr is a client for the Velociraptor 2 HTTP API.
package vr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// DefaultBaseEnv overrides base-URL discovery.
const DefaultBaseEnv = "VELOCIRAPTOR_URL"

// Client talks to one Velociraptor deployment.  The zero value is usable:
// defaults are filled in on first use.
type Client struct {
	// Base is the root URL of the deployment.  Empty means DefaultBase().
	Base string
	// Username to resolve credentials for.  Empty means the current OS
	// user.
	Username string
	// Credential, if set, skips credential resolution.
	Credential *Credential

	HTTPClient *http.Client
	UserAgent  string
}

// DefaultBase returns the deployment URL to use when none is configured:
// $VELOCIRAPTOR_URL if set, otherwise https://<name>/ where <name> is
// whatever the hostname "deploy" canonically resolves to in this
// environment.
func DefaultBase(ctx context.Context) string {
	if base := os.Getenv(DefaultBaseEnv); base != "" {
		return base
	}
	name, err := net.DefaultResolver.LookupCNAME(ctx, "deploy")
	if err != nil || name == "" {
		name = "deploy"
	}
	return "https://" + strings.TrimSuffix(name, ".") + "/"
}

func (c *Client) fillDefaults(ctx context.Context) error {
	if c.Base == "" {
		c.Base = DefaultBase(ctx)
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.UserAgent == "" {
		c.UserAgent = "github.com/yougov/vr-common/pkg/vr"
	}
	if c.Credential == nil {
		cred, err := ResolveCredential(c.Username, c.Hostname())
		if err != nil {
			return err
		}
		c.Credential = &cred
	}
	return nil
}

// Hostname returns the host part of the client's base URL.
func (c *Client) Hostname() string {
	u, err := url.Parse(c.Base)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// BuildURL joins path elements onto the client's base URL.  Absolute
// elements (starting with "/") restart from the base, matching how the
// API hands back resource URIs.
func (c *Client) BuildURL(parts ...string) string {
	result := c.Base
	for _, part := range parts {
		if part == "" {
			continue
		}
		base, err := url.Parse(result)
		if err != nil {
			return result
		}
		ref, err := url.Parse(part)
		if err != nil {
			return result
		}
		result = base.ResolveReference(ref).String()
	}
	return result
}

// HTTPError is a non-2xx API response.
type HTTPError struct {
	Status     string
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("HTTP %s (%s)", e.Status, e.URL)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// AuthError means the API rejected our credentials.
type AuthError struct {
	Username   string
	Host       string
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("invalid credentials for %s@%s (HTTP %d)",
		e.Username, e.Host, e.StatusCode)
}

// do runs one API request.  pathOrURL may be a path relative to the base
// or a full URL; body (if non-nil) is sent as JSON; out (if non-nil)
// receives the decoded JSON response.
func (c *Client) do(
	ctx context.Context,
	method, pathOrURL string,
	params url.Values,
	body, out interface{},
) (*http.Response, error) {
	if err := c.fillDefaults(ctx); err != nil {
		return nil, err
	}

	requestURL := c.BuildURL(pathOrURL)
	if len(params) > 0 {
		u, err := url.Parse(requestURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		for key, vals := range params {
			for _, val := range vals {
				q.Add(key, val)
			}
		}
		u.RawQuery = q.Encode()
		requestURL = u.String()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)
	req.SetBasicAuth(c.Credential.Username, c.Credential.Password)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	if err := resp.Body.Close(); err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{
			Username:   c.Credential.Username,
			Host:       c.Hostname(),
			StatusCode: resp.StatusCode,
		}
	case resp.StatusCode >= 400:
		return nil, &HTTPError{
			Status:     resp.Status,
			StatusCode: resp.StatusCode,
			URL:        requestURL,
			Body:       errorBody(content),
		}
	}

	if out != nil && len(content) > 0 {
		if err := json.Unmarshal(content, out); err != nil {
			return nil, fmt.Errorf("decoding %s %s response: %w", method, requestURL, err)
		}
	}
	return resp, nil
}

// errorBody condenses an API error response for inclusion in an error
// message, preferring the traceback the API includes on 500s.
func errorBody(content []byte) string {
	var doc map[string]interface{}
	if err := json.Unmarshal(content, &doc); err == nil {
		if tb, ok := doc["traceback"].(string); ok {
			return tb
		}
	}
	const limit = 500
	s := string(content)
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

// Load fetches a whole collection (or single document) in one request.
func (c *Client) Load(ctx context.Context, path string) (map[string]interface{}, error) {
	var doc map[string]interface{}
	params := url.Values{"format": {"json"}, "limit": {"9999"}}
	if _, err := c.do(ctx, http.MethodGet, path, params, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Query starts a paginated query against a collection.
func (c *Client) Query(ctx context.Context, path string, params url.Values) *QueryResult {
	return &QueryResult{client: c, url: path, params: params}
}
