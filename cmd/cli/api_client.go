// Package cli provides command-line interface commands for portsweep.
// This file implements the HTTP client used by the remote commands to drive
// a running portsweep API server.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	apihandlers "github.com/anstrom/portsweep/internal/api/handlers"
	"github.com/anstrom/portsweep/internal/api/middleware"
	"github.com/anstrom/portsweep/internal/config"
	"github.com/anstrom/portsweep/internal/scanner"
)

const (
	apiClientTimeout = 30 * time.Second
	apiBasePath      = "/api/v1"
)

// APIClient provides authenticated HTTP access to a portsweep server.
type APIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	userAgent  string
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("API error (status %d, request %s): %s", e.StatusCode, e.RequestID, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// NewAPIClient creates a client for the server at serverURL, e.g.
// "http://127.0.0.1:3000". An empty apiKey sends no credentials.
func NewAPIClient(serverURL, apiKey string) (*APIClient, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", serverURL)
	}

	return &APIClient{
		baseURL: u.String() + apiBasePath,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: apiClientTimeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		userAgent: "portsweep-cli/" + version,
	}, nil
}

// newAPIClientFromConfig targets serverURL, or the configured listen
// address when serverURL is empty.
func newAPIClientFromConfig(cfg *config.Config, serverURL string) (*APIClient, error) {
	if serverURL == "" {
		serverURL = "http://" + cfg.GetAPIAddress()
	}
	return NewAPIClient(serverURL, getAPIKeyFromSources())
}

// getAPIKeyFromSources reads the client key from PORTSWEEP_API_KEY, then
// from the file named by PORTSWEEP_API_KEY_FILE.
func getAPIKeyFromSources() string {
	if key := os.Getenv(envPrefix + "_API_KEY"); key != "" {
		return key
	}
	if keyFile := os.Getenv(envPrefix + "_API_KEY_FILE"); keyFile != "" && !strings.Contains(keyFile, "..") {
		if data, err := os.ReadFile(keyFile); err == nil { //nolint:gosec // operator supplied path
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

// Health fetches the server health report.
func (c *APIClient) Health(ctx context.Context) (*apihandlers.HealthResponse, error) {
	var resp apihandlers.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateScan starts a scan on the server.
func (c *APIClient) CreateScan(ctx context.Context, req apihandlers.ScanRequest) (*apihandlers.ScanCreatedResponse, error) {
	var resp apihandlers.ScanCreatedResponse
	if err := c.do(ctx, http.MethodPost, "/scans", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetScan fetches one scan with its results.
func (c *APIClient) GetScan(ctx context.Context, id string, openOnly bool) (*apihandlers.ScanResponse, error) {
	endpoint := "/scans/" + url.PathEscape(id)
	if openOnly {
		endpoint += "?open_only=true"
	}
	var resp apihandlers.ScanResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListScans lists the scans the server knows about.
func (c *APIClient) ListScans(ctx context.Context) (*apihandlers.ScanListResponse, error) {
	var resp apihandlers.ScanListResponse
	if err := c.do(ctx, http.MethodGet, "/scans", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopScan stops a scan and returns its final summary.
func (c *APIClient) StopScan(ctx context.Context, id string) (*scanner.Summary, error) {
	var resp scanner.Summary
	if err := c.do(ctx, http.MethodDelete, "/scans/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do performs one authenticated request and decodes a 2xx body into out.
func (c *APIClient) do(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set(middleware.APIKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: resp.Header.Get(middleware.RequestIDHeader)}
		var errResp apihandlers.ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && (errResp.Message != "" || errResp.Error != "") {
			apiErr.Code = errResp.Code
			apiErr.Message = errResp.Message
			if apiErr.Message == "" {
				// Middleware rejections carry only the error field.
				apiErr.Message = errResp.Error
			}
			if errResp.RequestID != "" {
				apiErr.RequestID = errResp.RequestID
			}
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// describeAPIError turns an API error into operator guidance.
func describeAPIError(err error, operation string) error {
	apiErr, ok := err.(*APIError)
	if !ok {
		return fmt.Errorf("%s failed: %w", operation, err)
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: authentication failed; set %s_API_KEY: %w", operation, envPrefix, err)
	case http.StatusNotFound:
		return fmt.Errorf("%s: scan not found: %w", operation, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: server is at its concurrent scan limit, try again later: %w", operation, err)
	default:
		return fmt.Errorf("%s failed: %w", operation, err)
	}
}
