package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const loginPath = "/api/admin/login"

// Doer is the subset of *http.Client the backend client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient Doer
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

// Document is a downloaded binary payload.
type Document struct {
	ContentType string
	Body        []byte
}

type LoginResult struct {
	OK      bool   `json:"success"`
	Message string `json:"message"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Timeout:    timeout,
		HTTPClient: &http.Client{},
	}
}

// FetchCollection GETs a JSON array of records from path.
func (c *Client) FetchCollection(ctx context.Context, path string) ([]map[string]any, error) {
	resp, cancel, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var records []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to parse collection: %w", err)
	}
	if records == nil {
		records = []map[string]any{}
	}
	return records, nil
}

// Download GETs a binary document from path.
func (c *Client) Download(ctx context.Context, path string) (*Document, error) {
	resp, cancel, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return &Document{ContentType: contentType, Body: body}, nil
}

// Login posts the admin credentials. A rejected login is not an error: it
// returns OK == false with the backend's message, if any.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	jsonData, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request data: %w", err)
	}

	resp, cancel, err := c.do(ctx, http.MethodPost, loginPath, jsonData)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	result := &LoginResult{}
	if len(body) > 0 {
		// Body shape is advisory; a 2xx without JSON still means success.
		_ = json.Unmarshal(body, result)
	}
	result.OK = resp.StatusCode >= 200 && resp.StatusCode < 300
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if c.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, application/pdf")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("timeout of %s exceeded: %w", c.Timeout, err)
		}
		return nil, nil, fmt.Errorf("network error: %w", err)
	}
	return resp, cancel, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var payload struct {
		Message string `json:"message"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(body, &payload)
	return &StatusError{StatusCode: resp.StatusCode, Message: payload.Message}
}
