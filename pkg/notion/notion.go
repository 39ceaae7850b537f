// Package notion is a typed client for the hosted record store's REST API,
// covering the three operations the bridge needs: create a page in a
// database, query a database with filter/sorts/page_size, and patch page
// properties.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL    = "https://api.notion.com"
	defaultAPIVersion = "2022-06-28"
)

type Config struct {
	BaseURL    string
	APIKey     string
	APIVersion string
	HTTPClient *http.Client
	Timeout    time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	apiVersion string
	httpClient *http.Client
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		apiVersion: apiVersion,
		httpClient: httpClient,
	}
}

type TextContent struct {
	Content string `json:"content"`
}

type RichText struct {
	Type      string       `json:"type,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

// Property is the subset of page property payloads the bridge reads and
// writes: title text and a checkbox flag.
type Property struct {
	Type     string     `json:"type,omitempty"`
	Title    []RichText `json:"title,omitempty"`
	Checkbox *bool      `json:"checkbox,omitempty"`
}

type Page struct {
	ID          string              `json:"id"`
	CreatedTime time.Time           `json:"created_time"`
	Properties  map[string]Property `json:"properties"`
}

type Sort struct {
	Property  string `json:"property,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Direction string `json:"direction"`
}

type DatabaseQuery struct {
	Filter   any    `json:"filter,omitempty"`
	Sorts    []Sort `json:"sorts,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// Bool returns a pointer for checkbox property values.
func Bool(v bool) *bool {
	return &v
}

type createPageRequest struct {
	Parent     pageParent          `json:"parent"`
	Properties map[string]Property `json:"properties"`
}

type pageParent struct {
	DatabaseID string `json:"database_id"`
}

type queryResponse struct {
	Results []Page `json:"results"`
}

// CreatePage appends one page to a database. One attempt, no retry.
func (c *Client) CreatePage(ctx context.Context, databaseID string, properties map[string]Property) (*Page, error) {
	var page Page

	req := createPageRequest{
		Parent:     pageParent{DatabaseID: databaseID},
		Properties: properties,
	}

	if err := c.do(ctx, http.MethodPost, "/v1/pages", req, &page); err != nil {
		return nil, err
	}

	return &page, nil
}

// QueryDatabase runs a filtered, sorted, limited query and returns the
// matching pages.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, query DatabaseQuery) ([]Page, error) {
	var resp queryResponse

	path := fmt.Sprintf("/v1/databases/%s/query", databaseID)

	if err := c.do(ctx, http.MethodPost, path, query, &resp); err != nil {
		return nil, err
	}

	return resp.Results, nil
}

// UpdatePageProperties patches the given properties of one page. The store
// applies the patch atomically; patching an already-updated page to the same
// values is a no-op.
func (c *Client) UpdatePageProperties(ctx context.Context, pageID string, properties map[string]Property) error {
	body := struct {
		Properties map[string]Property `json:"properties"`
	}{Properties: properties}

	path := fmt.Sprintf("/v1/pages/%s", pageID)

	return c.do(ctx, http.MethodPatch, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", c.apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func apiError(status int, body []byte) error {
	message := strings.TrimSpace(string(body))

	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	if json.Unmarshal(body, &parsed) == nil {
		if strings.TrimSpace(parsed.Message) != "" {
			message = parsed.Message
		}
		if parsed.Code != "" {
			return fmt.Errorf("notion request failed: status=%d code=%s message=%s", status, parsed.Code, message)
		}
	}

	return fmt.Errorf("notion request failed: status=%d message=%s", status, message)
}
