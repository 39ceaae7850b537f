// Package line is a minimal client for the chat platform's Messaging API:
// pushing a text message to a user and verifying webhook signatures.
package line

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.line.me"
	pushPath       = "/v2/bot/message/push"

	// SignatureHeader carries the base64 HMAC-SHA256 digest of the raw
	// webhook body, keyed with the channel secret.
	SignatureHeader = "X-Line-Signature"
)

type Config struct {
	BaseURL      string
	ChannelToken string
	HTTPClient   *http.Client
	Timeout      time.Duration
}

type Client struct {
	baseURL      string
	channelToken string
	httpClient   *http.Client
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
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
		baseURL:      baseURL,
		channelToken: cfg.ChannelToken,
		httpClient:   httpClient,
	}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

// PushText sends a single text message to one recipient. One attempt, no
// retry; the caller decides what a failure means.
func (c *Client) PushText(ctx context.Context, to, text string) error {
	body, err := json.Marshal(pushRequest{
		To:       to,
		Messages: []textMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pushPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.channelToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)

	message := strings.TrimSpace(string(respBody))

	var parsed struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(respBody, &parsed) == nil && parsed.Message != "" {
		message = parsed.Message
	}

	return fmt.Errorf("push failed: status=%d message=%s", resp.StatusCode, message)
}

// Signature computes the webhook signature for a raw request body.
func Signature(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateSignature reports whether the signature header matches the body.
func ValidateSignature(channelSecret string, body []byte, signature string) bool {
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)

	return hmac.Equal(decoded, mac.Sum(nil))
}
