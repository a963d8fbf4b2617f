// Package notify posts formatted messages to a webhook endpoint. The
// payload shape follows the Discord webhook API but any endpoint accepting
// the same JSON works.
package notify

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

// Message is the top level webhook payload
type Message struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []Embed `json:"embeds"`
}

// Embed is a single rich embed. At most one of Image or Thumbnail is set.
type Embed struct {
	Type        string      `json:"type"`
	URL         string      `json:"url"`
	Author      EmbedAuthor `json:"author"`
	Description string      `json:"description"`
	Image       *EmbedMedia `json:"image,omitempty"`
	Thumbnail   *EmbedMedia `json:"thumbnail,omitempty"`
}

// EmbedAuthor names the feed the entry came from
type EmbedAuthor struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// EmbedMedia is an attached picture with optional dimensions
type EmbedMedia struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

// StatusError is returned when the webhook answers with a non-2xx status.
// This is an expected delivery failure, the caller records it and retries
// the entry on the next run.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// maxErrBody limits how much of an error response is kept for the ledger
const maxErrBody = 4096

// Client sends messages to webhook URLs
type Client struct {
	client    *http.Client
	userAgent string
}

// NewClient makes a webhook client with the given request timeout
func NewClient(timeout time.Duration, userAgent string) *Client {
	return &Client{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Send posts the message to the webhook URL as JSON. Returns nil on any
// 2xx status, *StatusError on any other status and a plain error when the
// request could not be made at all.
func (c *Client) Send(ctx context.Context, webhook string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
}
