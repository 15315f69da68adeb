// Package gemini is the HTTP client for the image generation service.
// The service wraps the actual model behind a small JSON API so the
// engine never holds model credentials.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fabulaverse/fabula/internal/logging"
	"github.com/fabulaverse/fabula/pkg/domain"
	"github.com/fabulaverse/fabula/pkg/ports"
)

// Client implements ports.ImageGenerator against the generation
// service's JSON API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, for timeouts or
// test doubles.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type imageRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio"`
}

type imageResponse struct {
	Image string `json:"image"`
}

type locateRequest struct {
	Image string   `json:"image"`
	Items []string `json:"items"`
}

type locateResponse struct {
	Items []ports.ItemBox `json:"items"`
}

type avatarRequest struct {
	Photo string `json:"photo"`
	Style string `json:"style"`
}

// GenerateImage asks the service to paint prompt at the given aspect
// ratio and returns the image as a data URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string, aspect ports.AspectRatio) (string, error) {
	var resp imageResponse
	if err := c.post(ctx, "/v1/images", imageRequest{Prompt: prompt, AspectRatio: string(aspect)}, &resp); err != nil {
		return "", err
	}
	if resp.Image == "" {
		return "", fmt.Errorf("generate image: %w: empty response", domain.ErrContentUnavailable)
	}
	return resp.Image, nil
}

// LocateItems asks the service to find the named objects in image.
func (c *Client) LocateItems(ctx context.Context, image string, names []string) ([]ports.ItemBox, error) {
	var resp locateResponse
	if err := c.post(ctx, "/v1/locate", locateRequest{Image: image, Items: names}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// StyleAvatar turns the player's photo into a styled storybook avatar.
func (c *Client) StyleAvatar(ctx context.Context, photo, stylePrompt string) (string, error) {
	var resp imageResponse
	if err := c.post(ctx, "/v1/avatar", avatarRequest{Photo: photo, Style: stylePrompt}, &resp); err != nil {
		return "", err
	}
	if resp.Image == "" {
		return "", fmt.Errorf("style avatar: %w: empty response", domain.ErrContentUnavailable)
	}
	return resp.Image, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrContentUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("generation service call",
		"path", path, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s", domain.ErrContentUnavailable,
			path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", domain.ErrContentUnavailable, path, err)
	}
	return nil
}
