// Package upstream builds and executes single calls against the MagicStudio
// ai-art-generator endpoint. Each call carries its own multipart form and a
// fresh anonymous identity; the fan-out layer owns the concurrency.
package upstream

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hung319/magicstudio2api/internal/config"
)

const outputFormat = "bytes"

// Client performs upstream image-generation calls.
type Client struct {
	endpoint   string
	clientID   string
	origin     string
	referer    string
	userAgent  string
	httpClient *http.Client
}

// New creates an upstream client from the configured endpoint and identity.
func New(cfg config.UpstreamConfig) *Client {
	return &Client{
		endpoint:   strings.TrimSpace(cfg.Endpoint),
		clientID:   cfg.ClientID,
		origin:     cfg.Origin,
		referer:    cfg.Referer,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Generate issues one generation call and returns the image body base64-encoded.
// Transport failures, non-2xx statuses and non-image bodies are all returned
// as errors; the caller records them as a per-call rejection, never a batch
// failure.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, contentType, err := c.buildForm(prompt)
	if err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Origin", c.origin)
	req.Header.Set("Referer", c.referer)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// Drain the body even on rejection so the connection can be reused.
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upstream body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("upstream status %d: %s", resp.StatusCode, snippet(payload))
	}

	respType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(respType), "image/") {
		return "", fmt.Errorf("upstream returned non-image content type %q", respType)
	}

	return base64.StdEncoding.EncodeToString(payload), nil
}

// buildForm assembles the multipart payload for one attempt. The anonymous
// user id is a fresh UUID per call so sibling calls in a batch are not
// correlated upstream.
func (c *Client) buildForm(prompt string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	fields := map[string]string{
		"prompt":             prompt,
		"output_format":      outputFormat,
		"user_profile_id":    "null",
		"anonymous_user_id":  uuid.NewString(),
		"request_timestamp":  strconv.FormatInt(time.Now().UnixMilli(), 10),
		"user_is_subscribed": "false",
		"client_id":          c.clientID,
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	if err := form.Close(); err != nil {
		return nil, "", err
	}

	return &buf, form.FormDataContentType(), nil
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		s = s[:max]
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
