package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/version"
)

const defaultHTTPTimeout = 120 * time.Second

// maxErrorBody caps how much of an error response ends up in messages
const maxErrorBody = 512

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// postJSON sends body as JSON and decodes a 200 response into out. Non-200
// responses are classified into provider error codes.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(errors.ErrCodeProviderAPI, fmt.Sprintf("%s request failed", provider), err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return errors.Wrap(errors.ErrCodeProviderAPI, "read response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return classifyStatus(provider, httpResp, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(errors.ErrCodeProviderAPI, "unmarshal response", err)
	}
	return nil
}

// apiError matches the error envelope of both supported APIs
type apiError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func classifyStatus(provider string, resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	}
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.NewProviderAuthError(provider)
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.NewProviderRateLimitError(provider, resp.Header.Get("Retry-After"))
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return errors.New(errors.ErrCodeProviderTimeout, fmt.Sprintf("%s timed out (http %d): %s", provider, resp.StatusCode, msg))
	default:
		return errors.New(errors.ErrCodeProviderAPI, fmt.Sprintf("%s error (http %d): %s", provider, resp.StatusCode, msg))
	}
}

// Permanent reports whether retrying the call cannot help
func Permanent(err error) bool {
	return errors.HasCode(err, errors.ErrCodeProviderAuth) || errors.HasCode(err, errors.ErrCodeProviderConfig)
}

// getStatus performs an authenticated GET and only checks the status
func getStatus(ctx context.Context, client *http.Client, provider, url string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return classifyStatus(provider, resp, body)
	}
	return nil
}

// expandEnv replaces ${VAR} and $VAR using getenv, defaulting to os.Getenv
func expandEnv(s string, getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	return os.Expand(s, getenv)
}
