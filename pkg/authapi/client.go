// Package authapi is the portal's HTTP client for the remote auth service
// and the backend profile API.
//
// It owns bearer-header injection, per-request IDs, retry of idempotent-safe
// failures and mapping of error bodies into typed APIErrors. It holds no
// session state; that is the session controller's job.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sendhisword/portal/internal/portal/domain"
	"github.com/sendhisword/portal/pkg/idx"
)

// Client talks to the auth service and backend API rooted at BaseURL.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// MaxRetries is how many times a failed call is reissued. Only
	// transport errors, 408, 429 and 5xx are retried; other 4xx are final.
	MaxRetries int

	// RetryDelay is the base delay between attempts, doubled each retry.
	RetryDelay time.Duration
}

// New creates a client with sane defaults: a 10 second request timeout and
// two retries with exponential backoff.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		MaxRetries: 2,
		RetryDelay: 250 * time.Millisecond,
	}
}

// Login exchanges credentials for a token pair. A provider-rejected
// credential comes back as an *APIError carrying the provider's message.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (*TokenResponse, error) {
	var tokens TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", LoginRequest{
		Email:      email,
		Password:   password,
		RememberMe: rememberMe,
	}, "", &tokens, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Refresh exchanges a refresh token for a new access token. The returned
// RefreshToken is empty when the provider does not rotate.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var tokens TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": refreshToken,
	}, "", &tokens, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Logout invalidates the remote session for the given refresh token.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/logout", LogoutRequest{
		RefreshToken: refreshToken,
	}, accessToken, nil, http.StatusNoContent)
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context, accessToken string) (*domain.Profile, error) {
	var profile domain.Profile
	err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, accessToken, &profile, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// doJSON performs a JSON request with retries and decodes the response into
// target (which may be nil for empty responses).
func (c *Client) doJSON(
	ctx context.Context,
	method, path string,
	payload any,
	accessToken string,
	target any,
	expectedStatus int,
) error {
	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("authapi: encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, method, path, bodyBytes, accessToken)
		if err != nil {
			lastErr = err
		} else {
			respBody, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("authapi: read response: %w", readErr)
			} else if resp.StatusCode != expectedStatus {
				apiErr := parseErrorResponse(resp.StatusCode, respBody)
				if !retryable(resp.StatusCode) {
					return apiErr
				}
				lastErr = apiErr
			} else {
				if target == nil || len(respBody) == 0 {
					return nil
				}
				if err := json.Unmarshal(respBody, target); err != nil {
					return fmt.Errorf("authapi: decode response: %w", err)
				}
				return nil
			}
		}

		if attempt >= c.MaxRetries {
			return lastErr
		}

		// Exponential backoff, bounded by context
		delay := c.RetryDelay << attempt
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, accessToken string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("authapi: create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	req.Header.Set("X-Request-ID", idx.New().String())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authapi: send request: %w", err)
	}
	return resp, nil
}

// retryable reports whether a status code is safe to retry. Mirrors the
// platform's web client: never retry 4xx except timeout and throttling.
func retryable(statusCode int) bool {
	if statusCode == http.StatusRequestTimeout || statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500
}
