package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"powerdash/internal/model"
)

// TokenSource supplies the current bearer token, empty when logged out.
type TokenSource func() string

// Recorder receives API call metrics. See internal/metrics.
type Recorder interface {
	RecordAPIRequest(endpoint string, statusCode int, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordAPIRequest(string, int, time.Duration) {}

// Client talks to the energy backend REST API. All state it returns is owned
// by the caller; the client itself only holds connection config.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	metrics Recorder
	logger  *slog.Logger
}

type Options struct {
	HTTPClient *http.Client
	Tokens     TokenSource
	Metrics    Recorder
	Logger     *slog.Logger
}

func New(baseURL string, opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    opts.HTTPClient,
		tokens:  opts.Tokens,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	if c.tokens == nil {
		c.tokens = func() string { return "" }
	}
	if c.metrics == nil {
		c.metrics = noopRecorder{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Login exchanges credentials for a bearer token via the form-encoded /token
// endpoint. Credential rejections come back as *AuthError with the server's
// detail message.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, status, err := c.send(req, "/token")
	if err != nil {
		return "", err
	}
	if status == http.StatusUnauthorized || status == http.StatusBadRequest {
		return "", &AuthError{Detail: detailMessage(body)}
	}
	if status != http.StatusOK {
		return "", &APIError{StatusCode: status, Endpoint: "/token", Message: detailMessage(body), Retryable: isRetryableStatus(status)}
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	return resp.AccessToken, nil
}

func (c *Client) LatestMeasurements(ctx context.Context, limit int) ([]model.Measurement, error) {
	var out []model.Measurement
	endpoint := "/api/measurements/latest?limit=" + strconv.Itoa(limit)
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DailyAggregations(ctx context.Context, days int) ([]model.DailyAggregate, error) {
	var out []model.DailyAggregate
	endpoint := "/api/measurements/daily?days=" + strconv.Itoa(days)
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeviceUsage(ctx context.Context) ([]model.Device, error) {
	var out []model.Device
	if err := c.getJSON(ctx, "/api/devices/usage", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	var out []model.Notification
	if err := c.getJSON(ctx, "/api/notifications", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.postJSON(ctx, fmt.Sprintf("/api/notifications/read/%d", id), nil, nil)
}

func (c *Client) SendTestAlert(ctx context.Context) error {
	return c.postJSON(ctx, "/api/notifications/test-alert", nil, nil)
}

func (c *Client) Users(ctx context.Context) ([]model.Account, error) {
	var out []model.Account
	if err := c.getJSON(ctx, "/users/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

type ProfileUpdate struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (c *Client) UpdateMe(ctx context.Context, update ProfileUpdate) (*model.Account, error) {
	var out model.Account
	if err := c.doJSON(ctx, http.MethodPut, "/users/me", update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (c *Client) ChangePassword(ctx context.Context, change PasswordChange) error {
	return c.postJSON(ctx, "/users/me/change-password", change, nil)
}

type AccountUpdate struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

func (c *Client) UpdateUser(ctx context.Context, id int64, update AccountUpdate) (*model.Account, error) {
	var out model.Account
	if err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/users/%d", id), update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), nil, nil)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	return c.doJSON(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, endpoint, in, out)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	body, status, err := c.send(req, metricPath(endpoint))
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Detail: detailMessage(body)}
	case status < 200 || status > 299:
		return &APIError{
			StatusCode: status,
			Endpoint:   metricPath(endpoint),
			Message:    detailMessage(body),
			Retryable:  isRetryableStatus(status),
		}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", metricPath(endpoint), err)
	}
	return nil
}

// send executes the request with auth headers and returns the raw body and
// status. Transport failures wrap ErrUnreachable so callers can tell "no
// network" apart from a server-reported error.
func (c *Client) send(req *http.Request, endpoint string) ([]byte, int, error) {
	if tok := c.tokens(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordAPIRequest(endpoint, 0, time.Since(start))
		c.logger.Debug("backend request failed", "endpoint", endpoint, "error", err)
		return nil, 0, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	c.metrics.RecordAPIRequest(endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return body, resp.StatusCode, nil
}

// detailMessage extracts the backend's {"detail": "..."} error field, falling
// back to the raw body.
func detailMessage(body []byte) string {
	var resp struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Detail != "" {
		return resp.Detail
	}
	return strings.TrimSpace(string(body))
}

// metricPath strips the query string so metrics land on one series per
// endpoint.
func metricPath(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}
