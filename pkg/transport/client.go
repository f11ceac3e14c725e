/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package transport is the HTTP client for the panel REST API.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/models"
	"github.com/carverauto/fieldagent/pkg/version"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 2048
	maxBody        = 1 << 20
)

var (
	errBaseURLRequired = errors.New("panel base url is required")
	errEmptyDeviceID   = errors.New("device id is required")
)

// ClientConfig controls how the panel client behaves.
type ClientConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Logger    logger.Logger
	HTTP      *http.Client
}

// Client talks JSON over HTTP to the panel. Every call runs under its own
// timeout and is detached from caller cancellation, so a call that has
// started either completes or times out.
type Client struct {
	baseURL   *url.URL
	timeout   time.Duration
	userAgent string
	client    *http.Client
	logger    logger.Logger
}

// NewClient constructs a panel client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errBaseURLRequired
	}

	parsed, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid panel base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = version.UserAgent()
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Client{
		baseURL:   parsed,
		timeout:   timeout,
		userAgent: ua,
		client:    httpClient,
		logger:    log,
	}, nil
}

// Register posts the registration request to {panel}/devices.
func (c *Client) Register(ctx context.Context, req models.RegistrationRequest) (models.RegistrationResponse, error) {
	var resp models.RegistrationResponse

	if err := c.do(ctx, "register", http.MethodPost, c.endpoint("devices"), req, &resp); err != nil {
		return models.RegistrationResponse{}, err
	}

	return resp, nil
}

// ReportStatus sends one status update to {panel}/devices/{id}.
func (c *Client) ReportStatus(ctx context.Context, deviceID string, snapshot models.StatusSnapshot) error {
	if deviceID == "" {
		return errEmptyDeviceID
	}

	update := models.StatusUpdate{
		Status:  models.StatusOnline,
		Metrics: snapshot.Metrics(),
	}

	return c.do(ctx, "report status", http.MethodPut, c.endpoint("devices", deviceID), update, nil)
}

// PendingCommands fetches queued commands from {panel}/devices/{id}/commands.
// The panel may answer with a bare array or {"commands": [...]}. A 404 or
// 405 yields ErrPollingUnsupported.
func (c *Client) PendingCommands(ctx context.Context, deviceID string) ([]models.RemoteCommand, error) {
	if deviceID == "" {
		return nil, errEmptyDeviceID
	}

	var raw json.RawMessage

	err := c.do(ctx, "poll commands", http.MethodGet, c.endpoint("devices", deviceID, "commands"), nil, &raw)
	if err != nil {
		var terr *Error
		if errors.As(err, &terr) &&
			(terr.StatusCode == http.StatusNotFound || terr.StatusCode == http.StatusMethodNotAllowed) {
			return nil, fmt.Errorf("%w: %w", ErrPollingUnsupported, err)
		}

		return nil, err
	}

	return decodeCommands(raw)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()

	return nil
}

func (c *Client) endpoint(segments ...string) string {
	u := *c.baseURL

	for _, s := range segments {
		u.Path += "/" + url.PathEscape(s)
	}

	return u.String()
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body, out interface{}) error {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(callCtx, method, endpoint, reader)
	if err != nil {
		return &Error{Op: op, Method: method, URL: endpoint, Err: err}
	}

	requestID := uuid.NewString()

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Op: op, Method: method, URL: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug().
		Str("op", op).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Panel request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return &Error{
			Op:         op,
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))

		return nil
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}

		return &Error{Op: op, Method: method, URL: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}

func decodeCommands(raw json.RawMessage) ([]models.RemoteCommand, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var cmds []models.RemoteCommand

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &cmds); err != nil {
			return nil, fmt.Errorf("%w: decode commands: %w", models.ErrTransport, err)
		}

		return cmds, nil
	}

	var wrapped struct {
		Commands []models.RemoteCommand `json:"commands"`
	}

	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: decode commands: %w", models.ErrTransport, err)
	}

	return wrapped.Commands, nil
}
