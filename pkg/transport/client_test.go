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

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{
		BaseURL:   srv.URL + "/api/",
		Timeout:   timeout,
		UserAgent: "fieldagent/test",
		Logger:    logger.NewTestLogger(),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestRegister(t *testing.T) {
	var got models.RegistrationRequest

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/devices", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "fieldagent/test", r.Header.Get("User-Agent"))

		_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
		assert.NoError(t, err)

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"dev-123","name":"relay","device_type":"switch","status":"offline"}`))
	}, time.Second)

	channels := 4
	resp, err := c.Register(context.Background(), models.RegistrationRequest{
		Name:       "relay",
		DeviceType: models.DeviceTypeSwitch,
		IPAddress:  "127.0.0.1",
		Metadata:   models.RegistrationMetadata{FirmwareVersion: "1.0.0", Channels: &channels},
	})
	require.NoError(t, err)

	assert.Equal(t, "dev-123", resp.ID)
	assert.Equal(t, "relay", got.Name)
	assert.Equal(t, models.DeviceTypeSwitch, got.DeviceType)
	require.NotNil(t, got.Metadata.Channels)
	assert.Equal(t, 4, *got.Metadata.Channels)
}

func TestReportStatusWireFormat(t *testing.T) {
	var body map[string]interface{}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/devices/dev-1", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}, time.Second)

	snap := models.StatusSnapshot{
		Switches: []models.Channel[bool]{
			{Index: 0, Value: true, ChangeCount: 3},
			{Index: 1, Value: false, ChangeCount: 2},
			{Index: 2, Value: true, ChangeCount: 5},
		},
		UptimeSeconds: 10,
		SampledAt:     time.Unix(1700000000, 0),
	}

	require.NoError(t, c.ReportStatus(context.Background(), "dev-1", snap))

	assert.Equal(t, "online", body["status"])

	metrics, ok := body["metrics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{float64(1), float64(0), float64(1)}, metrics["channels"])
	assert.InDelta(t, 10, metrics["total_toggles"], 0)
	assert.NotContains(t, metrics, "temperature")
}

func TestReportStatusNon2xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "device not found", http.StatusNotFound)
	}, time.Second)

	err := c.ReportStatus(context.Background(), "ghost", models.StatusSnapshot{})
	require.Error(t, err)
	require.ErrorIs(t, err, models.ErrTransport)

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusNotFound, terr.StatusCode)
	assert.Contains(t, terr.Error(), "device not found")
}

func TestReportStatusTimeout(t *testing.T) {
	release := make(chan struct{})

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)

		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)

	// Cleanups run LIFO: release the handler before the server closes.
	t.Cleanup(func() { close(release) })

	err := c.ReportStatus(context.Background(), "dev-1", models.StatusSnapshot{})
	require.ErrorIs(t, err, models.ErrTransport)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallerCancellationDoesNotAbortInFlightCall(t *testing.T) {
	started := make(chan struct{})

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-started
		cancel()
	}()

	require.NoError(t, c.ReportStatus(ctx, "dev-1", models.StatusSnapshot{}))
}

func TestPendingCommands(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"array", `[{"command_id":"a","command":"on","parameters":{"channel":1}}]`, 1},
		{"wrapped", `{"commands":[{"command":"all_off"},{"command":"status"}]}`, 2},
		{"empty", ``, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/api/devices/dev-1/commands", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			}, time.Second)

			cmds, err := c.PendingCommands(context.Background(), "dev-1")
			require.NoError(t, err)
			assert.Len(t, cmds, tt.want)
		})
	}
}

func TestPendingCommandsUnsupported(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}, time.Second)

	_, err := c.PendingCommands(context.Background(), "dev-1")
	require.ErrorIs(t, err, ErrPollingUnsupported)
	require.ErrorIs(t, err, models.ErrTransport)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
}

func TestEmptyDeviceID(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("unexpected request")
	}, time.Second)

	require.Error(t, c.ReportStatus(context.Background(), "", models.StatusSnapshot{}))
}
