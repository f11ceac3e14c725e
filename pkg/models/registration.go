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

package models

import "time"

// StatusOnline is the status value every report carries.
const StatusOnline = "online"

// RegistrationRequest is the body of POST {panel}/devices.
type RegistrationRequest struct {
	Name       string               `json:"name"`
	DeviceType DeviceType           `json:"device_type"`
	IPAddress  string               `json:"ip_address"`
	Metadata   RegistrationMetadata `json:"metadata"`
}

// RegistrationMetadata carries firmware details; Channels is only sent by switches.
type RegistrationMetadata struct {
	FirmwareVersion string `json:"firmware_version"`
	Channels        *int   `json:"channels,omitempty"`
}

// RegistrationResponse is the subset of the panel's device record the agent needs.
type RegistrationResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DeviceType string `json:"device_type"`
	Status     string `json:"status"`
}

// StatusUpdate is the body of PUT {panel}/devices/{id}.
type StatusUpdate struct {
	Status  string        `json:"status"`
	Metrics StatusMetrics `json:"metrics"`
}

// StatusMetrics is the metrics document attached to a status update.
type StatusMetrics struct {
	Channels           []int           `json:"channels,omitempty"`
	ChannelDetails     []ChannelMetric `json:"channel_details,omitempty"`
	TotalToggles       *uint64         `json:"total_toggles,omitempty"`
	Temperature        *float64        `json:"temperature,omitempty"`
	Humidity           *float64        `json:"humidity,omitempty"`
	Uptime             uint64          `json:"uptime"`
	MemoryUsagePercent float64         `json:"memory_usage_percent"`
	SampledAt          time.Time       `json:"sampled_at"`
}

// ChannelMetric describes one relay channel in a status update.
type ChannelMetric struct {
	Index         int        `json:"index"`
	On            bool       `json:"on"`
	ChangeCount   uint64     `json:"change_count"`
	LastChangedAt *time.Time `json:"last_changed_at,omitempty"`
}

// RemoteCommand is a command as delivered by the panel, either from the
// polling endpoint, the websocket broadcast, MQTT or NATS.
type RemoteCommand struct {
	Type       string                 `json:"type,omitempty"`
	CommandID  string                 `json:"command_id,omitempty"`
	DeviceID   string                 `json:"device_id,omitempty"`
	Command    string                 `json:"command"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}
