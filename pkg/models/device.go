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

// Package models pkg/models/device.go
package models

// DeviceType selects the firmware variant the agent runs as.
type DeviceType string

const (
	DeviceTypeSwitch DeviceType = "switch"
	DeviceTypeSensor DeviceType = "sensor"
)

// MaxChannels is the upper bound for switch channels.
const MaxChannels = 4

// SensorChannels is the fixed size of the sensor reading cache.
const SensorChannels = 2

// Sensor cache channel indices.
const (
	SensorChannelTemperature = 0
	SensorChannelHumidity    = 1
)

// Valid reports whether t is a known device type.
func (t DeviceType) Valid() bool {
	return t == DeviceTypeSwitch || t == DeviceTypeSensor
}

// DeviceIdentity identifies this device to the panel. It is built once
// before the runtime starts its loops and never mutated afterwards.
type DeviceIdentity struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	DeviceType      DeviceType `json:"device_type"`
	FirmwareVersion string     `json:"firmware_version"`
}

// Registered reports whether the panel has assigned (or config supplied) an ID.
func (d DeviceIdentity) Registered() bool {
	return d.ID != ""
}

// WithID returns a copy of d carrying id.
func (d DeviceIdentity) WithID(id string) DeviceIdentity {
	d.ID = id

	return d
}
