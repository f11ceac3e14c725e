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

// SensorReading is one sample from the sampling source.
type SensorReading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// HostStats describes the host the agent is running on.
type HostStats struct {
	UptimeSeconds      uint64
	MemoryUsagePercent float64
}

// StatusSnapshot is an immutable copy of device state taken once per report
// cycle. It shares no memory with the live store.
type StatusSnapshot struct {
	Switches           []Channel[bool]
	Readings           []Channel[float64]
	Reading            *SensorReading
	UptimeSeconds      uint64
	MemoryUsagePercent float64
	SampledAt          time.Time
}

// TotalToggles sums the change counters of every switch channel.
func (s StatusSnapshot) TotalToggles() uint64 {
	var total uint64
	for _, ch := range s.Switches {
		total += ch.ChangeCount
	}

	return total
}

// Metrics converts the snapshot into the panel's metrics document.
func (s StatusSnapshot) Metrics() StatusMetrics {
	m := StatusMetrics{
		Uptime:             s.UptimeSeconds,
		MemoryUsagePercent: s.MemoryUsagePercent,
		SampledAt:          s.SampledAt.UTC(),
	}

	if len(s.Switches) > 0 {
		m.Channels = make([]int, len(s.Switches))
		m.ChannelDetails = make([]ChannelMetric, len(s.Switches))

		for i, ch := range s.Switches {
			if ch.Value {
				m.Channels[i] = 1
			}

			m.ChannelDetails[i] = ChannelMetric{
				Index:       ch.Index,
				On:          ch.Value,
				ChangeCount: ch.ChangeCount,
			}

			if !ch.LastChangedAt.IsZero() {
				changed := ch.LastChangedAt.UTC()
				m.ChannelDetails[i].LastChangedAt = &changed
			}
		}

		total := s.TotalToggles()
		m.TotalToggles = &total
	}

	if s.Reading != nil {
		temp, hum := s.Reading.Temperature, s.Reading.Humidity
		m.Temperature = &temp
		m.Humidity = &hum
	}

	return m
}
