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

// Package metrics exposes agent counters and gauges.
package metrics

import "time"

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder receives agent observations. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveReport(d time.Duration, success bool)
	ObserveRegistration(success bool)
	IncCommand(source, verb, result string)
	IncSourceError(source string)
	SetChannelState(channel int, on bool)
	SetSensorReading(temperature, humidity float64)
	SetRuntimeState(state string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveReport(time.Duration, bool) {}
func (NoopRecorder) ObserveRegistration(bool)          {}
func (NoopRecorder) IncCommand(string, string, string) {}
func (NoopRecorder) IncSourceError(string)             {}
func (NoopRecorder) SetChannelState(int, bool)         {}
func (NoopRecorder) SetSensorReading(float64, float64) {}
func (NoopRecorder) SetRuntimeState(string)            {}

func resultLabel(success bool) string {
	if success {
		return ResultSuccess
	}

	return ResultFailure
}
