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

// Channel is a point-in-time copy of one addressable channel. V is bool for
// relay channels and float64 for cached sensor readings.
type Channel[V comparable] struct {
	Index         int       `json:"index"`
	Value         V         `json:"value"`
	LastChangedAt time.Time `json:"last_changed_at,omitempty"`
	ChangeCount   uint64    `json:"change_count"`
}
