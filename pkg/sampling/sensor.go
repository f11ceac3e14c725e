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

// Package sampling provides sensor readings and host statistics for
// status reports.
package sampling

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/carverauto/fieldagent/pkg/models"
)

// Simulated sensor ranges.
const (
	MinTemperature = 22.0
	MaxTemperature = 30.0
	MinHumidity    = 40.0
	MaxHumidity    = 60.0
)

// Source produces one sensor reading per call.
type Source interface {
	Sample(ctx context.Context) (models.SensorReading, error)
}

// SimulatedSensor returns uniformly distributed readings within the
// configured ranges. It stands in for a real temperature/humidity probe.
type SimulatedSensor struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedSensor seeds the generator from seed; zero seeds from the clock.
func NewSimulatedSensor(seed uint64) *SimulatedSensor {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &SimulatedSensor{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Sample implements Source.
func (s *SimulatedSensor) Sample(ctx context.Context) (models.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return models.SensorReading{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return models.SensorReading{
		Temperature: MinTemperature + s.rng.Float64()*(MaxTemperature-MinTemperature),
		Humidity:    MinHumidity + s.rng.Float64()*(MaxHumidity-MinHumidity),
	}, nil
}
