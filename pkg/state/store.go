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

// Package state owns the mutable channel records of a device. Every read
// and write goes through Store, which serializes access with a single lock.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/fieldagent/pkg/models"
)

// ErrInvalidSize is returned when a store is created with no channels.
var ErrInvalidSize = errors.New("store needs at least one channel")

// Outcome is the result of Store.Apply.
type Outcome int

const (
	Unchanged Outcome = iota
	Changed
	OutOfRange
)

func (o Outcome) String() string {
	switch o {
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	case OutOfRange:
		return "out_of_range"
	default:
		return "unknown"
	}
}

// Option configures a Store.
type Option[V comparable] func(*Store[V])

// WithClock overrides the time source used for LastChangedAt.
func WithClock[V comparable](now func() time.Time) Option[V] {
	return func(s *Store[V]) {
		if now != nil {
			s.now = now
		}
	}
}

// WithChangeHook registers fn to run after every observed transition. It is
// called without the store lock held and must not block for long. Calls are
// serialized, and a transition older than one already delivered for the same
// channel is dropped, so fn sees ChangeCount strictly increase per channel.
func WithChangeHook[V comparable](fn func(models.Channel[V])) Option[V] {
	return func(s *Store[V]) {
		s.onChange = fn
	}
}

// Store is a fixed-size set of channels. The size is set at construction
// and never changes. Apply is atomic per channel; a batch of Apply calls is
// not atomic as a whole, so a concurrent Read may see part of a batch.
type Store[V comparable] struct {
	mu       sync.RWMutex
	channels []models.Channel[V]
	now      func() time.Time
	onChange func(models.Channel[V])

	hookMu   sync.Mutex
	notified []uint64
}

// NewStore creates a store with n channels, all holding the zero value of V.
func NewStore[V comparable](n int, opts ...Option[V]) (*Store[V], error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, n)
	}

	s := &Store[V]{
		channels: make([]models.Channel[V], n),
		notified: make([]uint64, n),
		now:      time.Now,
	}

	for i := range s.channels {
		s.channels[i].Index = i
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Len returns the number of channels.
func (s *Store[V]) Len() int {
	return len(s.channels)
}

// Apply sets channel index to desired. Only an actual transition updates
// LastChangedAt and increments ChangeCount. An index outside [0, Len())
// returns OutOfRange and leaves every channel untouched.
func (s *Store[V]) Apply(index int, desired V) (Outcome, error) {
	s.mu.Lock()

	if !s.inRange(index) {
		s.mu.Unlock()

		return OutOfRange, s.rangeError(index)
	}

	ch := &s.channels[index]
	if ch.Value == desired {
		s.mu.Unlock()

		return Unchanged, nil
	}

	ch.Value = desired
	ch.LastChangedAt = s.now()
	ch.ChangeCount++

	changed := *ch
	hook := s.onChange

	s.mu.Unlock()

	if hook != nil {
		s.notify(hook, changed)
	}

	return Changed, nil
}

func (s *Store[V]) notify(hook func(models.Channel[V]), changed models.Channel[V]) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	if changed.ChangeCount <= s.notified[changed.Index] {
		return
	}

	s.notified[changed.Index] = changed.ChangeCount
	hook(changed)
}

// ReadChannel returns the current value of one channel.
func (s *Store[V]) ReadChannel(index int) (V, error) {
	ch, err := s.Channel(index)

	return ch.Value, err
}

// Channel returns a copy of one channel record.
func (s *Store[V]) Channel(index int) (models.Channel[V], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.inRange(index) {
		return models.Channel[V]{}, s.rangeError(index)
	}

	return s.channels[index], nil
}

// Read returns a copy of every channel, taken under one lock acquisition.
func (s *Store[V]) Read() []models.Channel[V] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Channel[V], len(s.channels))
	copy(out, s.channels)

	return out
}

func (s *Store[V]) inRange(index int) bool {
	return index >= 0 && index < len(s.channels)
}

func (s *Store[V]) rangeError(index int) error {
	return fmt.Errorf("%w: %d not in [0,%d)", models.ErrOutOfRange, index, len(s.channels))
}
