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

import (
	"fmt"
	"strings"
)

// Verb is the action a Command asks for.
type Verb int

const (
	VerbUnknown Verb = iota
	VerbOn
	VerbOff
	VerbToggle
	VerbAllOn
	VerbAllOff
	VerbStatus
)

var verbNames = map[Verb]string{
	VerbOn:     "on",
	VerbOff:    "off",
	VerbToggle: "toggle",
	VerbAllOn:  "all_on",
	VerbAllOff: "all_off",
	VerbStatus: "status",
}

func (v Verb) String() string {
	if name, ok := verbNames[v]; ok {
		return name
	}

	return "unknown"
}

// NeedsChannel reports whether the verb addresses a single channel.
func (v Verb) NeedsChannel() bool {
	return v == VerbOn || v == VerbOff || v == VerbToggle
}

// ParseVerb maps the wire/console spelling of a verb. Matching is case
// insensitive; "all-on" and "allon" are accepted alongside "all_on".
func ParseVerb(s string) (Verb, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")

	switch norm {
	case "on":
		return VerbOn, nil
	case "off":
		return VerbOff, nil
	case "toggle":
		return VerbToggle, nil
	case "all_on", "allon":
		return VerbAllOn, nil
	case "all_off", "alloff":
		return VerbAllOff, nil
	case "status":
		return VerbStatus, nil
	default:
		return VerbUnknown, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
}

// Command is a single request to change or inspect channel state. It is
// consumed once and never stored.
type Command struct {
	Verb    Verb
	Channel *int
	// Source names the command source that produced it.
	Source string
	// ID is the panel-assigned command id, if any.
	ID string
}

// ChannelIndex returns a pointer suitable for Command.Channel.
func ChannelIndex(i int) *int {
	return &i
}

func (c Command) String() string {
	if c.Channel == nil {
		return c.Verb.String()
	}

	return fmt.Sprintf("%s %d", c.Verb, *c.Channel)
}

// ExecutionResult reports how a command touched each channel. The channel
// sets are sorted and contain no duplicates.
type ExecutionResult struct {
	Verb      Verb
	Applied   []int
	Unchanged []int
	Rejected  []int
	// Channels is populated for VerbStatus.
	Channels []Channel[bool]
	// Err carries the reason for a rejection.
	Err error
}

// Ok reports whether nothing was rejected.
func (r ExecutionResult) Ok() bool {
	return len(r.Rejected) == 0 && r.Err == nil
}
