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

package command

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/carverauto/fieldagent/pkg/models"
)

// LineKind classifies one line of console input.
type LineKind int

const (
	LineEmpty LineKind = iota
	LineCommand
	LineHelp
	LineQuit
)

// Line is a parsed console line.
type Line struct {
	Kind    LineKind
	Command models.Command
}

// ParseLine parses the interactive grammar: "<verb> [channel]", "help",
// "quit" or "exit". Extra tokens after the channel are ignored. A channel
// verb without a channel yields a command with a nil Channel, which the
// executor rejects.
func ParseLine(input, source string) (Line, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return Line{Kind: LineEmpty}, nil
	}

	switch strings.ToLower(fields[0]) {
	case "help", "?":
		return Line{Kind: LineHelp}, nil
	case "quit", "exit":
		return Line{Kind: LineQuit}, nil
	}

	verb, err := models.ParseVerb(fields[0])
	if err != nil {
		return Line{}, err
	}

	cmd := models.Command{Verb: verb, Source: source}

	if verb.NeedsChannel() && len(fields) > 1 {
		ch, err := strconv.Atoi(fields[1])
		if err != nil {
			return Line{}, fmt.Errorf("%w: %q is not a channel number", models.ErrOutOfRange, fields[1])
		}

		cmd.Channel = models.ChannelIndex(ch)
	}

	return Line{Kind: LineCommand, Command: cmd}, nil
}

// FromRemote decodes a panel command. The channel comes from
// parameters.channel and may be a JSON number or a numeric string.
func FromRemote(rc models.RemoteCommand, source string) (models.Command, error) {
	verb, err := models.ParseVerb(rc.Command)
	if err != nil {
		return models.Command{}, err
	}

	cmd := models.Command{Verb: verb, Source: source, ID: rc.CommandID}

	raw, ok := rc.Parameters["channel"]
	if !ok || raw == nil {
		return cmd, nil
	}

	ch, err := channelFromParam(raw)
	if err != nil {
		return models.Command{}, err
	}

	cmd.Channel = models.ChannelIndex(ch)

	return cmd, nil
}

func channelFromParam(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt32 || v < math.MinInt32 {
			return 0, fmt.Errorf("%w: channel %v is not an integer", models.ErrOutOfRange, v)
		}

		return int(v), nil
	case int:
		return v, nil
	case string:
		ch, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a channel number", models.ErrOutOfRange, v)
		}

		return ch, nil
	default:
		return 0, fmt.Errorf("%w: unsupported channel type %T", models.ErrOutOfRange, raw)
	}
}
