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

package agent

import (
	"context"
	"encoding/json"

	"github.com/carverauto/fieldagent/pkg/command"
	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/metrics"
	"github.com/carverauto/fieldagent/pkg/models"
)

// Remote message types carrying commands. The panel broadcasts
// command_sent; an empty type is accepted from queues that carry only
// commands.
const (
	messageTypeCommandSent = "command_sent"
	messageTypeCommand     = "command"
	messageTypePing        = "ping"
	messageTypePong        = "pong"
)

// remoteHandler decodes and dispatches panel commands for one source.
type remoteHandler struct {
	source   string
	identity models.DeviceIdentity
	dispatch Dispatcher
	recorder metrics.Recorder
	logger   logger.Logger
}

// handlePayload decodes a raw JSON message and dispatches it.
func (h *remoteHandler) handlePayload(ctx context.Context, payload []byte) {
	var rc models.RemoteCommand
	if err := json.Unmarshal(payload, &rc); err != nil {
		h.logger.Warn().Err(err).Str("source", h.source).Msg("Dropping malformed command payload")
		h.recorder.IncSourceError(h.source)

		return
	}

	h.handle(ctx, rc)
}

// handle dispatches rc if it is a command addressed to this device.
// Nothing is dispatched once ctx is done.
func (h *remoteHandler) handle(ctx context.Context, rc models.RemoteCommand) {
	if ctx.Err() != nil {
		return
	}

	switch rc.Type {
	case "", messageTypeCommandSent, messageTypeCommand:
	default:
		h.logger.Debug().Str("source", h.source).Str("type", rc.Type).Msg("Ignoring non-command message")

		return
	}

	if rc.DeviceID != "" && rc.DeviceID != h.identity.ID {
		return
	}

	cmd, err := command.FromRemote(rc, h.source)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("source", h.source).
			Str("command_id", rc.CommandID).
			Str("command", rc.Command).
			Msg("Dropping undecodable command")
		h.recorder.IncSourceError(h.source)

		return
	}

	res := h.dispatch.Dispatch(cmd)

	h.logger.Debug().
		Str("source", h.source).
		Str("command_id", rc.CommandID).
		Str("command", cmd.String()).
		Ints("applied", res.Applied).
		Bool("ok", res.Ok()).
		Msg("Remote command handled")
}
