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
	"errors"
	"fmt"
)

var (
	// ErrConfig marks configuration problems; fatal before the runtime starts.
	ErrConfig = errors.New("invalid configuration")
	// ErrRegistration marks a failed registration handshake.
	ErrRegistration = errors.New("device registration failed")
	// ErrTransport marks a failed call to the panel.
	ErrTransport = errors.New("transport failure")
	// ErrOutOfRange marks a channel index outside [0, N).
	ErrOutOfRange = errors.New("channel out of range")
	// ErrUnknownCommand marks an unrecognized command verb.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMissingChannel marks a channel command issued without a channel.
	ErrMissingChannel = fmt.Errorf("%w: command requires a channel", ErrOutOfRange)
)
