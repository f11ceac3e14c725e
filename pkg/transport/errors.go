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

package transport

import (
	"errors"
	"fmt"

	"github.com/carverauto/fieldagent/pkg/models"
)

// ErrPollingUnsupported is returned by PendingCommands when the panel has
// no command queue endpoint.
var ErrPollingUnsupported = errors.New("panel does not support command polling")

// Error describes a failed panel call. It matches models.ErrTransport with
// errors.Is and unwraps to the underlying cause, if any.
type Error struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Method, e.URL, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: %s %s: status %d: %s", e.Op, e.Method, e.URL, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s: %s %s: status %d", e.Op, e.Method, e.URL, e.StatusCode)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against models.ErrTransport.
func (*Error) Is(target error) bool {
	return target == models.ErrTransport
}
