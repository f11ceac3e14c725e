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
	"bufio"
	"context"
	"io"

	"github.com/carverauto/fieldagent/pkg/command"
	"github.com/carverauto/fieldagent/pkg/console"
	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/models"
)

const consoleSourceName = "console"

// ConsoleSource reads one command per line from an interactive terminal.
// Reading happens on a separate goroutine so that shutdown does not wait
// for the next line; that goroutine is abandoned if it is blocked.
type ConsoleSource struct {
	in     io.Reader
	out    *console.Console
	logger logger.Logger
}

// NewConsoleSource creates a console source reading in and rendering to out.
func NewConsoleSource(in io.Reader, out *console.Console, log logger.Logger) *ConsoleSource {
	return &ConsoleSource{
		in:     in,
		out:    out,
		logger: log,
	}
}

// Name implements CommandSource.
func (*ConsoleSource) Name() string {
	return consoleSourceName
}

// Run implements CommandSource. End of input stops this source only.
func (c *ConsoleSource) Run(ctx context.Context, _ models.DeviceIdentity, d Dispatcher) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go c.readLines(ctx, lines, readErr)

	c.out.Line("Type 'help' for commands")
	c.out.Prompt()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				c.logger.Warn().Err(err).Msg("Console read failed")

				return err
			}

			c.logger.Info().Msg("Console input closed")

			return nil
		case line := <-lines:
			if quit := c.handleLine(ctx, line, d); quit {
				return nil
			}

			c.out.Prompt()
		}
	}
}

func (c *ConsoleSource) readLines(ctx context.Context, lines chan<- string, readErr chan<- error) {
	scanner := bufio.NewScanner(c.in)

	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}

	readErr <- scanner.Err()
}

// handleLine returns true when the operator asked to quit.
func (c *ConsoleSource) handleLine(ctx context.Context, input string, d Dispatcher) bool {
	line, err := command.ParseLine(input, consoleSourceName)
	if err != nil {
		c.out.Error(err.Error())
		c.logger.Warn().Err(err).Str("input", input).Str("source", consoleSourceName).Msg("Invalid console command")

		return false
	}

	switch line.Kind {
	case command.LineEmpty:
	case command.LineHelp:
		c.out.Help()
	case command.LineQuit:
		d.RequestShutdown("console quit")

		return true
	case command.LineCommand:
		if ctx.Err() != nil {
			return true
		}

		c.out.Result(line.Command, d.Dispatch(line.Command))
	}

	return false
}
