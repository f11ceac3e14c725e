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
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fieldagent/pkg/console"
	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/models"
)

func TestConsoleSourceSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, store := newRecordingDispatcher(t, 4)

	var out bytes.Buffer

	in := strings.NewReader("help\non 1\n\nbogus\ntoggle x\nstatus\nquit\non 2\n")
	src := NewConsoleSource(in, console.New(&out), logger.NewTestLogger())

	require.NoError(t, src.Run(ctx, testIdentity, d))

	assert.Equal(t, []string{"console quit"}, d.ShutdownReasons())

	cmds := d.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "on 1", cmds[0].String())
	assert.Equal(t, "console", cmds[0].Source)
	assert.Equal(t, models.VerbStatus, cmds[1].Verb)

	on, err := store.ReadChannel(1)
	require.NoError(t, err)
	assert.True(t, on)

	text := out.String()
	assert.Contains(t, text, "Type 'help' for commands")
	assert.Contains(t, text, "Commands:")
	assert.Contains(t, text, "on 1: 1 changed, 0 unchanged")
	assert.Contains(t, text, "error: unknown command")
	assert.Contains(t, text, "CHANNEL")
	assert.NotContains(t, text, "on 2")
}

func TestConsoleSourceLogsInvalidInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, _ := newRecordingDispatcher(t, 4)

	var out bytes.Buffer

	logs := &syncBuffer{}

	in := strings.NewReader("frobnicate 1\n")
	src := NewConsoleSource(in, console.New(&out), logger.NewWriterLogger(logs))

	require.NoError(t, src.Run(ctx, testIdentity, d))

	text := logs.String()
	assert.Contains(t, text, `"level":"warn"`)
	assert.Contains(t, text, `"message":"Invalid console command"`)
	assert.Contains(t, text, `"input":"frobnicate 1"`)
	assert.Contains(t, text, `"source":"console"`)
	assert.Contains(t, out.String(), "error: unknown command")
}

func TestConsoleSourceEndOfInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, _ := newRecordingDispatcher(t, 4)

	var out bytes.Buffer

	src := NewConsoleSource(strings.NewReader("all_on\n"), console.New(&out), logger.NewTestLogger())

	require.NoError(t, src.Run(ctx, testIdentity, d))
	assert.Empty(t, d.ShutdownReasons())
	require.Len(t, d.Commands(), 1)
	assert.Contains(t, out.String(), "all_on: 4 changed, 0 unchanged")
}

func TestConsoleSourceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	d, _ := newRecordingDispatcher(t, 4)

	// A pipe with no writer blocks the reader forever.
	pr, pw := newBlockingInput()
	defer func() { _ = pw.Close() }()

	var out bytes.Buffer

	src := NewConsoleSource(pr, console.New(&out), logger.NewTestLogger())
	done := runAsync(func() error { return src.Run(ctx, testIdentity, d) })

	cancel()

	require.NoError(t, waitResult(t, done))
	assert.Empty(t, d.Commands())
}
