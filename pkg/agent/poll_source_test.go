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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/models"
	"github.com/carverauto/fieldagent/pkg/transport"
)

func channelParam(ch interface{}) map[string]interface{} {
	return map[string]interface{}{"channel": ch}
}

func TestPollSourceDispatchesQueuedCommands(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, store := newRecordingDispatcher(t, 4)
	rec := newCountingRecorder()
	poller := NewMockCommandPoller(ctrl)

	gomock.InOrder(
		poller.EXPECT().PendingCommands(gomock.Any(), "dev-1").Return([]models.RemoteCommand{
			{CommandID: "c1", Command: "on", Parameters: channelParam(float64(1))},
			{CommandID: "c2", DeviceID: "someone-else", Command: "on", Parameters: channelParam(float64(2))},
			{CommandID: "c3", Command: "explode"},
		}, nil),
		poller.EXPECT().PendingCommands(gomock.Any(), "dev-1").Return(nil, errors.New("502 bad gateway")),
		poller.EXPECT().PendingCommands(gomock.Any(), "dev-1").
			DoAndReturn(func(context.Context, string) ([]models.RemoteCommand, error) {
				cancel()

				return nil, transport.ErrPollingUnsupported
			}),
		poller.EXPECT().PendingCommands(gomock.Any(), "dev-1").Return(nil, nil).AnyTimes(),
	)

	src := NewPollSource(poller, 5*time.Millisecond, nil, rec, logger.NewTestLogger())
	assert.Equal(t, "poll", src.Name())

	require.NoError(t, waitResult(t, runAsync(func() error { return src.Run(ctx, testIdentity, d) })))

	cmds := d.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "on 1", cmds[0].String())
	assert.Equal(t, "poll", cmds[0].Source)
	assert.Equal(t, "c1", cmds[0].ID)

	on, err := store.ReadChannel(1)
	require.NoError(t, err)
	assert.True(t, on)

	// One undecodable command plus one failed poll; unsupported polling is not an error.
	assert.Equal(t, 2, rec.SourceErrors("poll"))
}

func TestPollSourceRequiresRegisteredIdentity(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d, _ := newRecordingDispatcher(t, 4)
	src := NewPollSource(NewMockCommandPoller(ctrl), time.Second, nil, nil, logger.NewTestLogger())

	require.ErrorIs(t, src.Run(context.Background(), models.DeviceIdentity{}, d), ErrUnregistered)
}

func TestRemoteHandlerFiltersMessages(t *testing.T) {
	d, _ := newRecordingDispatcher(t, 4)
	rec := newCountingRecorder()

	h := &remoteHandler{
		source:   "websocket",
		identity: testIdentity,
		dispatch: d,
		recorder: rec,
		logger:   logger.NewTestLogger(),
	}

	ctx := context.Background()

	h.handlePayload(ctx, []byte(`{"type":"pong"}`))
	h.handlePayload(ctx, []byte(`{"type":"device_update","device_id":"dev-1","command":"on"}`))
	h.handlePayload(ctx, []byte(`not json`))
	h.handlePayload(ctx, []byte(`{"type":"command_sent","device_id":"dev-2","command":"all_on"}`))
	h.handlePayload(ctx, remotePayload(t, models.RemoteCommand{
		Type:       "command_sent",
		DeviceID:   "dev-1",
		Command:    "toggle",
		Parameters: channelParam("3"),
	}))
	h.handlePayload(ctx, remotePayload(t, models.RemoteCommand{
		Type:       "command",
		Command:    "on",
		Parameters: channelParam(float64(1.5)),
	}))

	cmds := d.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "toggle 3", cmds[0].String())
	assert.Equal(t, 2, rec.SourceErrors("websocket"))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	h.handle(cancelled, models.RemoteCommand{Command: "all_on"})
	assert.Len(t, d.Commands(), 1)
}
