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

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/carverauto/fieldagent/pkg/agent"
	"github.com/carverauto/fieldagent/pkg/command"
	"github.com/carverauto/fieldagent/pkg/config"
	"github.com/carverauto/fieldagent/pkg/console"
	"github.com/carverauto/fieldagent/pkg/lifecycle"
	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/metrics"
	"github.com/carverauto/fieldagent/pkg/models"
	"github.com/carverauto/fieldagent/pkg/sampling"
	"github.com/carverauto/fieldagent/pkg/state"
	"github.com/carverauto/fieldagent/pkg/transport"
	"github.com/carverauto/fieldagent/pkg/version"
)

const logFlushTimeout = 5 * time.Second

var cli struct {
	Config  string           `short:"c" help:"Path to the agent config file (INI or JSON)" default:"config.ini" type:"path"`
	Version kong.VersionFlag `help:"Print version and exit"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("fieldagent"),
		kong.Description("Field device agent for relay switches and environmental sensors."),
		kong.Vars{"version": version.GetFullVersion()},
	)

	if err := run(cli.Config); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(configPath string) error {
	bootLog, err := lifecycle.NewLogger(nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(context.Background(), configPath, bootLog)
	if err != nil {
		return err
	}

	agentLogger, flushLogs, err := lifecycle.CreateExportingLogger(context.Background(), "fieldagent", &logger.Config{
		Level:  cfg.LogLevel,
		Debug:  cfg.Verbose,
		Output: "stdout",
		Format: cfg.LogFormat,
		OTel:   cfg.LogExport(version.GetVersion()),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrConfig, err)
	}

	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), logFlushTimeout)
		defer cancel()

		if err := flushLogs(flushCtx); err != nil {
			bootLog.Warn().Err(err).Msg("Failed to flush exported logs")
		}
	}()

	ctx, cancel := lifecycle.WithSignalCancel(context.Background(), agentLogger)
	defer cancel()

	out := console.New(os.Stdout)

	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	var onStop []agent.StopFunc

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Listen(cfg.MetricsAddr, registry, agentLogger)
		if err != nil {
			return err
		}

		onStop = append(onStop, srv.Shutdown)
	}

	panel, err := transport.NewClient(transport.ClientConfig{
		BaseURL: cfg.PanelURL,
		Timeout: time.Duration(cfg.RequestTimeout),
		Logger:  agentLogger,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrConfig, err)
	}

	onStop = append(onStop, func(context.Context) error { return panel.Close() })

	identity := models.DeviceIdentity{
		ID:              cfg.DeviceID,
		Name:            cfg.DeviceName,
		DeviceType:      cfg.DeviceType,
		FirmwareVersion: version.GetVersion(),
	}

	device, err := newDevice(cfg, out, recorder, agentLogger)
	if err != nil {
		return err
	}

	snapshots := agent.NewSnapshotBuilder(agent.SnapshotConfig{
		Switches: device.switches,
		Readings: device.readings,
		Sampler:  device.sampler,
		Host:     sampling.NewHostCollector(agentLogger),
		Recorder: recorder,
		Logger:   agentLogger,
	})

	reporter := agent.NewReporter(agent.ReporterConfig{
		Transport: panel,
		Snapshots: snapshots,
		Interval:  time.Duration(cfg.ReportInterval),
		Recorder:  recorder,
		Logger:    agentLogger,
		OnCycle:   device.onCycle,
	})

	ipAddress := sampling.ResolveIPAddress(ctx, cfg.IPAddress)

	handshake := agent.NewHandshake(panel, agent.HandshakeConfig{
		IPAddress:     ipAddress,
		NumChannels:   cfg.NumChannels,
		FailOnError:   cfg.ShouldFailOnRegistrationError(),
		RetryInterval: time.Duration(cfg.ReportInterval),
	}, nil, recorder, agentLogger)

	sources := buildSources(cfg, panel, out, recorder, agentLogger)

	printBanner(out, cfg, identity, ipAddress, sources)

	rt := agent.NewRuntime(agent.RuntimeConfig{
		Identity:    identity,
		Handshake:   handshake,
		Reporter:    reporter,
		Sources:     sources,
		Executor:    device.executor,
		GracePeriod: time.Duration(cfg.ShutdownGracePeriod),
		Recorder:    recorder,
		Logger:      agentLogger,
		OnStop:      onStop,
	})

	err = rt.Run(ctx)

	out.Banner(fmt.Sprintf("%s stopped", cfg.DeviceName))

	if errors.Is(err, models.ErrRegistration) {
		return err
	}

	if err != nil {
		agentLogger.Error().Err(err).Msg("Agent stopped with error")

		return err
	}

	return nil
}

// device holds the per-type state and hooks.
type device struct {
	switches *state.Store[bool]
	readings *state.Store[float64]
	sampler  sampling.Source
	executor agent.Executor
	onCycle  agent.CycleHook
}

func newDevice(cfg *config.Config, out *console.Console, rec metrics.Recorder, log logger.Logger) (*device, error) {
	if cfg.DeviceType == models.DeviceTypeSensor {
		readings, err := state.NewStore[float64](models.SensorChannels)
		if err != nil {
			return nil, err
		}

		return &device{
			readings: readings,
			sampler:  sampling.NewSimulatedSensor(0),
			onCycle: func(cycle uint64, snap models.StatusSnapshot, _ error) {
				if snap.Reading != nil {
					out.SensorCycle(cycle, *snap.Reading)
				}
			},
		}, nil
	}

	switches, err := state.NewStore[bool](cfg.NumChannels, state.WithChangeHook(channelChangeHook(rec, log)))
	if err != nil {
		return nil, err
	}

	for i := 0; i < switches.Len(); i++ {
		rec.SetChannelState(i, false)
	}

	return &device{
		switches: switches,
		executor: command.NewExecutor(switches, log, agent.CommandMetricsHook(rec)),
	}, nil
}

func buildSources(cfg *config.Config, panel *transport.Client, out *console.Console, rec metrics.Recorder, log logger.Logger) []agent.CommandSource {
	var sources []agent.CommandSource

	reconnectDelay := time.Duration(cfg.PollCommandsInterval)

	for _, name := range cfg.CommandSources {
		switch name {
		case config.SourceConsole:
			sources = append(sources, agent.NewConsoleSource(os.Stdin, out, log))
		case config.SourcePoll:
			sources = append(sources, agent.NewPollSource(panel, time.Duration(cfg.PollCommandsInterval), nil, rec, log))
		case config.SourceWebSocket:
			sources = append(sources, agent.NewWebSocketSource(agent.WebSocketConfig{
				URL:            cfg.WebSocketURL,
				ReconnectDelay: reconnectDelay,
				Recorder:       rec,
				Logger:         log,
			}))
		case config.SourceMQTT:
			sources = append(sources, agent.NewMQTTSource(agent.MQTTConfig{
				Broker:         cfg.MQTTBroker,
				TopicPrefix:    cfg.MQTTTopicPrefix,
				ReconnectDelay: reconnectDelay,
				Recorder:       rec,
				Logger:         log,
			}))
		case config.SourceNATS:
			sources = append(sources, agent.NewNATSSource(agent.NATSConfig{
				URL:            cfg.NATSURL,
				SubjectPrefix:  cfg.NATSSubjectPrefix,
				ReconnectDelay: reconnectDelay,
				Recorder:       rec,
				Logger:         log,
			}))
		}
	}

	return sources
}

func printBanner(out *console.Console, cfg *config.Config, identity models.DeviceIdentity, ip string, sources []agent.CommandSource) {
	out.Banner(fmt.Sprintf("%s (%s)", cfg.DeviceName, cfg.DeviceType))

	names := make([]string, 0, len(sources))
	for _, src := range sources {
		names = append(names, src.Name())
	}

	deviceID := identity.ID
	if deviceID == "" {
		deviceID = "(register on start)"
	}

	pairs := []string{
		"Version", version.GetFullVersion(),
		"Panel", cfg.PanelURL,
		"Device ID", deviceID,
		"IP address", ip,
		"Report interval", time.Duration(cfg.ReportInterval).String(),
	}

	if cfg.DeviceType == models.DeviceTypeSwitch {
		pairs = append(pairs, "Channels", strconv.Itoa(cfg.NumChannels))
	}

	if len(names) > 0 {
		pairs = append(pairs, "Command sources", fmt.Sprint(names))
	}

	if cfg.MetricsAddr != "" {
		pairs = append(pairs, "Metrics", cfg.MetricsAddr)
	}

	out.Summary(pairs...)
}

// channelChangeHook mirrors each switch transition to the channel gauge and,
// with verbose on, to a "Channel i: ON/OFF" debug line.
func channelChangeHook(rec metrics.Recorder, log logger.Logger) func(models.Channel[bool]) {
	return func(ch models.Channel[bool]) {
		log.Debug().
			Int("channel", ch.Index).
			Bool("on", ch.Value).
			Uint64("change_count", ch.ChangeCount).
			Msg("Channel " + strconv.Itoa(ch.Index) + ": " + onOff(ch.Value))
		rec.SetChannelState(ch.Index, ch.Value)
	}
}

func onOff(on bool) string {
	if on {
		return "ON"
	}

	return "OFF"
}
