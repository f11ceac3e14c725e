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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/carverauto/fieldagent/pkg/logger"
)

// consoleTimeFormat is the device console timestamp, e.g. "2006-01-02 15:04:05".
const consoleTimeFormat = "2006-01-02 15:04:05"

// NewLogger builds a zerolog-backed logger.Logger from config. If config is
// nil, it uses logger.DefaultConfig().
func NewLogger(config *logger.Config) (logger.Logger, error) {
	zl, err := newZerolog(config, nil, nil)
	if err != nil {
		return nil, err
	}

	return logger.Wrap(zl), nil
}

// CreateComponentLogger creates a logger for a specific component.
func CreateComponentLogger(component string, config *logger.Config) (logger.Logger, error) {
	zl, err := newZerolog(config, nil, nil)
	if err != nil {
		return nil, err
	}

	return logger.Wrap(zl.With().Str("component", component).Logger()), nil
}

// ShutdownFunc flushes and stops the log exporter.
type ShutdownFunc func(ctx context.Context) error

// CreateExportingLogger is CreateComponentLogger that also ships every line
// to the OTLP collector in config.OTel when it is enabled. The returned
// ShutdownFunc is a no-op when export is off.
func CreateExportingLogger(ctx context.Context, component string, config *logger.Config) (logger.Logger, ShutdownFunc, error) {
	if config == nil {
		config = logger.DefaultConfig()
	}

	noop := func(context.Context) error { return nil }

	otelWriter, err := logger.NewOTelWriter(ctx, config.OTel)
	if errors.Is(err, logger.ErrOTelLoggingDisabled) {
		log, err := CreateComponentLogger(component, config)

		return log, noop, err
	}

	if err != nil {
		return nil, noop, fmt.Errorf("failed to initialize OTel logging: %w", err)
	}

	zl, err := newZerolog(config, nil, otelWriter)
	if err != nil {
		_ = otelWriter.Shutdown(ctx)

		return nil, noop, err
	}

	return logger.Wrap(zl.With().Str("component", component).Logger()), otelWriter.Shutdown, nil
}

func newZerolog(config *logger.Config, override, export io.Writer) (zerolog.Logger, error) {
	if config == nil {
		config = logger.DefaultConfig()
	}

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	}

	if override != nil {
		output = override
	}

	level := zerolog.InfoLevel
	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", config.Level, err)
		}
	}

	timeFormat := time.RFC3339
	if config.TimeFormat != "" {
		timeFormat = config.TimeFormat
	}

	switch config.Format {
	case "", logger.FormatJSON:
		zerolog.TimeFieldFormat = timeFormat
	case logger.FormatConsole:
		if config.TimeFormat == "" {
			timeFormat = consoleTimeFormat
		}

		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: timeFormat,
			NoColor:    true,
		}
	default:
		return zerolog.Logger{}, fmt.Errorf("unknown log format %q", config.Format)
	}

	if export != nil {
		output = zerolog.MultiLevelWriter(output, export)
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}
