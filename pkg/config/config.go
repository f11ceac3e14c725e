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

// Package config loads the agent configuration from a file and the
// environment, applies defaults, and validates it.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/models"
)

// EnvPrefix is prepended to every environment override, e.g. FIELDAGENT_PANEL_URL.
const EnvPrefix = "FIELDAGENT_"

// Command source names accepted in command_sources.
const (
	SourceConsole   = "console"
	SourcePoll      = "poll"
	SourceWebSocket = "websocket"
	SourceMQTT      = "mqtt"
	SourceNATS      = "nats"

	// SourceNone disables every command source.
	SourceNone = "none"
)

// Defaults.
const (
	DefaultReportInterval       = 30 * time.Second
	DefaultPollCommandsInterval = 5 * time.Second
	DefaultRequestTimeout       = 10 * time.Second
	DefaultShutdownGracePeriod  = 5 * time.Second
	DefaultMQTTTopicPrefix      = "fieldagent/devices"
	DefaultNATSSubjectPrefix    = "devices"
	DefaultLogLevel             = "info"
)

var (
	errMissingPanelURL   = errors.New("panel_url is required")
	errInvalidPanelURL   = errors.New("panel_url must be an absolute http(s) URL")
	errInvalidDeviceType = errors.New("device_type must be switch or sensor")
	errNonPositive       = errors.New("must be greater than zero")
	errUnknownSource     = errors.New("unknown command source")
	errSensorSources     = errors.New("sensor devices do not accept command sources")
	errMissingEndpoint   = errors.New("command source requires an endpoint")
	errInvalidLogFormat  = errors.New("log_format must be console or json")
	errInvalidHeader     = errors.New("otel_headers entries must be key=value")
)

// ConfigLoader fills dst from the resource at path.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Config is the agent configuration. It is loaded once at startup and is
// read-only afterwards.
type Config struct {
	DeviceID                string            `json:"device_id"`
	DeviceName              string            `json:"device_name"`
	DeviceType              models.DeviceType `json:"device_type"`
	PanelURL                string            `json:"panel_url"`
	IPAddress               string            `json:"ip_address"`
	ReportInterval          models.Duration   `json:"report_interval"`
	PollCommandsInterval    models.Duration   `json:"poll_commands_interval"`
	NumChannels             int               `json:"num_channels"`
	Verbose                 bool              `json:"verbose"`
	FailOnRegistrationError *bool             `json:"fail_on_registration_error,omitempty"`
	RequestTimeout          models.Duration   `json:"request_timeout"`
	ShutdownGracePeriod     models.Duration   `json:"shutdown_grace_period"`
	CommandSources          []string          `json:"command_sources"`
	WebSocketURL            string            `json:"ws_url"`
	MQTTBroker              string            `json:"mqtt_broker"`
	MQTTTopicPrefix         string            `json:"mqtt_topic_prefix"`
	NATSURL                 string            `json:"nats_url"`
	NATSSubjectPrefix       string            `json:"nats_subject_prefix"`
	MetricsAddr             string            `json:"metrics_addr"`
	LogLevel                string            `json:"log_level"`
	LogFormat               string            `json:"log_format"`
	OTelEndpoint            string            `json:"otel_endpoint"`
	OTelInsecure            bool              `json:"otel_insecure"`
	OTelHeaders             string            `json:"otel_headers"`
}

// LoaderForPath picks the file loader by extension: .json files use
// FileConfigLoader, everything else is read as key=value INI.
func LoaderForPath(path string) ConfigLoader {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return &FileConfigLoader{}
	}

	return &INIConfigLoader{}
}

// Load reads path, overlays FIELDAGENT_* environment variables, applies
// defaults and validates the result. Every failure wraps models.ErrConfig.
func Load(ctx context.Context, path string, log logger.Logger) (*Config, error) {
	cfg := &Config{}

	if err := LoaderForPath(path).Load(ctx, path, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConfig, err)
	}

	if err := NewEnvConfigLoader(log, EnvPrefix).Load(ctx, "", cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConfig, err)
	}

	cfg.ApplyDefaults(log)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills unset options and clamps num_channels to [1, MaxChannels].
func (c *Config) ApplyDefaults(log logger.Logger) {
	if c.DeviceType == "" {
		c.DeviceType = models.DeviceTypeSwitch
	}

	c.DeviceType = models.DeviceType(strings.ToLower(string(c.DeviceType)))

	if c.DeviceName == "" {
		c.DeviceName = "fieldagent-" + string(c.DeviceType)
	}

	c.PanelURL = strings.TrimRight(c.PanelURL, "/")

	if c.ReportInterval == 0 {
		c.ReportInterval = models.Duration(DefaultReportInterval)
	}

	if c.PollCommandsInterval == 0 {
		c.PollCommandsInterval = models.Duration(DefaultPollCommandsInterval)
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = models.Duration(DefaultRequestTimeout)
	}

	if c.ShutdownGracePeriod == 0 {
		c.ShutdownGracePeriod = models.Duration(DefaultShutdownGracePeriod)
	}

	c.applyChannelDefaults(log)

	if c.CommandSources == nil && c.DeviceType == models.DeviceTypeSwitch {
		c.CommandSources = []string{SourceConsole, SourcePoll}
	}

	c.CommandSources = normalizeSources(c.CommandSources)

	if c.MQTTTopicPrefix == "" {
		c.MQTTTopicPrefix = DefaultMQTTTopicPrefix
	}

	if c.NATSSubjectPrefix == "" {
		c.NATSSubjectPrefix = DefaultNATSSubjectPrefix
	}

	if c.WebSocketURL == "" {
		c.WebSocketURL = websocketURLFromPanel(c.PanelURL)
	}

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}

	if c.LogFormat == "" {
		c.LogFormat = logger.FormatConsole
	}
}

func (c *Config) applyChannelDefaults(log logger.Logger) {
	if c.DeviceType == models.DeviceTypeSensor {
		c.NumChannels = models.SensorChannels

		return
	}

	requested := c.NumChannels

	switch {
	case requested == 0:
		c.NumChannels = models.MaxChannels

		return
	case requested < 1:
		c.NumChannels = 1
	case requested > models.MaxChannels:
		c.NumChannels = models.MaxChannels
	default:
		return
	}

	if log != nil {
		log.Warn().
			Int("requested", requested).
			Int("num_channels", c.NumChannels).
			Msg("num_channels out of range, clamped")
	}
}

// Validate checks the configuration. Errors wrap models.ErrConfig.
func (c *Config) Validate() error {
	var errs []error

	if !c.DeviceType.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", errInvalidDeviceType, c.DeviceType))
	}

	if err := validatePanelURL(c.PanelURL); err != nil {
		errs = append(errs, err)
	}

	for name, d := range map[string]models.Duration{
		"report_interval":        c.ReportInterval,
		"poll_commands_interval": c.PollCommandsInterval,
		"request_timeout":        c.RequestTimeout,
		"shutdown_grace_period":  c.ShutdownGracePeriod,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s %w", name, errNonPositive))
		}
	}

	errs = append(errs, c.validateSources()...)

	if c.LogFormat != logger.FormatConsole && c.LogFormat != logger.FormatJSON {
		errs = append(errs, fmt.Errorf("%w: %q", errInvalidLogFormat, c.LogFormat))
	}

	for _, pair := range strings.Split(c.OTelHeaders, ",") {
		if pair = strings.TrimSpace(pair); pair != "" && !strings.Contains(pair, "=") {
			errs = append(errs, fmt.Errorf("%w: %q", errInvalidHeader, pair))
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", models.ErrConfig, errors.Join(errs...))
}

// LogExport returns the OTLP log export settings. The OTEL_* environment
// variables are the base; otel_endpoint enables export and the other otel_*
// keys override the environment when set.
func (c *Config) LogExport(serviceVersion string) logger.OTelConfig {
	out := logger.DefaultOTelConfig()
	out.ServiceVersion = serviceVersion

	if c.OTelEndpoint != "" {
		out.Enabled = true
		out.Endpoint = c.OTelEndpoint
	}

	if c.OTelInsecure {
		out.Insecure = true
	}

	for k, v := range logger.ParseHeaders(c.OTelHeaders) {
		out.Headers[k] = v
	}

	return out
}

func (c *Config) validateSources() []error {
	if c.DeviceType == models.DeviceTypeSensor && len(c.CommandSources) > 0 {
		return []error{fmt.Errorf("%w: %s", errSensorSources, strings.Join(c.CommandSources, ","))}
	}

	var errs []error

	for _, name := range c.CommandSources {
		switch name {
		case SourceConsole, SourcePoll:
		case SourceWebSocket:
			if c.WebSocketURL == "" {
				errs = append(errs, fmt.Errorf("%w: %s needs ws_url", errMissingEndpoint, name))
			}
		case SourceMQTT:
			if c.MQTTBroker == "" {
				errs = append(errs, fmt.Errorf("%w: %s needs mqtt_broker", errMissingEndpoint, name))
			}
		case SourceNATS:
			if c.NATSURL == "" {
				errs = append(errs, fmt.Errorf("%w: %s needs nats_url", errMissingEndpoint, name))
			}
		default:
			errs = append(errs, fmt.Errorf("%w: %q", errUnknownSource, name))
		}
	}

	return errs
}

// ShouldFailOnRegistrationError reports whether a failed handshake is fatal.
// When unset, sensors fail hard and switches keep retrying.
func (c *Config) ShouldFailOnRegistrationError() bool {
	if c.FailOnRegistrationError != nil {
		return *c.FailOnRegistrationError
	}

	return c.DeviceType == models.DeviceTypeSensor
}

func validatePanelURL(raw string) error {
	if raw == "" {
		return errMissingPanelURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidPanelURL, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", errInvalidPanelURL, raw)
	}

	return nil
}

func normalizeSources(in []string) []string {
	out := make([]string, 0, len(in))

	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || slices.Contains(out, s) {
			continue
		}

		if s == SourceNone {
			return []string{}
		}

		out = append(out, s)
	}

	return out
}

// websocketURLFromPanel maps the panel REST base (usually ending in /api)
// to its /ws broadcast endpoint.
func websocketURLFromPanel(panel string) string {
	u, err := url.Parse(panel)
	if err != nil || u.Host == "" {
		return ""
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return ""
	}

	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/api") + "/ws"

	return u.String()
}
