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

package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"
)

var (
	ErrOTelLoggingDisabled  = errors.New("OTel logging is disabled")
	ErrOTelEndpointRequired = errors.New("OTel endpoint is required when enabled")
)

const (
	defaultOTelServiceName  = "fieldagent"
	defaultOTelBatchTimeout = 5 * time.Second
	defaultOTelScope        = "fieldagent-logger"
	maxAttributeValueLength = 4096
)

// OTelConfig enables export of every log line to an OTLP/gRPC collector.
type OTelConfig struct {
	Enabled        bool              `json:"enabled" yaml:"enabled"`
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	ServiceName    string            `json:"service_name" yaml:"service_name"`
	ServiceVersion string            `json:"service_version" yaml:"service_version"`
	BatchTimeout   time.Duration     `json:"batch_timeout" yaml:"batch_timeout"`
	Insecure       bool              `json:"insecure" yaml:"insecure"`
}

// DefaultOTelConfig reads the standard OTEL_* environment variables.
func DefaultOTelConfig() OTelConfig {
	batchTimeout := defaultOTelBatchTimeout

	if raw := getEnvOrDefault("OTEL_EXPORTER_OTLP_LOGS_TIMEOUT", ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			batchTimeout = d
		}
	}

	return OTelConfig{
		Enabled:      getEnvBoolOrDefault("OTEL_LOGS_ENABLED", false),
		Endpoint:     getEnvOrDefault("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", ""),
		Headers:      ParseHeaders(getEnvOrDefault("OTEL_EXPORTER_OTLP_LOGS_HEADERS", "")),
		ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", defaultOTelServiceName),
		BatchTimeout: batchTimeout,
		Insecure:     getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_LOGS_INSECURE", false),
	}
}

// ParseHeaders parses "k1=v1,k2=v2". Pairs without "=" are skipped.
func ParseHeaders(raw string) map[string]string {
	headers := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		if kv := strings.SplitN(pair, "=", 2); len(kv) == 2 {
			if key := strings.TrimSpace(kv[0]); key != "" {
				headers[key] = strings.TrimSpace(kv[1])
			}
		}
	}

	return headers
}

// OTelWriter is an io.Writer that turns zerolog JSON lines into OTel log
// records. The "component" field selects the instrumentation scope.
type OTelWriter struct {
	ctx      context.Context
	provider *sdklog.LoggerProvider

	mu      sync.Mutex
	loggers map[string]otellog.Logger
}

// NewOTelWriter dials nothing up front; the gRPC exporter connects lazily.
func NewOTelWriter(ctx context.Context, config OTelConfig) (*OTelWriter, error) {
	if !config.Enabled {
		return nil, ErrOTelLoggingDisabled
	}

	if config.Endpoint == "" {
		return nil, ErrOTelEndpointRequired
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(config.Endpoint)}

	if config.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(config.Headers))
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	return newOTelWriter(ctx, config, exporter)
}

func newOTelWriter(ctx context.Context, config OTelConfig, exporter sdklog.Exporter) (*OTelWriter, error) {
	serviceName := config.ServiceName
	if serviceName == "" {
		serviceName = defaultOTelServiceName
	}

	attrs := []resource.Option{resource.WithAttributes(semconv.ServiceName(serviceName))}
	if config.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(config.ServiceVersion)))
	}

	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	batchTimeout := config.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = defaultOTelBatchTimeout
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter, sdklog.WithExportTimeout(batchTimeout))),
	)

	global.SetLoggerProvider(provider)

	return &OTelWriter{
		ctx:      ctx,
		provider: provider,
		loggers:  make(map[string]otellog.Logger),
	}, nil
}

// Write never fails; lines that are not JSON objects are dropped.
func (w *OTelWriter) Write(p []byte) (int, error) {
	entry := make(map[string]interface{})
	if err := json.Unmarshal(p, &entry); err != nil {
		return len(p), nil
	}

	var record otellog.Record

	if ts, ok := entry["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			record.SetTimestamp(parsed)
			delete(entry, "time")
		}
	}

	if level, ok := entry["level"].(string); ok {
		record.SetSeverity(mapZerologLevelToOTel(level))
		record.SetSeverityText(level)
		delete(entry, "level")
	}

	if msg, ok := entry["message"].(string); ok {
		record.SetBody(otellog.StringValue(msg))
		delete(entry, "message")
	}

	scope := defaultOTelScope
	if component, ok := entry["component"].(string); ok && component != "" {
		scope = component
		delete(entry, "component")
	}

	for key, value := range entry {
		record.AddAttributes(attributeFor(key, value))
	}

	w.loggerFor(scope).Emit(w.ctx, record)

	return len(p), nil
}

// Shutdown flushes buffered records and stops the exporter.
func (w *OTelWriter) Shutdown(ctx context.Context) error {
	if err := w.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down OTel log provider: %w", err)
	}

	return nil
}

func (w *OTelWriter) loggerFor(scope string) otellog.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, ok := w.loggers[scope]
	if !ok {
		l = w.provider.Logger(scope)
		w.loggers[scope] = l
	}

	return l
}

func attributeFor(key string, value interface{}) otellog.KeyValue {
	switch v := value.(type) {
	case string:
		return otellog.String(key, truncateString(v))
	case bool:
		return otellog.Bool(key, v)
	case float64:
		return otellog.Float64(key, v)
	case nil:
		return otellog.String(key, "null")
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return otellog.String(key, truncateString(fmt.Sprintf("%v", v)))
		}

		return otellog.String(key, truncateString(string(raw)))
	}
}

func truncateString(value string) string {
	if len(value) <= maxAttributeValueLength {
		return value
	}

	truncated := value[:maxAttributeValueLength-3]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	return truncated + "..."
}

func mapZerologLevelToOTel(level string) otellog.Severity {
	switch strings.ToLower(level) {
	case "trace":
		return otellog.SeverityTrace
	case "debug":
		return otellog.SeverityDebug
	case "info":
		return otellog.SeverityInfo
	case "warn", "warning":
		return otellog.SeverityWarn
	case "error":
		return otellog.SeverityError
	case "fatal", "panic":
		return otellog.SeverityFatal
	default:
		return otellog.SeverityInfo
	}
}
