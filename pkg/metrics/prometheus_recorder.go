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

package metrics

import (
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "fieldagent"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reportDuration *prom.HistogramVec
	reports        *prom.CounterVec
	registrations  *prom.CounterVec
	commands       *prom.CounterVec
	sourceErrors   *prom.CounterVec
	channelState   *prom.GaugeVec
	sensorReading  *prom.GaugeVec
	runtimeState   *prom.GaugeVec

	stateMu   sync.Mutex
	lastState string
}

// NewPrometheusRecorder constructs the agent metrics and registers them,
// together with the Go and process collectors, on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	pr := &PrometheusRecorder{
		reportDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Duration of status report attempts",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
		reports: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Status report attempts by result",
		}, []string{"result"}),
		registrations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "registration_attempts_total",
			Help:      "Registration handshake attempts by result",
		}, []string{"result"}),
		commands: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Executed commands by source, verb and result",
		}, []string{"source", "verb", "result"}),
		sourceErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "command_source_errors_total",
			Help:      "Errors observed by command sources",
		}, []string{"source"}),
		channelState: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_on",
			Help:      "Relay channel state (1 = on)",
		}, []string{"channel"}),
		sensorReading: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_reading",
			Help:      "Latest sensor reading by quantity",
		}, []string{"quantity"}),
		runtimeState: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "runtime_state",
			Help:      "Current lifecycle state (1 for the active state)",
		}, []string{"state"}),
	}

	reg.MustRegister(
		pr.reportDuration, pr.reports, pr.registrations, pr.commands,
		pr.sourceErrors, pr.channelState, pr.sensorReading, pr.runtimeState,
		promcollect.NewGoCollector(),
		promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}),
	)

	return pr
}

func (p *PrometheusRecorder) ObserveReport(d time.Duration, success bool) {
	res := resultLabel(success)
	p.reportDuration.WithLabelValues(res).Observe(d.Seconds())
	p.reports.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) ObserveRegistration(success bool) {
	p.registrations.WithLabelValues(resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) IncCommand(source, verb, result string) {
	p.commands.WithLabelValues(source, verb, result).Inc()
}

func (p *PrometheusRecorder) IncSourceError(source string) {
	p.sourceErrors.WithLabelValues(source).Inc()
}

func (p *PrometheusRecorder) SetChannelState(channel int, on bool) {
	v := 0.0
	if on {
		v = 1
	}

	p.channelState.WithLabelValues(strconv.Itoa(channel)).Set(v)
}

func (p *PrometheusRecorder) SetSensorReading(temperature, humidity float64) {
	p.sensorReading.WithLabelValues("temperature_celsius").Set(temperature)
	p.sensorReading.WithLabelValues("humidity_percent").Set(humidity)
}

func (p *PrometheusRecorder) SetRuntimeState(state string) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	if p.lastState != "" {
		p.runtimeState.WithLabelValues(p.lastState).Set(0)
	}

	p.runtimeState.WithLabelValues(state).Set(1)
	p.lastState = state
}
