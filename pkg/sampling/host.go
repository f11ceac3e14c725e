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

package sampling

import (
	"context"
	"net"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/models"
)

// FallbackIPAddress is reported when no outbound interface can be found.
const FallbackIPAddress = "127.0.0.1"

// HostCollector reads uptime and memory usage from the host.
type HostCollector struct {
	log          logger.Logger
	uptimeReader func(context.Context) (uint64, error)
	memoryReader func(context.Context) (*mem.VirtualMemoryStat, error)
}

// NewHostCollector returns a collector backed by gopsutil.
func NewHostCollector(log logger.Logger) *HostCollector {
	return &HostCollector{
		log:          log,
		uptimeReader: host.UptimeWithContext,
		memoryReader: mem.VirtualMemoryWithContext,
	}
}

// Collect returns host stats. A failed reader leaves its field at zero and
// logs a warning; Collect itself never fails.
func (h *HostCollector) Collect(ctx context.Context) models.HostStats {
	var stats models.HostStats

	if uptime, err := h.uptimeReader(ctx); err != nil {
		h.log.Warn().Err(err).Msg("uptime collection failed; reporting zero")
	} else {
		stats.UptimeSeconds = uptime
	}

	if vm, err := h.memoryReader(ctx); err != nil {
		h.log.Warn().Err(err).Msg("memory collection failed; reporting zero")
	} else if vm != nil {
		stats.MemoryUsagePercent = vm.UsedPercent
	}

	return stats
}

// ResolveIPAddress returns configured when set, otherwise the source
// address of an outbound UDP socket, otherwise FallbackIPAddress. No
// packets are sent.
func ResolveIPAddress(ctx context.Context, configured string) string {
	if configured != "" {
		return configured
	}

	dialer := &net.Dialer{
		Timeout: time.Second,
	}

	conn, err := dialer.DialContext(ctx, "udp", "8.8.8.8:80")
	if err != nil {
		return FallbackIPAddress
	}
	defer func() {
		_ = conn.Close()
	}()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || localAddr.IP.IsUnspecified() {
		return FallbackIPAddress
	}

	return localAddr.IP.String()
}
