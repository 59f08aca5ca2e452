// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes pipeline counters over a Prometheus endpoint.
// Gauges and counters are refreshed from Snapshots at tick boundaries.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blackjk83/netmon-tui/internal/logging"
	"github.com/blackjk83/netmon-tui/internal/pipeline"
)

// Exporter publishes snapshot-derived metrics.
type Exporter struct {
	registry *prometheus.Registry
	logger   *logging.Logger
	server   *http.Server

	packetsCaptured prometheus.Gauge
	bytesCaptured   prometheus.Gauge
	packetRate      prometheus.Gauge
	byteRate        prometheus.Gauge
	activeConns     prometheus.Gauge
	activeFlows     prometheus.Gauge
	flowBandwidth   prometheus.Gauge
	ifaceRxRate     *prometheus.GaugeVec
	ifaceTxRate     *prometheus.GaugeVec
	fwProcessed     prometheus.Gauge
	fwAllowed       prometheus.Gauge
	fwBlocked       prometheus.Gauge
	fwLogged        prometheus.Gauge
	protoPackets    *prometheus.GaugeVec
}

// NewExporter builds the metric set on a fresh registry.
func NewExporter(logger *logging.Logger) *Exporter {
	if logger == nil {
		logger = logging.WithComponent("metrics")
	}

	e := &Exporter{
		registry: prometheus.NewRegistry(),
		logger:   logger,
		packetsCaptured: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netmon_packets_captured_total",
			Help: "Packets captured since startup.",
		}),
		bytesCaptured: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netmon_bytes_captured_total",
			Help: "Bytes captured since startup.",
		}),
		packetRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netmon_packets_per_second",
			Help: "Packet rate over the last 10 seconds.",
		}),
		byteRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netmon_bytes_per_second",
			Help: "Byte rate over the last 10 seconds.",
		}),
		activeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netmon_active_connections",
			Help: "Connections currently tracked.",
		}),
		activeFlows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netmon_active_flows",
			Help: "Flows currently active.",
		}),
		flowBandwidth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netmon_flow_bandwidth_bytes_per_second",
			Help: "Aggregate bandwidth across active flows.",
		}),
		ifaceRxRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netmon_interface_rx_bytes_per_second",
			Help: "Receive rate per interface.",
		}, []string{"interface"}),
		ifaceTxRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netmon_interface_tx_bytes_per_second",
			Help: "Transmit rate per interface.",
		}, []string{"interface"}),
		fwProcessed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netmon_firewall_packets_processed_total",
			Help: "Packets evaluated by the firewall engine.",
		}),
		fwAllowed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netmon_firewall_packets_allowed_total",
			Help: "Packets allowed by the firewall engine.",
		}),
		fwBlocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netmon_firewall_packets_blocked_total",
			Help: "Packets blocked by the firewall engine.",
		}),
		fwLogged: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netmon_firewall_packets_logged_total",
			Help: "Packets logged by the firewall engine.",
		}),
		protoPackets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netmon_protocol_packets_total",
			Help: "Packets classified per protocol.",
		}, []string{"protocol"}),
	}

	e.registry.MustRegister(
		e.packetsCaptured, e.bytesCaptured, e.packetRate, e.byteRate,
		e.activeConns, e.activeFlows, e.flowBandwidth,
		e.ifaceRxRate, e.ifaceTxRate,
		e.fwProcessed, e.fwAllowed, e.fwBlocked, e.fwLogged,
		e.protoPackets,
	)
	return e
}

// Observe refreshes the metric set from a snapshot.
func (e *Exporter) Observe(s pipeline.Snapshot) {
	e.packetsCaptured.Set(float64(s.PacketsCaptured))
	e.bytesCaptured.Set(float64(s.BytesCaptured))
	e.packetRate.Set(s.Network.PacketsPerSecond)
	e.byteRate.Set(s.Network.BytesPerSecond)
	e.activeConns.Set(float64(s.Network.ActiveConnections))
	e.activeFlows.Set(float64(s.FlowStats.TotalActiveFlows))
	e.flowBandwidth.Set(s.FlowStats.TotalBandwidthBps)

	for name, m := range s.Interfaces {
		e.ifaceRxRate.WithLabelValues(name).Set(m.RxRateBps)
		e.ifaceTxRate.WithLabelValues(name).Set(m.TxRateBps)
	}

	e.fwProcessed.Set(float64(s.FirewallStats.TotalProcessed))
	e.fwAllowed.Set(float64(s.FirewallStats.Allowed))
	e.fwBlocked.Set(float64(s.FirewallStats.Blocked))
	e.fwLogged.Set(float64(s.FirewallStats.Logged))

	for proto, info := range s.Network.ProtocolStats {
		e.protoPackets.WithLabelValues(proto.String()).Set(float64(info.PacketCount))
	}
}

// Registry exposes the underlying registry for tests.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns the exposition handler.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve starts the exposition endpoint in the background.
func (e *Exporter) Serve(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	e.server = &http.Server{Addr: listen, Handler: mux}

	go func() {
		e.logger.Info("Metrics endpoint listening", "addr", listen)
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Error("Metrics endpoint failed", "error", err)
		}
	}()
}

// Shutdown stops the exposition endpoint.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return e.server.Shutdown(shutdownCtx)
}
