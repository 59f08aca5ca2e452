// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package analyzer derives bandwidth analysis, protocol breakdown, and
// traffic-pattern detections from the active flow set.
package analyzer

import (
	"fmt"
	"math"
	"net/netip"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/blackjk83/netmon-tui/internal/flows"
	"github.com/blackjk83/netmon-tui/internal/protocols"
)

// PatternType tags a detected traffic pattern.
type PatternType int

const (
	PatternBurst PatternType = iota
	PatternSteadyStream
	PatternPeriodicSpikes
	PatternAnomaly
	PatternDDoS
	PatternPortScan
	PatternExfiltration
)

func (p PatternType) String() string {
	switch p {
	case PatternBurst:
		return "BURST"
	case PatternSteadyStream:
		return "STEADY_STREAM"
	case PatternPeriodicSpikes:
		return "PERIODIC_SPIKES"
	case PatternAnomaly:
		return "ANOMALY"
	case PatternDDoS:
		return "DDOS"
	case PatternPortScan:
		return "PORT_SCAN"
	default:
		return "EXFILTRATION"
	}
}

// Pattern is one detection.
type Pattern struct {
	ID           string
	Type         PatternType
	Description  string
	Confidence   float64
	DetectedAt   time.Time
	RelatedFlows []string
}

// BandwidthSample is one per-tick bandwidth record.
type BandwidthSample struct {
	Timestamp   time.Time
	TotalBps    float64
	InboundBps  float64
	OutboundBps float64
	InternalBps float64
}

// BandwidthAnalysis summarizes the sample history.
type BandwidthAnalysis struct {
	TotalBandwidth    float64
	InboundBandwidth  float64
	OutboundBandwidth float64
	InternalBandwidth float64
	PeakBandwidth     float64
	AverageBandwidth  float64
	Utilization       float64
	History           []BandwidthSample
}

// ProtocolStats accumulates per-protocol flow aggregates.
type ProtocolStats struct {
	FlowCount     int
	TotalBytes    uint64
	TotalPackets  uint64
	BandwidthBps  float64
	PacketRatePps float64
	Percentage    float64
}

// ProtocolBreakdown is the per-protocol view of the active flow set.
type ProtocolBreakdown struct {
	Stats          map[protocols.Protocol]ProtocolStats
	TopProtocols   []ProtocolShare
	TotalFlows     int
	TotalBandwidth float64
}

// ProtocolShare pairs a protocol with its bandwidth share.
type ProtocolShare struct {
	Protocol   protocols.Protocol
	Percentage float64
}

// Result is a full analysis pass.
type Result struct {
	Bandwidth  BandwidthAnalysis
	Breakdown  ProtocolBreakdown
	Patterns   []Pattern
	Geographic GeographicAnalysis
	Timestamp  time.Time
}

const (
	maxSamples  = 3600
	maxPatterns = 100
	// Window over which peak and average bandwidth are computed.
	statsWindow = 300
	// nominal 1 Gbps link for utilization
	linkCapacityBps = 1_000_000_000
	// minimum gap between re-detections of the same pattern+source
	patternDebounce = 30 * time.Second
)

// Analyzer computes periodic traffic analysis. If polled faster than the
// sample interval it returns the cached last result unchanged.
type Analyzer struct {
	samples        []BandwidthSample
	patterns       []Pattern
	lastAnalysis   time.Time
	haveAnalysis   bool
	cached         Result
	sampleInterval time.Duration

	burstThreshold   float64
	anomalyThreshold float64
	ddosThreshold    int
	scanThreshold    int

	lastDetected map[string]time.Time
	geo          *GeoResolver
	now          func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSampleInterval overrides the minimum time between analysis passes.
func WithSampleInterval(d time.Duration) Option {
	return func(a *Analyzer) { a.sampleInterval = d }
}

// WithBurstThreshold overrides the burst multiplier.
func WithBurstThreshold(v float64) Option {
	return func(a *Analyzer) { a.burstThreshold = v }
}

// WithGeoResolver attaches a GeoIP resolver to the geographic slot.
func WithGeoResolver(geo *GeoResolver) Option {
	return func(a *Analyzer) { a.geo = geo }
}

// New creates an analyzer with the standard thresholds.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		sampleInterval:   time.Second,
		burstThreshold:   10,
		anomalyThreshold: 5,
		ddosThreshold:    100,
		scanThreshold:    20,
		lastDetected:     make(map[string]time.Time),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs one analysis pass over the active flows, or returns the
// cached result when called again within the sample interval.
func (a *Analyzer) Analyze(active map[string]flows.Flow) Result {
	now := a.now()
	if a.haveAnalysis && now.Sub(a.lastAnalysis) < a.sampleInterval {
		return a.cached
	}
	a.lastAnalysis = now

	sample := a.collectSample(active, now)
	a.samples = append(a.samples, sample)
	if len(a.samples) > maxSamples {
		a.samples = a.samples[len(a.samples)-maxSamples:]
	}

	for _, p := range a.detect(active, now) {
		a.patterns = append(a.patterns, p)
	}
	if len(a.patterns) > maxPatterns {
		a.patterns = a.patterns[len(a.patterns)-maxPatterns:]
	}

	result := Result{
		Bandwidth:  a.analyzeBandwidth(),
		Breakdown:  a.analyzeProtocols(active),
		Patterns:   append([]Pattern(nil), a.patterns...),
		Geographic: a.analyzeGeography(active),
		Timestamp:  now,
	}
	a.cached = result
	a.haveAnalysis = true
	return result
}

func (a *Analyzer) collectSample(active map[string]flows.Flow, now time.Time) BandwidthSample {
	var sample BandwidthSample
	sample.Timestamp = now

	for _, flow := range active {
		switch flow.Direction {
		case flows.DirectionInbound:
			sample.InboundBps += flow.BytesPerSecond
		case flows.DirectionOutbound:
			sample.OutboundBps += flow.BytesPerSecond
		case flows.DirectionInternal:
			sample.InternalBps += flow.BytesPerSecond
		default:
			sample.TotalBps += flow.BytesPerSecond
		}
	}
	sample.TotalBps += sample.InboundBps + sample.OutboundBps + sample.InternalBps
	return sample
}

func (a *Analyzer) analyzeBandwidth() BandwidthAnalysis {
	if len(a.samples) == 0 {
		return BandwidthAnalysis{}
	}

	latest := a.samples[len(a.samples)-1]
	analysis := BandwidthAnalysis{
		TotalBandwidth:    latest.TotalBps,
		InboundBandwidth:  latest.InboundBps,
		OutboundBandwidth: latest.OutboundBps,
		InternalBandwidth: latest.InternalBps,
		History:           append([]BandwidthSample(nil), a.samples...),
	}

	recent := a.samples
	if len(recent) > statsWindow {
		recent = recent[len(recent)-statsWindow:]
	}
	var sum float64
	for _, s := range recent {
		if s.TotalBps > analysis.PeakBandwidth {
			analysis.PeakBandwidth = s.TotalBps
		}
		sum += s.TotalBps
	}
	analysis.AverageBandwidth = sum / float64(len(recent))
	analysis.Utilization = math.Min(latest.TotalBps/linkCapacityBps*100, 100)

	return analysis
}

func (a *Analyzer) analyzeProtocols(active map[string]flows.Flow) ProtocolBreakdown {
	breakdown := ProtocolBreakdown{
		Stats:      make(map[protocols.Protocol]ProtocolStats),
		TotalFlows: len(active),
	}

	for _, flow := range active {
		stats := breakdown.Stats[flow.Protocol]
		stats.FlowCount++
		stats.TotalBytes += flow.ByteCount
		stats.TotalPackets += flow.PacketCount
		stats.BandwidthBps += flow.BytesPerSecond
		stats.PacketRatePps += flow.PacketsPerSecond
		breakdown.Stats[flow.Protocol] = stats
		breakdown.TotalBandwidth += flow.BytesPerSecond
	}

	for proto, stats := range breakdown.Stats {
		if breakdown.TotalBandwidth > 0 {
			stats.Percentage = stats.BandwidthBps / breakdown.TotalBandwidth * 100
		}
		breakdown.Stats[proto] = stats
		breakdown.TopProtocols = append(breakdown.TopProtocols, ProtocolShare{proto, stats.Percentage})
	}
	sort.Slice(breakdown.TopProtocols, func(i, j int) bool {
		if breakdown.TopProtocols[i].Percentage != breakdown.TopProtocols[j].Percentage {
			return breakdown.TopProtocols[i].Percentage > breakdown.TopProtocols[j].Percentage
		}
		return breakdown.TopProtocols[i].Protocol.String() < breakdown.TopProtocols[j].Protocol.String()
	})

	return breakdown
}

// detect runs the pattern detectors, each contributing at most one pattern
// per pass, debounced per pattern type and source.
func (a *Analyzer) detect(active map[string]flows.Flow, now time.Time) []Pattern {
	var detected []Pattern

	if p, ok := a.detectBurst(now); ok && a.debounce(p, now) {
		detected = append(detected, p)
	}
	if p, ok := a.detectDDoS(active, now); ok && a.debounce(p, now) {
		detected = append(detected, p)
	}
	if p, ok := a.detectPortScan(active, now); ok && a.debounce(p, now) {
		detected = append(detected, p)
	}
	if p, ok := a.detectAnomaly(now); ok && a.debounce(p, now) {
		detected = append(detected, p)
	}

	return detected
}

func (a *Analyzer) debounce(p Pattern, now time.Time) bool {
	key := p.Type.String()
	if len(p.RelatedFlows) > 0 {
		key += "|" + p.RelatedFlows[0]
	}
	if last, ok := a.lastDetected[key]; ok && now.Sub(last) < patternDebounce {
		return false
	}
	a.lastDetected[key] = now
	return true
}

func (a *Analyzer) detectBurst(now time.Time) (Pattern, bool) {
	if len(a.samples) < 10 {
		return Pattern{}, false
	}

	// The mean is taken over the samples preceding the current one; a mean
	// that includes the current sample can never be exceeded tenfold.
	current := a.samples[len(a.samples)-1].TotalBps
	prior := a.samples[:len(a.samples)-1]
	if len(prior) > 10 {
		prior = prior[len(prior)-10:]
	}
	var sum float64
	for _, s := range prior {
		sum += s.TotalBps
	}
	avg := sum / float64(len(prior))

	if current <= avg*a.burstThreshold {
		return Pattern{}, false
	}
	return Pattern{
		ID:          uuid.NewString(),
		Type:        PatternBurst,
		Description: fmt.Sprintf("Traffic burst detected: %.2f MB/s (%.0fx average)", current/1_000_000, current/math.Max(avg, 1)),
		Confidence:  0.8,
		DetectedAt:  now,
	}, true
}

func (a *Analyzer) detectDDoS(active map[string]flows.Flow, now time.Time) (Pattern, bool) {
	bySource := make(map[netip.Addr][]string)
	for id, flow := range active {
		addr := flow.Src.Addr()
		bySource[addr] = append(bySource[addr], id)
	}

	for source, ids := range bySource {
		if len(ids) <= a.ddosThreshold {
			continue
		}
		sort.Strings(ids)
		return Pattern{
			ID:           uuid.NewString(),
			Type:         PatternDDoS,
			Description:  fmt.Sprintf("Potential DDoS from %s: %d connections", source, len(ids)),
			Confidence:   0.9,
			DetectedAt:   now,
			RelatedFlows: ids,
		}, true
	}
	return Pattern{}, false
}

func (a *Analyzer) detectPortScan(active map[string]flows.Flow, now time.Time) (Pattern, bool) {
	ports := make(map[netip.Addr]map[uint16]struct{})
	for _, flow := range active {
		addr := flow.Src.Addr()
		if ports[addr] == nil {
			ports[addr] = make(map[uint16]struct{})
		}
		ports[addr][flow.Dst.Port()] = struct{}{}
	}

	for source, seen := range ports {
		if len(seen) <= a.scanThreshold {
			continue
		}
		var related []string
		for id, flow := range active {
			if flow.Src.Addr() == source {
				related = append(related, id)
			}
		}
		sort.Strings(related)
		return Pattern{
			ID:           uuid.NewString(),
			Type:         PatternPortScan,
			Description:  fmt.Sprintf("Port scan detected from %s: %d unique ports", source, len(seen)),
			Confidence:   0.85,
			DetectedAt:   now,
			RelatedFlows: related,
		}, true
	}
	return Pattern{}, false
}

func (a *Analyzer) detectAnomaly(now time.Time) (Pattern, bool) {
	if len(a.samples) < 60 {
		return Pattern{}, false
	}

	recent := a.samples[len(a.samples)-60:]
	var sum float64
	for _, s := range recent {
		sum += s.TotalBps
	}
	mean := sum / float64(len(recent))

	var variance float64
	for _, s := range recent {
		variance += (s.TotalBps - mean) * (s.TotalBps - mean)
	}
	variance /= float64(len(recent))
	stddev := math.Sqrt(variance)

	current := recent[len(recent)-1].TotalBps
	if math.Abs(current-mean) <= stddev*a.anomalyThreshold {
		return Pattern{}, false
	}
	return Pattern{
		ID:   uuid.NewString(),
		Type: PatternAnomaly,
		Description: fmt.Sprintf("Traffic anomaly detected: %.2f MB/s (%.1fσ from mean)",
			current/1_000_000, math.Abs(current-mean)/math.Max(stddev, 1)),
		Confidence: 0.7,
		DetectedAt: now,
	}, true
}

// PatternHistory returns the retained detections.
func (a *Analyzer) PatternHistory() []Pattern {
	return append([]Pattern(nil), a.patterns...)
}

// BandwidthHistory returns the retained samples.
func (a *Analyzer) BandwidthHistory() []BandwidthSample {
	return append([]BandwidthSample(nil), a.samples...)
}

// SetNow overrides the analyzer's clock. Test hook.
func (a *Analyzer) SetNow(f func() time.Time) {
	a.now = f
}
