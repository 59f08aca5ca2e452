// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package analyzer

import (
	"net"
	"net/netip"
	"sort"

	"github.com/oschwald/geoip2-golang"

	"github.com/blackjk83/netmon-tui/internal/errors"
	"github.com/blackjk83/netmon-tui/internal/flows"
)

// ThreatLevel grades a country's activity.
type ThreatLevel int

const (
	ThreatLow ThreatLevel = iota
	ThreatMedium
	ThreatHigh
	ThreatCritical
)

func (t ThreatLevel) String() string {
	switch t {
	case ThreatMedium:
		return "MEDIUM"
	case ThreatHigh:
		return "HIGH"
	case ThreatCritical:
		return "CRITICAL"
	default:
		return "LOW"
	}
}

// CountryStats aggregates activity per country.
type CountryStats struct {
	ConnectionCount int
	TotalBandwidth  float64
	Threat          ThreatLevel
}

// GeographicAnalysis is the analyzer's geographic slot. Without a resolver
// it stays empty.
type GeographicAnalysis struct {
	Countries    map[string]CountryStats
	TopCountries []CountryShare
}

// CountryShare pairs a country code with its connection count.
type CountryShare struct {
	Country     string
	Connections int
}

// GeoResolver resolves remote endpoints to country codes using a MaxMind
// database.
type GeoResolver struct {
	db *geoip2.Reader
}

// OpenGeoResolver opens a MaxMind country/city database.
func OpenGeoResolver(path string) (*GeoResolver, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "opening GeoIP database %s", path)
	}
	return &GeoResolver{db: db}, nil
}

// Close releases the database.
func (g *GeoResolver) Close() error {
	return g.db.Close()
}

// Country returns the ISO country code for an address, or "" when unknown.
func (g *GeoResolver) Country(addr netip.Addr) string {
	record, err := g.db.Country(net.IP(addr.AsSlice()))
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

// analyzeGeography fills the geographic slot when a resolver is attached;
// otherwise it returns the empty analysis.
func (a *Analyzer) analyzeGeography(active map[string]flows.Flow) GeographicAnalysis {
	analysis := GeographicAnalysis{}
	if a.geo == nil {
		return analysis
	}

	analysis.Countries = make(map[string]CountryStats)
	for _, flow := range active {
		remote := flow.Dst.Addr()
		if flow.Direction == flows.DirectionInbound {
			remote = flow.Src.Addr()
		}
		code := a.geo.Country(remote)
		if code == "" {
			continue
		}
		stats := analysis.Countries[code]
		stats.ConnectionCount++
		stats.TotalBandwidth += flow.BytesPerSecond
		stats.Threat = threatFor(stats.ConnectionCount)
		analysis.Countries[code] = stats
	}

	for code, stats := range analysis.Countries {
		analysis.TopCountries = append(analysis.TopCountries, CountryShare{code, stats.ConnectionCount})
	}
	sort.Slice(analysis.TopCountries, func(i, j int) bool {
		if analysis.TopCountries[i].Connections != analysis.TopCountries[j].Connections {
			return analysis.TopCountries[i].Connections > analysis.TopCountries[j].Connections
		}
		return analysis.TopCountries[i].Country < analysis.TopCountries[j].Country
	})

	return analysis
}

func threatFor(connections int) ThreatLevel {
	switch {
	case connections > 500:
		return ThreatCritical
	case connections > 100:
		return ThreatHigh
	case connections > 20:
		return ThreatMedium
	default:
		return ThreatLow
	}
}
