// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

// Features holds the advanced feature toggles selected on the command line.
type Features struct {
	Firewall           bool
	MetricsExplorer    bool
	FuzzySearch        bool
	DeepInspection     bool
	HistoricalAnalysis bool
}

// FeaturesFromFlags maps the CLI toggles onto the feature set. enableAll
// switches everything on, including deep inspection which has no standalone
// flag.
func FeaturesFromFlags(firewall, metrics, search, all bool) Features {
	return Features{
		Firewall:           firewall || all,
		MetricsExplorer:    metrics || all,
		FuzzySearch:        search || all,
		DeepInspection:     all,
		HistoricalAnalysis: metrics || all,
	}
}

// Any reports whether any advanced feature is enabled.
func (f Features) Any() bool {
	return f.Firewall || f.MetricsExplorer || f.FuzzySearch || f.DeepInspection || f.HistoricalAnalysis
}

// Enabled lists the names of the enabled features for startup logging.
func (f Features) Enabled() []string {
	var names []string
	if f.Firewall {
		names = append(names, "Firewall")
	}
	if f.MetricsExplorer {
		names = append(names, "Metrics Explorer")
	}
	if f.FuzzySearch {
		names = append(names, "Fuzzy Search")
	}
	if f.DeepInspection {
		names = append(names, "Deep Packet Inspection")
	}
	if f.HistoricalAnalysis {
		names = append(names, "Historical Analysis")
	}
	return names
}
