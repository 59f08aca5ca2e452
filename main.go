// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/blackjk83/netmon-tui/cmd"
	"github.com/blackjk83/netmon-tui/internal/config"
)

func main() {
	var (
		iface          = flag.String("interface", "", "network interface to monitor")
		configPath     = flag.String("config", "", "configuration file path")
		debug          = flag.Bool("debug", false, "enable debug logging")
		listInterfaces = flag.Bool("list-interfaces", false, "list monitorable interfaces and exit")
		enableFirewall = flag.Bool("enable-firewall", false, "enable the firewall engine")
		enableMetrics  = flag.Bool("enable-metrics", false, "enable the metrics explorer")
		enableSearch   = flag.Bool("enable-search", false, "enable fuzzy search")
		enableAll      = flag.Bool("enable-all", false, "enable all advanced features")
	)
	flag.Parse()

	if *listInterfaces {
		if err := cmd.RunListInterfaces(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	opts := cmd.MonitorOptions{
		Interface:  *iface,
		ConfigPath: *configPath,
		Debug:      *debug,
		Features:   config.FeaturesFromFlags(*enableFirewall, *enableMetrics, *enableSearch, *enableAll),
	}

	if err := cmd.RunMonitor(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
