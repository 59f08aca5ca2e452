// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package cmd wires the monitor's startup: configuration, capture, the
// pipeline, and the terminal UI.
package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/blackjk83/netmon-tui/internal/analyzer"
	"github.com/blackjk83/netmon-tui/internal/capture"
	"github.com/blackjk83/netmon-tui/internal/config"
	"github.com/blackjk83/netmon-tui/internal/connections"
	"github.com/blackjk83/netmon-tui/internal/errors"
	"github.com/blackjk83/netmon-tui/internal/firewall"
	"github.com/blackjk83/netmon-tui/internal/flows"
	"github.com/blackjk83/netmon-tui/internal/logging"
	"github.com/blackjk83/netmon-tui/internal/metrics"
	"github.com/blackjk83/netmon-tui/internal/pipeline"
	"github.com/blackjk83/netmon-tui/internal/procnet"
	"github.com/blackjk83/netmon-tui/internal/protocols"
	"github.com/blackjk83/netmon-tui/internal/stats"
	"github.com/blackjk83/netmon-tui/internal/tui"
)

// MonitorOptions carries the command-line selections into startup.
type MonitorOptions struct {
	Interface  string
	ConfigPath string
	Debug      bool
	Features   config.Features
}

// RunMonitor starts the pipeline and the terminal UI. Degraded capture is a
// warning; the monitor continues in proc-only mode. A nonzero exit is
// reserved for fatal initialization errors, which surface as a returned
// error.
func RunMonitor(opts MonitorOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Interface != "" {
		cfg.Capture.Interface = opts.Interface
	}

	logger, closeLog, err := setupLogging(cfg, opts.Debug)
	if err != nil {
		return err
	}
	defer closeLog()
	logging.SetDefault(logger)

	if names := opts.Features.Enabled(); len(names) > 0 {
		logger.Info("Advanced features enabled", "features", names)
	}

	fs := procnet.NewFS()

	iface, err := selectInterface(fs, cfg.Capture.Interface)
	if err != nil {
		return err
	}
	logger.Info("Monitoring interface", "interface", iface)

	// Live capture is best-effort: missing privileges degrade to proc-only.
	var source capture.Source
	afSource, err := capture.Open(iface, capture.Options{
		BufferSize: cfg.Capture.BufferSize,
		Timeout:    time.Duration(cfg.Capture.TimeoutMs) * time.Millisecond,
	}, logging.WithComponent("capture"))
	captureDiag := ""
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: packet capture initialization failed: %v\n", err)
		fmt.Fprintln(os.Stderr, "Continuing with connection monitoring only...")
		captureDiag = err.Error()
	} else {
		source = afSource
		defer afSource.Close()
	}

	driver, engine, err := buildPipeline(cfg, opts.Features, fs, source, iface)
	if err != nil {
		return err
	}
	if captureDiag != "" {
		driver.SetCaptureDiagnostic(captureDiag)
	}

	var exporter *metrics.Exporter
	if cfg.Metrics.Enabled || opts.Features.MetricsExplorer {
		exporter = metrics.NewExporter(logging.WithComponent("metrics"))
		exporter.Serve(cfg.Metrics.Listen)
	}

	backend := &meteredBackend{driver: driver, exporter: exporter}
	model := tui.NewModel(backend,
		time.Duration(cfg.UI.RefreshRateMs)*time.Millisecond,
		engine.Enabled())

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return errors.Wrap(err, errors.KindInternal, "terminal UI failed")
	}

	logger.Info("Monitor stopped")
	return nil
}

// meteredBackend forwards ticks to the driver and mirrors each snapshot into
// the metrics exporter.
type meteredBackend struct {
	driver   *pipeline.Driver
	exporter *metrics.Exporter
}

func (b *meteredBackend) Tick() pipeline.Snapshot {
	snapshot := b.driver.Tick()
	if b.exporter != nil {
		b.exporter.Observe(snapshot)
	}
	return snapshot
}

func setupLogging(cfg *config.Config, debug bool) (*logging.Logger, func(), error) {
	logCfg := logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}
	if debug {
		logCfg.Level = "debug"
	}

	closeLog := func() {}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, errors.Wrapf(err, errors.KindValidation, "opening log file %s", cfg.Log.File)
		}
		logCfg.Output = f
		closeLog = func() { f.Close() }
	} else {
		// The alternate screen owns the terminal; keep log noise out of it.
		logCfg.Output = io.Discard
	}

	return logging.New(logCfg), closeLog, nil
}

// selectInterface resolves the interface to monitor: the requested one if it
// exists (an InterfaceNotFound error listing the available ones if it does
// not), or the first non-virtual interface when none is requested.
func selectInterface(fs procnet.FS, requested string) (string, error) {
	available, err := fs.Interfaces()
	if err != nil {
		return "", err
	}
	if requested != "" {
		for _, name := range available {
			if name == requested {
				return requested, nil
			}
		}
		return "", errors.InterfaceNotFound(requested, available)
	}
	if len(available) == 0 {
		return "", errors.New(errors.KindNotFound, "no network interfaces found")
	}
	return available[0], nil
}

func buildPipeline(cfg *config.Config, features config.Features, fs procnet.FS, source capture.Source, iface string) (*pipeline.Driver, *firewall.Engine, error) {
	classifier := protocols.NewClassifier()

	inspector := flows.NewInspector(
		flows.WithFlowTimeout(time.Duration(cfg.Monitor.FlowTimeoutS)*time.Second),
		flows.WithBandwidthThreshold(float64(cfg.Monitor.BandwidthThresholdBps)),
	)
	for _, cidr := range cfg.Monitor.LocalNetworks {
		if err := inspector.AddLocalNetwork(cidr); err != nil {
			return nil, nil, errors.Wrapf(err, errors.KindValidation, "local network %q", cidr)
		}
	}

	tracker := connections.NewTracker(classifier,
		connections.WithTimeout(time.Duration(cfg.Monitor.ConnectionTimeoutS)*time.Second),
		connections.WithMaxConnections(cfg.Monitor.MaxConnections),
		connections.WithLocalFunc(inspector.IsLocal),
	)

	var analyzerOpts []analyzer.Option
	if cfg.GeoIP.Database != "" {
		geo, err := analyzer.OpenGeoResolver(cfg.GeoIP.Database)
		if err != nil {
			return nil, nil, err
		}
		analyzerOpts = append(analyzerOpts, analyzer.WithGeoResolver(geo))
	}

	engine := firewall.NewEngine()
	firewallOn := cfg.Firewall.Enabled || features.Firewall
	engine.SetEnabled(firewallOn)
	if firewallOn {
		if err := loadRules(engine, cfg.Firewall.RulesFile); err != nil {
			return nil, nil, err
		}
	}

	driver := pipeline.NewDriver(pipeline.Components{
		Source:     source,
		Proc:       fs,
		Interface:  iface,
		Classifier: classifier,
		Tracker:    tracker,
		Inspector:  inspector,
		Collector:  stats.NewCollector(),
		Analyzer:   analyzer.New(analyzerOpts...),
		Firewall:   engine,
		Logger:     logging.WithComponent("pipeline"),
	})
	return driver, engine, nil
}

func loadRules(engine *firewall.Engine, rulesFile string) error {
	if rulesFile == "" {
		engine.LoadDefaultRules()
		return nil
	}
	data, err := os.ReadFile(rulesFile)
	if err != nil {
		return errors.Wrapf(err, errors.KindRuleImport, "reading rules file %s", rulesFile)
	}
	count, err := engine.ImportRules(data)
	if err != nil {
		return err
	}
	logging.WithComponent("firewall").Info("Rules imported", "count", count, "file", rulesFile)
	return nil
}

// RunListInterfaces prints the monitorable interfaces.
func RunListInterfaces() error {
	names, err := procnet.NewFS().Interfaces()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No network interfaces found")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
