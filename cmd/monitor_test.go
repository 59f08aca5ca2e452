// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackjk83/netmon-tui/internal/config"
	"github.com/blackjk83/netmon-tui/internal/errors"
	"github.com/blackjk83/netmon-tui/internal/firewall"
	"github.com/blackjk83/netmon-tui/internal/procnet"
)

func fakeFS(t *testing.T, names ...string) procnet.FS {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proc", "net"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "proc", "net", "tcp"), []byte("header\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "proc", "net", "udp"), []byte("header\n"), 0o644))
	for _, name := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "sys", name), 0o755))
	}
	return procnet.FS{Proc: filepath.Join(root, "proc"), Sys: filepath.Join(root, "sys")}
}

func TestSelectInterfaceDefaultsToFirst(t *testing.T) {
	fs := fakeFS(t, "eth1", "eth0", "wlan0")

	name, err := selectInterface(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "eth0", name, "sorted order, first non-virtual")
}

func TestSelectInterfaceRequested(t *testing.T) {
	fs := fakeFS(t, "eth0", "wlan0")

	name, err := selectInterface(fs, "wlan0")
	require.NoError(t, err)
	assert.Equal(t, "wlan0", name)

	_, err = selectInterface(fs, "eth9")
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
	assert.Contains(t, err.Error(), "eth0")
}

func TestLoadRulesDefaults(t *testing.T) {
	engine := firewall.NewEngine()
	require.NoError(t, loadRules(engine, ""))
	assert.Len(t, engine.Rules(), 5)
}

func TestLoadRulesFromFile(t *testing.T) {
	exporter := firewall.NewEngine()
	exporter.AddRule(firewall.AllowSSH())
	data, err := exporter.ExportRules()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	engine := firewall.NewEngine()
	require.NoError(t, loadRules(engine, path))
	assert.Len(t, engine.Rules(), 1)

	err = loadRules(firewall.NewEngine(), filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, errors.KindRuleImport, errors.GetKind(err))
}

func TestBuildPipelineFirewallToggle(t *testing.T) {
	fs := fakeFS(t, "eth0")
	cfg := config.Default()

	_, engine, err := buildPipeline(cfg, config.Features{}, fs, nil, "eth0")
	require.NoError(t, err)
	assert.False(t, engine.Enabled(), "firewall off by default")

	_, engine, err = buildPipeline(cfg, config.FeaturesFromFlags(true, false, false, false), fs, nil, "eth0")
	require.NoError(t, err)
	assert.True(t, engine.Enabled())
	assert.Len(t, engine.Rules(), 5, "default rules installed when enabled")
}

func TestBuildPipelineRejectsBadLocalNetwork(t *testing.T) {
	fs := fakeFS(t, "eth0")
	cfg := config.Default()
	cfg.Monitor.LocalNetworks = []string{"not-a-cidr"}

	_, _, err := buildPipeline(cfg, config.Features{}, fs, nil, "eth0")
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}
