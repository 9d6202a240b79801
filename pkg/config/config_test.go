package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pstat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	cfg := Defaults()
	cfg.ConfigPath = writeConfig(t, `
cpus: 4
tick: 5ms
export_stale_slots: true
workload:
  procs: 20
  high_share: 0.5
bpf_map:
  enable: true
  pin_path: /sys/fs/bpf/pstat
`)
	require.NoError(t, LoadConfig(&cfg))

	assert.Equal(t, 4, cfg.CPUs)
	assert.Equal(t, 5*time.Millisecond, cfg.Tick)
	assert.True(t, cfg.ExportStaleSlots)
	assert.Equal(t, 20, cfg.Workload.Procs)
	assert.Equal(t, 0.5, cfg.Workload.HighShare)
	assert.Equal(t, 3*time.Second, cfg.Workload.Churn, "unset keys keep their defaults")
	assert.True(t, cfg.BPFMap.Enable)
	assert.Equal(t, "/sys/fs/bpf/pstat", cfg.BPFMap.PinPath)
	assert.Equal(t, ":9464", cfg.Listen)
	assert.NotEmpty(t, cfg.ConfigPath)
}

func TestLoadConfigErrors(t *testing.T) {
	cfg := Defaults()
	cfg.ConfigPath = filepath.Join(t.TempDir(), "missing.yaml")
	assert.ErrorContains(t, LoadConfig(&cfg), "failed to read config")

	cfg = Defaults()
	cfg.ConfigPath = writeConfig(t, "cpus: [1, 2]\n")
	assert.ErrorContains(t, LoadConfig(&cfg), "failed to parse config")

	cfg = Defaults()
	cfg.ConfigPath = writeConfig(t, "workload:\n  procs: 64\n")
	assert.ErrorContains(t, LoadConfig(&cfg), "workload.procs")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Configuration)
		want   string
	}{
		{"defaults", func(*Configuration) {}, ""},
		{"no cpus", func(c *Configuration) { c.CPUs = 0 }, "cpus"},
		{"no tick", func(c *Configuration) { c.Tick = 0 }, "tick"},
		{"no interval", func(c *Configuration) { c.Interval = -time.Second }, "interval"},
		{"negative procs", func(c *Configuration) { c.Workload.Procs = -1 }, "workload.procs"},
		{"share above one", func(c *Configuration) { c.Workload.HighShare = 1.5 }, "high_share"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.want)
		})
	}

	cfg := Defaults()
	cfg.TopK = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.TopK)
}

func TestApplyFlagsKeepsExplicitFlags(t *testing.T) {
	cfg := Defaults()
	fs := pflag.NewFlagSet("pstat", pflag.ContinueOnError)
	SetFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"--cpus=8", "--stale-slots", "--log-level=debug"}))
	assert.Equal(t, 8, cfg.CPUs)

	fromFile := Defaults()
	fromFile.ConfigPath = writeConfig(t, "cpus: 3\ntopk: 9\nlog_level: warn\n")
	require.NoError(t, LoadConfig(&fromFile))
	ApplyFlags(fs, &fromFile)

	assert.Equal(t, 8, fromFile.CPUs, "flag wins over file")
	assert.True(t, fromFile.ExportStaleSlots)
	assert.Equal(t, "debug", fromFile.LogLevel)
	assert.Equal(t, 9, fromFile.TopK, "file wins over unset flag")
}
