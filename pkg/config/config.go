package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/srodi/pstat/pkg/types"
)

type Configuration struct {
	CPUs             int            `yaml:"cpus"`
	Tick             time.Duration  `yaml:"tick"`
	Interval         time.Duration  `yaml:"interval"`
	TopK             int            `yaml:"topk"`
	ExportStaleSlots bool           `yaml:"export_stale_slots"`
	Workload         WorkloadConfig `yaml:"workload"`
	Listen           string         `yaml:"listen"`
	BPFMap           BPFMapConfig   `yaml:"bpf_map"`
	LogLevel         string         `yaml:"log_level"`
	ConfigPath       string         `yaml:"-"`
}

type WorkloadConfig struct {
	Procs     int           `yaml:"procs"`
	Churn     time.Duration `yaml:"churn"`
	HighShare float64       `yaml:"high_share"`
	Seed      uint64        `yaml:"seed"`
}

type BPFMapConfig struct {
	Enable  bool   `yaml:"enable"`
	PinPath string `yaml:"pin_path"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Configuration {
	return Configuration{
		CPUs:     2,
		Tick:     10 * time.Millisecond,
		Interval: 2 * time.Second,
		TopK:     types.DefaultTopK,
		Workload: WorkloadConfig{
			Procs:     8,
			Churn:     3 * time.Second,
			HighShare: 0.25,
			Seed:      1,
		},
		Listen:   ":9464",
		LogLevel: "info",
	}
}

// LoadConfig overlays the YAML file at cfg.ConfigPath onto cfg.
func LoadConfig(cfg *Configuration) error {
	raw, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read config %s", cfg.ConfigPath)
	}
	path := cfg.ConfigPath
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return errors.Wrapf(err, "failed to parse config %s", path)
	}
	cfg.ConfigPath = path
	return cfg.Validate()
}

// Validate rejects values the machine cannot run with.
func (c *Configuration) Validate() error {
	switch {
	case c.CPUs <= 0:
		return errors.Errorf("cpus must be positive, got %d", c.CPUs)
	case c.Tick <= 0:
		return errors.Errorf("tick must be positive, got %v", c.Tick)
	case c.Interval <= 0:
		return errors.Errorf("interval must be positive, got %v", c.Interval)
	case c.Workload.Procs < 0 || c.Workload.Procs >= types.NPROC:
		return errors.Errorf("workload.procs must be in [0, %d), got %d", types.NPROC, c.Workload.Procs)
	case c.Workload.HighShare < 0 || c.Workload.HighShare > 1:
		return errors.Errorf("workload.high_share must be in [0, 1], got %v", c.Workload.HighShare)
	}
	if c.TopK <= 0 {
		c.TopK = 1
	}
	return nil
}
