package config

import (
	"github.com/spf13/pflag"
)

// SetFlags binds command-line flags onto cfg. Flags win over the config
// file only when set explicitly; see ApplyFlags.
func SetFlags(fs *pflag.FlagSet, cfg *Configuration) {
	fs.StringVar(&cfg.ConfigPath, "config", "", "specify config file path")
	fs.IntVar(&cfg.CPUs, "cpus", cfg.CPUs, "number of simulated CPUs")
	fs.DurationVar(&cfg.Tick, "tick", cfg.Tick, "timer tick length per CPU")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "sampling interval (e.g. 2s, 1m)")
	fs.IntVar(&cfg.TopK, "topk", cfg.TopK, "number of processes to display per section")
	fs.IntVar(&cfg.Workload.Procs, "procs", cfg.Workload.Procs, "processes the workload keeps alive")
	fs.DurationVar(&cfg.Workload.Churn, "churn", cfg.Workload.Churn, "how often a process exits and is replaced (0 disables)")
	fs.BoolVar(&cfg.ExportStaleSlots, "stale-slots", cfg.ExportStaleSlots, "export pid/ticks left behind in free slots")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "address for the metrics and snapshot API")
	fs.BoolVar(&cfg.BPFMap.Enable, "bpf-map", cfg.BPFMap.Enable, "mirror snapshots into BPF array maps (linux)")
	fs.StringVar(&cfg.BPFMap.PinPath, "bpf-pin", cfg.BPFMap.PinPath, "bpffs directory to pin the maps under")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "trace, debug, info, warn or error")
}

// ApplyFlags copies every flag the user set on fs back onto cfg, after cfg
// was reloaded from a file.
func ApplyFlags(fs *pflag.FlagSet, cfg *Configuration) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "cpus":
			cfg.CPUs, _ = fs.GetInt(f.Name)
		case "tick":
			cfg.Tick, _ = fs.GetDuration(f.Name)
		case "interval":
			cfg.Interval, _ = fs.GetDuration(f.Name)
		case "topk":
			cfg.TopK, _ = fs.GetInt(f.Name)
		case "procs":
			cfg.Workload.Procs, _ = fs.GetInt(f.Name)
		case "churn":
			cfg.Workload.Churn, _ = fs.GetDuration(f.Name)
		case "stale-slots":
			cfg.ExportStaleSlots, _ = fs.GetBool(f.Name)
		case "listen":
			cfg.Listen, _ = fs.GetString(f.Name)
		case "bpf-map":
			cfg.BPFMap.Enable, _ = fs.GetBool(f.Name)
		case "bpf-pin":
			cfg.BPFMap.PinPath, _ = fs.GetString(f.Name)
		case "log-level":
			cfg.LogLevel, _ = fs.GetString(f.Name)
		}
	})
}
