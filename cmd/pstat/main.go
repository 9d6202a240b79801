package main

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/srodi/pstat/pkg/config"
)

func main() {
	cfg := config.Defaults()

	rootCmd := &cobra.Command{
		Use:           "pstat",
		Short:         "Watch a simulated multi-CPU process table through getpinfo/getprocs/setpri",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveConfig(cmd, cfg)
			if err != nil {
				return err
			}
			return runTop(cmd.Context(), resolved, newLogger(resolved))
		},
	}
	config.SetFlags(rootCmd.PersistentFlags(), &cfg)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the simulated machine and expose /metrics and the snapshot API",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveConfig(cmd, cfg)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), resolved, newLogger(resolved))
		},
	})

	var remoteAddr string
	remoteCmd := &cobra.Command{
		Use:   "remote",
		Short: "Print the snapshot served by another pstat instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemote(cmd.Context(), remoteAddr, os.Stdout)
		},
	}
	remoteCmd.Flags().StringVar(&remoteAddr, "addr", "http://localhost:9464", "base URL of a pstat server")
	rootCmd.AddCommand(remoteCmd)

	ctx, stop := signalContext()
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		hclog.Default().Error("pstat failed", "error", err)
		os.Exit(1)
	}
}

// resolveConfig reloads cfg from --config when given, keeping any flags set
// on the command line.
func resolveConfig(cmd *cobra.Command, cfg config.Configuration) (config.Configuration, error) {
	if cfg.ConfigPath != "" {
		fromFile := config.Defaults()
		fromFile.ConfigPath = cfg.ConfigPath
		if err := config.LoadConfig(&fromFile); err != nil {
			return cfg, err
		}
		config.ApplyFlags(cmd.Flags(), &fromFile)
		cfg = fromFile
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger(cfg config.Configuration) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "pstat",
		Level:  hclog.LevelFromString(cfg.LogLevel),
		Output: os.Stderr,
	})
}
