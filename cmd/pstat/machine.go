package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/srodi/pstat/pkg/bpfmap"
	"github.com/srodi/pstat/pkg/client"
	"github.com/srodi/pstat/pkg/config"
	"github.com/srodi/pstat/pkg/ptable"
	"github.com/srodi/pstat/pkg/report"
	"github.com/srodi/pstat/pkg/sched"
	"github.com/srodi/pstat/pkg/server"
	"github.com/srodi/pstat/pkg/sysproc"
	"github.com/srodi/pstat/pkg/types"
	"github.com/srodi/pstat/pkg/uaccess"
	"github.com/srodi/pstat/pkg/ui"
	"github.com/srodi/pstat/pkg/ulib"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// machine is a booted kernel: table, syscalls, CPUs, workload, and the
// monitor process that issues getpinfo on the operator's behalf.
type machine struct {
	kernel   *sysproc.Kernel
	cpus     *sched.Machine
	workload *sched.Workload
	monitor  *ptable.Proc
	mirror   *bpfmap.Mirror
	log      hclog.Logger
}

func boot(cfg config.Configuration, logger hclog.Logger) (*machine, error) {
	table := ptable.New()
	k := sysproc.New(table, sysproc.Options{ExportStaleSlots: cfg.ExportStaleSlots}, logger.Named("sys"))

	monitor, err := table.Alloc(uaccess.NewAddrSpace(ulib.MinMem))
	if err != nil {
		return nil, fmt.Errorf("allocating monitor process: %w", err)
	}
	if err := table.MakeRunnable(monitor); err != nil {
		return nil, fmt.Errorf("starting monitor process: %w", err)
	}

	m := &machine{
		kernel:  k,
		cpus:    sched.NewMachine(table, sched.Config{CPUs: cfg.CPUs, Tick: cfg.Tick}, logger),
		monitor: monitor,
		log:     logger,
		workload: sched.NewWorkload(k, sched.WorkloadConfig{
			Procs:     cfg.Workload.Procs,
			Churn:     cfg.Workload.Churn,
			HighShare: cfg.Workload.HighShare,
			Seed:      cfg.Workload.Seed,
		}, logger),
	}

	if cfg.BPFMap.Enable {
		mirror, err := bpfmap.NewMirror(cfg.BPFMap.PinPath)
		if err != nil {
			logger.Warn("bpf map mirror unavailable", "error", err)
		} else {
			m.mirror = mirror
		}
	}
	return m, nil
}

func (m *machine) Close() error {
	if m.mirror != nil {
		return m.mirror.Close()
	}
	return nil
}

// start runs the CPUs and the workload in g.
func (m *machine) start(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error { return m.cpus.Run(ctx) })
	g.Go(func() error { return m.workload.Run(ctx) })
}

// sample takes a snapshot through the syscall interface, as a user program
// would, and mirrors it into BPF maps when enabled.
func (m *machine) sample() (*types.PStat, int32, error) {
	ps, err := ulib.Getpinfo(m.kernel, m.monitor)
	if err != nil {
		return nil, 0, err
	}
	n, err := ulib.Getprocs(m.kernel, m.monitor)
	if err != nil {
		return nil, 0, err
	}
	if m.mirror != nil {
		if err := m.mirror.Publish(ps); err != nil {
			m.log.Warn("bpf map publish failed", "error", err)
		}
	}
	return ps, n, nil
}

func runTop(ctx context.Context, cfg config.Configuration, logger hclog.Logger) error {
	m, err := boot(cfg, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	g, ctx := errgroup.WithContext(ctx)
	m.start(ctx, g)
	g.Go(func() error {
		cleanupTerminal := enableSingleView()
		defer cleanupTerminal()
		return m.watch(ctx, cfg, os.Stdout)
	})
	return g.Wait()
}

func runServe(ctx context.Context, cfg config.Configuration, logger hclog.Logger) error {
	m, err := boot(cfg, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	g, ctx := errgroup.WithContext(ctx)
	m.start(ctx, g)
	srv := server.New(cfg.Listen, m.kernel, logger)
	g.Go(func() error { return srv.Start(ctx) })
	if m.mirror != nil {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if _, _, err := m.sample(); err != nil {
						logger.Warn("sample failed", "error", err)
					}
				}
			}
		})
	}
	return g.Wait()
}

func runRemote(ctx context.Context, addr string, out io.Writer) error {
	c := client.New(addr, 5*time.Second)
	ps, err := c.Pinfo(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d processes in use\n\n", ps.Active())
	report.WriteSlots(out, ps)
	return nil
}

func (m *machine) watch(ctx context.Context, cfg config.Configuration, out io.Writer) error {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var prev *types.PStat
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ps, n, err := m.sample()
			if err != nil {
				m.log.Warn("snapshot failed", "error", err)
				continue
			}
			clearScreen(out)
			fmt.Fprint(out, m.render(ps, prev, n, cfg))
			prev = ps
		}
	}
}

func (m *machine) render(ps, prev *types.PStat, active int32, cfg config.Configuration) string {
	rows, _ := report.BuildProcMetrics(ps, prev)
	visible := report.FilterMetrics(rows, report.FilterConfig{})
	focus := report.SelectFocusCandidate(rows)

	var buf bytes.Buffer
	buf.WriteString(ui.Banner())
	buf.WriteString("\n")
	fmt.Fprintf(&buf, "pstat (press Ctrl+C to exit)\n")
	fmt.Fprintf(&buf, "Updated: %s | Interval: %v | CPUs: %d | Uptime: %d ticks | Procs: %d/%d\n\n",
		time.Now().Format(time.RFC3339), cfg.Interval, cfg.CPUs, m.cpus.Uptime(), active, types.NPROC)

	if focus != nil {
		fmt.Fprintf(&buf, "[!] Focus: pid %d (slot %d)\n", focus.PID, focus.Slot)
		fmt.Fprintf(&buf, "   Reason: %s - %s\n\n", focus.Diagnosis, report.FocusSummary(*focus))
	}

	fmt.Fprintf(&buf, "[Top %d by ticks, window %v]\n", cfg.TopK, cfg.Interval)
	report.WriteCPUTable(&buf, report.CPUUsageRows(visible, cfg.TopK))

	fmt.Fprintf(&buf, "\n[Starved - no ticks in window]\n")
	report.WriteStarvedTable(&buf, report.StarvedRows(rows, cfg.TopK))
	return buf.String()
}

func clearScreen(out io.Writer) {
	fmt.Fprint(out, "\033[H\033[2J")
}
