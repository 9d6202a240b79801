package sched

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/srodi/pstat/pkg/ptable"
	"github.com/srodi/pstat/pkg/sysproc"
	"github.com/srodi/pstat/pkg/types"
	"github.com/srodi/pstat/pkg/uaccess"
	"github.com/srodi/pstat/pkg/ulib"
)

// WorkloadConfig shapes the synthetic process population.
type WorkloadConfig struct {
	// Procs is how many processes the workload tries to keep alive.
	Procs int
	// Churn is how often one process exits and a replacement is forked.
	// Zero disables churn.
	Churn time.Duration
	// HighShare is the fraction of processes that raise themselves to
	// high priority, in [0, 1].
	HighShare float64
	Seed      uint64
}

// Workload forks processes, lets each pick its own priority through
// setpri, and retires them over time.
type Workload struct {
	k    *sysproc.Kernel
	cfg  WorkloadConfig
	log  hclog.Logger
	rng  *rand.Rand
	live []*ptable.Proc
}

// NewWorkload builds a workload over k's table.
func NewWorkload(k *sysproc.Kernel, cfg WorkloadConfig, logger hclog.Logger) *Workload {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Workload{
		k:   k,
		cfg: cfg,
		log: logger.Named("workload"),
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Spawn forks one process, makes it runnable, and has it choose a priority.
func (w *Workload) Spawn() (*ptable.Proc, error) {
	t := w.k.Table()
	p, err := t.Alloc(uaccess.NewAddrSpace(ulib.MinMem))
	if err != nil {
		return nil, err
	}
	if err := t.MakeRunnable(p); err != nil {
		return nil, err
	}
	pri := int32(types.PriorityLow)
	if w.rng.Float64() < w.cfg.HighShare {
		pri = int32(types.PriorityHigh)
	}
	if ret, err := ulib.Setpri(w.k, p, pri); err != nil || ret != 0 {
		w.log.Warn("setpri failed", "pid", p.PID, "ret", ret, "error", err)
	}
	w.live = append(w.live, p)
	w.log.Trace("fork", "pid", p.PID, "slot", p.Slot(), "priority", pri)
	return p, nil
}

// Retire exits and reaps one random live process.
func (w *Workload) Retire() {
	if len(w.live) == 0 {
		return
	}
	i := w.rng.IntN(len(w.live))
	p := w.live[i]
	w.live = append(w.live[:i], w.live[i+1:]...)

	t := w.k.Table()
	pid := p.PID
	if err := t.Exit(p); err != nil {
		w.log.Warn("exit failed", "pid", pid, "error", err)
		return
	}
	if err := t.Reap(p); err != nil {
		w.log.Warn("reap failed", "pid", pid, "error", err)
		return
	}
	w.log.Trace("exit", "pid", pid)
}

// Fill forks until Procs processes are alive or the table is full.
func (w *Workload) Fill() error {
	for len(w.live) < w.cfg.Procs {
		if _, err := w.Spawn(); err != nil {
			if errors.Is(err, ptable.ErrTableFull) {
				w.log.Debug("table full", "live", len(w.live))
				return nil
			}
			return err
		}
	}
	return nil
}

// Run keeps the population at size and churns it until ctx is done.
func (w *Workload) Run(ctx context.Context) error {
	if err := w.Fill(); err != nil {
		return err
	}
	if w.cfg.Churn <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(w.cfg.Churn)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Retire()
			if err := w.Fill(); err != nil {
				return err
			}
		}
	}
}
