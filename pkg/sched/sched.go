// Package sched drives a process table the way a multi-CPU kernel would:
// each simulated CPU is a goroutine that, on every timer tick, bills the
// running process and picks the next one under the table lock.
package sched

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/srodi/pstat/pkg/ptable"
	"github.com/srodi/pstat/pkg/types"
)

const (
	DefaultCPUs = 2
	DefaultTick = 10 * time.Millisecond
)

// Config sizes the machine.
type Config struct {
	CPUs int
	Tick time.Duration
}

func (c Config) withDefaults() Config {
	if c.CPUs <= 0 {
		c.CPUs = DefaultCPUs
	}
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	return c
}

// CPU is the per-CPU scheduler state.
type CPU struct {
	ID     int
	cur    *ptable.Proc
	curPID int32
	next   int // round-robin cursor into the table
}

// Machine owns the CPUs that run against one table.
type Machine struct {
	table *ptable.Table
	cfg   Config
	log   hclog.Logger
	cpus  []*CPU
	ticks atomic.Uint64
}

// NewMachine builds a machine over table. A nil logger discards output.
func NewMachine(table *ptable.Table, cfg Config, logger hclog.Logger) *Machine {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	cfg = cfg.withDefaults()
	m := &Machine{table: table, cfg: cfg, log: logger.Named("sched")}
	for i := 0; i < cfg.CPUs; i++ {
		m.cpus = append(m.cpus, &CPU{ID: i})
	}
	return m
}

// Uptime is the number of timer ticks taken across all CPUs.
func (m *Machine) Uptime() uint64 {
	return m.ticks.Load()
}

// CPUs returns the per-CPU state, for stepping the machine by hand.
func (m *Machine) CPUs() []*CPU {
	return m.cpus
}

// Run ticks every CPU until ctx is done.
func (m *Machine) Run(ctx context.Context) error {
	m.log.Info("starting cpus", "count", len(m.cpus), "tick", m.cfg.Tick)
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range m.cpus {
		c := c
		g.Go(func() error {
			ticker := time.NewTicker(m.cfg.Tick)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					m.Idle(c)
					return nil
				case <-ticker.C:
					m.Tick(c)
				}
			}
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("running cpus: %w", err)
	}
	return nil
}

// Tick is one timer interrupt on c: the running process is billed for the
// tick at its current class and c switches to the next process to run.
// The whole step is one critical section on the table.
func (m *Machine) Tick(c *CPU) *ptable.Proc {
	m.ticks.Add(1)

	m.table.Lock()
	defer m.table.Unlock()

	if m.holds(c) {
		m.table.Charge(c.cur)
		c.cur.State = types.Runnable
	}
	c.cur = m.pick(c)
	if c.cur != nil {
		c.cur.State = types.Running
		c.curPID = c.cur.PID
	}
	return c.cur
}

// Idle puts c's process back on the run queue.
func (m *Machine) Idle(c *CPU) {
	m.table.Lock()
	defer m.table.Unlock()
	if m.holds(c) {
		c.cur.State = types.Runnable
	}
	c.cur = nil
}

// holds reports whether c's process is still the one it dispatched. The
// slot may have exited and been reused by a process another CPU is running.
func (m *Machine) holds(c *CPU) bool {
	return c.cur != nil && c.cur.State == types.Running && c.cur.PID == c.curPID
}

// pick returns the next Runnable process, preferring high priority and
// going round-robin within a class. Caller holds the table lock.
func (m *Machine) pick(c *CPU) *ptable.Proc {
	procs := m.table.Procs()
	var low *ptable.Proc
	lowAt := 0
	for n := 0; n < types.NPROC; n++ {
		i := (c.next + n) % types.NPROC
		p := &procs[i]
		if p.State != types.Runnable {
			continue
		}
		if p.Priority() == types.PriorityHigh {
			c.next = i + 1
			return p
		}
		if low == nil {
			low, lowAt = p, i
		}
	}
	if low != nil {
		c.next = lowAt + 1
	}
	return low
}
