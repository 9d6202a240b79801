// Package ptable holds the fixed-size process table shared by every CPU.
//
// Fields that must be observed together (state, pid, tick counters) are only
// written with the table lock held. A process's priority is the exception: it
// is written by the owning process alone, without the lock, through an atomic.
package ptable

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/srodi/pstat/pkg/types"
	"github.com/srodi/pstat/pkg/uaccess"
)

var (
	ErrTableFull    = errors.New("process table full")
	ErrBadState     = errors.New("invalid state transition")
	ErrNoSuchProc   = errors.New("no such process")
	ErrNotPermitted = errors.New("slot not owned by table")
)

// Proc is one slot of the process table.
type Proc struct {
	PID    int32
	State  types.State
	HTicks int32
	LTicks int32

	// Mem and TF are the user context the syscall layer validates arguments
	// against. Only the owning process touches them.
	Mem *uaccess.AddrSpace
	TF  *uaccess.Trapframe

	priority atomic.Int32
	slot     int
}

// Priority returns the process's current scheduling class.
func (p *Proc) Priority() types.Priority {
	return types.Priority(p.priority.Load())
}

// SetPriority stores a new class. It takes no lock: only the owning process
// calls it, and readers tolerate seeing either the old or the new value.
func (p *Proc) SetPriority(pri types.Priority) {
	p.priority.Store(int32(pri))
}

// Slot is the table index of p.
func (p *Proc) Slot() int {
	return p.slot
}

// Table is the process table and its lock.
type Table struct {
	mu      sync.Mutex
	procs   [types.NPROC]Proc
	nextPID int32
}

// New returns an empty table whose first allocated pid is 1.
func New() *Table {
	t := &Table{nextPID: 1}
	for i := range t.procs {
		t.procs[i].slot = i
	}
	return t
}

// Lock acquires the table lock.
func (t *Table) Lock() { t.mu.Lock() }

// Unlock releases the table lock.
func (t *Table) Unlock() { t.mu.Unlock() }

// TryLock reports whether the lock was free and is now held.
func (t *Table) TryLock() bool { return t.mu.TryLock() }

// Procs exposes the slots in index order. Callers must hold the lock while
// reading fields other than priority.
func (t *Table) Procs() *[types.NPROC]Proc {
	return &t.procs
}

// Alloc claims the first unused slot, moving it to Embryo with a fresh pid.
func (t *Table) Alloc(mem *uaccess.AddrSpace) (*Proc, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.procs {
		p := &t.procs[i]
		if p.State != types.Unused {
			continue
		}
		p.State = types.Embryo
		p.PID = t.nextPID
		t.nextPID++
		p.HTicks = 0
		p.LTicks = 0
		p.Mem = mem
		p.TF = &uaccess.Trapframe{}
		p.SetPriority(types.PriorityLow)
		return p, nil
	}
	return nil, ErrTableFull
}

// Place installs a process with a chosen pid in slot i. It is meant for
// booting a known table layout and fails if the slot is taken or the pid is
// already live.
func (t *Table) Place(i int, pid int32, pri types.Priority, mem *uaccess.AddrSpace) (*Proc, error) {
	if i < 0 || i >= types.NPROC {
		return nil, ErrNotPermitted
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.procs[i].State != types.Unused {
		return nil, ErrBadState
	}
	for j := range t.procs {
		if t.procs[j].State != types.Unused && t.procs[j].PID == pid {
			return nil, ErrBadState
		}
	}
	p := &t.procs[i]
	p.State = types.Runnable
	p.PID = pid
	p.HTicks = 0
	p.LTicks = 0
	p.Mem = mem
	p.TF = &uaccess.Trapframe{}
	p.SetPriority(pri)
	if pid >= t.nextPID {
		t.nextPID = pid + 1
	}
	return p, nil
}

// MakeRunnable moves an Embryo or Sleeping process to Runnable.
func (t *Table) MakeRunnable(p *Proc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transition(p, types.Runnable, types.Embryo, types.Sleeping)
}

// Sleep parks a Runnable or Running process.
func (t *Table) Sleep(p *Proc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transition(p, types.Sleeping, types.Runnable, types.Running)
}

// Exit turns a live process into a Zombie.
func (t *Table) Exit(p *Proc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transition(p, types.Zombie, types.Embryo, types.Runnable, types.Running, types.Sleeping)
}

// Reap frees a Zombie's slot. The pid and tick counters are left in place
// until the slot is reused.
func (t *Table) Reap(p *Proc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transition(p, types.Unused, types.Zombie); err != nil {
		return err
	}
	p.Mem = nil
	p.TF = nil
	return nil
}

func (t *Table) transition(p *Proc, to types.State, from ...types.State) error {
	if !t.owns(p) {
		return ErrNotPermitted
	}
	for _, s := range from {
		if p.State == s {
			p.State = to
			return nil
		}
	}
	return ErrBadState
}

func (t *Table) owns(p *Proc) bool {
	return p != nil && p.slot >= 0 && p.slot < types.NPROC && &t.procs[p.slot] == p
}

// Lookup returns the live process with the given pid.
func (t *Table) Lookup(pid int32) (*Proc, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.procs {
		if t.procs[i].State != types.Unused && t.procs[i].PID == pid {
			return &t.procs[i], nil
		}
	}
	return nil, ErrNoSuchProc
}

// Charge bills one tick to p against the class it is running at. The caller
// must hold the lock.
func (t *Table) Charge(p *Proc) {
	if p.Priority() == types.PriorityHigh {
		p.HTicks++
	} else {
		p.LTicks++
	}
}
