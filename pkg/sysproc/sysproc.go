// Package sysproc implements the process-statistics syscalls: counting live
// processes, exporting a per-slot stats snapshot, and setting the caller's
// own priority.
package sysproc

import (
	"github.com/hashicorp/go-hclog"

	"github.com/srodi/pstat/pkg/ptable"
	"github.com/srodi/pstat/pkg/types"
	"github.com/srodi/pstat/pkg/uaccess"
)

// Options tunes the export path.
type Options struct {
	// ExportStaleSlots copies pid and tick counters out of free slots as
	// they were left by the previous occupant. When false those entries
	// read as zero.
	ExportStaleSlots bool
}

// Kernel serves syscalls against one process table.
type Kernel struct {
	table *ptable.Table
	opts  Options
	log   hclog.Logger

	calls [types.SysGetpinfo + 1]func(p *ptable.Proc) int32
	names [types.SysGetpinfo + 1]string
}

// New wires a Kernel to table. A nil logger discards output.
func New(table *ptable.Table, opts Options, logger hclog.Logger) *Kernel {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	k := &Kernel{table: table, opts: opts, log: logger}
	k.register(types.SysGetprocs, "getprocs", func(*ptable.Proc) int32 { return k.Getprocs() })
	k.register(types.SysSetpri, "setpri", k.Setpri)
	k.register(types.SysGetpinfo, "getpinfo", k.Getpinfo)
	return k
}

func (k *Kernel) register(num int, name string, fn func(p *ptable.Proc) int32) {
	k.calls[num] = fn
	k.names[num] = name
}

// Table returns the process table the kernel serves.
func (k *Kernel) Table() *ptable.Table {
	return k.table
}

// Syscall dispatches on the number in p's EAX and stores the result back
// into EAX.
func (k *Kernel) Syscall(p *ptable.Proc) int32 {
	num := int(p.TF.EAX)
	var ret int32 = -1
	if num > 0 && num < len(k.calls) && k.calls[num] != nil {
		ret = k.calls[num](p)
		k.log.Trace("sys call", "name", k.names[num], "pid", p.PID, "ret", ret)
	} else {
		k.log.Warn("unknown sys call", "pid", p.PID, "num", num)
	}
	p.TF.EAX = uint32(ret)
	return ret
}

// Getprocs returns the number of slots that are not Unused at one instant.
func (k *Kernel) Getprocs() int32 {
	var n int32

	k.table.Lock()
	procs := k.table.Procs()
	for i := range procs {
		if procs[i].State != types.Unused {
			n++
		}
	}
	k.table.Unlock()

	return n
}

// Getpinfo copies a snapshot of every slot into the caller's struct pstat.
// The pointer is validated before the table is touched.
func (k *Kernel) Getpinfo(p *ptable.Proc) int32 {
	ub, err := uaccess.ArgPtr(p.Mem, p.TF, 0, types.PStatSize)
	if err != nil {
		k.log.Debug("getpinfo: bad argument", "pid", p.PID, "error", err)
		return -1
	}

	ps := k.Snapshot()
	if err := ub.WriteInt32s(ps.Words()); err != nil {
		// ArgPtr already checked the full length.
		k.log.Error("getpinfo: copy out failed", "pid", p.PID, "error", err)
		return -1
	}
	return 0
}

// Snapshot scans the whole table in one critical section.
func (k *Kernel) Snapshot() types.PStat {
	var ps types.PStat

	k.table.Lock()
	procs := k.table.Procs()
	for i := range procs {
		pr := &procs[i]
		if pr.State == types.Unused {
			ps.InUse[i] = 0
			if !k.opts.ExportStaleSlots {
				continue
			}
		} else {
			ps.InUse[i] = 1
		}
		ps.PID[i] = pr.PID
		ps.HTicks[i] = pr.HTicks
		ps.LTicks[i] = pr.LTicks
	}
	k.table.Unlock()

	return ps
}

// Setpri sets the caller's priority to 1 or 2. Any other value, or an
// argument that cannot be fetched, is rejected and leaves the priority alone.
func (k *Kernel) Setpri(p *ptable.Proc) int32 {
	v, err := uaccess.ArgInt(p.Mem, p.TF, 0)
	if err != nil {
		k.log.Debug("setpri: bad argument", "pid", p.PID, "error", err)
		return -1
	}
	pri := types.Priority(v)
	if !pri.Valid() {
		k.log.Debug("setpri: priority out of range", "pid", p.PID, "priority", v)
		return -1
	}
	p.SetPriority(pri)
	k.log.Trace("setpri", "pid", p.PID, "priority", v)
	return 0
}
