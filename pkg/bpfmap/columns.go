// Package bpfmap mirrors process stats snapshots into BPF array maps so
// tools outside the process (bpftool, other eBPF programs) can read them.
package bpfmap

import "github.com/srodi/pstat/pkg/types"

const numColumns = 4

var columnNames = [numColumns]string{"pstat_inuse", "pstat_pid", "pstat_hticks", "pstat_lticks"}

func columns(ps *types.PStat) [numColumns]*[types.NPROC]int32 {
	return [numColumns]*[types.NPROC]int32{&ps.InUse, &ps.PID, &ps.HTicks, &ps.LTicks}
}
