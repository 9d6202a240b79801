package types

// NPROC is the fixed number of slots in the process table.
const NPROC = 64

// DefaultTopK controls how many processes we display per table.
const DefaultTopK = 5

// State is the lifecycle state of a process table slot.
type State int32

const (
	Unused State = iota
	Embryo
	Sleeping
	Runnable
	Running
	Zombie
)

var stateNames = [...]string{
	Unused:   "unused",
	Embryo:   "embryo",
	Sleeping: "sleep",
	Runnable: "runble",
	Running:  "run",
	Zombie:   "zombie",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "???"
	}
	return stateNames[s]
}

// Priority is the scheduling class a process assigns itself.
type Priority int32

const (
	PriorityLow  Priority = 1
	PriorityHigh Priority = 2
)

// Valid reports whether p is one of the two accepted classes.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityHigh
}

// Syscall numbers served by the stats core.
const (
	SysGetprocs = 22
	SysSetpri   = 23
	SysGetpinfo = 24
)

// PStat is the per-slot statistics snapshot handed back by getpinfo.
// Entry i of every array describes table slot i at the instant of capture.
type PStat struct {
	InUse  [NPROC]int32 `json:"inuse"`
	PID    [NPROC]int32 `json:"pid"`
	HTicks [NPROC]int32 `json:"hticks"`
	LTicks [NPROC]int32 `json:"lticks"`
}

// PStatSize is the size in bytes of a PStat laid out in user memory:
// four consecutive little-endian int32 arrays of NPROC entries.
const PStatSize = 4 * 4 * NPROC

// Words returns the snapshot in its user-memory order.
func (ps *PStat) Words() []int32 {
	out := make([]int32, 0, 4*NPROC)
	out = append(out, ps.InUse[:]...)
	out = append(out, ps.PID[:]...)
	out = append(out, ps.HTicks[:]...)
	return append(out, ps.LTicks[:]...)
}

// Active returns the number of slots marked in use.
func (ps *PStat) Active() int {
	n := 0
	for _, v := range ps.InUse {
		if v != 0 {
			n++
		}
	}
	return n
}
