// Package ulib is the user-side half of the stats syscalls: it marshals
// arguments onto the calling process's stack, traps into the kernel, and
// decodes results out of user memory.
package ulib

import (
	"fmt"

	"github.com/srodi/pstat/pkg/ptable"
	"github.com/srodi/pstat/pkg/sysproc"
	"github.com/srodi/pstat/pkg/types"
	"github.com/srodi/pstat/pkg/uaccess"
)

// argFrame is room for a return address plus a few argument words.
const argFrame = 16

// MinMem is the smallest address space that fits a stack frame and a pstat
// buffer laid out by Layout.
const MinMem = types.PStatSize + 2*argFrame

// Layout returns where the stack pointer and a pstat buffer live in a
// process's memory: the buffer at the bottom, the stack at the top.
func Layout(p *ptable.Proc) (sp, buf uint32) {
	size := p.Mem.Size()
	return size - argFrame, argFrame
}

func trap(k *sysproc.Kernel, p *ptable.Proc, num int, args ...int32) (int32, error) {
	if p.Mem == nil || p.Mem.Size() < MinMem {
		return -1, fmt.Errorf("pid %d: address space smaller than %d bytes", p.PID, MinMem)
	}
	sp, _ := Layout(p)
	if err := uaccess.PushArgs(p.Mem, p.TF, sp, args...); err != nil {
		return -1, err
	}
	p.TF.EAX = uint32(num)
	return k.Syscall(p), nil
}

// Getprocs returns the number of live processes.
func Getprocs(k *sysproc.Kernel, p *ptable.Proc) (int32, error) {
	return trap(k, p, types.SysGetprocs)
}

// Setpri asks the kernel to set p's priority. The kernel's return value
// is passed through unchanged.
func Setpri(k *sysproc.Kernel, p *ptable.Proc, pri int32) (int32, error) {
	return trap(k, p, types.SysSetpri, pri)
}

// GetpinfoAt calls getpinfo with a raw user address and returns the
// kernel's result without decoding anything.
func GetpinfoAt(k *sysproc.Kernel, p *ptable.Proc, addr uint32) (int32, error) {
	return trap(k, p, types.SysGetpinfo, int32(addr))
}

// Getpinfo fetches a snapshot into p's buffer and decodes it.
func Getpinfo(k *sysproc.Kernel, p *ptable.Proc) (*types.PStat, error) {
	_, buf := Layout(p)
	ret, err := GetpinfoAt(k, p, buf)
	if err != nil {
		return nil, err
	}
	if ret < 0 {
		return nil, fmt.Errorf("getpinfo returned %d", ret)
	}
	return Decode(p, buf)
}

// Decode reads a struct pstat out of p's memory at addr.
func Decode(p *ptable.Proc, addr uint32) (*types.PStat, error) {
	words, err := p.Mem.ReadInt32s(addr, types.PStatSize/4)
	if err != nil {
		return nil, fmt.Errorf("decoding pstat: %w", err)
	}
	var ps types.PStat
	n := types.NPROC
	copy(ps.InUse[:], words[0:n])
	copy(ps.PID[:], words[n:2*n])
	copy(ps.HTicks[:], words[2*n:3*n])
	copy(ps.LTicks[:], words[3*n:4*n])
	return &ps, nil
}
