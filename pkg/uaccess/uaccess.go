// Package uaccess checks syscall arguments against a process's user address
// space before the kernel reads or writes through them.
package uaccess

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const wordSize = 4

var (
	ErrBadAddr     = errors.New("address outside user space")
	ErrNullPointer = errors.New("null user pointer")
	ErrShortWrite  = errors.New("write exceeds user buffer")
)

// AddrSpace is a process's user memory. Valid addresses are [0, Size).
type AddrSpace struct {
	mem []byte
}

// NewAddrSpace allocates size bytes of zeroed user memory.
func NewAddrSpace(size int) *AddrSpace {
	if size < 0 {
		panic("negative address space size")
	}
	return &AddrSpace{mem: make([]byte, size)}
}

// Size is the first invalid user address.
func (as *AddrSpace) Size() uint32 {
	return uint32(len(as.mem))
}

// contains reports whether [addr, addr+n) lies inside the address space.
// The comparison is done in 64 bits so addr+n cannot wrap.
func (as *AddrSpace) contains(addr uint32, n int) bool {
	if as == nil || n < 0 {
		return false
	}
	return addr < as.Size() && uint64(addr)+uint64(n) <= uint64(as.Size())
}

// Peek copies n bytes of user memory at addr. Callers outside the kernel
// (tests, the monitor process) use it to read what a syscall wrote.
func (as *AddrSpace) Peek(addr uint32, n int) ([]byte, error) {
	if !as.contains(addr, n) {
		return nil, fmt.Errorf("peek %#x+%d: %w", addr, n, ErrBadAddr)
	}
	out := make([]byte, n)
	copy(out, as.mem[addr:])
	return out, nil
}

// Poke stores b at addr.
func (as *AddrSpace) Poke(addr uint32, b []byte) error {
	if !as.contains(addr, len(b)) {
		return fmt.Errorf("poke %#x+%d: %w", addr, len(b), ErrBadAddr)
	}
	copy(as.mem[addr:], b)
	return nil
}

// Trapframe holds the user registers the syscall layer looks at.
type Trapframe struct {
	EAX uint32 // syscall number on entry, result on exit
	ESP uint32 // user stack pointer; word 0 is the return address
}

// FetchInt reads the 32-bit word at user address addr.
func FetchInt(as *AddrSpace, addr uint32) (int32, error) {
	if !as.contains(addr, wordSize) {
		return 0, fmt.Errorf("fetch %#x: %w", addr, ErrBadAddr)
	}
	return int32(binary.LittleEndian.Uint32(as.mem[addr:])), nil
}

// ArgInt fetches the n'th 32-bit syscall argument from the user stack.
func ArgInt(as *AddrSpace, tf *Trapframe, n int) (int32, error) {
	addr := uint64(tf.ESP) + wordSize + uint64(wordSize*n)
	if n < 0 || addr > math.MaxUint32 {
		return 0, fmt.Errorf("arg %d: %w", n, ErrBadAddr)
	}
	return FetchInt(as, uint32(addr))
}

// ArgPtr fetches the n'th argument as a pointer to a size-byte block and
// checks that the whole block lies within the user address space.
func ArgPtr(as *AddrSpace, tf *Trapframe, n int, size int) (*UserBuf, error) {
	v, err := ArgInt(as, tf, n)
	if err != nil {
		return nil, err
	}
	addr := uint32(v)
	if addr == 0 {
		return nil, ErrNullPointer
	}
	if !as.contains(addr, size) {
		return nil, fmt.Errorf("pointer %#x+%d: %w", addr, size, ErrBadAddr)
	}
	return &UserBuf{as: as, va: addr, len: size}, nil
}

// UserBuf is a validated, bounded window of user memory the kernel may write
// into for the duration of one syscall.
type UserBuf struct {
	as  *AddrSpace
	va  uint32
	len int
	// 0 <= off <= len
	off int
}

// Len is the size of the window.
func (ub *UserBuf) Len() int {
	return ub.len
}

// Remain is how many bytes can still be written.
func (ub *UserBuf) Remain() int {
	return ub.len - ub.off
}

// Write copies p to the window at the current offset. Writes never spill
// past the validated length.
func (ub *UserBuf) Write(p []byte) (int, error) {
	if len(p) > ub.Remain() {
		return 0, ErrShortWrite
	}
	start := int(ub.va) + ub.off
	n := copy(ub.as.mem[start:start+len(p)], p)
	ub.off += n
	return n, nil
}

// WriteInt32s writes words in little-endian order.
func (ub *UserBuf) WriteInt32s(words []int32) error {
	if len(words)*wordSize > ub.Remain() {
		return ErrShortWrite
	}
	buf := make([]byte, len(words)*wordSize)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*wordSize:], uint32(w))
	}
	_, err := ub.Write(buf)
	return err
}

// PushArgs lays out a user stack at sp holding a fake return address
// followed by args, and points tf at it.
func PushArgs(as *AddrSpace, tf *Trapframe, sp uint32, args ...int32) error {
	words := append([]int32{-1}, args...)
	buf := make([]byte, len(words)*wordSize)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*wordSize:], uint32(w))
	}
	if err := as.Poke(sp, buf); err != nil {
		return fmt.Errorf("pushing syscall args: %w", err)
	}
	tf.ESP = sp
	return nil
}

// ReadInt32s decodes n little-endian words starting at addr.
func (as *AddrSpace) ReadInt32s(addr uint32, n int) ([]int32, error) {
	raw, err := as.Peek(addr, n*wordSize)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(raw[i*wordSize:]))
	}
	return out, nil
}
