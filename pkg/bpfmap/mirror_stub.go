//go:build !linux
// +build !linux

package bpfmap

import (
	"errors"

	"github.com/srodi/pstat/pkg/types"
)

var errUnsupported = errors.New("bpf map mirror requires linux")

// Mirror is a placeholder on non-Linux platforms.
type Mirror struct{}

// NewMirror returns an error because eBPF is only supported on Linux.
func NewMirror(pinPath string) (*Mirror, error) {
	return nil, errUnsupported
}

// Publish always fails on unsupported platforms.
func (m *Mirror) Publish(ps *types.PStat) error {
	return errUnsupported
}

// Load always fails on unsupported platforms.
func (m *Mirror) Load() (*types.PStat, error) {
	return nil, errUnsupported
}

// Close is a no-op stub.
func (m *Mirror) Close() error {
	return nil
}
