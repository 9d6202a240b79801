//go:build linux

package bpfmap

import (
	"testing"

	"github.com/srodi/pstat/pkg/types"
)

func TestMirrorRoundTrip(t *testing.T) {
	m, err := NewMirror("")
	if err != nil {
		t.Skipf("creating BPF maps needs CAP_BPF: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	var ps types.PStat
	ps.InUse[0], ps.PID[0], ps.HTicks[0], ps.LTicks[0] = 1, 3, 10, 2
	ps.InUse[types.NPROC-1], ps.PID[types.NPROC-1], ps.LTicks[types.NPROC-1] = 1, 99, -1
	if err := m.Publish(&ps); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *got != ps {
		t.Fatalf("maps did not round trip: got %+v", got)
	}
}
