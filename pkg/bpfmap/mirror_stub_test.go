//go:build !linux

package bpfmap

import (
	"errors"
	"testing"

	"github.com/srodi/pstat/pkg/types"
)

func TestStubMirrorBehavior(t *testing.T) {
	if _, err := NewMirror(""); !errors.Is(err, errUnsupported) {
		t.Fatalf("expected errUnsupported, got %v", err)
	}

	var m Mirror
	if err := m.Publish(&types.PStat{}); err != errUnsupported {
		t.Fatalf("publish should fail with errUnsupported, got %v", err)
	}
	if ps, err := m.Load(); err != errUnsupported || ps != nil {
		t.Fatalf("load should fail with errUnsupported, got ps=%v err=%v", ps, err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close should be a no-op, got %v", err)
	}
}
