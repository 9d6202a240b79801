//go:build linux
// +build linux

package bpfmap

import (
	"errors"
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/rlimit"

	"github.com/srodi/pstat/pkg/types"
)

// Mirror owns one BPF array map per snapshot column, keyed by slot.
type Mirror struct {
	maps [numColumns]*ebpf.Map
}

// NewMirror creates the maps, pinning them by name under pinPath when it is
// not empty so bpftool and other loaders can find them.
func NewMirror(pinPath string) (*Mirror, error) {
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("removing memlock limit: %w", err)
	}

	var opts ebpf.MapOptions
	pinning := ebpf.PinNone
	if pinPath != "" {
		opts.PinPath = pinPath
		pinning = ebpf.PinByName
	}

	m := &Mirror{}
	for i, name := range columnNames {
		spec := &ebpf.MapSpec{
			Name:       name,
			Type:       ebpf.Array,
			KeySize:    4,
			ValueSize:  4,
			MaxEntries: types.NPROC,
			Pinning:    pinning,
		}
		bm, err := ebpf.NewMapWithOptions(spec, opts)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("creating map %s: %w", name, err)
		}
		m.maps[i] = bm
	}
	return m, nil
}

// Publish writes every column of ps into its map.
func (m *Mirror) Publish(ps *types.PStat) error {
	cols := columns(ps)
	for c, bm := range m.maps {
		for slot := uint32(0); slot < types.NPROC; slot++ {
			val := cols[c][slot]
			if err := bm.Update(&slot, &val, ebpf.UpdateAny); err != nil {
				return fmt.Errorf("updating %s[%d]: %w", columnNames[c], slot, err)
			}
		}
	}
	return nil
}

// Load reads the maps back into a snapshot.
func (m *Mirror) Load() (*types.PStat, error) {
	var ps types.PStat
	cols := columns(&ps)
	for c, bm := range m.maps {
		for slot := uint32(0); slot < types.NPROC; slot++ {
			if err := bm.Lookup(&slot, &cols[c][slot]); err != nil {
				return nil, fmt.Errorf("reading %s[%d]: %w", columnNames[c], slot, err)
			}
		}
	}
	return &ps, nil
}

// Close releases the map file descriptors. Pinned maps stay in bpffs.
func (m *Mirror) Close() error {
	var err error
	for _, bm := range m.maps {
		if bm != nil {
			err = errors.Join(err, bm.Close())
		}
	}
	return err
}
