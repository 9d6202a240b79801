package sched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srodi/pstat/pkg/ptable"
	"github.com/srodi/pstat/pkg/sysproc"
	"github.com/srodi/pstat/pkg/types"
)

func placed(t *testing.T, tbl *ptable.Table, pris ...types.Priority) []*ptable.Proc {
	t.Helper()
	var out []*ptable.Proc
	for i, pri := range pris {
		p, err := tbl.Place(i, int32(100+i), pri, nil)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestTickBillsRunningClass(t *testing.T) {
	tbl := ptable.New()
	procs := placed(t, tbl, types.PriorityLow)
	m := NewMachine(tbl, Config{CPUs: 1}, nil)
	c := m.CPUs()[0]

	require.Same(t, procs[0], m.Tick(c))
	assert.Equal(t, types.Running, procs[0].State)

	m.Tick(c)
	procs[0].SetPriority(types.PriorityHigh)
	m.Tick(c)
	m.Tick(c)

	assert.Equal(t, int32(1), procs[0].LTicks)
	assert.Equal(t, int32(2), procs[0].HTicks)
	assert.Equal(t, uint64(4), m.Uptime())
}

func TestPickPrefersHighPriority(t *testing.T) {
	tbl := ptable.New()
	procs := placed(t, tbl, types.PriorityLow, types.PriorityLow, types.PriorityHigh)
	m := NewMachine(tbl, Config{CPUs: 1}, nil)
	c := m.CPUs()[0]

	for i := 0; i < 10; i++ {
		m.Tick(c)
	}
	assert.Equal(t, int32(9), procs[2].HTicks)
	assert.Zero(t, procs[0].LTicks+procs[1].LTicks, "low class starves while high is runnable")

	procs[2].SetPriority(types.PriorityLow)
	for i := 0; i < 9; i++ {
		m.Tick(c)
	}
	assert.Equal(t, int32(3), procs[0].LTicks)
	assert.Equal(t, int32(3), procs[1].LTicks)
	assert.Equal(t, int32(3), procs[2].LTicks, "round robin once every process is low")
}

func TestTickSkipsExitedProcess(t *testing.T) {
	tbl := ptable.New()
	procs := placed(t, tbl, types.PriorityLow)
	m := NewMachine(tbl, Config{CPUs: 1}, nil)
	c := m.CPUs()[0]

	m.Tick(c)
	require.NoError(t, tbl.Exit(procs[0]))
	require.NoError(t, tbl.Reap(procs[0]))

	reused, err := tbl.Alloc(nil)
	require.NoError(t, err)
	require.NoError(t, tbl.MakeRunnable(reused))

	assert.Same(t, reused, m.Tick(c))
	assert.Zero(t, reused.LTicks, "old occupant's tick is not billed to the new one")
}

func TestTwoCPUsNeverShareAProcess(t *testing.T) {
	tbl := ptable.New()
	placed(t, tbl, types.PriorityLow, types.PriorityLow, types.PriorityHigh)
	m := NewMachine(tbl, Config{CPUs: 2}, nil)
	a, b := m.CPUs()[0], m.CPUs()[1]

	for i := 0; i < 20; i++ {
		pa := m.Tick(a)
		pb := m.Tick(b)
		require.NotNil(t, pa)
		require.NotNil(t, pb)
		if pa.State == types.Running && pb.State == types.Running {
			assert.NotSame(t, pa, pb)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	tbl := ptable.New()
	procs := placed(t, tbl, types.PriorityHigh, types.PriorityLow)
	m := NewMachine(tbl, Config{CPUs: 2, Tick: time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Run(ctx))

	tbl.Lock()
	defer tbl.Unlock()
	assert.Positive(t, procs[0].HTicks+procs[1].LTicks)
	for _, p := range procs {
		assert.Equal(t, types.Runnable, p.State, "cpus release their process on stop")
	}
}

func TestWorkloadSpawnUsesSetpri(t *testing.T) {
	tbl := ptable.New()
	k := sysproc.New(tbl, sysproc.Options{}, nil)
	w := NewWorkload(k, WorkloadConfig{Procs: 6, HighShare: 1}, nil)

	require.NoError(t, w.Fill())
	assert.Equal(t, int32(6), k.Getprocs())
	for _, p := range w.live {
		assert.Equal(t, types.PriorityHigh, p.Priority())
		assert.Equal(t, types.Runnable, p.State)
	}

	w.Retire()
	assert.Equal(t, int32(5), k.Getprocs())
	require.NoError(t, w.Fill())
	assert.Equal(t, int32(6), k.Getprocs())
}

func TestWorkloadStopsAtFullTable(t *testing.T) {
	tbl := ptable.New()
	k := sysproc.New(tbl, sysproc.Options{}, nil)
	w := NewWorkload(k, WorkloadConfig{Procs: types.NPROC + 5}, nil)

	require.NoError(t, w.Fill())
	assert.Equal(t, int32(types.NPROC), k.Getprocs())
}

func TestMachineWithWorkloadAndExporter(t *testing.T) {
	tbl := ptable.New()
	k := sysproc.New(tbl, sysproc.Options{}, nil)
	m := NewMachine(tbl, Config{CPUs: 3, Tick: time.Millisecond}, nil)
	w := NewWorkload(k, WorkloadConfig{Procs: 10, Churn: 2 * time.Millisecond, HighShare: 0.5, Seed: 7}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	done := make(chan error, 2)
	go func() { done <- m.Run(ctx) }()
	go func() { done <- w.Run(ctx) }()

	for ctx.Err() == nil {
		ps := k.Snapshot()
		n := k.Getprocs()
		assert.LessOrEqual(t, n, int32(types.NPROC))
		seen := map[int32]bool{}
		for i := 0; i < types.NPROC; i++ {
			if ps.InUse[i] == 0 {
				continue
			}
			assert.False(t, seen[ps.PID[i]], "pid %d appears twice", ps.PID[i])
			seen[ps.PID[i]] = true
		}
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)
}
