package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/srodi/pstat/pkg/types"
)

const (
	ProcsActive = "pstat_procs_active"
	ProcHTicks  = "pstat_proc_hticks"
	ProcLTicks  = "pstat_proc_lticks"
	SlotInUse   = "pstat_slot_inuse"
	Snapshots   = "pstat_snapshots_total"
)

// StatsMetrics mirrors the latest snapshot into prometheus gauges.
type StatsMetrics struct {
	Active    prometheus.Gauge
	HTicks    *prometheus.GaugeVec
	LTicks    *prometheus.GaugeVec
	InUse     *prometheus.GaugeVec
	Snapshots prometheus.Counter
}

func createGaugeVec(f promauto.Factory, name, help string, labels []string) *prometheus.GaugeVec {
	return f.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
}

// NewStatsMetrics registers the collectors with reg.
func NewStatsMetrics(reg prometheus.Registerer) *StatsMetrics {
	f := promauto.With(reg)
	return &StatsMetrics{
		Active:    f.NewGauge(prometheus.GaugeOpts{Name: ProcsActive, Help: "process table slots not unused"}),
		HTicks:    createGaugeVec(f, ProcHTicks, "ticks run at high priority", []string{"pid", "slot"}),
		LTicks:    createGaugeVec(f, ProcLTicks, "ticks run at low priority", []string{"pid", "slot"}),
		InUse:     createGaugeVec(f, SlotInUse, "1 if the slot holds a process", []string{"slot"}),
		Snapshots: f.NewCounter(prometheus.CounterOpts{Name: Snapshots, Help: "snapshots exported"}),
	}
}

// Update replaces the per-process series with the contents of ps. Series for
// processes that are gone are dropped.
func (m *StatsMetrics) Update(ps *types.PStat) {
	m.HTicks.Reset()
	m.LTicks.Reset()
	m.Active.Set(float64(ps.Active()))
	m.Snapshots.Inc()
	for i := 0; i < types.NPROC; i++ {
		slot := strconv.Itoa(i)
		m.InUse.WithLabelValues(slot).Set(float64(ps.InUse[i]))
		if ps.InUse[i] == 0 {
			continue
		}
		pid := strconv.Itoa(int(ps.PID[i]))
		m.HTicks.WithLabelValues(pid, slot).Set(float64(ps.HTicks[i]))
		m.LTicks.WithLabelValues(pid, slot).Set(float64(ps.LTicks[i]))
	}
}
