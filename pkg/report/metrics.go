package report

import (
	"fmt"
	"sort"

	"github.com/srodi/pstat/pkg/types"
)

// ProcMetrics condenses one in-use slot of a snapshot, plus the change since
// the previous snapshot when one is available.
type ProcMetrics struct {
	Slot       int
	PID        int32
	HTicks     int32
	LTicks     int32
	Total      int32
	HighShare  float64 // fraction of the process's ticks spent at high priority
	DeltaTicks int32   // ticks gained since the previous snapshot
	CPUPercent float64 // DeltaTicks over all ticks handed out in the window
	Diagnosis  string
}

// FilterConfig controls which processes appear in CLI tables.
type FilterConfig struct {
	HideIdle *bool // nil defaults to true so processes with no ticks stay hidden
	MinPID   int32
}

func (cfg FilterConfig) hideIdleEnabled() bool {
	if cfg.HideIdle == nil {
		return true
	}
	return *cfg.HideIdle
}

// BuildProcMetrics turns a snapshot into per-process rows. prev may be nil;
// when given, a slot counts as the same process only if its pid matches.
func BuildProcMetrics(cur *types.PStat, prev *types.PStat) ([]ProcMetrics, map[int32]ProcMetrics) {
	rows := make([]ProcMetrics, 0, types.NPROC)
	var windowTicks int32
	for i := 0; i < types.NPROC; i++ {
		if cur.InUse[i] == 0 {
			continue
		}
		row := ProcMetrics{
			Slot:   i,
			PID:    cur.PID[i],
			HTicks: cur.HTicks[i],
			LTicks: cur.LTicks[i],
		}
		row.Total = row.HTicks + row.LTicks
		if row.Total > 0 {
			row.HighShare = float64(row.HTicks) / float64(row.Total)
		}
		row.DeltaTicks = row.Total
		if prev != nil && prev.InUse[i] != 0 && prev.PID[i] == row.PID {
			row.DeltaTicks = row.Total - (prev.HTicks[i] + prev.LTicks[i])
		}
		windowTicks += row.DeltaTicks
		rows = append(rows, row)
	}

	index := make(map[int32]ProcMetrics, len(rows))
	for i := range rows {
		if windowTicks > 0 {
			rows[i].CPUPercent = 100 * float64(rows[i].DeltaTicks) / float64(windowTicks)
		}
		rows[i].Diagnosis = classifyProc(&rows[i], len(rows))
		index[rows[i].PID] = rows[i]
	}
	return rows, index
}

// FilterMetrics drops rows hidden by cfg.
func FilterMetrics(rows []ProcMetrics, cfg FilterConfig) []ProcMetrics {
	filtered := make([]ProcMetrics, 0, len(rows))
	for _, row := range rows {
		if passesFilters(row, cfg) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

// CPUUsageRows returns the rows that gained the most ticks, up to topK.
func CPUUsageRows(rows []ProcMetrics, topK int) []ProcMetrics {
	candidates := make([]ProcMetrics, 0, len(rows))
	for _, row := range rows {
		if row.DeltaTicks == 0 {
			continue
		}
		candidates = append(candidates, row)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DeltaTicks == candidates[j].DeltaTicks {
			return candidates[i].PID < candidates[j].PID
		}
		return candidates[i].DeltaTicks > candidates[j].DeltaTicks
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// StarvedRows returns live processes that gained nothing in the window,
// oldest (lowest pid) first.
func StarvedRows(rows []ProcMetrics, topK int) []ProcMetrics {
	candidates := make([]ProcMetrics, 0, len(rows))
	for _, row := range rows {
		if row.Diagnosis == "Starved" {
			candidates = append(candidates, row)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].PID < candidates[j].PID })
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// SelectFocusCandidate picks the most interesting process to summarize.
func SelectFocusCandidate(rows []ProcMetrics) *ProcMetrics {
	if len(rows) == 0 {
		return nil
	}
	var best *ProcMetrics
	bestScore := -1.0
	for _, row := range rows {
		severity := diagnosisSeverity(row.Diagnosis)
		if severity == 0 {
			continue
		}
		score := float64(severity)*1000 + row.CPUPercent
		if best == nil || score > bestScore {
			copy := row
			best = &copy
			bestScore = score
		}
	}
	if best != nil {
		return best
	}
	maxIdx := 0
	for i := 1; i < len(rows); i++ {
		if rows[i].CPUPercent > rows[maxIdx].CPUPercent {
			maxIdx = i
		}
	}
	copy := rows[maxIdx]
	return &copy
}

// FocusSummary returns a short explanation string for the status line.
func FocusSummary(row ProcMetrics) string {
	switch row.Diagnosis {
	case "Starved":
		return fmt.Sprintf("no ticks this window, %d total (%d high / %d low)",
			row.Total, row.HTicks, row.LTicks)
	case "CPU hog":
		return fmt.Sprintf("%.1f%% of ticks this window, %.0f%% at high priority",
			row.CPUPercent, 100*row.HighShare)
	case "Demoted":
		return fmt.Sprintf("%d high ticks then %d low, now sharing the low class",
			row.HTicks, row.LTicks)
	default:
		return fmt.Sprintf("%.1f%% of ticks, %d total", row.CPUPercent, row.Total)
	}
}

func classifyProc(row *ProcMetrics, live int) string {
	fairShare := 100.0
	if live > 0 {
		fairShare = 100.0 / float64(live)
	}

	if row.DeltaTicks == 0 && live > 1 {
		return "Starved"
	}
	if live > 1 && row.CPUPercent > 2*fairShare && row.CPUPercent > 25 {
		return "CPU hog"
	}
	if row.HTicks > 0 && row.LTicks > row.HTicks {
		return "Demoted"
	}
	return "OK"
}

func passesFilters(row ProcMetrics, cfg FilterConfig) bool {
	if cfg.hideIdleEnabled() && row.Total == 0 {
		return false
	}
	if cfg.MinPID > 0 && row.PID < cfg.MinPID {
		return false
	}
	return true
}

func diagnosisSeverity(label string) int {
	switch label {
	case "Starved":
		return 3
	case "CPU hog":
		return 2
	case "Demoted":
		return 1
	default:
		return 0
	}
}
