package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/srodi/pstat/pkg/types"
)

// WriteCPUTable prints the busiest processes of the window.
func WriteCPUTable(w io.Writer, rows []ProcMetrics) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No ticks recorded in this window")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tPID\tHTICKS\tLTICKS\tWINDOW\tCPU(%)\tHIGH(%)\tDiag")
	for _, row := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%.1f\t%.0f\t%s\n",
			row.Slot, row.PID, row.HTicks, row.LTicks, row.DeltaTicks, row.CPUPercent, 100*row.HighShare, row.Diagnosis)
	}
	tw.Flush()
}

// WriteStarvedTable prints processes that got no CPU in the window.
func WriteStarvedTable(w io.Writer, rows []ProcMetrics) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "Every live process ran in this window")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tPID\tHTICKS\tLTICKS")
	for _, row := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", row.Slot, row.PID, row.HTicks, row.LTicks)
	}
	tw.Flush()
}

// WriteSlots dumps every slot of a snapshot, free ones included.
func WriteSlots(w io.Writer, ps *types.PStat) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tINUSE\tPID\tHTICKS\tLTICKS")
	for i := 0; i < types.NPROC; i++ {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\n", i, ps.InUse[i], ps.PID[i], ps.HTicks[i], ps.LTicks[i])
	}
	tw.Flush()
}
