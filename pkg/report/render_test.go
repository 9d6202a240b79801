package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/srodi/pstat/pkg/types"
)

func TestWriteCPUTable(t *testing.T) {
	var buf bytes.Buffer
	WriteCPUTable(&buf, nil)
	if !strings.Contains(buf.String(), "No ticks recorded") {
		t.Fatalf("unexpected empty output: %q", buf.String())
	}

	buf.Reset()
	WriteCPUTable(&buf, []ProcMetrics{{Slot: 3, PID: 42, HTicks: 7, LTicks: 1, DeltaTicks: 4, CPUPercent: 50, HighShare: 0.875, Diagnosis: "CPU hog"}})
	out := buf.String()
	if !strings.Contains(out, "SLOT") || !strings.Contains(out, "CPU hog") {
		t.Fatalf("missing header or diagnosis: %q", out)
	}
	fields := strings.Fields(strings.Split(out, "\n")[1])
	if len(fields) < 8 || fields[1] != "42" || fields[5] != "50.0" || fields[6] != "88" {
		t.Fatalf("unexpected row: %q", fields)
	}
}

func TestWriteStarvedTable(t *testing.T) {
	var buf bytes.Buffer
	WriteStarvedTable(&buf, nil)
	if !strings.Contains(buf.String(), "Every live process ran") {
		t.Fatalf("unexpected empty output: %q", buf.String())
	}
}

func TestWriteSlotsListsEverySlot(t *testing.T) {
	var ps types.PStat
	ps.InUse[2] = 1
	ps.PID[2] = 9
	var buf bytes.Buffer
	WriteSlots(&buf, &ps)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != types.NPROC+1 {
		t.Fatalf("expected %d lines, got %d", types.NPROC+1, len(lines))
	}
	if fields := strings.Fields(lines[3]); fields[1] != "1" || fields[2] != "9" {
		t.Fatalf("unexpected slot 2 row: %q", lines[3])
	}
}
