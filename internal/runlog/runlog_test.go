package runlog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/albapepper/racesync/internal/controller"
	"github.com/albapepper/racesync/internal/fetch"
	"github.com/albapepper/racesync/internal/raceerr"
)

func TestFromReportStatusComplete(t *testing.T) {
	var report controller.Report
	summary := FromReport("daily", time.Now(), report, nil)
	if summary.Status != StatusComplete {
		t.Fatalf("status = %q, want %q", summary.Status, StatusComplete)
	}
}

func TestFromReportStatusPartial(t *testing.T) {
	report := controller.Report{}
	// Simulate a job failure via the public Report API (Manual-style
	// single-job reports are built the same way the Controller builds
	// them internally).
	report = reportWithOneFailedJob()
	summary := FromReport("manual", time.Now(), report, nil)
	if summary.Status != StatusPartial {
		t.Fatalf("status = %q, want %q", summary.Status, StatusPartial)
	}
}

func TestFromReportStatusAborted(t *testing.T) {
	report := controller.Report{}
	summary := FromReport("backfill", time.Now(), report, raceerr.InvariantViolation)
	if summary.Status != StatusAborted {
		t.Fatalf("status = %q, want %q", summary.Status, StatusAborted)
	}
	if summary.FatalError == "" {
		t.Fatal("expected FatalError to be populated")
	}
}

func TestWriteProducesReadableJSON(t *testing.T) {
	dir := t.TempDir()
	summary := Summary{Mode: "daily", FinishedAt: time.Now(), Status: StatusComplete}

	path, err := Write(dir, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("expected file under %s, got %s", dir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded Summary
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Mode != "daily" || decoded.Status != StatusComplete {
		t.Fatalf("unexpected decoded summary: %+v", decoded)
	}
}

// reportWithOneFailedJob builds a Report carrying one failed, non-fatal
// job, the shape Controller.Manual/Daily/Scheduled/Backfill produce when
// a single fetcher call errors without aborting the whole run.
func reportWithOneFailedJob() controller.Report {
	var report controller.Report
	// controller.Report's fields are exported for exactly this purpose —
	// runlog renders whatever the Controller already accumulated.
	report.Jobs = []controller.JobResult{
		{Name: "races", Summary: fetch.Summary{FailedBatches: 1}, Err: errors.New("boom")},
	}
	return report
}
