package stats

import (
	"context"
	"testing"
	"time"

	"github.com/bess-forensic/crawler/internal/types"
)

type recordingRecorder struct {
	rows []types.CrawlStats
}

func (r *recordingRecorder) RecordCrawlStats(ctx context.Context, stats types.CrawlStats) error {
	r.rows = append(r.rows, stats)
	return nil
}

func TestAccumulatorFinishProducesExpectedCounters(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	acc := NewAccumulator("run1", "muster", types.SourceRIS, start)
	acc.AddCandidatesFound(5)
	acc.RecordProcedureSaved()
	acc.RecordProcedureSaved()
	acc.RecordProcedureSkipped()
	acc.SetOutcome(types.StatusSuccess, "")
	acc.SetDiagnostics(types.DiscoveryDiagnostics{Method: types.MethodSiteDriven, ReasonCode: types.ReasonFound})

	recorder := &recordingRecorder{}
	finished := start.Add(30 * time.Second)
	row, err := acc.Finish(context.Background(), recorder, finished)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if row.Counts.CandidatesFound != 5 {
		t.Fatalf("expected 5 candidates found, got %d", row.Counts.CandidatesFound)
	}
	if row.Counts.ProceduresSaved != 2 {
		t.Fatalf("expected 2 procedures saved, got %d", row.Counts.ProceduresSaved)
	}
	if row.Counts.ProceduresSkipped != 1 {
		t.Fatalf("expected 1 procedure skipped, got %d", row.Counts.ProceduresSkipped)
	}
	if row.Counts.SourceStatus != types.StatusSuccess {
		t.Fatalf("expected SUCCESS status, got %v", row.Counts.SourceStatus)
	}
	if row.Counts.DiscoveryDiagnostics.ReasonCode != types.ReasonFound {
		t.Fatalf("expected FOUND reason code, got %v", row.Counts.DiscoveryDiagnostics.ReasonCode)
	}
	if !row.FinishedAt.Equal(finished) {
		t.Fatalf("expected finished_at %v, got %v", finished, row.FinishedAt)
	}
	if len(recorder.rows) != 1 {
		t.Fatalf("expected exactly one recorded row, got %d", len(recorder.rows))
	}
}

func TestAccumulatorDefaultsToNotRunStatus(t *testing.T) {
	acc := NewAccumulator("run1", "muster", types.SourceAmtsblatt, time.Now())
	recorder := &recordingRecorder{}
	row, err := acc.Finish(context.Background(), recorder, time.Now())
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if row.Counts.SourceStatus != types.StatusNotRun {
		t.Fatalf("expected default NOT_RUN status, got %v", row.Counts.SourceStatus)
	}
}

func TestMunicipalitySummaryFoldsAcrossSources(t *testing.T) {
	rows := []types.CrawlStats{
		{SourceType: types.SourceRIS, Counts: types.CrawlStatsCounts{SourceStatus: types.StatusSuccess, ProceduresSaved: 2}},
		{SourceType: types.SourceAmtsblatt, Counts: types.CrawlStatsCounts{SourceStatus: types.StatusErrorNetwork, ProceduresSaved: 0}},
		{SourceType: types.SourceMunicipalWebsite, Counts: types.CrawlStatsCounts{SourceStatus: types.StatusSuccess, ProceduresSaved: 1}},
	}

	statusBySource, proceduresSaved := MunicipalitySummary(rows)
	if proceduresSaved != 3 {
		t.Fatalf("expected 3 total procedures saved, got %d", proceduresSaved)
	}
	if statusBySource[string(types.SourceRIS)] != string(types.StatusSuccess) {
		t.Fatalf("expected RIS SUCCESS, got %v", statusBySource[string(types.SourceRIS)])
	}
	if statusBySource[string(types.SourceAmtsblatt)] != string(types.StatusErrorNetwork) {
		t.Fatalf("expected Amtsblatt ERROR_NETWORK, got %v", statusBySource[string(types.SourceAmtsblatt)])
	}
}
