package memory

import (
	"context"
	"testing"

	"github.com/bess-forensic/crawler/internal/dao"
	"github.com/bess-forensic/crawler/internal/types"
)

func alwaysNewResolver(procedure types.Procedure, existing []types.ProjectEntity) (string, types.MatchLevel, float64, bool) {
	return "", types.Match36New, 0.70, true
}

func TestFlushExtractionCreatesNewProjectWhenResolverSaysNew(t *testing.T) {
	s := New()
	batch := dao.ExtractionBatch{Procedure: &types.Procedure{
		ID:              "proc1",
		MunicipalityKey: "muster",
		TitleNorm:       "bebauungsplan nr 12",
	}}

	projectID, err := s.FlushExtraction(context.Background(), dao.UpsertOptions{RunID: "run1"}, batch, alwaysNewResolver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if projectID == "" {
		t.Fatal("expected a non-empty project id")
	}

	projects, _ := s.ProjectsForMunicipality(context.Background(), "muster")
	if len(projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(projects))
	}
}

func TestFlushExtractionLinksToExistingProjectWhenResolverMatches(t *testing.T) {
	s := New()
	first := dao.ExtractionBatch{Procedure: &types.Procedure{ID: "proc1", MunicipalityKey: "muster", TitleNorm: "bebauungsplan nr 12"}}
	firstID, _ := s.FlushExtraction(context.Background(), dao.UpsertOptions{RunID: "run1"}, first, alwaysNewResolver)

	matchExisting := func(procedure types.Procedure, existing []types.ProjectEntity) (string, types.MatchLevel, float64, bool) {
		return firstID, types.MatchPlan, 0.90, false
	}
	second := dao.ExtractionBatch{Procedure: &types.Procedure{ID: "proc2", MunicipalityKey: "muster", TitleNorm: "bebauungsplan nr 12 satzung"}}
	secondID, err := s.FlushExtraction(context.Background(), dao.UpsertOptions{RunID: "run1"}, second, matchExisting)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secondID != firstID {
		t.Fatalf("expected both procedures on the same project, got %q then %q", firstID, secondID)
	}

	procedures, _ := s.ProceduresForProject(context.Background(), firstID)
	if len(procedures) != 2 {
		t.Fatalf("expected 2 linked procedures, got %d", len(procedures))
	}
}

func TestFlushExtractionWithNoProcedureOnlyPersistsSources(t *testing.T) {
	s := New()
	batch := dao.ExtractionBatch{Sources: []types.Source{{ID: "src1", SourceURL: "https://example.de/x"}}}

	projectID, err := s.FlushExtraction(context.Background(), dao.UpsertOptions{RunID: "run1"}, batch, alwaysNewResolver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if projectID != "" {
		t.Fatalf("expected no project for a rejected/audit-only batch, got %q", projectID)
	}
}

func TestMarkCandidateStatusAndRecordCrawlStatsDontError(t *testing.T) {
	s := New()
	if err := s.MarkCandidateStatus(context.Background(), "cand1", types.CandidateDone); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.RecordCrawlStats(context.Background(), types.CrawlStats{RunID: "run1", MunicipalityKey: "muster", SourceType: types.SourceRIS}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
