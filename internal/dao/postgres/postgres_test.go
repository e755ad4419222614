//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bess-forensic/crawler/internal/dao"
	"github.com/bess-forensic/crawler/internal/types"
)

// schema mirrors the tables FlushExtraction/ProjectsForMunicipality/
// ProceduresForProject read and write; a real deployment applies this via a
// migrations tool, this test inlines it for a self-contained container.
const schema = `
CREATE TABLE sources (id text primary key, procedure_id text, source_url text, retrieved_at timestamptz, http_status int, etag text, last_modified text, discovery_source text, discovery_path text);
CREATE TABLE documents (id text primary key, source_id text, content_sha256 text, bytes bigint, mime text, storage_path text, has_text_layer bool, extracted_text text, ocr_needed bool);
CREATE TABLE extractions (id text primary key, document_id text, field text, value text, method text, evidence_snippet text, page int);
CREATE TABLE procedures (id text primary key, title text, title_norm text, municipality_key text, state text, county text, procedure_type text, legal_basis text, project_components text, ambiguity_flag bool, review_recommended bool, confidence float8, bess_score float8, grid_score float8, decision_date timestamptz, site_location_raw text, developer_company text, capacity_mw float8, capacity_mwh float8, area_hectares float8, created_at timestamptz);
CREATE TABLE project_entities (id text primary key, municipality_key text, canonical_project_name text, maturity_stage int, legal_basis_best text, project_components_best text, developer_company_best text, site_location_best text, capacity_mw_best float8, capacity_mwh_best float8, area_hectares_best float8, first_seen_date timestamptz, last_seen_date timestamptz, max_confidence float8, needs_review bool);
CREATE TABLE project_procedure_links (procedure_id text primary key, project_id text, match_level text, confidence float8);
CREATE TABLE crawl_stats (run_id text, municipality_key text, source_type text, candidates_found int, procedures_saved int, procedures_skipped int, source_status text, error_message text, started_at timestamptz, finished_at timestamptz, primary key (run_id, municipality_key, source_type));
CREATE TABLE candidates (id text primary key, status text);
`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("bess"),
		tcpostgres.WithUsername("bess"),
		tcpostgres.WithPassword("bess"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	store, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("connect store: %v", err)
	}
	if _, err := store.Pool.Exec(ctx, schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestFlushExtractionCreatesProjectAndLink(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	batch := dao.ExtractionBatch{
		Procedure: &types.Procedure{
			ID:              "proc1",
			Title:           "Aufstellungsbeschluss B-Plan Nr. 12",
			TitleNorm:       "aufstellungsbeschluss b plan nr 12",
			MunicipalityKey: "muster",
			ProcedureType:   types.ProcBPlanAufstellung,
			LegalBasis:      types.Legal35,
			CreatedAt:       time.Now().Add(-time.Hour),
		},
	}
	resolver := func(procedure types.Procedure, existing []types.ProjectEntity) (string, types.MatchLevel, float64, bool) {
		return "", types.MatchPlan, 0.90, true
	}

	projectID, err := store.FlushExtraction(ctx, dao.UpsertOptions{RunID: "run1"}, batch, resolver)
	if err != nil {
		t.Fatalf("flush extraction: %v", err)
	}
	if projectID == "" {
		t.Fatal("expected a project id")
	}

	projects, err := store.ProjectsForMunicipality(ctx, "muster")
	if err != nil {
		t.Fatalf("query projects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(projects))
	}

	procedures, err := store.ProceduresForProject(ctx, projectID)
	if err != nil {
		t.Fatalf("query procedures: %v", err)
	}
	if len(procedures) != 1 || procedures[0].ID != "proc1" {
		t.Fatalf("expected proc1 linked, got %+v", procedures)
	}
}

func TestRecordCrawlStatsUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stats := types.CrawlStats{RunID: "run1", MunicipalityKey: "muster", SourceType: types.SourceRIS, StartedAt: time.Now()}
	if err := store.RecordCrawlStats(ctx, stats); err != nil {
		t.Fatalf("record crawl stats: %v", err)
	}
	stats.Counts.ProceduresSaved = 3
	if err := store.RecordCrawlStats(ctx, stats); err != nil {
		t.Fatalf("re-record crawl stats: %v", err)
	}
}
