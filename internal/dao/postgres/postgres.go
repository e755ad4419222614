// Package postgres is the pgx/v5-backed dao.DAO implementation for
// production runs, grounded on the teacher's internal/storage/dolt package's
// transaction-scoped write idiom (a Begin/Commit/Rollback wrapper around a
// batch of writes) but targeting Postgres, the storage backend the rest of
// the example pack converges on for geo/relational data.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bess-forensic/crawler/internal/dao"
	"github.com/bess-forensic/crawler/internal/idgen"
	"github.com/bess-forensic/crawler/internal/rollup"
	"github.com/bess-forensic/crawler/internal/types"
)

// Store wraps a pgxpool.Pool. Schema (sources, documents, extractions,
// procedures, project_entities, project_procedure_links, crawl_stats,
// candidates) is created by the migration files this package expects
// alongside it in deployment, not by this package.
type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() { s.Pool.Close() }

var _ dao.DAO = (*Store)(nil)

// FlushExtraction runs the whole batch plus the resolve-and-link step inside
// one transaction, matching spec.md §5's "a procedure is atomically upserted
// then linked to at most one project entity inside the same transaction".
func (s *Store) FlushExtraction(ctx context.Context, opts dao.UpsertOptions, batch dao.ExtractionBatch, resolve dao.Resolver) (projectID string, err error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, src := range batch.Sources {
		if _, err = tx.Exec(ctx, `
			INSERT INTO sources (id, procedure_id, source_url, retrieved_at, http_status, etag, last_modified, discovery_source, discovery_path)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (id) DO UPDATE SET http_status = EXCLUDED.http_status, retrieved_at = EXCLUDED.retrieved_at`,
			src.ID, src.ProcedureID, src.SourceURL, src.RetrievedAt, src.HTTPStatus, src.ETag, src.LastModified, src.DiscoverySource, src.DiscoveryPath); err != nil {
			return "", fmt.Errorf("postgres: upsert source %s: %w", src.ID, err)
		}
	}

	for _, d := range batch.Documents {
		if _, err = tx.Exec(ctx, `
			INSERT INTO documents (id, source_id, content_sha256, bytes, mime, storage_path, has_text_layer, extracted_text, ocr_needed)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (id) DO NOTHING`,
			d.ID, d.SourceID, d.ContentSHA256, d.Bytes, d.MIME, d.StoragePath, d.HasTextLayer, d.ExtractedText, d.OCRNeeded); err != nil {
			return "", fmt.Errorf("postgres: insert document %s: %w", d.ID, err)
		}
	}

	for _, e := range batch.Extractions {
		if _, err = tx.Exec(ctx, `
			INSERT INTO extractions (id, document_id, field, value, method, evidence_snippet, page)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO NOTHING`,
			e.ID, e.DocumentID, e.Field, e.Value, e.Method, e.EvidenceSnippet, e.Page); err != nil {
			return "", fmt.Errorf("postgres: insert extraction %s: %w", e.ID, err)
		}
	}

	if batch.Procedure == nil {
		return "", tx.Commit(ctx)
	}
	proc := *batch.Procedure
	if _, err = tx.Exec(ctx, `
		INSERT INTO procedures (id, title, title_norm, municipality_key, state, county, procedure_type, legal_basis,
			project_components, ambiguity_flag, review_recommended, confidence, bess_score, grid_score, decision_date,
			site_location_raw, developer_company, capacity_mw, capacity_mwh, area_hectares, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		ON CONFLICT (id) DO UPDATE SET confidence = EXCLUDED.confidence, review_recommended = EXCLUDED.review_recommended`,
		proc.ID, proc.Title, proc.TitleNorm, proc.MunicipalityKey, proc.State, proc.County, proc.ProcedureType, proc.LegalBasis,
		proc.ProjectComponents, proc.AmbiguityFlag, proc.ReviewRecommended, proc.Confidence, proc.BESSScore, proc.GridScore, proc.DecisionDate,
		proc.SiteLocationRaw, proc.DeveloperCompany, proc.CapacityMW, proc.CapacityMWh, proc.AreaHectares, proc.CreatedAt); err != nil {
		return "", fmt.Errorf("postgres: upsert procedure %s: %w", proc.ID, err)
	}

	existing, err := s.projectsForMunicipalityTx(ctx, tx, proc.MunicipalityKey)
	if err != nil {
		return "", err
	}
	resolvedID, matchLevel, confidence, isNew := resolve(proc, existing)

	var project types.ProjectEntity
	if isNew {
		resolvedID = idgen.MakeProjectID(proc.MunicipalityKey, proc.TitleNorm)
		project = rollup.Recompute(types.ProjectEntity{ID: resolvedID, MunicipalityKey: proc.MunicipalityKey}, []types.Procedure{proc})
	} else {
		linked, perr := s.proceduresForProjectTx(ctx, tx, resolvedID)
		if perr != nil {
			return "", perr
		}
		linked = append(linked, proc)
		project = rollup.Recompute(project, linked)
		project.ID = resolvedID
	}

	if err = s.upsertProjectTx(ctx, tx, project); err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `
		INSERT INTO project_procedure_links (procedure_id, project_id, match_level, confidence)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (procedure_id) DO UPDATE SET project_id = EXCLUDED.project_id, match_level = EXCLUDED.match_level, confidence = EXCLUDED.confidence`,
		proc.ID, project.ID, matchLevel, confidence); err != nil {
		return "", fmt.Errorf("postgres: link procedure %s: %w", proc.ID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("postgres: commit: %w", err)
	}
	return project.ID, nil
}

func (s *Store) UpsertProjectEntity(ctx context.Context, project types.ProjectEntity) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := s.upsertProjectTx(ctx, tx, project); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) upsertProjectTx(ctx context.Context, tx pgxTx, project types.ProjectEntity) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO project_entities (id, municipality_key, canonical_project_name, maturity_stage, legal_basis_best,
			project_components_best, developer_company_best, site_location_best, capacity_mw_best, capacity_mwh_best,
			area_hectares_best, first_seen_date, last_seen_date, max_confidence, needs_review)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			canonical_project_name = EXCLUDED.canonical_project_name,
			maturity_stage = EXCLUDED.maturity_stage,
			legal_basis_best = EXCLUDED.legal_basis_best,
			project_components_best = EXCLUDED.project_components_best,
			developer_company_best = EXCLUDED.developer_company_best,
			site_location_best = EXCLUDED.site_location_best,
			capacity_mw_best = EXCLUDED.capacity_mw_best,
			capacity_mwh_best = EXCLUDED.capacity_mwh_best,
			area_hectares_best = EXCLUDED.area_hectares_best,
			first_seen_date = EXCLUDED.first_seen_date,
			last_seen_date = EXCLUDED.last_seen_date,
			max_confidence = EXCLUDED.max_confidence,
			needs_review = EXCLUDED.needs_review`,
		project.ID, project.MunicipalityKey, project.CanonicalProjectName, project.MaturityStage, project.LegalBasisBest,
		project.ProjectComponentsBest, project.DeveloperCompanyBest, project.SiteLocationBest, project.CapacityMWBest, project.CapacityMWhBest,
		project.AreaHectaresBest, project.FirstSeenDate, project.LastSeenDate, project.MaxConfidence, project.NeedsReview)
	if err != nil {
		return fmt.Errorf("postgres: upsert project %s: %w", project.ID, err)
	}
	return nil
}

func (s *Store) ProjectsForMunicipality(ctx context.Context, municipalityKey string) ([]types.ProjectEntity, error) {
	return s.projectsForMunicipalityTx(ctx, s.Pool, municipalityKey)
}

func (s *Store) projectsForMunicipalityTx(ctx context.Context, q pgxQuerier, municipalityKey string) ([]types.ProjectEntity, error) {
	rows, err := q.Query(ctx, `
		SELECT id, municipality_key, canonical_project_name, maturity_stage, legal_basis_best, project_components_best,
			developer_company_best, site_location_best, capacity_mw_best, capacity_mwh_best, area_hectares_best,
			first_seen_date, last_seen_date, max_confidence, needs_review
		FROM project_entities WHERE municipality_key = $1`, municipalityKey)
	if err != nil {
		return nil, fmt.Errorf("postgres: query projects: %w", err)
	}
	defer rows.Close()

	var out []types.ProjectEntity
	for rows.Next() {
		var p types.ProjectEntity
		if err := rows.Scan(&p.ID, &p.MunicipalityKey, &p.CanonicalProjectName, &p.MaturityStage, &p.LegalBasisBest,
			&p.ProjectComponentsBest, &p.DeveloperCompanyBest, &p.SiteLocationBest, &p.CapacityMWBest, &p.CapacityMWhBest,
			&p.AreaHectaresBest, &p.FirstSeenDate, &p.LastSeenDate, &p.MaxConfidence, &p.NeedsReview); err != nil {
			return nil, fmt.Errorf("postgres: scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ProceduresForProject(ctx context.Context, projectID string) ([]types.Procedure, error) {
	return s.proceduresForProjectTx(ctx, s.Pool, projectID)
}

func (s *Store) proceduresForProjectTx(ctx context.Context, q pgxQuerier, projectID string) ([]types.Procedure, error) {
	rows, err := q.Query(ctx, `
		SELECT p.id, p.title, p.title_norm, p.municipality_key, p.state, p.county, p.procedure_type, p.legal_basis,
			p.project_components, p.ambiguity_flag, p.review_recommended, p.confidence, p.bess_score, p.grid_score,
			p.decision_date, p.site_location_raw, p.developer_company, p.capacity_mw, p.capacity_mwh, p.area_hectares, p.created_at
		FROM procedures p
		JOIN project_procedure_links l ON l.procedure_id = p.id
		WHERE l.project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query procedures: %w", err)
	}
	defer rows.Close()

	var out []types.Procedure
	for rows.Next() {
		var p types.Procedure
		if err := rows.Scan(&p.ID, &p.Title, &p.TitleNorm, &p.MunicipalityKey, &p.State, &p.County, &p.ProcedureType, &p.LegalBasis,
			&p.ProjectComponents, &p.AmbiguityFlag, &p.ReviewRecommended, &p.Confidence, &p.BESSScore, &p.GridScore,
			&p.DecisionDate, &p.SiteLocationRaw, &p.DeveloperCompany, &p.CapacityMW, &p.CapacityMWh, &p.AreaHectares, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan procedure: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) RecordCrawlStats(ctx context.Context, stats types.CrawlStats) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO crawl_stats (run_id, municipality_key, source_type, candidates_found, procedures_saved,
			procedures_skipped, source_status, error_message, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (run_id, municipality_key, source_type) DO UPDATE SET
			candidates_found = EXCLUDED.candidates_found,
			procedures_saved = EXCLUDED.procedures_saved,
			procedures_skipped = EXCLUDED.procedures_skipped,
			source_status = EXCLUDED.source_status,
			error_message = EXCLUDED.error_message,
			finished_at = EXCLUDED.finished_at`,
		stats.RunID, stats.MunicipalityKey, stats.SourceType, stats.Counts.CandidatesFound, stats.Counts.ProceduresSaved,
		stats.Counts.ProceduresSkipped, stats.Counts.SourceStatus, stats.Counts.ErrorMessage, stats.StartedAt, stats.FinishedAt)
	if err != nil {
		return fmt.Errorf("postgres: record crawl stats: %w", err)
	}
	return nil
}

func (s *Store) MarkCandidateStatus(ctx context.Context, candidateID string, status types.CandidateStatus) error {
	_, err := s.Pool.Exec(ctx, `UPDATE candidates SET status = $2 WHERE id = $1`, candidateID, status)
	if err != nil {
		return fmt.Errorf("postgres: mark candidate status %s: %w", candidateID, err)
	}
	return nil
}

// pgxQuerier and pgxTx narrow pgxpool.Pool/pgx.Tx to the one method each
// helper needs, so the same query/exec helpers serve both a pooled
// connection and a transaction — both satisfy these signatures already.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type pgxTx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}
