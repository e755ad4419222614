// Package dao defines the backend-agnostic persistence interface for the
// crawl pipeline's entities, grounded on the teacher's internal/storage
// package: a small interface over interface, with an options struct for the
// one write path (batch upsert) that needs tunable behavior rather than a
// method per variant.
package dao

import (
	"context"

	"github.com/bess-forensic/crawler/internal/types"
)

// UpsertOptions tunes the one batched write path every extraction job ends
// with, mirroring the teacher's BatchCreateOptions shape.
type UpsertOptions struct {
	// RunID names the crawl run this batch belongs to. The memory and
	// postgres backends' FlushExtraction does not read it.
	RunID string
}

// ExtractionBatch is everything one extraction job accumulates before it
// flushes on completion (spec.md §4.10: "Batch DAO writes accumulate within
// an extraction job and flush on completion").
type ExtractionBatch struct {
	Sources    []types.Source
	Documents  []types.Document
	Extractions []types.Extraction
	Procedure  *types.Procedure
	Rejected   bool
}

// DAO is the storage-backend-agnostic interface every pipeline stage writes
// through. Implementations must make FlushExtraction atomic: a Procedure and
// its ProjectEntity link land in the same transaction (spec.md §5 ordering
// guarantee).
type DAO interface {
	// FlushExtraction persists one extraction job's accumulated batch and,
	// when batch.Procedure is non-nil, resolves and links it to a project
	// entity inside the same transaction, returning the resolved project id.
	FlushExtraction(ctx context.Context, opts UpsertOptions, batch ExtractionBatch, resolve Resolver) (projectID string, err error)

	// UpsertProjectEntity writes a recomputed rollup (internal/rollup.Recompute
	// output) for an existing project, used when a later procedure attaches to
	// an already-created project.
	UpsertProjectEntity(ctx context.Context, project types.ProjectEntity) error

	// ProjectsForMunicipality lists existing ProjectEntity rows scoped to one
	// municipality_key, the candidate pool internal/resolver.Resolve matches
	// against.
	ProjectsForMunicipality(ctx context.Context, municipalityKey string) ([]types.ProjectEntity, error)

	// ProceduresForProject lists every Procedure linked to one project, the
	// input internal/rollup.Recompute needs.
	ProceduresForProject(ctx context.Context, projectID string) ([]types.Procedure, error)

	// RecordCrawlStats upserts one (run_id, municipality_key, source_type) row.
	RecordCrawlStats(ctx context.Context, stats types.CrawlStats) error

	// MarkCandidateStatus updates a candidate's at-most-once extraction status.
	MarkCandidateStatus(ctx context.Context, candidateID string, status types.CandidateStatus) error
}

// Resolver is the narrow slice of internal/resolver.Resolve the DAO needs to
// call inside its transaction, injected to keep this package free of a
// direct dependency on internal/resolver (and, transitively, on
// internal/keywords/normalize) — mirroring internal/httpclient's modeLike
// pattern of depending on behavior, not a package.
type Resolver func(procedure types.Procedure, existing []types.ProjectEntity) (projectID string, matchLevel types.MatchLevel, confidence float64, isNewProject bool)
