// Package stats accumulates one discovery job's counters into a
// types.CrawlStats row and folds per-source results into the
// MUNICIPALITY_SUMMARY line (spec.md §3/§5/§7).
package stats

import (
	"context"
	"time"

	"github.com/bess-forensic/crawler/internal/types"
)

// Recorder persists CrawlStats rows, satisfied by internal/dao.DAO.
type Recorder interface {
	RecordCrawlStats(ctx context.Context, stats types.CrawlStats) error
}

// Accumulator collects one discovery job's counters as it runs, then
// produces the CrawlStats row to persist on completion.
type Accumulator struct {
	RunID           string
	MunicipalityKey string
	SourceType      types.DiscoverySource
	StartedAt       time.Time

	candidatesFound   int
	proceduresSaved   int
	proceduresSkipped int
	status            types.SourceStatus
	errorMessage      string
	diagnostics       types.DiscoveryDiagnostics
}

func NewAccumulator(runID, municipalityKey string, source types.DiscoverySource, startedAt time.Time) *Accumulator {
	return &Accumulator{RunID: runID, MunicipalityKey: municipalityKey, SourceType: source, StartedAt: startedAt, status: types.StatusNotRun}
}

func (a *Accumulator) SetDiagnostics(diag types.DiscoveryDiagnostics) { a.diagnostics = diag }

func (a *Accumulator) AddCandidatesFound(n int) { a.candidatesFound += n }

func (a *Accumulator) RecordProcedureSaved() { a.proceduresSaved++ }

func (a *Accumulator) RecordProcedureSkipped() { a.proceduresSkipped++ }

// SetOutcome records the terminal per-(run,municipality,source) status
// (spec.md §7's error taxonomy maps 1:1 onto SourceStatus).
func (a *Accumulator) SetOutcome(status types.SourceStatus, errorMessage string) {
	a.status = status
	a.errorMessage = errorMessage
}

// Finish builds the CrawlStats row and persists it via recorder.
func (a *Accumulator) Finish(ctx context.Context, recorder Recorder, finishedAt time.Time) (types.CrawlStats, error) {
	row := types.CrawlStats{
		RunID:           a.RunID,
		MunicipalityKey: a.MunicipalityKey,
		SourceType:      a.SourceType,
		Counts: types.CrawlStatsCounts{
			CandidatesFound:      a.candidatesFound,
			ProceduresSaved:      a.proceduresSaved,
			ProceduresSkipped:    a.proceduresSkipped,
			SourceStatus:         a.status,
			ErrorMessage:         a.errorMessage,
			DiscoveryDiagnostics: a.diagnostics,
		},
		StartedAt:  a.StartedAt,
		FinishedAt: finishedAt,
	}
	if err := recorder.RecordCrawlStats(ctx, row); err != nil {
		return row, err
	}
	return row, nil
}

// MunicipalitySummary is the per-source status plus cumulative procedures
// saved, the shape internal/logging.MunicipalitySummary's second argument
// expects — folded here from one municipality's three discovery jobs
// (spec.md §5: "A one-line MUNICIPALITY_SUMMARY is logged on each discovery
// job completion showing per-source status and cumulative procedures saved").
func MunicipalitySummary(rows []types.CrawlStats) (statusBySource map[string]string, proceduresSaved int) {
	statusBySource = make(map[string]string, len(rows))
	for _, r := range rows {
		statusBySource[string(r.SourceType)] = string(r.Counts.SourceStatus)
		proceduresSaved += r.Counts.ProceduresSaved
	}
	return statusBySource, proceduresSaved
}
