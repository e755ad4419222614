// Package pipeline wires the pure packages (classifier, resolver, rollup,
// pdftext, prefilter) into the stateful extraction worker spec.md §4.10
// describes: fetch, extract text, classify, resolve, flush. It is the one
// place in the module that knows about every pure package at once; none of
// them import it back.
package pipeline

import (
	"github.com/bess-forensic/crawler/internal/normalize"
	"github.com/bess-forensic/crawler/internal/resolver"
	"github.com/bess-forensic/crawler/internal/types"
)

// Resolve adapts internal/resolver.Resolve to the dao.Resolver function
// shape. dao.DAO only has a types.ProjectEntity per existing project — not
// the resolver.Signature the matcher needs — so this function recomputes an
// approximate Signature from each project's "best" aggregated fields
// (canonical_project_name, site_location_best, developer_company_best)
// before handing candidates to the matcher. This is an approximation: the
// true signature of a project is the union of signals across all of its
// linked procedures, but the rollup only keeps the single best value per
// field (spec.md §4.9), so recomputing from those best fields is the
// closest approximation available at the DAO boundary without changing
// ProjectEntity's storage shape.
func Resolve(procedure types.Procedure, existing []types.ProjectEntity) (projectID string, matchLevel types.MatchLevel, confidence float64, isNewProject bool) {
	sig := resolver.ComputeSignature(procedure.MunicipalityKey, procedure.TitleNorm, procedure.SiteLocationRaw, procedure.DeveloperCompany)

	candidates := make([]resolver.ExistingProject, 0, len(existing))
	for _, project := range existing {
		candidates = append(candidates, resolver.ExistingProject{
			ProjectID: project.ID,
			Signature: approximateSignature(project),
		})
	}

	result := resolver.Resolve(sig, procedure.ProcedureType, candidates)
	return result.ProjectID, result.MatchLevel, result.Confidence, result.IsNew
}

// approximateSignature recomputes a resolver.Signature from a persisted
// project's best-aggregated fields, normalizing the canonical name the same
// way a procedure's title is normalized so the two sides of the Jaccard
// comparison are computed over the same token shape.
func approximateSignature(project types.ProjectEntity) resolver.Signature {
	titleNorm := normalize.Normalize(project.CanonicalProjectName).Text
	return resolver.ComputeSignature(project.MunicipalityKey, titleNorm, project.SiteLocationBest, project.DeveloperCompanyBest)
}
