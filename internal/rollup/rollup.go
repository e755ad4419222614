// Package rollup recomputes a project entity's best-field aggregation from
// its full set of linked procedures on every link (spec.md §4.9). Recompute
// is idempotent and takes the linked procedures as input rather than
// mutating incrementally, per the Design Note in spec.md §9 ("recompute
// rollups from linked procedures on each link" — no back-pointer bookkeeping).
package rollup

import (
	"strings"
	"time"

	"github.com/bess-forensic/crawler/internal/types"
)

// maturityByProcedureType is the ladder lookup from spec.md §4.9; procedure
// types without a rung of their own (UNKNOWN, BPLAN_FRUEHZEITIG_3_1,
// BPLAN_OTHER, PERMIT_OTHER) map to the nearest lower rung they imply, never
// to a rung they haven't earned.
var maturityByProcedureType = map[types.ProcedureType]types.MaturityStage{
	types.ProcBPlanAufstellung:     types.MaturityBPlanAufstellung,
	types.ProcBPlanFruehzeitig31:   types.MaturityBPlanAufstellung,
	types.ProcBPlanAuslegung32:     types.MaturityBPlanAuslegung,
	types.ProcBPlanSatzung:         types.MaturityBPlanSatzung,
	types.ProcBPlanOther:           types.MaturityBPlanAufstellung,
	types.ProcPermit36Einvernehmen: types.MaturityPermit36,
	types.ProcPermitBauvorbescheid: types.MaturityPermitBauvorbescheid,
	types.ProcPermitBaugenehmigung: types.MaturityPermitBaugenehmigung,
	types.ProcPermitOther:          types.MaturityPermit36,
	types.ProcUnknown:              types.MaturityDiscovered,
}

// Recompute derives a ProjectEntity's best-field aggregation from the full
// set of procedures currently linked to it (existing carries the fields that
// persist across recomputes: ID, MunicipalityKey). procedures must be
// non-empty — a project is only ever formed by resolving ≥1 procedure.
func Recompute(existing types.ProjectEntity, procedures []types.Procedure) types.ProjectEntity {
	out := existing

	out.MaturityStage = maturityOf(procedures)
	out.CanonicalProjectName = canonicalProjectName(procedures)
	out.SiteLocationBest = siteLocationBest(procedures)
	out.DeveloperCompanyBest = developerCompanyBest(procedures)
	out.LegalBasisBest = legalBasisBest(procedures)
	out.ProjectComponentsBest = projectComponentsBest(procedures)
	out.CapacityMWBest = maxFloatPtr(procedures, func(p types.Procedure) *float64 { return p.CapacityMW })
	out.CapacityMWhBest = maxFloatPtr(procedures, func(p types.Procedure) *float64 { return p.CapacityMWh })
	out.AreaHectaresBest = maxFloatPtr(procedures, func(p types.Procedure) *float64 { return p.AreaHectares })
	out.FirstSeenDate, out.LastSeenDate = seenRange(procedures)
	out.MaxConfidence = maxConfidence(procedures)
	out.NeedsReview = needsReview(procedures)

	return out
}

func maturityOf(procedures []types.Procedure) types.MaturityStage {
	best := types.MaturityDiscovered
	for _, p := range procedures {
		if stage, ok := maturityByProcedureType[p.ProcedureType]; ok && stage > best {
			best = stage
		}
	}
	return best
}

// canonicalProjectName prefers a plan_token-bearing title (identified here by
// presence of "b-plan"/"bebauungsplan" plus a digit, the cheapest reliable
// signal without re-running full signature extraction) and otherwise falls
// back to the single longest relevant title.
func canonicalProjectName(procedures []types.Procedure) string {
	for _, p := range procedures {
		lower := strings.ToLower(p.Title)
		if (strings.Contains(lower, "b-plan") || strings.Contains(lower, "bebauungsplan")) && containsDigit(lower) {
			return p.Title
		}
	}
	best := ""
	for _, p := range procedures {
		if len(p.Title) > len(best) {
			best = p.Title
		}
	}
	return best
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func siteLocationBest(procedures []types.Procedure) string {
	best := ""
	for _, p := range procedures {
		if p.SiteLocationRaw == "" {
			continue
		}
		if strings.Contains(strings.ToLower(p.SiteLocationRaw), "flurst") {
			return p.SiteLocationRaw
		}
		if len(p.SiteLocationRaw) > len(best) {
			best = p.SiteLocationRaw
		}
	}
	return best
}

func developerCompanyBest(procedures []types.Procedure) string {
	counts := make(map[string]int)
	for _, p := range procedures {
		if p.DeveloperCompany == "" {
			continue
		}
		counts[p.DeveloperCompany]++
	}
	best := ""
	bestCount := 0
	for name, count := range counts {
		if count > bestCount {
			best, bestCount = name, count
		}
	}
	return best
}

func legalBasisBest(procedures []types.Procedure) types.LegalBasis {
	best := types.LegalUnknown
	for _, p := range procedures {
		if p.LegalBasis.Rank() > best.Rank() {
			best = p.LegalBasis
		}
	}
	return best
}

// projectComponentsBest prefers the most specific (non-ambiguous) component
// tag seen: PV+BESS and WIND+BESS outrank BESS_ONLY, which outranks
// OTHER/UNCLEAR.
func projectComponentsBest(procedures []types.Procedure) types.ProjectComponents {
	rank := map[types.ProjectComponents]int{
		types.ComponentsPVBESS:       3,
		types.ComponentsWindBESS:     3,
		types.ComponentsBESSOnly:     2,
		types.ComponentsOtherUnclear: 1,
	}
	best := types.ComponentsOtherUnclear
	bestRank := 0
	for _, p := range procedures {
		if r := rank[p.ProjectComponents]; r > bestRank {
			best, bestRank = p.ProjectComponents, r
		}
	}
	return best
}

func maxFloatPtr(procedures []types.Procedure, field func(types.Procedure) *float64) *float64 {
	var best *float64
	for _, p := range procedures {
		v := field(p)
		if v == nil {
			continue
		}
		if best == nil || *v > *best {
			val := *v
			best = &val
		}
	}
	return best
}

// seenRange returns (min, max) over each procedure's decision_date, falling
// back to created_at when decision_date is absent (spec.md §4.9).
func seenRange(procedures []types.Procedure) (first, last time.Time) {
	for i, p := range procedures {
		d := p.CreatedAt
		if p.DecisionDate != nil {
			d = *p.DecisionDate
		}
		if i == 0 || d.Before(first) {
			first = d
		}
		if i == 0 || d.After(last) {
			last = d
		}
	}
	return first, last
}

func maxConfidence(procedures []types.Procedure) float64 {
	best := 0.0
	for _, p := range procedures {
		if p.Confidence > best {
			best = p.Confidence
		}
	}
	return best
}

func needsReview(procedures []types.Procedure) bool {
	for _, p := range procedures {
		if p.ReviewRecommended {
			return true
		}
	}
	return false
}
