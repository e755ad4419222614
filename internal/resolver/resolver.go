package resolver

import (
	"sort"

	"github.com/bess-forensic/crawler/internal/types"
)

// ExistingProject is the slice of a project entity the resolver needs to
// score a candidate match against; the DAO boundary supplies these scoped to
// one municipality_key.
type ExistingProject struct {
	ProjectID string
	Signature Signature
}

// MatchResult is resolve(procedure) → (project_id, match_level) from
// spec.md §4.8, plus the confidence the matching tier carries.
type MatchResult struct {
	ProjectID  string
	MatchLevel types.MatchLevel
	Confidence float64
	IsNew      bool
}

const (
	jaccardDevTitleThreshold   = 0.6
	jaccardTitleSigThreshold   = 0.8
	confidenceParcel           = 0.95
	confidencePlan             = 0.90
	confidenceDevTitle         = 0.80
	confidenceTitleSig         = 0.70
	confidence36SpecialPathNew = 0.70
)

type scoredMatch struct {
	project    ExistingProject
	level      types.MatchLevel
	confidence float64
}

// Resolve implements spec.md §4.8's first-hit-wins matching order, scoped to
// candidates sharing sig.MunicipalityKey. procedureType feeds the §36 special
// path: if no PARCEL/PLAN/DEV_TITLE/TITLE_SIG match is found and the
// procedure is a §36 Einvernehmen, it still becomes a new project rather
// than going unmatched — the §36 step is the earliest signal of a §35
// project and must not wait for a plan or parcel reference to appear.
func Resolve(sig Signature, procedureType types.ProcedureType, candidates []ExistingProject) MatchResult {
	var scoped []ExistingProject
	for _, c := range candidates {
		if c.Signature.MunicipalityKey == sig.MunicipalityKey {
			scoped = append(scoped, c)
		}
	}

	if m, ok := bestMatch(sig, scoped); ok {
		return MatchResult{ProjectID: m.project.ProjectID, MatchLevel: m.level, Confidence: m.confidence}
	}

	if procedureType == types.ProcPermit36Einvernehmen {
		return MatchResult{MatchLevel: types.Match36New, Confidence: confidence36SpecialPathNew, IsNew: true}
	}

	return MatchResult{MatchLevel: types.MatchTitleSig, IsNew: true}
}

// bestMatch evaluates the 4 tiers in priority order; within a tier, several
// candidates may qualify, so each tier collects and sorts by confidence
// descending before returning its top hit — mirroring the teacher's
// score-then-sort-then-take-first idiom (internal/resolver.ResolveAll).
func bestMatch(sig Signature, candidates []ExistingProject) (scoredMatch, bool) {
	tiers := []func(Signature, []ExistingProject) []scoredMatch{
		matchParcel, matchPlan, matchDevTitle, matchTitleSig,
	}
	for _, tier := range tiers {
		scored := tier(sig, candidates)
		if len(scored) == 0 {
			continue
		}
		sort.Slice(scored, func(i, j int) bool { return scored[i].confidence > scored[j].confidence })
		return scored[0], true
	}
	return scoredMatch{}, false
}

func matchParcel(sig Signature, candidates []ExistingProject) []scoredMatch {
	if sig.ParcelToken == "" {
		return nil
	}
	var out []scoredMatch
	for _, c := range candidates {
		if c.Signature.ParcelToken == sig.ParcelToken {
			out = append(out, scoredMatch{project: c, level: types.MatchParcel, confidence: confidenceParcel})
		}
	}
	return out
}

func matchPlan(sig Signature, candidates []ExistingProject) []scoredMatch {
	if sig.PlanToken == "" {
		return nil
	}
	var out []scoredMatch
	for _, c := range candidates {
		if c.Signature.PlanToken == sig.PlanToken {
			out = append(out, scoredMatch{project: c, level: types.MatchPlan, confidence: confidencePlan})
		}
	}
	return out
}

func matchDevTitle(sig Signature, candidates []ExistingProject) []scoredMatch {
	if sig.DeveloperNorm == "" {
		return nil
	}
	var out []scoredMatch
	for _, c := range candidates {
		if c.Signature.DeveloperNorm != sig.DeveloperNorm {
			continue
		}
		if j := Jaccard(sig.TitleSignature, c.Signature.TitleSignature); j >= jaccardDevTitleThreshold {
			out = append(out, scoredMatch{project: c, level: types.MatchDevTitle, confidence: confidenceDevTitle})
		}
	}
	return out
}

func matchTitleSig(sig Signature, candidates []ExistingProject) []scoredMatch {
	var out []scoredMatch
	for _, c := range candidates {
		if j := Jaccard(sig.TitleSignature, c.Signature.TitleSignature); j >= jaccardTitleSigThreshold {
			out = append(out, scoredMatch{project: c, level: types.MatchTitleSig, confidence: confidenceTitleSig})
		}
	}
	return out
}
