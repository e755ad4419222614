// Package classifier implements the pure, deterministic relevance/tagging
// decision over normalized German text (spec.md §4.3). classify is a pure
// function: same input always yields a byte-equal ClassifierResult.
package classifier

import (
	"time"

	"github.com/bess-forensic/crawler/internal/keywords"
	"github.com/bess-forensic/crawler/internal/normalize"
	"github.com/bess-forensic/crawler/internal/types"
)

const maxEvidenceSnippets = 6
const evidenceWindow = 80

var r2CutoffDate = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// Result is everything classify derives from one (text, title, date, source).
type Result struct {
	IsCandidate       bool
	IsRelevant        bool
	AmbiguityFlag     bool
	ProcedureType     types.ProcedureType
	LegalBasis        types.LegalBasis
	Components        types.ProjectComponents
	ReviewRecommended bool
	Confidence        float64
	BESSScore         float64
	GridScore         float64
	EvidenceSnippets  []types.EvidenceSnippet
	IsValidProcedure  bool
}

// Classify runs the full pipeline over raw (unnormalized) text and title. date
// may be nil (spec.md Rule R2 treats a missing date as satisfying its
// condition). discoverySource feeds the container-validity exception for RIS.
func Classify(textRaw, title string, date *time.Time, discoverySource types.DiscoverySource) Result {
	normText := normalize.Normalize(textRaw)
	normTitle := normalize.Normalize(title)

	combined := normText.Text + " " + normTitle.Text

	isCandidate := keywords.BESSExplicit.Matches(combined) || keywords.BESSContainerGrid.Matches(combined)

	r1 := ruleR1(combined)
	r2 := ruleR2(normTitle.Text, date)
	r3, ambiguity := ruleR3(combined)
	relevant := r1 || r2 || r3

	procType, reviewUnknown := tagProcedureType(combined)
	legalBasis := tagLegalBasis(combined)
	components := tagComponents(combined, ambiguity)
	confidence := scoreConfidence(combined, ambiguity, date)

	evidence := collectEvidence(textRaw, normText)

	valid := isValidProcedure(combined, relevant, isCandidate, discoverySource)

	return Result{
		IsCandidate:       isCandidate,
		IsRelevant:        relevant,
		AmbiguityFlag:     ambiguity,
		ProcedureType:     procType,
		LegalBasis:        legalBasis,
		Components:        components,
		ReviewRecommended: reviewUnknown,
		Confidence:        confidence,
		BESSScore:         bessScore(combined),
		GridScore:         gridScore(combined),
		EvidenceSnippets:  evidence,
		IsValidProcedure:  valid,
	}
}

// ruleR1: ∃ BESS_EXPLICIT ∧ ∃ (PLANNING_STEPS ∪ PLANNING_STRONG ∪ PERMIT_STRONG).
func ruleR1(normText string) bool {
	if !keywords.BESSExplicit.Matches(normText) {
		return false
	}
	return keywords.PlanningSteps.Matches(normText) ||
		keywords.PlanningStrong.Matches(normText) ||
		keywords.PermitStrong.Matches(normText)
}

// ruleR2: BESS_EXPLICIT ∩ title ≠ ∅ and (date is null or ≥ 2023-01-01).
func ruleR2(normTitle string, date *time.Time) bool {
	if !keywords.BESSExplicit.Matches(normTitle) {
		return false
	}
	if date == nil {
		return true
	}
	return !date.Before(r2CutoffDate)
}

// ruleR3 (ambiguous-with-grid): ∃ "speicher" ∧ |BESS_CONTAINER_GRID ∪
// GRID_STRONG ∪ GRID_MEDIUM| ≥ 2 ∧ ∃ procedure term ∧ |NEGATIVE_STORAGE| = 0.
// Returns (fires, ambiguityFlag) — ambiguityFlag is true whenever this rule
// fires, also when R1 or R2 made the item relevant as well.
func ruleR3(normText string) (bool, bool) {
	if !keywords.SpeicherOccurs(normText) {
		return false, false
	}
	gridHits := keywords.BESSContainerGrid.Count(normText) +
		keywords.GridStrong.Count(normText) +
		keywords.GridMedium.Count(normText)
	if gridHits < 2 {
		return false, false
	}
	if !keywords.ProcedureTerm.Matches(normText) {
		return false, false
	}
	if keywords.NegativeStorage.Count(normText) != 0 {
		return false, false
	}
	return true, true
}

// tagProcedureType applies the first-match-wins order from spec.md §4.3 step 4.
func tagProcedureType(normText string) (types.ProcedureType, bool) {
	switch {
	case keywords.PlanningSteps.MatchesAny(normText, "aufstellungsbeschluss"):
		return types.ProcBPlanAufstellung, false
	case keywords.PlanningSteps.MatchesAny(normText, "fruehzeitige beteiligung"):
		return types.ProcBPlanFruehzeitig31, false
	case keywords.PlanningSteps.MatchesAny(normText, "auslegung"):
		return types.ProcBPlanAuslegung32, false
	case keywords.PlanningSteps.MatchesAny(normText, "satzungsbeschluss"):
		return types.ProcBPlanSatzung, false
	case keywords.PlanningStrong.Matches(normText):
		return types.ProcBPlanOther, false
	case keywords.PermitStrong.MatchesAny(normText, "bauvorbescheid", "bauvoranfrage", "bauvorantrag"):
		return types.ProcPermitBauvorbescheid, false
	case keywords.PermitStrong.MatchesAny(normText, "baugenehmigung", "kenntnisnahme"):
		return types.ProcPermitBaugenehmigung, false
	case keywords.PermitStrong.MatchesAny(normText, "einvernehmen §36", "§36"):
		return types.ProcPermit36Einvernehmen, false
	case keywords.PermitStrong.Matches(normText):
		return types.ProcPermitOther, false
	default:
		return types.ProcUnknown, true
	}
}

func tagLegalBasis(normText string) types.LegalBasis {
	switch {
	case keywords.PermitStrong.MatchesAny(normText, "einvernehmen §36", "§36"):
		return types.Legal36
	case contains(normText, "§35"), contains(normText, "§ 35"):
		return types.Legal35
	case contains(normText, "§34"), contains(normText, "§ 34"):
		return types.Legal34
	default:
		return types.LegalUnknown
	}
}

// tagComponents treats an R3 (ambiguous-with-grid) hit as a storage signal,
// so a "Speicher" next to grid terms counts as BESS for the component tag.
func tagComponents(normText string, ambiguous bool) types.ProjectComponents {
	hasPV := keywords.EnergyContext.MatchesAny(normText, "pv", "photovoltaik")
	hasWind := keywords.EnergyContext.MatchesAny(normText, "wind")
	hasBESS := keywords.BESSExplicit.Matches(normText) || keywords.BESSContainerGrid.Matches(normText) || ambiguous

	switch {
	case hasPV && hasBESS:
		return types.ComponentsPVBESS
	case hasWind && hasBESS:
		return types.ComponentsWindBESS
	case hasBESS:
		return types.ComponentsBESSOnly
	default:
		return types.ComponentsOtherUnclear
	}
}

// scoreConfidence applies the additive/subtractive rules from spec.md §4.3
// step 7, clamped to [0,1].
func scoreConfidence(normText string, ambiguity bool, date *time.Time) float64 {
	score := 0.0
	hasBESSExplicit := keywords.BESSExplicit.Matches(normText)

	if hasBESSExplicit {
		score += 0.55
	}
	if keywords.PlanningSteps.Matches(normText) || keywords.PermitStrong.Matches(normText) {
		score += 0.25
	}
	if keywords.GridStrong.Matches(normText) {
		score += 0.10
	}
	if keywords.NegativeStorage.Matches(normText) && !hasBESSExplicit {
		score -= 0.60
	}
	if ambiguity {
		score -= 0.25
	}
	if date == nil {
		score -= 0.15
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func bessScore(normText string) float64 {
	hits := keywords.BESSExplicit.Count(normText) + keywords.BESSContainerGrid.Count(normText)
	return clampScore(hits)
}

func gridScore(normText string) float64 {
	hits := keywords.GridStrong.Count(normText) + keywords.GridMedium.Count(normText)
	return clampScore(hits)
}

func clampScore(hits int) float64 {
	v := float64(hits) / 3.0
	if v > 1 {
		v = 1
	}
	return v
}

// isValidProcedure implements spec.md §4.3 step 9: rejects container items
// unless relevant+BESS, or RIS with one of the privileged terms.
func isValidProcedure(normText string, relevant, isCandidate bool, source types.DiscoverySource) bool {
	if !keywords.ContainerTitle.Matches(normText) {
		return true
	}
	if relevant && isCandidate {
		return true
	}
	if source == types.SourceRIS {
		risPrivileged := []string{"einvernehmen", "stellungnahme", "bauantrag", "bauvoranfrage", "vorhaben"}
		for _, term := range risPrivileged {
			if contains(normText, term) {
				return true
			}
		}
	}
	return false
}

func contains(haystack, needle string) bool {
	return indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	n := len(needle)
	h := len(haystack)
	if n == 0 {
		return 0
	}
	for i := 0; i+n <= h; i++ {
		if haystack[i:i+n] == needle {
			return i
		}
	}
	return -1
}

func collectEvidence(textRaw string, normText normalize.Result) []types.EvidenceSnippet {
	var snippets []types.EvidenceSnippet
	sets := []keywords.Set{
		keywords.BESSExplicit, keywords.BESSContainerGrid,
		keywords.PlanningStrong, keywords.PlanningSteps, keywords.PermitStrong,
		keywords.GridStrong,
	}
	for _, s := range sets {
		if len(snippets) >= maxEvidenceSnippets {
			break
		}
		offset, term := s.EarliestMatch(normText.Text)
		if offset == -1 {
			continue
		}
		origOffset := normText.OriginalOffset(offset)
		start := origOffset - evidenceWindow
		if start < 0 {
			start = 0
		}
		end := origOffset + evidenceWindow
		if end > len(textRaw) {
			end = len(textRaw)
		}
		if start > len(textRaw) {
			start = len(textRaw)
		}
		snippets = append(snippets, types.EvidenceSnippet{
			Term:   term,
			Text:   textRaw[start:end],
			Offset: origOffset,
		})
	}
	return snippets
}
