package types

import "time"

// ProcedureType is the closed tag set from spec.md §4.3 step 4, in match-priority
// order (first match wins in the classifier).
type ProcedureType string

const (
	ProcBPlanAufstellung     ProcedureType = "BPLAN_AUFSTELLUNG"
	ProcBPlanFruehzeitig31   ProcedureType = "BPLAN_FRUEHZEITIG_3_1"
	ProcBPlanAuslegung32     ProcedureType = "BPLAN_AUSLEGUNG_3_2"
	ProcBPlanSatzung         ProcedureType = "BPLAN_SATZUNG"
	ProcBPlanOther           ProcedureType = "BPLAN_OTHER"
	ProcPermitBauvorbescheid ProcedureType = "PERMIT_BAUVORBESCHEID"
	ProcPermitBaugenehmigung ProcedureType = "PERMIT_BAUGENEHMIGUNG"
	ProcPermit36Einvernehmen ProcedureType = "PERMIT_36_EINVERNEHMEN"
	ProcPermitOther          ProcedureType = "PERMIT_OTHER"
	ProcUnknown              ProcedureType = "UNKNOWN"
)

// LegalBasis is the closed tag set for the BauGB paragraph a procedure sits under.
type LegalBasis string

const (
	Legal35      LegalBasis = "§35"
	Legal34      LegalBasis = "§34"
	Legal36      LegalBasis = "§36"
	LegalUnknown LegalBasis = "unknown"
)

// legalBasisRank orders bases for the rollup's legal_basis_best (spec.md §4.9):
// §35 ≻ §34 ≻ §36 ≻ unknown.
var legalBasisRank = map[LegalBasis]int{
	Legal35:      4,
	Legal34:      3,
	Legal36:      2,
	LegalUnknown: 1,
}

// Rank returns this basis's precedence; higher wins. Unrecognized values rank
// below LegalUnknown so malformed data never outranks a real tag.
func (l LegalBasis) Rank() int {
	if r, ok := legalBasisRank[l]; ok {
		return r
	}
	return 0
}

// ProjectComponents is the closed tag set for what the project physically contains.
type ProjectComponents string

const (
	ComponentsPVBESS      ProjectComponents = "PV+BESS"
	ComponentsWindBESS    ProjectComponents = "WIND+BESS"
	ComponentsBESSOnly    ProjectComponents = "BESS_ONLY"
	ComponentsOtherUnclear ProjectComponents = "OTHER/UNCLEAR"
)

// EvidenceSnippet is a ±80-char window around a matched strong term, sliced from
// the *original* (not normalized) text so offsets remain human-legible.
type EvidenceSnippet struct {
	Term   string `json:"term"`
	Text   string `json:"text"`
	Offset int    `json:"offset"`
}

// Procedure is created only when is_valid_procedure holds (spec.md §4.3 step 9).
// Container items never become a Procedure; they remain audit-only Sources.
type Procedure struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	TitleNorm         string            `json:"title_norm"`
	MunicipalityKey   string            `json:"municipality_key"`
	State             string            `json:"state"`
	County            string            `json:"county"`
	ProcedureType     ProcedureType     `json:"procedure_type"`
	LegalBasis        LegalBasis        `json:"legal_basis"`
	ProjectComponents ProjectComponents `json:"project_components"`
	AmbiguityFlag     bool              `json:"ambiguity_flag"`
	ReviewRecommended bool              `json:"review_recommended"`
	Confidence        float64           `json:"confidence"`
	BESSScore         float64           `json:"bess_score"`
	GridScore         float64           `json:"grid_score"`
	DecisionDate      *time.Time        `json:"decision_date,omitempty"`
	SiteLocationRaw   string            `json:"site_location_raw,omitempty"`
	Geometry          string            `json:"geometry,omitempty"`
	BBox              *BBox             `json:"bbox,omitempty"`
	DeveloperCompany  string            `json:"developer_company,omitempty"`
	CapacityMW        *float64          `json:"capacity_mw,omitempty"`
	CapacityMWh       *float64          `json:"capacity_mwh,omitempty"`
	AreaHectares      *float64          `json:"area_hectares,omitempty"`
	EvidenceSnippets  []EvidenceSnippet `json:"evidence_snippets"`

	CreatedAt time.Time `json:"created_at"`
}

// BBox is a left-as-extension-point geographic bounding box (spec.md §9 Open
// Question (c): geometry/BBOX dedup is not exercised by the resolver).
type BBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}
