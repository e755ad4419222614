package types

import "time"

// MaturityStage is the closed ladder from spec.md §4.9, in low-to-high order. The
// numeric value IS the ladder rank, so callers can compare stages with plain `<`.
type MaturityStage int

const (
	MaturityDiscovered MaturityStage = iota
	MaturityBPlanAufstellung
	MaturityBPlanAuslegung
	MaturityBPlanSatzung
	MaturityPermit36
	MaturityPermitBauvorbescheid
	MaturityPermitBaugenehmigung
)

func (m MaturityStage) String() string {
	switch m {
	case MaturityDiscovered:
		return "DISCOVERED"
	case MaturityBPlanAufstellung:
		return "BPLAN_AUFSTELLUNG"
	case MaturityBPlanAuslegung:
		return "BPLAN_AUSLEGUNG"
	case MaturityBPlanSatzung:
		return "BPLAN_SATZUNG"
	case MaturityPermit36:
		return "PERMIT_36"
	case MaturityPermitBauvorbescheid:
		return "PERMIT_BAUVORBESCHEID"
	case MaturityPermitBaugenehmigung:
		return "PERMIT_BAUGENEHMIGUNG"
	default:
		return "UNKNOWN"
	}
}

// MatchLevel is the closed set of tiers the resolver can attach a procedure at.
type MatchLevel string

const (
	MatchParcel    MatchLevel = "PARCEL"
	MatchPlan      MatchLevel = "PLAN"
	MatchDevTitle  MatchLevel = "DEV_TITLE"
	MatchTitleSig  MatchLevel = "TITLE_SIG"
	Match36New     MatchLevel = "§36_NEW"
)

// ProjectEntity consolidates one or more Procedures into one canonical project.
type ProjectEntity struct {
	ID                       string            `json:"id"`
	MunicipalityKey          string            `json:"municipality_key"`
	CanonicalProjectName     string            `json:"canonical_project_name"`
	MaturityStage            MaturityStage     `json:"maturity_stage"`
	LegalBasisBest           LegalBasis        `json:"legal_basis_best"`
	ProjectComponentsBest    ProjectComponents `json:"project_components_best"`
	DeveloperCompanyBest     string            `json:"developer_company_best,omitempty"`
	SiteLocationBest         string            `json:"site_location_best,omitempty"`
	CapacityMWBest           *float64          `json:"capacity_mw_best,omitempty"`
	CapacityMWhBest          *float64          `json:"capacity_mwh_best,omitempty"`
	AreaHectaresBest         *float64          `json:"area_hectares_best,omitempty"`
	FirstSeenDate            time.Time         `json:"first_seen_date"`
	LastSeenDate             time.Time         `json:"last_seen_date"`
	MaxConfidence            float64           `json:"max_confidence"`
	NeedsReview              bool              `json:"needs_review"`
}

// ProjectProcedureLink is the many-to-one edge from a Procedure to the
// ProjectEntity it was resolved into.
type ProjectProcedureLink struct {
	ProcedureID string     `json:"procedure_id"`
	ProjectID   string     `json:"project_id"`
	MatchLevel  MatchLevel `json:"match_level"`
	Confidence  float64    `json:"confidence"`
}
