package types

import "time"

// DiscoverySource is the closed set of places a candidate can come from.
type DiscoverySource string

const (
	SourceRIS               DiscoverySource = "RIS"
	SourceAmtsblatt         DiscoverySource = "AMTSBLATT"
	SourceMunicipalWebsite  DiscoverySource = "MUNICIPAL_WEBSITE"
	SourceLandkreis         DiscoverySource = "LANDKREIS"
	SourceDiplanung         DiscoverySource = "DIPLANUNG"
	SourceXplanung          DiscoverySource = "XPLANUNG"
)

// CandidateStatus tracks a candidate through its at-most-once extraction lifecycle.
type CandidateStatus string

const (
	CandidatePending    CandidateStatus = "PENDING"
	CandidateExtracting CandidateStatus = "EXTRACTING"
	CandidateDone       CandidateStatus = "DONE"
	CandidateSkipped    CandidateStatus = "SKIPPED"
	CandidateError      CandidateStatus = "ERROR"
)

// Candidate is a lightweight discovery result, cheap to produce, gated by
// prefilter_score before it is ever fetched for extraction.
type Candidate struct {
	ID              string          `json:"id"`
	RunID           string          `json:"run_id"`
	MunicipalityKey string          `json:"municipality_key"`
	DiscoverySource DiscoverySource `json:"discovery_source"`
	Title           string          `json:"title"`
	URL             string          `json:"url"`
	Date            *time.Time      `json:"date,omitempty"`
	DocURLs         []string        `json:"doc_urls"`
	PrefilterScore  float64         `json:"prefilter_score"`
	Status          CandidateStatus `json:"status"`
}

// EligibleForExtraction is the invariant from spec.md §3: a candidate is eligible
// iff its score meets the source/mode threshold. threshold is injected by the
// caller (internal/prefilter.Threshold) to keep this package dependency-free.
func (c *Candidate) EligibleForExtraction(threshold float64) bool {
	return c.PrefilterScore >= threshold
}
