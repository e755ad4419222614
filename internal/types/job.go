package types

import "time"

// JobType is the closed set of job variants the queue dispatches.
type JobType string

const (
	JobMunicipality      JobType = "Municipality"
	JobDiscoveryRIS      JobType = "DiscoveryRIS"
	JobDiscoveryGazette  JobType = "DiscoveryGazette"
	JobDiscoveryMunicipal JobType = "DiscoveryMunicipal"
	JobExtraction        JobType = "Extraction"
)

// CrawlMode selects the fast/deep tradeoff used throughout prefilter thresholds,
// PDF page budgets and discovery pagination depth.
type CrawlMode string

const (
	ModeFast CrawlMode = "fast"
	ModeDeep CrawlMode = "deep"
)

// IsFast reports whether m is the fast tradeoff, satisfying the minimal
// modeLike interface internal/httpclient and internal/pdftext use to stay
// free of a direct dependency on this package.
func (m CrawlMode) IsFast() bool { return m == ModeFast }

// Job is the tagged-variant payload carried on the queue. Only the fields relevant
// to Type are meaningful; this mirrors the wire shape in spec.md §6.
type Job struct {
	Type             JobType   `json:"type"`
	RunID            string    `json:"run_id"`
	MunicipalityKey  string    `json:"municipality_key"`
	MunicipalityName string    `json:"municipality_name"`
	Entrypoint       *string   `json:"entrypoint,omitempty"`
	Mode             CrawlMode `json:"mode"`
	CandidateID      string    `json:"candidate_id,omitempty"`

	CreatedAt     time.Time `json:"created_at"`
	LastHeartbeat time.Time `json:"last_heartbeat,omitempty"`
}
