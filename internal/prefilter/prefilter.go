// Package prefilter implements the cheap title/URL/source scoring gate that
// decides whether a Candidate is worth a full extraction fetch (spec.md
// §4.4). It runs before any HTTP GET beyond the discovery adapters'
// lightweight listing fetch, so it deliberately never touches document
// bodies.
package prefilter

import (
	"strings"

	"github.com/bess-forensic/crawler/internal/keywords"
	"github.com/bess-forensic/crawler/internal/normalize"
	"github.com/bess-forensic/crawler/internal/types"
)

// containerTitleMarkers duplicates keywords.ContainerTitle's term list at the
// string level because the prefilter scores raw title/URL text that has not
// been through the classifier's combined-text normalization pass yet (title
// only, no body) — kept as a literal list here so this package has no
// compile-time dependency on classifier internals.
var containerTitleMarkers = []string{"amtsblatt nr.", "bekanntmachung der stadt"}

// fastThresholds and deepThresholds implement the per-(source,mode)
// threshold table from spec.md §4.4.
var fastThresholds = map[types.DiscoverySource]float64{
	types.SourceRIS:              0.35,
	types.SourceAmtsblatt:        0.50,
	types.SourceMunicipalWebsite: 0.60,
}

var deepThresholds = map[types.DiscoverySource]float64{
	types.SourceRIS:              0.20,
	types.SourceAmtsblatt:        0.30,
	types.SourceMunicipalWebsite: 0.50,
}

const defaultFastThreshold = 0.60
const defaultDeepThreshold = 0.30

// Threshold returns threshold(source, mode) from spec.md §4.4's table,
// falling back to the "default" row for any source not listed (LANDKREIS,
// DIPLANUNG, XPLANUNG).
func Threshold(source types.DiscoverySource, mode types.CrawlMode) float64 {
	table := fastThresholds
	fallback := defaultFastThreshold
	if mode == types.ModeDeep {
		table = deepThresholds
		fallback = defaultDeepThreshold
	}
	if v, ok := table[source]; ok {
		return v
	}
	return fallback
}

// Result is should_extract's return value: score plus the pass/fail decision
// against this source/mode's threshold.
type Result struct {
	Score  float64
	Passes bool
}

// ShouldExtract implements spec.md §4.4's should_extract(title, url,
// discovery_source, mode) → (score, passes).
func ShouldExtract(title, url string, source types.DiscoverySource, mode types.CrawlMode) Result {
	normTitle := normalize.Normalize(title).Text
	normURL := normalize.Normalize(url).Text

	score := 0.0
	if keywords.BESSExplicit.Matches(normTitle) {
		score += 0.6
	}
	if keywords.ProcedureTerm.Matches(normTitle) {
		score += 0.3
	}
	if keywords.ProcedureTerm.Matches(normURL) {
		score += 0.2
	}
	if isContainerLikeTitle(normTitle) {
		score -= 0.7
	}

	return Result{Score: score, Passes: score >= Threshold(source, mode)}
}

func isContainerLikeTitle(normTitle string) bool {
	for _, marker := range containerTitleMarkers {
		if strings.Contains(normTitle, marker) {
			return true
		}
	}
	return false
}
