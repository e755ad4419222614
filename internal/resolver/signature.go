// Package resolver implements entity resolution: matching a newly classified
// Procedure against existing project entities via a 4-tier signature match
// (spec.md §4.8), grounded on the scored-candidate-list-then-sort idiom of
// the teacher's internal/resolver.StandardResolver.
package resolver

import (
	"regexp"
	"strings"
)

// Signature is the resolution key for one procedure, computed once from its
// title, site location text, and developer field (spec.md §4.8).
type Signature struct {
	MunicipalityKey string
	PlanToken       string
	ParcelToken     string
	DeveloperNorm   string
	TitleSignature  map[string]struct{}
}

var planTokenPattern = regexp.MustCompile(`(?i)\bb-?p(?:lan)?[\s-]?(?:nr\.?)?\s*(\d+[/.-]\d{2,4})\b`)

var quotedPattern = regexp.MustCompile(`["“”'„]([^"“”'„]{4,})["“”'„]`)

var parcelPattern = regexp.MustCompile(`(?i)gemarkung\s+([\p{L}0-9.\-]+).{0,40}?flur\s+(\d+).{0,40}?flurst(?:ue|ü)ck\s+([\d/]+)`)

var legalSuffixPattern = regexp.MustCompile(`(?i)\b(gmbh\s*&?\s*co\.?\s*kg|gmbh|ag|ug|kg|mbh)\b`)

var punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// procedureStopwords are excluded from the title_signature token set even
// when len(token) >= 4 — they carry no discriminating content across
// procedures for the same project (spec.md §4.8).
var procedureStopwords = map[string]struct{}{
	"bebauungsplan": {}, "aufstellungsbeschluss": {}, "fruehzeitige": {}, "beteiligung": {},
	"auslegung": {}, "satzungsbeschluss": {}, "bauvorbescheid": {}, "bauvoranfrage": {},
	"baugenehmigung": {}, "kenntnisnahme": {}, "antrag": {}, "errichtung": {}, "einvernehmen": {},
	"gemaess": {}, "baugb": {}, "stadt": {}, "gemeinde": {}, "nummer": {},
}

// ComputeSignature derives a Signature from normalized title text, the raw
// site_location_raw field, and a developer_company field (may be empty).
func ComputeSignature(municipalityKey, titleNorm, siteLocationRaw, developerRaw string) Signature {
	return Signature{
		MunicipalityKey: municipalityKey,
		PlanToken:       planToken(titleNorm),
		ParcelToken:     parcelToken(siteLocationRaw, titleNorm),
		DeveloperNorm:   developerNorm(developerRaw),
		TitleSignature:  titleSignature(titleNorm),
	}
}

func planToken(titleNorm string) string {
	if m := planTokenPattern.FindStringSubmatch(titleNorm); m != nil {
		return "bp-" + m[1]
	}
	if m := quotedPattern.FindStringSubmatch(titleNorm); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func parcelToken(siteLocationRaw, titleNorm string) string {
	for _, src := range []string{siteLocationRaw, titleNorm} {
		if m := parcelPattern.FindStringSubmatch(src); m != nil {
			return strings.ToLower(m[1]) + "/" + m[2] + "/" + m[3]
		}
	}
	return ""
}

func developerNorm(developerRaw string) string {
	if developerRaw == "" {
		return ""
	}
	s := legalSuffixPattern.ReplaceAllString(developerRaw, "")
	s = punctuationPattern.ReplaceAllString(s, "")
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return s
}

func titleSignature(titleNorm string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(titleNorm) {
		tok = strings.Trim(tok, ".,;:()[]\"'„“”—-")
		if len(tok) < 4 {
			continue
		}
		if _, stop := procedureStopwords[tok]; stop {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

// Jaccard computes the Jaccard similarity of two title_signature sets.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
