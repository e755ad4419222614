package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bess-forensic/crawler/internal/types"
)

// Field-extraction patterns for the numeric/free-text Procedure attributes
// spec.md §4.9 rolls up (capacity_mw/mwh, area_hectares, developer_company,
// site_location_raw). These are regex-extracted (types.MethodRegex), the
// same "compiled regex over raw text" idiom internal/resolver's signature.go
// uses for its parcel/plan tokens — just aimed at a different field set.
var (
	capacityMWPattern  = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*MWp?\b`)
	capacityMWhPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*MWh\b`)
	areaHectaresPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:ha|hektar)\b`)
	developerPattern    = regexp.MustCompile(`(?i)(?:vorhabentr(?:ae|ä)ger|antragsteller(?:in)?|bauherr(?:in)?)\s*[:]?\s*([\p{L}0-9&.,\-\s]{3,60}?(?:GmbH(?:\s*&\s*Co\.?\s*KG)?|AG|UG|KG))`)
	siteLocationPattern = regexp.MustCompile(`(?i)gemarkung\s+[\p{L}0-9.\-]+.{0,60}?flurst(?:ue|ü)ck\s+[\d/]+`)
)

// extractFields regex-scans combinedText for the numeric and free-text
// fields the classifier itself does not produce, returning the values to
// set on the Procedure plus one Extraction row per field found, so the
// provenance of each derived value is auditable.
func extractFields(combinedText string) (capacityMW, capacityMWh, areaHectares *float64, developerCompany, siteLocationRaw string, extractions []types.Extraction) {
	if m := capacityMWPattern.FindStringSubmatch(combinedText); m != nil {
		if v, ok := parseGermanFloat(m[1]); ok {
			capacityMW = &v
			extractions = append(extractions, regexExtraction("capacity_mw", m[0]))
		}
	}
	if m := capacityMWhPattern.FindStringSubmatch(combinedText); m != nil {
		if v, ok := parseGermanFloat(m[1]); ok {
			capacityMWh = &v
			extractions = append(extractions, regexExtraction("capacity_mwh", m[0]))
		}
	}
	if m := areaHectaresPattern.FindStringSubmatch(combinedText); m != nil {
		if v, ok := parseGermanFloat(m[1]); ok {
			areaHectares = &v
			extractions = append(extractions, regexExtraction("area_hectares", m[0]))
		}
	}
	if m := developerPattern.FindStringSubmatch(combinedText); m != nil {
		developerCompany = strings.TrimSpace(m[1])
		extractions = append(extractions, regexExtraction("developer_company", m[0]))
	}
	if m := siteLocationPattern.FindString(combinedText); m != "" {
		siteLocationRaw = m
		extractions = append(extractions, regexExtraction("site_location_raw", m))
	}
	return
}

func regexExtraction(field, snippet string) types.Extraction {
	return types.Extraction{
		ID:              uuid.NewString(),
		Field:           field,
		Value:           snippet,
		Method:          types.MethodRegex,
		EvidenceSnippet: snippet,
	}
}

func parseGermanFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
