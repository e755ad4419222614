package discovery

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bess-forensic/crawler/internal/httpclient"
	"github.com/bess-forensic/crawler/internal/idgen"
	"github.com/bess-forensic/crawler/internal/types"
)

// municipalAnchorKeywords gates which same-host links the spider follows
// (spec.md §4.6).
var municipalAnchorKeywords = []string{
	"bauen", "planung", "bebauungsplan", "bauleitplanung", "b-plan", "stadtplanung",
	"bekanntmachung", "satzung", "verordnung", "amtliche", "oeffentlich", "verfahren",
	"beteiligung", "auslegung", "aufstellung", "bauvorbescheid", "baugenehmigung",
	"bauantrag", "bauausschuss", "planungsausschuss", "gemeindevertretung",
}

// municipalFallbackPaths is walked when the spider's anchor-keyword pass
// yields nothing (spec.md §4.6).
var municipalFallbackPaths = []string{
	"/bauen-wohnen", "/rathaus/bauen-und-planen", "/stadtplanung", "/bebauungsplaene",
	"/bekanntmachungen", "/amtliche-bekanntmachungen",
}

// MunicipalWebsiteAdapter discovers candidates by spidering the
// municipality's own homepage for planning/building-related pages.
type MunicipalWebsiteAdapter struct {
	Client *httpclient.Client
}

func (a *MunicipalWebsiteAdapter) Source() types.DiscoverySource { return types.SourceMunicipalWebsite }

func (a *MunicipalWebsiteAdapter) Discover(ctx context.Context, seed types.MunicipalitySeed, runID string, mode types.CrawlMode) ([]types.Candidate, types.DiscoveryDiagnostics) {
	diag := types.DiscoveryDiagnostics{FailedURLs: map[string]string{}}

	if seed.OfficialWebsiteURL == "" {
		diag.Method = types.MethodSiteDriven
		diag.ReasonCode = types.ReasonNoSeedURL
		return nil, diag
	}

	links, attempted, failed := a.spiderForKeywordLinks(ctx, seed.OfficialWebsiteURL, &diag)
	diag.Method = types.MethodSiteDriven
	diag.AttemptedURLs = append(diag.AttemptedURLs, attempted...)
	for u, reason := range failed {
		diag.FailedURLs[u] = reason
	}

	if len(links) == 0 {
		links = a.fallbackPathCandidates(ctx, seed.OfficialWebsiteURL, &diag)
		diag.Method = types.MethodPatternGuessing
	}

	var candidates []types.Candidate
	for _, l := range links {
		candidates = append(candidates, types.Candidate{
			ID:              idgen.MakeCandidateID(runID, seed.Key, string(types.SourceMunicipalWebsite), l.URL),
			RunID:           runID,
			MunicipalityKey: seed.Key,
			DiscoverySource: types.SourceMunicipalWebsite,
			Title:           l.Text,
			URL:             l.URL,
			Status:          types.CandidatePending,
		})
	}

	if len(candidates) == 0 {
		diag.ReasonCode = types.ReasonNoMarkersFound
	} else {
		diag.ReasonCode = types.ReasonFound
	}
	return candidates, diag
}

// spiderForKeywordLinks reuses the shared site-driven BFS primitive, keeping
// only links whose anchor text matches the planning-keyword allowlist.
func (a *MunicipalWebsiteAdapter) spiderForKeywordLinks(ctx context.Context, homepageURL string, diag *types.DiscoveryDiagnostics) ([]ClassifiedLink, []string, map[string]string) {
	all, attempted, failed := SiteDrivenDiscover(ctx, a.Client, homepageURL)
	var matched []ClassifiedLink
	for _, l := range all {
		if matchesAnchorKeyword(l.Text) || matchesAnchorKeyword(l.URL) {
			matched = append(matched, l)
		}
	}
	return matched, attempted, failed
}

func matchesAnchorKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range municipalAnchorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// fallbackPathCandidates probes the predefined path list directly when the
// spider finds no keyword-matching link (spec.md §4.6).
func (a *MunicipalWebsiteAdapter) fallbackPathCandidates(ctx context.Context, homepageURL string, diag *types.DiscoveryDiagnostics) []ClassifiedLink {
	var found []ClassifiedLink
	for _, p := range municipalFallbackPaths {
		candidateURL := joinPath(homepageURL, p)
		diag.AttemptedURLs = append(diag.AttemptedURLs, candidateURL)
		result, err := a.Client.Get(ctx, candidateURL)
		if err != nil {
			diag.FailedURLs[candidateURL] = string(err.Kind)
			continue
		}
		doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(string(result.Body)))
		title := candidateURL
		if parseErr == nil {
			if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
				title = t
			}
		}
		found = append(found, ClassifiedLink{URL: candidateURL, Text: title, Kind: LinkOther})
	}
	return found
}
