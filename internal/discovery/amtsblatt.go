package discovery

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bess-forensic/crawler/internal/httpclient"
	"github.com/bess-forensic/crawler/internal/idgen"
	"github.com/bess-forensic/crawler/internal/types"
)

// AmtsblattAdapter discovers official-gazette issue/announcement candidates.
type AmtsblattAdapter struct {
	Client *httpclient.Client
}

func (a *AmtsblattAdapter) Source() types.DiscoverySource { return types.SourceAmtsblatt }

// Discover is site-driven only (spec.md §4.6 names no pattern-guessing
// fallback for Amtsblatt): it lists issues found by SiteDrivenDiscover, then
// for each issue emits one candidate per table-of-contents entry when the
// issue page carries one cheaply, else a single candidate for the whole
// issue. A URL already emitted as an issue or an entry is not emitted again.
// The container-vs-procedure distinction is left to the classifier's
// is_valid_procedure step; this adapter only produces candidates.
func (a *AmtsblattAdapter) Discover(ctx context.Context, seed types.MunicipalitySeed, runID string, mode types.CrawlMode) ([]types.Candidate, types.DiscoveryDiagnostics) {
	diag := types.DiscoveryDiagnostics{FailedURLs: map[string]string{}}

	if seed.OfficialWebsiteURL == "" {
		diag.Method = types.MethodSiteDriven
		diag.ReasonCode = types.ReasonNoSeedURL
		return nil, diag
	}

	links, attempted, failed := SiteDrivenDiscover(ctx, a.Client, seed.OfficialWebsiteURL)
	diag.Method = types.MethodSiteDriven
	diag.AttemptedURLs = attempted
	for u, reason := range failed {
		diag.FailedURLs[u] = reason
	}

	var issueURLs []string
	for _, l := range links {
		if l.Kind == LinkAmtsblatt {
			issueURLs = append(issueURLs, l.URL)
		}
	}
	if len(issueURLs) == 0 {
		diag.ReasonCode = types.ReasonNoMarkersFound
		return nil, diag
	}

	var candidates []types.Candidate
	emitted := make(map[string]bool)
	emit := func(c types.Candidate) {
		if !emitted[c.URL] {
			emitted[c.URL] = true
			candidates = append(candidates, c)
		}
	}
	for _, issueURL := range issueURLs {
		diag.AttemptedURLs = append(diag.AttemptedURLs, issueURL)
		result, err := a.Client.Get(ctx, issueURL)
		if err != nil {
			diag.FailedURLs[issueURL] = string(err.Kind)
			emit(issueCandidate(runID, seed.Key, issueURL, "", nil))
			continue
		}
		doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(string(result.Body)))
		if parseErr != nil {
			emit(issueCandidate(runID, seed.Key, issueURL, "", nil))
			continue
		}

		title := strings.TrimSpace(doc.Find("title").First().Text())
		entries := tocEntries(doc, issueURL)
		if len(entries) == 0 {
			emit(issueCandidate(runID, seed.Key, issueURL, title, nil))
			continue
		}
		for _, e := range entries {
			emit(issueCandidate(runID, seed.Key, e.URL, e.Text, nil))
		}
	}

	if len(candidates) == 0 {
		diag.ReasonCode = types.ReasonFoundButEmpty
	} else {
		diag.ReasonCode = types.ReasonFound
	}
	return candidates, diag
}

// tocEntries looks for an inline table-of-contents list on the issue page
// itself — the "cheap to read" condition in spec.md §4.6 — rather than
// fetching a separate page per entry.
func tocEntries(doc *goquery.Document, issueURL string) []ClassifiedLink {
	var entries []ClassifiedLink
	doc.Find(".toc a[href], .inhaltsverzeichnis a[href], ul.bekanntmachungen a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		entries = append(entries, ClassifiedLink{URL: resolveURL(issueURL, href), Text: text, Kind: LinkAmtsblatt})
	})
	return entries
}

func issueCandidate(runID, municipalityKey, url, title string, docURLs []string) types.Candidate {
	return types.Candidate{
		ID:              idgen.MakeCandidateID(runID, municipalityKey, string(types.SourceAmtsblatt), url),
		RunID:           runID,
		MunicipalityKey: municipalityKey,
		DiscoverySource: types.SourceAmtsblatt,
		Title:           title,
		URL:             url,
		DocURLs:         docURLs,
		Status:          types.CandidatePending,
	}
}
