package discovery

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/bess-forensic/crawler/internal/httpclient"
	"github.com/bess-forensic/crawler/internal/idgen"
	"github.com/bess-forensic/crawler/internal/types"
)

// committeeAllowlist filters which RIS committees are worth walking
// (spec.md §4.6).
var committeeAllowlist = []string{
	"bauausschuss", "hauptausschuss", "gemeindevertretung",
	"stadtverordnetenversammlung", "wirtschaftsausschuss", "umweltausschuss",
}

// risPrivilegedTerms gates the "follow the item page once for attachments"
// step (spec.md §4.6).
var risPrivilegedTerms = []string{"einvernehmen", "stellungnahme", "bauantrag", "bauvoranfrage", "vorhaben"}

var risSessionAgeCutoff = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
var germanDatePattern = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{2,4})\b`)

// RISAdapter discovers council-information-system candidates.
type RISAdapter struct {
	Client *httpclient.Client
}

func (a *RISAdapter) Source() types.DiscoverySource { return types.SourceRIS }

// Discover follows spec.md §4.6's RIS recipe: site-driven entry first, a
// name-pattern fallback second; reverse-chronological session pagination
// stopping after 3 consecutive sessions older than risSessionAgeCutoff
// (guards against non-monotonic listings); agenda items whose title matches
// a privileged term and carry no attachments are followed once more.
func (a *RISAdapter) Discover(ctx context.Context, seed types.MunicipalitySeed, runID string, mode types.CrawlMode) ([]types.Candidate, types.DiscoveryDiagnostics) {
	diag := types.DiscoveryDiagnostics{FailedURLs: map[string]string{}}

	entryURLs, method := a.findEntryURLs(ctx, seed, &diag)
	if len(entryURLs) == 0 {
		diag.ReasonCode = types.ReasonNoSeedURL
		diag.Method = method
		return nil, diag
	}
	diag.Method = method

	var candidates []types.Candidate
	olderStreak := 0
	for _, entry := range entryURLs {
		diag.AttemptedURLs = append(diag.AttemptedURLs, entry)
		result, err := a.Client.Get(ctx, entry)
		if err != nil {
			diag.FailedURLs[entry] = string(err.Kind)
			continue
		}
		doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(string(result.Body)))
		if parseErr != nil {
			diag.FailedURLs[entry] = "parse_error"
			continue
		}

		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			if olderStreak >= 3 {
				return
			}
			title := strings.TrimSpace(sel.Text())
			if !matchesCommitteeAllowlist(title) && !looksLikeAgendaItem(title) {
				return
			}
			href, _ := sel.Attr("href")
			if href == "" {
				return
			}
			itemURL := resolveURL(entry, href)

			date := extractGermanDate(title)
			if date != nil && date.Before(risSessionAgeCutoff) {
				olderStreak++
			} else {
				olderStreak = 0
			}

			docURLs := a.collectAttachmentsIfPrivileged(ctx, itemURL, title, &diag)

			candidates = append(candidates, types.Candidate{
				ID:              idgen.MakeCandidateID(runID, seed.Key, string(types.SourceRIS), itemURL),
				RunID:           runID,
				MunicipalityKey: seed.Key,
				DiscoverySource: types.SourceRIS,
				Title:           title,
				URL:             itemURL,
				Date:            date,
				DocURLs:         docURLs,
				Status:          types.CandidatePending,
			})
		})
	}

	if len(candidates) == 0 {
		diag.ReasonCode = types.ReasonFoundButEmpty
	} else {
		diag.ReasonCode = types.ReasonFound
	}
	return candidates, diag
}

func (a *RISAdapter) findEntryURLs(ctx context.Context, seed types.MunicipalitySeed, diag *types.DiscoveryDiagnostics) ([]string, types.DiscoveryMethod) {
	if seed.OfficialWebsiteURL != "" {
		links, attempted, failed := SiteDrivenDiscover(ctx, a.Client, seed.OfficialWebsiteURL)
		diag.AttemptedURLs = append(diag.AttemptedURLs, attempted...)
		for u, reason := range failed {
			diag.FailedURLs[u] = reason
		}
		var entries []string
		for _, l := range links {
			if l.Kind == LinkRIS {
				entries = append(entries, l.URL)
			}
		}
		if len(entries) > 0 {
			return entries, types.MethodSiteDriven
		}
	}

	guessed := patternGuessRISURL(seed.Name)
	if guessed == "" {
		return nil, types.MethodPatternGuessing
	}
	return []string{guessed}, types.MethodPatternGuessing
}

// patternGuessRISURL builds a fallback RIS URL from the sanitized municipality
// name (spec.md §4.6: strip parentheses, map umlauts, replace non-[a-z0-9-]
// with "-").
func patternGuessRISURL(municipalityName string) string {
	slug := sanitizeForURL(municipalityName)
	if slug == "" {
		return ""
	}
	return "https://ratsinfo-" + slug + ".de/"
}

var parenPattern = regexp.MustCompile(`\([^)]*\)`)
var nonSlugPattern = regexp.MustCompile(`[^a-z0-9-]+`)

func sanitizeForURL(name string) string {
	s := parenPattern.ReplaceAllString(name, "")
	s = strings.ToLower(s)
	replacer := strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")
	s = replacer.Replace(s)
	s = nonSlugPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func matchesCommitteeAllowlist(title string) bool {
	lower := strings.ToLower(title)
	for _, c := range committeeAllowlist {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

func looksLikeAgendaItem(title string) bool {
	lower := strings.ToLower(title)
	return strings.Contains(lower, "vorlage") || strings.Contains(lower, "tagesordnung") || extractGermanDate(title) != nil
}

func (a *RISAdapter) collectAttachmentsIfPrivileged(ctx context.Context, itemURL, title string, diag *types.DiscoveryDiagnostics) []string {
	lower := strings.ToLower(title)
	privileged := false
	for _, term := range risPrivilegedTerms {
		if strings.Contains(lower, term) {
			privileged = true
			break
		}
	}
	if !privileged {
		return nil
	}

	result, err := a.Client.Get(ctx, itemURL)
	if err != nil {
		diag.FailedURLs[itemURL] = string(err.Kind)
		return nil
	}
	doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(string(result.Body)))
	if parseErr != nil {
		return nil
	}

	var docURLs []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if strings.HasSuffix(strings.ToLower(href), ".pdf") {
			docURLs = append(docURLs, resolveURL(itemURL, href))
		}
	})
	return docURLs
}

func extractGermanDate(text string) *time.Time {
	m := germanDatePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	day, err1 := strconv.Atoi(m[1])
	month, err2 := strconv.Atoi(m[2])
	year, err3 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}
