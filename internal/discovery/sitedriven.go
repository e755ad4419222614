package discovery

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bess-forensic/crawler/internal/httpclient"
)

const siteDrivenMaxPages = 20
const siteDrivenMaxDepth = 2

// LinkKind classifies a link found during site-driven discovery.
type LinkKind string

const (
	LinkRIS       LinkKind = "ris"
	LinkAmtsblatt LinkKind = "amtsblatt"
	LinkOther     LinkKind = "other"
)

// ClassifiedLink is one same-host link found while spidering the
// municipality homepage, classified by the domain/path markers in spec.md
// §4.6's site-driven primitive.
type ClassifiedLink struct {
	URL   string
	Text  string
	Kind  LinkKind
}

var risMarkers = []string{"allris", "sessionnet", "ratsinfo", "ris"}
var risPathMarkers = []string{"/ris", "/sessionnet", "/si0100", "/to0100", "/gremien", "/sitzung"}
var amtsblattPathMarkers = []string{"/amtsblatt", "/bekanntmachung", "/veroeffentlichung", "/auslegung", "/bauleitplanung"}

// SiteDrivenDiscover fetches the homepage plus sitemap.xml and imprint,
// bounded to siteDrivenMaxPages pages at depth <= siteDrivenMaxDepth on the
// same host, and returns every distinct same-host <a href> URL (first
// sighting only) classified RIS/Amtsblatt/other
// (spec.md §4.6). client is the shared httpclient chokepoint — no other
// package issues its own net/http calls.
func SiteDrivenDiscover(ctx context.Context, client *httpclient.Client, homepageURL string) ([]ClassifiedLink, []string, map[string]string) {
	var attempted []string
	failed := make(map[string]string)

	homeHost := hostname(homepageURL)
	if homeHost == "" {
		return nil, attempted, failed
	}

	seeds := []string{homepageURL, joinPath(homepageURL, "/sitemap.xml"), joinPath(homepageURL, "/impressum")}
	seen := make(map[string]bool)
	linkSeen := make(map[string]bool)
	var links []ClassifiedLink

	pagesFetched := 0
	queue := make([]struct {
		url   string
		depth int
	}, 0, len(seeds))
	for _, s := range seeds {
		queue = append(queue, struct {
			url   string
			depth int
		}{s, 0})
	}

	for len(queue) > 0 && pagesFetched < siteDrivenMaxPages {
		item := queue[0]
		queue = queue[1:]
		if seen[item.url] || item.depth > siteDrivenMaxDepth {
			continue
		}
		seen[item.url] = true

		attempted = append(attempted, item.url)
		result, err := client.Get(ctx, item.url)
		if err != nil {
			failed[item.url] = string(err.Kind)
			continue
		}
		pagesFetched++

		doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(string(result.Body)))
		if parseErr != nil {
			failed[item.url] = "parse_error"
			continue
		}

		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok {
				return
			}
			abs := resolveURL(item.url, href)
			if abs == "" || hostname(abs) != homeHost || linkSeen[abs] {
				return
			}
			linkSeen[abs] = true
			text := strings.TrimSpace(sel.Text())
			links = append(links, ClassifiedLink{URL: abs, Text: text, Kind: classifyLink(abs)})
			if item.depth < siteDrivenMaxDepth {
				queue = append(queue, struct {
					url   string
					depth int
				}{abs, item.depth + 1})
			}
		})
	}

	return links, attempted, failed
}

func classifyLink(rawURL string) LinkKind {
	lower := strings.ToLower(rawURL)
	host := hostname(rawURL)
	for _, m := range risMarkers {
		if strings.Contains(host, m) {
			return LinkRIS
		}
	}
	for _, m := range risPathMarkers {
		if strings.Contains(lower, m) {
			return LinkRIS
		}
	}
	for _, m := range amtsblattPathMarkers {
		if strings.Contains(lower, m) {
			return LinkAmtsblatt
		}
	}
	return LinkOther
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}

func joinPath(base, path string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + path
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}
