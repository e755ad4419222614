package main

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/bess-forensic/crawler/internal/stats"
	"github.com/bess-forensic/crawler/internal/types"
)

// Styles mirror cmd/bd-examples' AdaptiveColor palette (light/dark aware,
// degrading to plain text automatically off a TTY since lipgloss detects
// the terminal's color profile itself).
var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	})
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	})
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	})
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	})
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	})
	boldStyle = lipgloss.NewStyle().Bold(true)
)

// statusStyle picks the semantic color for one SourceStatus value.
func statusStyle(status string) lipgloss.Style {
	switch types.SourceStatus(status) {
	case types.StatusSuccess:
		return passStyle
	case types.StatusNotRun:
		return mutedStyle
	case types.StatusErrorSSL, types.StatusErrorNetwork, types.StatusErrorOther:
		return failStyle
	default:
		return warnStyle
	}
}

// renderSummary prints one line per municipality after a "run" pass
// completes, grounded on cmd/bd-examples' colored pass/warn/fail line style
// but folding in the per-source status breakdown spec.md §7's
// MUNICIPALITY_SUMMARY line already logs structurally — this is the
// human-readable rendering of the same data for an operator watching a TTY.
func renderSummary(a *app, runID string) {
	a.statsMu.Lock()
	keys := make([]string, 0, len(a.statsByMunicipality))
	snapshot := make(map[string][]types.CrawlStats, len(a.statsByMunicipality))
	for k, v := range a.statsByMunicipality {
		keys = append(keys, k)
		snapshot[k] = append([]types.CrawlStats(nil), v...)
	}
	a.statsMu.Unlock()
	sort.Strings(keys)

	fmt.Println(boldStyle.Render(fmt.Sprintf("Crawl run %s complete", runID)))
	totalSaved := 0
	for _, key := range keys {
		rows := snapshot[key]
		statusBySource, proceduresSaved := stats.MunicipalitySummary(rows)
		totalSaved += proceduresSaved

		sources := make([]string, 0, len(statusBySource))
		for src := range statusBySource {
			sources = append(sources, src)
		}
		sort.Strings(sources)

		parts := make([]string, 0, len(sources))
		for _, src := range sources {
			status := statusBySource[src]
			parts = append(parts, fmt.Sprintf("%s=%s", mutedStyle.Render(src), statusStyle(status).Render(status)))
		}

		savedLabel := fmt.Sprintf("%d saved", proceduresSaved)
		if proceduresSaved > 0 {
			savedLabel = passStyle.Render(savedLabel)
		} else {
			savedLabel = mutedStyle.Render(savedLabel)
		}

		fmt.Printf("  %s  %s  %s\n", accentStyle.Render(key), savedLabel, joinParts(parts))
	}
	fmt.Println(boldStyle.Render(fmt.Sprintf("total procedures saved: %d", totalSaved)))
}

func joinParts(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}
