// Package discovery implements the source-specific adapters that turn one
// municipality job into a set of lightweight Candidates, plus the shared
// site-driven link-discovery primitive they all start from (spec.md §4.6).
//
// Every adapter follows the teacher's internal/discovery.ResourceSource idiom
// (a small Name/Discover interface dispatched by a switch, "log a warning and
// continue" on failure) generalized to the stronger contract spec.md §5
// demands: an adapter must NEVER propagate an exception. A failing adapter
// emits an empty candidate slice plus diagnostics describing what went
// wrong; the other two sources for the same municipality proceed unaffected.
package discovery

import (
	"context"

	"github.com/bess-forensic/crawler/internal/types"
)

// Adapter is the interface every discovery source implements — direct
// generalization of the teacher's ResourceSource (Name/Discover) to this
// domain's richer (candidates, diagnostics) return shape.
type Adapter interface {
	Source() types.DiscoverySource
	Discover(ctx context.Context, seed types.MunicipalitySeed, runID string, mode types.CrawlMode) ([]types.Candidate, types.DiscoveryDiagnostics)
}

// Result pairs one adapter's output with the source it came from, for the
// dispatcher's caller to fold into crawl stats.
type Result struct {
	Source      types.DiscoverySource
	Candidates  []types.Candidate
	Diagnostics types.DiscoveryDiagnostics
}

// DiscoverAll runs every adapter for one municipality job and never lets one
// adapter's failure affect another's — each Discover call is already
// required to catch its own errors, but DiscoverAll additionally recovers
// from a panic so a single adapter bug degrades to an empty result instead
// of taking down the whole discovery job (spec.md §5 "graceful degradation").
func DiscoverAll(ctx context.Context, adapters []Adapter, seed types.MunicipalitySeed, runID string, mode types.CrawlMode) []Result {
	results := make([]Result, 0, len(adapters))
	for _, a := range adapters {
		results = append(results, runAdapter(ctx, a, seed, runID, mode))
	}
	return results
}

func runAdapter(ctx context.Context, a Adapter, seed types.MunicipalitySeed, runID string, mode types.CrawlMode) (result Result) {
	result.Source = a.Source()
	defer func() {
		if r := recover(); r != nil {
			result.Candidates = nil
			result.Diagnostics = types.DiscoveryDiagnostics{
				Method:     types.MethodSiteDriven,
				ReasonCode: types.ReasonNoSeedURL,
				FailedURLs: map[string]string{"panic": "adapter panicked during discovery"},
			}
		}
	}()
	candidates, diagnostics := a.Discover(ctx, seed, runID, mode)
	result.Candidates = candidates
	result.Diagnostics = diagnostics
	return result
}
