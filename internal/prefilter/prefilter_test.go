package prefilter

import (
	"testing"

	"github.com/bess-forensic/crawler/internal/types"
)

func TestScenario1PassesBothModes(t *testing.T) {
	title := "Aufstellungsbeschluss Bebauungsplan Nr. 12/2024 Batteriespeicheranlage Metzdorf"
	fast := ShouldExtract(title, "https://ris.example.de/si0100?id=1", types.SourceRIS, types.ModeFast)
	deep := ShouldExtract(title, "https://ris.example.de/si0100?id=1", types.SourceRIS, types.ModeDeep)
	if !fast.Passes {
		t.Errorf("expected fast mode to pass, score=%v threshold=%v", fast.Score, Threshold(types.SourceRIS, types.ModeFast))
	}
	if !deep.Passes {
		t.Errorf("expected deep mode to pass, score=%v threshold=%v", deep.Score, Threshold(types.SourceRIS, types.ModeDeep))
	}
}

func TestScenario5FailsBelowThreshold(t *testing.T) {
	title := "Satzung ueber die oeffentliche Bekanntmachung — Waermespeicher Stadtwerke"
	r := ShouldExtract(title, "https://stadt.example.de/bekanntmachung/42", types.SourceMunicipalWebsite, types.ModeFast)
	if r.Passes {
		t.Errorf("expected prefilter to reject, score=%v threshold=%v", r.Score, Threshold(types.SourceMunicipalWebsite, types.ModeFast))
	}
}

func TestContainerTitlePenalized(t *testing.T) {
	plain := ShouldExtract("Bauvorbescheid Errichtung Anlage", "https://x.de/a", types.SourceRIS, types.ModeFast)
	container := ShouldExtract("Amtsblatt Nr. 07/2024 der Stadt Beispielstadt", "https://x.de/a", types.SourceRIS, types.ModeFast)
	if container.Score >= plain.Score {
		t.Errorf("expected container title to score lower: container=%v plain=%v", container.Score, plain.Score)
	}
}

func TestThresholdDefaultsForUnlistedSource(t *testing.T) {
	if Threshold(types.SourceLandkreis, types.ModeFast) != defaultFastThreshold {
		t.Errorf("expected default fast threshold for LANDKREIS")
	}
	if Threshold(types.SourceLandkreis, types.ModeDeep) != defaultDeepThreshold {
		t.Errorf("expected default deep threshold for LANDKREIS")
	}
}

func TestPrefilterGatingInvariant(t *testing.T) {
	cases := []struct {
		title  string
		source types.DiscoverySource
		mode   types.CrawlMode
	}{
		{"Bauvorbescheid Errichtung Batteriespeicher", types.SourceRIS, types.ModeFast},
		{"Aufstellungsbeschluss Bebauungsplan Energiespeicher", types.SourceAmtsblatt, types.ModeDeep},
	}
	for _, c := range cases {
		r := ShouldExtract(c.title, "https://x.de", c.source, c.mode)
		if r.Passes && r.Score < Threshold(c.source, c.mode) {
			t.Errorf("invariant violated: score %v below threshold %v but Passes=true", r.Score, Threshold(c.source, c.mode))
		}
	}
}
