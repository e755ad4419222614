package pipeline

import (
	"testing"

	"github.com/bess-forensic/crawler/internal/types"
)

func TestResolveMatchesOnSharedPlanToken(t *testing.T) {
	existing := []types.ProjectEntity{
		{
			ID:              "proj_existing",
			MunicipalityKey: "muster",
			CanonicalProjectName: "Bebauungsplan BP 12/2023 Solarpark",
		},
	}
	procedure := types.Procedure{
		TitleNorm:       "bebauungsplan bp 12/2023 solarpark",
		MunicipalityKey: "muster",
	}

	projectID, matchLevel, _, isNew := Resolve(procedure, existing)
	if isNew {
		t.Fatal("expected a match against the existing project, not a new one")
	}
	if projectID != "proj_existing" {
		t.Fatalf("expected proj_existing, got %q", projectID)
	}
	if matchLevel != types.MatchPlan {
		t.Fatalf("expected a PLAN match, got %v", matchLevel)
	}
}

func TestResolveReturnsNewWhenNoCandidateMatches(t *testing.T) {
	existing := []types.ProjectEntity{
		{ID: "proj_other", MunicipalityKey: "muster", CanonicalProjectName: "Voellig anderes Vorhaben"},
	}
	procedure := types.Procedure{
		TitleNorm:       "batteriespeicher errichtung am umspannwerk",
		MunicipalityKey: "muster",
	}

	_, matchLevel, _, isNew := Resolve(procedure, existing)
	if !isNew {
		t.Fatal("expected no match to produce a new project")
	}
	if matchLevel != types.MatchTitleSig {
		t.Fatalf("expected TITLE_SIG as the default new-project match level, got %v", matchLevel)
	}
}

func TestResolveScopesCandidatesToMunicipality(t *testing.T) {
	existing := []types.ProjectEntity{
		{ID: "proj_elsewhere", MunicipalityKey: "anderestadt", CanonicalProjectName: "Bebauungsplan BP 12/2023 Solarpark"},
	}
	procedure := types.Procedure{
		TitleNorm:       "bebauungsplan bp 12/2023 solarpark",
		MunicipalityKey: "muster",
	}

	_, _, _, isNew := Resolve(procedure, existing)
	if !isNew {
		t.Fatal("a plan-token match in a different municipality must not resolve across municipalities")
	}
}
