package resolver_test

import (
	"testing"

	"github.com/bess-forensic/crawler/internal/resolver"
	"github.com/bess-forensic/crawler/internal/types"
)

func TestComputeSignatureExtractsParcelToken(t *testing.T) {
	sig := resolver.ComputeSignature("muster-de", "errichtung einer anlage", "Gemarkung Musterdorf, Flur 3, Flurstueck 12", "")
	if sig.ParcelToken != "musterdorf/3/12" {
		t.Fatalf("parcel token = %q, want musterdorf/3/12", sig.ParcelToken)
	}
}

func TestComputeSignatureExtractsPlanToken(t *testing.T) {
	sig := resolver.ComputeSignature("muster-de", "aufstellungsbeschluss b-plan nr. 12/2024 batteriespeicher", "", "")
	if sig.PlanToken != "bp-12/2024" {
		t.Fatalf("plan token = %q, want bp-12/2024", sig.PlanToken)
	}
}

func TestDeveloperNormStripsLegalSuffixes(t *testing.T) {
	sig := resolver.ComputeSignature("muster-de", "", "", "Muster Energie GmbH & Co. KG")
	if sig.DeveloperNorm != "muster energie" {
		t.Fatalf("developer_norm = %q, want %q", sig.DeveloperNorm, "muster energie")
	}
}

// Scenario 6: two procedures, same municipality, identical parcel_token,
// different titles and sources, must link via PARCEL.
func TestScenario6ParcelMatchAcrossSources(t *testing.T) {
	sigA := resolver.ComputeSignature("muster-de", "bauantrag fuer batteriespeicheranlage", "Gemarkung Musterdorf, Flur 3, Flurstueck 12", "")
	projectID := "proj_existing"
	existing := []resolver.ExistingProject{{ProjectID: projectID, Signature: sigA}}

	sigB := resolver.ComputeSignature("muster-de", "bekanntmachung ueber energiespeicher vorhaben", "Gemarkung Musterdorf, Flur 3, Flurstueck 12", "")
	result := resolver.Resolve(sigB, types.ProcBPlanOther, existing)

	if result.IsNew {
		t.Fatalf("expected an existing-project match, got a new project")
	}
	if result.MatchLevel != types.MatchParcel {
		t.Fatalf("match_level = %v, want PARCEL", result.MatchLevel)
	}
	if result.Confidence != 0.95 {
		t.Fatalf("confidence = %v, want 0.95", result.Confidence)
	}
	if result.ProjectID != projectID {
		t.Fatalf("project_id = %q, want %q", result.ProjectID, projectID)
	}
}

func TestScenario3Permit36SpecialPathCreatesProjectWithoutPlanToken(t *testing.T) {
	sig := resolver.ComputeSignature("muster-de", "einvernehmen gemaess §36 errichtung batteriespeicheranlage auf flurstueck", "", "")
	result := resolver.Resolve(sig, types.ProcPermit36Einvernehmen, nil)

	if !result.IsNew {
		t.Fatalf("expected a new project via the §36 special path")
	}
	if result.MatchLevel != types.Match36New {
		t.Fatalf("match_level = %v, want §36_NEW", result.MatchLevel)
	}
}

func TestResolveScopesMatchingToMunicipality(t *testing.T) {
	sigA := resolver.ComputeSignature("muster-de", "", "Gemarkung X, Flur 1, Flurstueck 5", "")
	existing := []resolver.ExistingProject{{ProjectID: "proj_other_muni", Signature: resolver.ComputeSignature("other-de", "", "Gemarkung X, Flur 1, Flurstueck 5", "")}}

	result := resolver.Resolve(sigA, types.ProcUnknown, existing)
	if !result.IsNew {
		t.Fatalf("expected no match across municipality boundaries")
	}
}

func TestJaccardTitleSignatureMatch(t *testing.T) {
	sigA := resolver.ComputeSignature("muster-de", "errichtung grossflaechiger batteriespeicheranlage musterdorf nord", "", "")
	sigB := resolver.ComputeSignature("muster-de", "erweiterung grossflaechiger batteriespeicheranlage musterdorf nord", "", "")
	existing := []resolver.ExistingProject{{ProjectID: "proj_title_sig", Signature: sigA}}

	result := resolver.Resolve(sigB, types.ProcUnknown, existing)
	if result.IsNew {
		t.Fatalf("expected a TITLE_SIG match")
	}
	if result.MatchLevel != types.MatchTitleSig {
		t.Fatalf("match_level = %v, want TITLE_SIG", result.MatchLevel)
	}
}
