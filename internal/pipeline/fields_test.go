package pipeline

import "testing"

func TestExtractFieldsParsesCapacityAndArea(t *testing.T) {
	text := "Die Anlage hat eine Leistung von 12,5 MW und eine Kapazitaet von 25 MWh auf 3,2 ha."
	mw, mwh, ha, _, _, extractions := extractFields(text)

	if mw == nil || *mw != 12.5 {
		t.Fatalf("expected capacity_mw 12.5, got %v", mw)
	}
	if mwh == nil || *mwh != 25 {
		t.Fatalf("expected capacity_mwh 25, got %v", mwh)
	}
	if ha == nil || *ha != 3.2 {
		t.Fatalf("expected area_hectares 3.2, got %v", ha)
	}
	if len(extractions) != 3 {
		t.Fatalf("expected 3 extraction rows, got %d", len(extractions))
	}
}

func TestExtractFieldsFindsDeveloperCompany(t *testing.T) {
	text := "Vorhabentraeger: Muster Energie GmbH & Co. KG errichtet den Batteriespeicher."
	_, _, _, developer, _, _ := extractFields(text)
	if developer == "" {
		t.Fatal("expected a developer company to be extracted")
	}
}

func TestExtractFieldsFindsSiteLocation(t *testing.T) {
	text := "Das Vorhaben liegt in Gemarkung Musterdorf, Flur 3, Flurstueck 42/1."
	_, _, _, _, site, _ := extractFields(text)
	if site == "" {
		t.Fatal("expected a site location to be extracted")
	}
}

func TestExtractFieldsReturnsNilWhenAbsent(t *testing.T) {
	mw, mwh, ha, developer, site, extractions := extractFields("keine relevanten angaben hier")
	if mw != nil || mwh != nil || ha != nil || developer != "" || site != "" {
		t.Fatal("expected no fields extracted from unrelated text")
	}
	if len(extractions) != 0 {
		t.Fatalf("expected no extraction rows, got %d", len(extractions))
	}
}
