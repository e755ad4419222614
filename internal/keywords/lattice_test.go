package keywords

import (
	"testing"

	"github.com/bess-forensic/crawler/internal/normalize"
)

func TestBESSExplicitMatches(t *testing.T) {
	norm := normalize.Normalize("Errichtung einer Batteriespeicheranlage in Musterdorf").Text
	if !BESSExplicit.Matches(norm) {
		t.Fatalf("expected BESS_EXPLICIT match in %q", norm)
	}
}

func TestToleratesSingleInteriorWhitespace(t *testing.T) {
	// PDFs sometimes split a word across a column/line break with one space.
	norm := "batterie speicher anlage"
	if !BESSExplicit.Matches(norm) {
		t.Fatalf("expected BESS_EXPLICIT to tolerate interior whitespace in %q", norm)
	}
}

func TestDoesNotBridgeMultipleWords(t *testing.T) {
	norm := "batterie und sonstiger speicher fuer den markt"
	if BESSExplicit.Matches(norm) {
		t.Fatalf("term must not bridge across unrelated words in %q", norm)
	}
}

func TestNegativeStorageExcludesHeatStorage(t *testing.T) {
	norm := normalize.Normalize("Satzung über die öffentliche Bekanntmachung — Wärmespeicher Stadtwerke").Text
	if !NegativeStorage.Matches(norm) {
		t.Fatalf("expected NEGATIVE_STORAGE match in %q", norm)
	}
	if BESSExplicit.Matches(norm) {
		t.Fatalf("unexpected BESS_EXPLICIT match in %q", norm)
	}
}

func TestEarliestMatchOffset(t *testing.T) {
	norm := "vorwort text batteriespeicher mehr text umspannwerk ende"
	offset, term := GridStrong.EarliestMatch(norm)
	if offset == -1 {
		t.Fatalf("expected a GRID_STRONG match")
	}
	if term != "umspannwerk" {
		t.Fatalf("expected umspannwerk, got %q", term)
	}
}
