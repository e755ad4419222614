package pdftext

import (
	"testing"

	"github.com/bess-forensic/crawler/internal/types"
)

func TestCacheKeyIsStableForSameURLAndLength(t *testing.T) {
	a := CacheKey("https://example.de/plan.pdf", 1024)
	b := CacheKey("https://example.de/plan.pdf", 1024)
	if a != b {
		t.Fatalf("expected stable cache key, got %q vs %q", a, b)
	}
}

func TestCacheKeyDiffersOnContentLength(t *testing.T) {
	a := CacheKey("https://example.de/plan.pdf", 1024)
	b := CacheKey("https://example.de/plan.pdf", 2048)
	if a == b {
		t.Fatal("expected cache key to change with content length")
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	doc := types.Document{ExtractedText: "Bebauungsplan Nr. 12"}
	c.Put("key1", doc)

	got, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if got.ExtractedText != doc.ExtractedText {
		t.Fatalf("got %q, want %q", got.ExtractedText, doc.ExtractedText)
	}
}

func TestTriggerFoundOnBESSExplicitTerm(t *testing.T) {
	if !triggerFound("Das Vorhaben umfasst einen Batteriespeicher mit 20 MWh Kapazitaet.") {
		t.Fatal("expected BESS_EXPLICIT trigger to fire")
	}
}

func TestTriggerNotFoundOnUnrelatedText(t *testing.T) {
	if triggerFound("Die Gemeindevertretung tagt am Donnerstag im Rathaus.") {
		t.Fatal("expected no trigger on unrelated council text")
	}
}

func TestExtractReturnsCachedDocumentWithoutReparsing(t *testing.T) {
	cache := NewMemoryCache()
	key := CacheKey("https://example.de/plan.pdf", int64(len([]byte("not a real pdf"))))
	cache.Put(key, types.Document{ExtractedText: "cached text", HasTextLayer: true})

	e := NewExtractor(cache)
	doc, err := e.Extract([]byte("not a real pdf"), "https://example.de/plan.pdf", fastMode{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ExtractedText != "cached text" {
		t.Fatalf("expected the cached document to be returned untouched, got %q", doc.ExtractedText)
	}
}

func TestExtractMarksOCRNeededOnUnparseableBytes(t *testing.T) {
	e := NewExtractor(nil)
	doc, err := e.Extract([]byte("not a real pdf"), "https://example.de/broken.pdf", fastMode{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !doc.OCRNeeded {
		t.Fatal("expected OCRNeeded=true for unparseable bytes")
	}
}

type fastMode struct{}

func (fastMode) IsFast() bool { return true }
