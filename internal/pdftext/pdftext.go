// Package pdftext implements the progressive PDF text extraction pipeline
// (spec.md §4.7): a content-addressed cache in front of a page-budgeted,
// trigger-gated rsc.io/pdf read, so most PDFs are classified after reading
// only their first few pages.
package pdftext

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"rsc.io/pdf"

	"github.com/bess-forensic/crawler/internal/keywords"
	"github.com/bess-forensic/crawler/internal/normalize"
	"github.com/bess-forensic/crawler/internal/types"
)

const fastPageBudget = 3
const deepPageBudget = 5

// modeLike is the one thing this package needs from types.CrawlMode
// (IsFast), mirroring internal/httpclient's modeLike interface.
type modeLike interface{ IsFast() bool }

// Cache persists extracted text keyed by CacheKey (URL plus content length),
// avoiding re-parsing a PDF already extracted from the same URL at the same
// length.
type Cache interface {
	Get(key string) (types.Document, bool)
	Put(key string, doc types.Document)
}

// MemoryCache is a mutex-guarded in-process Cache, the default when no
// durable cache is wired (tests, single-run CLI invocations).
type MemoryCache struct {
	mu    sync.Mutex
	store map[string]types.Document
}

func NewMemoryCache() *MemoryCache { return &MemoryCache{store: make(map[string]types.Document)} }

func (c *MemoryCache) Get(key string) (types.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.store[key]
	return doc, ok
}

func (c *MemoryCache) Put(key string, doc types.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = doc
}

// CacheKey is sha256(url || contentLength), per spec.md §4.7 step 1.
func CacheKey(url string, contentLength int64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", url, contentLength)))
	return hex.EncodeToString(h[:])
}

// Extractor reads PDF bytes progressively, unless the cache already has the
// answer: the pages within the mode's page budget first, and the remaining
// pages only when a trigger term was seen in those.
type Extractor struct {
	Cache Cache
}

func NewExtractor(cache Cache) *Extractor {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Extractor{Cache: cache}
}

// Extract implements extract_text(pdf_bytes, mode) from spec.md §4.7.
func (e *Extractor) Extract(pdfBytes []byte, url string, mode modeLike) (types.Document, error) {
	key := CacheKey(url, int64(len(pdfBytes)))
	if cached, ok := e.Cache.Get(key); ok {
		return cached, nil
	}

	doc, err := e.extractFresh(pdfBytes, mode)
	if err != nil {
		return types.Document{}, err
	}
	doc.ContentSHA256 = contentHash(pdfBytes)
	doc.Bytes = int64(len(pdfBytes))
	doc.MIME = "application/pdf"
	e.Cache.Put(key, doc)
	return doc, nil
}

func (e *Extractor) extractFresh(pdfBytes []byte, mode modeLike) (types.Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return types.Document{OCRNeeded: true}, nil
	}

	budget := deepPageBudget
	if mode.IsFast() {
		budget = fastPageBudget
	}
	totalPages := reader.NumPage()

	var sb strings.Builder
	var pageMap []types.PageMap
	hasTextLayer := false

	extractThrough := func(upTo int) {
		for p := len(pageMap) + 1; p <= upTo && p <= totalPages; p++ {
			pageText := extractPageText(reader, p)
			if pageText == "" {
				continue
			}
			hasTextLayer = true
			start := sb.Len()
			sb.WriteString(pageText)
			sb.WriteByte('\n')
			pageMap = append(pageMap, types.PageMap{Page: p, Start: start, End: sb.Len()})
		}
	}

	extractThrough(budget)
	if triggerFound(sb.String()) {
		extractThrough(totalPages)
	}

	if !hasTextLayer {
		return types.Document{OCRNeeded: true, PageMap: pageMap}, nil
	}

	return types.Document{
		HasTextLayer:  true,
		PageMap:       pageMap,
		ExtractedText: sb.String(),
	}, nil
}

// extractPageText concatenates the glyph runs rsc.io/pdf reports for one
// page, in reading order, into a plain-text approximation of the page.
func extractPageText(reader *pdf.Reader, pageNum int) string {
	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}
	content := page.Content()
	var sb strings.Builder
	lastY := float64(-1)
	for _, t := range content.Text {
		if lastY >= 0 && t.Y != lastY {
			sb.WriteByte('\n')
		}
		sb.WriteString(t.S)
		lastY = t.Y
	}
	return sb.String()
}

// triggerFound reports whether the text seen so far contains a term from
// BESS_EXPLICIT ∪ PERMIT_STRONG ∪ PLANNING_STRONG (spec.md §4.7 step 2).
func triggerFound(text string) bool {
	norm := normalize.Normalize(text)
	return keywords.BESSExplicit.Matches(norm.Text) ||
		keywords.PermitStrong.Matches(norm.Text) ||
		keywords.PlanningStrong.Matches(norm.Text)
}

func contentHash(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
