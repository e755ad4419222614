package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bess-forensic/crawler/internal/classifier"
	"github.com/bess-forensic/crawler/internal/dao"
	"github.com/bess-forensic/crawler/internal/httpclient"
	"github.com/bess-forensic/crawler/internal/idgen"
	"github.com/bess-forensic/crawler/internal/llmfallback"
	"github.com/bess-forensic/crawler/internal/logging"
	"github.com/bess-forensic/crawler/internal/normalize"
	"github.com/bess-forensic/crawler/internal/pdftext"
	"github.com/bess-forensic/crawler/internal/stats"
	"github.com/bess-forensic/crawler/internal/telemetry"
	"github.com/bess-forensic/crawler/internal/types"
)

// confidenceFloor is the bar below which a relevant-but-thinly-evidenced
// candidate is skipped rather than saved for review: it cleared the
// classifier's relevance rules but carries too little evidence to act on
// (spec.md §6's SKIP_LOW_CONFIDENCE_NO_SIGNAL line exists for exactly this
// outcome, distinct from SKIP_CONTAINER and SKIP_NO_PROCEDURE_SIGNAL).
const confidenceFloor = 0.35

// Worker runs one extraction job end to end — fetch, extract text, classify,
// resolve, flush (spec.md §4.10) — tying together every pure package
// (classifier, resolver via Resolve, rollup, pdftext, prefilter already
// having gated this candidate before it reached the queue).
type Worker struct {
	HTTP *httpclient.Client
	PDF  *pdftext.Extractor
	DAO  dao.DAO
	Hint llmfallback.Classifier
	Log  *slog.Logger
}

// NewWorker wires a Worker. hint may be nil, in which case llmfallback.NoOp
// is used — the LLM escape hatch is optional infrastructure, never load-bearing.
func NewWorker(httpClient *httpclient.Client, pdf *pdftext.Extractor, store dao.DAO, hint llmfallback.Classifier, log *slog.Logger) *Worker {
	if hint == nil {
		hint = llmfallback.NoOp{}
	}
	return &Worker{HTTP: httpClient, PDF: pdf, DAO: store, Hint: hint, Log: log}
}

// Extract runs candidate through the full extraction pipeline and folds its
// outcome into acc. A domain-level rejection (container, no signal, fetch
// blocked by robots.txt) is a successful completion of the job, not an
// error; the returned error is reserved for infrastructure failures the
// caller's retry/backoff policy should see.
func (w *Worker) Extract(ctx context.Context, candidate types.Candidate, seed types.MunicipalitySeed, mode types.CrawlMode, runID string, acc *stats.Accumulator) error {
	ctx, end := telemetry.StartJobSpan(ctx, "extraction",
		attribute.String("municipality_key", seed.Key),
		attribute.String("candidate_id", candidate.ID),
	)
	var jobErr error
	defer func() { end(jobErr) }()

	urls := append([]string{candidate.URL}, candidate.DocURLs...)

	var textParts []string
	var sources []types.Source
	var documents []types.Document
	for _, u := range urls {
		text, src, doc, fetchErr := w.fetchOne(ctx, u, candidate, mode)
		if fetchErr != nil {
			jobErr = fetchErr
			_ = w.DAO.MarkCandidateStatus(ctx, candidate.ID, types.CandidateError)
			return fetchErr
		}
		if src == nil {
			continue // robots-disallowed or oversized-and-skipped: not an error, just no contribution
		}
		sources = append(sources, *src)
		if doc != nil {
			documents = append(documents, *doc)
		}
		if text != "" {
			textParts = append(textParts, text)
		}
	}

	combinedText := strings.Join(textParts, "\n\n")
	result := classifier.Classify(combinedText, candidate.Title, candidate.Date, candidate.DiscoverySource)

	if !result.IsValidProcedure {
		w.recordSkip(ctx, candidate, result, acc, seed.Key)
		_ = w.DAO.MarkCandidateStatus(ctx, candidate.ID, types.CandidateSkipped)
		w.flushAuditOnly(ctx, runID, sources, documents)
		return nil
	}


	procedure := w.buildProcedure(candidate, result, combinedText)
	extractions := buildExtractions(documents, procedure)

	capacityMW, capacityMWh, areaHectares, developerCompany, siteLocationRaw, fieldExtractions := extractFields(combinedText)
	procedure.CapacityMW = capacityMW
	procedure.CapacityMWh = capacityMWh
	procedure.AreaHectares = areaHectares
	procedure.DeveloperCompany = developerCompany
	procedure.SiteLocationRaw = siteLocationRaw
	extractions = append(extractions, fieldExtractions...)

	if result.ProcedureType == types.ProcUnknown && result.ReviewRecommended {
		if hint, hintErr := w.Hint.Classify(ctx, candidate.Title, combinedText); hintErr == nil && hint != nil {
			extractions = append(extractions, types.Extraction{
				ID:              uuid.NewString(),
				Field:           "procedure_type_hint",
				Value:           hint.Rationale,
				Method:          types.MethodLLMHint,
				EvidenceSnippet: hint.Rationale,
			})
		}
	}

	for i := range sources {
		sources[i].ProcedureID = &procedure.ID
	}

	projectID, flushErr := w.DAO.FlushExtraction(ctx, dao.UpsertOptions{RunID: runID}, dao.ExtractionBatch{
		Sources:     sources,
		Documents:   documents,
		Extractions: extractions,
		Procedure:   &procedure,
	}, Resolve)
	if flushErr != nil {
		jobErr = flushErr
		return flushErr
	}

	_ = w.DAO.MarkCandidateStatus(ctx, candidate.ID, types.CandidateDone)
	acc.RecordProcedureSaved()
	telemetry.ProcedureSaved(ctx, seed.Key)
	w.Log.Info("procedure_saved", "procedure_id", procedure.ID, "project_id", projectID, "municipality_key", seed.Key)
	return nil
}

// recordSkip maps one classifier rejection onto the stable SKIP_* log lines
// spec.md §6 names. !IsValidProcedure only happens when the container-title
// pattern matched and none of the container exceptions applied (see
// internal/classifier.isValidProcedure), so every call here is a container
// rejection. The switch logs SKIP_NO_PROCEDURE_SIGNAL when the item carries
// no relevance or BESS signal at all, SKIP_LOW_CONFIDENCE_NO_SIGNAL when it
// is below confidenceFloor with no evidence snippets, and SKIP_CONTAINER
// otherwise.
func (w *Worker) recordSkip(ctx context.Context, candidate types.Candidate, result classifier.Result, acc *stats.Accumulator, municipalityKey string) {
	acc.RecordProcedureSkipped()

	var reason string
	switch {
	case !result.IsRelevant && !result.IsCandidate:
		reason = logging.LineSkipNoProcedureSignal
		logging.SkipNoProcedureSignal(w.Log, candidate.URL)
	case result.Confidence < confidenceFloor && len(result.EvidenceSnippets) == 0:
		reason = logging.LineSkipLowConfidenceNoSignal
		logging.SkipLowConfidenceNoSignal(w.Log, candidate.URL, result.Confidence)
	default:
		reason = logging.LineSkipContainer
		logging.SkipContainer(w.Log, candidate.URL, candidate.Title)
	}
	telemetry.ProcedureSkipped(ctx, municipalityKey, reason)
}

// flushAuditOnly persists the fetch records for a rejected candidate: every
// Source stays audit-only (ProcedureID remains nil), matching spec.md §4.3's
// "container items are stored as Source only".
func (w *Worker) flushAuditOnly(ctx context.Context, runID string, sources []types.Source, documents []types.Document) {
	if len(sources) == 0 {
		return
	}
	_, _ = w.DAO.FlushExtraction(ctx, dao.UpsertOptions{RunID: runID}, dao.ExtractionBatch{
		Sources:   sources,
		Documents: documents,
		Rejected:  true,
	}, Resolve)
}

// fetchOne fetches one URL (the candidate's primary page or one of its
// doc_urls), runs the PDF or HTML extraction path, and returns the text it
// contributed alongside its audit Source/Document rows. A nil Source (with a
// nil error) means the URL was legitimately skipped — robots-disallowed or
// over the fast-mode size guard — not a failure.
func (w *Worker) fetchOne(ctx context.Context, url string, candidate types.Candidate, mode types.CrawlMode) (text string, source *types.Source, document *types.Document, err error) {
	if looksLikePDF(url) {
		skip, _, guardErr := w.HTTP.HeadPDFGuard(ctx, url, mode)
		if guardErr == nil && skip {
			return "", nil, nil, nil
		}
	}

	result, fetchErr := w.HTTP.Get(ctx, url)
	if fetchErr != nil {
		if fetchErr.Kind == httpclient.ErrRobotsDisallow {
			logging.RobotsDisallow(w.Log, url)
			return "", nil, nil, nil
		}
		return "", nil, nil, fetchErr
	}
	host := hostOf(url)
	if result.SSLFallbackUsed {
		logging.SSLFallbackVerifyFalse(w.Log, host)
		telemetry.SSLFallbackUsed(ctx, host)
	}
	if result.HTTPFallbackUsed {
		logging.RISHTTPFallbackUsed(w.Log, url)
		telemetry.HTTPFallbackUsed(ctx, host)
	}

	src := types.Source{
		ID:              uuid.NewString(),
		SourceURL:       url,
		RetrievedAt:     time.Now(),
		HTTPStatus:      result.StatusCode,
		ETag:            result.ETag,
		LastModified:    result.LastModified,
		DiscoverySource: candidate.DiscoverySource,
		DiscoveryPath:   "direct",
	}

	if looksLikePDF(url) || looksLikePDFBody(result.Body) {
		doc, extractErr := w.PDF.Extract(result.Body, url, mode)
		if extractErr != nil {
			return "", &src, nil, nil
		}
		doc.ID = idgen.MakeDocumentID(doc.ContentSHA256)
		doc.SourceID = src.ID
		return doc.ExtractedText, &src, &doc, nil
	}

	text = extractHTMLText(result.Body)
	return text, &src, nil, nil
}

func looksLikePDF(url string) bool {
	return strings.HasSuffix(strings.ToLower(strings.SplitN(url, "?", 2)[0]), ".pdf")
}

func looksLikePDFBody(body []byte) bool {
	return len(body) >= 5 && string(body[:5]) == "%PDF-"
}

// extractHTMLText reduces an HTML page to its visible text via goquery,
// the same parser the discovery adapters already use for link discovery
// (internal/discovery/sitedriven.go), here walking the full document rather
// than just its anchors.
func extractHTMLText(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}
	doc.Find("script, style, nav, footer").Remove()
	return strings.TrimSpace(doc.Text())
}

func hostOf(rawURL string) string {
	withoutScheme := rawURL
	if idx := strings.Index(rawURL, "://"); idx >= 0 {
		withoutScheme = rawURL[idx+3:]
	}
	if idx := strings.IndexAny(withoutScheme, "/?#"); idx >= 0 {
		withoutScheme = withoutScheme[:idx]
	}
	return withoutScheme
}

// buildProcedure maps a classifier.Result plus its originating candidate
// into the persisted Procedure row, deriving its id from idgen.MakeProcedureID
// so the same real-world procedure re-observed in a later run collapses onto
// the same id.
func (w *Worker) buildProcedure(candidate types.Candidate, result classifier.Result, combinedText string) types.Procedure {
	titleNorm := normalize.Normalize(candidate.Title).Text
	id := idgen.MakeProcedureID(titleNorm, candidate.MunicipalityKey, string(result.ProcedureType))

	return types.Procedure{
		ID:                id,
		Title:             candidate.Title,
		TitleNorm:         titleNorm,
		MunicipalityKey:   candidate.MunicipalityKey,
		ProcedureType:     result.ProcedureType,
		LegalBasis:        result.LegalBasis,
		ProjectComponents: result.Components,
		AmbiguityFlag:     result.AmbiguityFlag,
		ReviewRecommended: result.ReviewRecommended,
		Confidence:        result.Confidence,
		BESSScore:         result.BESSScore,
		GridScore:         result.GridScore,
		DecisionDate:      candidate.Date,
		EvidenceSnippets:  result.EvidenceSnippets,
		CreatedAt:         time.Now(),
	}
}

// buildExtractions records one append-only Extraction row per document that
// contributed a text layer, tagging it with the classifier's method so a
// later audit can see which document a field derived from.
func buildExtractions(documents []types.Document, procedure types.Procedure) []types.Extraction {
	out := make([]types.Extraction, 0, len(documents))
	for _, doc := range documents {
		if doc.ExtractedText == "" {
			continue
		}
		out = append(out, types.Extraction{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Field:      "procedure_type",
			Value:      string(procedure.ProcedureType),
			Method:     types.MethodClassifier,
		})
	}
	return out
}
