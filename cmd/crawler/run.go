package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bess-forensic/crawler/internal/config"
	"github.com/bess-forensic/crawler/internal/dao"
	"github.com/bess-forensic/crawler/internal/dao/memory"
	"github.com/bess-forensic/crawler/internal/dao/postgres"
	"github.com/bess-forensic/crawler/internal/discovery"
	"github.com/bess-forensic/crawler/internal/httpclient"
	"github.com/bess-forensic/crawler/internal/jobqueue"
	"github.com/bess-forensic/crawler/internal/llmfallback"
	"github.com/bess-forensic/crawler/internal/logging"
	"github.com/bess-forensic/crawler/internal/pdftext"
	"github.com/bess-forensic/crawler/internal/pipeline"
	"github.com/bess-forensic/crawler/internal/prefilter"
	"github.com/bess-forensic/crawler/internal/stats"
	"github.com/bess-forensic/crawler/internal/telemetry"
	"github.com/bess-forensic/crawler/internal/types"
)

// app bundles every wired component a municipality crawl needs, built once
// per process invocation by newApp and shared by both the run and worker
// subcommands.
type app struct {
	cfg    config.Config
	seeds  *config.SeedStore
	store  dao.DAO
	client *httpclient.Client
	pdf    *pdftext.Extractor
	worker *pipeline.Worker
	log    *slog.Logger
	queue  *jobqueue.Queue

	candidatesMu sync.Mutex
	candidates   map[string]types.Candidate

	statsMu sync.Mutex
	statsByMunicipality map[string][]types.CrawlStats

	adapters map[types.DiscoverySource]discovery.Adapter
}

// newApp loads configuration and wires every component, grounded on
// cmd/bd's init-time store/daemon wiring but performed explicitly here
// rather than in a package-level init(), since the crawler has no daemon
// mode to share state across invocations.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if modeFlag != "" {
		cfg.Mode = config.CrawlMode(modeFlag)
	}

	seeds, err := config.LoadSeedFile(seedFile)
	if err != nil {
		return nil, fmt.Errorf("load seed file: %w", err)
	}
	if keywordOverrides != "" {
		if err := config.ApplyKeywordOverrides(keywordOverrides); err != nil {
			return nil, fmt.Errorf("apply keyword overrides: %w", err)
		}
	}

	var store dao.DAO
	if cfg.DatabaseURL != "" {
		pgStore, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store = pgStore
	} else {
		store = memory.New()
	}

	diskCache, err := httpclient.NewDiskCache(cfg.CacheBase)
	if err != nil {
		return nil, fmt.Errorf("open http cache: %w", err)
	}

	log := logging.New(slog.LevelInfo)

	var client *httpclient.Client
	counters := &httpclient.Counters{}
	robots := httpclient.NewDiskRobots(func(host string, delay time.Duration) {
		client.SetHostDelay(host, delay)
	})
	client = httpclient.NewClient(diskCache, robots, counters, int(concurrency), 2, cfg.SSLInsecureAllowlist, cfg.AllowHTTPFallback)

	for host, raw := range seeds.HostRateDelays() {
		if d, parseErr := time.ParseDuration(raw); parseErr == nil {
			client.SetHostDelay(host, d)
		}
	}

	textCache, err := pdftext.NewDiskCache(cfg.TextCacheBase)
	if err != nil {
		return nil, fmt.Errorf("open pdf text cache: %w", err)
	}
	pdf := pdftext.NewExtractor(textCache)

	var hint llmfallback.Classifier
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		if c, err := llmfallback.NewAnthropicClassifier(apiKey); err == nil {
			hint = c
		}
	}

	worker := pipeline.NewWorker(client, pdf, store, hint, log)

	a := &app{
		cfg:        cfg,
		seeds:      seeds,
		store:      store,
		client:     client,
		pdf:        pdf,
		worker:     worker,
		log:        log,
		queue:      jobqueue.NewQueue(),
		candidates: make(map[string]types.Candidate),
		statsByMunicipality: make(map[string][]types.CrawlStats),
		adapters: map[types.DiscoverySource]discovery.Adapter{
			types.SourceRIS:              &discovery.RISAdapter{Client: client},
			types.SourceAmtsblatt:        &discovery.AmtsblattAdapter{Client: client},
			types.SourceMunicipalWebsite: &discovery.MunicipalWebsiteAdapter{Client: client},
		},
	}
	return a, nil
}

// enqueueSeeds pushes one Municipality job per configured seed onto the
// queue, the root of the municipality → discovery → extraction job fan-out
// internal/jobqueue documents.
func (a *app) enqueueSeeds(runID string, mode types.CrawlMode) {
	for _, seed := range a.seeds.Municipalities() {
		a.queue.Push(types.Job{
			Type:             types.JobMunicipality,
			RunID:            runID,
			MunicipalityKey:  seed.Key,
			MunicipalityName: seed.Name,
			Mode:             mode,
			CreatedAt:        time.Now(),
		})
	}
}

// handle dispatches one job by Type, grounded on internal/jobqueue's
// documented municipality→discovery→extraction fan-out. Every branch is
// expected to never itself panic; jobqueue.Pool.runOne recovers regardless.
func (a *app) handle(ctx context.Context, job types.Job) error {
	switch job.Type {
	case types.JobMunicipality:
		return a.handleMunicipality(ctx, job)
	case types.JobDiscoveryRIS:
		return a.handleDiscovery(ctx, job, types.SourceRIS)
	case types.JobDiscoveryGazette:
		return a.handleDiscovery(ctx, job, types.SourceAmtsblatt)
	case types.JobDiscoveryMunicipal:
		return a.handleDiscovery(ctx, job, types.SourceMunicipalWebsite)
	case types.JobExtraction:
		return a.handleExtraction(ctx, job)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

func (a *app) handleMunicipality(ctx context.Context, job types.Job) error {
	a.queue.Push(types.Job{Type: types.JobDiscoveryRIS, RunID: job.RunID, MunicipalityKey: job.MunicipalityKey, MunicipalityName: job.MunicipalityName, Mode: job.Mode, CreatedAt: time.Now()})
	a.queue.Push(types.Job{Type: types.JobDiscoveryGazette, RunID: job.RunID, MunicipalityKey: job.MunicipalityKey, MunicipalityName: job.MunicipalityName, Mode: job.Mode, CreatedAt: time.Now()})
	a.queue.Push(types.Job{Type: types.JobDiscoveryMunicipal, RunID: job.RunID, MunicipalityKey: job.MunicipalityKey, MunicipalityName: job.MunicipalityName, Mode: job.Mode, CreatedAt: time.Now()})
	return nil
}

// handleDiscovery runs one source adapter, folds its result into crawl
// stats, and enqueues one Extraction job per candidate that clears
// prefilter.ShouldExtract — the single gate between "discovered" and
// "worth a full fetch" (spec.md §4.4).
func (a *app) handleDiscovery(ctx context.Context, job types.Job, source types.DiscoverySource) error {
	adapter := a.adapters[source]
	seed := types.MunicipalitySeed{Key: job.MunicipalityKey, Name: job.MunicipalityName}
	started := time.Now()
	acc := stats.NewAccumulator(job.RunID, job.MunicipalityKey, source, started)

	// Run through DiscoverAll (even for this one adapter) so a panicking
	// adapter degrades to an empty result instead of taking the job down,
	// per spec.md §5's graceful-degradation contract.
	results := discovery.DiscoverAll(ctx, []discovery.Adapter{adapter}, seed, job.RunID, job.Mode)
	candidates, diag := results[0].Candidates, results[0].Diagnostics
	acc.SetDiagnostics(diag)
	acc.AddCandidatesFound(len(candidates))
	telemetry.CandidatesFound(ctx, string(source), int64(len(candidates)))

	status := types.StatusSuccess
	if len(diag.FailedURLs) > 0 && len(candidates) == 0 {
		status = types.StatusErrorOther
	}
	acc.SetOutcome(status, "")

	passed := 0
	for _, cand := range candidates {
		result := prefilter.ShouldExtract(cand.Title, cand.URL, source, job.Mode)
		if !result.Passes {
			continue
		}
		passed++
		a.storeCandidate(cand)
		a.queue.Push(types.Job{
			Type:            types.JobExtraction,
			RunID:           job.RunID,
			MunicipalityKey: job.MunicipalityKey,
			Mode:            job.Mode,
			CandidateID:     cand.ID,
			CreatedAt:       time.Now(),
		})
	}

	row, err := acc.Finish(ctx, a.store, time.Now())
	if err != nil {
		a.log.Warn("record_crawl_stats_failed", "municipality_key", job.MunicipalityKey, "source", source, "error", err.Error())
	} else {
		a.recordStats(job.MunicipalityKey, row)
	}
	a.log.Info("discovery_complete", "municipality_key", job.MunicipalityKey, "source", source, "candidates_found", len(candidates), "candidates_queued", passed)
	return nil
}

// recordStats folds one completed discovery/extraction job's CrawlStats row
// into the per-municipality tally renderSummary prints at the end of a run,
// and immediately emits the MUNICIPALITY_SUMMARY log line spec.md §7
// requires on "each discovery job completion".
func (a *app) recordStats(municipalityKey string, row types.CrawlStats) {
	a.statsMu.Lock()
	a.statsByMunicipality[municipalityKey] = append(a.statsByMunicipality[municipalityKey], row)
	rows := append([]types.CrawlStats(nil), a.statsByMunicipality[municipalityKey]...)
	a.statsMu.Unlock()

	statusBySource, proceduresSaved := stats.MunicipalitySummary(rows)
	logging.MunicipalitySummary(a.log, municipalityKey, statusBySource, proceduresSaved)
}

func (a *app) storeCandidate(c types.Candidate) {
	a.candidatesMu.Lock()
	a.candidates[c.ID] = c
	a.candidatesMu.Unlock()
}

func (a *app) takeCandidate(id string) (types.Candidate, bool) {
	a.candidatesMu.Lock()
	defer a.candidatesMu.Unlock()
	c, ok := a.candidates[id]
	if ok {
		delete(a.candidates, id)
	}
	return c, ok
}

func (a *app) handleExtraction(ctx context.Context, job types.Job) error {
	candidate, ok := a.takeCandidate(job.CandidateID)
	if !ok {
		return fmt.Errorf("extraction job %s: candidate %s not found", job.RunID, job.CandidateID)
	}
	seed := types.MunicipalitySeed{Key: job.MunicipalityKey, Name: job.MunicipalityName}
	acc := stats.NewAccumulator(job.RunID, job.MunicipalityKey, candidate.DiscoverySource, time.Now())

	if err := a.worker.Extract(ctx, candidate, seed, job.Mode, job.RunID, acc); err != nil {
		acc.SetOutcome(types.StatusErrorOther, err.Error())
		if row, finishErr := acc.Finish(ctx, a.store, time.Now()); finishErr == nil {
			a.recordStats(job.MunicipalityKey, row)
		}
		return err
	}

	acc.SetOutcome(types.StatusSuccess, "")
	row, err := acc.Finish(ctx, a.store, time.Now())
	if err != nil {
		a.log.Warn("record_crawl_stats_failed", "municipality_key", job.MunicipalityKey, "candidate_id", candidate.ID, "error", err.Error())
		return nil
	}
	a.recordStats(job.MunicipalityKey, row)
	return nil
}

// inFlightHandler wraps a jobqueue.Handler with an atomic in-flight counter
// so drainAndWait can tell "queue momentarily empty" apart from "queue
// empty and nothing left running" — Pop() alone can't see a job that has
// been dequeued but not yet finished re-enqueuing its children.
func inFlightHandler(h jobqueue.Handler, inFlight *int64) jobqueue.Handler {
	return func(ctx context.Context, job types.Job) error {
		atomic.AddInt64(inFlight, 1)
		defer atomic.AddInt64(inFlight, -1)
		return h(ctx, job)
	}
}

// drainAndWait polls until the queue is empty and no job is in flight, then
// cancels cancel so pool.Run returns — the "run" subcommand's one-shot
// drain-then-exit semantics layered on top of jobqueue.Pool, which by itself
// only exits on context cancellation.
func drainAndWait(ctx context.Context, queue *jobqueue.Queue, inFlight *int64, cancel context.CancelFunc) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if queue.Len() == 0 && atomic.LoadInt64(inFlight) == 0 {
				cancel()
				return
			}
		}
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one crawl pass over every seeded municipality, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(rootCtx)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		shutdownTelemetry, err := telemetry.Init(ctx)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() { _ = shutdownTelemetry(context.Background()) }()

		runID := uuid.NewString()
		a.enqueueSeeds(runID, types.CrawlMode(a.cfg.Mode))

		var inFlight int64
		pool := jobqueue.NewPool(a.queue, inFlightHandler(a.handle, &inFlight), concurrency)
		go drainAndWait(ctx, a.queue, &inFlight, cancel)
		pool.Run(ctx)

		renderSummary(a, runID)
		return nil
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run as a long-lived worker, draining the queue until terminated",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(rootCtx)
		if err != nil {
			return err
		}
		shutdownTelemetry, err := telemetry.Init(rootCtx)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() { _ = shutdownTelemetry(context.Background()) }()

		runID := uuid.NewString()
		a.enqueueSeeds(runID, types.CrawlMode(a.cfg.Mode))

		done := make(chan struct{})
		onReload := func() { a.enqueueSeeds(uuid.NewString(), types.CrawlMode(a.cfg.Mode)) }
		if err := a.seeds.Watch(seedFile, done, onReload); err != nil {
			a.log.Warn("seed_watch_failed", "error", err.Error())
		}
		defer close(done)

		var inFlight int64
		pool := jobqueue.NewPool(a.queue, inFlightHandler(a.handle, &inFlight), concurrency)
		pool.Run(rootCtx)
		return nil
	},
}
