package pipeline

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bess-forensic/crawler/internal/dao/memory"
	"github.com/bess-forensic/crawler/internal/httpclient"
	"github.com/bess-forensic/crawler/internal/pdftext"
	"github.com/bess-forensic/crawler/internal/stats"
	"github.com/bess-forensic/crawler/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(store *memory.Store) *Worker {
	client := httpclient.NewClient(nil, nil, &httpclient.Counters{}, 4, 2, nil, false)
	return NewWorker(client, pdftext.NewExtractor(nil), store, nil, discardLogger())
}

func TestExtractSavesAValidProcedure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Aufstellungsbeschluss fuer den Bebauungsplan, Batteriespeicher am Umspannwerk, Leistung 10 MW.</p></body></html>`))
	}))
	defer srv.Close()

	store := memory.New()
	worker := newTestWorker(store)
	acc := stats.NewAccumulator("run1", "muster", types.SourceMunicipalWebsite, time.Now())

	candidate := types.Candidate{
		ID:              "cand1",
		RunID:           "run1",
		MunicipalityKey: "muster",
		DiscoverySource: types.SourceMunicipalWebsite,
		Title:           "Aufstellungsbeschluss Bebauungsplan Batteriespeicher",
		URL:             srv.URL,
		Status:          types.CandidatePending,
	}
	seed := types.MunicipalitySeed{Key: "muster", Name: "Musterstadt"}

	if err := worker.Extract(context.Background(), candidate, seed, types.ModeFast, "run1", acc); err != nil {
		t.Fatalf("extract: %v", err)
	}

	projects, err := store.ProjectsForMunicipality(context.Background(), "muster")
	if err != nil {
		t.Fatalf("projects for municipality: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("expected one project entity created, got %d", len(projects))
	}
}

func TestExtractSkipsAContainerPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Liste der Bekanntmachungen dieser Woche ohne weiteren Bezug.</p></body></html>`))
	}))
	defer srv.Close()

	store := memory.New()
	worker := newTestWorker(store)
	acc := stats.NewAccumulator("run1", "muster", types.SourceAmtsblatt, time.Now())

	candidate := types.Candidate{
		ID:              "cand2",
		RunID:           "run1",
		MunicipalityKey: "muster",
		DiscoverySource: types.SourceAmtsblatt,
		Title:           "Amtsblatt Nr. 07/2024 der Stadt Musterstadt",
		URL:             srv.URL,
		Status:          types.CandidatePending,
	}
	seed := types.MunicipalitySeed{Key: "muster", Name: "Musterstadt"}

	if err := worker.Extract(context.Background(), candidate, seed, types.ModeFast, "run1", acc); err != nil {
		t.Fatalf("extract: %v", err)
	}

	projects, err := store.ProjectsForMunicipality(context.Background(), "muster")
	if err != nil {
		t.Fatalf("projects for municipality: %v", err)
	}
	if len(projects) != 0 {
		t.Fatalf("expected no project entity for a rejected container, got %d", len(projects))
	}
}
