// Package memory is an in-process dao.DAO backend for tests, grounded on the
// teacher's internal/storage/ephemeral in-memory issue store.
package memory

import (
	"context"
	"sync"

	"github.com/bess-forensic/crawler/internal/dao"
	"github.com/bess-forensic/crawler/internal/idgen"
	"github.com/bess-forensic/crawler/internal/rollup"
	"github.com/bess-forensic/crawler/internal/types"
)

// Store is a mutex-guarded, map-backed dao.DAO.
type Store struct {
	mu         sync.Mutex
	sources    map[string]types.Source
	documents  map[string]types.Document
	extractions map[string]types.Extraction
	procedures map[string]types.Procedure
	projects   map[string]types.ProjectEntity
	links      []types.ProjectProcedureLink
	stats      map[string]types.CrawlStats
	candidateStatus map[string]types.CandidateStatus
}

func New() *Store {
	return &Store{
		sources:    make(map[string]types.Source),
		documents:  make(map[string]types.Document),
		extractions: make(map[string]types.Extraction),
		procedures: make(map[string]types.Procedure),
		projects:   make(map[string]types.ProjectEntity),
		stats:      make(map[string]types.CrawlStats),
		candidateStatus: make(map[string]types.CandidateStatus),
	}
}

var _ dao.DAO = (*Store)(nil)

func (s *Store) FlushExtraction(ctx context.Context, opts dao.UpsertOptions, batch dao.ExtractionBatch, resolve dao.Resolver) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, src := range batch.Sources {
		s.sources[src.ID] = src
	}
	for _, d := range batch.Documents {
		s.documents[d.ID] = d
	}
	for _, e := range batch.Extractions {
		s.extractions[e.ID] = e
	}

	if batch.Procedure == nil {
		return "", nil
	}
	proc := *batch.Procedure
	s.procedures[proc.ID] = proc

	existing := s.projectsForMunicipalityLocked(proc.MunicipalityKey)
	projectID, matchLevel, confidence, isNew := resolve(proc, existing)

	var project types.ProjectEntity
	if isNew {
		projectID = idgen.MakeProjectID(proc.MunicipalityKey, proc.TitleNorm)
		project = rollup.Recompute(types.ProjectEntity{ID: projectID, MunicipalityKey: proc.MunicipalityKey}, []types.Procedure{proc})
	} else {
		project = s.projects[projectID]
		linked := s.proceduresForProjectLocked(projectID)
		linked = append(linked, proc)
		project = rollup.Recompute(project, linked)
	}
	s.projects[project.ID] = project
	s.links = append(s.links, types.ProjectProcedureLink{
		ProcedureID: proc.ID,
		ProjectID:   project.ID,
		MatchLevel:  matchLevel,
		Confidence:  confidence,
	})
	return project.ID, nil
}

func (s *Store) UpsertProjectEntity(ctx context.Context, project types.ProjectEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[project.ID] = project
	return nil
}

func (s *Store) ProjectsForMunicipality(ctx context.Context, municipalityKey string) ([]types.ProjectEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectsForMunicipalityLocked(municipalityKey), nil
}

func (s *Store) projectsForMunicipalityLocked(municipalityKey string) []types.ProjectEntity {
	var out []types.ProjectEntity
	for _, p := range s.projects {
		if p.MunicipalityKey == municipalityKey {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) ProceduresForProject(ctx context.Context, projectID string) ([]types.Procedure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proceduresForProjectLocked(projectID), nil
}

func (s *Store) proceduresForProjectLocked(projectID string) []types.Procedure {
	var out []types.Procedure
	for _, link := range s.links {
		if link.ProjectID == projectID {
			if proc, ok := s.procedures[link.ProcedureID]; ok {
				out = append(out, proc)
			}
		}
	}
	return out
}

func (s *Store) RecordCrawlStats(ctx context.Context, stats types.CrawlStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stats.RunID + "|" + stats.MunicipalityKey + "|" + string(stats.SourceType)
	s.stats[key] = stats
	return nil
}

func (s *Store) MarkCandidateStatus(ctx context.Context, candidateID string, status types.CandidateStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidateStatus[candidateID] = status
	return nil
}
