package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fiscaal-rapportage/internal/models"
)

// MemStore is an in-memory DossierStore. It backs the server when MongoDB is
// not configured (dossiers do not survive a restart) and the service tests.
type MemStore struct {
	mu       sync.RWMutex
	dossiers map[string]models.Dossier
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{dossiers: make(map[string]models.Dossier)}
}

func (s *MemStore) InsertDossier(_ context.Context, dossier *models.Dossier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dossiers[dossier.ID] = *dossier.Clone()
	return nil
}

func (s *MemStore) GetDossier(_ context.Context, id string) (*models.Dossier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dossier, ok := s.dossiers[id]
	if !ok {
		return nil, nil
	}
	return dossier.Clone(), nil
}

func (s *MemStore) UpdateDossier(_ context.Context, dossier *models.Dossier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dossiers[dossier.ID]; !ok {
		return ErrNotFound
	}
	s.dossiers[dossier.ID] = *dossier.Clone()
	return nil
}

func (s *MemStore) DeleteDossier(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dossiers[id]; !ok {
		return false, nil
	}
	delete(s.dossiers, id)
	return true, nil
}

func (s *MemStore) ListDossiers(_ context.Context, opts models.ListOptions) ([]models.Dossier, int64, error) {
	opts.Normalize()

	s.mu.RLock()
	matched := make([]models.Dossier, 0, len(s.dossiers))
	search := strings.ToLower(opts.Search)
	for _, dossier := range s.dossiers {
		if opts.Status != "" && dossier.Status != opts.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(dossier.Title), search) &&
			!strings.Contains(strings.ToLower(dossier.ClientName), search) {
			continue
		}
		matched = append(matched, dossier)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if opts.SortDir == "desc" {
			a, b = b, a
		}
		switch opts.SortBy {
		case "title":
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		case "clientName":
			return strings.ToLower(a.ClientName) < strings.ToLower(b.ClientName)
		case "status":
			return a.Status < b.Status
		case "createdAt":
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
	})

	total := int64(len(matched))
	start := (opts.Page - 1) * opts.PageSize
	if start >= len(matched) {
		return []models.Dossier{}, total, nil
	}
	end := start + opts.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *MemStore) ArchiveExportedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var archived int64
	for id, dossier := range s.dossiers {
		if dossier.Status == models.DossierStatusExported && dossier.UpdatedAt.Before(cutoff) {
			dossier.Status = models.DossierStatusArchived
			dossier.UpdatedAt = time.Now().UTC()
			s.dossiers[id] = dossier
			archived++
		}
	}
	return archived, nil
}
