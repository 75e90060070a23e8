package store

import (
	"sync"

	"constitution/internal/artifact"
)

// MemStore is an in-memory Store. Artifacts are cloned on the way in and on
// the way out, so no caller shares slices or maps with stored state.
type MemStore struct {
	mu    sync.RWMutex
	items map[artifact.Kind]map[string]artifact.Artifact
	order map[artifact.Kind][]string
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		items: make(map[artifact.Kind]map[string]artifact.Artifact),
		order: make(map[artifact.Kind][]string),
	}
}

func (s *MemStore) Put(a artifact.Artifact) (string, error) {
	if err := checkKey(a); err != nil {
		return "", err
	}
	kind, id := a.ArtifactKind(), a.ArtifactID()
	s.mu.Lock()
	defer s.mu.Unlock()
	part, ok := s.items[kind]
	if !ok {
		part = make(map[string]artifact.Artifact)
		s.items[kind] = part
	}
	if _, exists := part[id]; !exists {
		s.order[kind] = append(s.order[kind], id)
	}
	part[id] = artifact.Clone(a)
	return id, nil
}

func (s *MemStore) Get(kind artifact.Kind, id string) (artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[kind][id]
	if !ok {
		return nil, nil
	}
	return artifact.Clone(a), nil
}

func (s *MemStore) Has(kind artifact.Kind, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[kind][id]
	return ok, nil
}

func (s *MemStore) ListIDs(kind artifact.Kind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order[kind]...), nil
}

func (s *MemStore) ResolveMany(kind artifact.Kind, ids []string) ([]artifact.Artifact, []ResolveError, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found []artifact.Artifact
	var missing []ResolveError
	part := s.items[kind]
	for _, id := range ids {
		if a, ok := part[id]; ok {
			found = append(found, artifact.Clone(a))
			continue
		}
		missing = append(missing, ResolveError{ArtifactType: kind, ArtifactID: id})
	}
	return found, missing, nil
}
