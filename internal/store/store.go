package store

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/wfsproxy-manager/api"
)

// Store is the mutable holder of the normalized entity state.
// Readers take a Snapshot and run selectors on it.
type Store struct {
	mu    sync.RWMutex
	state State

	// Roaring bitmap index: feature type key → set of mapping ordinals.
	// Keeps service replacement and removal O(k) in the number of mappings.
	ftMappings map[string]*roaring.Bitmap
	ordinal    map[string]uint32 // mapping key → ordinal
	byOrdinal  []string          // reverse: ordinal → mapping key
}

func NewStore() *Store {
	return &Store{
		state: State{
			services:     make(map[string]*Service),
			featureTypes: make(map[string]*FeatureType),
			mappings:     make(map[string]*Mapping),
		},
		ftMappings: make(map[string]*roaring.Bitmap),
		ordinal:    make(map[string]uint32),
	}
}

// Snapshot returns an immutable copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Put normalizes a service config and replaces any previous entities of
// the same service.
func (s *Store) Put(cfg *api.ServiceConfig) {
	svc, fts, ms := normalize(cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropService(svc.ID)
	s.state.services[svc.ID] = svc
	for _, ft := range fts {
		s.state.featureTypes[ftKey(svc.ID, ft.ID)] = ft
	}
	for _, m := range ms {
		s.putMapping(svc.ID, m)
	}
}

// Remove deletes a service and everything it owns.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.services[id]; !ok {
		return false
	}
	s.dropService(id)
	return true
}

// putMapping stores m and registers it in the bitmap index.
// Must be called with s.mu held.
func (s *Store) putMapping(service string, m *Mapping) {
	key := mappingKey(service, m.FeatureType, m.ID)
	s.state.mappings[key] = m

	ord, ok := s.ordinal[key]
	if !ok {
		ord = uint32(len(s.byOrdinal))
		s.byOrdinal = append(s.byOrdinal, key)
		s.ordinal[key] = ord
	}
	fk := ftKey(service, m.FeatureType)
	bm, exists := s.ftMappings[fk]
	if !exists {
		bm = roaring.New()
		s.ftMappings[fk] = bm
	}
	bm.Add(ord)
}

// dropService removes a service, its feature types and their mappings.
// Must be called with s.mu held.
func (s *Store) dropService(id string) {
	svc, ok := s.state.services[id]
	if !ok {
		return
	}
	for _, ftID := range svc.FeatureTypes {
		s.dropFeatureType(id, ftID)
	}
	delete(s.state.services, id)
}

func (s *Store) dropFeatureType(service, ftID string) {
	fk := ftKey(service, ftID)
	if bm, ok := s.ftMappings[fk]; ok {
		it := bm.Iterator()
		for it.HasNext() {
			key := s.byOrdinal[it.Next()]
			delete(s.state.mappings, key)
		}
		delete(s.ftMappings, fk)
	}
	delete(s.state.featureTypes, fk)
}

// MappingCount returns the number of indexed mappings of a feature type.
func (s *Store) MappingCount(service, featureType string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bm, ok := s.ftMappings[ftKey(service, featureType)]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}

// SelectService selects a service. The feature type and property
// selection is cleared when the service changes.
func (s *Store) SelectService(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.selection.Service != id {
		s.state.selection = Selection{Service: id}
	}
}

// SelectFeatureType selects a feature type of the selected service and
// clears the property selection when it changes.
func (s *Store) SelectFeatureType(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.selection.FeatureType != id {
		s.state.selection.FeatureType = id
		s.state.selection.Property = ""
	}
}

// SelectProperty selects a property of the selected feature type.
func (s *Store) SelectProperty(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.selection.Property = id
}

// SetCatalog replaces the catalog parse result.
func (s *Store) SetCatalog(urls []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.catalog = slices.Clone(urls)
}

// PatchService applies a partial update to a stored service.
func (s *Store) PatchService(patch api.ServicePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.state.services[patch.ID]
	if !ok {
		return fmt.Errorf("service %s: %w", patch.ID, ErrNotFound)
	}
	next := *svc
	if patch.ServiceProperties != nil && patch.ServiceProperties.MappingStatus != nil {
		status := *patch.ServiceProperties.MappingStatus
		next.ServiceProperties.MappingStatus = &status
	}
	s.state.services[patch.ID] = &next
	return nil
}

// ApplyFeatureTypeChange patches a feature type and the mapping addressed
// by change.QN in place of the server round trip.
func (s *Store) ApplyFeatureTypeChange(service, featureType string, change api.FeatureTypeChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fk := ftKey(service, featureType)
	ft, ok := s.state.featureTypes[fk]
	if !ok {
		return fmt.Errorf("feature type %s of %s: %w", featureType, service, ErrNotFound)
	}
	if change.DisplayName != nil {
		next := *ft
		next.DisplayName = *change.DisplayName
		s.state.featureTypes[fk] = &next
		ft = &next
	}
	if len(change.Mappings) == 0 {
		return nil
	}

	qn := change.QN
	if qn == "" {
		qn = ft.QN()
	}
	for _, id := range ft.Mappings {
		key := mappingKey(service, featureType, id)
		m := s.state.mappings[key]
		if m == nil || m.QN != qn {
			continue
		}
		next := *m
		next.Targets = maps.Clone(m.Targets)
		if next.Targets == nil {
			next.Targets = make(api.MimeMappings, len(change.Mappings))
		}
		for mime, targets := range change.Mappings {
			next.Targets[mime] = slices.Clone(targets)
		}
		s.state.mappings[key] = &next
		return nil
	}
	return fmt.Errorf("mapping %s of %s: %w", qn, featureType, ErrNotFound)
}

// RestoreService puts back the entities of one service as they were in
// before. A service absent from before is removed.
func (s *Store) RestoreService(before State, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropService(id)
	svc, ok := before.services[id]
	if !ok {
		return
	}
	s.state.services[id] = svc
	for _, ftID := range svc.FeatureTypes {
		ft, ok := before.featureTypes[ftKey(id, ftID)]
		if !ok {
			continue
		}
		s.state.featureTypes[ftKey(id, ftID)] = ft
		for _, mID := range ft.Mappings {
			if m, ok := before.mappings[mappingKey(id, ftID, mID)]; ok {
				s.putMapping(id, m)
			}
		}
	}
}
