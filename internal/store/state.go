package store

import (
	"errors"
	"maps"
	"slices"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrNoSelection = errors.New("nothing selected")
)

// Selection is the current navigation state.
type Selection struct {
	Service     string `json:"service,omitempty"`
	FeatureType string `json:"featureType,omitempty"`
	Property    string `json:"property,omitempty"`
}

// State is an immutable snapshot of the entity store.
// The zero value is an empty state.
type State struct {
	services     map[string]*Service
	featureTypes map[string]*FeatureType // service/ft
	mappings     map[string]*Mapping     // service/ft/mapping
	catalog      []string
	selection    Selection
}

// WithSelection returns a copy of s with sel applied.
func (s State) WithSelection(sel Selection) State {
	s.selection = sel
	return s
}

func (s State) clone() State {
	return State{
		services:     maps.Clone(s.services),
		featureTypes: maps.Clone(s.featureTypes),
		mappings:     maps.Clone(s.mappings),
		catalog:      slices.Clone(s.catalog),
		selection:    s.selection,
	}
}

// Services returns all services ordered by id.
func Services(s State) []*Service {
	out := make([]*Service, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ServiceByID looks up a service.
func ServiceByID(s State, id string) (*Service, bool) {
	svc, ok := s.services[id]
	return svc, ok
}

// CurrentService returns the selected service.
func CurrentService(s State) (*Service, bool) {
	return ServiceByID(s, s.selection.Service)
}

// FeatureTypeByID looks up a feature type of a service.
func FeatureTypeByID(s State, service, id string) (*FeatureType, bool) {
	ft, ok := s.featureTypes[ftKey(service, id)]
	return ft, ok
}

// CurrentFeatureType returns the selected feature type of the selected service.
func CurrentFeatureType(s State) (*FeatureType, bool) {
	return FeatureTypeByID(s, s.selection.Service, s.selection.FeatureType)
}

// FeatureTypes returns the feature types of a service in document order.
func FeatureTypes(s State, service string) []*FeatureType {
	svc, ok := s.services[service]
	if !ok {
		return nil
	}
	out := make([]*FeatureType, 0, len(svc.FeatureTypes))
	for _, id := range svc.FeatureTypes {
		if ft, ok := s.featureTypes[ftKey(service, id)]; ok {
			out = append(out, ft)
		}
	}
	return out
}

// MappingsOf returns the mappings of a feature type keyed by mapping id,
// in schema order. Unknown feature types yield an empty map.
func MappingsOf(s State, service, featureType string) *orderedmap.OrderedMap[string, *Mapping] {
	out := orderedmap.New[string, *Mapping]()
	ft, ok := FeatureTypeByID(s, service, featureType)
	if !ok {
		return out
	}
	for _, id := range ft.Mappings {
		if m, ok := s.mappings[mappingKey(service, featureType, id)]; ok {
			out.Set(id, m)
		}
	}
	return out
}

// MappingsForFeatureType returns the mappings of the selected feature type.
func MappingsForFeatureType(s State) *orderedmap.OrderedMap[string, *Mapping] {
	return MappingsOf(s, s.selection.Service, s.selection.FeatureType)
}

// MappingByID looks up one mapping.
func MappingByID(s State, service, featureType, id string) (*Mapping, bool) {
	m, ok := s.mappings[mappingKey(service, featureType, id)]
	return m, ok
}

// MappingByQN finds the mapping of a feature type addressing qn.
func MappingByQN(s State, service, featureType, qn string) (*Mapping, bool) {
	for pair := MappingsOf(s, service, featureType).Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.QN == qn {
			return pair.Value, true
		}
	}
	return nil, false
}

func SelectedService(s State) string     { return s.selection.Service }
func SelectedFeatureType(s State) string { return s.selection.FeatureType }
func SelectedProperty(s State) string    { return s.selection.Property }

// Selected returns the whole selection.
func Selected(s State) Selection { return s.selection }

// Catalog returns the service URLs of the last catalog parse.
func Catalog(s State) []string {
	return slices.Clone(s.catalog)
}
