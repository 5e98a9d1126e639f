package store

import (
	"strconv"

	"github.com/agentic-research/wfsproxy-manager/api"
	"github.com/agentic-research/wfsproxy-manager/internal/qname"
)

// Service is the normalized service entity.
// Entities are never mutated once they are in a State; updates replace them.
type Service struct {
	ID                string                `json:"id"`
	Name              string                `json:"name,omitempty"`
	Type              string                `json:"type,omitempty"`
	URL               string                `json:"url,omitempty"`
	Status            string                `json:"status,omitempty"`
	DisableMapping    bool                  `json:"disableMapping,omitempty"`
	NameSpaces        qname.Namespaces      `json:"nameSpaces,omitempty"`
	ServiceProperties api.ServiceProperties `json:"serviceProperties"`
	// FeatureTypes lists feature type ids in document order.
	FeatureTypes []string `json:"featureTypes"`
}

// MappingStatus returns the service mapping status, or nil.
func (s *Service) MappingStatus() *api.MappingStatus {
	return s.ServiceProperties.MappingStatus
}

// FeatureType is the normalized feature type entity.
type FeatureType struct {
	ID          string `json:"id"`
	Service     string `json:"service"`
	Name        string `json:"name,omitempty"`
	Namespace   string `json:"namespace,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	// Mappings lists mapping ids in schema order.
	Mappings []string `json:"mappings"`
}

// QN returns the qualified name of the feature type.
func (f *FeatureType) QN() string {
	if f.Namespace == "" {
		return f.Name
	}
	return f.Namespace + ":" + f.Name
}

// Mapping is the normalized per-property mapping entity.
type Mapping struct {
	ID          string           `json:"id"`
	FeatureType string           `json:"featureType"`
	Index       int              `json:"index"`
	QN          string           `json:"qn"`
	Targets     api.MimeMappings `json:"targets"`
}

// mappingID derives the id of the mapping at index. The feature type's own
// mapping shares the feature type id.
func mappingID(ft *FeatureType, qn string, index int) string {
	if qn == ft.QN() {
		return ft.ID
	}
	return ft.ID + "_" + strconv.Itoa(index)
}

func ftKey(service, ft string) string {
	return service + "/" + ft
}

func mappingKey(service, ft, mapping string) string {
	return service + "/" + ft + "/" + mapping
}

// normalize flattens a service config into entities.
func normalize(cfg *api.ServiceConfig) (*Service, []*FeatureType, []*Mapping) {
	svc := &Service{
		ID:             cfg.ID,
		Name:           cfg.Name,
		Type:           cfg.Type,
		URL:            cfg.URL,
		Status:         cfg.Status,
		DisableMapping: cfg.DisableMapping,
		NameSpaces:     qname.Namespaces(cfg.NameSpaces),
	}
	if cfg.ServiceProperties != nil {
		svc.ServiceProperties = *cfg.ServiceProperties
	}

	var fts []*FeatureType
	var ms []*Mapping
	if cfg.FeatureTypes == nil {
		return svc, fts, ms
	}
	for pair := cfg.FeatureTypes.Oldest(); pair != nil; pair = pair.Next() {
		src := pair.Value
		if src == nil {
			continue
		}
		id := src.ID
		if id == "" {
			id = pair.Key
		}
		ft := &FeatureType{
			ID:          id,
			Service:     svc.ID,
			Name:        src.Name,
			Namespace:   src.Namespace,
			DisplayName: src.DisplayName,
		}
		if src.Mappings != nil && src.Mappings.Mappings != nil {
			index := 0
			for mp := src.Mappings.Mappings.Oldest(); mp != nil; mp = mp.Next() {
				m := &Mapping{
					ID:          mappingID(ft, mp.Key, index),
					FeatureType: ft.ID,
					Index:       index,
					QN:          mp.Key,
					Targets:     mp.Value,
				}
				ft.Mappings = append(ft.Mappings, m.ID)
				ms = append(ms, m)
				index++
			}
		}
		svc.FeatureTypes = append(svc.FeatureTypes, ft.ID)
		fts = append(fts, ft)
	}
	return svc, fts, ms
}
