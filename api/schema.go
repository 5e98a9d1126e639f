package api

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ServiceConfig is the configuration document of a WFS proxy service as
// served by the ldproxy admin REST API.
type ServiceConfig struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	Type           string `json:"type,omitempty"`
	URL            string `json:"url,omitempty"`
	Status         string `json:"status,omitempty"`
	DisableMapping bool   `json:"disableMapping,omitempty"`
	// NameSpaces maps namespace URIs to display prefixes.
	NameSpaces        map[string]string  `json:"nameSpaces,omitempty"`
	ServiceProperties *ServiceProperties `json:"serviceProperties,omitempty"`
	// FeatureTypes keeps the document order of the feature types.
	FeatureTypes *orderedmap.OrderedMap[string, *FeatureTypeConfig] `json:"featureTypes,omitempty"`
}

// ServiceProperties holds runtime properties reported for a service.
type ServiceProperties struct {
	MappingStatus *MappingStatus `json:"mappingStatus,omitempty"`
}

// MappingStatus reports whether schema mapping is enabled for a service.
type MappingStatus struct {
	Enabled             bool     `json:"enabled"`
	Loading             bool     `json:"loading"`
	Supported           bool     `json:"supported,omitempty"`
	ErrorMessage        string   `json:"errorMessage,omitempty"`
	ErrorMessageDetails []string `json:"errorMessageDetails,omitempty"`
}

// FeatureTypeConfig is one feature type of a service.
type FeatureTypeConfig struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Namespace   string              `json:"namespace"`
	DisplayName string              `json:"displayName,omitempty"`
	Mappings    *FeatureTypeMapping `json:"mappings,omitempty"`
}

// QN returns the qualified name of the feature type itself.
func (f *FeatureTypeConfig) QN() string {
	if f.Namespace == "" {
		return f.Name
	}
	return f.Namespace + ":" + f.Name
}

// FeatureTypeMapping wraps the per-property mappings of a feature type.
// Keys are qualified property paths, in schema order.
type FeatureTypeMapping struct {
	Mappings *orderedmap.OrderedMap[string, MimeMappings] `json:"mappings,omitempty"`
}

// MimeMappings maps an output format (mime type, or "general") to its
// target mappings.
type MimeMappings map[string][]TargetMapping

// TargetMapping controls how one schema field is rendered in one output format.
type TargetMapping struct {
	Enabled          bool   `json:"enabled"`
	Name             string `json:"name,omitempty"`
	Type             string `json:"type,omitempty"`
	ShowInCollection bool   `json:"showInCollection,omitempty"`
	ItemType         string `json:"itemType,omitempty"`
	ItemProp         string `json:"itemProp,omitempty"`
	MappingType      string `json:"mappingType,omitempty"`
}

// ServicePatch is a partial service update.
type ServicePatch struct {
	ID                string             `json:"id"`
	ServiceProperties *ServiceProperties `json:"serviceProperties,omitempty"`
}

// FeatureTypeChange is an edit of one feature type coming from the
// general or property forms.
type FeatureTypeChange struct {
	// QN addresses the property being changed. Empty means the feature type's own mapping.
	QN          string       `json:"qn,omitempty"`
	DisplayName *string      `json:"displayName,omitempty"`
	Mappings    MimeMappings `json:"mappings,omitempty"`
}

// NewService is the payload for registering a service.
type NewService struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	DisableMapping bool   `json:"disableMapping"`
	URL            string `json:"url"`
}

// ServiceSummary is one entry of the service listing.
type ServiceSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Type   string `json:"type,omitempty"`
	Status string `json:"status,omitempty"`
	URL    string `json:"url,omitempty"`
}
