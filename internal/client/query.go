package client

import (
	"net/http"
	"net/url"

	"github.com/agentic-research/wfsproxy-manager/api"
)

// Query describes one REST call against the ldproxy admin API.
type Query struct {
	Method string
	Path   string
	Params url.Values
	Body   any
}

// Key identifies the query, for logging and de-duplication.
func (q Query) Key() string {
	k := q.Method + " " + q.Path
	if len(q.Params) > 0 {
		k += "?" + q.Params.Encode()
	}
	return k
}

const servicesPath = "rest/admin/services/"

func servicePath(id string) string {
	return servicesPath + url.PathEscape(id) + "/"
}

// GetServicesQuery lists all services.
func GetServicesQuery() Query {
	return Query{Method: http.MethodGet, Path: servicesPath}
}

// GetServiceQuery fetches the summary of a service.
func GetServiceQuery(id string) Query {
	return Query{Method: http.MethodGet, Path: servicePath(id)}
}

// GetServiceConfigQuery fetches the full configuration of a service.
func GetServiceConfigQuery(id string) Query {
	return Query{Method: http.MethodGet, Path: servicePath(id) + "config/"}
}

// UpdateServiceQuery posts a partial service update.
func UpdateServiceQuery(patch api.ServicePatch) Query {
	return Query{Method: http.MethodPost, Path: servicePath(patch.ID), Body: patch}
}

type featureTypeUpdate struct {
	DisplayName *string             `json:"displayName,omitempty"`
	Mappings    *featureTypeMapping `json:"mappings,omitempty"`
}

type featureTypeMapping struct {
	Mappings map[string]api.MimeMappings `json:"mappings"`
}

type serviceUpdate struct {
	ID           string                       `json:"id"`
	FeatureTypes map[string]featureTypeUpdate `json:"featureTypes"`
}

// UpdateFeatureTypeQuery posts a feature type change as a partial service
// update. Mapping changes without a property qn address the feature type
// mapping ftqn.
func UpdateFeatureTypeQuery(id, ftid, ftqn string, change api.FeatureTypeChange) Query {
	upd := featureTypeUpdate{DisplayName: change.DisplayName}
	if len(change.Mappings) > 0 {
		qn := change.QN
		if qn == "" {
			qn = ftqn
		}
		upd.Mappings = &featureTypeMapping{
			Mappings: map[string]api.MimeMappings{qn: change.Mappings},
		}
	}
	return Query{
		Method: http.MethodPost,
		Path:   servicePath(id),
		Body: serviceUpdate{
			ID:           id,
			FeatureTypes: map[string]featureTypeUpdate{ftid: upd},
		},
	}
}

// AddServiceQuery registers a new service.
func AddServiceQuery(service api.NewService) Query {
	return Query{Method: http.MethodPost, Path: servicesPath, Body: service}
}

// ParseCatalogQuery asks the backend to resolve a CSW catalog into WFS URLs.
func ParseCatalogQuery(catalogURL string) Query {
	return Query{
		Method: http.MethodGet,
		Path:   "rest/catalog/",
		Params: url.Values{"url": {catalogURL}},
	}
}
