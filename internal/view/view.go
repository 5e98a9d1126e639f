// Package view denormalizes store snapshots into the models shown when a
// feature type is opened.
package view

import (
	"fmt"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/agentic-research/wfsproxy-manager/api"
	"github.com/agentic-research/wfsproxy-manager/internal/mappingedit"
	"github.com/agentic-research/wfsproxy-manager/internal/proptree"
	"github.com/agentic-research/wfsproxy-manager/internal/qname"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
)

// FeatureTypeShow is the view of the selected feature type.
type FeatureTypeShow struct {
	Service       *store.Service     `json:"service"`
	FeatureType   *store.FeatureType `json:"featureType"`
	DisplayName   string             `json:"displayName"`
	Tree          *proptree.Tree     `json:"properties"`
	MappingStatus api.MappingStatus  `json:"mappingStatus"`
	// Selected is the property being edited, the feature type itself when
	// no property is selected.
	Selected string        `json:"selected"`
	Edit     *PropertyEdit `json:"edit,omitempty"`
}

// PropertyEdit is the edit panel of one mapping.
type PropertyEdit struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	QN            string              `json:"qn"`
	IsFeatureType bool                `json:"isFeatureType"`
	Mappings      api.MimeMappings    `json:"mappings"`
	Forms         []*mappingedit.Form `json:"forms"`
}

// Namespaces returns the label table of svc with extra entries merged in.
// Entries of the service win.
func Namespaces(svc *store.Service, extra qname.Namespaces) qname.Namespaces {
	return extra.Merge(svc.NameSpaces)
}

// BuildFeatureTypeShow builds the view of the feature type selected in s.
// extra supplies namespace prefixes the service does not declare.
func BuildFeatureTypeShow(s store.State, extra qname.Namespaces) (*FeatureTypeShow, error) {
	svc, ok := store.CurrentService(s)
	if !ok {
		return nil, fmt.Errorf("service: %w", store.ErrNoSelection)
	}
	ft, ok := store.CurrentFeatureType(s)
	if !ok {
		return nil, fmt.Errorf("feature type of %s: %w", svc.ID, store.ErrNoSelection)
	}
	ns := Namespaces(svc, extra)
	mappings := store.MappingsForFeatureType(s)

	show := &FeatureTypeShow{
		Service:     svc,
		FeatureType: ft,
		DisplayName: ft.DisplayName,
		Tree:        Tree(ft, mappings, ns),
		Selected:    store.SelectedProperty(s),
	}
	if ms := svc.MappingStatus(); ms != nil {
		show.MappingStatus = *ms
	}
	if show.Selected == "" {
		show.Selected = ft.ID
	}
	if m, ok := mappings.Get(show.Selected); ok {
		show.Edit = NewPropertyEdit(ft, m, ns)
	}
	return show, nil
}

// Tree builds the property tree of ft.
func Tree(ft *store.FeatureType, mappings *orderedmap.OrderedMap[string, *store.Mapping], ns qname.Namespaces) *proptree.Tree {
	qns := orderedmap.New[string, string]()
	for pair := mappings.Oldest(); pair != nil; pair = pair.Next() {
		qns.Set(pair.Key, pair.Value.QN)
	}
	return proptree.Build(proptree.Root{ID: ft.ID, QN: ft.QN()}, qns, ns)
}

// NewPropertyEdit builds the edit panel of m, one form per output format.
func NewPropertyEdit(ft *store.FeatureType, m *store.Mapping, ns qname.Namespaces) *PropertyEdit {
	isFT := m.ID == ft.ID
	pe := &PropertyEdit{
		ID:            m.ID,
		Title:         ns.LabelOf(m.QN),
		QN:            m.QN,
		IsFeatureType: isFT,
		Mappings:      m.Targets,
	}
	mimes := make([]string, 0, len(m.Targets))
	for mime := range m.Targets {
		mimes = append(mimes, mime)
	}
	sort.Strings(mimes)
	for _, mime := range mimes {
		var target api.TargetMapping
		if ts := m.Targets[mime]; len(ts) > 0 {
			target = ts[0]
		}
		pe.Forms = append(pe.Forms, mappingedit.NewForm(mime, target, isFT))
	}
	return pe
}

// Form returns the form of mimeType, or nil.
func (pe *PropertyEdit) Form(mimeType string) *mappingedit.Form {
	for _, f := range pe.Forms {
		if f.MimeType == mimeType {
			return f
		}
	}
	return nil
}

// EnableMapping is the patch that switches on schema mapping for svc.
func EnableMapping(svc *store.Service) api.ServicePatch {
	return api.ServicePatch{
		ID: svc.ID,
		ServiceProperties: &api.ServiceProperties{
			MappingStatus: &api.MappingStatus{Enabled: true, Loading: true},
		},
	}
}
