package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentic-research/wfsproxy-manager/api"
	"github.com/agentic-research/wfsproxy-manager/internal/client"
	"github.com/agentic-research/wfsproxy-manager/internal/mappingedit"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
	"github.com/agentic-research/wfsproxy-manager/internal/view"
)

// fieldEdit is a single form input change. An empty Property edits the
// feature type's own mapping.
type fieldEdit struct {
	Property string            `json:"property,omitempty"`
	MimeType string            `json:"mimeType"`
	Field    mappingedit.Field `json:"field"`
	Value    string            `json:"value"`
}

type pendingEdit struct {
	Service     string
	FeatureType string
	FTQN        string
	Change      api.FeatureTypeChange
}

type editResponse struct {
	Pending bool                  `json:"pending"`
	Change  api.FeatureTypeChange `json:"change"`
	Form    *mappingedit.Form     `json:"form"`
}

// handleEditField applies a field edit locally at once and pushes it to the
// backend after the debounce delay. Later edits of the same field replace it.
func (h *Handler) handleEditField(w http.ResponseWriter, r *http.Request) {
	id, ftid := chi.URLParam(r, "id"), chi.URLParam(r, "ftid")
	var edit fieldEdit
	if !h.decode(w, r, &edit) {
		return
	}
	if edit.MimeType == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "mimeType is required", nil)
		return
	}

	st, err := h.snapshot(r.Context(), id, false)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	ft, ok := store.FeatureTypeByID(st, id, ftid)
	if !ok {
		h.writeFailure(w, fmt.Errorf("feature type %s of %s: %w", ftid, id, store.ErrNotFound))
		return
	}
	mappingID := edit.Property
	if mappingID == "" {
		mappingID = ft.ID
	}
	m, ok := store.MappingByID(st, id, ftid, mappingID)
	if !ok {
		h.writeFailure(w, fmt.Errorf("property %s of %s: %w", mappingID, ftid, store.ErrNotFound))
		return
	}

	svc, _ := store.ServiceByID(st, id)
	pe := view.NewPropertyEdit(ft, m, view.Namespaces(svc, h.extra))
	form := pe.Form(edit.MimeType)
	if form == nil {
		form = mappingedit.NewForm(edit.MimeType, api.TargetMapping{}, pe.IsFeatureType)
	}
	mimes, err := form.Set(edit.Field, edit.Value)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	change := api.FeatureTypeChange{Mappings: mimes}
	if !pe.IsFeatureType {
		change.QN = m.QN
	}
	if err := h.store.ApplyFeatureTypeChange(id, ftid, change); err != nil {
		h.writeFailure(w, err)
		return
	}
	key := fmt.Sprintf("%s|%s|%s|%s|%s", id, ftid, m.ID, edit.MimeType, edit.Field)
	h.edits.Submit(key, pendingEdit{Service: id, FeatureType: ftid, FTQN: ft.QN(), Change: change})

	h.writeJSON(w, http.StatusAccepted, editResponse{Pending: true, Change: change, Form: form})
}

// pushEdit posts a debounced edit and resyncs the service with the backend,
// which drops the local edit again if it was rejected. While other edits of
// the service are still pending the resync is left to the last of them, so
// their local values are not overwritten.
func (h *Handler) pushEdit(key string, e pendingEdit) {
	ctx, cancel := context.WithTimeout(context.Background(), h.pushTimeout)
	defer cancel()

	log := h.log.With().Str("edit", key).Logger()
	res := h.doer.Do(ctx, client.UpdateFeatureTypeQuery(e.Service, e.FeatureType, e.FTQN, e.Change))
	if !res.OK() {
		log.Warn().Err(res.Err).Msg("mapping update rejected")
	} else {
		log.Debug().Msg("mapping update pushed")
	}
	if n := len(h.pendingFor(e.Service)); n > 0 {
		log.Debug().Int("pending", n).Msg("refresh deferred")
		return
	}
	if err := client.Refresh(ctx, h.doer, h.store, e.Service); err != nil {
		log.Warn().Err(err).Msg("refresh after mapping update")
	}
	// edits submitted while the refresh was in flight
	for _, p := range h.pendingFor(e.Service) {
		if err := h.store.ApplyFeatureTypeChange(p.Service, p.FeatureType, p.Change); err != nil {
			log.Warn().Err(err).Str("feature_type", p.FeatureType).Msg("reapply pending edit")
		}
	}
}

func (h *Handler) pendingFor(service string) []pendingEdit {
	var out []pendingEdit
	for _, p := range h.edits.PendingValues() {
		if p.Service == service {
			out = append(out, p)
		}
	}
	return out
}
