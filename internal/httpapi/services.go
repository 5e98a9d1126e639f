package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentic-research/wfsproxy-manager/api"
	"github.com/agentic-research/wfsproxy-manager/internal/client"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
	"github.com/agentic-research/wfsproxy-manager/internal/view"
)

type serviceResponse struct {
	*store.Service
	FeatureTypeList []*store.FeatureType `json:"featureTypeList"`
}

func (h *Handler) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := client.FetchServices(r.Context(), h.doer)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if services == nil {
		services = []api.ServiceSummary{}
	}
	h.writeJSON(w, http.StatusOK, services)
}

// snapshot returns a state holding service id. The service is fetched when
// it is missing or refresh is requested.
func (h *Handler) snapshot(ctx context.Context, id string, refresh bool) (store.State, error) {
	st := h.store.Snapshot()
	if _, ok := store.ServiceByID(st, id); ok && !refresh {
		return st, nil
	}
	if err := client.Refresh(ctx, h.doer, h.store, id); err != nil {
		return st, err
	}
	return h.store.Snapshot(), nil
}

func wantsRefresh(r *http.Request) bool {
	return r.URL.Query().Get("refresh") == "true"
}

func (h *Handler) handleGetService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.snapshot(r.Context(), id, wantsRefresh(r))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	svc, _ := store.ServiceByID(st, id)
	h.writeJSON(w, http.StatusOK, serviceResponse{Service: svc, FeatureTypeList: store.FeatureTypes(st, id)})
}

func (h *Handler) handleEnableMapping(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.snapshot(r.Context(), id, false)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	svc, _ := store.ServiceByID(st, id)
	if err := client.UpdateService(r.Context(), h.doer, h.store, view.EnableMapping(svc)); err != nil {
		h.writeFailure(w, err)
		return
	}
	svc, _ = store.ServiceByID(h.store.Snapshot(), id)
	h.writeJSON(w, http.StatusOK, svc.MappingStatus())
}

// show builds the feature type view for the request path. The property
// query parameter selects the property being edited.
func (h *Handler) show(r *http.Request, st store.State) (*view.FeatureTypeShow, error) {
	sel := store.Selection{
		Service:     chi.URLParam(r, "id"),
		FeatureType: chi.URLParam(r, "ftid"),
		Property:    r.URL.Query().Get("property"),
	}
	show, err := view.BuildFeatureTypeShow(st.WithSelection(sel), h.extra)
	if err != nil {
		return nil, fmt.Errorf("feature type %s of %s: %w", sel.FeatureType, sel.Service, store.ErrNotFound)
	}
	return show, nil
}

func (h *Handler) handleGetFeatureType(w http.ResponseWriter, r *http.Request) {
	st, err := h.snapshot(r.Context(), chi.URLParam(r, "id"), wantsRefresh(r))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	show, err := h.show(r, st)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, show)
}

func (h *Handler) handleGetTree(w http.ResponseWriter, r *http.Request) {
	st, err := h.snapshot(r.Context(), chi.URLParam(r, "id"), wantsRefresh(r))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	show, err := h.show(r, st)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, show.Tree)
}

func (h *Handler) handleUpdateFeatureType(w http.ResponseWriter, r *http.Request) {
	id, ftid := chi.URLParam(r, "id"), chi.URLParam(r, "ftid")
	var change api.FeatureTypeChange
	if !h.decode(w, r, &change) {
		return
	}
	if _, err := h.snapshot(r.Context(), id, false); err != nil {
		h.writeFailure(w, err)
		return
	}
	if err := client.UpdateFeatureType(r.Context(), h.doer, h.store, id, ftid, change); err != nil {
		h.writeFailure(w, err)
		return
	}
	show, err := h.show(r, h.store.Snapshot())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, show)
}
