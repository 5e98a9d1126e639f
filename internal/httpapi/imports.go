package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agentic-research/wfsproxy-manager/internal/catalog"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
)

type jobState string

const (
	jobRunning  jobState = "running"
	jobDone     jobState = "done"
	jobCanceled jobState = "canceled"
)

type importJob struct {
	ID      string
	Catalog string
	BaseID  string

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	state    jobState
	progress catalog.Progress
	started  time.Time
}

type jobView struct {
	ID       string           `json:"id"`
	Catalog  string           `json:"catalog"`
	BaseID   string           `json:"baseId"`
	State    jobState         `json:"state"`
	Started  time.Time        `json:"started"`
	Progress catalog.Progress `json:"progress"`
}

func (j *importJob) view() jobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	return jobView{
		ID:       j.ID,
		Catalog:  j.Catalog,
		BaseID:   j.BaseID,
		State:    j.state,
		Started:  j.started,
		Progress: j.progress,
	}
}

func (j *importJob) update(p catalog.Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = p
}

func (j *importJob) finish(p catalog.Progress, state jobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = p
	j.state = state
}

type parseRequest struct {
	URL string `json:"url"`
}

func (h *Handler) handleParseCatalog(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !h.decode(w, r, &req) {
		return
	}
	urls, err := catalog.Parse(r.Context(), h.doer, h.store, req.URL)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"url": req.URL, "baseId": catalog.BaseID(req.URL), "services": urls})
}

// importRequest starts an import. Without URLs the last parsed catalog is used.
type importRequest struct {
	URL  string   `json:"url"`
	URLs []string `json:"urls,omitempty"`
}

func (h *Handler) handleStartImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.URL) < catalog.MinURLLength {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "catalog url is required", map[string]any{"url": req.URL})
		return
	}
	urls := req.URLs
	if len(urls) == 0 {
		urls = store.Catalog(h.store.Snapshot())
	}
	if len(urls) == 0 {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "no services to import; parse the catalog first", nil)
		return
	}

	ctx, cancel := context.WithCancel(h.ctx)
	job := &importJob{
		ID:      uuid.NewString(),
		Catalog: req.URL,
		BaseID:  catalog.BaseID(req.URL),
		cancel:  cancel,
		done:    make(chan struct{}),
		state:   jobRunning,
		started: time.Now().UTC(),
		progress: catalog.Progress{
			Waiting: len(urls),
			Errors:  []catalog.ImportError{},
		},
	}
	h.mu.Lock()
	h.jobs[job.ID] = job
	h.mu.Unlock()

	im := &catalog.Importer{
		Doer:         h.doer,
		Store:        h.store,
		Log:          h.log.With().Str("job", job.ID).Logger(),
		RefreshDelay: h.refreshDelay,
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer close(job.done)
		defer cancel()
		go func() {
			<-ctx.Done()
			im.Stop()
		}()

		p, err := im.Import(ctx, job.BaseID, urls, job.update)
		if errors.Is(err, context.Canceled) {
			job.finish(p, jobCanceled)
			im.Wait()
			return
		}
		job.finish(p, jobDone)
		im.Wait()
	}()

	h.log.Info().Str("job", job.ID).Str("catalog", req.URL).Int("services", len(urls)).Msg("import started")
	h.writeJSON(w, http.StatusAccepted, job.view())
}

func (h *Handler) job(r *http.Request) (*importJob, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	j, ok := h.jobs[chi.URLParam(r, "job")]
	return j, ok
}

func (h *Handler) handleGetImport(w http.ResponseWriter, r *http.Request) {
	j, ok := h.job(r)
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "import job not found", map[string]any{"job": chi.URLParam(r, "job")})
		return
	}
	h.writeJSON(w, http.StatusOK, j.view())
}

// handleCancelImport stops an import and waits for the running request to settle.
func (h *Handler) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	j, ok := h.job(r)
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "import job not found", map[string]any{"job": chi.URLParam(r, "job")})
		return
	}
	j.cancel()
	select {
	case <-j.done:
	case <-r.Context().Done():
	}
	h.writeJSON(w, http.StatusOK, j.view())
}
