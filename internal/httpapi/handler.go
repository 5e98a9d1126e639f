// Package httpapi serves the manager as a JSON HTTP API.
package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/agentic-research/wfsproxy-manager/internal/client"
	"github.com/agentic-research/wfsproxy-manager/internal/mappingedit"
	"github.com/agentic-research/wfsproxy-manager/internal/qname"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
)

// Options configures a Handler.
type Options struct {
	Doer  client.Doer
	Store *store.Store
	// Extra namespace prefixes merged below each service's own table.
	Extra        qname.Namespaces
	Log          zerolog.Logger
	Debounce     time.Duration
	RefreshDelay time.Duration
	// PushTimeout bounds each debounced mapping update.
	PushTimeout time.Duration
}

// Handler serves the API. Close must be called to stop background work.
type Handler struct {
	doer         client.Doer
	store        *store.Store
	extra        qname.Namespaces
	log          zerolog.Logger
	refreshDelay time.Duration
	pushTimeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	edits *mappingedit.Debouncer[pendingEdit]

	mu   sync.Mutex
	jobs map[string]*importJob
	wg   sync.WaitGroup
}

// New creates a Handler.
func New(opts Options) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		doer:         opts.Doer,
		store:        opts.Store,
		extra:        opts.Extra,
		log:          opts.Log,
		refreshDelay: opts.RefreshDelay,
		pushTimeout:  opts.PushTimeout,
		ctx:          ctx,
		cancel:       cancel,
		jobs:         make(map[string]*importJob),
	}
	if h.pushTimeout <= 0 {
		h.pushTimeout = 30 * time.Second
	}
	h.edits = mappingedit.NewDebouncer(opts.Debounce, h.pushEdit)
	return h
}

// Routes returns the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Route("/services", func(r chi.Router) {
		r.Get("/", h.handleListServices)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetService)
			r.Post("/mapping", h.handleEnableMapping)
			r.Route("/featureTypes/{ftid}", func(r chi.Router) {
				r.Get("/", h.handleGetFeatureType)
				r.Post("/", h.handleUpdateFeatureType)
				r.Get("/tree", h.handleGetTree)
				r.Post("/fields", h.handleEditField)
			})
		})
	})
	r.Route("/catalog", func(r chi.Router) {
		r.Post("/parse", h.handleParseCatalog)
		r.Post("/imports", h.handleStartImport)
		r.Get("/imports/{job}", h.handleGetImport)
		r.Delete("/imports/{job}", h.handleCancelImport)
	})
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

// Close cancels running imports, pushes pending edits and waits for
// background work to finish.
func (h *Handler) Close() {
	h.cancel()
	h.wg.Wait()
	h.edits.Flush()
	h.edits.Stop()
}
