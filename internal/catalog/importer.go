package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentic-research/wfsproxy-manager/api"
	"github.com/agentic-research/wfsproxy-manager/internal/client"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
)

// ServiceType is the type of every service added from a catalog.
const ServiceType = "ldproxy"

// DefaultRefreshDelay is how long after a successful add the service is refetched.
const DefaultRefreshDelay = time.Second

// ImportError describes one service that could not be added.
type ImportError struct {
	ID      string   `json:"id"`
	URL     string   `json:"url"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// Progress counts the outcome of an import.
type Progress struct {
	Waiting   int           `json:"waiting"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Errors    []ImportError `json:"errors"`
}

// Done reports whether no service is waiting anymore.
func (p Progress) Done() bool {
	return p.Waiting == 0
}

func (p Progress) clone() Progress {
	p.Errors = slices.Clone(p.Errors)
	return p
}

// Importer adds catalog URLs as services, one after another.
type Importer struct {
	Doer         client.Doer
	Store        *store.Store
	Log          zerolog.Logger
	RefreshDelay time.Duration

	wg     sync.WaitGroup
	mu     sync.Mutex
	timers []*time.Timer
}

// Import registers each URL as service baseID_N, N counting from 1. It stops
// early when ctx is done; services not attempted stay waiting. onProgress, if
// set, is called after every attempt.
func (im *Importer) Import(ctx context.Context, baseID string, urls []string, onProgress func(Progress)) (Progress, error) {
	p := Progress{Waiting: len(urls), Errors: []ImportError{}}
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			im.Stop()
			return p, fmt.Errorf("import canceled after %d of %d: %w", i, len(urls), err)
		}

		svc := api.NewService{
			ID:             fmt.Sprintf("%s_%d", baseID, i+1),
			Type:           ServiceType,
			DisableMapping: true,
			URL:            u,
		}
		res := im.Doer.Do(ctx, client.AddServiceQuery(svc))
		p.Waiting--
		if res.OK() {
			p.Succeeded++
			im.Log.Info().Str("service", svc.ID).Str("url", u).Msg("service added")
			im.scheduleRefresh(ctx, svc.ID)
		} else {
			p.Failed++
			p.Errors = append(p.Errors, importError(svc, res.Err))
			im.Log.Warn().Err(res.Err).Str("service", svc.ID).Str("url", u).Msg("add service failed")
		}
		if onProgress != nil {
			onProgress(p.clone())
		}
	}
	return p, nil
}

func importError(svc api.NewService, err error) ImportError {
	e := ImportError{ID: svc.ID, URL: svc.URL}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		e.Message = apiErr.Message
		e.Details = apiErr.Details
	}
	if e.Message == "" && err != nil {
		e.Message = err.Error()
	}
	return e
}

func (im *Importer) scheduleRefresh(ctx context.Context, id string) {
	delay := im.RefreshDelay
	if delay <= 0 {
		delay = DefaultRefreshDelay
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	im.wg.Add(1)
	im.timers = append(im.timers, time.AfterFunc(delay, func() {
		defer im.wg.Done()
		im.refresh(ctx, id)
	}))
}

func (im *Importer) refresh(ctx context.Context, id string) {
	var cfg api.ServiceConfig
	if err := im.Doer.Do(ctx, client.GetServiceQuery(id)).Decode(&cfg); err != nil {
		im.Log.Warn().Err(err).Str("service", id).Msg("refresh added service")
		return
	}
	if cfg.ID == "" {
		cfg.ID = id
	}
	im.Store.Put(&cfg)
}

// Stop cancels refreshes that have not started yet.
func (im *Importer) Stop() {
	im.mu.Lock()
	defer im.mu.Unlock()
	for _, t := range im.timers {
		if t.Stop() {
			im.wg.Done()
		}
	}
	im.timers = nil
}

// Wait blocks until every scheduled refresh has finished or been stopped.
func (im *Importer) Wait() {
	im.wg.Wait()
}
