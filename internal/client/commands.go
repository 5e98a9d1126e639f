package client

import (
	"context"
	"fmt"

	"github.com/agentic-research/wfsproxy-manager/api"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
)

// FetchServiceConfig loads the configuration of a service. The raw body is
// returned alongside the decoded document for caching.
func FetchServiceConfig(ctx context.Context, d Doer, id string) (*api.ServiceConfig, []byte, error) {
	res := d.Do(ctx, GetServiceConfigQuery(id))
	var cfg api.ServiceConfig
	if err := res.Decode(&cfg); err != nil {
		return nil, nil, fmt.Errorf("fetch config of %s: %w", id, err)
	}
	if cfg.ID == "" {
		cfg.ID = id
	}
	return &cfg, res.Body, nil
}

// FetchServices lists the services known to the admin API.
func FetchServices(ctx context.Context, d Doer) ([]api.ServiceSummary, error) {
	res := d.Do(ctx, GetServicesQuery())
	var out []api.ServiceSummary
	if err := res.Decode(&out); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return out, nil
}

// Refresh refetches a service config into s.
func Refresh(ctx context.Context, d Doer, s *store.Store, id string) error {
	cfg, _, err := FetchServiceConfig(ctx, d, id)
	if err != nil {
		return err
	}
	s.Put(cfg)
	return nil
}

// Reconcile settles an optimistic update of service id. A failed result
// restores the service as it was in before; a successful one refetches the
// authoritative config.
func Reconcile(ctx context.Context, d Doer, s *store.Store, id string, before store.State, res Result) error {
	if !res.OK() {
		s.RestoreService(before, id)
		return res.Err
	}
	return Refresh(ctx, d, s, id)
}

// UpdateService applies patch locally, posts it and reconciles.
func UpdateService(ctx context.Context, d Doer, s *store.Store, patch api.ServicePatch) error {
	before := s.Snapshot()
	if err := s.PatchService(patch); err != nil {
		return err
	}
	return Reconcile(ctx, d, s, patch.ID, before, d.Do(ctx, UpdateServiceQuery(patch)))
}

// UpdateFeatureType applies change locally, posts it and reconciles.
func UpdateFeatureType(ctx context.Context, d Doer, s *store.Store, service, featureType string, change api.FeatureTypeChange) error {
	before := s.Snapshot()
	ft, ok := store.FeatureTypeByID(before, service, featureType)
	if !ok {
		return fmt.Errorf("feature type %s of %s: %w", featureType, service, store.ErrNotFound)
	}
	if err := s.ApplyFeatureTypeChange(service, featureType, change); err != nil {
		return err
	}
	q := UpdateFeatureTypeQuery(service, featureType, ft.QN(), change)
	return Reconcile(ctx, d, s, service, before, d.Do(ctx, q))
}
