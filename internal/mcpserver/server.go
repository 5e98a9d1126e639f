// Package mcpserver exposes the service store as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/agentic-research/wfsproxy-manager/internal/client"
	"github.com/agentic-research/wfsproxy-manager/internal/qname"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
	"github.com/agentic-research/wfsproxy-manager/internal/view"
)

const (
	serverName    = "wfsproxy-manager"
	serverVersion = "0.1.0"
)

// Tools serves read-only tools over a store. Services missing from the
// store are fetched through Doer when it is set.
type Tools struct {
	Doer  client.Doer
	Store *store.Store
	Extra qname.Namespaces
	Log   zerolog.Logger
}

// NewServer registers the tools on a new MCP server.
func NewServer(t *Tools) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("list_services",
		mcp.WithDescription("List the WFS proxy services with id, name, status and url."),
	), t.ListServices)

	s.AddTool(mcp.NewTool("list_feature_types",
		mcp.WithDescription("List the feature types of a service."),
		mcp.WithString("service", mcp.Required(), mcp.Description("Service id")),
	), t.ListFeatureTypes)

	s.AddTool(mcp.NewTool("feature_type_tree",
		mcp.WithDescription("Show the property tree of a feature type with display labels."),
		mcp.WithString("service", mcp.Required(), mcp.Description("Service id")),
		mcp.WithString("feature_type", mcp.Required(), mcp.Description("Feature type id")),
	), t.FeatureTypeTree)

	return s
}

// ServeStdio runs the MCP server on stdin and stdout until the client disconnects.
func ServeStdio(t *Tools) error {
	return server.ServeStdio(NewServer(t))
}

type serviceRow struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Status       string `json:"status,omitempty"`
	URL          string `json:"url,omitempty"`
	FeatureTypes int    `json:"featureTypes"`
}

// ListServices handles list_services.
func (t *Tools) ListServices(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var rows []serviceRow
	for _, svc := range store.Services(t.Store.Snapshot()) {
		rows = append(rows, serviceRow{
			ID:           svc.ID,
			Name:         svc.Name,
			Status:       svc.Status,
			URL:          svc.URL,
			FeatureTypes: len(svc.FeatureTypes),
		})
	}
	if rows == nil {
		rows = []serviceRow{}
	}
	return jsonResult(rows)
}

type featureTypeRow struct {
	ID          string `json:"id"`
	QN          string `json:"qn"`
	DisplayName string `json:"displayName,omitempty"`
	Properties  int    `json:"properties"`
}

// ListFeatureTypes handles list_feature_types.
func (t *Tools) ListFeatureTypes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("service")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := t.ensure(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rows := []featureTypeRow{}
	for _, ft := range store.FeatureTypes(st, id) {
		rows = append(rows, featureTypeRow{
			ID:          ft.ID,
			QN:          ft.QN(),
			DisplayName: ft.DisplayName,
			Properties:  len(ft.Mappings),
		})
	}
	return jsonResult(rows)
}

// FeatureTypeTree handles feature_type_tree.
func (t *Tools) FeatureTypeTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("service")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ftID, err := req.RequireString("feature_type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := t.ensure(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	show, err := view.BuildFeatureTypeShow(st.WithSelection(store.Selection{Service: id, FeatureType: ftID}), t.Extra)
	if errors.Is(err, store.ErrNoSelection) {
		return mcp.NewToolResultError(fmt.Sprintf("feature type %s of %s not found", ftID, id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(show.Tree)
}

// ensure returns a snapshot holding service id, fetching it if needed.
func (t *Tools) ensure(ctx context.Context, id string) (store.State, error) {
	st := t.Store.Snapshot()
	if _, ok := store.ServiceByID(st, id); ok {
		return st, nil
	}
	if t.Doer == nil {
		return st, fmt.Errorf("service %s: %w", id, store.ErrNotFound)
	}
	if err := client.Refresh(ctx, t.Doer, t.Store, id); err != nil {
		t.Log.Warn().Err(err).Str("service", id).Msg("fetch service for tool call")
		return st, err
	}
	return t.Store.Snapshot(), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
