// Package catalog resolves CSW catalogs into WFS URLs and registers them as
// services.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/wfsproxy-manager/internal/client"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
)

// MinURLLength is the shortest catalog URL worth sending.
const MinURLLength = 11

const maxBaseIDLength = 30

var ErrURLTooShort = errors.New("catalog url too short")

var idReplacer = strings.NewReplacer(".", "_", "/", "_", "-", "_")

// BaseID derives the service id prefix from a catalog URL. The scheme and
// query are dropped, long results are cut at the last '/' within the first
// 30 characters, and separators become underscores.
func BaseID(catalogURL string) string {
	start := strings.Index(catalogURL, "/") + 2
	end := len(catalogURL)
	if q := strings.Index(catalogURL, "?"); q > -1 {
		end = q
	}
	start = min(start, len(catalogURL))
	if start > end {
		start, end = end, start
	}
	id := catalogURL[start:end]

	if len(id) > maxBaseIDLength {
		cut := strings.LastIndex(id[:maxBaseIDLength+1], "/")
		if cut < 0 {
			cut = 0
		}
		id = id[:cut]
	}
	return idReplacer.Replace(id)
}

// Parse asks the backend for the WFS URLs listed in a catalog and stores them
// as the current catalog.
func Parse(ctx context.Context, d client.Doer, s *store.Store, catalogURL string) ([]string, error) {
	if len(catalogURL) < MinURLLength {
		return nil, fmt.Errorf("%q: %w", catalogURL, ErrURLTooShort)
	}
	var urls []string
	if err := d.Do(ctx, client.ParseCatalogQuery(catalogURL)).Decode(&urls); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", catalogURL, err)
	}
	if urls == nil {
		urls = []string{}
	}
	s.SetCatalog(urls)
	return urls, nil
}
