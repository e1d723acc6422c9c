package transcript

import (
	"context"
	"fmt"

	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

// FetchCatalog looks up the version keys of the assets behind existing
// transcripts. With no transcripts it only enables commit. A failed lookup
// leaves the catalog empty and commit enabled; the error is returned for
// the caller to log.
func (e *Editor) FetchCatalog(ctx context.Context, transcripts models.Transcripts) error {
	ids := transcripts.Identifiers()
	if len(ids) == 0 {
		e.finishCatalog(nil)
		return nil
	}

	result, err := e.api.CompositeSearch(ctx, models.NewTranscriptSearchRequest(ids))
	if err != nil {
		e.logger.ErrorWithErr("Something went wrong while fetching transcript assets", err)
		e.finishCatalog(nil)
		return fmt.Errorf("%w: %w", ErrCatalogLookup, err)
	}
	if result == nil {
		result = &models.SearchResult{}
	}

	e.finishCatalog(result.Content)
	e.logger.WithField("assets", len(result.Content)).Debug("Transcript asset catalog loaded")
	return nil
}

func (e *Editor) finishCatalog(assets []models.Asset) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.catalog = make(map[string]models.Asset, len(assets))
	for _, asset := range assets {
		e.catalog[asset.Identifier] = asset
	}
	for _, entry := range e.entries {
		if asset, ok := e.catalog[entry.Identifier]; ok && entry.Identifier != "" {
			entry.VersionKey = asset.VersionKey
		}
	}
	e.loading = false
	if !e.closed {
		e.doneEnabled = true
	}
}

// CatalogAsset returns the catalog record for an asset identifier
func (e *Editor) CatalogAsset(identifier string) (models.Asset, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	asset, ok := e.catalog[identifier]
	return asset, ok
}
