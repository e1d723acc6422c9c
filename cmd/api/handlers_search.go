package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

type searchResult struct {
	Count   int                      `json:"count"`
	Content []map[string]interface{} `json:"content"`
}

func (api *API) compositeSearch(c *gin.Context) {
	const apiID = "api.composite.search"

	var req models.SearchRequest
	if !bindRequest(c, apiID, &req) {
		return
	}

	assets, err := api.store.SearchAssets(c.Request.Context(), req.Filters, req.Limit)
	if err != nil {
		api.fail(c, apiID, err)
		return
	}

	result := searchResult{Count: len(assets), Content: make([]map[string]interface{}, 0, len(assets))}
	for _, asset := range assets {
		projected, err := project(asset, req.Fields)
		if err != nil {
			api.fail(c, apiID, err)
			return
		}
		result.Content = append(result.Content, projected)
	}

	respond(c, apiID, http.StatusOK, result)
}

// project keeps the requested fields of an asset. The identifier is always
// kept, and so is artifactUrl on transcript assets.
func project(asset models.Asset, fields []string) (map[string]interface{}, error) {
	raw, err := json.Marshal(asset)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal asset: %w", err)
	}

	var all map[string]interface{}
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("failed to unmarshal asset: %w", err)
	}
	if len(fields) == 0 {
		return all, nil
	}

	keep := append([]string{"identifier"}, fields...)
	if asset.PrimaryCategory == models.PrimaryCategoryVideoTranscript {
		keep = append(keep, "artifactUrl")
	}

	out := make(map[string]interface{}, len(keep))
	for _, key := range keep {
		if v, ok := all[key]; ok {
			out[key] = v
		}
	}
	return out, nil
}
