package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/sourcing"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/storage"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

func validateAssetFields(fields models.AssetFields) error {
	if fields.PrimaryCategory != models.PrimaryCategoryVideoTranscript {
		return nil
	}
	for _, lang := range fields.Language {
		if !models.IsSupportedLanguage(lang) {
			return fmt.Errorf("unsupported language %q", lang)
		}
	}
	return nil
}

func (api *API) createAsset(c *gin.Context) {
	const apiID = "api.asset.create"

	var req models.AssetRequest
	if !bindRequest(c, apiID, &req) {
		return
	}
	if err := validateAssetFields(req.Asset); err != nil {
		badRequest(c, apiID, err.Error())
		return
	}

	asset := &models.Asset{
		Name:            req.Asset.Name,
		MimeType:        req.Asset.MimeType,
		PrimaryCategory: req.Asset.PrimaryCategory,
		MediaType:       req.Asset.MediaType,
		Language:        req.Asset.Language,
	}
	if err := api.store.CreateAsset(c.Request.Context(), asset); err != nil {
		api.fail(c, apiID, err)
		return
	}

	api.logger.WithAssetID(asset.Identifier).Info("Asset created")
	respond(c, apiID, http.StatusOK, models.AssetResult{
		Identifier: asset.Identifier,
		VersionKey: asset.VersionKey,
	})
}

// getAsset reads an asset through the cache
func (api *API) getAsset(ctx context.Context, id string) (*models.Asset, error) {
	logger := api.logger.WithAssetID(id)

	asset, err := api.cache.GetAsset(ctx, id)
	if err != nil {
		logger.WarnWithErr("Asset cache read failed", err)
	}
	if asset != nil {
		return asset, nil
	}

	asset, err = api.store.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := api.cache.SetAsset(ctx, asset); err != nil {
		logger.WarnWithErr("Asset cache write failed", err)
	}
	return asset, nil
}

func (api *API) readAsset(c *gin.Context) {
	const apiID = "api.asset.read"

	asset, err := api.getAsset(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.fail(c, apiID, err)
		return
	}

	respond(c, apiID, http.StatusOK, gin.H{"asset": asset})
}

func (api *API) updateAsset(c *gin.Context) {
	const apiID = "api.asset.update"
	ctx := c.Request.Context()
	id := c.Param("id")

	var req models.AssetRequest
	if !bindRequest(c, apiID, &req) {
		return
	}
	if err := validateAssetFields(req.Asset); err != nil {
		badRequest(c, apiID, err.Error())
		return
	}

	asset, err := api.store.UpdateAsset(ctx, id, req.Asset)
	if err != nil {
		api.fail(c, apiID, err)
		return
	}

	if err := api.cache.DeleteAsset(ctx, id); err != nil {
		api.logger.WithAssetID(id).WarnWithErr("Failed to invalidate asset cache", err)
	}

	respond(c, apiID, http.StatusOK, models.AssetResult{
		Identifier:  asset.Identifier,
		VersionKey:  asset.VersionKey,
		ArtifactURL: asset.ArtifactURL,
	})
}

func (api *API) uploadURL(c *gin.Context) {
	const apiID = "api.asset.upload.url"
	ctx := c.Request.Context()
	id := c.Param("id")

	var req models.PreSignedURLRequest
	if !bindRequest(c, apiID, &req) {
		return
	}

	if _, err := api.getAsset(ctx, id); err != nil {
		api.fail(c, apiID, err)
		return
	}

	url, expiry, err := api.blobs.PresignedPutURL(ctx, storage.ObjectKey(id, req.Content.FileName))
	if err != nil {
		api.fail(c, apiID, err)
		return
	}

	respond(c, apiID, http.StatusOK, models.PreSignedURLResult{
		Identifier:   id,
		PreSignedURL: url,
		URLExpiry:    expiry.UTC().Format(time.RFC3339),
	})
}

type uploadForm struct {
	FileURL  string `form:"fileUrl" binding:"required,url"`
	MimeType string `form:"mimeType"`
}

func (api *API) uploadAsset(c *gin.Context) {
	const apiID = "api.asset.upload"
	ctx := c.Request.Context()
	id := c.Param("id")
	logger := api.logger.WithAssetID(id)

	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, apiID, validationMessage(err))
		return
	}

	previous, err := api.store.GetAsset(ctx, id)
	if err != nil {
		api.fail(c, apiID, err)
		return
	}

	// Blob uploads happen client side and may have failed; finalizing still
	// records the URL so the asset can be re-uploaded later.
	object, managed := api.blobs.ObjectName(form.FileURL)
	if managed {
		size, err := api.blobs.Stat(ctx, object)
		switch {
		case errors.Is(err, storage.ErrObjectNotFound):
			logger.WithField("object", object).Warn("Finalizing asset without uploaded object")
		case err != nil:
			logger.WarnWithErr("Failed to stat uploaded object", err)
		default:
			logger.WithField("size", size).Debug("Uploaded object found")
		}
	}

	mimeType := form.MimeType
	if mimeType == "" {
		mimeType = storage.ContentType(sourcing.StripQuery(form.FileURL))
	}

	asset, err := api.store.FinalizeAsset(ctx, id, form.FileURL, mimeType)
	if err != nil {
		api.fail(c, apiID, err)
		return
	}

	// a replaced file under another name would otherwise stay in the bucket
	if old, ok := api.blobs.ObjectName(previous.ArtifactURL); ok && (!managed || old != object) {
		if err := api.blobs.Delete(ctx, old); err != nil {
			logger.WithField("object", old).WarnWithErr("Failed to delete replaced object", err)
		}
	}

	if err := api.cache.DeleteAsset(ctx, id); err != nil {
		logger.WarnWithErr("Failed to invalidate asset cache", err)
	}
	if err := api.notifier.NotifyAssetUploaded(ctx, asset); err != nil {
		logger.ErrorWithErr("Failed to notify webhooks", err)
	}

	respond(c, apiID, http.StatusOK, models.AssetResult{
		Identifier:  asset.Identifier,
		VersionKey:  asset.VersionKey,
		ArtifactURL: asset.ArtifactURL,
	})
}

// downloadURL signs a GET for the uploaded file of an asset. Files kept
// outside the bucket are returned as recorded.
func (api *API) downloadURL(c *gin.Context) {
	const apiID = "api.asset.download"
	ctx := c.Request.Context()
	id := c.Param("id")

	asset, err := api.getAsset(ctx, id)
	if err != nil {
		api.fail(c, apiID, err)
		return
	}
	if asset.ArtifactURL == "" {
		c.JSON(http.StatusNotFound, models.NewErrorResponse(apiID, models.ResponseCodeResourceNotFound,
			sourcing.ErrCodeNotFound, fmt.Sprintf("asset %s has no uploaded file", id)))
		return
	}

	result := models.DownloadURLResult{Identifier: id, DownloadURL: asset.ArtifactURL}
	if object, ok := api.blobs.ObjectName(asset.ArtifactURL); ok {
		url, expiry, err := api.blobs.PresignedGetURL(ctx, object)
		if err != nil {
			api.fail(c, apiID, err)
			return
		}
		result.DownloadURL = url
		result.URLExpiry = expiry.UTC().Format(time.RFC3339)
	}

	respond(c, apiID, http.StatusOK, result)
}
