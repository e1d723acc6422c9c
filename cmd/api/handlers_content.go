package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

// envelope is the request body wrapper every write endpoint accepts
type envelope[T any] struct {
	ID      string `json:"id"`
	Ver     string `json:"ver"`
	Request T      `json:"request" binding:"required"`
}

// bindRequest decodes the enveloped JSON body, answering 400 on failure
func bindRequest[T any](c *gin.Context, apiID string, into *T) bool {
	body := envelope[T]{}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, apiID, validationMessage(err))
		return false
	}
	*into = body.Request
	return true
}

type contentCreateRequest struct {
	Content struct {
		Name        string             `json:"name" binding:"required"`
		Transcripts models.Transcripts `json:"transcripts"`
	} `json:"content"`
}

func (api *API) createContent(c *gin.Context) {
	const apiID = "api.content.create"

	var req contentCreateRequest
	if !bindRequest(c, apiID, &req) {
		return
	}
	if err := validateTranscripts(req.Content.Transcripts); err != nil {
		badRequest(c, apiID, err.Error())
		return
	}

	content := &models.Content{
		Name:        req.Content.Name,
		Transcripts: req.Content.Transcripts,
	}
	if err := api.store.CreateContent(c.Request.Context(), content); err != nil {
		api.fail(c, apiID, err)
		return
	}

	respond(c, apiID, http.StatusOK, models.ContentUpdateResult{
		Identifier: content.Identifier,
		VersionKey: content.VersionKey,
	})
}

func (api *API) readContent(c *gin.Context) {
	const apiID = "api.content.read"
	ctx := c.Request.Context()
	id := c.Param("id")
	logger := api.logger.WithContentID(id)

	content, err := api.cache.GetContent(ctx, id)
	if err != nil {
		logger.WarnWithErr("Content cache read failed", err)
	}

	if content == nil {
		content, err = api.store.GetContent(ctx, id)
		if err != nil {
			api.fail(c, apiID, err)
			return
		}
		if err := api.cache.SetContent(ctx, content); err != nil {
			logger.WarnWithErr("Content cache write failed", err)
		}
	}

	respond(c, apiID, http.StatusOK, models.ReadContentResult{Content: *content})
}

func (api *API) updateContent(c *gin.Context) {
	const apiID = "api.content.update"
	ctx := c.Request.Context()
	id := c.Param("id")
	logger := api.logger.WithContentID(id)

	var req models.ContentUpdateRequest
	if !bindRequest(c, apiID, &req) {
		return
	}
	if err := validateTranscripts(req.Content.Transcripts); err != nil {
		badRequest(c, apiID, err.Error())
		return
	}

	// The version key check in the store decides conflicts; the lock only
	// serializes concurrent writers while the cache is reachable.
	lock, err := api.cache.AcquireLock(ctx, "content:"+id, contentLockTTL)
	switch {
	case err != nil:
		logger.WarnWithErr("Content lock unavailable", err)
	case lock == nil:
		c.JSON(http.StatusConflict,
			models.NewErrorResponse(apiID, models.ResponseCodeClientError, errCodeContentLocked, "Content is being updated"))
		return
	default:
		defer func() {
			if err := lock.Release(ctx); err != nil {
				logger.WarnWithErr("Failed to release content lock", err)
			}
		}()
	}

	updated, err := api.store.UpdateContentTranscripts(ctx, id, req.Content.VersionKey, req.Content.Transcripts)
	if err != nil {
		api.fail(c, apiID, err)
		return
	}

	if err := api.cache.DeleteContent(ctx, id); err != nil {
		logger.WarnWithErr("Failed to invalidate content cache", err)
	}

	event := &models.TranscriptEvent{
		Event:       models.WebhookEventTranscriptsUpdated,
		ContentID:   updated.Identifier,
		VersionKey:  updated.VersionKey,
		Transcripts: updated.Transcripts,
	}
	if err := api.publisher.PublishTranscriptEvent(ctx, event); err != nil {
		logger.ErrorWithErr("Failed to publish transcripts event", err)
	}
	if err := api.notifier.NotifyTranscriptsUpdated(ctx, event); err != nil {
		logger.ErrorWithErr("Failed to notify webhooks", err)
	}

	logger.WithField("version_key", updated.VersionKey).
		WithField("transcripts", len(updated.Transcripts)).
		Info("Content transcripts updated")

	respond(c, apiID, http.StatusOK, models.ContentUpdateResult{
		Identifier: updated.Identifier,
		VersionKey: updated.VersionKey,
	})
}

func validateTranscripts(transcripts models.Transcripts) error {
	seen := make(map[string]bool, len(transcripts))
	for i, t := range transcripts {
		if t.Identifier == "" {
			return fmt.Errorf("transcripts[%d]: identifier is required", i)
		}
		if !models.IsSupportedLanguage(t.Language) {
			return fmt.Errorf("transcripts[%d]: unsupported language %q", i, t.Language)
		}
		if seen[t.Language] {
			return fmt.Errorf("transcripts[%d]: duplicate language %q", i, t.Language)
		}
		seen[t.Language] = true
	}
	return nil
}
