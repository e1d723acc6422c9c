package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/middleware"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

type webhookRequest struct {
	URL    string   `json:"url" binding:"required,url"`
	Events []string `json:"events" binding:"required,min=1,dive,webhook_event"`
	Secret string   `json:"secret"`
}

func parseEvents(names []string) (models.WebhookEvents, error) {
	var events models.WebhookEvents
	for _, name := range names {
		switch name {
		case models.WebhookEventTranscriptsUpdated:
			events.TranscriptsUpdated = true
		case models.WebhookEventAssetUploaded:
			events.AssetUploaded = true
		default:
			return events, fmt.Errorf("unknown event %q", name)
		}
	}
	return events, nil
}

func (api *API) registerWebhook(c *gin.Context) {
	const apiID = "api.webhook.register"

	var req webhookRequest
	if !bindRequest(c, apiID, &req) {
		return
	}

	events, err := parseEvents(req.Events)
	if err != nil {
		badRequest(c, apiID, err.Error())
		return
	}

	owner, _ := middleware.GetUserID(c)
	hook := &models.Webhook{
		OwnerID:  owner,
		URL:      req.URL,
		Events:   events,
		Secret:   req.Secret,
		IsActive: true,
	}
	if err := api.store.CreateWebhook(c.Request.Context(), hook); err != nil {
		api.fail(c, apiID, err)
		return
	}

	hook.Secret = ""
	respond(c, apiID, http.StatusOK, gin.H{"webhook": hook})
}

func (api *API) listWebhooks(c *gin.Context) {
	const apiID = "api.webhook.list"

	owner, _ := middleware.GetUserID(c)
	hooks, err := api.store.GetOwnerWebhooks(c.Request.Context(), owner)
	if err != nil {
		api.fail(c, apiID, err)
		return
	}

	for _, h := range hooks {
		h.Secret = ""
	}
	respond(c, apiID, http.StatusOK, gin.H{"count": len(hooks), "webhooks": hooks})
}
