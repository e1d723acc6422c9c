package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/cache"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/database"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/logging"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/metrics"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/middleware"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/sourcing"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

// Store persists contents, assets and webhook subscriptions
type Store interface {
	CreateContent(ctx context.Context, content *models.Content) error
	GetContent(ctx context.Context, id string) (*models.Content, error)
	UpdateContentTranscripts(ctx context.Context, id, versionKey string, transcripts models.Transcripts) (*models.Content, error)
	CreateAsset(ctx context.Context, asset *models.Asset) error
	GetAsset(ctx context.Context, id string) (*models.Asset, error)
	UpdateAsset(ctx context.Context, id string, fields models.AssetFields) (*models.Asset, error)
	FinalizeAsset(ctx context.Context, id, artifactURL, mimeType string) (*models.Asset, error)
	SearchAssets(ctx context.Context, filters models.SearchFilters, limit int) ([]models.Asset, error)
	CreateWebhook(ctx context.Context, webhook *models.Webhook) error
	GetOwnerWebhooks(ctx context.Context, ownerID string) ([]*models.Webhook, error)
}

// BlobStore issues upload and download URLs and manages uploaded objects
type BlobStore interface {
	PresignedPutURL(ctx context.Context, objectName string) (string, time.Time, error)
	PresignedGetURL(ctx context.Context, objectName string) (string, time.Time, error)
	ObjectName(objectURL string) (string, bool)
	Stat(ctx context.Context, objectName string) (int64, error)
	Delete(ctx context.Context, objectName string) error
}

// Cache is the read-through cache in front of the store
type Cache interface {
	GetContent(ctx context.Context, id string) (*models.Content, error)
	SetContent(ctx context.Context, content *models.Content) error
	DeleteContent(ctx context.Context, id string) error
	GetAsset(ctx context.Context, id string) (*models.Asset, error)
	SetAsset(ctx context.Context, asset *models.Asset) error
	DeleteAsset(ctx context.Context, id string) error
	AcquireLock(ctx context.Context, resource string, ttl time.Duration) (*cache.Lock, error)
}

// Publisher announces committed transcript lists
type Publisher interface {
	PublishTranscriptEvent(ctx context.Context, event *models.TranscriptEvent) error
}

// Notifier fans events out to webhook subscribers
type Notifier interface {
	NotifyTranscriptsUpdated(ctx context.Context, event *models.TranscriptEvent) error
	NotifyAssetUploaded(ctx context.Context, asset *models.Asset) error
}

// API serves the content, asset and search endpoints
type API struct {
	store     Store
	blobs     BlobStore
	cache     Cache
	publisher Publisher
	notifier  Notifier
	logger    *logging.Logger
	checks    map[string]func(context.Context) error
}

const (
	errCodeContentLocked = "ERR_CONTENT_LOCKED"
	contentLockTTL       = 10 * time.Second
)

func setupRouter(api *API, limiter *middleware.RateLimiter) *gin.Engine {
	registerValidators()

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Tracing(), middleware.Logger(api.logger))

	router.GET("/health", api.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v := router.Group("/api")
	v.Use(middleware.JWTAuth(), middleware.RateLimit(limiter))
	{
		content := v.Group("/content/v3")
		content.POST("/create", api.createContent)
		content.GET("/read/:id", api.readContent)
		content.PATCH("/update/:id", api.updateContent)

		v.POST("/composite/v3/search", api.compositeSearch)

		asset := v.Group("/asset/v1")
		asset.POST("/create", api.createAsset)
		asset.GET("/read/:id", api.readAsset)
		asset.PATCH("/update/:id", api.updateAsset)
		asset.POST("/upload/url/:id", api.uploadURL)
		asset.POST("/upload/:id", api.uploadAsset)
		asset.GET("/download/:id", api.downloadURL)

		hooks := v.Group("/webhooks/v1")
		hooks.POST("/register", api.registerWebhook)
		hooks.GET("/list", api.listWebhooks)
	}

	return router
}

func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := gin.H{}
	healthy := true
	for name, check := range api.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": status})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "checks": status})
}

func respond(c *gin.Context, apiID string, status int, result interface{}) {
	c.JSON(status, models.NewResponse(apiID, result))
}

func badRequest(c *gin.Context, apiID, msg string) {
	c.JSON(http.StatusBadRequest,
		models.NewErrorResponse(apiID, models.ResponseCodeClientError, sourcing.ErrCodeInvalidRequest, msg))
}

// fail maps store errors onto the response envelope
func (api *API) fail(c *gin.Context, apiID string, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound,
			models.NewErrorResponse(apiID, models.ResponseCodeResourceNotFound, sourcing.ErrCodeNotFound, err.Error()))
	case errors.Is(err, database.ErrStaleVersionKey):
		c.JSON(http.StatusBadRequest,
			models.NewErrorResponse(apiID, models.ResponseCodeClientError, sourcing.ErrCodeStaleVersionKey,
				"Invalid version key, the record was modified by another request"))
	default:
		api.logger.WithField("api_id", apiID).ErrorWithErr("Request failed", err)
		metrics.RecordError("api", apiID)
		c.JSON(http.StatusInternalServerError,
			models.NewErrorResponse(apiID, models.ResponseCodeServerError, sourcing.ErrCodeInternal, "Internal server error"))
	}
}
