package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

const (
	webhookColumns  = `id, owner_id, url, events, secret, is_active, created_at, updated_at`
	deliveryColumns = `id, webhook_id, event, payload, status, status_code, response_body, retry_count, next_retry_at, created_at, completed_at`
)

// webhookEventFields maps event names to keys of the events JSONB column
var webhookEventFields = map[string]string{
	models.WebhookEventTranscriptsUpdated: "transcripts_updated",
	models.WebhookEventAssetUploaded:      "asset_uploaded",
}

// CreateWebhook stores a subscription, assigning an id when it has none
func (r *Repository) CreateWebhook(ctx context.Context, webhook *models.Webhook) (err error) {
	defer r.track("create_webhook", &err)()

	if webhook.ID == "" {
		webhook.ID = uuid.NewString()
	}

	err = r.db.Pool.QueryRow(ctx, `
		INSERT INTO webhooks (id, owner_id, url, events, secret, is_active)
		VALUES (@id, @owner, @url, @events, @secret, @active)
		RETURNING created_at, updated_at`,
		pgx.NamedArgs{
			"id":     webhook.ID,
			"owner":  webhook.OwnerID,
			"url":    webhook.URL,
			"events": webhook.Events,
			"secret": webhook.Secret,
			"active": webhook.IsActive,
		},
	).Scan(&webhook.CreatedAt, &webhook.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert webhook %s: %w", webhook.ID, err)
	}
	return nil
}

// GetWebhooksByEvent lists active subscriptions that include event
func (r *Repository) GetWebhooksByEvent(ctx context.Context, event string) (_ []*models.Webhook, err error) {
	defer r.track("get_webhooks_by_event", &err)()

	field, ok := webhookEventFields[event]
	if !ok {
		return nil, fmt.Errorf("unknown webhook event %q", event)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks
		WHERE is_active AND COALESCE((events->>$1)::boolean, false)`, field)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s subscribers: %w", event, err)
	}
	return collect[models.Webhook](rows)
}

// GetOwnerWebhooks lists an owner's subscriptions, newest first
func (r *Repository) GetOwnerWebhooks(ctx context.Context, ownerID string) (_ []*models.Webhook, err error) {
	defer r.track("get_owner_webhooks", &err)()

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks
		WHERE owner_id = $1
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhooks of %s: %w", ownerID, err)
	}
	return collect[models.Webhook](rows)
}

func deliveryArgs(d *models.WebhookDelivery) pgx.NamedArgs {
	return pgx.NamedArgs{
		"id":        d.ID,
		"webhook":   d.WebhookID,
		"event":     d.Event,
		"payload":   d.Payload,
		"status":    d.Status,
		"code":      d.StatusCode,
		"body":      d.ResponseBody,
		"retries":   d.RetryCount,
		"next":      d.NextRetryAt,
		"completed": d.CompletedAt,
	}
}

// CreateDelivery records a new delivery attempt
func (r *Repository) CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) (err error) {
	defer r.track("create_delivery", &err)()

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO webhook_deliveries
			(id, webhook_id, event, payload, status, status_code, response_body, retry_count, next_retry_at, completed_at)
		VALUES (@id, @webhook, @event, @payload, @status, @code, @body, @retries, @next, @completed)`,
		deliveryArgs(delivery))
	if err != nil {
		return fmt.Errorf("failed to insert delivery %s: %w", delivery.ID, err)
	}
	return nil
}

// UpdateDelivery saves the outcome of the latest attempt
func (r *Repository) UpdateDelivery(ctx context.Context, delivery *models.WebhookDelivery) (err error) {
	defer r.track("update_delivery", &err)()

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE webhook_deliveries
		SET status = @status, status_code = @code, response_body = @body,
		    retry_count = @retries, next_retry_at = @next, completed_at = @completed
		WHERE id = @id`,
		deliveryArgs(delivery))
	if err != nil {
		return fmt.Errorf("failed to update delivery %s: %w", delivery.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPendingDeliveries lists pending deliveries whose retry time has come,
// oldest first
func (r *Repository) GetPendingDeliveries(ctx context.Context, limit int) (_ []*models.WebhookDelivery, err error) {
	defer r.track("get_pending_deliveries", &err)()

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+deliveryColumns+`
		FROM webhook_deliveries
		WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= now())
		ORDER BY created_at
		LIMIT $2`, models.WebhookDeliveryStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending deliveries: %w", err)
	}
	return collect[models.WebhookDelivery](rows)
}

// collect scans rows into T by db tag
func collect[T any](rows pgx.Rows) ([]*T, error) {
	out, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("failed to scan rows: %w", err)
	}
	return out, nil
}
