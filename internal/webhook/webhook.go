package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/logging"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/metrics"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	EventHeader     = "X-Webhook-Event"
	DeliveryHeader  = "X-Webhook-Delivery"

	userAgent       = "Sourcing-Webhook/1.0"
	maxResponseBody = 64 << 10
	retryBatchSize  = 100
	sendTimeout     = 30 * time.Second

	// lease keeps an in-flight delivery out of the retry batch until its
	// send has either settled or timed out
	lease = sendTimeout + 30*time.Second
)

// retrySchedule is indexed by the number of failed attempts so far
var retrySchedule = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	4 * time.Hour,
	12 * time.Hour,
}

// Repository is the delivery log the service reads and writes
type Repository interface {
	GetWebhooksByEvent(ctx context.Context, event string) ([]*models.Webhook, error)
	CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
	UpdateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
	GetPendingDeliveries(ctx context.Context, limit int) ([]*models.WebhookDelivery, error)
}

// Service posts signed content events to subscriber URLs. Every attempt is
// recorded as a delivery; failures are retried on a fixed schedule by
// RetryWorker.
type Service struct {
	client *http.Client
	repo   Repository
	logger *logging.Logger
	wg     sync.WaitGroup
}

func NewService(repo Repository, logger *logging.Logger) *Service {
	return &Service{
		client: &http.Client{Timeout: sendTimeout},
		repo:   repo,
		logger: logger,
	}
}

// NotifyTranscriptsUpdated announces a committed transcript list
func (s *Service) NotifyTranscriptsUpdated(ctx context.Context, event *models.TranscriptEvent) error {
	return s.Notify(ctx, models.WebhookEventTranscriptsUpdated, event)
}

// NotifyAssetUploaded announces a finalized transcript asset
func (s *Service) NotifyAssetUploaded(ctx context.Context, asset *models.Asset) error {
	return s.Notify(ctx, models.WebhookEventAssetUploaded, asset)
}

// Notify records one pending delivery per active subscriber of event and
// sends them in the background.
func (s *Service) Notify(ctx context.Context, event string, data interface{}) error {
	hooks, err := s.repo.GetWebhooksByEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to list %s subscribers: %w", event, err)
	}
	hooks = lo.Filter(hooks, func(h *models.Webhook, _ int) bool {
		return h.IsActive && h.Events.Has(event)
	})
	if len(hooks) == 0 {
		return nil
	}

	payload, err := json.Marshal(models.WebhookEvent{Event: event, Timestamp: time.Now(), Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", event, err)
	}

	for _, hook := range hooks {
		now := time.Now()
		leased := now.Add(lease)
		delivery := &models.WebhookDelivery{
			ID:          uuid.NewString(),
			WebhookID:   hook.ID,
			Event:       event,
			Payload:     string(payload),
			Status:      models.WebhookDeliveryStatusPending,
			NextRetryAt: &leased,
			CreatedAt:   now,
		}
		if err := s.repo.CreateDelivery(ctx, delivery); err != nil {
			s.logger.WithField("webhook_id", hook.ID).ErrorWithErr("Failed to record webhook delivery", err)
			continue
		}
		s.dispatch(hook, delivery)
	}
	return nil
}

// Wait blocks until in-flight deliveries finish
func (s *Service) Wait() {
	s.wg.Wait()
}

// dispatch sends outside the request context, which ends with the response
func (s *Service) dispatch(hook *models.Webhook, delivery *models.WebhookDelivery) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deliver(context.Background(), hook, delivery)
	}()
}

// attempt is what one POST to a subscriber produced
type attempt struct {
	statusCode int
	body       string
	err        error
}

func (a attempt) ok() bool {
	return a.err == nil && a.statusCode >= 200 && a.statusCode < 300
}

func (s *Service) post(ctx context.Context, hook *models.Webhook, delivery *models.WebhookDelivery) attempt {
	payload := []byte(delivery.Payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		return attempt{err: fmt.Errorf("bad subscriber url: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(EventHeader, delivery.Event)
	req.Header.Set(DeliveryHeader, delivery.ID)
	if hook.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(payload, hook.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return attempt{err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return attempt{statusCode: resp.StatusCode, body: string(body)}
}

// settle folds the outcome of an attempt into delivery. A failure either
// schedules the next retry or, once the schedule is exhausted, gives up.
func settle(delivery *models.WebhookDelivery, a attempt, now time.Time) {
	delivery.StatusCode = a.statusCode
	delivery.ResponseBody = a.body
	if a.err != nil {
		delivery.ResponseBody = a.err.Error()
	}

	if a.ok() {
		delivery.Status = models.WebhookDeliveryStatusDelivered
		delivery.NextRetryAt = nil
		delivery.CompletedAt = &now
		return
	}

	delivery.RetryCount++
	if delivery.RetryCount > len(retrySchedule) {
		delivery.Status = models.WebhookDeliveryStatusFailed
		delivery.NextRetryAt = nil
		delivery.CompletedAt = &now
		return
	}
	next := now.Add(retrySchedule[delivery.RetryCount-1])
	delivery.Status = models.WebhookDeliveryStatusPending
	delivery.NextRetryAt = &next
}

func (s *Service) deliver(ctx context.Context, hook *models.Webhook, delivery *models.WebhookDelivery) {
	a := s.post(ctx, hook, delivery)
	settle(delivery, a, time.Now())

	logger := s.logger.WithFields(map[string]interface{}{
		"delivery_id": delivery.ID,
		"webhook_id":  hook.ID,
		"status_code": a.statusCode,
		"retry_count": delivery.RetryCount,
	})
	if !a.ok() {
		metrics.RecordError("webhook", "delivery_failed")
		logger.WithError(a.err).Warn("Webhook delivery failed")
	}

	if err := s.repo.UpdateDelivery(ctx, delivery); err != nil {
		logger.ErrorWithErr("Failed to update webhook delivery", err)
	}
}

// Sign returns the signature header value: hex HMAC-SHA256 of payload
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// RetryWorker resends due deliveries every interval until ctx is done
func (s *Service) RetryWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.retryPendingDeliveries(ctx)
		}
	}
}

func (s *Service) retryPendingDeliveries(ctx context.Context) {
	pending, err := s.repo.GetPendingDeliveries(ctx, retryBatchSize)
	if err != nil {
		s.logger.ErrorWithErr("Failed to load pending webhook deliveries", err)
		return
	}

	now := time.Now()
	due := lo.Filter(pending, func(d *models.WebhookDelivery, _ int) bool {
		return d.NextRetryAt == nil || !now.Before(*d.NextRetryAt)
	})

	// subscribers are looked up once per event
	subscribers := map[string]map[string]*models.Webhook{}
	for _, delivery := range due {
		byID, seen := subscribers[delivery.Event]
		if !seen {
			hooks, err := s.repo.GetWebhooksByEvent(ctx, delivery.Event)
			if err != nil {
				s.logger.WithField("event", delivery.Event).ErrorWithErr("Failed to list webhook subscribers", err)
				continue
			}
			byID = lo.KeyBy(hooks, func(h *models.Webhook) string { return h.ID })
			subscribers[delivery.Event] = byID
		}

		hook, ok := byID[delivery.WebhookID]
		if !ok || !hook.IsActive {
			continue
		}
		// the lease is stored before sending so the next tick skips it
		leased := now.Add(lease)
		delivery.NextRetryAt = &leased
		if err := s.repo.UpdateDelivery(ctx, delivery); err != nil {
			s.logger.WithField("delivery_id", delivery.ID).ErrorWithErr("Failed to lease webhook delivery", err)
			continue
		}
		s.dispatch(hook, delivery)
	}
}
