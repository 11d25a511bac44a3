package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/attribution"
	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/metrics"
	"github.com/dzekuza/pav4-sub004/internal/repository"
	"github.com/dzekuza/pav4-sub004/pkg/logger"
)

// Webhook processing results, also used as metric labels
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookInvalid   = "invalid"
)

// Identifiers stamped on relayed webhook events
const (
	WebhookAffiliateID = "shopify-webhook"
	WebhookPlatform    = "shopify"
	WebhookSource      = "shopify-tracking-app"
	webhookVersion     = "1.0"
)

var (
	ErrEmptyPayload = errors.New("webhook payload is required")
	ErrMissingID    = errors.New("webhook payload id is required")
)

// WebhookDelivery is one storefront webhook call.
type WebhookDelivery struct {
	Topic       string
	ShopDomain  string
	WebhookID   string
	TriggeredAt string
	Body        []byte
}

// WebhookResult is acknowledged to the platform.
type WebhookResult struct {
	Status  string `json:"status"`
	Topic   string `json:"topic,omitempty"`
	Message string `json:"message,omitempty"`
}

// WebhookService validates, stores and relays storefront webhooks. Sinks
// are optional; a nil sink is skipped.
type WebhookService struct {
	resolver  *BusinessResolver
	orders    repository.OrderRepository
	checkouts repository.CheckoutRepository
	dedupe    Deduplicator
	archive   Archiver
	forwarder Forwarder
	logger    *logger.Logger
	now       func() time.Time
}

// WebhookSinks groups the optional side outputs of the webhook relay
type WebhookSinks struct {
	Dedupe    Deduplicator
	Archive   Archiver
	Forwarder Forwarder
}

// NewWebhookService creates a new webhook service
func NewWebhookService(resolver *BusinessResolver, orders repository.OrderRepository, checkouts repository.CheckoutRepository, sinks WebhookSinks, log *logger.Logger) *WebhookService {
	return &WebhookService{
		resolver:  resolver,
		orders:    orders,
		checkouts: checkouts,
		dedupe:    sinks.Dedupe,
		archive:   sinks.Archive,
		forwarder: sinks.Forwarder,
		logger:    log,
		now:       time.Now,
	}
}

// Handle processes a delivery. It never fails: the platform always gets an
// acknowledgement so it does not redeliver, and every problem is logged.
func (s *WebhookService) Handle(ctx context.Context, d WebhookDelivery) WebhookResult {
	log := s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"topic":      d.Topic,
		"shop":       d.ShopDomain,
		"webhook_id": d.WebhookID,
	})

	result := s.handle(ctx, d, log)
	metrics.RecordWebhook(d.Topic, result.Status)
	return result
}

func (s *WebhookService) handle(ctx context.Context, d WebhookDelivery, log *logger.Logger) WebhookResult {
	result := WebhookResult{Status: WebhookProcessed, Topic: d.Topic}

	payload, err := decodePayload(d.Body)
	if err == nil {
		err = validatePayload(d.Topic, payload)
	}
	if err != nil {
		log.Warn("rejected webhook payload", "error", err)
		return WebhookResult{Status: WebhookInvalid, Topic: d.Topic, Message: err.Error()}
	}

	if s.dedupe != nil {
		first, err := s.dedupe.FirstSeen(ctx, d.WebhookID)
		if err != nil {
			log.Warn("webhook dedupe check failed", "error", err)
		}
		if !first {
			log.Info("duplicate webhook skipped")
			return WebhookResult{Status: WebhookDuplicate, Topic: d.Topic}
		}
	}

	now := s.now()

	business, err := s.resolver.Resolve(ctx, d.ShopDomain)
	if err != nil {
		log.Error("business lookup failed", "error", err)
	}
	if business == nil {
		log.Warn("webhook from unknown shop")
	}

	enriched := EnrichPayload(d.Topic, d.ShopDomain, payload, now)

	if business != nil {
		s.store(ctx, d.Topic, business, payload, now, log)
	}

	if s.archive != nil {
		if err := s.archive.Archive(ctx, archiveID(d, payload), now, d.Body); err != nil {
			metrics.RecordSinkError("archive")
			log.Error("failed to archive webhook payload", "error", err)
		}
	}

	if s.forwarder != nil {
		event := RelayEvent(d, business, payload, enriched, now)
		headers := map[string]string{
			"X-Webhook-Source": WebhookSource,
			"X-Webhook-Topic":  d.Topic,
			"X-Shop-Domain":    d.ShopDomain,
			"X-Event-ID":       d.WebhookID,
		}
		if err := s.forwarder.Forward(ctx, event, headers); err != nil {
			metrics.RecordSinkError("forwarder")
			log.Error("failed to forward webhook", "error", err)
			result.Message = "forwarding failed"
		}
	}

	return result
}

func (s *WebhookService) store(ctx context.Context, topic string, business *domain.Business, payload map[string]any, now time.Time, log *logger.Logger) {
	switch {
	case strings.HasPrefix(topic, "orders/"):
		order := OrderFromPayload(business.ID, payload, now)
		if err := s.orders.Upsert(ctx, order); err != nil {
			log.Error("failed to store order snapshot", "order_id", order.ID, "error", err)
		}
	case strings.HasPrefix(topic, "checkouts/"):
		checkout := CheckoutFromPayload(business.ID, payload, now)
		if err := s.checkouts.Upsert(ctx, checkout); err != nil {
			log.Error("failed to store checkout snapshot", "checkout_id", checkout.ID, "error", err)
		}
	}
}

func decodePayload(body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyPayload
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid webhook json: %w", err)
	}
	if payload == nil {
		return nil, ErrEmptyPayload
	}
	return payload, nil
}

// validatePayload requires an id for topics that describe a stored resource.
func validatePayload(topic string, payload map[string]any) error {
	resource, _, _ := strings.Cut(topic, "/")
	switch resource {
	case "orders", "products", "customers", "checkouts":
		if stringField(payload, "id") == "" {
			return fmt.Errorf("%s: %w", topic, ErrMissingID)
		}
	}
	return nil
}

func isOrderRevenueTopic(topic string) bool {
	switch topic {
	case "orders/create", "orders/paid", "orders/fulfilled":
		return true
	}
	return false
}

// EnrichPayload returns a copy of payload with processing metadata and, for
// order revenue topics, extracted business metrics.
func EnrichPayload(topic, shopDomain string, payload map[string]any, now time.Time) map[string]any {
	enriched := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		enriched[k] = v
	}

	enriched["_metadata"] = map[string]any{
		"processed_at": now.UTC().Format(time.RFC3339),
		"shop_domain":  shopDomain,
		"topic":        topic,
		"version":      webhookVersion,
	}

	if isOrderRevenueTopic(topic) {
		items := lineItems(payload)
		products := make([]map[string]any, 0, len(items))
		for _, item := range items {
			products = append(products, map[string]any{
				"product_id": item["product_id"],
				"variant_id": item["variant_id"],
				"title":      item["title"],
				"quantity":   item["quantity"],
				"price":      floatField(item, "price"),
			})
		}

		enriched["_business_metrics"] = map[string]any{
			"event_type":         "order",
			"order_id":           payload["id"],
			"order_number":       payload["order_number"],
			"total_revenue":      floatField(payload, "total_price"),
			"currency":           payload["currency"],
			"line_items_count":   len(items),
			"financial_status":   payload["financial_status"],
			"fulfillment_status": payload["fulfillment_status"],
			"subtotal":           floatField(payload, "subtotal_price"),
			"tax_amount":         floatField(payload, "total_tax"),
			"discount_amount":    floatField(payload, "total_discounts"),
			"is_revenue_event":   topic == "orders/paid" || topic == "orders/create",
			"products":           products,
		}
	}

	return enriched
}

// RelayEvent builds the normalized event forwarded downstream. Customer
// fields are not copied outside the enriched payload.
func RelayEvent(d WebhookDelivery, business *domain.Business, payload, enriched map[string]any, now time.Time) *domain.TrackingEvent {
	items := lineItems(payload)
	products := make([]map[string]any, 0, len(items))
	for _, item := range items {
		products = append(products, map[string]any{
			"product_id": item["product_id"],
			"title":      item["title"],
			"quantity":   item["quantity"],
			"price":      item["price"],
		})
	}

	var businessID string
	if business != nil {
		businessID = business.ID
	}

	return &domain.TrackingEvent{
		EventType:   d.Topic,
		BusinessID:  domain.LooseString(businessID),
		AffiliateID: WebhookAffiliateID,
		Platform:    WebhookPlatform,
		SessionID:   d.WebhookID,
		Timestamp:   domain.LooseString(strconv.FormatInt(now.UnixMilli(), 10)),
		URL:         fmt.Sprintf("https://%s/admin", d.ShopDomain),
		Data: map[string]any{
			"shop_domain":        d.ShopDomain,
			"event_id":           d.WebhookID,
			"triggered_at":       d.TriggeredAt,
			"payload":            enriched,
			"source":             WebhookSource,
			"order_id":           payload["id"],
			"order_number":       payload["order_number"],
			"total_price":        payload["total_price"],
			"currency":           payload["currency"],
			"line_items_count":   len(items),
			"financial_status":   payload["financial_status"],
			"fulfillment_status": payload["fulfillment_status"],
			"subtotal_price":     payload["subtotal_price"],
			"total_tax":          payload["total_tax"],
			"total_discounts":    payload["total_discounts"],
			"products":           products,
		},
	}
}

// OrderFromPayload maps an orders/* payload to an order snapshot.
func OrderFromPayload(businessID string, payload map[string]any, now time.Time) *domain.Order {
	return &domain.Order{
		ID:                stringField(payload, "id"),
		BusinessID:        businessID,
		Name:              stringField(payload, "name"),
		Email:             stringField(payload, "email"),
		TotalPrice:        stringField(payload, "total_price"),
		Currency:          stringField(payload, "currency"),
		FinancialStatus:   stringField(payload, "financial_status"),
		FulfillmentStatus: stringField(payload, "fulfillment_status"),
		SourceURL:         firstField(payload, "source_url", "landing_site"),
		SourceName:        stringField(payload, "source_name"),
		SourceIdentifier:  stringField(payload, "source_identifier"),
		CheckoutToken:     stringField(payload, "checkout_token"),
		CreatedAt:         timeField(payload, "created_at", now),
	}
}

// CheckoutFromPayload maps a checkouts/* payload to a checkout snapshot.
func CheckoutFromPayload(businessID string, payload map[string]any, now time.Time) *domain.Checkout {
	c := &domain.Checkout{
		ID:               stringField(payload, "id"),
		BusinessID:       businessID,
		Token:            stringField(payload, "token"),
		Email:            stringField(payload, "email"),
		TotalPrice:       stringField(payload, "total_price"),
		Currency:         stringField(payload, "currency"),
		SourceURL:        firstField(payload, "source_url", "landing_site"),
		SourceName:       stringField(payload, "source_name"),
		SourceIdentifier: stringField(payload, "source_identifier"),
		CreatedAt:        timeField(payload, "created_at", now),
	}
	if stringField(payload, "completed_at") != "" {
		completed := timeField(payload, "completed_at", now)
		c.CompletedAt = &completed
	}
	return c
}

func archiveID(d WebhookDelivery, payload map[string]any) string {
	if d.WebhookID != "" {
		return d.WebhookID
	}
	id := stringField(payload, "id")
	if id == "" {
		id = "unknown"
	}
	return strings.ReplaceAll(d.Topic, "/", "-") + "-" + id
}

func lineItems(payload map[string]any) []map[string]any {
	raw, _ := payload["line_items"].([]any)
	items := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if item, ok := r.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func firstField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := stringField(m, k); v != "" {
			return v
		}
	}
	return ""
}

func floatField(m map[string]any, key string) float64 {
	return attribution.ParsePrice(stringField(m, key))
}

func timeField(m map[string]any, key string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, stringField(m, key)); err == nil {
		return t
	}
	return fallback
}
