package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/analytics"
	"github.com/dzekuza/pav4-sub004/internal/attribution"
	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/service"
	"github.com/dzekuza/pav4-sub004/pkg/logger"
	"github.com/dzekuza/pav4-sub004/pkg/validator"

	"github.com/go-chi/chi/v5"
)

const (
	noCache = "no-cache, no-store, must-revalidate"

	maxTrackingBody = 64 << 10
	maxWebhookBody  = 5 << 20
	readyTimeout    = 2 * time.Second
)

// Services the handlers depend on. Interfaces keep handlers testable with mocks.
type ReferralService interface {
	HandleClick(ctx context.Context, click service.Click) (*service.ClickResult, error)
}

type AnalyticsService interface {
	OrderAnalytics(ctx context.Context, q service.AnalyticsQuery) (*service.Response[attribution.OrderReport], error)
	JourneyAnalytics(ctx context.Context, q service.AnalyticsQuery) (*service.Response[analytics.JourneyReport], error)
	CheckoutDebug(ctx context.Context, businessID string) (*analytics.CheckoutDebugReport, error)
}

type TrackingService interface {
	Track(ctx context.Context, event *domain.TrackingEvent, clientIP string) (*domain.JourneyEvent, error)
}

type WebhookService interface {
	Handle(ctx context.Context, d service.WebhookDelivery) service.WebhookResult
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	referrals ReferralService
	analytics AnalyticsService
	tracking  TrackingService
	webhooks  WebhookService
	db        Pinger
	logger    *logger.Logger
}

// Services groups the handler dependencies
type Services struct {
	Referrals ReferralService
	Analytics AnalyticsService
	Tracking  TrackingService
	Webhooks  WebhookService
	DB        Pinger
}

// NewHandler creates a new HTTP handler
func NewHandler(s Services, log *logger.Logger) *Handler {
	return &Handler{
		referrals: s.Referrals,
		analytics: s.Analytics,
		tracking:  s.Tracking,
		webhooks:  s.Webhooks,
		db:        s.DB,
		logger:    log,
	}
}

// Referral handles GET /ref/{affiliateId}
func (h *Handler) Referral(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", noCache)

	result, err := h.referrals.HandleClick(r.Context(), service.Click{
		AffiliateID:  chi.URLParam(r, "affiliateId"),
		RawTargetURL: r.URL.Query().Get("target_url"),
		Referrer:     r.Referer(),
		UserAgent:    r.UserAgent(),
		ClientIP:     extractIP(r),
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "Invalid affiliate ID")
			return
		}
		h.logger.WithContext(r.Context()).Error("referral redirect failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	http.Redirect(w, r, result.Redirect.URL, http.StatusFound)
}

// OrderAnalytics handles GET /api/v1/analytics/orders
func (h *Handler) OrderAnalytics(w http.ResponseWriter, r *http.Request) {
	q, err := parseAnalyticsQuery(r, service.DefaultOrderLimit)
	if err != nil {
		respondEnvelopeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.analytics.OrderAnalytics(r.Context(), q)
	if err != nil {
		h.logger.WithContext(r.Context()).Error("order analytics failed", "error", err)
		respondEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, envelopeStatus(resp.Success), resp)
}

// JourneyAnalytics handles GET /api/v1/analytics/journey
func (h *Handler) JourneyAnalytics(w http.ResponseWriter, r *http.Request) {
	q, err := parseAnalyticsQuery(r, service.DefaultJourneyLimit)
	if err != nil {
		respondEnvelopeError(w, http.StatusBadRequest, err.Error())
		return
	}
	query := r.URL.Query()
	q.SessionID = query.Get("session_id")
	q.UTMSource = query.Get("utm_source")
	q.EventType = query.Get("event_type")

	resp, err := h.analytics.JourneyAnalytics(r.Context(), q)
	if err != nil {
		h.logger.WithContext(r.Context()).Error("journey analytics failed", "error", err)
		respondEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, envelopeStatus(resp.Success), resp)
}

// CheckoutDebug handles GET /api/v1/businesses/{businessId}/checkout-debug
func (h *Handler) CheckoutDebug(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessId")

	report, err := h.analytics.CheckoutDebug(r.Context(), businessID)
	if err != nil {
		if errors.Is(err, domain.ErrBusinessNotFound) {
			respondEnvelopeError(w, http.StatusNotFound, "Business not found")
			return
		}
		h.logger.WithContext(r.Context()).Error("checkout debug failed", "business_id", businessID, "error", err)
		respondEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, service.Response[analytics.CheckoutDebugReport]{
		Success: true,
		Data:    report,
		Metadata: service.Metadata{
			GeneratedAt: report.Timestamp,
			BusinessID:  businessID,
			RecordCount: report.Summary.TotalCheckouts + report.Summary.TotalOrders,
		},
	})
}

// TrackResponse acknowledges an accepted tracking event
type TrackResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"event_id"`
}

// Track handles POST /api/v1/track
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	var event domain.TrackingEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTrackingBody)).Decode(&event); err != nil {
		respondEnvelopeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	defer r.Body.Close()

	journey, err := h.tracking.Track(r.Context(), &event, extractIP(r))
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			respondEnvelopeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithContext(r.Context()).Error("tracking event failed", "error", err)
		respondEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusAccepted, TrackResponse{Success: true, EventID: journey.ID})
}

// ShopifyWebhook handles POST /webhooks/shopify. It always answers 200 so
// the platform does not keep retrying a delivery.
func (h *Handler) ShopifyWebhook(w http.ResponseWriter, r *http.Request) {
	delivery := service.WebhookDelivery{
		Topic:       r.Header.Get("X-Shopify-Topic"),
		ShopDomain:  r.Header.Get("X-Shopify-Shop-Domain"),
		WebhookID:   r.Header.Get("X-Shopify-Webhook-Id"),
		TriggeredAt: r.Header.Get("X-Shopify-Triggered-At"),
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.logger.WithContext(r.Context()).Warn("failed to read webhook body", "topic", delivery.Topic, "error", err)
	}
	delivery.Body = body

	respondJSON(w, http.StatusOK, h.webhooks.Handle(r.Context(), delivery))
}

// HealthCheck handles GET /health/live
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /health/ready
func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.WithContext(r.Context()).Warn("readiness check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func parseAnalyticsQuery(r *http.Request, defaultLimit int) (service.AnalyticsQuery, error) {
	query := r.URL.Query()

	from, err := validator.ParseDate(query.Get("start_date"))
	if err != nil {
		return service.AnalyticsQuery{}, err
	}
	to, err := validator.ParseDate(query.Get("end_date"))
	if err != nil {
		return service.AnalyticsQuery{}, err
	}
	limit, err := validator.ParseLimit(query.Get("limit"), defaultLimit)
	if err != nil {
		return service.AnalyticsQuery{}, err
	}

	return service.AnalyticsQuery{
		BusinessDomain: query.Get("business_domain"),
		From:           from,
		To:             to,
		Limit:          limit,
	}, nil
}

func envelopeStatus(success bool) int {
	if success {
		return http.StatusOK
	}
	return http.StatusNotFound
}
