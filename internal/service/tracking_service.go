package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/metrics"
	"github.com/dzekuza/pav4-sub004/internal/repository"
	"github.com/dzekuza/pav4-sub004/pkg/logger"
)

// TrackingService stores customer journey events sent by storefront scripts.
type TrackingService struct {
	resolver  *BusinessResolver
	referrals repository.ReferralRepository
	journeys  repository.JourneyRepository
	publisher Publisher // nil when Kafka is disabled
	logger    *logger.Logger
	now       func() time.Time
}

// NewTrackingService creates a new tracking service. publisher may be nil.
func NewTrackingService(resolver *BusinessResolver, referrals repository.ReferralRepository, journeys repository.JourneyRepository, publisher Publisher, log *logger.Logger) *TrackingService {
	return &TrackingService{
		resolver:  resolver,
		referrals: referrals,
		journeys:  journeys,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// Track validates and stores one event, linking it to its business and, if
// the event carries a ref_token, to the referral that brought the visitor.
func (s *TrackingService) Track(ctx context.Context, event *domain.TrackingEvent, clientIP string) (*domain.JourneyEvent, error) {
	if err := event.Validate(); err != nil {
		metrics.RecordTrackingEvent("invalid")
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	eventType := domain.EventType(event.EventType)
	if !eventType.IsKnown() {
		metrics.RecordTrackingEvent("invalid")
		return nil, fmt.Errorf("%w: %w: %s", ErrInvalidInput, domain.ErrUnknownEventType, event.EventType)
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"session_id": event.SessionID,
		"event_type": event.EventType,
	})

	journey := JourneyEventFrom(event, clientIP, s.now())

	business := s.resolveBusiness(ctx, event, log)
	if business != nil {
		journey.BusinessID = business.ID
	}

	if token := event.DataString("ref_token"); token != "" {
		referral, err := s.referrals.GetByReferralID(ctx, token)
		switch {
		case err != nil:
			log.Warn("referral lookup failed", "ref_token", token, "error", err)
		case referral != nil:
			journey.ReferralID = referral.ReferralID
			journey.BusinessDomain = referral.BusinessDomain
			if journey.BusinessID == "" {
				journey.BusinessID = referral.BusinessID
			}
			if journey.AffiliateID == "" {
				journey.AffiliateID = referral.AffiliateID
			}
		}
	}

	if err := s.journeys.Create(ctx, journey); err != nil {
		metrics.RecordTrackingEvent("error")
		return nil, fmt.Errorf("failed to store journey event: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, journey); err != nil {
			metrics.RecordSinkError("publisher")
			log.Error("failed to publish journey event", "event_id", journey.ID, "error", err)
		}
	}

	metrics.RecordTrackingEvent("accepted")
	return journey, nil
}

func (s *TrackingService) resolveBusiness(ctx context.Context, event *domain.TrackingEvent, log *logger.Logger) *domain.Business {
	if id := string(event.BusinessID); id != "" {
		business, err := s.resolver.ResolveByID(ctx, id)
		if err != nil {
			log.Warn("business lookup by id failed", "business_id", id, "error", err)
		} else if business != nil {
			return business
		}
	}

	if host := event.DataString("business_domain"); host != "" {
		business, err := s.resolver.Resolve(ctx, host)
		if err != nil {
			log.Warn("business lookup by domain failed", "domain", host, "error", err)
			return nil
		}
		return business
	}
	return nil
}

// JourneyEventFrom maps the loosely typed event data onto a journey event.
// The event URL is used as page URL when data has none.
func JourneyEventFrom(event *domain.TrackingEvent, clientIP string, now time.Time) *domain.JourneyEvent {
	pageURL := event.DataString("page_url")
	if pageURL == "" {
		pageURL = event.URL
	}

	return &domain.JourneyEvent{
		SessionID:     event.SessionID,
		EventType:     domain.EventType(event.EventType),
		AffiliateID:   event.AffiliateID,
		UserID:        event.DataString("user_id"),
		Email:         event.DataString("email"),
		PageURL:       pageURL,
		PageTitle:     event.DataString("page_title"),
		ReferrerURL:   event.DataString("referrer_url"),
		ProductID:     event.DataString("product_id"),
		ProductName:   event.DataString("product_name"),
		ProductPrice:  event.DataFloat("product_price"),
		CartValue:     event.DataFloat("cart_value"),
		DiscountCode:  event.DataString("discount_code"),
		DiscountValue: event.DataFloat("discount_value"),
		CheckoutID:    event.DataString("checkout_id"),
		OrderID:       event.DataString("order_id"),
		UTMSource:     event.DataString("utm_source"),
		UTMMedium:     event.DataString("utm_medium"),
		UTMCampaign:   event.DataString("utm_campaign"),
		Country:       event.DataString("country"),
		DeviceType:    event.DataString("device_type"),
		BrowserName:   event.DataString("browser_name"),
		IPAddress:     clientIP,
		Data:          event.Data,
		OccurredAt:    event.OccurredAt(now),
	}
}
