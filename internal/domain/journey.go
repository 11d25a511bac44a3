package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventType is a customer-journey event reported by storefront tracking scripts.
type EventType string

const (
	EventVisit            EventType = "visit"
	EventPageView         EventType = "page_view"
	EventProductView      EventType = "product_view"
	EventAddToCart        EventType = "add_to_cart"
	EventRemoveFromCart   EventType = "remove_from_cart"
	EventCheckoutStart    EventType = "checkout_start"
	EventCheckoutStep     EventType = "checkout_step"
	EventCheckoutComplete EventType = "checkout_complete"
	EventPurchase         EventType = "purchase"
	EventDiscountApplied  EventType = "discount_applied"
	EventExitIntent       EventType = "exit_intent"
	EventBounce           EventType = "bounce"
)

var knownEventTypes = map[EventType]struct{}{
	EventVisit: {}, EventPageView: {}, EventProductView: {}, EventAddToCart: {},
	EventRemoveFromCart: {}, EventCheckoutStart: {}, EventCheckoutStep: {},
	EventCheckoutComplete: {}, EventPurchase: {}, EventDiscountApplied: {},
	EventExitIntent: {}, EventBounce: {},
}

// IsKnown reports whether the event type belongs to the journey vocabulary.
func (t EventType) IsKnown() bool {
	_, ok := knownEventTypes[t]
	return ok
}

var (
	ErrMissingEventType = errors.New("event_type is required")
	ErrMissingSessionID = errors.New("session_id is required")
	ErrUnknownEventType = errors.New("unknown event_type")
)

// JourneyEvent is one step of a shopper's session on a business storefront.
type JourneyEvent struct {
	ID             string         `json:"id"`
	BusinessID     string         `json:"business_id,omitempty"`
	ReferralID     string         `json:"referral_id,omitempty"`
	BusinessDomain string         `json:"business_domain,omitempty"` // domain of the linked referral
	SessionID      string         `json:"session_id"`
	EventType      EventType      `json:"event_type"`
	AffiliateID    string         `json:"affiliate_id,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	Email          string         `json:"email,omitempty"`
	PageURL        string         `json:"page_url,omitempty"`
	PageTitle      string         `json:"page_title,omitempty"`
	ReferrerURL    string         `json:"referrer_url,omitempty"`
	ProductID      string         `json:"product_id,omitempty"`
	ProductName    string         `json:"product_name,omitempty"`
	ProductPrice   float64        `json:"product_price,omitempty"`
	CartValue      float64        `json:"cart_value,omitempty"`
	DiscountCode   string         `json:"discount_code,omitempty"`
	DiscountValue  float64        `json:"discount_value,omitempty"`
	CheckoutID     string         `json:"checkout_id,omitempty"`
	OrderID        string         `json:"order_id,omitempty"`
	UTMSource      string         `json:"utm_source,omitempty"`
	UTMMedium      string         `json:"utm_medium,omitempty"`
	UTMCampaign    string         `json:"utm_campaign,omitempty"`
	Country        string         `json:"country,omitempty"`
	DeviceType     string         `json:"device_type,omitempty"`
	BrowserName    string         `json:"browser_name,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// LooseString decodes from a JSON string or number. Tracking scripts send
// ids and epoch timestamps either way.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*s = ""
	case data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = LooseString(v)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number: %w", err)
		}
		*s = LooseString(n.String())
	}
	return nil
}

// TrackingEvent is the normalized event shape shared by browser tracking
// scripts, the webhook relay and downstream consumers.
type TrackingEvent struct {
	EventType   string         `json:"event_type"`
	BusinessID  LooseString    `json:"business_id"`
	AffiliateID string         `json:"affiliate_id"`
	Platform    string         `json:"platform,omitempty"`
	SessionID   string         `json:"session_id"`
	Timestamp   LooseString    `json:"timestamp"`
	URL         string         `json:"url"`
	Data        map[string]any `json:"data,omitempty"`
}

// Validate checks the fields every tracking event must carry.
func (e *TrackingEvent) Validate() error {
	if strings.TrimSpace(e.EventType) == "" {
		return ErrMissingEventType
	}
	if strings.TrimSpace(e.SessionID) == "" {
		return ErrMissingSessionID
	}
	return nil
}

// OccurredAt parses the event timestamp. Scripts send either RFC 3339 or
// epoch milliseconds; anything else falls back to the given time.
func (e *TrackingEvent) OccurredAt(fallback time.Time) time.Time {
	ts := strings.TrimSpace(string(e.Timestamp))
	if ts == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t
	}
	if millis, err := strconv.ParseInt(ts, 10, 64); err == nil && millis > 0 {
		return time.UnixMilli(millis)
	}
	return fallback
}

// DataString reads a string field from the event data.
func (e *TrackingEvent) DataString(key string) string {
	if e.Data == nil {
		return ""
	}
	switch v := e.Data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// DataFloat reads a numeric field from the event data. Numeric strings are accepted.
func (e *TrackingEvent) DataFloat(key string) float64 {
	if e.Data == nil {
		return 0
	}
	switch v := e.Data[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f
		}
	}
	return 0
}
