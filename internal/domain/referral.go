package domain

import "time"

// ConversionStatus tracks what happened after an affiliate click.
// Referrals are created as pending; conversion tracking moves them on.
type ConversionStatus string

const (
	ConversionPending   ConversionStatus = "pending"
	ConversionConverted ConversionStatus = "converted"
	ConversionAbandoned ConversionStatus = "abandoned"
)

// UTM values stamped on every redirect produced by the referral flow.
const (
	ReferralUTMSource   = "ipick.io"
	ReferralUTMMedium   = "referral"
	ReferralUTMCampaign = "business_referral"
)

// DirectSource is stored when a click carries no HTTP referrer.
const DirectSource = "direct"

// Referral represents one affiliate click that landed on a known business.
type Referral struct {
	ID               string           `json:"id"`
	ReferralID       string           `json:"referral_id"` // ref_{affiliate}_{millis}_{suffix}
	AffiliateID      string           `json:"affiliate_id"`
	BusinessID       string           `json:"business_id"`
	BusinessDomain   string           `json:"business_domain"`
	TargetURL        string           `json:"target_url"`
	SourceURL        string           `json:"source_url"`
	UserAgent        string           `json:"user_agent,omitempty"`
	IPAddress        string           `json:"ip_address,omitempty"`
	UTMSource        string           `json:"utm_source"`
	UTMMedium        string           `json:"utm_medium"`
	UTMCampaign      string           `json:"utm_campaign"`
	ConversionStatus ConversionStatus `json:"conversion_status"`
	ConversionValue  *float64         `json:"conversion_value,omitempty"`
	ClickedAt        time.Time        `json:"clicked_at"`
	CreatedAt        time.Time        `json:"created_at"`
}

// ClickContext carries everything known about an inbound affiliate click.
type ClickContext struct {
	AffiliateID string
	TargetURL   string // decoded target, empty when missing or undecodable
	SourceURL   string // raw HTTP referrer
	UserAgent   string
	ClientIP    string
	Timestamp   time.Time
}

// Source returns the referrer, or DirectSource when there is none.
func (c ClickContext) Source() string {
	if c.SourceURL == "" {
		return DirectSource
	}
	return c.SourceURL
}

// IsConverted reports whether conversion tracking marked the referral as converted.
func (r *Referral) IsConverted() bool {
	return r.ConversionStatus == ConversionConverted
}

// NewReferral builds a pending referral for a click on a resolved business.
func NewReferral(business *Business, referralID, businessDomain string, click ClickContext) *Referral {
	target := click.TargetURL
	if target == "" {
		target = click.Source()
	}
	if businessDomain == "" {
		businessDomain = business.Domain
	}

	return &Referral{
		ReferralID:       referralID,
		AffiliateID:      click.AffiliateID,
		BusinessID:       business.ID,
		BusinessDomain:   businessDomain,
		TargetURL:        target,
		SourceURL:        click.Source(),
		UserAgent:        click.UserAgent,
		IPAddress:        click.ClientIP,
		UTMSource:        ReferralUTMSource,
		UTMMedium:        ReferralUTMMedium,
		UTMCampaign:      ReferralUTMCampaign,
		ConversionStatus: ConversionPending,
		ClickedAt:        click.Timestamp,
		CreatedAt:        click.Timestamp,
	}
}
