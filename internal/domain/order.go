package domain

import "time"

// Order is a storefront order snapshot. The storefront platform is the
// system of record; rows here are refreshed from webhooks and only read
// by attribution.
type Order struct {
	ID                string    `json:"id"`
	BusinessID        string    `json:"business_id"`
	Name              string    `json:"name"`
	Email             string    `json:"email,omitempty"`
	TotalPrice        string    `json:"total_price"`
	Currency          string    `json:"currency"`
	FinancialStatus   string    `json:"financial_status,omitempty"`
	FulfillmentStatus string    `json:"fulfillment_status,omitempty"`
	SourceURL         string    `json:"source_url,omitempty"`
	SourceName        string    `json:"source_name,omitempty"`
	SourceIdentifier  string    `json:"source_identifier,omitempty"`
	CheckoutToken     string    `json:"checkout_token,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// HasReferralData reports whether the platform captured any source information.
func (o *Order) HasReferralData() bool {
	return o.SourceURL != "" || o.SourceName != "" || o.SourceIdentifier != ""
}

// Checkout is a storefront checkout snapshot, completed or not.
type Checkout struct {
	ID               string     `json:"id"`
	BusinessID       string     `json:"business_id"`
	Token            string     `json:"token,omitempty"`
	Email            string     `json:"email,omitempty"`
	TotalPrice       string     `json:"total_price"`
	Currency         string     `json:"currency"`
	SourceURL        string     `json:"source_url,omitempty"`
	SourceName       string     `json:"source_name,omitempty"`
	SourceIdentifier string     `json:"source_identifier,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// HasReferralData reports whether the platform captured any source information.
func (c *Checkout) HasReferralData() bool {
	return c.SourceURL != "" || c.SourceName != "" || c.SourceIdentifier != ""
}

// IsCompleted reports whether the checkout turned into an order.
func (c *Checkout) IsCompleted() bool {
	return c.CompletedAt != nil
}
