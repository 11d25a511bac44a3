package repository

import (
	"context"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/domain"
)

// ListFilter narrows list queries to a set of businesses and a time range.
// Zero values mean "no restriction"; Limit <= 0 uses the store default.
type ListFilter struct {
	BusinessIDs []string
	From        *time.Time
	To          *time.Time
	Limit       int
}

// JourneyFilter narrows journey event queries.
type JourneyFilter struct {
	ListFilter
	BusinessDomain string // domain of the linked referral
	SessionID      string
	UTMSource      string
	EventType      string
}

// BusinessRepository defines data access for merchants
type BusinessRepository interface {
	// GetByDomain returns the business whose domain or shop domain equals
	// the normalized domain. A miss returns nil, nil.
	GetByDomain(ctx context.Context, host string) (*domain.Business, error)

	// GetByID returns nil, nil when no business has the id.
	GetByID(ctx context.Context, id string) (*domain.Business, error)

	Create(ctx context.Context, business *domain.Business) error
}

// ReferralRepository defines data access for affiliate clicks
type ReferralRepository interface {
	// Create inserts a referral. Referrals are never updated or deleted here.
	Create(ctx context.Context, referral *domain.Referral) error

	// List returns referrals newest click first
	List(ctx context.Context, filter ListFilter) ([]*domain.Referral, error)

	// GetByReferralID looks a referral up by its reference token.
	// A miss returns nil, nil.
	GetByReferralID(ctx context.Context, referralID string) (*domain.Referral, error)
}

// OrderRepository defines data access for storefront order snapshots
type OrderRepository interface {
	// Upsert inserts or refreshes an order snapshot keyed by its platform id
	Upsert(ctx context.Context, order *domain.Order) error

	// List returns orders newest first
	List(ctx context.Context, filter ListFilter) ([]*domain.Order, error)
}

// CheckoutRepository defines data access for storefront checkout snapshots
type CheckoutRepository interface {
	Upsert(ctx context.Context, checkout *domain.Checkout) error
	List(ctx context.Context, filter ListFilter) ([]*domain.Checkout, error)
}

// JourneyRepository defines data access for customer journey events
type JourneyRepository interface {
	Create(ctx context.Context, event *domain.JourneyEvent) error

	// List returns events newest first
	List(ctx context.Context, filter JourneyFilter) ([]*domain.JourneyEvent, error)
}
