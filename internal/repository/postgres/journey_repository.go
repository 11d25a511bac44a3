package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/metrics"
	"github.com/dzekuza/pav4-sub004/internal/repository"

	"github.com/jackc/pgx/v5"
)

type journeyRepository struct {
	db DBTX
}

// NewJourneyRepository creates a new PostgreSQL journey event repository
func NewJourneyRepository(db DBTX) repository.JourneyRepository {
	return &journeyRepository{db: db}
}

var journeyColumns = []string{
	"business_id", "referral_id", "session_id", "event_type", "affiliate_id",
	"user_id", "email", "page_url", "page_title", "referrer_url",
	"product_id", "product_name", "product_price", "cart_value", "discount_code",
	"discount_value", "checkout_id", "order_id", "utm_source", "utm_medium",
	"utm_campaign", "country", "device_type", "browser_name", "ip_address",
	"data", "occurred_at",
}

func (r *journeyRepository) Create(ctx context.Context, e *domain.JourneyEvent) (err error) {
	defer func(start time.Time) { metrics.ObserveQuery("journey_create", start, err) }(time.Now())

	placeholders := make([]string, len(journeyColumns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := `INSERT INTO journey_events (` + strings.Join(journeyColumns, ", ") + `)
		VALUES (` + strings.Join(placeholders, ", ") + `)
		RETURNING id`

	err = r.db.QueryRow(ctx, query,
		e.BusinessID,
		e.ReferralID,
		e.SessionID,
		string(e.EventType),
		e.AffiliateID,
		e.UserID,
		e.Email,
		e.PageURL,
		e.PageTitle,
		e.ReferrerURL,
		e.ProductID,
		e.ProductName,
		e.ProductPrice,
		e.CartValue,
		e.DiscountCode,
		e.DiscountValue,
		e.CheckoutID,
		e.OrderID,
		e.UTMSource,
		e.UTMMedium,
		e.UTMCampaign,
		e.Country,
		e.DeviceType,
		e.BrowserName,
		e.IPAddress,
		e.Data,
		e.OccurredAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to create journey event: %w", err)
	}
	return nil
}

// List joins the linked referral so events can be filtered by the domain the
// affiliate link pointed at. Events without a referral have an empty domain.
func (r *journeyRepository) List(ctx context.Context, filter repository.JourneyFilter) (events []*domain.JourneyEvent, err error) {
	defer func(start time.Time) { metrics.ObserveQuery("journey_list", start, err) }(time.Now())

	var w where
	w.scope(filter.ListFilter, "e.", "occurred_at")
	if filter.BusinessDomain != "" {
		w.add("r.business_domain = $%d", domain.NormalizeDomain(filter.BusinessDomain))
	}
	if filter.SessionID != "" {
		w.add("e.session_id = $%d", filter.SessionID)
	}
	if filter.UTMSource != "" {
		w.add("e.utm_source = $%d", filter.UTMSource)
	}
	if filter.EventType != "" {
		w.add("e.event_type = $%d", filter.EventType)
	}

	cols := make([]string, len(journeyColumns))
	for i, c := range journeyColumns {
		cols[i] = "e." + c
	}

	query := `SELECT e.id, ` + strings.Join(cols, ", ") + `, COALESCE(r.business_domain, '')
		FROM journey_events e
		LEFT JOIN referrals r ON r.referral_id = e.referral_id` + w.String() +
		` ORDER BY e.occurred_at DESC` + w.limit(filter.Limit)

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journey events: %w", err)
	}
	defer rows.Close()

	events = make([]*domain.JourneyEvent, 0)
	for rows.Next() {
		e, err := scanJourneyEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journey event: %w", err)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journey events: %w", err)
	}
	return events, nil
}

func scanJourneyEvent(row pgx.Row) (*domain.JourneyEvent, error) {
	e := &domain.JourneyEvent{}
	var eventType string
	err := row.Scan(
		&e.ID,
		&e.BusinessID,
		&e.ReferralID,
		&e.SessionID,
		&eventType,
		&e.AffiliateID,
		&e.UserID,
		&e.Email,
		&e.PageURL,
		&e.PageTitle,
		&e.ReferrerURL,
		&e.ProductID,
		&e.ProductName,
		&e.ProductPrice,
		&e.CartValue,
		&e.DiscountCode,
		&e.DiscountValue,
		&e.CheckoutID,
		&e.OrderID,
		&e.UTMSource,
		&e.UTMMedium,
		&e.UTMCampaign,
		&e.Country,
		&e.DeviceType,
		&e.BrowserName,
		&e.IPAddress,
		&e.Data,
		&e.OccurredAt,
		&e.BusinessDomain,
	)
	if err != nil {
		return nil, err
	}
	e.EventType = domain.EventType(eventType)
	return e, nil
}
