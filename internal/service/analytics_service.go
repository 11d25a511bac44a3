package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/analytics"
	"github.com/dzekuza/pav4-sub004/internal/attribution"
	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/metrics"
	"github.com/dzekuza/pav4-sub004/internal/repository"
	"github.com/dzekuza/pav4-sub004/pkg/logger"
	"github.com/dzekuza/pav4-sub004/pkg/validator"

	"golang.org/x/sync/errgroup"
)

// Fetch sizes for analytics queries
const (
	DefaultOrderLimit   = 100
	DefaultJourneyLimit = 25
	referralFetchLimit  = 1000 // independent of the order limit
	debugFetchLimit     = 50
	debugLookback       = 30 * 24 * time.Hour
)

// MsgBusinessDomainNotFound is reported in the response envelope.
const MsgBusinessDomainNotFound = "Business domain not found"

// AnalyticsQuery selects the rows an analytics report is built from.
type AnalyticsQuery struct {
	BusinessDomain string
	From           *time.Time
	To             *time.Time
	Limit          int

	// Journey only
	SessionID string
	UTMSource string
	EventType string
}

// Response is the envelope every analytics endpoint answers with.
type Response[T any] struct {
	Success  bool     `json:"success"`
	Data     *T       `json:"data,omitempty"`
	Error    string   `json:"error,omitempty"`
	Metadata Metadata `json:"metadata"`
}

type Metadata struct {
	GeneratedAt    time.Time  `json:"generated_at"`
	BusinessDomain string     `json:"business_domain,omitempty"`
	BusinessID     string     `json:"business_id,omitempty"`
	From           *time.Time `json:"start_date,omitempty"`
	To             *time.Time `json:"end_date,omitempty"`
	Limit          int        `json:"limit"`
	RecordCount    int        `json:"record_count"`
}

// AnalyticsService loads rows for a report concurrently and hands them to
// the pure aggregation functions.
type AnalyticsService struct {
	resolver  *BusinessResolver
	orders    repository.OrderRepository
	referrals repository.ReferralRepository
	checkouts repository.CheckoutRepository
	journeys  repository.JourneyRepository
	matcher   *attribution.Matcher
	logger    *logger.Logger
	now       func() time.Time
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(
	resolver *BusinessResolver,
	orders repository.OrderRepository,
	referrals repository.ReferralRepository,
	checkouts repository.CheckoutRepository,
	journeys repository.JourneyRepository,
	log *logger.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		resolver:  resolver,
		orders:    orders,
		referrals: referrals,
		checkouts: checkouts,
		journeys:  journeys,
		matcher:   attribution.NewMatcher(attribution.DefaultRules()...),
		logger:    log,
		now:       time.Now,
	}
}

// OrderAnalytics classifies orders as affiliate or direct. An unknown
// business domain yields an unsuccessful envelope, not an error.
func (s *AnalyticsService) OrderAnalytics(ctx context.Context, q AnalyticsQuery) (*Response[attribution.OrderReport], error) {
	now := s.now()
	limit := clampLimit(q.Limit, DefaultOrderLimit)
	resp := &Response[attribution.OrderReport]{
		Metadata: Metadata{GeneratedAt: now, BusinessDomain: q.BusinessDomain, From: q.From, To: q.To, Limit: limit},
	}

	filter := repository.ListFilter{From: q.From, To: q.To, Limit: limit}
	if q.BusinessDomain != "" {
		business, err := s.resolver.Resolve(ctx, q.BusinessDomain)
		if err != nil {
			return nil, err
		}
		if business == nil {
			resp.Error = MsgBusinessDomainNotFound
			return resp, nil
		}
		filter.BusinessIDs = []string{business.ID}
		resp.Metadata.BusinessID = business.ID
	}

	// Referrals clicked up to one attribution window before the first order
	// can still explain it.
	refFilter := filter
	refFilter.Limit = referralFetchLimit
	if q.From != nil {
		from := q.From.Add(-attribution.AttributionWindow)
		refFilter.From = &from
	}

	var (
		orders    []*domain.Order
		referrals []*domain.Referral
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.orders.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		referrals, err = s.referrals.List(gctx, refFilter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load order analytics data: %w", err)
	}

	classified := s.matcher.Classify(orders, referrals)
	for _, c := range classified {
		metrics.RecordOrderClassified(string(c.Method))
	}

	report := attribution.Aggregate(classified, clickedSince(referrals, q.From), now)
	resp.Success = true
	resp.Data = &report
	resp.Metadata.RecordCount = len(orders)
	return resp, nil
}

// JourneyAnalytics builds the customer journey report. The business domain
// filter applies to the domain of the referral an event is linked to.
func (s *AnalyticsService) JourneyAnalytics(ctx context.Context, q AnalyticsQuery) (*Response[analytics.JourneyReport], error) {
	now := s.now()
	limit := clampLimit(q.Limit, DefaultJourneyLimit)

	events, err := s.journeys.List(ctx, repository.JourneyFilter{
		ListFilter:     repository.ListFilter{From: q.From, To: q.To, Limit: JourneyFetchLimit(limit)},
		BusinessDomain: q.BusinessDomain,
		SessionID:      q.SessionID,
		UTMSource:      q.UTMSource,
		EventType:      q.EventType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load journey events: %w", err)
	}

	report := analytics.BuildJourneyReport(events, now)
	return &Response[analytics.JourneyReport]{
		Success: true,
		Data:    &report,
		Metadata: Metadata{
			GeneratedAt:    now,
			BusinessDomain: q.BusinessDomain,
			From:           q.From,
			To:             q.To,
			Limit:          limit,
			RecordCount:    len(events),
		},
	}, nil
}

// CheckoutDebug inspects the recent checkouts, orders and referrals of one
// business. It returns domain.ErrBusinessNotFound for an unknown id.
func (s *AnalyticsService) CheckoutDebug(ctx context.Context, businessID string) (*analytics.CheckoutDebugReport, error) {
	business, err := s.resolver.ResolveByID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, domain.ErrBusinessNotFound
	}

	now := s.now()
	from := now.Add(-debugLookback)
	filter := repository.ListFilter{BusinessIDs: []string{business.ID}, From: &from, Limit: debugFetchLimit}

	var (
		checkouts []*domain.Checkout
		orders    []*domain.Order
		referrals []*domain.Referral
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		checkouts, err = s.checkouts.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		orders, err = s.orders.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		referrals, err = s.referrals.List(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load checkout debug data: %w", err)
	}

	report := analytics.BuildCheckoutDebugReport(business.ID, checkouts, orders, referrals, now)
	return &report, nil
}

// clickedSince drops referrals clicked before from. The matcher sees the
// wider set; the conversion funnel only counts clicks inside the window.
func clickedSince(referrals []*domain.Referral, from *time.Time) []*domain.Referral {
	if from == nil {
		return referrals
	}
	inWindow := make([]*domain.Referral, 0, len(referrals))
	for _, r := range referrals {
		if !r.ClickedAt.Before(*from) {
			inWindow = append(inWindow, r)
		}
	}
	return inWindow
}

// JourneyFetchLimit is how many events a journey report with limit sessions
// reads: ten per session, at most validator.MaxLimit.
func JourneyFetchLimit(limit int) int {
	return min(limit*10, validator.MaxLimit)
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, validator.MaxLimit)
}
