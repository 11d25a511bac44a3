package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/attribution"
	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/repository"
	"github.com/dzekuza/pav4-sub004/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var reportTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type analyticsMocks struct {
	businesses *MockBusinessRepository
	orders     *MockOrderRepository
	referrals  *MockReferralRepository
	checkouts  *MockCheckoutRepository
	journeys   *MockJourneyRepository
}

func newAnalyticsService() (*AnalyticsService, analyticsMocks) {
	m := analyticsMocks{
		businesses: new(MockBusinessRepository),
		orders:     new(MockOrderRepository),
		referrals:  new(MockReferralRepository),
		checkouts:  new(MockCheckoutRepository),
		journeys:   new(MockJourneyRepository),
	}
	log := logger.Nop()
	s := NewAnalyticsService(NewBusinessResolver(m.businesses, nil, log), m.orders, m.referrals, m.checkouts, m.journeys, log)
	s.now = func() time.Time { return reportTime }
	return s, m
}

func TestOrderAnalytics_ClassifiesOrders(t *testing.T) {
	// Arrange
	s, m := newAnalyticsService()
	from := reportTime.Add(-7 * 24 * time.Hour)

	orders := []*domain.Order{
		{ID: "o1", TotalPrice: "100.00", Currency: "EUR", CreatedAt: reportTime.Add(-time.Hour),
			SourceURL: "https://shop.example.com/?utm_source=ipick&utm_medium=suggestion&utm_campaign=business_tracking"},
		{ID: "o2", TotalPrice: "50.00", CreatedAt: reportTime.Add(-2 * time.Hour)},
		{ID: "o3", TotalPrice: "20.00", CreatedAt: reportTime.Add(-40 * time.Hour)},
	}
	referrals := []*domain.Referral{
		{ID: "r1", ReferralID: "ref_a_1_x", ConversionStatus: domain.ConversionConverted, ClickedAt: reportTime.Add(-33 * time.Hour)},
		{ID: "r2", ConversionStatus: domain.ConversionPending, ClickedAt: reportTime.Add(-4 * time.Hour)},
	}

	m.businesses.On("GetByDomain", mock.Anything, "shop.example.com").Return(shop, nil)
	m.orders.On("List", mock.Anything, repository.ListFilter{
		BusinessIDs: []string{"biz-1"}, From: &from, Limit: DefaultOrderLimit,
	}).Return(orders, nil)
	m.referrals.On("List", mock.Anything, mock.MatchedBy(func(f repository.ListFilter) bool {
		return f.Limit == referralFetchLimit && f.From != nil && f.From.Equal(from.Add(-attribution.AttributionWindow))
	})).Return(referrals, nil)

	// Act
	resp, err := s.OrderAnalytics(context.Background(), AnalyticsQuery{BusinessDomain: "shop.example.com", From: &from})

	// Assert
	require.NoError(t, err)
	require.True(t, resp.Success)
	report := resp.Data
	assert.Equal(t, 3, report.Summary.TotalOrders)
	assert.Equal(t, 2, report.Summary.AffiliateOrderCount)
	assert.Equal(t, 1, report.DetectionMethods.UTMParameters)
	assert.Equal(t, 1, report.DetectionMethods.TimingMatch)
	assert.Equal(t, 150.0, report.Summary.AffiliateRevenue)
	assert.Equal(t, 50.0, report.ConversionMetrics.ConversionRate)
	assert.Equal(t, "biz-1", resp.Metadata.BusinessID)
	assert.Equal(t, 3, resp.Metadata.RecordCount)
	m.orders.AssertExpectations(t)
	m.referrals.AssertExpectations(t)
}

func TestOrderAnalytics_FunnelCountsOnlyReferralsInWindow(t *testing.T) {
	// Arrange
	s, m := newAnalyticsService()
	from := reportTime.Add(-3 * 24 * time.Hour)

	orders := []*domain.Order{
		{ID: "o1", TotalPrice: "40.00", CreatedAt: from.Add(2 * time.Hour)},
	}
	referrals := []*domain.Referral{
		{ID: "r-before", ConversionStatus: domain.ConversionConverted, ClickedAt: from.Add(-24 * time.Hour)},
		{ID: "r-abandoned", ConversionStatus: domain.ConversionAbandoned, ClickedAt: from.Add(-12 * time.Hour)},
		{ID: "r-in", ConversionStatus: domain.ConversionConverted, ClickedAt: from.Add(time.Hour)},
	}
	m.orders.On("List", mock.Anything, mock.Anything).Return(orders, nil)
	m.referrals.On("List", mock.Anything, mock.Anything).Return(referrals, nil)

	// Act
	resp, err := s.OrderAnalytics(context.Background(), AnalyticsQuery{From: &from})

	// Assert
	require.NoError(t, err)
	report := resp.Data
	require.Len(t, report.AffiliateOrders, 1)
	require.NotNil(t, report.AffiliateOrders[0].MatchedReferral)
	assert.Equal(t, "r-before", report.AffiliateOrders[0].MatchedReferral.ID)

	assert.Equal(t, 1, report.ConversionMetrics.TotalReferrals)
	assert.Equal(t, 1, report.ConversionMetrics.ConvertedReferrals)
	assert.Equal(t, 0, report.ConversionMetrics.AbandonedReferrals)
	assert.Equal(t, 100.0, report.ConversionMetrics.ConversionRate)
	assert.Equal(t, 0.0, report.ConversionMetrics.AbandonmentRate)
}

func TestOrderAnalytics_ReferralFetchIgnoresOrderLimit(t *testing.T) {
	s, m := newAnalyticsService()
	m.orders.On("List", mock.Anything, mock.MatchedBy(func(f repository.ListFilter) bool {
		return f.Limit == 5
	})).Return([]*domain.Order{}, nil)
	m.referrals.On("List", mock.Anything, mock.MatchedBy(func(f repository.ListFilter) bool {
		return f.Limit == referralFetchLimit
	})).Return([]*domain.Referral{}, nil)

	_, err := s.OrderAnalytics(context.Background(), AnalyticsQuery{Limit: 5})

	require.NoError(t, err)
	m.orders.AssertExpectations(t)
	m.referrals.AssertExpectations(t)
}

func TestClickedSince(t *testing.T) {
	from := reportTime.Add(-time.Hour)
	refs := []*domain.Referral{
		{ID: "before", ClickedAt: from.Add(-time.Second)},
		{ID: "at", ClickedAt: from},
		{ID: "after", ClickedAt: from.Add(time.Second)},
	}

	assert.Len(t, clickedSince(refs, nil), 3)

	got := clickedSince(refs, &from)
	require.Len(t, got, 2)
	assert.Equal(t, "at", got[0].ID)
	assert.Equal(t, "after", got[1].ID)
}

func TestOrderAnalytics_UnknownDomain(t *testing.T) {
	s, m := newAnalyticsService()
	m.businesses.On("GetByDomain", mock.Anything, "nope.example.com").Return(nil, nil)

	resp, err := s.OrderAnalytics(context.Background(), AnalyticsQuery{BusinessDomain: "nope.example.com"})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, MsgBusinessDomainNotFound, resp.Error)
	assert.Nil(t, resp.Data)
	m.orders.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestOrderAnalytics_FetchError(t *testing.T) {
	s, m := newAnalyticsService()
	m.orders.On("List", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))
	m.referrals.On("List", mock.Anything, mock.Anything).Return([]*domain.Referral{}, nil)

	resp, err := s.OrderAnalytics(context.Background(), AnalyticsQuery{})

	assert.Nil(t, resp)
	assert.ErrorContains(t, err, "timeout")
}

func TestOrderAnalytics_EmptyReport(t *testing.T) {
	s, m := newAnalyticsService()
	m.orders.On("List", mock.Anything, repository.ListFilter{Limit: 250}).Return([]*domain.Order{}, nil)
	m.referrals.On("List", mock.Anything, mock.Anything).Return([]*domain.Referral{}, nil)

	resp, err := s.OrderAnalytics(context.Background(), AnalyticsQuery{Limit: 500})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 250, resp.Metadata.Limit)
	assert.Equal(t, 0.0, resp.Data.ConversionMetrics.ConversionRate)
	assert.Equal(t, 0.0, resp.Data.AverageOrderValues.OverallAOV)
	assert.Equal(t, attribution.DefaultCurrency, resp.Data.Summary.Currency)
}

func TestJourneyAnalytics(t *testing.T) {
	s, m := newAnalyticsService()

	events := []*domain.JourneyEvent{
		{SessionID: "s1", EventType: domain.EventPurchase, OccurredAt: reportTime.Add(-time.Minute)},
		{SessionID: "s1", EventType: domain.EventPageView, PageURL: "/", OccurredAt: reportTime.Add(-time.Hour)},
	}
	m.journeys.On("List", mock.Anything, repository.JourneyFilter{
		ListFilter:     repository.ListFilter{Limit: 50},
		BusinessDomain: "shop.example.com",
		EventType:      "purchase",
	}).Return(events, nil)

	resp, err := s.JourneyAnalytics(context.Background(), AnalyticsQuery{
		BusinessDomain: "shop.example.com",
		EventType:      "purchase",
		Limit:          5,
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Data.Summary.TotalSessions)
	assert.Equal(t, 1, resp.Data.Summary.TotalPurchases)
	assert.Equal(t, 2, resp.Metadata.RecordCount)
}

func TestJourneyFetchLimit(t *testing.T) {
	assert.Equal(t, 10, JourneyFetchLimit(1))
	assert.Equal(t, 250, JourneyFetchLimit(25))
	assert.Equal(t, 250, JourneyFetchLimit(100))
}

func TestCheckoutDebug(t *testing.T) {
	s, m := newAnalyticsService()

	m.businesses.On("GetByID", mock.Anything, "biz-1").Return(shop, nil)
	m.checkouts.On("List", mock.Anything, mock.AnythingOfType("repository.ListFilter")).
		Return([]*domain.Checkout{{ID: "c1", SourceName: "ipick"}}, nil)
	m.orders.On("List", mock.Anything, mock.MatchedBy(func(f repository.ListFilter) bool {
		return f.Limit == debugFetchLimit && len(f.BusinessIDs) == 1 && f.BusinessIDs[0] == "biz-1"
	})).Return([]*domain.Order{}, nil)
	m.referrals.On("List", mock.Anything, mock.Anything).Return([]*domain.Referral{}, nil)

	report, err := s.CheckoutDebug(context.Background(), "biz-1")

	require.NoError(t, err)
	assert.Equal(t, "biz-1", report.BusinessID)
	assert.Equal(t, 1, report.Summary.TotalCheckouts)
	assert.Equal(t, 1, report.Summary.IPickDetectedCheckouts)
	m.orders.AssertExpectations(t)
}

func TestCheckoutDebug_UnknownBusiness(t *testing.T) {
	s, m := newAnalyticsService()
	m.businesses.On("GetByID", mock.Anything, "missing").Return(nil, nil)

	report, err := s.CheckoutDebug(context.Background(), "missing")

	assert.Nil(t, report)
	assert.ErrorIs(t, err, domain.ErrBusinessNotFound)
}
