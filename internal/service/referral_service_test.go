package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/attribution"
	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/pkg/logger"
	"github.com/dzekuza/pav4-sub004/pkg/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var clickTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newReferralService(businesses *MockBusinessRepository, referrals *MockReferralRepository) *ReferralService {
	log := logger.Nop()
	s := NewReferralService(
		NewBusinessResolver(businesses, nil, log),
		referrals,
		attribution.NewComposer("", log.Logger),
		log,
	)
	s.now = func() time.Time { return clickTime }
	s.newToken = func(affiliateID string, now time.Time) string {
		return "ref_" + affiliateID + "_1717243200000_abc123"
	}
	return s
}

func TestHandleClick_EndToEnd(t *testing.T) {
	// Arrange
	businesses := new(MockBusinessRepository)
	referrals := new(MockReferralRepository)
	s := newReferralService(businesses, referrals)

	businesses.On("GetByDomain", mock.Anything, "shop.example.com").Return(shop, nil)
	referrals.On("Create", mock.Anything, mock.AnythingOfType("*domain.Referral")).Return(nil).Once()

	// Act
	result, err := s.HandleClick(context.Background(), Click{
		AffiliateID:  "aff123",
		RawTargetURL: "https%3A%2F%2Fshop.example.com%2Fp%2F1",
		UserAgent:    "Mozilla/5.0",
		ClientIP:     "203.0.113.7",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t,
		"https://shop.example.com/p/1?utm_source=ipick.io&utm_medium=referral&utm_campaign=business_referral"+
			"&aff_id=aff123&ref_token=ref_aff123_1717243200000_abc123&timestamp=1717243200000",
		result.Redirect.URL)
	assert.Equal(t, attribution.TierTarget, result.Redirect.Tier)
	assert.Equal(t, shop, result.Business)

	referrals.AssertNumberOfCalls(t, "Create", 1)
	ref := referrals.Calls[0].Arguments.Get(1).(*domain.Referral)
	assert.Equal(t, domain.ConversionPending, ref.ConversionStatus)
	assert.Equal(t, "ref_aff123_1717243200000_abc123", ref.ReferralID)
	assert.Equal(t, "biz-1", ref.BusinessID)
	assert.Equal(t, "shop.example.com", ref.BusinessDomain)
	assert.Equal(t, "https://shop.example.com/p/1", ref.TargetURL)
	assert.Equal(t, domain.DirectSource, ref.SourceURL)
	assert.Equal(t, "203.0.113.7", ref.IPAddress)
	assert.Equal(t, clickTime, ref.ClickedAt)
	assert.Equal(t, domain.ReferralUTMSource, ref.UTMSource)
}

func TestHandleClick_InvalidAffiliateID(t *testing.T) {
	businesses := new(MockBusinessRepository)
	referrals := new(MockReferralRepository)
	s := newReferralService(businesses, referrals)

	result, err := s.HandleClick(context.Background(), Click{AffiliateID: "bad id!"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, validator.ErrInvalidAffiliateID)
	businesses.AssertNotCalled(t, "GetByDomain", mock.Anything, mock.Anything)
	referrals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestHandleClick_UnknownBusinessStoresNothing(t *testing.T) {
	businesses := new(MockBusinessRepository)
	referrals := new(MockReferralRepository)
	s := newReferralService(businesses, referrals)

	businesses.On("GetByDomain", mock.Anything, "other.example.com").Return(nil, nil)

	result, err := s.HandleClick(context.Background(), Click{
		AffiliateID:  "aff1",
		RawTargetURL: "https://other.example.com/",
	})

	require.NoError(t, err)
	assert.Nil(t, result.Business)
	assert.Equal(t, attribution.TierTarget, result.Redirect.Tier)
	assert.Contains(t, result.Redirect.URL, "ref_token=ref_aff1_")
	referrals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestHandleClick_MissingTargetGoesToErrorPage(t *testing.T) {
	businesses := new(MockBusinessRepository)
	referrals := new(MockReferralRepository)
	s := newReferralService(businesses, referrals)

	result, err := s.HandleClick(context.Background(), Click{AffiliateID: "aff1"})

	require.NoError(t, err)
	assert.Equal(t, attribution.TierErrorPage, result.Redirect.Tier)
	assert.Equal(t, attribution.DomainUnknown, result.BusinessDomain)
	assert.Contains(t, result.Redirect.URL, attribution.DefaultErrorPageURL+"?utm_source=ipick.io")
	businesses.AssertNotCalled(t, "GetByDomain", mock.Anything, mock.Anything)
}

func TestHandleClick_UndecodableTarget(t *testing.T) {
	s := newReferralService(new(MockBusinessRepository), new(MockReferralRepository))

	result, err := s.HandleClick(context.Background(), Click{AffiliateID: "aff1", RawTargetURL: "%%%"})

	require.NoError(t, err)
	assert.Equal(t, attribution.DomainDecodeFailed, result.BusinessDomain)
	assert.Equal(t, attribution.TierErrorPage, result.Redirect.Tier)
}

func TestHandleClick_PersistFailureIsSwallowed(t *testing.T) {
	businesses := new(MockBusinessRepository)
	referrals := new(MockReferralRepository)
	s := newReferralService(businesses, referrals)

	businesses.On("GetByDomain", mock.Anything, "shop.example.com").Return(shop, nil)
	referrals.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

	result, err := s.HandleClick(context.Background(), Click{
		AffiliateID:  "aff1",
		RawTargetURL: "https://shop.example.com/",
	})

	require.NoError(t, err)
	assert.Equal(t, attribution.TierTarget, result.Redirect.Tier)
}

func TestHandleClick_LookupFailureDegradesToUnmatched(t *testing.T) {
	businesses := new(MockBusinessRepository)
	referrals := new(MockReferralRepository)
	s := newReferralService(businesses, referrals)

	businesses.On("GetByDomain", mock.Anything, "shop.example.com").Return(nil, errors.New("db down"))

	result, err := s.HandleClick(context.Background(), Click{
		AffiliateID:  "aff1",
		RawTargetURL: "https://shop.example.com/",
	})

	require.NoError(t, err)
	assert.Nil(t, result.Business)
	referrals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRecordReferral_NoBusiness(t *testing.T) {
	referrals := new(MockReferralRepository)
	s := newReferralService(new(MockBusinessRepository), referrals)

	token := s.RecordReferral(context.Background(), nil, domain.ClickContext{AffiliateID: "aff9", Timestamp: clickTime})

	assert.Equal(t, "ref_aff9_1717243200000_abc123", token)
	referrals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestNewReferralToken(t *testing.T) {
	token := NewReferralToken("aff-1", clickTime)
	assert.Regexp(t, `^ref_aff-1_1717243200000_[a-z0-9]{6}$`, token)
	assert.NotEqual(t, token, NewReferralToken("aff-1", clickTime))
}
