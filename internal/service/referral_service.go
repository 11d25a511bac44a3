package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/attribution"
	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/metrics"
	"github.com/dzekuza/pav4-sub004/internal/repository"
	"github.com/dzekuza/pav4-sub004/pkg/logger"
	"github.com/dzekuza/pav4-sub004/pkg/validator"
)

// ErrInvalidInput marks request errors the caller can fix.
var ErrInvalidInput = errors.New("invalid input")

// Click outcomes reported to metrics
const (
	outcomeMatched   = "matched"
	outcomeUnmatched = "unmatched"
	outcomeError     = "error"
)

const (
	tokenSuffixLength = 6
	tokenAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Click is an incoming affiliate link visit.
type Click struct {
	AffiliateID  string
	RawTargetURL string
	Referrer     string
	UserAgent    string
	ClientIP     string
}

// ClickResult describes where a click is sent.
type ClickResult struct {
	Redirect       attribution.RedirectTarget
	RefToken       string
	BusinessDomain string
	Business       *domain.Business // nil when no business matched
}

// ReferralService records affiliate clicks and builds their redirects
type ReferralService struct {
	resolver  *BusinessResolver
	referrals repository.ReferralRepository
	composer  *attribution.Composer
	logger    *logger.Logger

	now      func() time.Time
	newToken func(affiliateID string, now time.Time) string
}

// NewReferralService creates a new referral service
func NewReferralService(resolver *BusinessResolver, referrals repository.ReferralRepository, composer *attribution.Composer, log *logger.Logger) *ReferralService {
	return &ReferralService{
		resolver:  resolver,
		referrals: referrals,
		composer:  composer,
		logger:    log,
		now:       time.Now,
		newToken:  NewReferralToken,
	}
}

// HandleClick runs the redirect flow for one click: decode the target,
// resolve the business, record the referral and compose the redirect.
// Only an invalid affiliate id is reported as an error.
func (s *ReferralService) HandleClick(ctx context.Context, click Click) (*ClickResult, error) {
	if err := validator.ValidateAffiliateID(click.AffiliateID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	log := s.logger.WithContext(ctx)
	now := s.now()

	var target string
	decoded := true
	if click.RawTargetURL != "" {
		target, decoded = attribution.DecodeTargetURL(click.RawTargetURL)
		if !decoded {
			log.Warn("target url could not be decoded", "raw", click.RawTargetURL)
		}
	}
	host := attribution.ExtractDomain(target, decoded)
	if !attribution.IsSentinelDomain(host) {
		host = domain.NormalizeDomain(host)
	}

	business, err := s.resolver.Resolve(ctx, host)
	outcome := outcomeMatched
	switch {
	case err != nil:
		log.Error("business lookup failed", "domain", host, "error", err)
		business = nil
		outcome = outcomeError
	case business == nil:
		outcome = outcomeUnmatched
	}
	metrics.RecordClick(outcome)

	token := s.RecordReferral(ctx, business, domain.ClickContext{
		AffiliateID: click.AffiliateID,
		TargetURL:   target,
		SourceURL:   click.Referrer,
		UserAgent:   click.UserAgent,
		ClientIP:    click.ClientIP,
		Timestamp:   now,
	})

	redirect := s.composer.Compose(target, host, click.AffiliateID, token, now)
	metrics.RecordRedirect(string(redirect.Tier))

	log.Info("affiliate click",
		"affiliate_id", click.AffiliateID,
		"domain", host,
		"outcome", outcome,
		"tier", redirect.Tier,
		"ref_token", token,
	)

	return &ClickResult{
		Redirect:       redirect,
		RefToken:       token,
		BusinessDomain: host,
		Business:       business,
	}, nil
}

// RecordReferral stores a pending referral for business and returns its
// reference token. Without a business nothing is stored. Storage failures
// are logged and counted, never returned.
func (s *ReferralService) RecordReferral(ctx context.Context, business *domain.Business, click domain.ClickContext) string {
	token := s.newToken(click.AffiliateID, click.Timestamp)
	log := s.logger.WithContext(ctx)

	if business == nil {
		log.Info("no business matched click, referral not stored",
			"affiliate_id", click.AffiliateID,
			"target_url", click.TargetURL,
			"ref_token", token,
		)
		return token
	}

	var host string
	if click.TargetURL != "" {
		if h := attribution.ExtractDomain(click.TargetURL, true); !attribution.IsSentinelDomain(h) {
			host = domain.NormalizeDomain(h)
		}
	}

	referral := domain.NewReferral(business, token, host, click)
	if err := s.referrals.Create(ctx, referral); err != nil {
		metrics.RecordReferralPersistError()
		log.Error("failed to store referral",
			"business_id", business.ID,
			"ref_token", token,
			"error", err,
		)
		return token
	}

	metrics.RecordReferralRecorded()
	return token
}

// NewReferralToken returns ref_{affiliateID}_{epochMillis}_{suffix} with a
// random lower-case alphanumeric suffix.
func NewReferralToken(affiliateID string, now time.Time) string {
	return fmt.Sprintf("ref_%s_%d_%s", affiliateID, now.UnixMilli(), randomSuffix(tokenSuffixLength))
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	limit := big.NewInt(int64(len(tokenAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			idx = big.NewInt(int64(time.Now().UnixNano() % int64(len(tokenAlphabet))))
		}
		b[i] = tokenAlphabet[idx.Int64()]
	}
	return string(b)
}
