package attribution

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/domain"
)

// DefaultErrorPageURL receives clicks whose destination could not be determined.
const DefaultErrorPageURL = "https://ipick.io/referral-error"

// Tier names the fallback level that produced a redirect.
type Tier string

const (
	TierTarget         Tier = "target"
	TierBusinessDomain Tier = "business_domain"
	TierErrorPage      Tier = "error_page"
)

// RedirectTarget is the composed redirect destination.
type RedirectTarget struct {
	URL     string
	Tier    Tier
	Skipped []string // tracking parameters the destination already defined
}

// Composer decorates redirect destinations with tracking parameters.
type Composer struct {
	errorPage *url.URL
	logger    *slog.Logger
}

// NewComposer creates a composer. An empty or invalid error page URL falls
// back to DefaultErrorPageURL.
func NewComposer(errorPageURL string, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	page, ok := absoluteURL(strings.TrimSpace(errorPageURL))
	if !ok {
		if errorPageURL != "" {
			logger.Warn("invalid error page url, using default", "url", errorPageURL)
		}
		page = DefaultErrorPageURL
	}
	u, _ := url.Parse(page)
	return &Composer{errorPage: u, logger: logger}
}

type param struct {
	key   string
	value string
}

func trackingParams(affiliateID, refToken string, now time.Time) []param {
	return []param{
		{"utm_source", domain.ReferralUTMSource},
		{"utm_medium", domain.ReferralUTMMedium},
		{"utm_campaign", domain.ReferralUTMCampaign},
		{"aff_id", affiliateID},
		{"ref_token", refToken},
		{"timestamp", strconv.FormatInt(now.UnixMilli(), 10)},
	}
}

// Compose builds the redirect URL for a click. The decoded target wins when
// it is a valid absolute URL, then the business domain, then the error page.
// Parameters already present on the destination are never overwritten.
func (c *Composer) Compose(targetURL, businessDomain, affiliateID, refToken string, now time.Time) RedirectTarget {
	params := trackingParams(affiliateID, refToken, now)

	if target, ok := absoluteURL(targetURL); ok {
		if u, err := url.Parse(target); err == nil {
			return c.decorate(u, params, TierTarget)
		}
	}

	if !IsSentinelDomain(businessDomain) {
		candidate := businessDomain
		if !strings.Contains(candidate, "://") {
			candidate = "https://" + candidate
		}
		if fallback, ok := absoluteURL(candidate); ok {
			if u, err := url.Parse(fallback); err == nil {
				return c.decorate(u, params, TierBusinessDomain)
			}
		}
	}

	page := *c.errorPage
	return c.decorate(&page, params, TierErrorPage)
}

func (c *Composer) decorate(u *url.URL, params []param, tier Tier) RedirectTarget {
	existing := u.Query()

	var skipped []string
	var b strings.Builder
	b.WriteString(u.RawQuery)
	for _, p := range params {
		if existing.Has(p.key) {
			skipped = append(skipped, p.key)
			c.logger.Debug("tracking parameter already set on destination",
				"param", p.key,
				"existing", existing.Get(p.key),
			)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	u.RawQuery = b.String()

	return RedirectTarget{URL: u.String(), Tier: tier, Skipped: skipped}
}
