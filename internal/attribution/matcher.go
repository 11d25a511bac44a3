package attribution

import (
	"net/url"
	"strings"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/domain"
)

// DetectionMethod names the rule that attributed an order.
type DetectionMethod string

const (
	MethodUTMParameters DetectionMethod = "utm_parameters"
	MethodTimingMatch   DetectionMethod = "timing_match"
	MethodSourceName    DetectionMethod = "source_name"
	MethodNone          DetectionMethod = "none"
)

// UTM values that storefront suggestion links carry. They are not the values
// the redirect flow stamps (see domain.ReferralUTMSource and friends), so
// orders reached through /ref are usually picked up by timing instead.
const (
	SuggestionUTMSource   = "ipick"
	SuggestionUTMMedium   = "suggestion"
	SuggestionUTMCampaign = "business_tracking"
)

// AttributionWindow is the longest click-to-order gap credited to a referral.
const AttributionWindow = 48 * time.Hour

var affiliateSourceNames = []string{"ipick", "pavlo", "price comparison"}

// ClassifiedOrder is the attribution decision for one order.
type ClassifiedOrder struct {
	Order           *domain.Order
	IsAffiliate     bool
	MatchedReferral *domain.Referral
	Method          DetectionMethod
}

// Rule attributes an order, optionally to a specific referral.
// converted holds only the referrals with a converted status, in input order.
type Rule struct {
	Method DetectionMethod
	Match  func(order *domain.Order, converted []*domain.Referral) (bool, *domain.Referral)
}

// Matcher evaluates its rules in order; the first matching rule wins.
type Matcher struct {
	rules []Rule
}

// NewMatcher creates a matcher. Without rules it uses DefaultRules.
func NewMatcher(rules ...Rule) *Matcher {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Matcher{rules: rules}
}

// DefaultRules returns UTM, timing and source-name detection, in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Method: MethodUTMParameters, Match: matchUTM},
		{Method: MethodTimingMatch, Match: matchTiming},
		{Method: MethodSourceName, Match: matchSourceName},
	}
}

// Classify attributes every order. The result has one entry per order, in
// input order.
func (m *Matcher) Classify(orders []*domain.Order, referrals []*domain.Referral) []ClassifiedOrder {
	converted := make([]*domain.Referral, 0, len(referrals))
	for _, r := range referrals {
		if r != nil && r.IsConverted() {
			converted = append(converted, r)
		}
	}

	out := make([]ClassifiedOrder, 0, len(orders))
	for _, order := range orders {
		if order == nil {
			continue
		}
		out = append(out, m.classify(order, converted))
	}
	return out
}

func (m *Matcher) classify(order *domain.Order, converted []*domain.Referral) ClassifiedOrder {
	for _, rule := range m.rules {
		if ok, ref := rule.Match(order, converted); ok {
			return ClassifiedOrder{
				Order:           order,
				IsAffiliate:     true,
				MatchedReferral: ref,
				Method:          rule.Method,
			}
		}
	}
	return ClassifiedOrder{Order: order, Method: MethodNone}
}

func matchUTM(order *domain.Order, _ []*domain.Referral) (bool, *domain.Referral) {
	if order.SourceURL == "" {
		return false, nil
	}
	u, err := url.Parse(order.SourceURL)
	if err != nil || !u.IsAbs() {
		return false, nil
	}
	q := u.Query()
	return q.Get("utm_source") == SuggestionUTMSource &&
		q.Get("utm_medium") == SuggestionUTMMedium &&
		q.Get("utm_campaign") == SuggestionUTMCampaign, nil
}

// matchTiming takes the first converted referral clicked at most
// AttributionWindow before the order, not the closest one.
func matchTiming(order *domain.Order, converted []*domain.Referral) (bool, *domain.Referral) {
	for _, ref := range converted {
		if ref.ClickedAt.IsZero() {
			continue
		}
		diff := order.CreatedAt.Sub(ref.ClickedAt)
		if diff >= 0 && diff <= AttributionWindow {
			return true, ref
		}
	}
	return false, nil
}

func matchSourceName(order *domain.Order, _ []*domain.Referral) (bool, *domain.Referral) {
	name := strings.ToLower(order.SourceName)
	if name == "" {
		return false, nil
	}
	for _, s := range affiliateSourceNames {
		if strings.Contains(name, s) {
			return true, nil
		}
	}
	return false, nil
}
