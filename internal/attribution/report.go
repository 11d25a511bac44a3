package attribution

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/domain"
)

// DefaultCurrency is reported when there are no orders to take it from.
const DefaultCurrency = "EUR"

// OrderReport summarizes how orders split between affiliate and direct traffic.
type OrderReport struct {
	Summary            Summary               `json:"summary"`
	ConversionMetrics  ConversionMetrics     `json:"conversion_metrics"`
	AverageOrderValues AverageOrderValues    `json:"average_order_values"`
	DetectionMethods   DetectionMethodCounts `json:"detection_methods"`
	TimeBasedAnalysis  TimeBasedAnalysis     `json:"time_based_analysis"`
	AffiliateOrders    []AffiliateOrderRow   `json:"affiliate_orders"`
	DirectOrders       []DirectOrderRow      `json:"direct_orders"`
}

type Summary struct {
	TotalOrders         int     `json:"total_orders"`
	AffiliateOrderCount int     `json:"affiliate_order_count"`
	DirectOrderCount    int     `json:"direct_order_count"`
	AffiliatePercentage float64 `json:"affiliate_percentage"`
	TotalRevenue        float64 `json:"total_revenue"`
	AffiliateRevenue    float64 `json:"affiliate_revenue"`
	DirectRevenue       float64 `json:"direct_revenue"`
	Currency            string  `json:"currency"`
}

type ConversionMetrics struct {
	TotalReferrals     int     `json:"total_referrals"`
	ConvertedReferrals int     `json:"converted_referrals"`
	PendingReferrals   int     `json:"pending_referrals"`
	AbandonedReferrals int     `json:"abandoned_referrals"`
	ConversionRate     float64 `json:"conversion_rate"`
	AbandonmentRate    float64 `json:"abandonment_rate"`
}

type AverageOrderValues struct {
	AffiliateAOV float64 `json:"affiliate_aov"`
	DirectAOV    float64 `json:"direct_aov"`
	OverallAOV   float64 `json:"overall_aov"`
}

type DetectionMethodCounts struct {
	UTMParameters int `json:"utm_parameters"`
	TimingMatch   int `json:"timing_match"`
	SourceName    int `json:"source_name"`
}

type TimeBasedAnalysis struct {
	Last7Days  WindowStats `json:"last_7_days"`
	Last30Days WindowStats `json:"last_30_days"`
}

// WindowStats covers orders created at or after the start of a rolling window.
type WindowStats struct {
	AffiliateOrders  int     `json:"affiliate_orders"`
	DirectOrders     int     `json:"direct_orders"`
	AffiliateRevenue float64 `json:"affiliate_revenue"`
	DirectRevenue    float64 `json:"direct_revenue"`
}

// ReferralSummary is the part of a matched referral shown next to an order.
type ReferralSummary struct {
	ID          string    `json:"id"`
	ReferralID  string    `json:"referral_id"`
	UTMSource   string    `json:"utm_source"`
	UTMMedium   string    `json:"utm_medium"`
	UTMCampaign string    `json:"utm_campaign"`
	ClickedAt   time.Time `json:"clicked_at"`
}

type AffiliateOrderRow struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Email           string           `json:"email,omitempty"`
	TotalPrice      string           `json:"total_price"`
	Currency        string           `json:"currency"`
	CreatedAt       time.Time        `json:"created_at"`
	DetectionMethod DetectionMethod  `json:"detection_method"`
	MatchedReferral *ReferralSummary `json:"matched_referral"`
}

type DirectOrderRow struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	TotalPrice string    `json:"total_price"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
	SourceURL  string    `json:"source_url,omitempty"`
	SourceName string    `json:"source_name,omitempty"`
}

// Aggregate builds the order report from classified orders and the referrals
// loaded for the same period. now anchors the rolling windows.
func Aggregate(classified []ClassifiedOrder, referrals []*domain.Referral, now time.Time) OrderReport {
	report := OrderReport{
		AffiliateOrders: make([]AffiliateOrderRow, 0),
		DirectOrders:    make([]DirectOrderRow, 0),
	}

	last7 := now.Add(-7 * 24 * time.Hour)
	last30 := now.Add(-30 * 24 * time.Hour)

	var (
		affiliateCount, directCount     int
		affiliateRevenue, directRevenue float64
		week, month                     WindowStats
	)

	for _, c := range classified {
		o := c.Order
		price := ParsePrice(o.TotalPrice)
		inWeek := !o.CreatedAt.Before(last7)
		inMonth := !o.CreatedAt.Before(last30)

		if c.IsAffiliate {
			affiliateCount++
			affiliateRevenue += price
			switch c.Method {
			case MethodUTMParameters:
				report.DetectionMethods.UTMParameters++
			case MethodTimingMatch:
				report.DetectionMethods.TimingMatch++
			case MethodSourceName:
				report.DetectionMethods.SourceName++
			}
			if inWeek {
				week.AffiliateOrders++
				week.AffiliateRevenue += price
			}
			if inMonth {
				month.AffiliateOrders++
				month.AffiliateRevenue += price
			}
			report.AffiliateOrders = append(report.AffiliateOrders, affiliateRow(c))
			continue
		}

		directCount++
		directRevenue += price
		if inWeek {
			week.DirectOrders++
			week.DirectRevenue += price
		}
		if inMonth {
			month.DirectOrders++
			month.DirectRevenue += price
		}
		report.DirectOrders = append(report.DirectOrders, DirectOrderRow{
			ID:         o.ID,
			Name:       o.Name,
			Email:      o.Email,
			TotalPrice: o.TotalPrice,
			Currency:   o.Currency,
			CreatedAt:  o.CreatedAt,
			SourceURL:  o.SourceURL,
			SourceName: o.SourceName,
		})
	}

	total := affiliateCount + directCount
	totalRevenue := affiliateRevenue + directRevenue

	currency := DefaultCurrency
	if len(classified) > 0 && classified[0].Order.Currency != "" {
		currency = classified[0].Order.Currency
	}

	report.Summary = Summary{
		TotalOrders:         total,
		AffiliateOrderCount: affiliateCount,
		DirectOrderCount:    directCount,
		AffiliatePercentage: Round2(percent(affiliateCount, total)),
		TotalRevenue:        Round2(totalRevenue),
		AffiliateRevenue:    Round2(affiliateRevenue),
		DirectRevenue:       Round2(directRevenue),
		Currency:            currency,
	}

	report.ConversionMetrics = conversionMetrics(referrals)

	report.AverageOrderValues = AverageOrderValues{
		AffiliateAOV: Round2(average(affiliateRevenue, affiliateCount)),
		DirectAOV:    Round2(average(directRevenue, directCount)),
		OverallAOV:   Round2(average(totalRevenue, total)),
	}

	report.TimeBasedAnalysis = TimeBasedAnalysis{
		Last7Days:  roundWindow(week),
		Last30Days: roundWindow(month),
	}

	return report
}

func conversionMetrics(referrals []*domain.Referral) ConversionMetrics {
	var m ConversionMetrics
	for _, r := range referrals {
		if r == nil {
			continue
		}
		m.TotalReferrals++
		switch r.ConversionStatus {
		case domain.ConversionConverted:
			m.ConvertedReferrals++
		case domain.ConversionPending:
			m.PendingReferrals++
		case domain.ConversionAbandoned:
			m.AbandonedReferrals++
		}
	}
	m.ConversionRate = Round2(percent(m.ConvertedReferrals, m.TotalReferrals))
	m.AbandonmentRate = Round2(percent(m.AbandonedReferrals, m.TotalReferrals))
	return m
}

func affiliateRow(c ClassifiedOrder) AffiliateOrderRow {
	o := c.Order
	row := AffiliateOrderRow{
		ID:              o.ID,
		Name:            o.Name,
		Email:           o.Email,
		TotalPrice:      o.TotalPrice,
		Currency:        o.Currency,
		CreatedAt:       o.CreatedAt,
		DetectionMethod: c.Method,
	}
	if r := c.MatchedReferral; r != nil {
		row.MatchedReferral = &ReferralSummary{
			ID:          r.ID,
			ReferralID:  r.ReferralID,
			UTMSource:   r.UTMSource,
			UTMMedium:   r.UTMMedium,
			UTMCampaign: r.UTMCampaign,
			ClickedAt:   r.ClickedAt,
		}
	}
	return row
}

func roundWindow(w WindowStats) WindowStats {
	w.AffiliateRevenue = Round2(w.AffiliateRevenue)
	w.DirectRevenue = Round2(w.DirectRevenue)
	return w
}

// ParsePrice reads the leading decimal number of a platform price string,
// so "12.50 EUR" is 12.5. No leading number, or a non-finite one, counts
// as zero.
func ParsePrice(s string) float64 {
	f, err := strconv.ParseFloat(numericPrefix(strings.TrimSpace(s)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// numericPrefix returns the longest leading [+-]digits[.digits][e[+-]digits].
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return ""
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	return s[:i]
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func average(sum float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
