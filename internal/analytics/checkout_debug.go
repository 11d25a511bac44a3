package analytics

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/domain"
)

// Issue and recommendation texts reported by the checkout debug report.
const (
	IssueNoTrackingData     = "No referral tracking data present"
	IssueInvalidSourceURL   = "Invalid source URL format"
	IssueCheckoutIncomplete = "Checkout has value but not completed"
	IssueConversionAbandon  = "Conversion abandoned"

	RecommendNoActivity  = "No recent checkout or order activity found. Check if the shop is receiving traffic."
	RecommendNoIPick     = "No iPick referrals detected. Verify iPick integration and tracking parameters."
	RecommendNoReferrals = "No business referral records found. Check if referral tracking actions are being triggered."
)

const (
	lowCaptureRate    = 10.0
	lowConversionRate = 5.0
)

// CheckoutDebugReport explains how well a business's checkouts and orders
// carry referral tracking data.
type CheckoutDebugReport struct {
	BusinessID        string             `json:"business_id"`
	Timestamp         time.Time          `json:"timestamp"`
	Summary           DebugSummary       `json:"summary"`
	CheckoutAnalysis  []CheckoutAnalysis `json:"checkout_analysis"`
	OrderAnalysis     []OrderAnalysis    `json:"order_analysis"`
	BusinessReferrals []ReferralAnalysis `json:"business_referrals"`
	Patterns          DebugPatterns      `json:"patterns"`
	Recommendations   []string           `json:"recommendations"`
}

type DebugSummary struct {
	TotalCheckouts            int `json:"total_checkouts"`
	TotalOrders               int `json:"total_orders"`
	TotalBusinessReferrals    int `json:"total_business_referrals"`
	CheckoutsWithReferralData int `json:"checkouts_with_referral_data"`
	OrdersWithReferralData    int `json:"orders_with_referral_data"`
	IPickDetectedCheckouts    int `json:"ipick_detected_checkouts"`
	IPickDetectedOrders       int `json:"ipick_detected_orders"`
}

// Detection is the tracking-data verdict shared by checkout and order rows.
type Detection struct {
	HasReferralData  bool     `json:"has_referral_data"`
	IPickDetected    bool     `json:"ipick_detected"`
	DetectedPatterns []string `json:"detected_patterns"`
	Issues           []string `json:"issues"`
}

type CheckoutAnalysis struct {
	*domain.Checkout
	Detection
}

type OrderAnalysis struct {
	*domain.Order
	Detection
}

type ReferralAnalysis struct {
	*domain.Referral
	AgeDays       int      `json:"age_days"`
	HasConversion bool     `json:"has_conversion"`
	Issues        []string `json:"issues"`
}

type DebugPatterns struct {
	CommonSourceURLs        map[string]int `json:"common_source_urls"`
	CommonSourceNames       map[string]int `json:"common_source_names"`
	DetectedReferralSources []string       `json:"detected_referral_sources"`
}

// BuildCheckoutDebugReport inspects recent checkouts and orders of one
// business together with its referrals.
func BuildCheckoutDebugReport(businessID string, checkouts []*domain.Checkout, orders []*domain.Order, referrals []*domain.Referral, now time.Time) CheckoutDebugReport {
	report := CheckoutDebugReport{
		BusinessID:        businessID,
		Timestamp:         now,
		CheckoutAnalysis:  make([]CheckoutAnalysis, 0, len(checkouts)),
		OrderAnalysis:     make([]OrderAnalysis, 0, len(orders)),
		BusinessReferrals: make([]ReferralAnalysis, 0, len(referrals)),
		Recommendations:   make([]string, 0),
	}

	sourceURLs, sourceNames := NewCounter(), NewCounter()
	detected := newOrderedSet()

	track := func(sourceURL, sourceName string) {
		sourceURLs.Add(sourceURL)
		sourceNames.Add(sourceName)
	}

	for _, c := range checkouts {
		d := inspect(c.SourceURL, c.SourceName, c.SourceIdentifier)
		if d.HasReferralData {
			report.Summary.CheckoutsWithReferralData++
			track(c.SourceURL, c.SourceName)
		}
		if d.IPickDetected {
			report.Summary.IPickDetectedCheckouts++
			detected.add(firstNonEmpty(c.SourceURL, c.SourceName, "unknown"))
		}
		if !c.IsCompleted() && c.TotalPrice != "" {
			d.Issues = append(d.Issues, IssueCheckoutIncomplete)
		}
		report.CheckoutAnalysis = append(report.CheckoutAnalysis, CheckoutAnalysis{Checkout: c, Detection: d})
	}

	for _, o := range orders {
		d := inspect(o.SourceURL, o.SourceName, o.SourceIdentifier)
		if d.HasReferralData {
			report.Summary.OrdersWithReferralData++
			track(o.SourceURL, o.SourceName)
		}
		if d.IPickDetected {
			report.Summary.IPickDetectedOrders++
			detected.add(firstNonEmpty(o.SourceURL, o.SourceName, "unknown"))
		}
		if o.FinancialStatus != "paid" && o.TotalPrice != "" {
			d.Issues = append(d.Issues, fmt.Sprintf("Order not paid (status: %s)", o.FinancialStatus))
		}
		report.OrderAnalysis = append(report.OrderAnalysis, OrderAnalysis{Order: o, Detection: d})
	}

	converted := 0
	for _, r := range referrals {
		ra := ReferralAnalysis{
			Referral:      r,
			AgeDays:       int(math.Round(now.Sub(r.CreatedAt).Hours() / 24)),
			HasConversion: r.IsConverted(),
			Issues:        make([]string, 0),
		}
		if ra.HasConversion {
			converted++
		}
		if r.ConversionStatus == domain.ConversionAbandoned {
			ra.Issues = append(ra.Issues, IssueConversionAbandon)
		}
		report.BusinessReferrals = append(report.BusinessReferrals, ra)
	}

	report.Summary.TotalCheckouts = len(checkouts)
	report.Summary.TotalOrders = len(orders)
	report.Summary.TotalBusinessReferrals = len(referrals)

	report.Patterns = DebugPatterns{
		CommonSourceURLs:        sourceURLs.Map(),
		CommonSourceNames:       sourceNames.Map(),
		DetectedReferralSources: detected.items,
	}
	report.Recommendations = recommendations(report.Summary, converted)

	return report
}

func recommendations(s DebugSummary, converted int) []string {
	out := make([]string, 0)

	records := s.TotalCheckouts + s.TotalOrders
	if records == 0 {
		out = append(out, RecommendNoActivity)
	} else {
		capture := rate(s.CheckoutsWithReferralData+s.OrdersWithReferralData, records)
		if capture < lowCaptureRate {
			out = append(out, fmt.Sprintf("Low referral data capture rate (%.1f%%). Check if tracking scripts are properly installed.", capture))
		}
	}

	if s.IPickDetectedCheckouts == 0 && s.IPickDetectedOrders == 0 {
		out = append(out, RecommendNoIPick)
	}

	if s.TotalBusinessReferrals == 0 {
		out = append(out, RecommendNoReferrals)
	} else if conversion := rate(converted, s.TotalBusinessReferrals); conversion < lowConversionRate {
		out = append(out, fmt.Sprintf("Low conversion rate (%.1f%%). Review conversion tracking logic.", conversion))
	}

	return out
}

func inspect(sourceURL, sourceName, sourceIdentifier string) Detection {
	d := Detection{
		HasReferralData: sourceURL != "" || sourceName != "" || sourceIdentifier != "",
		Issues:          make([]string, 0),
	}
	d.IPickDetected, d.DetectedPatterns = DetectIPick(sourceURL, sourceName, sourceIdentifier)

	if !d.HasReferralData {
		d.Issues = append(d.Issues, IssueNoTrackingData)
	}
	if sourceURL != "" && !isValidURL(sourceURL) {
		d.Issues = append(d.Issues, IssueInvalidSourceURL)
	}
	return d
}

// DetectIPick looks for affiliate markers in the source fields the platform
// recorded. It returns a description of every marker found.
func DetectIPick(sourceURL, sourceName, sourceIdentifier string) (bool, []string) {
	patterns := make([]string, 0)

	if sourceURL != "" {
		if strings.Contains(sourceURL, "ipick") || strings.Contains(sourceURL, "i-pick") {
			patterns = append(patterns, "iPick domain detected in source URL")
		}
		if strings.Contains(sourceURL, "affiliate") || strings.Contains(sourceURL, "ref=") {
			patterns = append(patterns, "Affiliate parameter detected in source URL")
		}
	}

	if name := strings.ToLower(sourceName); name != "" {
		if strings.Contains(name, "ipick") || strings.Contains(name, "i-pick") {
			patterns = append(patterns, "iPick detected in source name")
		}
		if strings.Contains(name, "affiliate") || strings.Contains(name, "referral") {
			patterns = append(patterns, "Affiliate/referral detected in source name")
		}
	}

	if sourceIdentifier != "" {
		if strings.Contains(sourceIdentifier, "ipick") || strings.Contains(sourceIdentifier, "i-pick") {
			patterns = append(patterns, "iPick detected in source identifier")
		}
	}

	return len(patterns) > 0, patterns
}

func isValidURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && (u.Host != "" || u.Opaque != "")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: make([]string, 0)}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
