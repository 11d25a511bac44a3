package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/attribution"
	"github.com/dzekuza/pav4-sub004/internal/domain"
)

const (
	topListSize       = 10
	recentJourneySize = 20
	unknownPage       = "Unknown"
	unknownProduct    = "Unknown Product"
	ipickDomainMarker = "ipick.io"
)

// JourneyReport summarizes customer-journey events for a period.
type JourneyReport struct {
	Summary          JourneySummary   `json:"summary"`
	TopPages         TopPages         `json:"top_pages"`
	TrafficSources   TrafficSources   `json:"traffic_sources"`
	ProductAnalytics ProductAnalytics `json:"product_analytics"`
	CustomerBehavior CustomerBehavior `json:"customer_behavior"`
	RecentJourneys   []JourneySession `json:"recent_journeys"`
	FunnelAnalysis   FunnelAnalysis   `json:"funnel_analysis"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

type JourneySummary struct {
	TotalSessions    int     `json:"total_sessions"`
	UniqueVisitors   int     `json:"unique_visitors"`
	TotalPageViews   int     `json:"total_page_views"`
	TotalPurchases   int     `json:"total_purchases"`
	ConversionRate   float64 `json:"conversion_rate"`
	BounceRate       float64 `json:"bounce_rate"`
	AverageCartValue float64 `json:"average_cart_value"`
}

type TopPages struct {
	EntryPages []Count `json:"entry_pages"`
	ExitPages  []Count `json:"exit_pages"`
}

type TrafficSources struct {
	Sources        []Count `json:"sources"`
	Campaigns      []Count `json:"campaigns"`
	IPickReferrals int     `json:"ipick_referrals"`
	TotalReferrals int     `json:"total_referrals"`
}

type ProductAnalytics struct {
	MostViewed []ProductStats `json:"most_viewed"`
}

type ProductStats struct {
	ProductID      string  `json:"product_id"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	Views          int     `json:"views"`
	AddToCarts     int     `json:"add_to_carts"`
	ConversionRate float64 `json:"conversion_rate"`
}

type CustomerBehavior struct {
	AverageCartValue    float64 `json:"average_cart_value"`
	DiscountUsage       []Count `json:"discount_usage"`
	CheckoutAbandonment int     `json:"checkout_abandonment"`
}

// JourneySession is one session that viewed at least one page.
type JourneySession struct {
	SessionID   string    `json:"session_id"`
	Events      int       `json:"events"`
	HasPurchase bool      `json:"has_purchase"`
	TotalValue  float64   `json:"total_value"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Country     string    `json:"country,omitempty"`
	UTMSource   string    `json:"utm_source,omitempty"`
}

type FunnelAnalysis struct {
	Steps           FunnelSteps `json:"steps"`
	ConversionRates FunnelRates `json:"conversion_rates"`
}

type FunnelSteps struct {
	Visits         int `json:"visits"`
	ProductViews   int `json:"product_views"`
	AddToCarts     int `json:"add_to_carts"`
	CheckoutStarts int `json:"checkout_starts"`
	Purchases      int `json:"purchases"`
}

type FunnelRates struct {
	VisitToProductView   float64 `json:"visit_to_product_view"`
	ProductViewToAddCart float64 `json:"product_view_to_add_cart"`
	AddCartToCheckout    float64 `json:"add_cart_to_checkout"`
	CheckoutToPurchase   float64 `json:"checkout_to_purchase"`
}

type pageVisit struct {
	url string
	at  time.Time
}

type productView struct {
	name  string
	price float64
	views int
}

// BuildJourneyReport aggregates journey events, newest first as stored.
// Session ordering in the report follows the first appearance of each
// session in events.
func BuildJourneyReport(events []*domain.JourneyEvent, now time.Time) JourneyReport {
	var (
		sessionOrder   []string
		sessionEvents  = make(map[string][]*domain.JourneyEvent)
		pageOrder      []string
		sessionPages   = make(map[string][]pageVisit)
		visitors       = make(map[string]struct{})
		sources        = NewCounter()
		campaigns      = NewCounter()
		referrals      = NewCounter()
		discounts      = NewCounter()
		addToCarts     = NewCounter()
		productOrder   []string
		products       = make(map[string]*productView)
		ipickReferrals int
		cartSum        float64
		cartCount      int
		steps          FunnelSteps
		pageViews      int
	)

	for _, e := range events {
		if e == nil {
			continue
		}
		if _, seen := sessionEvents[e.SessionID]; !seen {
			sessionOrder = append(sessionOrder, e.SessionID)
		}
		sessionEvents[e.SessionID] = append(sessionEvents[e.SessionID], e)

		if e.UserID != "" {
			visitors[e.UserID] = struct{}{}
		}

		switch e.EventType {
		case domain.EventPageView:
			pageViews++
			if _, seen := sessionPages[e.SessionID]; !seen {
				pageOrder = append(pageOrder, e.SessionID)
			}
			sessionPages[e.SessionID] = append(sessionPages[e.SessionID], pageVisit{url: e.PageURL, at: e.OccurredAt})
		case domain.EventProductView:
			steps.ProductViews++
			if e.ProductID != "" {
				p, ok := products[e.ProductID]
				if !ok {
					name := e.ProductName
					if name == "" {
						name = unknownProduct
					}
					p = &productView{name: name, price: e.ProductPrice}
					products[e.ProductID] = p
					productOrder = append(productOrder, e.ProductID)
				}
				p.views++
			}
		case domain.EventAddToCart:
			steps.AddToCarts++
			addToCarts.Add(e.ProductID)
		case domain.EventCheckoutStart:
			steps.CheckoutStarts++
		case domain.EventPurchase:
			steps.Purchases++
		}

		sources.Add(e.UTMSource)
		campaigns.Add(e.UTMCampaign)
		if e.BusinessDomain != "" {
			referrals.Add(e.BusinessDomain)
			if strings.Contains(e.BusinessDomain, ipickDomainMarker) {
				ipickReferrals++
			}
		}
		discounts.Add(e.DiscountCode)

		if e.CartValue > 0 {
			cartSum += e.CartValue
			cartCount++
		}
	}

	sessions := len(sessionOrder)
	steps.Visits = sessions

	bouncing := 0
	for _, id := range sessionOrder {
		if len(sessionEvents[id]) == 1 {
			bouncing++
		}
	}

	entryPages, exitPages := NewCounter(), NewCounter()
	for _, id := range pageOrder {
		pages := sessionPages[id]
		sort.SliceStable(pages, func(i, j int) bool { return pages[i].at.Before(pages[j].at) })
		entryPages.Add(pageOrUnknown(pages[0].url))
		exitPages.Add(pageOrUnknown(pages[len(pages)-1].url))
	}

	averageCart := 0.0
	if cartCount > 0 {
		averageCart = cartSum / float64(cartCount)
	}

	report := JourneyReport{
		Summary: JourneySummary{
			TotalSessions:    sessions,
			UniqueVisitors:   len(visitors),
			TotalPageViews:   pageViews,
			TotalPurchases:   steps.Purchases,
			ConversionRate:   attribution.Round2(rate(steps.Purchases, sessions)),
			BounceRate:       attribution.Round2(rate(bouncing, sessions)),
			AverageCartValue: attribution.Round2(averageCart),
		},
		TopPages: TopPages{
			EntryPages: entryPages.Top(topListSize),
			ExitPages:  exitPages.Top(topListSize),
		},
		TrafficSources: TrafficSources{
			Sources:        sources.Top(topListSize),
			Campaigns:      campaigns.Top(topListSize),
			IPickReferrals: ipickReferrals,
			TotalReferrals: referrals.Total(),
		},
		ProductAnalytics: ProductAnalytics{
			MostViewed: mostViewed(productOrder, products, addToCarts),
		},
		CustomerBehavior: CustomerBehavior{
			AverageCartValue:    attribution.Round2(averageCart),
			DiscountUsage:       discounts.Top(topListSize),
			CheckoutAbandonment: steps.CheckoutStarts - steps.Purchases,
		},
		RecentJourneys: recentJourneys(pageOrder, sessionPages, sessionEvents),
		FunnelAnalysis: FunnelAnalysis{
			Steps: steps,
			ConversionRates: FunnelRates{
				VisitToProductView:   attribution.Round2(rate(steps.ProductViews, steps.Visits)),
				ProductViewToAddCart: attribution.Round2(rate(steps.AddToCarts, steps.ProductViews)),
				AddCartToCheckout:    attribution.Round2(rate(steps.CheckoutStarts, steps.AddToCarts)),
				CheckoutToPurchase:   attribution.Round2(rate(steps.Purchases, steps.CheckoutStarts)),
			},
		},
		GeneratedAt: now,
	}

	return report
}

func mostViewed(order []string, products map[string]*productView, addToCarts *Counter) []ProductStats {
	out := make([]ProductStats, 0, len(order))
	for _, id := range order {
		p := products[id]
		carts := addToCarts.Get(id)
		out = append(out, ProductStats{
			ProductID:      id,
			Name:           p.name,
			Price:          p.price,
			Views:          p.views,
			AddToCarts:     carts,
			ConversionRate: attribution.Round2(rate(carts, p.views)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Views > out[j].Views })
	if len(out) > topListSize {
		out = out[:topListSize]
	}
	return out
}

func recentJourneys(order []string, pages map[string][]pageVisit, events map[string][]*domain.JourneyEvent) []JourneySession {
	if len(order) > recentJourneySize {
		order = order[:recentJourneySize]
	}

	out := make([]JourneySession, 0, len(order))
	for _, id := range order {
		sessionEvents := events[id]
		visits := pages[id]

		js := JourneySession{
			SessionID: id,
			Events:    len(sessionEvents),
			StartTime: visits[0].at,
			EndTime:   visits[len(visits)-1].at,
		}
		for _, e := range sessionEvents {
			if e.EventType == domain.EventPurchase {
				js.HasPurchase = true
			}
			js.TotalValue += e.CartValue
		}
		js.TotalValue = attribution.Round2(js.TotalValue)
		if len(sessionEvents) > 0 {
			js.Country = sessionEvents[0].Country
			js.UTMSource = sessionEvents[0].UTMSource
		}
		out = append(out, js)
	}
	return out
}

func pageOrUnknown(url string) string {
	if url == "" {
		return unknownPage
	}
	return url
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
