package domain

import (
	"errors"
	"strings"
	"time"
)

// Business is a merchant whose storefront receives affiliate traffic.
// A business is matched by its primary domain or by its platform shop
// domain (e.g. "acme.myshopify.com").
type Business struct {
	ID         string    `json:"id"`
	Domain     string    `json:"domain"`
	ShopDomain string    `json:"shop_domain"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

var (
	ErrBusinessNotFound = errors.New("business domain not found")
	ErrEmptyDomain      = errors.New("business domain cannot be empty")
)

// NormalizeDomain lower-cases a hostname and strips a single leading "www.".
// No other rewriting happens: subdomains stay distinct businesses.
func NormalizeDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

// Matches reports whether the normalized domain belongs to this business.
func (b *Business) Matches(domain string) bool {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return false
	}
	return NormalizeDomain(b.Domain) == domain || NormalizeDomain(b.ShopDomain) == domain
}

// Validate checks the fields required before a business is stored.
func (b *Business) Validate() error {
	if NormalizeDomain(b.Domain) == "" {
		return ErrEmptyDomain
	}
	return nil
}

// NewBusiness creates a business with its domains normalized.
func NewBusiness(domain, shopDomain, name string) *Business {
	return &Business{
		Domain:     NormalizeDomain(domain),
		ShopDomain: NormalizeDomain(shopDomain),
		Name:       name,
		CreatedAt:  time.Now(),
	}
}
