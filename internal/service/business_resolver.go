package service

import (
	"context"
	"fmt"

	"github.com/dzekuza/pav4-sub004/internal/attribution"
	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/repository"
	"github.com/dzekuza/pav4-sub004/pkg/logger"
)

// BusinessCache caches business lookups by normalized domain.
// found reports a cache hit; a hit may carry a nil business (known miss).
type BusinessCache interface {
	GetBusiness(ctx context.Context, host string) (business *domain.Business, found bool, err error)
	SetBusiness(ctx context.Context, host string, business *domain.Business) error
}

// BusinessResolver maps hostnames to registered businesses
// using the cache-aside pattern over the business repository.
type BusinessResolver struct {
	repo   repository.BusinessRepository
	cache  BusinessCache // nil when Redis is disabled
	logger *logger.Logger
}

// NewBusinessResolver creates a resolver. cache may be nil.
func NewBusinessResolver(repo repository.BusinessRepository, cache BusinessCache, log *logger.Logger) *BusinessResolver {
	return &BusinessResolver{repo: repo, cache: cache, logger: log}
}

// Resolve returns the business registered for hostname, or nil when there is
// none. Cache failures are logged and ignored; storage failures are returned.
func (r *BusinessResolver) Resolve(ctx context.Context, hostname string) (*domain.Business, error) {
	host := domain.NormalizeDomain(hostname)
	if attribution.IsSentinelDomain(host) {
		return nil, nil
	}

	log := r.logger.WithContext(ctx)

	if r.cache != nil {
		business, found, err := r.cache.GetBusiness(ctx, host)
		if err != nil {
			log.Warn("business cache read failed", "domain", host, "error", err)
		} else if found {
			return business, nil
		}
	}

	business, err := r.repo.GetByDomain(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve business %s: %w", host, err)
	}

	if r.cache != nil {
		if err := r.cache.SetBusiness(ctx, host, business); err != nil {
			log.Warn("business cache write failed", "domain", host, "error", err)
		}
	}

	return business, nil
}

// ResolveByID looks a business up by id, bypassing the cache.
func (r *BusinessResolver) ResolveByID(ctx context.Context, id string) (*domain.Business, error) {
	if id == "" {
		return nil, nil
	}
	business, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get business %s: %w", id, err)
	}
	return business, nil
}
