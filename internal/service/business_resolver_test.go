package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var shop = &domain.Business{ID: "biz-1", Domain: "shop.example.com", ShopDomain: "shop.myshopify.com", Name: "Shop"}

func TestResolve_CacheHit(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := new(MockBusinessRepository)
	cache := new(MockBusinessCache)
	resolver := NewBusinessResolver(repo, cache, logger.Nop())

	cache.On("GetBusiness", ctx, "shop.example.com").Return(shop, true, nil)

	// Act
	b, err := resolver.Resolve(ctx, "WWW.Shop.Example.com")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, shop, b)
	repo.AssertNotCalled(t, "GetByDomain", mock.Anything, mock.Anything)
	cache.AssertExpectations(t)
}

func TestResolve_CacheMissFillsCache(t *testing.T) {
	ctx := context.Background()
	repo := new(MockBusinessRepository)
	cache := new(MockBusinessCache)
	resolver := NewBusinessResolver(repo, cache, logger.Nop())

	cache.On("GetBusiness", ctx, "shop.example.com").Return(nil, false, nil)
	repo.On("GetByDomain", ctx, "shop.example.com").Return(shop, nil)
	cache.On("SetBusiness", ctx, "shop.example.com", shop).Return(nil)

	b, err := resolver.Resolve(ctx, "shop.example.com")

	require.NoError(t, err)
	assert.Equal(t, "biz-1", b.ID)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestResolve_CachedMiss(t *testing.T) {
	ctx := context.Background()
	repo := new(MockBusinessRepository)
	cache := new(MockBusinessCache)
	resolver := NewBusinessResolver(repo, cache, logger.Nop())

	cache.On("GetBusiness", ctx, "unknown.example.com").Return(nil, true, nil)

	b, err := resolver.Resolve(ctx, "unknown.example.com")

	require.NoError(t, err)
	assert.Nil(t, b)
	repo.AssertNotCalled(t, "GetByDomain", mock.Anything, mock.Anything)
}

func TestResolve_MissIsCachedAsTombstone(t *testing.T) {
	ctx := context.Background()
	repo := new(MockBusinessRepository)
	cache := new(MockBusinessCache)
	resolver := NewBusinessResolver(repo, cache, logger.Nop())

	cache.On("GetBusiness", ctx, "unknown.example.com").Return(nil, false, nil)
	repo.On("GetByDomain", ctx, "unknown.example.com").Return(nil, nil)
	cache.On("SetBusiness", ctx, "unknown.example.com", (*domain.Business)(nil)).Return(nil)

	b, err := resolver.Resolve(ctx, "unknown.example.com")

	require.NoError(t, err)
	assert.Nil(t, b)
	cache.AssertExpectations(t)
}

func TestResolve_CacheErrorsAreIgnored(t *testing.T) {
	ctx := context.Background()
	repo := new(MockBusinessRepository)
	cache := new(MockBusinessCache)
	resolver := NewBusinessResolver(repo, cache, logger.Nop())

	cache.On("GetBusiness", ctx, "shop.example.com").Return(nil, false, errors.New("redis down"))
	repo.On("GetByDomain", ctx, "shop.example.com").Return(shop, nil)
	cache.On("SetBusiness", ctx, "shop.example.com", shop).Return(errors.New("redis down"))

	b, err := resolver.Resolve(ctx, "shop.example.com")

	require.NoError(t, err)
	assert.Equal(t, shop, b)
}

func TestResolve_StorageError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockBusinessRepository)
	resolver := NewBusinessResolver(repo, nil, logger.Nop())

	dbErr := errors.New("connection reset")
	repo.On("GetByDomain", ctx, "shop.example.com").Return(nil, dbErr)

	b, err := resolver.Resolve(ctx, "shop.example.com")

	assert.Nil(t, b)
	assert.ErrorIs(t, err, dbErr)
}

func TestResolve_SentinelDomains(t *testing.T) {
	repo := new(MockBusinessRepository)
	resolver := NewBusinessResolver(repo, nil, logger.Nop())

	for _, host := range []string{"", "unknown", "invalid_url", "decode_failed"} {
		b, err := resolver.Resolve(context.Background(), host)
		assert.NoError(t, err)
		assert.Nil(t, b)
	}
	repo.AssertNotCalled(t, "GetByDomain", mock.Anything, mock.Anything)
}

func TestResolveByID(t *testing.T) {
	ctx := context.Background()
	repo := new(MockBusinessRepository)
	resolver := NewBusinessResolver(repo, nil, logger.Nop())

	repo.On("GetByID", ctx, "biz-1").Return(shop, nil)

	b, err := resolver.ResolveByID(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, shop, b)

	b, err = resolver.ResolveByID(ctx, "")
	assert.NoError(t, err)
	assert.Nil(t, b)
}
