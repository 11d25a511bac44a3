package service

import (
	"context"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/repository"

	"github.com/stretchr/testify/mock"
)

// ==================== MOCKS ====================

type MockBusinessRepository struct {
	mock.Mock
}

func (m *MockBusinessRepository) GetByDomain(ctx context.Context, host string) (*domain.Business, error) {
	args := m.Called(ctx, host)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Business), args.Error(1)
}

func (m *MockBusinessRepository) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Business), args.Error(1)
}

func (m *MockBusinessRepository) Create(ctx context.Context, business *domain.Business) error {
	args := m.Called(ctx, business)
	return args.Error(0)
}

type MockReferralRepository struct {
	mock.Mock
}

func (m *MockReferralRepository) Create(ctx context.Context, referral *domain.Referral) error {
	args := m.Called(ctx, referral)
	return args.Error(0)
}

func (m *MockReferralRepository) List(ctx context.Context, filter repository.ListFilter) ([]*domain.Referral, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Referral), args.Error(1)
}

func (m *MockReferralRepository) GetByReferralID(ctx context.Context, referralID string) (*domain.Referral, error) {
	args := m.Called(ctx, referralID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Referral), args.Error(1)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Upsert(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) List(ctx context.Context, filter repository.ListFilter) ([]*domain.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

type MockCheckoutRepository struct {
	mock.Mock
}

func (m *MockCheckoutRepository) Upsert(ctx context.Context, checkout *domain.Checkout) error {
	args := m.Called(ctx, checkout)
	return args.Error(0)
}

func (m *MockCheckoutRepository) List(ctx context.Context, filter repository.ListFilter) ([]*domain.Checkout, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Checkout), args.Error(1)
}

type MockJourneyRepository struct {
	mock.Mock
}

func (m *MockJourneyRepository) Create(ctx context.Context, event *domain.JourneyEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockJourneyRepository) List(ctx context.Context, filter repository.JourneyFilter) ([]*domain.JourneyEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.JourneyEvent), args.Error(1)
}

type MockBusinessCache struct {
	mock.Mock
}

func (m *MockBusinessCache) GetBusiness(ctx context.Context, host string) (*domain.Business, bool, error) {
	args := m.Called(ctx, host)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Business), args.Bool(1), args.Error(2)
}

func (m *MockBusinessCache) SetBusiness(ctx context.Context, host string, business *domain.Business) error {
	args := m.Called(ctx, host, business)
	return args.Error(0)
}

type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Forward(ctx context.Context, event *domain.TrackingEvent, headers map[string]string) error {
	args := m.Called(ctx, event, headers)
	return args.Error(0)
}

type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) Archive(ctx context.Context, id string, receivedAt time.Time, payload []byte) error {
	args := m.Called(ctx, id, receivedAt, payload)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event *domain.JourneyEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockDeduplicator struct {
	mock.Mock
}

func (m *MockDeduplicator) FirstSeen(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
