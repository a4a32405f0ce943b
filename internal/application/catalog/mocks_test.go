package catalog

import (
	"context"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockProductRepository is a mock implementation of catalog.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Upsert(ctx context.Context, p *catalog.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindBySupplierProductID(ctx context.Context, id string) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context, filter shared.Filter) ([]catalog.Product, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]catalog.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductRepository) FindVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Variant, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]catalog.Variant), args.Error(1)
}

func (m *MockProductRepository) ListStockTargets(ctx context.Context, offset, limit int) ([]catalog.Variant, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).([]catalog.Variant), args.Error(1)
}

func (m *MockProductRepository) UpdateVariantStock(ctx context.Context, stock map[uuid.UUID]int) error {
	return m.Called(ctx, stock).Error(0)
}

// MockSupplierClient is a mock implementation of supplier.Client
type MockSupplierClient struct {
	mock.Mock
}

func (m *MockSupplierClient) ListProducts(ctx context.Context, q supplier.ListQuery) (*supplier.ListPage, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supplier.ListPage), args.Error(1)
}

func (m *MockSupplierClient) GetProduct(ctx context.Context, id string) (supplier.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(supplier.Record), args.Error(1)
}

func (m *MockSupplierClient) QueryStock(ctx context.Context, ids []string) ([]supplier.StockLevel, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]supplier.StockLevel), args.Error(1)
}

func (m *MockSupplierClient) CreateOrder(ctx context.Context, req supplier.CreateOrderRequest) (*supplier.CreateOrderResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supplier.CreateOrderResult), args.Error(1)
}

// countingPacer records how often the service paced
type countingPacer struct {
	waits int
	err   error
}

func (p *countingPacer) Wait(context.Context) error {
	p.waits++
	return p.err
}
