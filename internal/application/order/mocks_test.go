package order

import (
	"context"
	"sync"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/payment"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memOrders is an order.Repository that honours the conditional update
type memOrders struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]order.Order
	updates int
	// beforeUpdate runs once, ahead of the next Update, to simulate a
	// concurrent writer
	beforeUpdate func(stored *order.Order)
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[uuid.UUID]order.Order)}
}

func (r *memOrders) put(o *order.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = snapshot(o)
}

// get returns a copy of the stored order
func (r *memOrders) get(id uuid.UUID) *order.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.orders[id]
	cp := snapshot(&stored)
	return &cp
}

func (r *memOrders) Create(_ context.Context, o *order.Order) error {
	r.put(o)
	return nil
}

func (r *memOrders) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := snapshot(&stored)
	return &cp, nil
}

func (r *memOrders) FindByPaymentReference(_ context.Context, reference string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.orders {
		if stored.PaymentReference == reference {
			cp := snapshot(&stored)
			return &cp, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (r *memOrders) Update(_ context.Context, o *order.Order, expected order.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[o.ID]
	if !ok {
		return order.ErrOrderNotFound
	}
	if hook := r.beforeUpdate; hook != nil {
		r.beforeUpdate = nil
		hook(&stored)
		r.orders[o.ID] = stored
	}
	if stored.Status != expected {
		return order.ErrConcurrentModification
	}
	r.orders[o.ID] = snapshot(o)
	r.updates++
	return nil
}

func snapshot(o *order.Order) order.Order {
	cp := *o
	cp.ClearDomainEvents()
	cp.Items = append([]order.Item(nil), o.Items...)
	cp.Notes = append([]order.Note(nil), o.Notes...)
	return cp
}

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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Variant), args.Error(1)
}

func (m *MockProductRepository) ListStockTargets(ctx context.Context, offset, limit int) ([]catalog.Variant, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).([]catalog.Variant), args.Error(1)
}

func (m *MockProductRepository) UpdateVariantStock(ctx context.Context, stock map[uuid.UUID]int) error {
	return m.Called(ctx, stock).Error(0)
}

// MockCharger is a mock implementation of payment.Charger
type MockCharger struct {
	mock.Mock
}

func (m *MockCharger) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ChargeResult), args.Error(1)
}

// MockGateway is a mock implementation of payment.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest, key string) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, req, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckoutSession), args.Error(1)
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

// recordingPublisher keeps every published event type
type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ev := range events {
		p.types = append(p.types, ev.EventType())
	}
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

// stubVerifier returns a fixed event, or err
type stubVerifier struct {
	event *payment.WebhookEvent
	err   error
}

func (v stubVerifier) Parse([]byte, string) (*payment.WebhookEvent, error) {
	if v.err != nil {
		return nil, v.err
	}
	cp := *v.event
	return &cp, nil
}

// stubLocker always refuses the lock
type stubLocker struct{ err error }

func (l stubLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, l.err
}

// fixtures

var (
	testVariantA = catalog.Variant{
		BaseEntity:        shared.BaseEntity{ID: uuid.MustParse("0b9b6c1e-6a61-4b8e-9f51-2f0f6d2f8a01")},
		SupplierVariantID: "SV-A",
		SKU:               "TEE-BLK-M",
		Name:              "Camiseta Básica Preto",
		Price:             decimal.RequireFromString("59.90"),
		Stock:             10,
	}
	testVariantB = catalog.Variant{
		BaseEntity:        shared.BaseEntity{ID: uuid.MustParse("0b9b6c1e-6a61-4b8e-9f51-2f0f6d2f8a02")},
		SupplierVariantID: "SV-B",
		SKU:               "TEE-WHT-G",
		Name:              "Camiseta Básica Branco",
		Price:             decimal.RequireFromString("20.05"),
		Stock:             1,
	}
)

func testAddress() order.Address {
	return order.Address{Name: "Ana Souza", Street: "Rua das Flores", Number: "42", City: "São Paulo", State: "SP", PostalCode: "01310-100"}
}

// newTestOrder stores a created order with one line of each fixture variant
func newTestOrder(repo *memOrders) *order.Order {
	o, err := order.NewOrder("ana@example.com", testAddress(), "BRL", []order.LineInput{
		{VariantID: testVariantA.ID, SupplierVariantID: testVariantA.SupplierVariantID, SKU: testVariantA.SKU, Name: testVariantA.Name, UnitPrice: testVariantA.Price, Quantity: 2},
		{VariantID: testVariantB.ID, SupplierVariantID: testVariantB.SupplierVariantID, SKU: testVariantB.SKU, Name: testVariantB.Name, UnitPrice: testVariantB.Price, Quantity: 1},
	})
	if err != nil {
		panic(err)
	}
	o.ClearDomainEvents()
	repo.put(o)
	return o
}
