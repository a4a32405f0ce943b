package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/payment"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakePayer struct {
	outcome *PaymentOutcome
	err     error
}

func (p fakePayer) Pay(_ context.Context, orderID uuid.UUID, req PaymentRequest) (*PaymentOutcome, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := *p.outcome
	out.OrderID, out.Method = orderID, req.Method
	return &out, nil
}

type checkoutFixture struct {
	orders   *memOrders
	products *MockProductRepository
	client   *MockSupplierClient
	pub      *recordingPublisher
}

func newCheckoutFixture() *checkoutFixture {
	return &checkoutFixture{
		orders:   newMemOrders(),
		products: new(MockProductRepository),
		client:   new(MockSupplierClient),
		pub:      &recordingPublisher{},
	}
}

func (f *checkoutFixture) service(payer Payer, dispatchOnCreate bool) *CheckoutService {
	fulfillment := NewFulfillmentService(f.orders, f.client, f.pub, time.Second, nil, nil)
	return NewCheckoutService(f.orders, f.products, payer, fulfillment, f.pub, "", dispatchOnCreate, nil)
}

func orderInput(lines ...LineRequest) CreateOrderInput {
	return CreateOrderInput{Email: "  Ana@Example.com ", Address: testAddress(), Lines: lines}
}

func TestCheckoutService_CreateOrder(t *testing.T) {
	f := newCheckoutFixture()
	f.products.On("FindVariantsByIDs", mock.Anything, []uuid.UUID{testVariantA.ID, testVariantB.ID}).
		Return([]catalog.Variant{testVariantA, testVariantB}, nil)
	f.client.On("CreateOrder", mock.Anything, mock.Anything).Return(&supplier.CreateOrderResult{SupplierOrderID: "CJ-55"}, nil)

	svc := f.service(nil, true)
	o, err := svc.CreateOrder(context.Background(), orderInput(
		LineRequest{VariantID: testVariantA.ID, Quantity: 1},
		LineRequest{VariantID: testVariantB.ID, Quantity: 1},
		LineRequest{VariantID: testVariantA.ID, Quantity: 2},
	))
	require.NoError(t, err)

	require.Len(t, o.Items, 2)
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.Equal(t, "SV-A", o.Items[0].SupplierVariantID)
	assert.True(t, o.Items[0].UnitPrice.Equal(testVariantA.Price))
	assert.Equal(t, "199.75", o.Total.StringFixed(2))
	assert.Equal(t, "ana@example.com", o.Email)
	assert.Equal(t, "BRL", o.Currency)

	assert.Equal(t, order.StatusSubmitted, o.Status)
	stored := f.orders.get(o.ID)
	assert.Equal(t, order.StatusSubmitted, stored.Status)
	assert.Equal(t, "CJ-55", *stored.SupplierOrderID)
	assert.Equal(t, order.EventTypeOrderCreated, f.pub.published()[0])
}

func TestCheckoutService_CreateOrder_SupplierFailureKeepsOrder(t *testing.T) {
	f := newCheckoutFixture()
	f.products.On("FindVariantsByIDs", mock.Anything, mock.Anything).Return([]catalog.Variant{testVariantA}, nil)
	f.client.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, errors.New("supplier: timeout"))

	o, err := f.service(nil, true).CreateOrder(context.Background(), orderInput(LineRequest{VariantID: testVariantA.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, order.StatusCreated, f.orders.get(o.ID).Status)
	assert.Contains(t, f.orders.get(o.ID).LastNote(), "supplier submission failed")
}

func TestCheckoutService_CreateOrder_Rejections(t *testing.T) {
	missing := uuid.New()
	tests := []struct {
		name     string
		input    CreateOrderInput
		variants []catalog.Variant
		want     error
	}{
		{"no lines", orderInput(), nil, order.ErrEmptyOrder},
		{"zero quantity", orderInput(LineRequest{VariantID: testVariantA.ID}), nil, order.ErrInvalidQuantity},
		{"unknown variant", orderInput(LineRequest{VariantID: missing, Quantity: 1}), []catalog.Variant{}, shared.ErrNotFound},
		{"over stock", orderInput(LineRequest{VariantID: testVariantB.ID, Quantity: 2}), []catalog.Variant{testVariantB}, shared.ErrInsufficientStock},
		{
			"bad email",
			CreateOrderInput{Email: "not-an-email", Address: testAddress(), Lines: []LineRequest{{VariantID: testVariantA.ID, Quantity: 1}}},
			[]catalog.Variant{testVariantA},
			order.ErrInvalidEmail,
		},
		{
			"incomplete address",
			CreateOrderInput{Email: "a@b.com", Address: order.Address{Name: "Ana"}, Lines: []LineRequest{{VariantID: testVariantA.ID, Quantity: 1}}},
			[]catalog.Variant{testVariantA},
			order.ErrInvalidAddress,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture()
			if tt.variants != nil {
				f.products.On("FindVariantsByIDs", mock.Anything, mock.Anything).Return(tt.variants, nil)
			}
			_, err := f.service(nil, true).CreateOrder(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.orders.orders)
			f.client.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestCheckoutService_SubmitPayment(t *testing.T) {
	t.Run("paid order is dispatched", func(t *testing.T) {
		f := newCheckoutFixture()
		o := newTestOrder(f.orders)
		f.client.On("CreateOrder", mock.Anything, mock.Anything).Return(&supplier.CreateOrderResult{SupplierOrderID: "CJ-P"}, nil)

		svc := f.service(fakePayer{outcome: &PaymentOutcome{Status: order.StatusPaid}}, false)
		outcome, err := svc.SubmitPayment(context.Background(), o.ID, PaymentRequest{Method: payment.MethodPix})
		require.NoError(t, err)
		require.NotNil(t, outcome.Fulfillment)
		assert.True(t, outcome.Fulfillment.Submitted)
		assert.Equal(t, "CJ-P", outcome.Fulfillment.SupplierOrderID)
	})

	t.Run("pending order waits", func(t *testing.T) {
		f := newCheckoutFixture()
		o := newTestOrder(f.orders)

		svc := f.service(fakePayer{outcome: &PaymentOutcome{Status: order.StatusPaymentPending, Reference: "bol_1"}}, false)
		outcome, err := svc.SubmitPayment(context.Background(), o.ID, PaymentRequest{Method: payment.MethodBoleto})
		require.NoError(t, err)
		assert.Nil(t, outcome.Fulfillment)
		f.client.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	})

	t.Run("errors pass through", func(t *testing.T) {
		f := newCheckoutFixture()
		svc := f.service(fakePayer{err: order.ErrAlreadyPaid}, false)
		_, err := svc.SubmitPayment(context.Background(), uuid.New(), PaymentRequest{Method: payment.MethodPix})
		assert.ErrorIs(t, err, order.ErrAlreadyPaid)
	})
}

func TestCheckoutService_GetPaymentStatus(t *testing.T) {
	f := newCheckoutFixture()
	o := newTestOrder(f.orders)
	require.NoError(t, o.StartPayment("boleto"))
	o.SetPaymentReference("bol_7", "https://pay.example.com/bol_7")
	f.orders.put(o)

	view, err := f.service(nil, false).GetPaymentStatus(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaymentPending, view.Status)
	assert.Equal(t, "boleto", view.Method)
	assert.Equal(t, "bol_7", view.Reference)
	assert.Equal(t, "payment started with boleto", view.Note)
	assert.Nil(t, view.PaidAt)

	_, err = f.service(nil, false).GetPaymentStatus(context.Background(), uuid.New())
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestCheckoutService_Lifecycle(t *testing.T) {
	f := newCheckoutFixture()
	svc := f.service(nil, false)
	o := newTestOrder(f.orders)

	_, err := svc.Ship(context.Background(), o.ID, "BR123")
	assert.ErrorIs(t, err, order.ErrInvalidTransition)

	require.NoError(t, o.StartPayment("pix"))
	require.NoError(t, o.MarkPaid("pix_1"))
	f.orders.put(o)

	_, err = svc.Cancel(context.Background(), o.ID, "")
	assert.ErrorIs(t, err, order.ErrInvalidTransition)

	_, err = svc.Ship(context.Background(), o.ID, "  ")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	shipped, err := svc.Ship(context.Background(), o.ID, "BR123")
	require.NoError(t, err)
	assert.Equal(t, "BR123", shipped.TrackingNumber)

	delivered, err := svc.Deliver(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, delivered.Status)
	assert.Equal(t, order.StatusDelivered, f.orders.get(o.ID).Status)
}

func TestCheckoutService_Cancel(t *testing.T) {
	f := newCheckoutFixture()
	o := newTestOrder(f.orders)

	cancelled, err := f.service(nil, false).Cancel(context.Background(), o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)
	assert.Equal(t, "cancelled: requested", f.orders.get(o.ID).LastNote())
}
