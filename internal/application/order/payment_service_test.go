package order

import (
	"context"
	"errors"
	"testing"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/payment"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	orders    *memOrders
	products  *MockProductRepository
	charger   *MockCharger
	gateway   *MockGateway
	publisher *recordingPublisher
	svc       *PaymentService
	order     *order.Order
}

func newPaymentFixture(t *testing.T, withGateway bool) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		orders:    newMemOrders(),
		products:  new(MockProductRepository),
		charger:   new(MockCharger),
		gateway:   new(MockGateway),
		publisher: &recordingPublisher{},
	}
	var gateway payment.Gateway
	if withGateway {
		gateway = f.gateway
	}
	locker := cache.NewInMemoryLocker()
	t.Cleanup(func() { _ = locker.Close() })

	f.svc = NewPaymentService(f.orders, f.products, f.charger, gateway, locker, f.publisher, PaymentSettings{
		SuccessURL: "https://shop.example.com/orders/{ORDER_ID}/ok",
		CancelURL:  "https://shop.example.com/cart",
	}, nil, nil)
	f.svc.newSalt = func() string { return "salt" }
	f.order = newTestOrder(f.orders)
	return f
}

func (f *paymentFixture) stockIs(a, b int) {
	va, vb := testVariantA, testVariantB
	va.Stock, vb.Stock = a, b
	f.products.On("FindVariantsByIDs", mock.Anything, mock.Anything).Return([]catalog.Variant{va, vb}, nil)
}

func validCard() *payment.CardDetails {
	return &payment.CardDetails{Number: "4111 1111 1111 1111", Expiry: "12/30", CVV: "123", Holder: "ANA SOUZA"}
}

func TestPaymentService_Pay_CardApproved(t *testing.T) {
	f := newPaymentFixture(t, false)
	f.stockIs(10, 5)
	f.charger.On("Charge", mock.Anything, mock.MatchedBy(func(req payment.ChargeRequest) bool {
		return req.OrderID == f.order.ID.String() && req.Amount.String() == "139.85" && req.Method == payment.MethodCard
	})).Return(&payment.ChargeResult{Status: payment.ChargeStatusApproved, Reference: "ch_123"}, nil)

	outcome, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: payment.MethodCard, Card: validCard()})
	require.NoError(t, err)

	assert.Equal(t, order.StatusPaid, outcome.Status)
	assert.Equal(t, "ch_123", outcome.Reference)
	assert.Empty(t, outcome.Reason)

	stored := f.orders.get(f.order.ID)
	assert.Equal(t, order.StatusPaid, stored.Status)
	assert.Equal(t, "ch_123", stored.PaymentReference)
	assert.NotNil(t, stored.PaidAt)
	assert.Equal(t, []string{order.EventTypeOrderStatusChanged, order.EventTypeOrderStatusChanged}, f.publisher.published())
	f.charger.AssertExpectations(t)
}

func TestPaymentService_Pay_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		method     payment.Method
		card       *payment.CardDetails
		result     *payment.ChargeResult
		chargeErr  error
		wantStatus order.Status
		wantReason string
		wantRef    string
	}{
		{
			name:       "declined card",
			method:     payment.MethodCard,
			card:       &payment.CardDetails{Number: "4000000000000000", Expiry: "01/29", CVV: "999"},
			result:     &payment.ChargeResult{Status: payment.ChargeStatusDeclined, Reference: "ch_d", Reason: payment.ErrCardDeclined},
			wantStatus: order.StatusPaymentFailed,
			wantReason: payment.ErrCardDeclined.Message,
			wantRef:    "ch_d",
		},
		{
			name:       "boleto awaits confirmation",
			method:     payment.MethodBoleto,
			result:     &payment.ChargeResult{Status: payment.ChargeStatusPending, Reference: "bol_1", PaymentURL: "https://pay.example.com/bol_1", Instructions: "34191.79001"},
			wantStatus: order.StatusPaymentPending,
			wantRef:    "bol_1",
		},
		{
			name:       "pix approved",
			method:     payment.MethodPix,
			result:     &payment.ChargeResult{Status: payment.ChargeStatusApproved, Reference: "pix_1"},
			wantStatus: order.StatusPaid,
			wantRef:    "pix_1",
		},
		{
			name:       "gateway unavailable",
			method:     payment.MethodPix,
			chargeErr:  errors.New("dial tcp: connection refused"),
			wantStatus: order.StatusPaymentFailed,
			wantReason: payment.ErrPaymentFailed.Message,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t, false)
			f.stockIs(10, 5)
			if tt.chargeErr != nil {
				f.charger.On("Charge", mock.Anything, mock.Anything).Return(nil, tt.chargeErr)
			} else {
				f.charger.On("Charge", mock.Anything, mock.Anything).Return(tt.result, nil)
			}

			outcome, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: tt.method, Card: tt.card})
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, outcome.Status)
			assert.Equal(t, tt.wantReason, outcome.Reason)
			assert.Equal(t, tt.wantRef, outcome.Reference)
			assert.Equal(t, tt.wantStatus, f.orders.get(f.order.ID).Status)
		})
	}
}

func TestPaymentService_Pay_BoletoKeepsInstructions(t *testing.T) {
	f := newPaymentFixture(t, false)
	f.stockIs(10, 5)
	f.charger.On("Charge", mock.Anything, mock.Anything).Return(&payment.ChargeResult{
		Status: payment.ChargeStatusPending, Reference: "bol_9", PaymentURL: "https://pay.example.com/bol_9", Instructions: "34191.79001 01043",
	}, nil)

	outcome, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: payment.MethodBoleto})
	require.NoError(t, err)
	assert.Equal(t, "34191.79001 01043", outcome.Instructions)

	stored := f.orders.get(f.order.ID)
	assert.Equal(t, "bol_9", stored.PaymentReference)
	assert.Equal(t, "https://pay.example.com/bol_9", stored.PaymentURL)
	assert.Nil(t, stored.PaidAt)
}

func TestPaymentService_Pay_AlreadyPaidNeverCharges(t *testing.T) {
	f := newPaymentFixture(t, false)
	paid := f.orders.get(f.order.ID)
	require.NoError(t, paid.StartPayment("card"))
	require.NoError(t, paid.MarkPaid("ch_first"))
	f.orders.put(paid)

	_, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: payment.MethodCard, Card: validCard()})
	assert.ErrorIs(t, err, order.ErrAlreadyPaid)
	f.charger.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	f.products.AssertNotCalled(t, "FindVariantsByIDs", mock.Anything, mock.Anything)
	assert.Equal(t, "ch_first", f.orders.get(f.order.ID).PaymentReference)
}

func TestPaymentService_Pay_InsufficientStock(t *testing.T) {
	f := newPaymentFixture(t, false)
	f.stockIs(1, 0)

	_, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: payment.MethodPix})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	shortages, ok := de.Details.([]StockShortage)
	require.True(t, ok)
	require.Len(t, shortages, 2)
	assert.Equal(t, StockShortage{VariantID: testVariantA.ID, SKU: "TEE-BLK-M", Requested: 2, Available: 1}, shortages[0])
	assert.Equal(t, 0, shortages[1].Available)

	assert.Equal(t, order.StatusPaymentFailed, f.orders.get(f.order.ID).Status)
	f.charger.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
}

func TestPaymentService_Pay_InvalidCardNeverReachesGateway(t *testing.T) {
	tests := []struct {
		name string
		card *payment.CardDetails
		want error
	}{
		{"missing card", nil, payment.ErrInvalidCardNumber},
		{"short number", &payment.CardDetails{Number: "4111", Expiry: "12/30", CVV: "123"}, payment.ErrInvalidCardNumber},
		{"bad month", &payment.CardDetails{Number: "4111111111111111", Expiry: "13/30", CVV: "123"}, payment.ErrInvalidCardExpiry},
		{"bad cvv", &payment.CardDetails{Number: "4111111111111111", Expiry: "12/30", CVV: "12"}, payment.ErrInvalidCVV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t, false)
			f.stockIs(10, 5)

			_, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: payment.MethodCard, Card: tt.card})
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, order.StatusPaymentFailed, f.orders.get(f.order.ID).Status)
			f.charger.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentService_Pay_RetryAfterFailure(t *testing.T) {
	f := newPaymentFixture(t, false)
	f.stockIs(10, 5)
	f.charger.On("Charge", mock.Anything, mock.Anything).Return(&payment.ChargeResult{Status: payment.ChargeStatusDeclined, Reason: payment.ErrInsufficientLimit}, nil).Once()
	f.charger.On("Charge", mock.Anything, mock.Anything).Return(&payment.ChargeResult{Status: payment.ChargeStatusApproved, Reference: "ch_2"}, nil).Once()

	first, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: payment.MethodCard, Card: validCard()})
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaymentFailed, first.Status)

	second, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: payment.MethodCard, Card: validCard()})
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, second.Status)
	assert.Equal(t, "ch_2", f.orders.get(f.order.ID).PaymentReference)
}

func TestPaymentService_Pay_Locked(t *testing.T) {
	f := newPaymentFixture(t, false)
	f.svc.locker = stubLocker{err: shared.ErrLockNotAcquired}

	_, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: payment.MethodPix})
	assert.ErrorIs(t, err, ErrOrderLocked)
	assert.Equal(t, order.StatusCreated, f.orders.get(f.order.ID).Status)
}

func TestPaymentService_Pay_LockIsReleased(t *testing.T) {
	f := newPaymentFixture(t, false)
	f.stockIs(10, 5)
	f.charger.On("Charge", mock.Anything, mock.Anything).Return(&payment.ChargeResult{Status: payment.ChargeStatusDeclined, Reason: payment.ErrCardDeclined}, nil)

	for range 2 {
		_, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: payment.MethodCard, Card: validCard()})
		require.NoError(t, err)
	}
	f.charger.AssertNumberOfCalls(t, "Charge", 2)
}

func TestPaymentService_Pay_MethodValidation(t *testing.T) {
	f := newPaymentFixture(t, false)

	_, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: "crypto"})
	assert.ErrorIs(t, err, payment.ErrUnsupportedMethod)

	_, err = f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: payment.MethodCheckout})
	assert.ErrorIs(t, err, payment.ErrUnsupportedMethod)

	_, err = f.svc.Pay(context.Background(), uuid.New(), PaymentRequest{Method: payment.MethodPix})
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestPaymentService_Pay_CheckoutSession(t *testing.T) {
	f := newPaymentFixture(t, true)
	f.stockIs(10, 5)

	var seen payment.CheckoutRequest
	f.gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { seen = args.Get(1).(payment.CheckoutRequest) }).
		Return(&payment.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil)

	outcome, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: payment.MethodCheckout})
	require.NoError(t, err)

	assert.Equal(t, order.StatusPaymentPending, outcome.Status)
	assert.Equal(t, "cs_test_1", outcome.Reference)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_test_1", outcome.PaymentURL)

	assert.Equal(t, "https://shop.example.com/orders/"+f.order.ID.String()+"/ok", seen.SuccessURL)
	require.Len(t, seen.LineItems, 2)
	assert.Equal(t, int64(5990), seen.LineItems[0].UnitAmount)
	assert.Equal(t, int64(2), seen.LineItems[0].Quantity)
	f.gateway.AssertCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything, payment.IdempotencyKey(seen))

	assert.Equal(t, "cs_test_1", f.orders.get(f.order.ID).PaymentReference)
}

func TestPaymentService_Pay_CheckoutRetriesOnceWithSaltedKey(t *testing.T) {
	f := newPaymentFixture(t, true)
	f.stockIs(10, 5)

	req := f.svc.checkoutRequest(f.order)
	key := payment.IdempotencyKey(req)
	salted := payment.SaltedKey(key, "salt")
	require.NotEqual(t, key, salted)

	f.gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything, key).Return(nil, payment.ErrIdempotencyConflict).Once()
	f.gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything, salted).Return(&payment.CheckoutSession{ID: "cs_2", URL: "https://checkout.example.com/cs_2"}, nil).Once()

	outcome, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: payment.MethodCheckout})
	require.NoError(t, err)
	assert.Equal(t, "cs_2", outcome.Reference)
	f.gateway.AssertExpectations(t)
}

func TestPaymentService_Pay_CheckoutSecondConflictFails(t *testing.T) {
	f := newPaymentFixture(t, true)
	f.stockIs(10, 5)
	f.gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything, mock.Anything).Return(nil, payment.ErrIdempotencyConflict)

	outcome, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: payment.MethodCheckout})
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaymentFailed, outcome.Status)
	assert.Equal(t, payment.ErrPaymentFailed.Message, outcome.Reason)
	f.gateway.AssertNumberOfCalls(t, "CreateCheckoutSession", 2)
}

func TestPaymentService_Pay_ConcurrentStatusChange(t *testing.T) {
	f := newPaymentFixture(t, false)
	f.stockIs(10, 5)
	f.orders.beforeUpdate = func(stored *order.Order) { stored.Status = order.StatusCancelled }

	_, err := f.svc.Pay(context.Background(), f.order.ID, PaymentRequest{Method: payment.MethodPix})
	assert.ErrorIs(t, err, order.ErrConcurrentModification)
	f.charger.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
}

func TestPaymentService_Pay_NoChargerRefusesDirectCharges(t *testing.T) {
	orders := newMemOrders()
	products := new(MockProductRepository)
	gateway := new(MockGateway)
	locker := cache.NewInMemoryLocker()
	t.Cleanup(func() { _ = locker.Close() })

	svc := NewPaymentService(orders, products, nil, gateway, locker, &recordingPublisher{}, PaymentSettings{}, nil, nil)
	o := newTestOrder(orders)

	for _, method := range []payment.Method{payment.MethodCard, payment.MethodPix, payment.MethodBoleto} {
		_, err := svc.Pay(context.Background(), o.ID, PaymentRequest{Method: method, Card: validCard()})
		assert.ErrorIs(t, err, payment.ErrUnsupportedMethod, method.String())
	}
	assert.Equal(t, order.StatusCreated, orders.get(o.ID).Status)
	products.AssertNotCalled(t, "FindVariantsByIDs", mock.Anything, mock.Anything)
}
