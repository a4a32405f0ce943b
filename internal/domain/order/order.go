package order

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dropship/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when an order is created without one
const DefaultCurrency = "BRL"

// Address is the shipping address of an order
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street"`
	Number     string `json:"number,omitempty"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Validate checks the fields the supplier needs to ship
func (a Address) Validate() error {
	for _, f := range []string{a.Name, a.Street, a.City, a.PostalCode} {
		if strings.TrimSpace(f) == "" {
			return ErrInvalidAddress
		}
	}
	return nil
}

// Item is an order line. UnitPrice is the variant price when the order was
// placed and is never recomputed.
type Item struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	VariantID         uuid.UUID
	SupplierVariantID string
	SKU               string
	Name              string
	Quantity          int
	UnitPrice         decimal.Decimal
}

// Subtotal returns unit price × quantity
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// LineInput is a variant snapshot plus requested quantity
type LineInput struct {
	VariantID         uuid.UUID
	SupplierVariantID string
	SKU               string
	Name              string
	UnitPrice         decimal.Decimal
	Quantity          int
}

// Note is a timestamped entry in the order history
type Note struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Order is the aggregate root of the ledger
type Order struct {
	shared.BaseAggregateRoot
	Email            string
	Status           Status
	Currency         string
	Total            decimal.Decimal
	ShippingAddress  Address
	Items            []Item
	SupplierOrderID  *string
	PaymentMethod    string
	PaymentReference string
	PaymentURL       string
	PaidAt           *time.Time
	TrackingNumber   string
	Notes            []Note
}

// NewOrder creates an order in status created, snapshotting line prices and
// computing the total once
func NewOrder(email string, address Address, currency string, lines []LineInput) (*Order, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, ErrInvalidEmail
	}
	if err := address.Validate(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	if address.Country == "" {
		address.Country = "BR"
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Email:             strings.ToLower(email),
		Status:            StatusCreated,
		Currency:          strings.ToUpper(currency),
		ShippingAddress:   address,
		Total:             decimal.Zero,
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if line.UnitPrice.IsNegative() {
			return nil, ErrInvalidPrice
		}
		item := Item{
			ID:                uuid.New(),
			OrderID:           o.ID,
			VariantID:         line.VariantID,
			SupplierVariantID: line.SupplierVariantID,
			SKU:               line.SKU,
			Name:              line.Name,
			Quantity:          line.Quantity,
			UnitPrice:         line.UnitPrice,
		}
		o.Items = append(o.Items, item)
		o.Total = o.Total.Add(item.Subtotal())
	}

	o.addNote("order created")
	o.AddDomainEvent(NewOrderCreatedEvent(o))
	return o, nil
}

// MarkSubmitted records the supplier order id. A created order moves to
// submitted; for any later status only the id is recorded.
func (o *Order) MarkSubmitted(supplierOrderID string) error {
	if strings.TrimSpace(supplierOrderID) == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Supplier order id cannot be empty")
	}
	if o.SupplierOrderID != nil {
		if *o.SupplierOrderID == supplierOrderID {
			return nil
		}
		return shared.NewDomainError(shared.CodeInvalidState, "Order already has a supplier order")
	}
	if o.Status == StatusCancelled {
		return ErrInvalidTransition
	}

	o.SupplierOrderID = &supplierOrderID
	o.AddDomainEvent(NewFulfillmentSubmittedEvent(o.ID, supplierOrderID))
	if o.Status == StatusCreated {
		return o.transitionTo(StatusSubmitted, "supplier order "+supplierOrderID)
	}
	o.addNote("supplier order " + supplierOrderID)
	o.touch()
	return nil
}

// RecordSupplierFailure notes a failed supplier submission. Status is left
// unchanged.
func (o *Order) RecordSupplierFailure(reason string) {
	o.addNote("supplier submission failed: " + reason)
	o.AddDomainEvent(NewFulfillmentFailedEvent(o.ID, reason))
	o.touch()
}

// IsSubmitted reports whether the supplier has accepted the order
func (o *Order) IsSubmitted() bool {
	return o.SupplierOrderID != nil
}

// StartPayment moves the order to payment_pending. A paid order is never
// charged again.
func (o *Order) StartPayment(method string) error {
	if o.Status.IsPaid() {
		return ErrAlreadyPaid
	}
	if o.Status == StatusPaymentPending {
		o.PaymentMethod = method
		o.addNote("payment retried with " + method)
		o.touch()
		return nil
	}
	if err := o.transitionTo(StatusPaymentPending, "payment started with "+method); err != nil {
		return err
	}
	o.PaymentMethod = method
	return nil
}

// SetPaymentReference stores the gateway reference (session, charge or boleto id)
func (o *Order) SetPaymentReference(reference, url string) {
	o.PaymentReference = reference
	o.PaymentURL = url
	o.touch()
}

// MarkPaid records a confirmed payment
func (o *Order) MarkPaid(reference string) error {
	if o.Status.IsPaid() {
		return ErrAlreadyPaid
	}
	if err := o.transitionTo(StatusPaid, "payment confirmed"); err != nil {
		return err
	}
	if reference != "" {
		o.PaymentReference = reference
	}
	now := time.Now()
	o.PaidAt = &now
	return nil
}

// MarkPaymentFailed records a rejected or failed payment attempt
func (o *Order) MarkPaymentFailed(reason string) error {
	return o.transitionTo(StatusPaymentFailed, "payment failed: "+reason)
}

// Cancel cancels an unpaid order
func (o *Order) Cancel(reason string) error {
	if o.Status.IsPaid() {
		return ErrInvalidTransition
	}
	return o.transitionTo(StatusCancelled, "cancelled: "+reason)
}

// Ship records the carrier tracking number
func (o *Order) Ship(trackingNumber string) error {
	if err := o.transitionTo(StatusShipped, "shipped "+trackingNumber); err != nil {
		return err
	}
	o.TrackingNumber = trackingNumber
	return nil
}

// Deliver marks a shipped order as delivered
func (o *Order) Deliver() error {
	return o.transitionTo(StatusDelivered, "delivered")
}

// LastNote returns the most recent history entry
func (o *Order) LastNote() string {
	if len(o.Notes) == 0 {
		return ""
	}
	return o.Notes[len(o.Notes)-1].Message
}

// ItemCount returns the total number of units
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

func (o *Order) transitionTo(target Status, note string) error {
	if !o.Status.CanTransitionTo(target) {
		return ErrInvalidTransition.WithDetails(fmt.Sprintf("%s -> %s", o.Status, target))
	}
	from := o.Status
	o.Status = target
	o.addNote(note)
	o.touch()
	o.AddDomainEvent(NewStatusChangedEvent(o.ID, from, target, note))
	return nil
}

func (o *Order) addNote(msg string) {
	o.Notes = append(o.Notes, Note{At: time.Now(), Message: msg})
}

func (o *Order) touch() {
	o.Touch()
	o.IncrementVersion()
}
