package order

// Status represents where an order is in its lifecycle
type Status string

const (
	StatusCreated        Status = "created"
	StatusSubmitted      Status = "submitted"
	StatusPaymentPending Status = "payment_pending"
	StatusPaid           Status = "paid"
	StatusShipped        Status = "shipped"
	StatusDelivered      Status = "delivered"
	StatusPaymentFailed  Status = "payment_failed"
	StatusCancelled      Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusCreated:        {StatusSubmitted, StatusPaymentPending, StatusCancelled},
	StatusSubmitted:      {StatusPaymentPending, StatusCancelled},
	StatusPaymentPending: {StatusPaid, StatusPaymentFailed, StatusCancelled},
	StatusPaymentFailed:  {StatusPaymentPending, StatusCancelled},
	StatusPaid:           {StatusShipped},
	StatusShipped:        {StatusDelivered},
}

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusSubmitted, StatusPaymentPending, StatusPaid,
		StatusShipped, StatusDelivered, StatusPaymentFailed, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsPaid reports whether the order has been charged
func (s Status) IsPaid() bool {
	return s == StatusPaid || s == StatusShipped || s == StatusDelivered
}
