package orders

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusExpired        Status = "expired"
	StatusCancelled      Status = "cancelled"
	StatusRefunded       Status = "refunded"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPendingPayment, StatusConfirmed, StatusExpired, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// CanConfirm reports whether a payment settlement may move the order to
// confirmed. pending_payment -> confirmed is the only settlement path.
func (s Status) CanConfirm() bool {
	return s == StatusPendingPayment
}

// IsSettled reports whether the order reached a final sale state.
func (s Status) IsSettled() bool {
	return s == StatusConfirmed || s == StatusCancelled || s == StatusRefunded
}
