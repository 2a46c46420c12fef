package booking

import "time"

// Booking lifecycle states. Paid is terminal and absorbing; failed and
// expired are terminal for the current checkout session only — creating a
// new session moves the booking back to payment_initiated.
const (
	StatusPendingPayment   = "pending_payment"
	StatusPaymentInitiated = "payment_initiated"
	StatusPaid             = "paid"
	StatusPaymentFailed    = "payment_failed"
	StatusPaymentExpired   = "payment_expired"
)

// Payment sub-states tracked alongside the booking status.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
	PaymentExpired = "expired"
)

// Ref identifies a booking. Booking ids are owner-scoped and never globally
// unique on their own.
type Ref struct {
	OwnerID   string
	BookingID string
}

// Booking is the unit of work: a rider's seat reservation plus its payment
// lifecycle.
type Booking struct {
	OwnerID   string
	BookingID string

	Amount    int64
	Currency  string
	Route     string
	FromPlace string
	ToPlace   string
	Quantity  int32
	FareTypes string

	Status            string
	PaymentStatus     string
	BoardingStatus    string
	CheckoutSessionID string
	CheckoutURL       string
	ProviderPaymentID string
	PaymentMethod     string
	PaymentError      string

	CreatedAt          time.Time
	PaymentInitiatedAt *time.Time
	PaidAt             *time.Time
	PaymentCompletedAt *time.Time
	PaymentFailedAt    *time.Time
	PaymentExpiredAt   *time.Time
	WebhookProcessedAt *time.Time
	UpdatedAt          time.Time
}

// Ref returns the booking's composite identifier.
func (b Booking) Ref() Ref {
	return Ref{OwnerID: b.OwnerID, BookingID: b.BookingID}
}

// IsPaid reports whether the booking has reached the absorbing paid state.
func (b Booking) IsPaid() bool {
	return b.PaymentStatus == PaymentPaid
}
