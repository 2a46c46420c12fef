package booking

import (
	"context"
	"time"
)

// Delta is a partial-field patch: only non-nil fields are written, everything
// else is left untouched. Session creation, webhook reconciliation and the
// expiry sweep update disjoint subsets of fields concurrently, so blind
// full-record writes are not an option.
type Delta struct {
	Status            *string
	PaymentStatus     *string
	CheckoutSessionID *string
	CheckoutURL       *string
	ProviderPaymentID *string
	PaymentMethod     *string
	PaymentError      *string
	// ClearPaymentError nulls payment_error; it is the only payment field
	// ever cleared once set, and only on a successful payment.
	ClearPaymentError bool

	PaymentInitiatedAt *time.Time
	PaidAt             *time.Time
	PaymentCompletedAt *time.Time
	PaymentFailedAt    *time.Time
	PaymentExpiredAt   *time.Time
	WebhookProcessedAt *time.Time
}

// IsZero reports whether the delta patches nothing.
func (d Delta) IsZero() bool {
	return d.Status == nil && d.PaymentStatus == nil && d.CheckoutSessionID == nil &&
		d.CheckoutURL == nil && d.ProviderPaymentID == nil && d.PaymentMethod == nil &&
		d.PaymentError == nil && !d.ClearPaymentError && d.PaymentInitiatedAt == nil &&
		d.PaidAt == nil && d.PaymentCompletedAt == nil && d.PaymentFailedAt == nil &&
		d.PaymentExpiredAt == nil && d.WebhookProcessedAt == nil
}

// Guard is the precondition of a conditional update. The update applies only
// when the booking's current payment_status is not one of the listed values,
// which makes guard check and write a single atomic statement.
type Guard struct {
	PaymentStatusNot []string
}

// GuardNotPaid protects the absorbing paid state: any transition racing a
// concurrent paid write loses.
func GuardNotPaid() Guard {
	return Guard{PaymentStatusNot: []string{PaymentPaid}}
}

// Store owns all mutation of a booking's payment fields.
type Store interface {
	// Get fetches a booking by composite key. The boolean reports existence;
	// err is reserved for store-level failures.
	Get(ctx context.Context, ref Ref) (Booking, bool, error)

	// Update applies a blind partial-field patch.
	Update(ctx context.Context, ref Ref, delta Delta) error

	// CompareAndUpdate applies the patch only when the guard's precondition
	// holds. It returns false (and no error) when the precondition failed or
	// the booking does not exist.
	CompareAndUpdate(ctx context.Context, ref Ref, guard Guard, delta Delta) (bool, error)

	// ListStaleInitiated returns bookings sitting in payment_initiated with a
	// session older than the cutoff, for the expiry sweep.
	ListStaleInitiated(ctx context.Context, cutoff time.Time, limit int) ([]Ref, error)
}
