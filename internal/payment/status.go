package payment

import (
	"time"

	"github.com/sakay-ph/payments-api/internal/booking"
)

// StatusView is the wire-friendly projection of a booking's payment state
// served to polling clients.
type StatusView struct {
	BookingID          string  `json:"bookingId"`
	Status             string  `json:"status"`
	PaymentStatus      string  `json:"paymentStatus"`
	BoardingStatus     string  `json:"boardingStatus"`
	Amount             int64   `json:"amount"`
	Currency           string  `json:"currency,omitempty"`
	CheckoutURL        string  `json:"checkoutUrl,omitempty"`
	CheckoutSessionID  string  `json:"checkoutSessionId,omitempty"`
	PaymentMethod      string  `json:"paymentMethod,omitempty"`
	PaymentError       string  `json:"paymentError,omitempty"`
	PaidAt             *string `json:"paidAt"`
	PaymentInitiatedAt *string `json:"paymentInitiatedAt,omitempty"`
	PaymentFailedAt    *string `json:"paymentFailedAt,omitempty"`
	PaymentExpiredAt   *string `json:"paymentExpiredAt,omitempty"`
}

// ProjectStatus maps a booking to its status view. Pure projection: no side
// effects, and a freshly created booking with no payment fields yet projects
// to the pending defaults.
func ProjectStatus(b booking.Booking) StatusView {
	status := b.Status
	if status == "" {
		status = booking.StatusPendingPayment
	}
	paymentStatus := b.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = booking.PaymentPending
	}
	boarding := b.BoardingStatus
	if boarding == "" {
		boarding = "pending"
	}
	return StatusView{
		BookingID:          b.BookingID,
		Status:             status,
		PaymentStatus:      paymentStatus,
		BoardingStatus:     boarding,
		Amount:             b.Amount,
		Currency:           b.Currency,
		CheckoutURL:        b.CheckoutURL,
		CheckoutSessionID:  b.CheckoutSessionID,
		PaymentMethod:      b.PaymentMethod,
		PaymentError:       b.PaymentError,
		PaidAt:             isoTime(b.PaidAt),
		PaymentInitiatedAt: isoTime(b.PaymentInitiatedAt),
		PaymentFailedAt:    isoTime(b.PaymentFailedAt),
		PaymentExpiredAt:   isoTime(b.PaymentExpiredAt),
	}
}

func isoTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
