package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sakay-ph/payments-api/internal/booking"
	"github.com/sakay-ph/payments-api/internal/common"
	"github.com/sakay-ph/payments-api/internal/events"
	"github.com/sakay-ph/payments-api/internal/obs"
)

// FareInfo is the fare detail submitted with a checkout request. It mirrors
// the booking's own fare fields into the provider session metadata.
type FareInfo struct {
	Amount    int64
	Currency  string
	Route     string
	FromPlace string
	ToPlace   string
	Quantity  int32
	FareTypes string
}

// Service builds checkout sessions and records the resulting pointers on the
// booking.
type Service struct {
	Store           booking.Store
	Provider        Provider
	RedirectBaseURL string
	Currency        string
	Events          *events.Bus
	Logger          zerolog.Logger
	Now             func() time.Time
}

// CreateSession opens a provider checkout session for the booking and stores
// the session pointers. Re-running session creation overwrites the previous
// session pointer and orphans the old hosted page; only a booking already in
// the paid state is refused.
func (s *Service) CreateSession(ctx context.Context, b booking.Booking, fare FareInfo) (Session, error) {
	if s == nil || s.Store == nil || s.Provider == nil {
		return Session{}, errors.New("payment: session service not configured")
	}
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.CreateSession")
	defer span.End()

	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("booking.id", b.BookingID),
			attribute.String("payment.session.result", result),
		)
		if obs.PaymentSessionTotal != nil {
			obs.PaymentSessionTotal.WithLabelValues("paymongo", result).Inc()
		}
	}()

	if err := validateSessionInput(b, fare); err != nil {
		result = "invalid"
		return Session{}, err
	}
	if b.IsPaid() {
		result = "already_paid"
		return Session{}, common.ValidationError("booking is already paid")
	}

	req := s.buildRequest(b, fare)
	session, err := s.Provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		span.RecordError(err)
		var provErr *ProviderError
		if errors.As(err, &provErr) {
			return Session{}, common.UpstreamError("checkout provider rejected session creation", err, map[string]any{
				"providerStatus": provErr.StatusCode,
				"providerBody":   provErr.Body,
			})
		}
		return Session{}, common.UpstreamError("checkout provider unreachable", err, nil)
	}

	now := s.now()
	delta := booking.Delta{
		Status:             ptr(booking.StatusPaymentInitiated),
		PaymentStatus:      ptr(booking.PaymentPending),
		CheckoutSessionID:  ptr(session.ID),
		CheckoutURL:        ptr(session.CheckoutURL),
		PaymentInitiatedAt: &now,
	}
	// The paid check above ran on a snapshot; a webhook can settle the
	// booking while the provider call is in flight. The same not-paid
	// guard used by the reconciler keeps this write from downgrading a
	// concurrent settlement.
	applied, err := s.Store.CompareAndUpdate(ctx, b.Ref(), booking.GuardNotPaid(), delta)
	if err != nil {
		span.RecordError(err)
		// The session exists upstream but the pointer was never saved. This
		// partial-failure state needs operator attention, so it is surfaced
		// distinctly from an ordinary store fault.
		return Session{}, common.PersistenceError(
			fmt.Sprintf("checkout session %s created upstream but not persisted", session.ID), err)
	}
	if !applied {
		result = "already_paid"
		return Session{}, common.ValidationError("booking is already paid")
	}
	result = "success"

	if s.Events != nil {
		if err := s.Events.Emit(ctx, events.TopicPaymentInitiated, b.OwnerID, b.BookingID, map[string]any{
			"checkoutSessionId": session.ID,
			"amount":            fare.Amount,
		}); err != nil {
			s.Logger.Error().Err(err).Str("booking_id", b.BookingID).Msg("emit payment initiated event")
		}
	}
	return session, nil
}

func validateSessionInput(b booking.Booking, fare FareInfo) error {
	if strings.TrimSpace(b.BookingID) == "" {
		return common.ValidationError("bookingId is required")
	}
	if strings.TrimSpace(b.OwnerID) == "" {
		return common.ValidationError("userId is required")
	}
	if fare.Amount <= 0 {
		return common.ValidationError("amount must be greater than zero")
	}
	if b.Amount > 0 && fare.Amount != b.Amount {
		return common.ValidationError(fmt.Sprintf("amount mismatch: got %d expected %d", fare.Amount, b.Amount))
	}
	return nil
}

func (s *Service) buildRequest(b booking.Booking, fare FareInfo) SessionRequest {
	currency := strings.TrimSpace(fare.Currency)
	if currency == "" {
		currency = s.Currency
	}
	if currency == "" {
		currency = "PHP"
	}
	metadata := map[string]string{
		"bookingId": b.BookingID,
		"userId":    b.OwnerID,
	}
	if fare.Route != "" {
		metadata["route"] = fare.Route
	}
	if fare.FromPlace != "" {
		metadata["fromPlace"] = fare.FromPlace
	}
	if fare.ToPlace != "" {
		metadata["toPlace"] = fare.ToPlace
	}
	if fare.Quantity > 0 {
		metadata["quantity"] = strconv.Itoa(int(fare.Quantity))
	}
	if fare.FareTypes != "" {
		metadata["fareTypes"] = fare.FareTypes
	}
	return SessionRequest{
		BookingID:   b.BookingID,
		OwnerID:     b.OwnerID,
		Amount:      fare.Amount,
		Currency:    currency,
		Quantity:    fare.Quantity,
		Description: describeTrip(fare),
		SuccessURL:  s.redirectURL("/payment/success", b),
		CancelURL:   s.redirectURL("/payment/cancel", b),
		Metadata:    metadata,
	}
}

// redirectURL embeds the booking reference as query parameters so the
// client-side redirect can re-associate context without a server round trip.
func (s *Service) redirectURL(path string, b booking.Booking) string {
	base := strings.TrimRight(strings.TrimSpace(s.RedirectBaseURL), "/")
	q := url.Values{}
	q.Set("bookingId", b.BookingID)
	q.Set("userId", b.OwnerID)
	return base + path + "?" + q.Encode()
}

func describeTrip(fare FareInfo) string {
	from := strings.TrimSpace(fare.FromPlace)
	to := strings.TrimSpace(fare.ToPlace)
	route := strings.TrimSpace(fare.Route)
	switch {
	case from != "" && to != "":
		if route != "" {
			return fmt.Sprintf("%s: %s to %s", route, from, to)
		}
		return fmt.Sprintf("%s to %s", from, to)
	case route != "":
		return route
	default:
		return "Bus seat booking"
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
