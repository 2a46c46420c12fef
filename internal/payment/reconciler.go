package payment

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sakay-ph/payments-api/internal/booking"
	"github.com/sakay-ph/payments-api/internal/events"
	"github.com/sakay-ph/payments-api/internal/obs"
)

// Outcome classifies the result of applying a webhook event. A duplicate or
// skipped apply is a successful no-op, not an error.
type Outcome string

const (
	// OutcomeApplied means the event changed the booking.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate means the event was already applied (event-id dedup
	// or the booking already carries the target state).
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeSkipped means a guard held the write back (paid is absorbing).
	OutcomeSkipped Outcome = "skipped"
	// OutcomeIgnored means the event kind is unhandled or carries no usable
	// booking reference where one is tolerated.
	OutcomeIgnored Outcome = "ignored"
)

const dedupKeyPrefix = "pay:evt:"

// Reconciler applies verified webhook events to bookings exactly once.
type Reconciler struct {
	Store    booking.Store
	Dedup    *redis.Client
	DedupTTL time.Duration
	Events   *events.Bus
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Apply computes and writes the booking transition for one event.
//
// Idempotency is layered: an event-id key in Redis short-circuits exact
// redelivery, and every write goes through a conditional update whose
// not-paid precondition makes the guard and the write atomic. A paid event
// arriving after failed/expired always wins; the reverse never lands.
func (r *Reconciler) Apply(ctx context.Context, ev Event) (Outcome, error) {
	if r == nil || r.Store == nil {
		return OutcomeIgnored, fmt.Errorf("payment: reconciler not configured")
	}
	outcome, err := r.apply(ctx, ev)
	result := string(outcome)
	if err != nil {
		result = "error"
	}
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(ev.Type, result).Inc()
	}
	return outcome, err
}

func (r *Reconciler) apply(ctx context.Context, ev Event) (Outcome, error) {
	if !ev.Known() {
		// Forward compatibility: new provider event kinds are acknowledged
		// as no-ops instead of failing delivery.
		r.Logger.Info().Str("event_type", ev.Type).Str("event_id", ev.ID).Msg("unhandled webhook event type")
		return OutcomeIgnored, nil
	}

	claimed, err := r.claimEvent(ctx, ev.ID)
	if err != nil {
		// The booking-state guards below still hold; losing the dedup layer
		// degrades to at-least-once, which they tolerate.
		r.Logger.Error().Err(err).Str("event_id", ev.ID).Msg("webhook dedup store unavailable")
	} else if !claimed {
		r.Logger.Info().Str("event_id", ev.ID).Str("event_type", ev.Type).Msg("duplicate webhook event")
		return OutcomeDuplicate, nil
	}

	outcome, err := r.dispatch(ctx, ev)
	if err != nil && claimed {
		// Release the claim so a provider retry can reattempt the apply.
		r.releaseEvent(ev.ID)
	}
	return outcome, err
}

func (r *Reconciler) dispatch(ctx context.Context, ev Event) (Outcome, error) {
	ownerID, bookingID, ok := ev.BookingRef()
	if !ok {
		if ev.Type == EventSessionExpired {
			// An expiry for an unknown booking is inconsequential.
			r.Logger.Warn().Str("event_id", ev.ID).Msg("expired event without booking metadata, ignoring")
			return OutcomeIgnored, nil
		}
		return OutcomeIgnored, fmt.Errorf("payment: %s event %s missing booking metadata", ev.Type, ev.ID)
	}
	ref := booking.Ref{OwnerID: ownerID, BookingID: bookingID}

	b, found, err := r.Store.Get(ctx, ref)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("payment: fetch booking %s/%s: %w", ownerID, bookingID, err)
	}
	if !found {
		return OutcomeIgnored, fmt.Errorf("payment: booking %s/%s not found for event %s", ownerID, bookingID, ev.ID)
	}

	switch ev.Type {
	case EventPaymentPaid:
		return r.applyPaid(ctx, b, ev)
	case EventPaymentFailed:
		return r.applyFailed(ctx, b, ev)
	case EventSessionExpired:
		return r.applyExpired(ctx, b, ev)
	default:
		return OutcomeIgnored, nil
	}
}

func (r *Reconciler) applyPaid(ctx context.Context, b booking.Booking, ev Event) (Outcome, error) {
	if b.IsPaid() {
		return OutcomeDuplicate, nil
	}
	now := r.now()
	method := ev.Data.Attributes.PaymentMethodUsed
	if method == "" {
		method = "unknown"
	}
	delta := booking.Delta{
		Status:             ptr(booking.StatusPaid),
		PaymentStatus:      ptr(booking.PaymentPaid),
		ProviderPaymentID:  ptr(ev.ID),
		PaymentMethod:      ptr(method),
		ClearPaymentError:  true,
		PaidAt:             &now,
		PaymentCompletedAt: &now,
		WebhookProcessedAt: &now,
	}
	applied, err := r.Store.CompareAndUpdate(ctx, b.Ref(), booking.GuardNotPaid(), delta)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("payment: apply paid to %s/%s: %w", b.OwnerID, b.BookingID, err)
	}
	if !applied {
		// A concurrent paid write landed between our read and this statement.
		return OutcomeDuplicate, nil
	}
	r.emit(ctx, events.TopicPaymentPaid, b, map[string]any{
		"providerPaymentId": ev.ID,
		"paymentMethod":     method,
	})
	return OutcomeApplied, nil
}

func (r *Reconciler) applyFailed(ctx context.Context, b booking.Booking, ev Event) (Outcome, error) {
	if b.IsPaid() {
		// Never downgrade a paid booking.
		return OutcomeSkipped, nil
	}
	now := r.now()
	reason := ev.Data.Attributes.FailureReason
	if reason == "" {
		reason = "Payment failed"
	}
	delta := booking.Delta{
		Status:             ptr(booking.StatusPaymentFailed),
		PaymentStatus:      ptr(booking.PaymentFailed),
		PaymentError:       ptr(reason),
		PaymentFailedAt:    &now,
		WebhookProcessedAt: &now,
	}
	applied, err := r.Store.CompareAndUpdate(ctx, b.Ref(), booking.GuardNotPaid(), delta)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("payment: apply failed to %s/%s: %w", b.OwnerID, b.BookingID, err)
	}
	if !applied {
		return OutcomeSkipped, nil
	}
	r.emit(ctx, events.TopicPaymentFailed, b, map[string]any{
		"failureReason": reason,
	})
	return OutcomeApplied, nil
}

func (r *Reconciler) applyExpired(ctx context.Context, b booking.Booking, ev Event) (Outcome, error) {
	if b.IsPaid() {
		return OutcomeSkipped, nil
	}
	now := r.now()
	delta := booking.Delta{
		Status:             ptr(booking.StatusPaymentExpired),
		PaymentStatus:      ptr(booking.PaymentExpired),
		PaymentExpiredAt:   &now,
		WebhookProcessedAt: &now,
	}
	applied, err := r.Store.CompareAndUpdate(ctx, b.Ref(), booking.GuardNotPaid(), delta)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("payment: apply expired to %s/%s: %w", b.OwnerID, b.BookingID, err)
	}
	if !applied {
		return OutcomeSkipped, nil
	}
	r.emit(ctx, events.TopicPaymentExpired, b, nil)
	return OutcomeApplied, nil
}

// claimEvent marks the event id as processed. Returns false when another
// delivery already claimed it.
func (r *Reconciler) claimEvent(ctx context.Context, eventID string) (bool, error) {
	if r.Dedup == nil || eventID == "" {
		return true, nil
	}
	ttl := r.DedupTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return r.Dedup.SetNX(ctx, dedupKeyPrefix+eventID, "1", ttl).Result()
}

func (r *Reconciler) releaseEvent(eventID string) {
	if r.Dedup == nil || eventID == "" {
		return
	}
	if err := r.Dedup.Del(context.Background(), dedupKeyPrefix+eventID).Err(); err != nil {
		r.Logger.Error().Err(err).Str("event_id", eventID).Msg("release dedup claim")
	}
}

func (r *Reconciler) emit(ctx context.Context, topic string, b booking.Booking, payload map[string]any) {
	if r.Events == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if err := r.Events.Emit(ctx, topic, b.OwnerID, b.BookingID, payload); err != nil {
		r.Logger.Error().Err(err).Str("topic", topic).Str("booking_id", b.BookingID).Msg("emit payment event")
	}
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func ptr[T any](v T) *T { return &v }
