// Package sweep expires checkout sessions the provider never settled.
// PayMongo emits checkout_session.expired for abandoned sessions, but
// delivery is best-effort: a lost webhook would strand a booking in
// payment_initiated forever and keep its seats blocked. The sweeper is
// the backstop that moves those bookings to payment_expired.
package sweep

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/sakay-ph/payments-api/internal/booking"
	"github.com/sakay-ph/payments-api/internal/events"
	"github.com/sakay-ph/payments-api/internal/obs"
)

// TaskTypeExpirySweep is the asynq task type for the periodic sweep.
const TaskTypeExpirySweep = "payment:expiry_sweep"

// NewTask builds the sweep task. The task carries no payload; the sweeper
// derives its cutoff from the configured session TTL at run time.
func NewTask() *asynq.Task {
	return asynq.NewTask(TaskTypeExpirySweep, nil)
}

// Sweeper expires bookings stuck in payment_initiated past the session TTL.
type Sweeper struct {
	Store      booking.Store
	SessionTTL time.Duration
	Batch      int
	Events     *events.Bus
	Logger     *zerolog.Logger
	Now        func() time.Time
}

// HandleTask adapts Run to the asynq handler contract.
func (s Sweeper) HandleTask(ctx context.Context, _ *asynq.Task) error {
	_, err := s.Run(ctx)
	return err
}

// Run expires all stale initiated bookings and returns how many it moved.
// Each booking is expired with a conditional write guarded against every
// terminal state, so a webhook landing mid-sweep always wins: the sweep
// only ever touches bookings the provider has said nothing about.
func (s Sweeper) Run(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.SessionTTL)
	limit := s.Batch
	if limit <= 0 {
		limit = 100
	}

	refs, err := s.Store.ListStaleInitiated(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	if len(refs) == 0 {
		return 0, nil
	}

	guard := booking.Guard{PaymentStatusNot: []string{
		booking.PaymentPaid,
		booking.PaymentFailed,
		booking.PaymentExpired,
	}}

	expired := 0
	for _, ref := range refs {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		now := s.now()
		delta := booking.Delta{
			Status:           ptr(booking.StatusPaymentExpired),
			PaymentStatus:    ptr(booking.PaymentExpired),
			PaymentError:     ptr("Checkout session expired"),
			PaymentExpiredAt: &now,
		}
		applied, err := s.Store.CompareAndUpdate(ctx, ref, guard, delta)
		if err != nil {
			s.log().Error().Err(err).
				Str("owner_id", ref.OwnerID).
				Str("booking_id", ref.BookingID).
				Msg("sweep: expire booking")
			continue
		}
		if !applied {
			// Settled between the listing and the write.
			continue
		}
		expired++
		if obs.PaymentSweepTotal != nil {
			obs.PaymentSweepTotal.Inc()
		}
		if s.Events != nil {
			payload := map[string]any{"reason": "session_ttl_elapsed", "expiredAt": now.UTC().Format(time.RFC3339)}
			if err := s.Events.Emit(ctx, events.TopicPaymentExpired, ref.OwnerID, ref.BookingID, payload); err != nil {
				s.log().Error().Err(err).
					Str("owner_id", ref.OwnerID).
					Str("booking_id", ref.BookingID).
					Msg("sweep: emit expired event")
			}
		}
	}

	if expired > 0 {
		s.log().Info().Int("expired", expired).Int("candidates", len(refs)).Msg("expiry sweep completed")
	}
	return expired, nil
}

func (s Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Sweeper) log() *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	l := zerolog.Nop()
	return &l
}

func ptr[T any](v T) *T { return &v }
