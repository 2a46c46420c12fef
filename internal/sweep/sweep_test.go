package sweep_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakay-ph/payments-api/internal/booking"
	"github.com/sakay-ph/payments-api/internal/events"
	"github.com/sakay-ph/payments-api/internal/sweep"
)

type sweepStore struct {
	stale    []booking.Ref
	states   map[booking.Ref]string
	applied  []booking.Ref
	listErr  error
	casErr   error
	lastCut  time.Time
	lastGrd  booking.Guard
	lastDlta booking.Delta
}

func (s *sweepStore) Get(_ context.Context, ref booking.Ref) (booking.Booking, bool, error) {
	return booking.Booking{}, false, nil
}

func (s *sweepStore) Update(_ context.Context, _ booking.Ref, _ booking.Delta) error {
	return errors.New("unexpected blind update")
}

func (s *sweepStore) CompareAndUpdate(_ context.Context, ref booking.Ref, guard booking.Guard, delta booking.Delta) (bool, error) {
	s.lastGrd = guard
	s.lastDlta = delta
	if s.casErr != nil {
		return false, s.casErr
	}
	state := s.states[ref]
	for _, blocked := range guard.PaymentStatusNot {
		if state == blocked {
			return false, nil
		}
	}
	s.applied = append(s.applied, ref)
	return true, nil
}

func (s *sweepStore) ListStaleInitiated(_ context.Context, cutoff time.Time, limit int) ([]booking.Ref, error) {
	s.lastCut = cutoff
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(s.stale) > limit {
		return s.stale[:limit], nil
	}
	return s.stale, nil
}

type sweepRecorder struct {
	recorded []events.Event
}

func (r *sweepRecorder) Record(_ context.Context, ev events.Event) error {
	r.recorded = append(r.recorded, ev)
	return nil
}

func TestSweepExpiresStaleBookings(t *testing.T) {
	refs := []booking.Ref{
		{OwnerID: "u1", BookingID: "b1"},
		{OwnerID: "u2", BookingID: "b2"},
	}
	store := &sweepStore{stale: refs, states: map[booking.Ref]string{}}
	recorder := &sweepRecorder{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := sweep.Sweeper{
		Store:      store,
		SessionTTL: time.Hour,
		Batch:      50,
		Events:     &events.Bus{Recorder: recorder},
		Now:        func() time.Time { return now },
	}
	expired, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if expired != 2 {
		t.Fatalf("expected 2 expired, got %d", expired)
	}
	if !store.lastCut.Equal(now.Add(-time.Hour)) {
		t.Fatalf("cutoff should be now minus session ttl, got %v", store.lastCut)
	}
	if store.lastDlta.Status == nil || *store.lastDlta.Status != booking.StatusPaymentExpired {
		t.Fatalf("delta should move to payment_expired: %#v", store.lastDlta)
	}
	if len(recorder.recorded) != 2 {
		t.Fatalf("expected 2 expired events, got %d", len(recorder.recorded))
	}
	for _, ev := range recorder.recorded {
		if ev.Topic != events.TopicPaymentExpired {
			t.Fatalf("unexpected topic %s", ev.Topic)
		}
	}
}

func TestSweepGuardsAgainstSettledBookings(t *testing.T) {
	ref := booking.Ref{OwnerID: "u1", BookingID: "b1"}
	store := &sweepStore{
		stale:  []booking.Ref{ref},
		states: map[booking.Ref]string{ref: booking.PaymentPaid},
	}
	s := sweep.Sweeper{Store: store, SessionTTL: time.Hour, Batch: 10}

	expired, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if expired != 0 {
		t.Fatalf("settled booking must not be expired")
	}
	for _, blocked := range []string{booking.PaymentPaid, booking.PaymentFailed, booking.PaymentExpired} {
		found := false
		for _, g := range store.lastGrd.PaymentStatusNot {
			if g == blocked {
				found = true
			}
		}
		if !found {
			t.Fatalf("guard missing terminal state %s: %#v", blocked, store.lastGrd)
		}
	}
}

func TestSweepContinuesPastWriteErrors(t *testing.T) {
	refs := []booking.Ref{{OwnerID: "u1", BookingID: "b1"}}
	store := &sweepStore{stale: refs, states: map[booking.Ref]string{}, casErr: errors.New("timeout")}
	s := sweep.Sweeper{Store: store, SessionTTL: time.Hour, Batch: 10}

	expired, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("write error should be logged, not returned: %v", err)
	}
	if expired != 0 {
		t.Fatalf("failed write must not count as expired")
	}
}

func TestSweepListErrorSurfaces(t *testing.T) {
	store := &sweepStore{listErr: errors.New("connection refused")}
	s := sweep.Sweeper{Store: store, SessionTTL: time.Hour}
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatalf("listing failure must surface")
	}
}

func TestSweepEmptyBatchIsNoop(t *testing.T) {
	store := &sweepStore{states: map[booking.Ref]string{}}
	s := sweep.Sweeper{Store: store, SessionTTL: time.Hour}
	expired, err := s.Run(context.Background())
	if err != nil || expired != 0 {
		t.Fatalf("empty batch should be a clean no-op: %d %v", expired, err)
	}
}
