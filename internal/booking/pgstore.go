package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by Update when the booking does not exist.
var ErrNotFound = errors.New("booking: not found")

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

// NewPGStore constructs a Postgres-backed booking store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

const selectBooking = `
SELECT owner_id, booking_id, amount, COALESCE(currency, ''), COALESCE(route, ''),
       COALESCE(from_place, ''), COALESCE(to_place, ''), quantity, COALESCE(fare_types, ''),
       COALESCE(status, ''), COALESCE(payment_status, ''), COALESCE(boarding_status, ''),
       COALESCE(checkout_session_id, ''), COALESCE(checkout_url, ''),
       COALESCE(provider_payment_id, ''), COALESCE(payment_method, ''), COALESCE(payment_error, ''),
       created_at, payment_initiated_at, paid_at, payment_completed_at,
       payment_failed_at, payment_expired_at, webhook_processed_at, updated_at
FROM bookings
WHERE owner_id = $1 AND booking_id = $2`

// Get fetches a booking by its composite key.
func (s *PGStore) Get(ctx context.Context, ref Ref) (Booking, bool, error) {
	var b Booking
	row := s.Pool.QueryRow(ctx, selectBooking, ref.OwnerID, ref.BookingID)
	err := row.Scan(
		&b.OwnerID, &b.BookingID, &b.Amount, &b.Currency, &b.Route,
		&b.FromPlace, &b.ToPlace, &b.Quantity, &b.FareTypes,
		&b.Status, &b.PaymentStatus, &b.BoardingStatus,
		&b.CheckoutSessionID, &b.CheckoutURL,
		&b.ProviderPaymentID, &b.PaymentMethod, &b.PaymentError,
		&b.CreatedAt, &b.PaymentInitiatedAt, &b.PaidAt, &b.PaymentCompletedAt,
		&b.PaymentFailedAt, &b.PaymentExpiredAt, &b.WebhookProcessedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, false, nil
		}
		return Booking{}, false, fmt.Errorf("booking: get %s/%s: %w", ref.OwnerID, ref.BookingID, err)
	}
	return b, true, nil
}

// Update applies a blind partial-field patch.
func (s *PGStore) Update(ctx context.Context, ref Ref, delta Delta) error {
	if delta.IsZero() {
		return nil
	}
	query, args := buildUpdate(ref, Guard{}, delta)
	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("booking: update %s/%s: %w", ref.OwnerID, ref.BookingID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompareAndUpdate applies the patch only when the guard predicate holds.
// The predicate is evaluated inside the UPDATE so check and write are atomic;
// a zero rows-affected result means another writer won or the booking is gone.
func (s *PGStore) CompareAndUpdate(ctx context.Context, ref Ref, guard Guard, delta Delta) (bool, error) {
	if delta.IsZero() {
		return true, nil
	}
	query, args := buildUpdate(ref, guard, delta)
	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("booking: conditional update %s/%s: %w", ref.OwnerID, ref.BookingID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListStaleInitiated returns bookings stuck in payment_initiated past the cutoff.
func (s *PGStore) ListStaleInitiated(ctx context.Context, cutoff time.Time, limit int) ([]Ref, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `
SELECT owner_id, booking_id
FROM bookings
WHERE status = $1 AND payment_initiated_at IS NOT NULL AND payment_initiated_at < $2
ORDER BY payment_initiated_at
LIMIT $3`, StatusPaymentInitiated, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("booking: list stale: %w", err)
	}
	defer rows.Close()

	var refs []Ref
	for rows.Next() {
		var ref Ref
		if err := rows.Scan(&ref.OwnerID, &ref.BookingID); err != nil {
			return nil, fmt.Errorf("booking: scan stale ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: list stale: %w", err)
	}
	return refs, nil
}

// buildUpdate assembles the dynamic UPDATE for a delta. Positional arguments
// start after the key pair; the guard, when present, becomes part of the
// WHERE clause.
func buildUpdate(ref Ref, guard Guard, delta Delta) (string, []any) {
	args := []any{ref.OwnerID, ref.BookingID}
	var set []string

	addString := func(column string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addTime := func(column string, v *time.Time) {
		if v == nil {
			return
		}
		args = append(args, *v)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	addString("status", delta.Status)
	addString("payment_status", delta.PaymentStatus)
	addString("checkout_session_id", delta.CheckoutSessionID)
	addString("checkout_url", delta.CheckoutURL)
	addString("provider_payment_id", delta.ProviderPaymentID)
	addString("payment_method", delta.PaymentMethod)
	if delta.ClearPaymentError {
		set = append(set, "payment_error = NULL")
	} else {
		addString("payment_error", delta.PaymentError)
	}
	addTime("payment_initiated_at", delta.PaymentInitiatedAt)
	addTime("paid_at", delta.PaidAt)
	addTime("payment_completed_at", delta.PaymentCompletedAt)
	addTime("payment_failed_at", delta.PaymentFailedAt)
	addTime("payment_expired_at", delta.PaymentExpiredAt)
	addTime("webhook_processed_at", delta.WebhookProcessedAt)
	set = append(set, "updated_at = now()")

	where := []string{"owner_id = $1", "booking_id = $2"}
	if len(guard.PaymentStatusNot) > 0 {
		args = append(args, guard.PaymentStatusNot)
		where = append(where, fmt.Sprintf("NOT (COALESCE(payment_status, '') = ANY($%d))", len(args)))
	}

	query := fmt.Sprintf("UPDATE bookings SET %s WHERE %s",
		strings.Join(set, ", "), strings.Join(where, " AND "))
	return query, args
}
