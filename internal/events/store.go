package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PGRecorder appends events to the payment_events table.
type PGRecorder struct {
	Pool *pgxpool.Pool
}

// Record implements Recorder.
func (r PGRecorder) Record(ctx context.Context, event Event) error {
	if r.Pool == nil {
		return fmt.Errorf("events: pg recorder not configured")
	}
	_, err := r.Pool.Exec(ctx, `
INSERT INTO payment_events (owner_id, booking_id, topic, payload)
VALUES ($1, $2, $3, $4)`,
		event.OwnerID, event.BookingID, event.Topic, event.Payload)
	if err != nil {
		return fmt.Errorf("events: insert %s: %w", event.Topic, err)
	}
	return nil
}

// LogNotifier emits a structured log line per event.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Info().
		Str("topic", event.Topic).
		Str("owner_id", event.OwnerID).
		Str("booking_id", event.BookingID).
		RawJSON("payload", event.Payload).
		Msg("payment_event")
	return nil
}
