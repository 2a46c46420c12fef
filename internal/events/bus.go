package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Event is a recorded payment lifecycle transition.
type Event struct {
	Topic     string
	OwnerID   string
	BookingID string
	Payload   []byte
}

// Recorder persists emitted events as an audit trail.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Notifier reacts to emitted events (logging, metrics, downstream hooks).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Bus records payment events and fans them out to downstream handlers.
type Bus struct {
	Recorder  Recorder
	Notifiers []Notifier
}

// Emit records the event and dispatches it to all configured handlers.
// Notifier failures are joined rather than short-circuiting: a broken
// observer must not lose the audit record or starve its peers.
func (b *Bus) Emit(ctx context.Context, topic, ownerID, bookingID string, payload any) error {
	if b == nil || b.Recorder == nil {
		return errors.New("events: recorder not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("events: topic is required")
	}
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(bookingID) == "" {
		return errors.New("events: booking reference is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("events: encode payload: %w", err)
	}
	ev := Event{Topic: topic, OwnerID: ownerID, BookingID: bookingID, Payload: encoded}
	if err := b.Recorder.Record(ctx, ev); err != nil {
		return fmt.Errorf("events: persist event: %w", err)
	}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return joined
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case json.RawMessage:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return []byte("{}"), nil
		}
		data := []byte(v)
		if !json.Valid(data) {
			return nil, errors.New("payload is not valid json")
		}
		return data, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return data, nil
	}
}
