package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sakay-ph/payments-api/internal/events"
)

type captureRecorder struct {
	events []events.Event
	err    error
}

func (r *captureRecorder) Record(_ context.Context, ev events.Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

type captureNotifier struct {
	events []events.Event
	err    error
}

func (n *captureNotifier) Notify(_ context.Context, ev events.Event) error {
	n.events = append(n.events, ev)
	return n.err
}

func TestEmitRecordsAndNotifies(t *testing.T) {
	rec := &captureRecorder{}
	n1 := &captureNotifier{}
	n2 := &captureNotifier{}
	bus := &events.Bus{Recorder: rec, Notifiers: []events.Notifier{n1, n2}}

	err := bus.Emit(context.Background(), events.TopicPaymentPaid, "u1", "b1", map[string]any{"paymentMethod": "gcash"})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected one recorded event, got %d", len(rec.events))
	}
	ev := rec.events[0]
	if ev.Topic != events.TopicPaymentPaid || ev.OwnerID != "u1" || ev.BookingID != "b1" {
		t.Fatalf("unexpected event %#v", ev)
	}
	var decoded map[string]string
	if err := json.Unmarshal(ev.Payload, &decoded); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	if decoded["paymentMethod"] != "gcash" {
		t.Fatalf("payload lost: %s", ev.Payload)
	}
	if len(n1.events) != 1 || len(n2.events) != 1 {
		t.Fatalf("notifiers not fanned out: %d %d", len(n1.events), len(n2.events))
	}
}

func TestEmitNilPayloadBecomesEmptyObject(t *testing.T) {
	rec := &captureRecorder{}
	bus := &events.Bus{Recorder: rec}
	if err := bus.Emit(context.Background(), events.TopicPaymentExpired, "u1", "b1", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if string(rec.events[0].Payload) != "{}" {
		t.Fatalf("expected empty object payload, got %s", rec.events[0].Payload)
	}
}

func TestEmitRejectsInvalidRawPayload(t *testing.T) {
	bus := &events.Bus{Recorder: &captureRecorder{}}
	if err := bus.Emit(context.Background(), events.TopicPaymentPaid, "u1", "b1", []byte("{broken")); err == nil {
		t.Fatalf("invalid raw json must be rejected")
	}
}

func TestEmitRequiresTopicAndRef(t *testing.T) {
	bus := &events.Bus{Recorder: &captureRecorder{}}
	if err := bus.Emit(context.Background(), "", "u1", "b1", nil); err == nil {
		t.Fatalf("empty topic must error")
	}
	if err := bus.Emit(context.Background(), events.TopicPaymentPaid, "", "b1", nil); err == nil {
		t.Fatalf("empty owner must error")
	}
	if err := bus.Emit(context.Background(), events.TopicPaymentPaid, "u1", " ", nil); err == nil {
		t.Fatalf("blank booking id must error")
	}
}

func TestEmitNotifierFailureDoesNotStarvePeers(t *testing.T) {
	rec := &captureRecorder{}
	failing := &captureNotifier{err: errors.New("observer down")}
	healthy := &captureNotifier{}
	bus := &events.Bus{Recorder: rec, Notifiers: []events.Notifier{failing, healthy}}

	err := bus.Emit(context.Background(), events.TopicPaymentFailed, "u1", "b1", nil)
	if err == nil {
		t.Fatalf("notifier failure should surface")
	}
	if len(rec.events) != 1 {
		t.Fatalf("audit record must land despite notifier failure")
	}
	if len(healthy.events) != 1 {
		t.Fatalf("healthy notifier must still run")
	}
}

func TestEmitRecorderFailureShortCircuits(t *testing.T) {
	n := &captureNotifier{}
	bus := &events.Bus{Recorder: &captureRecorder{err: errors.New("insert failed")}, Notifiers: []events.Notifier{n}}
	if err := bus.Emit(context.Background(), events.TopicPaymentPaid, "u1", "b1", nil); err == nil {
		t.Fatalf("recorder failure must surface")
	}
	if len(n.events) != 0 {
		t.Fatalf("notifiers must not run when the record was lost")
	}
}
