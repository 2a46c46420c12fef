package payment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Webhook event kinds delivered by the provider.
const (
	EventPaymentPaid    = "checkout_session.payment.paid"
	EventPaymentFailed  = "checkout_session.payment.failed"
	EventSessionExpired = "checkout_session.expired"
)

// Event is the provider's webhook envelope. Events are transient: they are
// never persisted by the core, only classified, dispatched and discarded.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData carries the checkout-session-shaped payload. Metadata surfaces
// at data.attributes.metadata in current payloads; older SDK shapes place it
// directly at data.metadata.
type EventData struct {
	ID         string            `json:"id"`
	Attributes EventAttributes   `json:"attributes"`
	Metadata   map[string]string `json:"metadata"`
}

// EventAttributes holds the session attributes relevant to reconciliation.
type EventAttributes struct {
	Metadata          map[string]string `json:"metadata"`
	FailureReason     string            `json:"failure_reason"`
	PaymentMethodUsed string            `json:"payment_method_used"`
}

// ParseEvent decodes a webhook body into an Event.
func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("payment: decode webhook event: %w", err)
	}
	if strings.TrimSpace(ev.Type) == "" {
		return Event{}, fmt.Errorf("payment: webhook event missing type")
	}
	return ev, nil
}

// Known reports whether the event kind is one the reconciler handles.
func (e Event) Known() bool {
	switch e.Type {
	case EventPaymentPaid, EventPaymentFailed, EventSessionExpired:
		return true
	default:
		return false
	}
}

// metadataExtractor returns the metadata bag from one known payload shape.
type metadataExtractor func(Event) (map[string]string, bool)

// metadataExtractors are tried in order, outermost shape first.
var metadataExtractors = []metadataExtractor{
	func(e Event) (map[string]string, bool) {
		if len(e.Data.Attributes.Metadata) > 0 {
			return e.Data.Attributes.Metadata, true
		}
		return nil, false
	},
	func(e Event) (map[string]string, bool) {
		if len(e.Data.Metadata) > 0 {
			return e.Data.Metadata, true
		}
		return nil, false
	},
}

// Metadata returns the event's metadata bag, trying each payload shape in
// sequence.
func (e Event) Metadata() (map[string]string, bool) {
	for _, extract := range metadataExtractors {
		if meta, ok := extract(e); ok {
			return meta, true
		}
	}
	return nil, false
}

// BookingRef extracts the (ownerId, bookingId) pair linking the event back
// to a booking.
func (e Event) BookingRef() (ownerID, bookingID string, ok bool) {
	meta, found := e.Metadata()
	if !found {
		return "", "", false
	}
	ownerID = strings.TrimSpace(meta["userId"])
	bookingID = strings.TrimSpace(meta["bookingId"])
	if ownerID == "" || bookingID == "" {
		return "", "", false
	}
	return ownerID, bookingID, true
}
