package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sakay-ph/payments-api/internal/payment"
)

func sessionRequest() payment.SessionRequest {
	return payment.SessionRequest{
		BookingID:   "bk-1",
		OwnerID:     "user-1",
		Amount:      250_00,
		Currency:    "php",
		Quantity:    2,
		Description: "R1: Cubao to Baguio",
		SuccessURL:  "https://app.sakay.ph/payment/success?bookingId=bk-1",
		CancelURL:   "https://app.sakay.ph/payment/cancel?bookingId=bk-1",
		Metadata:    map[string]string{"bookingId": "bk-1", "userId": "user-1"},
	}
}

func TestPayMongoCreateCheckoutSession(t *testing.T) {
	var captured struct {
		auth string
		body map[string]any
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout_sessions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		captured.auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured.body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"cs_live_1","attributes":{"checkout_url":"https://checkout.paymongo.com/cs_live_1"}}}`))
	}))
	defer server.Close()

	client := payment.NewPayMongo("sk_test_abc", server.URL, 2*time.Second)
	session, err := client.CreateCheckoutSession(context.Background(), sessionRequest())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ID != "cs_live_1" || session.CheckoutURL != "https://checkout.paymongo.com/cs_live_1" {
		t.Fatalf("unexpected session %+v", session)
	}

	// Basic auth is base64("sk_test_abc:").
	if captured.auth != "Basic c2tfdGVzdF9hYmM6" {
		t.Fatalf("unexpected auth header %q", captured.auth)
	}

	data, _ := captured.body["data"].(map[string]any)
	attrs, _ := data["attributes"].(map[string]any)
	if attrs == nil {
		t.Fatalf("request missing data.attributes: %#v", captured.body)
	}
	items, _ := attrs["line_items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one line item: %#v", attrs["line_items"])
	}
	item := items[0].(map[string]any)
	if item["amount"] != float64(250_00) || item["currency"] != "PHP" || item["quantity"] != float64(2) {
		t.Fatalf("unexpected line item %#v", item)
	}
	methods, _ := attrs["payment_method_types"].([]any)
	if len(methods) != 3 {
		t.Fatalf("expected card, gcash, paymaya: %#v", methods)
	}
	meta, _ := attrs["metadata"].(map[string]any)
	if meta["bookingId"] != "bk-1" || meta["userId"] != "user-1" {
		t.Fatalf("metadata not forwarded: %#v", meta)
	}
}

func TestPayMongoErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":[{"detail":"amount below minimum"}]}`))
	}))
	defer server.Close()

	client := payment.NewPayMongo("sk_test_abc", server.URL, 2*time.Second)
	_, err := client.CreateCheckoutSession(context.Background(), sessionRequest())
	if err == nil {
		t.Fatalf("expected provider error")
	}
	var provErr *payment.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %T", err)
	}
	if provErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d", provErr.StatusCode)
	}
	if provErr.Body == "" {
		t.Fatalf("provider body should be preserved for diagnostics")
	}
}

func TestPayMongoRejectsIncompleteResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"","attributes":{}}}`))
	}))
	defer server.Close()

	client := payment.NewPayMongo("sk_test_abc", server.URL, 2*time.Second)
	if _, err := client.CreateCheckoutSession(context.Background(), sessionRequest()); err == nil {
		t.Fatalf("missing session id must be an error")
	}
}

func TestPayMongoRequiresSecretKey(t *testing.T) {
	client := payment.PayMongo{BaseURL: "https://api.paymongo.com"}
	if _, err := client.CreateCheckoutSession(context.Background(), sessionRequest()); err == nil {
		t.Fatalf("missing secret key must be an error")
	}
}
