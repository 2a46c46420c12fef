package payment_test

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sakay-ph/payments-api/internal/payment"
)

func TestVerifierEnforcedAcceptsValidSignature(t *testing.T) {
	secret := "whsk_test_secret"
	v := payment.NewVerifier(secret, zerolog.Nop())
	if !v.Enforced() {
		t.Fatalf("expected enforced mode with a secret configured")
	}

	body := []byte(`{"id":"evt_1","type":"checkout_session.payment.paid"}`)
	sig := payment.ComputeSignature(secret, body)
	if !v.Verify(body, sig) {
		t.Fatalf("valid signature rejected")
	}
}

func TestVerifierAcceptsUppercaseHex(t *testing.T) {
	secret := "whsk_test_secret"
	v := payment.NewVerifier(secret, zerolog.Nop())
	body := []byte(`{"id":"evt_1"}`)
	sig := strings.ToUpper(payment.ComputeSignature(secret, body))
	if !v.Verify(body, sig) {
		t.Fatalf("uppercase hex signature rejected")
	}
}

func TestVerifierRejectsTamperedBody(t *testing.T) {
	secret := "whsk_test_secret"
	v := payment.NewVerifier(secret, zerolog.Nop())
	body := []byte(`{"amount":15000}`)
	sig := payment.ComputeSignature(secret, body)

	tampered := []byte(`{"amount":1}`)
	if v.Verify(tampered, sig) {
		t.Fatalf("tampered body accepted")
	}
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	v := payment.NewVerifier("right_secret", zerolog.Nop())
	body := []byte(`{"id":"evt_1"}`)
	sig := payment.ComputeSignature("wrong_secret", body)
	if v.Verify(body, sig) {
		t.Fatalf("signature under wrong secret accepted")
	}
}

func TestVerifierRejectsEmptyHeaderWhenEnforced(t *testing.T) {
	v := payment.NewVerifier("whsk_test_secret", zerolog.Nop())
	if v.Verify([]byte(`{}`), "") {
		t.Fatalf("empty signature header accepted in enforced mode")
	}
	if v.Verify([]byte(`{}`), "   ") {
		t.Fatalf("blank signature header accepted in enforced mode")
	}
}

func TestVerifierDisabledAcceptsEverything(t *testing.T) {
	v := payment.NewVerifier("", zerolog.Nop())
	if v.Enforced() {
		t.Fatalf("expected disabled mode with empty secret")
	}
	if v.Mode() != payment.ModeDisabled {
		t.Fatalf("unexpected mode %v", v.Mode())
	}
	if !v.Verify([]byte(`{"anything":true}`), "") {
		t.Fatalf("disabled verifier rejected payload")
	}
	if !v.Verify([]byte(`{"anything":true}`), "garbage") {
		t.Fatalf("disabled verifier rejected payload with junk signature")
	}
}

func TestVerifierModeFixedAtConstruction(t *testing.T) {
	// Whitespace-only secrets mean no secret.
	v := payment.NewVerifier("   ", zerolog.Nop())
	if v.Mode() != payment.ModeDisabled {
		t.Fatalf("whitespace secret should select disabled mode")
	}
}
