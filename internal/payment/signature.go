package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rs/zerolog"
)

// VerificationMode states explicitly whether webhook signatures are checked.
// The mode is fixed at construction rather than inferred from ambient
// environment state at call time.
type VerificationMode int

const (
	// ModeEnforced rejects any webhook whose signature does not match.
	ModeEnforced VerificationMode = iota
	// ModeDisabled accepts every webhook. Local development only.
	ModeDisabled
)

// String implements fmt.Stringer for log fields.
func (m VerificationMode) String() string {
	if m == ModeDisabled {
		return "disabled"
	}
	return "enforced"
}

// Verifier authenticates inbound webhook bodies against the shared secret.
type Verifier struct {
	mode   VerificationMode
	secret []byte
}

// NewVerifier builds a verifier. An empty secret selects disabled mode,
// which must be loud in logs so it never ships to production unnoticed.
func NewVerifier(secret string, logger zerolog.Logger) Verifier {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		logger.Warn().Msg("webhook signature verification DISABLED: no webhook secret configured, accepting all payloads")
		return Verifier{mode: ModeDisabled}
	}
	return Verifier{mode: ModeEnforced, secret: []byte(trimmed)}
}

// Mode reports the active verification mode.
func (v Verifier) Mode() VerificationMode { return v.mode }

// Enforced reports whether signatures are required.
func (v Verifier) Enforced() bool { return v.mode == ModeEnforced }

// Verify checks the hex HMAC-SHA256 of the raw, unparsed request body
// against the signature header. The raw bytes matter: re-serialized JSON can
// silently change byte layout and invalidate a legitimate signature. The
// comparison is constant-time.
func (v Verifier) Verify(rawBody []byte, signatureHeader string) bool {
	if v.mode == ModeDisabled {
		return true
	}
	provided := strings.TrimSpace(signatureHeader)
	if provided == "" {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}

// ComputeSignature returns the hex HMAC-SHA256 of body under secret.
// Exported for tests and tooling that need to sign synthetic payloads.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
