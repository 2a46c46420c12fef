package payment

import (
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sakay-ph/payments-api/internal/common"
	"github.com/sakay-ph/payments-api/internal/obs"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Signature"

// WebhookHandler authenticates and dispatches provider webhook callbacks.
type WebhookHandler struct {
	Verifier   Verifier
	Reconciler *Reconciler
	Logger     zerolog.Logger
}

// Handle processes one webhook delivery.
//
// Once the signature passes, the response is 200 {received:true} no matter
// what the reconciler decides — including lookup failures and transient
// store errors. Re-delivering a permanently broken event would only retry-
// storm; unresolvable events are logged and dropped instead.
func (h WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Reconciler == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodePersistence, "webhook unavailable", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "unable to read payload", nil)
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if h.Verifier.Enforced() && signature == "" {
		if obs.WebhookSignatureRejects != nil {
			obs.WebhookSignatureRejects.WithLabelValues("missing").Inc()
		}
		common.JSONError(w, http.StatusBadRequest, common.CodeAuth, "missing signature header", nil)
		return
	}
	if !h.Verifier.Verify(body, signature) {
		// Same response whether or not the referenced booking exists.
		if obs.WebhookSignatureRejects != nil {
			obs.WebhookSignatureRejects.WithLabelValues("mismatch").Inc()
		}
		common.JSONError(w, http.StatusUnauthorized, common.CodeAuth, "signature verification failed", nil)
		return
	}

	ev, err := ParseEvent(body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "malformed webhook payload", nil)
		return
	}

	outcome, err := h.Reconciler.Apply(r.Context(), ev)
	if err != nil {
		h.Logger.Error().Err(err).
			Str("event_id", ev.ID).
			Str("event_type", ev.Type).
			Msg("webhook event not applied")
	} else {
		h.Logger.Info().
			Str("event_id", ev.ID).
			Str("event_type", ev.Type).
			Str("outcome", string(outcome)).
			Msg("webhook event processed")
	}

	common.JSON(w, http.StatusOK, map[string]bool{"received": true})
}
