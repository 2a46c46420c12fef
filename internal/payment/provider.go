package payment

import "context"

// SessionRequest captures the information required to open a hosted checkout
// session with the provider.
type SessionRequest struct {
	BookingID   string
	OwnerID     string
	Amount      int64
	Currency    string
	Quantity    int32
	Description string
	SuccessURL  string
	CancelURL   string
	// Metadata mirrors the booking's fare fields. It is the only link between
	// a later webhook event and the booking, since the provider does not echo
	// back arbitrary internal ids.
	Metadata map[string]string
}

// Session is the minimal information returned by a provider when a checkout
// session is created.
type Session struct {
	ID          string
	CheckoutURL string
}

// Provider abstracts the upstream checkout provider.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error)
}
