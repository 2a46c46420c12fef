package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// PayMongo implements Provider against the PayMongo checkout sessions API.
type PayMongo struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
	HTTP      *http.Client
}

// NewPayMongo constructs a client with a traced HTTP transport and a bounded
// per-call timeout.
func NewPayMongo(secretKey, baseURL string, timeout time.Duration) PayMongo {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return PayMongo{
		SecretKey: secretKey,
		BaseURL:   baseURL,
		Timeout:   timeout,
		HTTP: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type paymongoLineItem struct {
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Quantity int32  `json:"quantity"`
}

type paymongoSessionAttributes struct {
	Description        string            `json:"description"`
	LineItems          []paymongoLineItem `json:"line_items"`
	PaymentMethodTypes []string          `json:"payment_method_types"`
	SuccessURL         string            `json:"success_url"`
	CancelURL          string            `json:"cancel_url"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	SendEmailReceipt   bool              `json:"send_email_receipt"`
	ShowDescription    bool              `json:"show_description"`
	ShowLineItems      bool              `json:"show_line_items"`
}

type paymongoSessionEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			CheckoutURL string `json:"checkout_url"`
		} `json:"attributes"`
	} `json:"data"`
}

// CreateCheckoutSession opens a hosted checkout session for one booking.
func (p PayMongo) CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error) {
	if strings.TrimSpace(p.SecretKey) == "" {
		return Session{}, errors.New("paymongo: secret key not configured")
	}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "PHP"
	}
	body := map[string]any{
		"data": map[string]any{
			"attributes": paymongoSessionAttributes{
				Description: req.Description,
				LineItems: []paymongoLineItem{{
					Name:     req.Description,
					Amount:   req.Amount,
					Currency: currency,
					Quantity: quantity,
				}},
				PaymentMethodTypes: []string{"card", "gcash", "paymaya"},
				SuccessURL:         req.SuccessURL,
				CancelURL:          req.CancelURL,
				Metadata:           req.Metadata,
				ShowDescription:    true,
				ShowLineItems:      true,
			},
		},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return Session{}, fmt.Errorf("paymongo: encode request: %w", err)
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if endpoint == "" {
		endpoint = "https://api.paymongo.com"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1/checkout_sessions", bytes.NewReader(encoded))
	if err != nil {
		return Session{}, fmt.Errorf("paymongo: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(p.SecretKey+":")))

	client := p.HTTP
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return Session{}, &ProviderError{Err: fmt.Errorf("paymongo: call provider: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Session{}, &ProviderError{StatusCode: resp.StatusCode, Err: fmt.Errorf("paymongo: read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Session{}, &ProviderError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Err:        fmt.Errorf("paymongo: session create returned %d", resp.StatusCode),
		}
	}

	var envelope paymongoSessionEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return Session{}, &ProviderError{StatusCode: resp.StatusCode, Body: string(respBody), Err: fmt.Errorf("paymongo: decode response: %w", err)}
	}
	if envelope.Data.ID == "" || envelope.Data.Attributes.CheckoutURL == "" {
		return Session{}, &ProviderError{StatusCode: resp.StatusCode, Body: string(respBody), Err: errors.New("paymongo: response missing session id or checkout url")}
	}
	return Session{ID: envelope.Data.ID, CheckoutURL: envelope.Data.Attributes.CheckoutURL}, nil
}

// ProviderError carries the upstream status code and body for diagnostics.
type ProviderError struct {
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("provider returned %d", e.StatusCode)
}

// Unwrap exposes the underlying error.
func (e *ProviderError) Unwrap() error { return e.Err }
