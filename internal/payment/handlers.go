package payment

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/sakay-ph/payments-api/internal/booking"
	"github.com/sakay-ph/payments-api/internal/common"
)

// Handler exposes HTTP endpoints for checkout session creation and status polling.
type Handler struct {
	Svc      *Service
	Store    booking.Store
	Validate *validator.Validate
}

type checkoutMetadata struct {
	BookingID string `json:"bookingId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	Route     string `json:"route"`
	FromPlace string `json:"fromPlace"`
	ToPlace   string `json:"toPlace"`
	Quantity  int32  `json:"quantity"`
	FareTypes string `json:"fareTypes"`
}

type checkoutRequest struct {
	Amount   int64            `json:"amount" validate:"required,gt=0"`
	Currency string           `json:"currency"`
	Metadata checkoutMetadata `json:"metadata" validate:"required"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
	CheckoutID  string `json:"checkoutId"`
}

// Checkout creates a provider checkout session for an existing booking.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodePersistence, "payment handler unavailable", nil)
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "missing or invalid fields", map[string]any{"error": err.Error()})
			return
		}
	}

	ref := booking.Ref{
		OwnerID:   strings.TrimSpace(req.Metadata.UserID),
		BookingID: strings.TrimSpace(req.Metadata.BookingID),
	}
	b, found, err := h.Store.Get(r.Context(), ref)
	if err != nil {
		common.RenderError(w, common.PersistenceError("booking lookup failed", err))
		return
	}
	if !found {
		common.RenderError(w, common.NotFoundError("booking not found"))
		return
	}

	fare := FareInfo{
		Amount:    req.Amount,
		Currency:  req.Currency,
		Route:     req.Metadata.Route,
		FromPlace: req.Metadata.FromPlace,
		ToPlace:   req.Metadata.ToPlace,
		Quantity:  req.Metadata.Quantity,
		FareTypes: req.Metadata.FareTypes,
	}
	session, err := h.Svc.CreateSession(r.Context(), b, fare)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, checkoutResponse{
		CheckoutURL: session.CheckoutURL,
		CheckoutID:  session.ID,
	})
}

// Status reports the booking's current payment state for polling clients.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodePersistence, "payment handler unavailable", nil)
		return
	}
	bookingID := strings.TrimSpace(chi.URLParam(r, "bookingId"))
	if bookingID == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "bookingId is required", nil)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "userId is required", nil)
		return
	}

	b, found, err := h.Store.Get(r.Context(), booking.Ref{OwnerID: userID, BookingID: bookingID})
	if err != nil {
		common.RenderError(w, common.PersistenceError("booking lookup failed", err))
		return
	}
	if !found {
		common.RenderError(w, common.NotFoundError("booking not found"))
		return
	}
	common.JSON(w, http.StatusOK, ProjectStatus(b))
}
