package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/srgjo27/eventflow/internal/core/services"
)

type Purchaser interface {
	IssueAndFulfill(ctx context.Context, in services.IssueInput) (*services.PurchaseResult, error)
	IssueOnly(ctx context.Context, in services.IssueInput) (*services.PurchaseResult, error)
	RetryFulfillment(ctx context.Context, ticketID string) (*services.FulfillResult, error)
}

type AvailabilityReader interface {
	Get(ctx context.Context, batchID string) (*services.Availability, error)
}

type PurchaseHandler struct {
	purchases    Purchaser
	availability AvailabilityReader
}

func NewPurchaseHandler(purchases Purchaser, availability AvailabilityReader) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases, availability: availability}
}

// Routes registers every endpoint on mux.
func (h *PurchaseHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/purchases", h.CreatePurchase)
	mux.HandleFunc("/purchases/prepare", h.PreparePurchase)
	mux.HandleFunc("/tickets/{id}/fulfill", h.RetryFulfillment)
	mux.HandleFunc("/batches/{id}/availability", h.GetAvailability)
	mux.HandleFunc("/health", HealthHandler)
	mux.Handle("/", NotFoundHandler())
}

type purchaseResponse struct {
	TicketID  string           `json:"ticket_id"`
	Delivered bool             `json:"delivered"`
	Summary   services.Summary `json:"summary"`
}

func (h *PurchaseHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	in, ok := decodeIssueInput(w, r)
	if !ok {
		return
	}

	res, err := h.purchases.IssueAndFulfill(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, successResponse{
		Success: true,
		Message: "ticket purchased and sent by email",
		Data:    purchaseResponse{TicketID: res.TicketID, Delivered: res.Delivered, Summary: res.Summary},
	})
}

// PreparePurchase sells a ticket and returns the formatted data without
// emailing it.
func (h *PurchaseHandler) PreparePurchase(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	in, ok := decodeIssueInput(w, r)
	if !ok {
		return
	}

	res, err := h.purchases.IssueOnly(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, successResponse{
		Success: true,
		Message: "ticket created",
		Data:    purchaseResponse{TicketID: res.TicketID, Summary: res.Summary},
	})
}

func (h *PurchaseHandler) RetryFulfillment(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	res, err := h.purchases.RetryFulfillment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	msg := "ticket sent by email"
	if res.AlreadyDelivered {
		msg = "ticket already delivered"
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: msg, Data: res})
}

func (h *PurchaseHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	res, err := h.availability.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true, Data: res})
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	return false
}

func decodeIssueInput(w http.ResponseWriter, r *http.Request) (services.IssueInput, bool) {
	var in services.IssueInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid json body")
		return services.IssueInput{}, false
	}
	return in, true
}
