package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/srgjo27/eventflow/internal/core/domain"
	"github.com/srgjo27/eventflow/internal/core/services"
)

const (
	codeMethodNotAllowed      = "method_not_allowed"
	codeNotFound              = "not_found"
	codeInvalidRequestBody    = "invalid_request_body"
	codeInvalidInput          = "invalid_input"
	codeSoldOut               = "sold_out"
	codeConflict              = "transaction_conflict"
	codeArtifactFailed        = "artifact_generation_failed"
	codeDeliveryFailed        = "delivery_failed"
	codeFulfillmentInProgress = "fulfillment_in_progress"
	codeStoreUnavailable      = "store_unavailable"
	codeForbidden             = "forbidden"
	codeInternalError         = "internal_error"
)

const retryAfterSeconds = "1"

type errorResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Code     string `json:"code"`
	Outcome  string `json:"outcome,omitempty"`
	TicketID string `json:"ticket_id,omitempty"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorResponse(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(resp)
	if err != nil {
		_, _ = w.Write([]byte(`{"success":false,"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps a service error to its HTTP status and error code.
// The outcome tells the client whether the purchase may be retried as a whole
// or only its fulfillment.
func writeServiceError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var perr *services.PurchaseError
	if errors.As(err, &perr) {
		resp.Outcome = string(perr.Outcome)
		resp.TicketID = perr.TicketID
		resp.Error = perr.Err.Error()
	}

	var status int
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status, resp.Code = http.StatusBadRequest, codeInvalidInput
	case errors.Is(err, domain.ErrNotFound):
		status, resp.Code = http.StatusNotFound, codeNotFound
	case errors.Is(err, domain.ErrInventoryExhausted):
		status, resp.Code = http.StatusConflict, codeSoldOut
		resp.Error = "sold out"
	case errors.Is(err, domain.ErrTransactionConflict):
		status, resp.Code = http.StatusServiceUnavailable, codeConflict
		w.Header().Set("Retry-After", retryAfterSeconds)
	case errors.Is(err, domain.ErrArtifactGenerationFailed):
		status, resp.Code = http.StatusInternalServerError, codeArtifactFailed
	case errors.Is(err, domain.ErrDeliveryFailed):
		status, resp.Code = http.StatusBadGateway, codeDeliveryFailed
	case errors.Is(err, domain.ErrFulfillmentInProgress):
		status, resp.Code = http.StatusConflict, codeFulfillmentInProgress
	case errors.Is(err, domain.ErrStoreUnavailable):
		status, resp.Code = http.StatusServiceUnavailable, codeStoreUnavailable
		w.Header().Set("Retry-After", retryAfterSeconds)
		resp.Error = "store unavailable"
	default:
		status, resp.Code = http.StatusInternalServerError, codeInternalError
		resp.Error = "internal error"
	}

	writeErrorResponse(w, status, resp)
}
