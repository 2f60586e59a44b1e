package transport

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"orderservice/pkg/order/domain/model"
	"orderservice/pkg/order/domain/service"
	"orderservice/pkg/order/infrastructure/idempotency"
)

var errMalformedRequest = errors.New("malformed request")

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errMalformedRequest),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidProduct),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidStockQuantity),
		errors.Is(err, service.ErrInvalidCustomerData):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCustomer),
		errors.Is(err, service.ErrInvalidProducts):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrOrderNotFound),
		errors.Is(err, model.ErrProductNotFound),
		errors.Is(err, model.ErrCustomerNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientStock),
		errors.Is(err, model.ErrEmailTaken),
		errors.Is(err, model.ErrProductNameTaken),
		errors.Is(err, idempotency.ErrInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// rejectionReason labels order rejections for metrics; empty for failures
// that are not the caller's fault.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidCustomer):
		return "invalid_customer"
	case errors.Is(err, service.ErrInvalidProducts):
		return "invalid_products"
	case errors.Is(err, model.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, model.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, service.ErrInvalidQuantity):
		return "invalid_quantity"
	default:
		return ""
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed")
		message = http.StatusText(status)
	}
	h.writeJSON(w, status, errorResponse{Error: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Error("failed to write response")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errors.Wrap(errMalformedRequest, err.Error())
	}
	return nil
}
