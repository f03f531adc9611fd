package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pizza-ops/internal/domain/inventory"
	"github.com/xenking/pizza-ops/internal/domain/menu"
	"github.com/xenking/pizza-ops/internal/domain/order"
	"github.com/xenking/pizza-ops/internal/domain/store"
	"github.com/xenking/pizza-ops/internal/queue"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP status codes. Unrecognized errors
// become 500 with a generic body; the cause goes to the log only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

func statusFor(err error) int {
	var (
		validationErr   *order.ValidationError
		notFoundErr     *order.NotFoundError
		transitionErr   *order.TransitionError
		stockErr        *inventory.InsufficientStockError
		itemNotFoundErr *inventory.NotFoundError
	)
	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, inventory.ErrEmptyRequirements),
		errors.Is(err, inventory.ErrNonPositiveAmount),
		errors.Is(err, inventory.ErrNegativeCost),
		errors.Is(err, inventory.ErrUnknownCategory),
		errors.Is(err, inventory.ErrNegativeStockLevel),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr),
		errors.As(err, &itemNotFoundErr),
		errors.Is(err, menu.ErrNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, queue.ErrUnknownJob):
		return http.StatusNotFound
	case errors.As(err, &stockErr):
		return http.StatusConflict
	case errors.As(err, &transitionErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, queue.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

// decodeBody strictly decodes the JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	return nil
}
