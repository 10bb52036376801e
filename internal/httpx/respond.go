package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/gasvida/gas-orders/internal/inventory"
	"github.com/gasvida/gas-orders/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errBody struct {
	Error     string               `json:"error"`
	Shortages []inventory.Shortage `json:"shortages,omitempty"`
	From      orders.Status        `json:"current_status,omitempty"`
	To        orders.Status        `json:"target_status,omitempty"`
}

// writeError maps domain errors onto HTTP statuses. Business failures carry
// enough detail for the client to resync; storage failures stay generic.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		vErr    *orders.ValidationError
		nfErr   *orders.NotFoundError
		uaErr   *orders.UnauthorizedError
		stErr   *orders.InvalidStateTransitionError
		insErr  *inventory.InsufficientStockError
		missErr *inventory.RecordMissingError
	)
	switch {
	case errors.As(err, &vErr) || errors.Is(err, inventory.ErrZeroDelta):
		writeJSON(w, http.StatusBadRequest, errBody{Error: err.Error()})
	case errors.As(err, &uaErr):
		writeJSON(w, http.StatusForbidden, errBody{Error: err.Error()})
	case errors.As(err, &nfErr):
		writeJSON(w, http.StatusNotFound, errBody{Error: err.Error()})
	case errors.As(err, &stErr):
		writeJSON(w, http.StatusConflict, errBody{Error: err.Error(), From: stErr.From, To: stErr.To})
	case errors.As(err, &insErr):
		writeJSON(w, http.StatusConflict, errBody{Error: "insufficient stock", Shortages: insErr.Shortages})
	case errors.As(err, &missErr):
		writeJSON(w, http.StatusConflict, errBody{Error: err.Error()})
	default:
		log.Error("internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errBody{Error: "internal error"})
	}
}
