package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"devpulse/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the error taxonomy onto HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	var authErr *apperr.AuthError
	var deliveryErr *apperr.DeliveryError

	switch {
	case errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrInvalidSchedule),
		errors.Is(err, apperr.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &authErr), errors.As(err, &deliveryErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}
