package address

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

type Handler struct {
	provider Provider
	logger   *zap.SugaredLogger
}

func NewHandler(provider Provider, logger *zap.SugaredLogger) *Handler {
	return &Handler{provider: provider, logger: logger}
}

// Autocomplete handles GET /address/autocomplete?text=.
func (h *Handler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.provider.Autocomplete(r.Context(), r.URL.Query().Get("text"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, suggestions)
}

// Details handles GET /address/details?placeId=.
func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	d, err := h.provider.PlaceDetails(r.Context(), r.URL.Query().Get("placeId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadQuery):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrUnavailable):
		h.logger.Warnw("address provider unavailable", "err", err)
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "address service unavailable"})
	default:
		h.logger.Errorw("address request failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
