package actor

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/netoho/hestia-app-staging-sub001/internal/actor/entity"
	"github.com/netoho/hestia-app-staging-sub001/internal/staff"
)

// Handler exposes HTTP endpoints for actor self-service and staff review.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func principalFrom(r *http.Request) *Principal {
	if sess, ok := staff.SessionFrom(r.Context()); ok {
		return &Principal{StaffID: sess.StaffID, Role: sess.Role}
	}
	return nil
}

// GetByToken handles GET /actors?token=&type=.
func (h *Handler) GetByToken(w http.ResponseWriter, r *http.Request) {
	t := entity.ActorType(r.URL.Query().Get("type"))
	token := r.URL.Query().Get("token")
	view, err := h.svc.GetByToken(r.Context(), t, token)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// UpdateRequest is the actor.update payload: type, one identifier, and
// the data map carrying fields plus metadata keys.
type UpdateRequest struct {
	Type    entity.ActorType `json:"type"`
	ActorID string           `json:"actorId,omitempty"`
	Token   string           `json:"token,omitempty"`
	Data    map[string]any   `json:"data"`
}

// Update handles POST /actors/update.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	res, err := h.svc.Update(r.Context(), principalFrom(r), UpdateInput{
		Type:    req.Type,
		ActorID: req.ActorID,
		Token:   req.Token,
		Data:    req.Data,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if res.Validation != nil && !res.Validation.OK {
		status = http.StatusBadRequest
	}
	h.writeJSON(w, status, res)
}

// SubmitRequest identifies an actor for explicit submission.
type SubmitRequest struct {
	Type    entity.ActorType `json:"type"`
	ActorID string           `json:"actorId,omitempty"`
	Token   string           `json:"token,omitempty"`
}

// Submit handles POST /actors/submit for staff and token callers alike.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	id := req.ActorID
	if req.Token != "" {
		view, err := h.svc.GetByToken(r.Context(), req.Type, req.Token)
		if err != nil {
			h.writeError(w, err)
			return
		}
		id = view.Actor.ID
	} else if principalFrom(r) == nil {
		h.writeError(w, ErrUnauthorized)
		return
	}
	outcome, err := h.svc.Submit(r.Context(), req.Type, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, outcome)
}

// ForceComplete handles POST /actors/force-complete; admin only, audited.
func (h *Handler) ForceComplete(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	a, err := h.svc.SubmitForced(r.Context(), principalFrom(r), req.Type, req.ActorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, a)
}

// RegenerateToken handles POST /actors/regenerate-token; staff only.
func (h *Handler) RegenerateToken(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if principalFrom(r) == nil {
		h.writeError(w, ErrUnauthorized)
		return
	}
	token, expiry, err := h.svc.RegenerateToken(r.Context(), req.Type, req.ActorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"accessToken": token, "tokenExpiry": expiry})
}

// writeError maps service errors to status codes. Auth failures stay
// flat so callers cannot probe which actors or tokens exist.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	case errors.Is(err, ErrForbidden):
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrUnknownTab):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.logger.Errorw("actor request failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
