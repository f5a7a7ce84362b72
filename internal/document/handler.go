package document

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/netoho/hestia-app-staging-sub001/internal/actor"
	"github.com/netoho/hestia-app-staging-sub001/internal/actor/entity"
	"github.com/netoho/hestia-app-staging-sub001/internal/staff"
)

// Handler exposes the document-slot endpoints. Callers authenticate with
// a staff session or an actor token; ownership is enforced for tokens.
type Handler struct {
	svc    *Service
	actors *actor.Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, actors *actor.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, actors: actors, logger: logger}
}

func principalFrom(r *http.Request) *actor.Principal {
	if sess, ok := staff.SessionFrom(r.Context()); ok {
		return &actor.Principal{StaffID: sess.StaffID, Role: sess.Role}
	}
	return nil
}

type slotRequest struct {
	Type       entity.ActorType `json:"type"`
	ActorID    string           `json:"actorId,omitempty"`
	Token      string           `json:"token,omitempty"`
	Category   string           `json:"category,omitempty"`
	Filename   string           `json:"filename,omitempty"`
	DocumentID string           `json:"documentId,omitempty"`
	SizeBytes  int64            `json:"sizeBytes,omitempty"`
}

// GenerateUploadURL handles POST /actors/documents/upload-url.
func (h *Handler) GenerateUploadURL(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	a, err := h.actors.ResolveForEdit(r.Context(), principalFrom(r), req.Type, req.ActorID, req.Token)
	if err != nil {
		h.writeError(w, err)
		return
	}
	slot, err := h.svc.GenerateUploadURL(r.Context(), a, req.Category, req.Filename)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, slot)
}

// ConfirmUpload handles POST /actors/documents/confirm.
func (h *Handler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if _, err := h.ownedDocument(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	d, err := h.svc.ConfirmUpload(r.Context(), req.DocumentID, req.SizeBytes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

// List handles GET /actors/documents?type=&actorId=|token=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, err := h.actors.ResolveForRead(r.Context(), principalFrom(r),
		entity.ActorType(q.Get("type")), q.Get("actorId"), q.Get("token"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	docs, err := h.svc.List(r.Context(), a.Type, a.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, docs)
}

// GetDownloadURL handles POST /actors/documents/download-url.
func (h *Handler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if _, err := h.ownedDocumentForRead(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	u, err := h.svc.GetDownloadURL(r.Context(), req.DocumentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"downloadUrl": u})
}

// Delete handles POST /actors/documents/delete.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if _, err := h.ownedDocument(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), req.DocumentID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedDocument authenticates for edit and verifies the document belongs
// to the authenticated actor (staff skip the ownership check).
func (h *Handler) ownedDocument(r *http.Request, req *slotRequest) (*entity.Actor, error) {
	a, err := h.actors.ResolveForEdit(r.Context(), principalFrom(r), req.Type, req.ActorID, req.Token)
	if err != nil {
		return nil, err
	}
	return a, h.checkOwnership(r, req, a)
}

func (h *Handler) ownedDocumentForRead(r *http.Request, req *slotRequest) (*entity.Actor, error) {
	a, err := h.actors.ResolveForRead(r.Context(), principalFrom(r), req.Type, req.ActorID, req.Token)
	if err != nil {
		return nil, err
	}
	return a, h.checkOwnership(r, req, a)
}

func (h *Handler) checkOwnership(r *http.Request, req *slotRequest, a *entity.Actor) error {
	if req.Token == "" {
		return nil
	}
	d, err := h.svc.repo.GetByID(r.Context(), req.DocumentID)
	if err != nil {
		return ErrNotFound
	}
	if d.ActorID != a.ID {
		return actor.ErrUnauthorized
	}
	return nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, actor.ErrUnauthorized):
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	case errors.Is(err, actor.ErrNotFound), errors.Is(err, ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrBadCategory):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.logger.Errorw("document request failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
