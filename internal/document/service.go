// Package document manages actor document upload slots: metadata rows in
// Postgres plus expiring URLs from the storage collaborator. Files flow
// through a two-phase contract (generate upload URL, confirm upload) so
// only confirmed uploads count toward submission requirements.
package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netoho/hestia-app-staging-sub001/internal/actor/entity"
	"github.com/netoho/hestia-app-staging-sub001/internal/actor/schema"
	docrepo "github.com/netoho/hestia-app-staging-sub001/internal/document/repo"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrBadCategory = errors.New("unknown document category for actor")
)

// Service coordinates document metadata and the storage collaborator.
type Service struct {
	repo    *docrepo.DocumentRepo
	storage Storage
	logger  *zap.SugaredLogger
	urlTTL  time.Duration
}

func NewService(repo *docrepo.DocumentRepo, storage Storage, logger *zap.SugaredLogger) *Service {
	return &Service{repo: repo, storage: storage, logger: logger, urlTTL: 15 * time.Minute}
}

// UploadSlot is the response to a slot request: the row id plus the
// presigned PUT URL the client uploads to.
type UploadSlot struct {
	DocumentID string `json:"documentId"`
	UploadURL  string `json:"uploadUrl"`
}

// GenerateUploadURL opens an upload slot for (actor, category). The
// category must belong to the actor's variant requirement matrix or be
// one of the always-optional extras.
func (s *Service) GenerateUploadURL(ctx context.Context, a *entity.Actor, category, filename string) (*UploadSlot, error) {
	if !categoryAllowed(a, category) {
		return nil, fmt.Errorf("%w: %s", ErrBadCategory, category)
	}
	id := uuid.NewString()
	objectKey := fmt.Sprintf("%s/%s/%s/%s", a.Type, a.ID, category, id)
	d := &entity.Document{
		ID:        id,
		ActorType: a.Type,
		ActorID:   a.ID,
		Category:  category,
		Filename:  filename,
		ObjectKey: objectKey,
		Status:    entity.DocumentUploading,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	u, err := s.storage.GenerateUploadURL(objectKey, s.urlTTL)
	if err != nil {
		return nil, err
	}
	return &UploadSlot{DocumentID: id, UploadURL: u}, nil
}

// ConfirmUpload marks a slot uploaded. Only confirmed documents satisfy
// the strict schema's required-category check.
func (s *Service) ConfirmUpload(ctx context.Context, documentID string, size int64) (*entity.Document, error) {
	if err := s.repo.Confirm(ctx, documentID, size, time.Now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.repo.GetByID(ctx, documentID)
}

// List returns an actor's document rows.
func (s *Service) List(ctx context.Context, t entity.ActorType, actorID string) ([]entity.Document, error) {
	return s.repo.ListByActor(ctx, t, actorID)
}

// GetDownloadURL returns a presigned GET URL for a confirmed document.
func (s *Service) GetDownloadURL(ctx context.Context, documentID string) (string, error) {
	d, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return s.storage.GetDownloadURL(d.ObjectKey, s.urlTTL)
}

// Delete removes the metadata row and asks the store to drop the object.
// A storage failure after the row is gone is logged, not surfaced: the
// row is the source of truth.
func (s *Service) Delete(ctx context.Context, documentID string) error {
	d, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if err := s.repo.Delete(ctx, documentID); err != nil {
		return err
	}
	if err := s.storage.DeleteObject(d.ObjectKey); err != nil {
		s.logger.Warnw("storage delete failed", "document_id", documentID, "object_key", d.ObjectKey, "err", err)
	}
	return nil
}

// extraCategories are accepted for any actor beyond the per-variant
// required set.
var extraCategories = map[string]bool{
	"other":         true,
	"marriageCert":  true,
	"bankStatement": true,
}

func categoryAllowed(a *entity.Actor, category string) bool {
	if extraCategories[category] {
		return true
	}
	v := schema.ResolveVariant(a)
	for _, c := range schema.RequiredDocuments(v) {
		if c == category {
			return true
		}
	}
	return false
}
