package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/netoho/hestia-app-staging-sub001/internal/actor/entity"
	"github.com/netoho/hestia-app-staging-sub001/pkg/database"
)

// DocumentRepo provides data access for actor document metadata using sqlx.
type DocumentRepo struct {
	db *sqlx.DB
}

func NewDocumentRepo(db *sqlx.DB) *DocumentRepo { return &DocumentRepo{db: db} }

// EnsureTable creates the actor_documents table if not exists (idempotent).
// Depends on the actors table existing first.
func (r *DocumentRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS actor_documents (
  id VARCHAR(36) PRIMARY KEY,
  actor_type TEXT NOT NULL,
  actor_id VARCHAR(32) NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
  category TEXT NOT NULL,
  filename TEXT NOT NULL,
  object_key TEXT NOT NULL,
  size_bytes BIGINT NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'UPLOADING',
  uploaded_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_actor_documents_actor ON actor_documents(actor_id, category);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a pending upload slot.
func (r *DocumentRepo) Create(ctx context.Context, d *entity.Document) error {
	const q = `INSERT INTO actor_documents (id, actor_type, actor_id, category, filename, object_key, size_bytes, status)
	  VALUES (:id, :actor_type, :actor_id, :category, :filename, :object_key, :size_bytes, :status)`
	_, err := sqlx.NamedExecContext(ctx, database.From(ctx, r.db), q, d)
	return err
}

// GetByID fetches one document row or sql.ErrNoRows.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	var d entity.Document
	if err := sqlx.GetContext(ctx, database.From(ctx, r.db), &d, `SELECT * FROM actor_documents WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByActor returns all document rows of one actor.
func (r *DocumentRepo) ListByActor(ctx context.Context, t entity.ActorType, actorID string) ([]entity.Document, error) {
	var out []entity.Document
	err := sqlx.SelectContext(ctx, database.From(ctx, r.db), &out,
		`SELECT * FROM actor_documents WHERE actor_type=$1 AND actor_id=$2 ORDER BY created_at`, t, actorID)
	return out, err
}

// Confirm flips the slot to CONFIRMED and records the final size. Any
// previously confirmed document of the same category is superseded and
// removed so one category holds one live file.
func (r *DocumentRepo) Confirm(ctx context.Context, id string, size int64, at time.Time) error {
	ex := database.From(ctx, r.db)
	var d entity.Document
	if err := sqlx.GetContext(ctx, ex, &d, `SELECT * FROM actor_documents WHERE id=$1`, id); err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx,
		`DELETE FROM actor_documents WHERE actor_id=$1 AND category=$2 AND status='CONFIRMED' AND id <> $3`,
		d.ActorID, d.Category, id); err != nil {
		return err
	}
	_, err := ex.ExecContext(ctx,
		`UPDATE actor_documents SET status='CONFIRMED', size_bytes=$2, uploaded_at=$3 WHERE id=$1`, id, size, at)
	return err
}

// Delete removes a document row.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	_, err := database.From(ctx, r.db).ExecContext(ctx, `DELETE FROM actor_documents WHERE id=$1`, id)
	return err
}

// RunInTx runs fn in a context-carried transaction over this repo's DB.
func (r *DocumentRepo) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.RunInTx(ctx, r.db, fn)
}
