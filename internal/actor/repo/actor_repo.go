package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/netoho/hestia-app-staging-sub001/internal/actor/entity"
	policyentity "github.com/netoho/hestia-app-staging-sub001/internal/policy/entity"
	"github.com/netoho/hestia-app-staging-sub001/pkg/database"
)

// ActorRepo provides data access for actors, their references and their
// document metadata, using sqlx. Methods pick up an active transaction
// from the context when one is running.
type ActorRepo struct {
	db *sqlx.DB
}

func NewActorRepo(db *sqlx.DB) *ActorRepo { return &ActorRepo{db: db} }

// EnsureTables creates the actor-side tables if not exists (idempotent).
// Convenience for early environments; prefer migrations in production.
func (r *ActorRepo) EnsureTables(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS actors (
  id VARCHAR(32) PRIMARY KEY,
  policy_id VARCHAR(32) NOT NULL,
  actor_type TEXT NOT NULL,
  access_token TEXT UNIQUE,
  token_expiry TIMESTAMPTZ,
  is_company BOOLEAN NOT NULL DEFAULT false,
  nationality TEXT NOT NULL DEFAULT 'MEXICAN',
  guarantee_method TEXT,
  email TEXT NOT NULL,
  full_name TEXT,
  fields JSONB NOT NULL DEFAULT '{}'::jsonb,
  tabs_completed JSONB NOT NULL DEFAULT '[]'::jsonb,
  information_complete BOOLEAN NOT NULL DEFAULT false,
  completed_at TIMESTAMPTZ,
  verification_status TEXT NOT NULL DEFAULT 'PENDING',
  validation_skipped_by TEXT,
  validation_skipped_at TIMESTAMPTZ,
  active BOOLEAN NOT NULL DEFAULT true,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_actors_policy ON actors(policy_id);
CREATE INDEX IF NOT EXISTS idx_actors_token ON actors(access_token);
CREATE TABLE IF NOT EXISTS actor_references (
  id VARCHAR(32) PRIMARY KEY,
  actor_id VARCHAR(32) NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
  kind TEXT NOT NULL,
  full_name TEXT NOT NULL,
  relationship TEXT,
  phone TEXT NOT NULL,
  email TEXT,
  company_name TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_actor_references_actor ON actor_references(actor_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const actorColumns = `id, policy_id, actor_type, access_token, token_expiry, is_company,
  nationality, guarantee_method, email, full_name, fields, tabs_completed,
  information_complete, completed_at, verification_status,
  validation_skipped_by, validation_skipped_at, active, created_at, updated_at`

// Create inserts a new actor row.
func (r *ActorRepo) Create(ctx context.Context, a *entity.Actor) error {
	fieldsRaw, err := json.Marshal(orEmptyMap(a.Fields))
	if err != nil {
		return err
	}
	tabsRaw, err := json.Marshal(orEmptySlice(a.TabsCompleted))
	if err != nil {
		return err
	}
	q := `INSERT INTO actors (id, policy_id, actor_type, access_token, token_expiry, is_company,
		nationality, guarantee_method, email, full_name, fields, tabs_completed,
		information_complete, verification_status, active)
	  VALUES (:id, :policy_id, :actor_type, :access_token, :token_expiry, :is_company,
		:nationality, :guarantee_method, :email, :full_name, :fields, :tabs_completed,
		:information_complete, :verification_status, :active)`
	_, err = sqlx.NamedExecContext(ctx, database.From(ctx, r.db), q, map[string]any{
		"id":                   a.ID,
		"policy_id":            a.PolicyID,
		"actor_type":           a.Type,
		"access_token":         a.AccessToken,
		"token_expiry":         a.TokenExpiry,
		"is_company":           a.IsCompany,
		"nationality":          a.Nationality,
		"guarantee_method":     a.GuaranteeMethod,
		"email":                a.Email,
		"full_name":            a.FullName,
		"fields":               json.RawMessage(fieldsRaw),
		"tabs_completed":       json.RawMessage(tabsRaw),
		"information_complete": a.InformationComplete,
		"verification_status":  orDefaultStatus(a.VerificationStatus),
		"active":               a.Active,
	})
	return err
}

// GetByID fetches an actor by type and id, or sql.ErrNoRows.
func (r *ActorRepo) GetByID(ctx context.Context, t entity.ActorType, id string) (*entity.Actor, error) {
	q := `SELECT ` + actorColumns + ` FROM actors WHERE actor_type=$1 AND id=$2`
	return r.getOne(ctx, q, t, id)
}

// GetByToken fetches an active actor by type and bearer token. Token
// match is exact; expiry is the caller's check so the error surface stays
// uniform (no token-exists leak).
func (r *ActorRepo) GetByToken(ctx context.Context, t entity.ActorType, token string) (*entity.Actor, error) {
	q := `SELECT ` + actorColumns + ` FROM actors WHERE actor_type=$1 AND access_token=$2 AND active=true`
	return r.getOne(ctx, q, t, token)
}

// ListByPolicy returns every active actor of a policy.
func (r *ActorRepo) ListByPolicy(ctx context.Context, policyID string) ([]*entity.Actor, error) {
	q := `SELECT ` + actorColumns + ` FROM actors WHERE policy_id=$1 AND active=true ORDER BY created_at`
	var rows []entity.Actor
	if err := sqlx.SelectContext(ctx, database.From(ctx, r.db), &rows, q, policyID); err != nil {
		return nil, err
	}
	out := make([]*entity.Actor, 0, len(rows))
	for i := range rows {
		a := rows[i]
		if err := a.DecodeRaw(); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, nil
}

func (r *ActorRepo) getOne(ctx context.Context, q string, args ...any) (*entity.Actor, error) {
	var a entity.Actor
	if err := sqlx.GetContext(ctx, database.From(ctx, r.db), &a, q, args...); err != nil {
		return nil, err
	}
	if err := a.DecodeRaw(); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateFields merges a partial field map into the actor's JSONB document
// and records the saved tab in tabs_completed (idempotent append).
func (r *ActorRepo) UpdateFields(ctx context.Context, id string, fields map[string]any, tab string) error {
	raw, err := json.Marshal(orEmptyMap(fields))
	if err != nil {
		return err
	}
	const q = `UPDATE actors SET
	  fields = fields || $2::jsonb,
	  tabs_completed = CASE WHEN $3 = '' OR tabs_completed @> to_jsonb($3::text)
		THEN tabs_completed ELSE tabs_completed || to_jsonb($3::text) END,
	  updated_at = NOW()
	WHERE id=$1`
	res, err := database.From(ctx, r.db).ExecContext(ctx, q, id, json.RawMessage(raw), tab)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetDiscriminants updates the variant discriminant columns pulled out of
// incoming form data before schema resolution.
func (r *ActorRepo) SetDiscriminants(ctx context.Context, id string, nationality *entity.Nationality, method *entity.GuaranteeMethod) error {
	const q = `UPDATE actors SET
	  nationality = COALESCE($2, nationality),
	  guarantee_method = COALESCE($3, guarantee_method),
	  updated_at = NOW()
	WHERE id=$1`
	res, err := database.From(ctx, r.db).ExecContext(ctx, q, id, nationality, method)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ReplaceReferences deletes and recreates the actor's full reference set
// of one kind. No partial reference update exists.
func (r *ActorRepo) ReplaceReferences(ctx context.Context, actorID string, kind entity.ReferenceKind, refs []entity.Reference) error {
	ex := database.From(ctx, r.db)
	if _, err := ex.ExecContext(ctx, `DELETE FROM actor_references WHERE actor_id=$1 AND kind=$2`, actorID, kind); err != nil {
		return err
	}
	for i := range refs {
		ref := refs[i]
		ref.ActorID = actorID
		ref.Kind = kind
		_, err := sqlx.NamedExecContext(ctx, ex, `INSERT INTO actor_references
			(id, actor_id, kind, full_name, relationship, phone, email, company_name)
			VALUES (:id, :actor_id, :kind, :full_name, :relationship, :phone, :email, :company_name)`, ref)
		if err != nil {
			return err
		}
	}
	return nil
}

// CountReferences returns the personal and commercial reference counts.
func (r *ActorRepo) CountReferences(ctx context.Context, actorID string) (personal, commercial int, err error) {
	const q = `SELECT
	  COUNT(*) FILTER (WHERE kind='personal') AS personal,
	  COUNT(*) FILTER (WHERE kind='commercial') AS commercial
	FROM actor_references WHERE actor_id=$1`
	var row struct {
		Personal   int `db:"personal"`
		Commercial int `db:"commercial"`
	}
	if err := sqlx.GetContext(ctx, database.From(ctx, r.db), &row, q, actorID); err != nil {
		return 0, 0, err
	}
	return row.Personal, row.Commercial, nil
}

// ListReferences returns the actor's references of one kind.
func (r *ActorRepo) ListReferences(ctx context.Context, actorID string, kind entity.ReferenceKind) ([]entity.Reference, error) {
	var out []entity.Reference
	err := sqlx.SelectContext(ctx, database.From(ctx, r.db), &out,
		`SELECT * FROM actor_references WHERE actor_id=$1 AND kind=$2 ORDER BY created_at`, actorID, kind)
	return out, err
}

// ConfirmedDocumentCategories returns the distinct confirmed document
// categories for an actor.
func (r *ActorRepo) ConfirmedDocumentCategories(ctx context.Context, actorID string) ([]string, error) {
	var out []string
	err := sqlx.SelectContext(ctx, database.From(ctx, r.db), &out,
		`SELECT DISTINCT category FROM actor_documents WHERE actor_id=$1 AND status='CONFIRMED'`, actorID)
	return out, err
}

// MarkComplete flips information_complete after a passing strict
// validation. No-op when already complete.
func (r *ActorRepo) MarkComplete(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE actors SET information_complete=true, completed_at=$2,
	  verification_status='IN_REVIEW', updated_at=NOW()
	WHERE id=$1 AND information_complete=false`
	_, err := database.From(ctx, r.db).ExecContext(ctx, q, id, at)
	return err
}

// MarkForcedComplete is the audited admin bypass: it completes the actor
// without validation and records who forced it and when.
func (r *ActorRepo) MarkForcedComplete(ctx context.Context, id, staffID string, at time.Time) error {
	const q = `UPDATE actors SET information_complete=true, completed_at=$3,
	  validation_skipped_by=$2, validation_skipped_at=$3,
	  verification_status='IN_REVIEW', updated_at=NOW()
	WHERE id=$1`
	res, err := database.From(ctx, r.db).ExecContext(ctx, q, id, staffID, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetVerificationStatus moves the review decision.
func (r *ActorRepo) SetVerificationStatus(ctx context.Context, id string, st entity.VerificationStatus) error {
	res, err := database.From(ctx, r.db).ExecContext(ctx,
		`UPDATE actors SET verification_status=$2, updated_at=NOW() WHERE id=$1`, id, st)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RotateToken replaces the actor's single active bearer token.
func (r *ActorRepo) RotateToken(ctx context.Context, id, token string, expiry time.Time) error {
	res, err := database.From(ctx, r.db).ExecContext(ctx,
		`UPDATE actors SET access_token=$2, token_expiry=$3, updated_at=NOW() WHERE id=$1`, id, token, expiry)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Deactivate retires an actor (tenant replacement). The token is cleared
// so the old invitation link dies with the record.
func (r *ActorRepo) Deactivate(ctx context.Context, id string) error {
	res, err := database.From(ctx, r.db).ExecContext(ctx,
		`UPDATE actors SET active=false, access_token=NULL, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// GetPolicy fetches the policy an actor belongs to, for the self-service
// view. Returns sql.ErrNoRows when the policy is gone.
func (r *ActorRepo) GetPolicy(ctx context.Context, id string) (*policyentity.Policy, error) {
	var p policyentity.Policy
	if err := sqlx.GetContext(ctx, database.From(ctx, r.db), &p, `SELECT * FROM policies WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// RunInTx runs fn in a context-carried transaction over this repo's DB.
func (r *ActorRepo) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.RunInTx(ctx, r.db, fn)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orDefaultStatus(s entity.VerificationStatus) entity.VerificationStatus {
	if s == "" {
		return entity.VerificationPending
	}
	return s
}
