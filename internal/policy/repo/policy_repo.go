package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/netoho/hestia-app-staging-sub001/internal/policy/entity"
	"github.com/netoho/hestia-app-staging-sub001/pkg/database"
)

// PolicyRepo provides data access for policies using sqlx.
type PolicyRepo struct {
	db *sqlx.DB
}

func NewPolicyRepo(db *sqlx.DB) *PolicyRepo { return &PolicyRepo{db: db} }

// EnsureTable creates the policies table if not exists (idempotent).
func (r *PolicyRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS policies (
  id VARCHAR(32) PRIMARY KEY,
  policy_number TEXT UNIQUE NOT NULL,
  status TEXT NOT NULL DEFAULT 'DRAFT',
  guarantor_type TEXT NOT NULL DEFAULT 'NONE',
  property_address TEXT NOT NULL,
  monthly_rent NUMERIC NOT NULL DEFAULT 0,
  created_by VARCHAR(32) NOT NULL,
  cancelled_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_policies_status ON policies(status);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new policy row.
func (r *PolicyRepo) Create(ctx context.Context, p *entity.Policy) error {
	const q = `INSERT INTO policies (id, policy_number, status, guarantor_type, property_address, monthly_rent, created_by)
	  VALUES (:id, :policy_number, :status, :guarantor_type, :property_address, :monthly_rent, :created_by)`
	_, err := sqlx.NamedExecContext(ctx, database.From(ctx, r.db), q, p)
	return err
}

// GetByID fetches a policy or sql.ErrNoRows.
func (r *PolicyRepo) GetByID(ctx context.Context, id string) (*entity.Policy, error) {
	var p entity.Policy
	if err := sqlx.GetContext(ctx, database.From(ctx, r.db), &p, `SELECT * FROM policies WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatus moves the policy status with an optimistic guard on the
// expected current status. Zero rows means the row moved underneath the
// caller (or does not exist).
func (r *PolicyRepo) UpdateStatus(ctx context.Context, id string, from, to entity.Status) (bool, error) {
	var q = `UPDATE policies SET status=$3, updated_at=NOW()`
	if to == entity.StatusCancelled {
		q = `UPDATE policies SET status=$3, cancelled_at=NOW(), updated_at=NOW()`
	}
	q += ` WHERE id=$1 AND status=$2 RETURNING 1`
	var one int
	err := sqlx.GetContext(ctx, database.From(ctx, r.db), &one, q, id, from, to)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RunInTx runs fn in a context-carried transaction over this repo's DB.
func (r *PolicyRepo) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.RunInTx(ctx, r.db, fn)
}
