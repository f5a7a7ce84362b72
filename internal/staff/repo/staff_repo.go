package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/netoho/hestia-app-staging-sub001/internal/staff/entity"
)

// StaffRepo provides data access for staff accounts using sqlx.
type StaffRepo struct {
	db *sqlx.DB
}

func NewStaffRepo(db *sqlx.DB) *StaffRepo { return &StaffRepo{db: db} }

// EnsureTable creates the staff table if not exists (idempotent).
func (r *StaffRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS staff (
  id VARCHAR(32) PRIMARY KEY,
  email TEXT UNIQUE NOT NULL,
  full_name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'OPERATIONS',
  status TEXT NOT NULL DEFAULT 'active',
  login_failed_attempts INT NOT NULL DEFAULT 0,
  locked_until TIMESTAMPTZ,
  last_login_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_staff_email ON staff(email);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new staff row.
func (r *StaffRepo) Create(ctx context.Context, s *entity.Staff) error {
	const q = `INSERT INTO staff (id, email, full_name, password_hash, role, status)
	  VALUES (:id, :email, :full_name, :password_hash, :role, :status)`
	_, err := r.db.NamedExecContext(ctx, q, s)
	return err
}

// GetByEmail returns a staff account or sql.ErrNoRows.
func (r *StaffRepo) GetByEmail(ctx context.Context, email string) (*entity.Staff, error) {
	var row entity.Staff
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM staff WHERE email=$1`, email); err != nil {
		return nil, err
	}
	return &row, nil
}

// IncrementFailedLogin bumps the failure counter and returns the new value.
func (r *StaffRepo) IncrementFailedLogin(ctx context.Context, id string) (int, error) {
	const q = `UPDATE staff SET login_failed_attempts = login_failed_attempts + 1, updated_at=NOW()
	  WHERE id=$1 RETURNING login_failed_attempts`
	var v int
	if err := r.db.GetContext(ctx, &v, q, id); err != nil {
		return 0, err
	}
	return v, nil
}

// LockIfThreshold locks the account when the failure counter crossed the
// threshold.
func (r *StaffRepo) LockIfThreshold(ctx context.Context, id string, threshold, lockMinutes int) (bool, error) {
	const q = `UPDATE staff SET status='locked', locked_until = NOW() + ($2 || ' minutes')::interval, updated_at=NOW()
	  WHERE id=$1 AND status='active' AND login_failed_attempts >= $3 RETURNING 1`
	var one int
	err := r.db.GetContext(ctx, &one, q, id, lockMinutes, threshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UnlockIfExpired sets status back to active once locked_until passed.
func (r *StaffRepo) UnlockIfExpired(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE staff SET status='active', locked_until=NULL, updated_at=NOW()
	  WHERE id=$1 AND status='locked' AND locked_until IS NOT NULL AND locked_until < NOW() RETURNING 1`
	var one int
	err := r.db.GetContext(ctx, &one, q, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ResetLoginSuccess clears failure metrics on successful authentication.
func (r *StaffRepo) ResetLoginSuccess(ctx context.Context, id string) error {
	const q = `UPDATE staff SET login_failed_attempts=0, last_login_at=NOW(), locked_until=NULL, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}
