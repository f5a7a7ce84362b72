package entity

import "time"

// Roles a staff account can hold. Only admins may bypass actor
// validation.
const (
	RoleAdmin      = "ADMIN"
	RoleOperations = "OPERATIONS"
)

// Staff represents a back-office account row in the `staff` table.
type Staff struct {
	ID                  string     `db:"id"`
	Email               string     `db:"email"`
	FullName            string     `db:"full_name"`
	PasswordHash        string     `db:"password_hash"`
	Role                string     `db:"role"`
	Status              string     `db:"status"` // active / locked / disabled
	LoginFailedAttempts int        `db:"login_failed_attempts"`
	LockedUntil         *time.Time `db:"locked_until"`
	LastLoginAt         *time.Time `db:"last_login_at"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}
