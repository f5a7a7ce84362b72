package staff

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/netoho/hestia-app-staging-sub001/internal/staff/entity"
	staffrepo "github.com/netoho/hestia-app-staging-sub001/internal/staff/repo"
	"github.com/netoho/hestia-app-staging-sub001/pkg/utilities"
)

var (
	ErrBadCredentials = errors.New("invalid credentials")
	ErrLocked         = errors.New("account locked")
	ErrDisabled       = errors.New("account disabled")
	ErrBadSession     = errors.New("invalid session")
)

// PasswordHasher defines the minimal hashing interface (abstract so the
// algorithm can be swapped later).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	return string(h), err
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Session is an authenticated staff identity carried on request context.
type Session struct {
	StaffID string
	Email   string
	Role    string
}

// Service handles staff authentication and session token issuance.
type Service struct {
	repo   *staffrepo.StaffRepo
	hasher PasswordHasher
	secret []byte
	ttl    time.Duration

	MaxFailed   int
	LockMinutes int
}

// SecretFromEnv reads the session signing secret. A missing secret is a
// deploy error; callers should fail startup on empty.
func SecretFromEnv() []byte {
	return []byte(os.Getenv("SESSION_SECRET"))
}

func NewService(db *sqlx.DB, hasher PasswordHasher, secret []byte) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &Service{
		repo:        staffrepo.NewStaffRepo(db),
		hasher:      hasher,
		secret:      secret,
		ttl:         8 * time.Hour,
		MaxFailed:   6,
		LockMinutes: 15,
	}
}

func (s *Service) Repo() *staffrepo.StaffRepo { return s.repo }

// Authenticate performs password authentication by email. On success it
// resets counters and returns a signed session token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, *Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, ErrBadCredentials
	}
	st, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, ErrBadCredentials // avoid account enumeration
		}
		return "", nil, err
	}

	if st.Status == "locked" && st.LockedUntil != nil && st.LockedUntil.Before(time.Now()) {
		if unlocked, _ := s.repo.UnlockIfExpired(ctx, st.ID); unlocked {
			st.Status = "active"
			st.LockedUntil = nil
		}
	}
	if st.Status == "locked" {
		return "", nil, ErrLocked
	}
	if st.Status == "disabled" {
		return "", nil, ErrDisabled
	}

	if !s.hasher.Verify(st.PasswordHash, password) {
		if _, incErr := s.repo.IncrementFailedLogin(ctx, st.ID); incErr == nil {
			_, _ = s.repo.LockIfThreshold(ctx, st.ID, s.MaxFailed, s.LockMinutes)
		}
		return "", nil, ErrBadCredentials
	}

	if err := s.repo.ResetLoginSuccess(ctx, st.ID); err != nil {
		return "", nil, err
	}

	sess := &Session{StaffID: st.ID, Email: st.Email, Role: st.Role}
	token, err := s.issue(sess)
	if err != nil {
		return "", nil, err
	}
	return token, sess, nil
}

// CreateStaff registers a staff account with a hashed password.
func (s *Service) CreateStaff(ctx context.Context, email, fullName, password, role string) (*entity.Staff, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	if role != entity.RoleAdmin {
		role = entity.RoleOperations
	}
	st := &entity.Staff{
		ID:           utilities.NewSnowflakeID(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		FullName:     fullName,
		PasswordHash: hash,
		Role:         role,
		Status:       "active",
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) issue(sess *Session) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   sess.StaffID,
		"email": sess.Email,
		"role":  sess.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

// ParseSession validates a session token and returns the staff identity.
func (s *Service) ParseSession(tokenStr string) (*Session, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadSession
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrBadSession
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrBadSession
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return nil, ErrBadSession
	}
	return &Session{StaffID: sub, Email: email, Role: role}, nil
}
