package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	actorentity "github.com/netoho/hestia-app-staging-sub001/internal/actor/entity"
	"github.com/netoho/hestia-app-staging-sub001/internal/notification"
	"github.com/netoho/hestia-app-staging-sub001/internal/policy/entity"
	policyrepo "github.com/netoho/hestia-app-staging-sub001/internal/policy/repo"
	"github.com/netoho/hestia-app-staging-sub001/pkg/utilities"
)

var (
	ErrNotFound      = errors.New("policy not found")
	ErrBadTransition = errors.New("illegal status transition")
	ErrTerminal      = errors.New("policy is in a terminal state")
	ErrBadInput      = errors.New("invalid policy input")
)

// ActorStore is the slice of actor persistence the policy service needs
// to create and retire party records. Implemented by repo.ActorRepo.
type ActorStore interface {
	Create(ctx context.Context, a *actorentity.Actor) error
	ListByPolicy(ctx context.Context, policyID string) ([]*actorentity.Actor, error)
	Deactivate(ctx context.Context, id string) error
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service owns the policy lifecycle: creation with its actor set, status
// transitions, cancellation and tenant replacement.
type Service struct {
	repo     *policyrepo.PolicyRepo
	actors   ActorStore
	notifier notification.Notifier
	logger   *zap.SugaredLogger
	tokenTTL time.Duration
	now      func() time.Time
}

func NewService(repo *policyrepo.PolicyRepo, actors ActorStore, notifier notification.Notifier, logger *zap.SugaredLogger) *Service {
	return &Service{
		repo:     repo,
		actors:   actors,
		notifier: notifier,
		logger:   logger,
		tokenTTL: 30 * 24 * time.Hour,
		now:      time.Now,
	}
}

// PartyInput describes one actor to invite when creating a policy.
type PartyInput struct {
	Email               string  `json:"email"`
	FullName            string  `json:"fullName"`
	IsCompany           bool    `json:"isCompany"`
	Nationality         string  `json:"nationality,omitempty"`
	OwnershipPercentage float64 `json:"ownershipPercentage,omitempty"` // landlords only
}

// CreateInput is the broker-wizard payload creating a policy with its
// full actor set in one call.
type CreateInput struct {
	PropertyAddress string               `json:"propertyAddress"`
	MonthlyRent     float64              `json:"monthlyRent"`
	GuarantorType   entity.GuarantorType `json:"guarantorType"`
	Tenant          PartyInput           `json:"tenant"`
	Landlords       []PartyInput         `json:"landlords"`
	JointObligors   []PartyInput         `json:"jointObligors,omitempty"`
	Avals           []PartyInput         `json:"avals,omitempty"`
}

// CreateResult returns the policy and the invited actors (tokens
// included, for the broker to forward).
type CreateResult struct {
	Policy *entity.Policy       `json:"policy"`
	Actors []*actorentity.Actor `json:"actors"`
}

// Create builds the policy aggregate: the policy row, the tenant, every
// landlord co-owner and the guarantors allowed by the guarantor type,
// all in one transaction. Invitations go out fire-and-forget afterwards.
func (s *Service) Create(ctx context.Context, createdBy string, in CreateInput) (*CreateResult, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	now := s.now()
	p := &entity.Policy{
		ID:              utilities.NewSnowflakeID(),
		PolicyNumber:    utilities.NewPolicyNumber(now),
		Status:          entity.StatusDraft,
		GuarantorType:   in.GuarantorType,
		PropertyAddress: in.PropertyAddress,
		MonthlyRent:     in.MonthlyRent,
		CreatedBy:       createdBy,
	}

	var actors []*actorentity.Actor
	add := func(t actorentity.ActorType, party PartyInput) {
		actors = append(actors, s.newActor(p.ID, t, party))
	}
	add(actorentity.ActorTenant, in.Tenant)
	for _, l := range in.Landlords {
		add(actorentity.ActorLandlord, l)
	}
	for _, j := range in.JointObligors {
		add(actorentity.ActorJointObligor, j)
	}
	for _, a := range in.Avals {
		add(actorentity.ActorAval, a)
	}

	err := s.actors.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		for _, a := range actors {
			if err := s.actors.Create(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create policy: %w", err)
	}

	for _, a := range actors {
		inv := notification.Invitation{
			PolicyID:     p.ID,
			PolicyNumber: p.PolicyNumber,
			ActorType:    string(a.Type),
			Email:        a.Email,
			AccessToken:  *a.AccessToken,
		}
		notification.FireAndForget(s.logger, func(ctx context.Context) error {
			return s.notifier.SendActorInvitation(ctx, inv)
		})
	}

	s.logger.Infow("policy created", "policy_id", p.ID, "policy_number", p.PolicyNumber, "actors", len(actors))
	return &CreateResult{Policy: p, Actors: actors}, nil
}

func (s *Service) newActor(policyID string, t actorentity.ActorType, party PartyInput) *actorentity.Actor {
	token := utilities.NewAccessToken()
	expiry := s.now().Add(s.tokenTTL)
	nat := actorentity.NationalityMexican
	if party.Nationality == string(actorentity.NationalityForeign) {
		nat = actorentity.NationalityForeign
	}
	a := &actorentity.Actor{
		ID:          utilities.NewSnowflakeID(),
		PolicyID:    policyID,
		Type:        t,
		AccessToken: &token,
		TokenExpiry: &expiry,
		IsCompany:   party.IsCompany,
		Nationality: nat,
		Email:       party.Email,
		Active:      true,
		Fields:      map[string]any{},
	}
	if party.FullName != "" {
		n := party.FullName
		a.FullName = &n
	}
	if t == actorentity.ActorLandlord && party.OwnershipPercentage > 0 {
		a.Fields["ownershipPercentage"] = party.OwnershipPercentage
	}
	return a
}

func validateCreate(in CreateInput) error {
	if in.PropertyAddress == "" {
		return fmt.Errorf("%w: property address required", ErrBadInput)
	}
	if in.Tenant.Email == "" {
		return fmt.Errorf("%w: tenant email required", ErrBadInput)
	}
	if len(in.Landlords) == 0 {
		return fmt.Errorf("%w: at least one landlord required", ErrBadInput)
	}
	if len(in.Landlords) > 1 {
		var sum float64
		for _, l := range in.Landlords {
			sum += l.OwnershipPercentage
		}
		if math.Abs(sum-100) > 0.01 {
			return fmt.Errorf("%w: landlord ownership must sum to 100, got %.2f", ErrBadInput, sum)
		}
	}
	switch in.GuarantorType {
	case entity.GuarantorNone, entity.GuarantorAval, entity.GuarantorJointObligor, entity.GuarantorBoth:
	default:
		return fmt.Errorf("%w: unknown guarantor type %q", ErrBadInput, in.GuarantorType)
	}
	if len(in.Avals) > 0 && !in.GuarantorType.AllowsAval() {
		return fmt.Errorf("%w: avals not allowed for guarantor type %s", ErrBadInput, in.GuarantorType)
	}
	if len(in.JointObligors) > 0 && !in.GuarantorType.AllowsJointObligor() {
		return fmt.Errorf("%w: joint obligors not allowed for guarantor type %s", ErrBadInput, in.GuarantorType)
	}
	return nil
}

// Get fetches a policy with its active actors.
func (s *Service) Get(ctx context.Context, id string) (*entity.Policy, []*actorentity.Actor, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	actors, err := s.actors.ListByPolicy(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return p, actors, nil
}

// UpdateStatus moves the policy through its lifecycle. Illegal moves and
// moves out of terminal states are rejected.
func (s *Service) UpdateStatus(ctx context.Context, id string, to entity.Status) (*entity.Policy, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.Status.Terminal() {
		return nil, ErrTerminal
	}
	if !entity.CanTransition(p.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrBadTransition, p.Status, to)
	}
	moved, err := s.repo.UpdateStatus(ctx, id, p.Status, to)
	if err != nil {
		return nil, err
	}
	if !moved {
		// Row changed between read and write; surface as a conflict.
		return nil, fmt.Errorf("%w: concurrent update", ErrBadTransition)
	}
	s.logger.Infow("policy status changed", "policy_id", id, "from", p.Status, "to", to)
	return s.repo.GetByID(ctx, id)
}

// Cancel is terminal and irreversible.
func (s *Service) Cancel(ctx context.Context, id string) (*entity.Policy, error) {
	return s.UpdateStatus(ctx, id, entity.StatusCancelled)
}

// ReplaceTenant retires the current tenant actor and invites a new one
// with a fresh token. The old invitation link dies with the old record.
func (s *Service) ReplaceTenant(ctx context.Context, policyID string, replacement PartyInput) (*actorentity.Actor, error) {
	p, err := s.repo.GetByID(ctx, policyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.Status.Terminal() {
		return nil, ErrTerminal
	}
	if replacement.Email == "" {
		return nil, fmt.Errorf("%w: tenant email required", ErrBadInput)
	}

	actors, err := s.actors.ListByPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}
	newTenant := s.newActor(policyID, actorentity.ActorTenant, replacement)
	err = s.actors.RunInTx(ctx, func(ctx context.Context) error {
		for _, a := range actors {
			if a.Type == actorentity.ActorTenant {
				if err := s.actors.Deactivate(ctx, a.ID); err != nil {
					return err
				}
			}
		}
		return s.actors.Create(ctx, newTenant)
	})
	if err != nil {
		return nil, fmt.Errorf("replace tenant: %w", err)
	}

	inv := notification.Invitation{
		PolicyID:     p.ID,
		PolicyNumber: p.PolicyNumber,
		ActorType:    string(actorentity.ActorTenant),
		Email:        newTenant.Email,
		AccessToken:  *newTenant.AccessToken,
	}
	notification.FireAndForget(s.logger, func(ctx context.Context) error {
		return s.notifier.SendActorInvitation(ctx, inv)
	})
	s.logger.Infow("tenant replaced", "policy_id", policyID, "new_tenant_id", newTenant.ID)
	return newTenant, nil
}

// RemindIncomplete sends the incomplete-information reminder for every
// actor that has not finished their form. Fire-and-forget.
func (s *Service) RemindIncomplete(ctx context.Context, policyID string) error {
	actors, err := s.actors.ListByPolicy(ctx, policyID)
	if err != nil {
		return err
	}
	var incomplete []string
	for _, a := range actors {
		if !a.InformationComplete {
			incomplete = append(incomplete, a.ID)
		}
	}
	if len(incomplete) == 0 {
		return nil
	}
	notification.FireAndForget(s.logger, func(ctx context.Context) error {
		return s.notifier.SendIncompleteActorInfo(ctx, policyID, incomplete)
	})
	return nil
}
