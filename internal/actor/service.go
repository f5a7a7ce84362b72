package actor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/netoho/hestia-app-staging-sub001/internal/actor/entity"
	"github.com/netoho/hestia-app-staging-sub001/internal/actor/schema"
	"github.com/netoho/hestia-app-staging-sub001/internal/actor/tabs"
	policyentity "github.com/netoho/hestia-app-staging-sub001/internal/policy/entity"
	"github.com/netoho/hestia-app-staging-sub001/pkg/utilities"
)

var (
	// ErrUnauthorized covers every token failure mode (missing, wrong,
	// expired, already-completed actor) so callers cannot probe which
	// actors exist.
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("actor not found")
	ErrForbidden    = errors.New("insufficient role")
)

// ErrUnknownTab re-exported for handlers mapping it to a 400.
var ErrUnknownTab = schema.ErrUnknownTab

// ReferenceWriteMode decides what a reference-persistence failure does to
// the surrounding tab save.
type ReferenceWriteMode string

const (
	// RefStrict runs field update and reference replacement in one
	// transaction; a reference failure fails the save.
	RefStrict ReferenceWriteMode = "strict"
	// RefBestEffort preserves the legacy contract: the tab save succeeds
	// even when reference persistence fails; the failure is logged and
	// surfaced on the result only.
	RefBestEffort ReferenceWriteMode = "best-effort"
)

// Store is the persistence contract the service orchestrates over,
// implemented by repo.ActorRepo.
type Store interface {
	GetByID(ctx context.Context, t entity.ActorType, id string) (*entity.Actor, error)
	GetByToken(ctx context.Context, t entity.ActorType, token string) (*entity.Actor, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any, tab string) error
	SetDiscriminants(ctx context.Context, id string, nationality *entity.Nationality, method *entity.GuaranteeMethod) error
	ReplaceReferences(ctx context.Context, actorID string, kind entity.ReferenceKind, refs []entity.Reference) error
	CountReferences(ctx context.Context, actorID string) (personal, commercial int, err error)
	ConfirmedDocumentCategories(ctx context.Context, actorID string) ([]string, error)
	MarkComplete(ctx context.Context, id string, at time.Time) error
	MarkForcedComplete(ctx context.Context, id, staffID string, at time.Time) error
	RotateToken(ctx context.Context, id, token string, expiry time.Time) error
	GetPolicy(ctx context.Context, id string) (*policyentity.Policy, error)
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Principal identifies an authenticated staff session. A nil principal
// on Update means the caller authenticates with an actor bearer token.
type Principal struct {
	StaffID string
	Role    string // ADMIN / OPERATIONS
}

func (p *Principal) IsAdmin() bool { return p != nil && p.Role == "ADMIN" }

// Service orchestrates actor tab saves and submission.
type Service struct {
	store    Store
	logger   *zap.SugaredLogger
	refMode  ReferenceWriteMode
	tokenTTL time.Duration
	now      func() time.Time
}

func NewService(store Store, logger *zap.SugaredLogger, refMode ReferenceWriteMode) *Service {
	if refMode == "" {
		refMode = RefStrict
	}
	return &Service{
		store:    store,
		logger:   logger,
		refMode:  refMode,
		tokenTTL: 30 * 24 * time.Hour,
		now:      time.Now,
	}
}

// UpdateInput carries one actor.update call. Identifier is either ActorID
// (staff session) or Token (self-service); exactly one must be set.
// Data holds the incoming field map including metadata keys.
type UpdateInput struct {
	Type    entity.ActorType
	ActorID string
	Token   string
	Data    map[string]any
}

// UpdateResult is the orchestrator outcome. A rejected save carries
// Validation and leaves stored state untouched; a successful save on the
// last tab additionally carries the submission outcome.
type UpdateResult struct {
	Actor            *entity.Actor       `json:"actor"`
	Tab              string              `json:"tab,omitempty"`
	Saved            bool                `json:"saved"`
	Validation       *schema.Result      `json:"validation,omitempty"`
	Submitted        bool                `json:"submitted"`
	SubmissionErrors []schema.FieldError `json:"submissionErrors,omitempty"`
	ReferenceError   string              `json:"referenceError,omitempty"`
}

// updateMeta is the metadata stripped off the incoming data map before
// field validation and persistence.
type updateMeta struct {
	TabName        string
	Partial        *bool
	PersonalRefs   []entity.Reference
	CommercialRefs []entity.Reference
	HasPersonal    bool
	HasCommercial  bool
	Nationality    *entity.Nationality
	Guarantee      *entity.GuaranteeMethod
}

// Update is the actor.update orchestrator: authenticate, strip metadata,
// validate the tab payload, persist fields and references, and on the
// last tab trigger submission. A submission failure never rolls back the
// save that preceded it.
func (s *Service) Update(ctx context.Context, p *Principal, in UpdateInput) (*UpdateResult, error) {
	a, err := s.resolve(ctx, p, in)
	if err != nil {
		return nil, err
	}

	meta, actualData, err := splitMeta(in.Data)
	if err != nil {
		return &UpdateResult{Actor: a, Validation: &schema.Result{OK: false, Errors: []schema.FieldError{{Path: "references", Message: err.Error()}}}}, nil
	}

	// Unknown tab for this actor type: registry drift, reject before
	// touching storage. Tab existence depends only on the actor type and
	// company flag, so it is decidable ahead of the discriminant write.
	if meta.TabName != "" {
		if _, ok := tabs.Find(a.Type, a.IsCompany, meta.TabName); !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrUnknownTab, a.Type, meta.TabName)
		}
	}

	// Discriminants arrive inline with the form data and must take effect
	// before the variant is resolved for validation.
	if meta.Nationality != nil || meta.Guarantee != nil {
		if err := s.store.SetDiscriminants(ctx, a.ID, meta.Nationality, meta.Guarantee); err != nil {
			return nil, fmt.Errorf("set discriminants: %w", err)
		}
		if meta.Nationality != nil {
			a.Nationality = *meta.Nationality
		}
		if meta.Guarantee != nil {
			a.GuaranteeMethod = meta.Guarantee
		}
	}

	v := schema.ResolveVariant(a)

	if meta.TabName != "" {
		res, err := schema.ValidateTab(v, meta.TabName, actualData)
		if err != nil {
			return nil, err
		}
		if !res.OK {
			return &UpdateResult{Actor: a, Tab: meta.TabName, Validation: res}, nil
		}
	} else if res := validateLoose(v, actualData); !res.OK {
		return &UpdateResult{Actor: a, Validation: res}, nil
	}

	result := &UpdateResult{Tab: meta.TabName, Saved: true}

	persistRefs := func(ctx context.Context) error {
		if meta.HasPersonal {
			if err := s.store.ReplaceReferences(ctx, a.ID, entity.ReferencePersonal, meta.PersonalRefs); err != nil {
				return err
			}
		}
		if meta.HasCommercial {
			if err := s.store.ReplaceReferences(ctx, a.ID, entity.ReferenceCommercial, meta.CommercialRefs); err != nil {
				return err
			}
		}
		return nil
	}

	switch s.refMode {
	case RefBestEffort:
		if err := s.store.UpdateFields(ctx, a.ID, actualData, meta.TabName); err != nil {
			return nil, fmt.Errorf("update fields: %w", err)
		}
		if err := persistRefs(ctx); err != nil {
			// Explicit tradeoff: the tab save stands even though the
			// reference write failed.
			s.logger.Errorw("reference persistence failed after tab save",
				"actor_id", a.ID, "tab", meta.TabName, "err", err)
			result.ReferenceError = "references were not saved"
		}
	default:
		err := s.store.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.store.UpdateFields(ctx, a.ID, actualData, meta.TabName); err != nil {
				return err
			}
			return persistRefs(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("save tab: %w", err)
		}
	}

	if meta.TabName != "" && meta.TabName == tabs.LastTab(a.Type) && !(meta.Partial != nil && !*meta.Partial) {
		outcome, err := s.Submit(ctx, a.Type, a.ID)
		if err != nil {
			return nil, err
		}
		result.Submitted = outcome.OK
		if !outcome.OK {
			result.SubmissionErrors = outcome.Errors
		}
	}

	fresh, err := s.store.GetByID(ctx, a.Type, a.ID)
	if err != nil {
		return nil, err
	}
	result.Actor = fresh
	return result, nil
}

// resolve authenticates the call and loads the actor. Token callers lose
// write access once the record is complete; every token failure collapses
// into ErrUnauthorized.
func (s *Service) resolve(ctx context.Context, p *Principal, in UpdateInput) (*entity.Actor, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: bad actor type", ErrNotFound)
	}
	if in.Token != "" {
		a, err := s.store.GetByToken(ctx, in.Type, in.Token)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrUnauthorized
			}
			return nil, err
		}
		if !a.TokenValid(in.Token, s.now()) || a.InformationComplete {
			return nil, ErrUnauthorized
		}
		return a, nil
	}
	if p == nil {
		return nil, ErrUnauthorized
	}
	a, err := s.store.GetByID(ctx, in.Type, in.ActorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// ResolveForEdit authenticates either identifier kind and returns the
// actor for a mutating operation. Token callers are rejected once the
// record is complete.
func (s *Service) ResolveForEdit(ctx context.Context, p *Principal, t entity.ActorType, actorID, token string) (*entity.Actor, error) {
	return s.resolve(ctx, p, UpdateInput{Type: t, ActorID: actorID, Token: token})
}

// ResolveForRead is the read-only variant: completed actors remain
// viewable by their token bearer.
func (s *Service) ResolveForRead(ctx context.Context, p *Principal, t entity.ActorType, actorID, token string) (*entity.Actor, error) {
	if token != "" {
		view, err := s.GetByToken(ctx, t, token)
		if err != nil {
			return nil, err
		}
		return view.Actor, nil
	}
	if p == nil {
		return nil, ErrUnauthorized
	}
	a, err := s.store.GetByID(ctx, t, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// SubmitOutcome is the submission result: a validation failure is a
// normal value here, not an error.
type SubmitOutcome struct {
	OK     bool                `json:"ok"`
	Actor  *entity.Actor       `json:"actor,omitempty"`
	Errors []schema.FieldError `json:"errors,omitempty"`
}

// Submit re-validates the full accumulated record against the strict
// schema for the actor's resolved variant and, on success, marks the
// actor complete. On failure nothing is mutated.
func (s *Service) Submit(ctx context.Context, t entity.ActorType, id string) (*SubmitOutcome, error) {
	a, err := s.store.GetByID(ctx, t, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	personal, commercial, err := s.store.CountReferences(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	cats, err := s.store.ConfirmedDocumentCategories(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	v := schema.ResolveVariant(a)
	res := schema.ValidateStrict(v, schema.Record{
		Fields:               a.Fields,
		PersonalReferences:   personal,
		CommercialReferences: commercial,
		DocumentCategories:   cats,
	})
	if !res.OK {
		s.logger.Debugw("submission rejected", "actor_id", a.ID, "variant", v.Key(), "errors", len(res.Errors))
		return &SubmitOutcome{OK: false, Errors: res.Errors}, nil
	}
	if err := s.store.MarkComplete(ctx, a.ID, s.now()); err != nil {
		return nil, err
	}
	fresh, err := s.store.GetByID(ctx, t, id)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("actor information complete", "actor_id", a.ID, "variant", v.Key())
	return &SubmitOutcome{OK: true, Actor: fresh}, nil
}

// SubmitForced is the audited admin escape hatch: it completes the actor
// without strict validation. Only admins may call it; every bypass is
// recorded on the row and logged.
func (s *Service) SubmitForced(ctx context.Context, p *Principal, t entity.ActorType, id string) (*entity.Actor, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if _, err := s.store.GetByID(ctx, t, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.store.MarkForcedComplete(ctx, id, p.StaffID, s.now()); err != nil {
		return nil, err
	}
	s.logger.Warnw("actor validation bypassed", "actor_id", id, "staff_id", p.StaffID)
	return s.store.GetByID(ctx, t, id)
}

// TokenView is the self-service fetch payload. The owning policy gives
// the portal its context (policy number, property address).
type TokenView struct {
	Actor   *entity.Actor        `json:"actor"`
	Policy  *policyentity.Policy `json:"policy,omitempty"`
	CanEdit bool                 `json:"canEdit"`
}

// GetByToken loads an actor for its bearer. Completed actors may still be
// viewed, just not edited.
func (s *Service) GetByToken(ctx context.Context, t entity.ActorType, token string) (*TokenView, error) {
	if !t.Valid() || strings.TrimSpace(token) == "" {
		return nil, ErrUnauthorized
	}
	a, err := s.store.GetByToken(ctx, t, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !a.TokenValid(token, s.now()) {
		return nil, ErrUnauthorized
	}
	view := &TokenView{Actor: a, CanEdit: !a.InformationComplete}
	if a.PolicyID != "" {
		pol, err := s.store.GetPolicy(ctx, a.PolicyID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
			s.logger.Warnw("actor references missing policy", "actor_id", a.ID, "policy_id", a.PolicyID)
		} else {
			view.Policy = pol
		}
	}
	return view, nil
}

// RegenerateToken rotates the actor's single active bearer token.
func (s *Service) RegenerateToken(ctx context.Context, t entity.ActorType, id string) (token string, expiry time.Time, err error) {
	if _, err := s.store.GetByID(ctx, t, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, ErrNotFound
		}
		return "", time.Time{}, err
	}
	token = utilities.NewAccessToken()
	expiry = s.now().Add(s.tokenTTL)
	if err := s.store.RotateToken(ctx, id, token, expiry); err != nil {
		return "", time.Time{}, err
	}
	return token, expiry, nil
}

// metadata keys stripped from incoming data before persistence.
var metaKeys = map[string]bool{
	"tabName":              true,
	"partial":              true,
	"informationComplete":  true,
	"personalReferences":   true,
	"commercialReferences": true,
	"nationality":          true,
	"guaranteeMethod":      true,
}

func splitMeta(data map[string]any) (updateMeta, map[string]any, error) {
	var m updateMeta
	actual := map[string]any{}
	for k, val := range data {
		if !metaKeys[k] {
			actual[k] = val
			continue
		}
		switch k {
		case "tabName":
			if s, ok := val.(string); ok {
				m.TabName = s
			}
		case "partial":
			if b, ok := val.(bool); ok {
				m.Partial = &b
			}
		case "personalReferences":
			refs, err := parseReferences(val, entity.ReferencePersonal)
			if err != nil {
				return m, nil, err
			}
			m.PersonalRefs = refs
			m.HasPersonal = true
		case "commercialReferences":
			refs, err := parseReferences(val, entity.ReferenceCommercial)
			if err != nil {
				return m, nil, err
			}
			m.CommercialRefs = refs
			m.HasCommercial = true
		case "nationality":
			if s, ok := val.(string); ok {
				n := entity.Nationality(strings.ToUpper(strings.TrimSpace(s)))
				if n == entity.NationalityMexican || n == entity.NationalityForeign {
					m.Nationality = &n
				}
			}
		case "guaranteeMethod":
			if s, ok := val.(string); ok {
				g := entity.GuaranteeMethod(strings.ToLower(strings.TrimSpace(s)))
				if g == entity.GuaranteeIncome || g == entity.GuaranteeProperty {
					m.Guarantee = &g
				}
			}
		}
	}
	return m, actual, nil
}

// parseReferences decodes an incoming reference array. Each entry must at
// minimum name a person (or company) and a phone.
func parseReferences(val any, kind entity.ReferenceKind) ([]entity.Reference, error) {
	items, ok := val.([]any)
	if !ok {
		return nil, errors.New("references must be an array")
	}
	out := make([]entity.Reference, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("reference %d: must be an object", i)
		}
		ref := entity.Reference{ID: utilities.NewSnowflakeID(), Kind: kind}
		ref.FullName = stringField(obj, "fullName")
		ref.Phone = stringField(obj, "phone")
		if v := stringField(obj, "relationship"); v != "" {
			ref.Relationship = &v
		}
		if v := stringField(obj, "email"); v != "" {
			ref.Email = &v
		}
		if v := stringField(obj, "companyName"); v != "" {
			ref.CompanyName = &v
		}
		if kind == entity.ReferenceCommercial && ref.FullName == "" {
			ref.FullName = stringField(obj, "contactName")
		}
		if ref.FullName == "" || ref.Phone == "" {
			return nil, fmt.Errorf("reference %d: name and phone are required", i)
		}
		out = append(out, ref)
	}
	return out, nil
}

func stringField(obj map[string]any, key string) string {
	if v, ok := obj[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// validateLoose checks a free-form (no tabName) staff edit: every key
// must be a known applicable field and present values must be well
// formed. Requiredness is not enforced on partial staff edits.
func validateLoose(v schema.Variant, data map[string]any) *schema.Result {
	res := &schema.Result{OK: true}
	fields := schema.ApplicableFields(v)
	for name, val := range data {
		f, ok := fields[name]
		if !ok {
			res.Errors = append(res.Errors, schema.FieldError{Path: name, Message: "unknown field"})
			res.OK = false
			continue
		}
		if !schema.Present(val) {
			continue
		}
		if msg := f.CheckFormat(val); msg != "" {
			res.Errors = append(res.Errors, schema.FieldError{Path: name, Message: msg})
			res.OK = false
		}
	}
	return res
}
