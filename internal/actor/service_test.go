package actor_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/netoho/hestia-app-staging-sub001/internal/actor"
	"github.com/netoho/hestia-app-staging-sub001/internal/actor/entity"
	"github.com/netoho/hestia-app-staging-sub001/internal/actor/schema"
	"github.com/netoho/hestia-app-staging-sub001/internal/actor/tabs"
	policyentity "github.com/netoho/hestia-app-staging-sub001/internal/policy/entity"
)

// fakeStore is an in-memory actor.Store. RunInTx snapshots state and
// restores it when the callback fails, mimicking a rollback.
type fakeStore struct {
	actors   map[string]*entity.Actor
	refs     map[string]map[entity.ReferenceKind][]entity.Reference
	docs     map[string][]string
	policies map[string]*policyentity.Policy
	failRefs bool
}

func newFakeStore(actors ...*entity.Actor) *fakeStore {
	s := &fakeStore{
		actors:   map[string]*entity.Actor{},
		refs:     map[string]map[entity.ReferenceKind][]entity.Reference{},
		docs:     map[string][]string{},
		policies: map[string]*policyentity.Policy{},
	}
	for _, a := range actors {
		if a.Fields == nil {
			a.Fields = map[string]any{}
		}
		s.actors[a.ID] = a
	}
	return s
}

func cloneActor(a *entity.Actor) *entity.Actor {
	cp := *a
	cp.Fields = map[string]any{}
	for k, v := range a.Fields {
		cp.Fields[k] = v
	}
	cp.TabsCompleted = append([]string(nil), a.TabsCompleted...)
	return &cp
}

func (s *fakeStore) GetByID(_ context.Context, t entity.ActorType, id string) (*entity.Actor, error) {
	a, ok := s.actors[id]
	if !ok || a.Type != t {
		return nil, sql.ErrNoRows
	}
	return cloneActor(a), nil
}

func (s *fakeStore) GetByToken(_ context.Context, t entity.ActorType, token string) (*entity.Actor, error) {
	for _, a := range s.actors {
		if a.Type == t && a.Active && a.AccessToken != nil && *a.AccessToken == token {
			return cloneActor(a), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeStore) UpdateFields(_ context.Context, id string, fields map[string]any, tab string) error {
	a, ok := s.actors[id]
	if !ok {
		return sql.ErrNoRows
	}
	for k, v := range fields {
		a.Fields[k] = v
	}
	if tab != "" && !a.TabCompleted(tab) {
		a.TabsCompleted = append(a.TabsCompleted, tab)
	}
	return nil
}

func (s *fakeStore) SetDiscriminants(_ context.Context, id string, nat *entity.Nationality, method *entity.GuaranteeMethod) error {
	a, ok := s.actors[id]
	if !ok {
		return sql.ErrNoRows
	}
	if nat != nil {
		a.Nationality = *nat
	}
	if method != nil {
		a.GuaranteeMethod = method
	}
	return nil
}

func (s *fakeStore) ReplaceReferences(_ context.Context, actorID string, kind entity.ReferenceKind, refs []entity.Reference) error {
	if s.failRefs {
		return errors.New("reference write failed")
	}
	if s.refs[actorID] == nil {
		s.refs[actorID] = map[entity.ReferenceKind][]entity.Reference{}
	}
	s.refs[actorID][kind] = refs
	return nil
}

func (s *fakeStore) CountReferences(_ context.Context, actorID string) (int, int, error) {
	return len(s.refs[actorID][entity.ReferencePersonal]), len(s.refs[actorID][entity.ReferenceCommercial]), nil
}

func (s *fakeStore) ConfirmedDocumentCategories(_ context.Context, actorID string) ([]string, error) {
	return s.docs[actorID], nil
}

func (s *fakeStore) MarkComplete(_ context.Context, id string, at time.Time) error {
	a := s.actors[id]
	a.InformationComplete = true
	a.CompletedAt = &at
	a.VerificationStatus = entity.VerificationInReview
	return nil
}

func (s *fakeStore) MarkForcedComplete(_ context.Context, id, staffID string, at time.Time) error {
	a := s.actors[id]
	a.InformationComplete = true
	a.CompletedAt = &at
	a.ValidationSkippedBy = &staffID
	a.ValidationSkippedAt = &at
	return nil
}

func (s *fakeStore) RotateToken(_ context.Context, id, token string, expiry time.Time) error {
	a := s.actors[id]
	a.AccessToken = &token
	a.TokenExpiry = &expiry
	return nil
}

func (s *fakeStore) GetPolicy(_ context.Context, id string) (*policyentity.Policy, error) {
	p, ok := s.policies[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := map[string]*entity.Actor{}
	for id, a := range s.actors {
		snapshot[id] = cloneActor(a)
	}
	if err := fn(ctx); err != nil {
		s.actors = snapshot
		return err
	}
	return nil
}

const tenantToken = "tok-tenant-1"

func newTenant() *entity.Actor {
	tok := tenantToken
	return &entity.Actor{
		ID:          "a1",
		PolicyID:    "p1",
		Type:        entity.ActorTenant,
		AccessToken: &tok,
		Active:      true,
		Fields:      map[string]any{},
	}
}

func newService(store actor.Store, mode actor.ReferenceWriteMode) *actor.Service {
	return actor.NewService(store, zap.NewNop().Sugar(), mode)
}

func personalTabData() map[string]any {
	return map[string]any{
		"tabName":          tabs.TabPersonal,
		"firstName":        "Maria",
		"lastNamePaternal": "Lopez",
		"email":            "maria@example.com",
		"phone":            "5512345678",
		"curp":             "LOPM800101MDFXXX08",
		"rfc":              "LOPM800101AB1",
		"address":          "Av. Reforma 1, CDMX",
	}
}

func TestUpdateSavesTabAndRecordsCompletion(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)

	res, err := svc.Update(context.Background(), nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken, Data: personalTabData(),
	})
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.False(t, res.Submitted)
	assert.Equal(t, "Maria", res.Actor.Fields["firstName"])
	assert.True(t, res.Actor.TabCompleted(tabs.TabPersonal))

	// metadata keys never land in the field document
	_, ok := res.Actor.Fields["tabName"]
	assert.False(t, ok)
}

func TestUpdateIdempotentResave(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)
	in := actor.UpdateInput{Type: entity.ActorTenant, Token: tenantToken, Data: personalTabData()}

	_, err := svc.Update(context.Background(), nil, in)
	require.NoError(t, err)
	in.Data = personalTabData()
	res, err := svc.Update(context.Background(), nil, in)
	require.NoError(t, err)
	assert.Equal(t, []string{tabs.TabPersonal}, res.Actor.TabsCompleted)
}

func TestUpdateValidationFailureTouchesNothing(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)

	data := personalTabData()
	data["curp"] = "bogus"
	res, err := svc.Update(context.Background(), nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken, Data: data,
	})
	require.NoError(t, err)
	assert.False(t, res.Saved)
	require.NotNil(t, res.Validation)
	assert.False(t, res.Validation.OK)
	assert.Empty(t, store.actors["a1"].Fields)
	assert.Empty(t, store.actors["a1"].TabsCompleted)
}

func TestUpdateUnknownTabRejected(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)

	_, err := svc.Update(context.Background(), nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken,
		Data: map[string]any{"tabName": tabs.TabGuarantee},
	})
	assert.ErrorIs(t, err, actor.ErrUnknownTab)
	assert.Empty(t, store.actors["a1"].Fields)
}

func TestUpdateUnknownTabLeavesDiscriminantsUntouched(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)

	// An unknown tab must be rejected before anything reaches storage,
	// discriminant metadata riding along in the same payload included.
	_, err := svc.Update(context.Background(), nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken,
		Data: map[string]any{"tabName": "bogus-tab", "nationality": "FOREIGN"},
	})
	assert.ErrorIs(t, err, actor.ErrUnknownTab)
	assert.Equal(t, entity.Nationality(""), store.actors["a1"].Nationality)
	assert.Empty(t, store.actors["a1"].Fields)
	assert.Empty(t, store.actors["a1"].TabsCompleted)
}

func TestTokenFailuresCollapseToUnauthorized(t *testing.T) {
	a := newTenant()
	store := newFakeStore(a)
	svc := newService(store, actor.RefStrict)
	ctx := context.Background()

	_, err := svc.Update(ctx, nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: "wrong", Data: personalTabData(),
	})
	assert.ErrorIs(t, err, actor.ErrUnauthorized)

	// no token and no session
	_, err = svc.Update(ctx, nil, actor.UpdateInput{
		Type: entity.ActorTenant, ActorID: "a1", Data: personalTabData(),
	})
	assert.ErrorIs(t, err, actor.ErrUnauthorized)

	// expired token
	past := time.Now().Add(-time.Hour)
	a.TokenExpiry = &past
	_, err = svc.Update(ctx, nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken, Data: personalTabData(),
	})
	assert.ErrorIs(t, err, actor.ErrUnauthorized)

	// completed actors lose token edit access
	a.TokenExpiry = nil
	a.InformationComplete = true
	_, err = svc.Update(ctx, nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken, Data: personalTabData(),
	})
	assert.ErrorIs(t, err, actor.ErrUnauthorized)
}

func TestStaffEditsWithoutTabName(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)
	staff := &actor.Principal{StaffID: "s1", Role: "OPERATIONS"}

	res, err := svc.Update(context.Background(), staff, actor.UpdateInput{
		Type: entity.ActorTenant, ActorID: "a1",
		Data: map[string]any{"monthlyIncome": 50000},
	})
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.Empty(t, res.Actor.TabsCompleted)

	// unknown field names are still rejected
	res, err = svc.Update(context.Background(), staff, actor.UpdateInput{
		Type: entity.ActorTenant, ActorID: "a1",
		Data: map[string]any{"favouriteColor": "green"},
	})
	require.NoError(t, err)
	assert.False(t, res.Saved)
	require.NotNil(t, res.Validation)
}

func referencesData(n int) map[string]any {
	refs := make([]any, 0, n)
	for i := 0; i < n; i++ {
		refs = append(refs, map[string]any{
			"fullName": "Ref Person", "phone": "5511122233", "relationship": "friend",
		})
	}
	return map[string]any{"tabName": tabs.TabReferences, "personalReferences": refs}
}

func TestPartialReferenceSetPersists(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)

	// two references: below no cardinality rule at save time
	res, err := svc.Update(context.Background(), nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken, Data: referencesData(2),
	})
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.Len(t, store.refs["a1"][entity.ReferencePersonal], 2)
}

func TestReferenceFailureStrictRollsBackTabSave(t *testing.T) {
	store := newFakeStore(newTenant())
	store.failRefs = true
	svc := newService(store, actor.RefStrict)

	_, err := svc.Update(context.Background(), nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken, Data: referencesData(2),
	})
	require.Error(t, err)
	assert.Empty(t, store.actors["a1"].TabsCompleted)
}

func TestReferenceFailureBestEffortKeepsTabSave(t *testing.T) {
	store := newFakeStore(newTenant())
	store.failRefs = true
	svc := newService(store, actor.RefBestEffort)

	res, err := svc.Update(context.Background(), nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken, Data: referencesData(2),
	})
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.NotEmpty(t, res.ReferenceError)
	assert.True(t, res.Actor.TabCompleted(tabs.TabReferences))
}

func TestMalformedReferenceRejectedBeforePersist(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)

	res, err := svc.Update(context.Background(), nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken,
		Data: map[string]any{
			"tabName":            tabs.TabReferences,
			"personalReferences": []any{map[string]any{"fullName": "No Phone"}},
		},
	})
	require.NoError(t, err)
	assert.False(t, res.Saved)
	require.NotNil(t, res.Validation)
	assert.Empty(t, store.refs["a1"])
}

// completeTenant walks an individual tenant through every data tab so
// only the documents tab remains.
func completeTenant(t *testing.T, svc *actor.Service, store *fakeStore) {
	t.Helper()
	ctx := context.Background()
	for _, data := range []map[string]any{
		personalTabData(),
		{
			"tabName":          tabs.TabEmployment,
			"employmentStatus": "employed",
			"monthlyIncome":    52000,
		},
		referencesData(2),
	} {
		res, err := svc.Update(ctx, nil, actor.UpdateInput{
			Type: entity.ActorTenant, Token: tenantToken, Data: data,
		})
		require.NoError(t, err)
		require.True(t, res.Saved, "errors: %+v", res.Validation)
	}
}

func TestLastTabAutoSubmits(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)
	completeTenant(t, svc, store)
	store.docs["a1"] = []string{
		schema.DocIdentification, schema.DocProofOfAddress, schema.DocIncomeProof,
	}

	res, err := svc.Update(context.Background(), nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken,
		Data: map[string]any{"tabName": tabs.TabDocuments},
	})
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.True(t, res.Submitted)
	assert.True(t, res.Actor.InformationComplete)
	assert.Equal(t, entity.VerificationInReview, res.Actor.VerificationStatus)
}

func TestPartialFalseSuppressesAutoSubmit(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)
	completeTenant(t, svc, store)
	store.docs["a1"] = []string{
		schema.DocIdentification, schema.DocProofOfAddress, schema.DocIncomeProof,
	}

	res, err := svc.Update(context.Background(), nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken,
		Data: map[string]any{"tabName": tabs.TabDocuments, "partial": false},
	})
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.False(t, res.Submitted)
	assert.False(t, res.Actor.InformationComplete)
}

func TestNonFinalTabNeverSubmits(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)

	data := personalTabData()
	data["partial"] = false
	res, err := svc.Update(context.Background(), nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken, Data: data,
	})
	require.NoError(t, err)
	assert.False(t, res.Submitted)
	assert.False(t, res.Actor.InformationComplete)
}

func TestFailedSubmissionKeepsSavedData(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)
	completeTenant(t, svc, store)
	// no confirmed documents: strict validation must fail

	res, err := svc.Update(context.Background(), nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken,
		Data: map[string]any{"tabName": tabs.TabDocuments},
	})
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.False(t, res.Submitted)
	assert.NotEmpty(t, res.SubmissionErrors)
	assert.False(t, res.Actor.InformationComplete)
	assert.Equal(t, "Maria", res.Actor.Fields["firstName"])
	assert.True(t, res.Actor.TabCompleted(tabs.TabDocuments))
}

func TestDiscriminantChangeTakesEffectBeforeValidation(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)

	data := map[string]any{
		"tabName":          tabs.TabPersonal,
		"nationality":      "FOREIGN",
		"firstName":        "John",
		"lastNamePaternal": "Smith",
		"email":            "john@example.com",
		"phone":            "5511122233",
		"passportNumber":   "A1234567",
		"address":          "Calle 2, CDMX",
	}
	res, err := svc.Update(context.Background(), nil, actor.UpdateInput{
		Type: entity.ActorTenant, Token: tenantToken, Data: data,
	})
	require.NoError(t, err)
	assert.True(t, res.Saved, "errors: %+v", res.Validation)
	assert.Equal(t, entity.NationalityForeign, store.actors["a1"].Nationality)
}

func TestJointObligorIncomeFlowEndToEnd(t *testing.T) {
	tok := "tok-jo-1"
	jo := &entity.Actor{
		ID: "j1", PolicyID: "p1", Type: entity.ActorJointObligor,
		AccessToken: &tok, Active: true, Fields: map[string]any{},
	}
	store := newFakeStore(jo)
	svc := newService(store, actor.RefStrict)
	ctx := context.Background()

	steps := []map[string]any{
		{
			"tabName":          tabs.TabPersonal,
			"firstName":        "Pedro",
			"lastNamePaternal": "Ramirez",
			"email":            "pedro@example.com",
			"phone":            "5512345678",
			"curp":             "RAMP750315HDFXXX09",
			"rfc":              "RAMP750315AB1",
			"address":          "Calle 5, CDMX",
		},
		{
			"tabName":         tabs.TabGuarantee,
			"guaranteeMethod": "income",
			"bankName":        "Santander",
			"accountHolder":   "Pedro Ramirez",
			"monthlyIncome":   60000,
		},
		referencesData(3),
	}
	for _, data := range steps {
		res, err := svc.Update(ctx, nil, actor.UpdateInput{
			Type: entity.ActorJointObligor, Token: tok, Data: data,
		})
		require.NoError(t, err)
		require.True(t, res.Saved, "errors: %+v", res.Validation)
		require.False(t, res.Submitted)
	}

	store.docs["j1"] = []string{
		schema.DocIdentification, schema.DocProofOfAddress, schema.DocIncomeProof,
	}
	res, err := svc.Update(ctx, nil, actor.UpdateInput{
		Type: entity.ActorJointObligor, Token: tok,
		Data: map[string]any{"tabName": tabs.TabDocuments},
	})
	require.NoError(t, err)
	assert.True(t, res.Submitted, "submission errors: %+v", res.SubmissionErrors)
	assert.True(t, res.Actor.InformationComplete)
}

func TestSubmitForcedRequiresAdmin(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)
	ctx := context.Background()

	_, err := svc.SubmitForced(ctx, &actor.Principal{StaffID: "s1", Role: "OPERATIONS"}, entity.ActorTenant, "a1")
	assert.ErrorIs(t, err, actor.ErrForbidden)
	_, err = svc.SubmitForced(ctx, nil, entity.ActorTenant, "a1")
	assert.ErrorIs(t, err, actor.ErrForbidden)

	a, err := svc.SubmitForced(ctx, &actor.Principal{StaffID: "s2", Role: "ADMIN"}, entity.ActorTenant, "a1")
	require.NoError(t, err)
	assert.True(t, a.InformationComplete)
	require.NotNil(t, a.ValidationSkippedBy)
	assert.Equal(t, "s2", *a.ValidationSkippedBy)
	assert.NotNil(t, a.ValidationSkippedAt)
}

func TestGetByTokenViewStaysReadableAfterCompletion(t *testing.T) {
	a := newTenant()
	a.InformationComplete = true
	store := newFakeStore(a)
	store.policies["p1"] = &policyentity.Policy{
		ID:              "p1",
		PolicyNumber:    "POL-2026-ABCDEFGHIJ",
		Status:          policyentity.StatusCollectingInfo,
		PropertyAddress: "Av. Insurgentes 500, CDMX",
	}
	svc := newService(store, actor.RefStrict)

	view, err := svc.GetByToken(context.Background(), entity.ActorTenant, tenantToken)
	require.NoError(t, err)
	assert.False(t, view.CanEdit)
	assert.Equal(t, "a1", view.Actor.ID)
	require.NotNil(t, view.Policy)
	assert.Equal(t, "POL-2026-ABCDEFGHIJ", view.Policy.PolicyNumber)
	assert.Equal(t, "Av. Insurgentes 500, CDMX", view.Policy.PropertyAddress)

	_, err = svc.GetByToken(context.Background(), entity.ActorTenant, "wrong")
	assert.ErrorIs(t, err, actor.ErrUnauthorized)
}

func TestGetByTokenToleratesMissingPolicy(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)

	view, err := svc.GetByToken(context.Background(), entity.ActorTenant, tenantToken)
	require.NoError(t, err)
	assert.Nil(t, view.Policy)
	assert.True(t, view.CanEdit)
}

func TestRegenerateToken(t *testing.T) {
	store := newFakeStore(newTenant())
	svc := newService(store, actor.RefStrict)

	token, expiry, err := svc.RegenerateToken(context.Background(), entity.ActorTenant, "a1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEqual(t, tenantToken, token)
	assert.True(t, expiry.After(time.Now().Add(29*24*time.Hour)))
	assert.Equal(t, token, *store.actors["a1"].AccessToken)

	_, _, err = svc.RegenerateToken(context.Background(), entity.ActorTenant, "missing")
	assert.ErrorIs(t, err, actor.ErrNotFound)
}
