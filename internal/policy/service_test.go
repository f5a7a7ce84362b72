package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	actorentity "github.com/netoho/hestia-app-staging-sub001/internal/actor/entity"
	"github.com/netoho/hestia-app-staging-sub001/internal/policy/entity"
)

func validCreateInput() CreateInput {
	return CreateInput{
		PropertyAddress: "Av. Insurgentes 100, CDMX",
		MonthlyRent:     25000,
		GuarantorType:   entity.GuarantorJointObligor,
		Tenant:          PartyInput{Email: "tenant@example.com", FullName: "Maria Lopez"},
		Landlords:       []PartyInput{{Email: "owner@example.com"}},
		JointObligors:   []PartyInput{{Email: "jo@example.com"}},
	}
}

func TestValidateCreateAcceptsWellFormedInput(t *testing.T) {
	assert.NoError(t, validateCreate(validCreateInput()))
}

func TestValidateCreateRequiredParties(t *testing.T) {
	in := validCreateInput()
	in.Tenant.Email = ""
	assert.ErrorIs(t, validateCreate(in), ErrBadInput)

	in = validCreateInput()
	in.Landlords = nil
	assert.ErrorIs(t, validateCreate(in), ErrBadInput)

	in = validCreateInput()
	in.PropertyAddress = ""
	assert.ErrorIs(t, validateCreate(in), ErrBadInput)
}

func TestValidateCreateCoOwnershipMustSumTo100(t *testing.T) {
	in := validCreateInput()
	in.Landlords = []PartyInput{
		{Email: "a@example.com", OwnershipPercentage: 60},
		{Email: "b@example.com", OwnershipPercentage: 30},
	}
	assert.ErrorIs(t, validateCreate(in), ErrBadInput)

	in.Landlords[1].OwnershipPercentage = 40
	assert.NoError(t, validateCreate(in))

	// a single landlord needs no percentage at all
	in.Landlords = []PartyInput{{Email: "solo@example.com"}}
	assert.NoError(t, validateCreate(in))
}

func TestValidateCreateGuarantorTypeGates(t *testing.T) {
	in := validCreateInput()
	in.GuarantorType = entity.GuarantorNone
	in.JointObligors = []PartyInput{{Email: "jo@example.com"}}
	assert.ErrorIs(t, validateCreate(in), ErrBadInput)

	in = validCreateInput()
	in.GuarantorType = entity.GuarantorAval
	in.JointObligors = []PartyInput{{Email: "jo@example.com"}}
	assert.ErrorIs(t, validateCreate(in), ErrBadInput)

	in = validCreateInput()
	in.GuarantorType = entity.GuarantorBoth
	in.Avals = []PartyInput{{Email: "aval@example.com"}}
	assert.NoError(t, validateCreate(in))

	in = validCreateInput()
	in.GuarantorType = "COSIGNER"
	assert.ErrorIs(t, validateCreate(in), ErrBadInput)
}

func TestNewActorSeedsInvitation(t *testing.T) {
	svc := &Service{tokenTTL: 30 * 24 * time.Hour, now: time.Now}

	a := svc.newActor("p1", actorentity.ActorLandlord, PartyInput{
		Email:               "owner@example.com",
		FullName:            "Laura Diaz",
		OwnershipPercentage: 50,
	})
	assert.Equal(t, actorentity.ActorLandlord, a.Type)
	require.NotNil(t, a.AccessToken)
	assert.NotEmpty(t, *a.AccessToken)
	require.NotNil(t, a.TokenExpiry)
	assert.True(t, a.TokenExpiry.After(time.Now()))
	assert.True(t, a.Active)
	assert.Equal(t, actorentity.NationalityMexican, a.Nationality)
	assert.Equal(t, 50.0, a.Fields["ownershipPercentage"])

	b := svc.newActor("p1", actorentity.ActorTenant, PartyInput{
		Email:       "john@example.com",
		Nationality: string(actorentity.NationalityForeign),
	})
	assert.Equal(t, actorentity.NationalityForeign, b.Nationality)
	assert.Empty(t, b.Fields)
	assert.NotEqual(t, *a.AccessToken, *b.AccessToken)
}
