package entity

import (
	"encoding/json"
	"time"
)

// ActorType identifies which party to a policy a record represents.
type ActorType string

const (
	ActorTenant       ActorType = "tenant"
	ActorLandlord     ActorType = "landlord"
	ActorAval         ActorType = "aval"
	ActorJointObligor ActorType = "jointObligor"
)

// ActorTypes lists every valid actor type in a stable order.
var ActorTypes = []ActorType{ActorTenant, ActorLandlord, ActorAval, ActorJointObligor}

func (t ActorType) Valid() bool {
	switch t {
	case ActorTenant, ActorLandlord, ActorAval, ActorJointObligor:
		return true
	}
	return false
}

// IsGuarantor reports whether the type backs tenant obligations and
// therefore carries a guarantee method.
func (t ActorType) IsGuarantor() bool {
	return t == ActorAval || t == ActorJointObligor
}

type Nationality string

const (
	NationalityMexican Nationality = "MEXICAN"
	NationalityForeign Nationality = "FOREIGN"
)

type GuaranteeMethod string

const (
	GuaranteeIncome   GuaranteeMethod = "income"
	GuaranteeProperty GuaranteeMethod = "property"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationInReview VerificationStatus = "IN_REVIEW"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// Actor is a party to a policy (see ActorType). Variant discriminants
// (IsCompany, Nationality, GuaranteeMethod) select which fields the
// schema registry requires; the form fields themselves live in Fields
// as an opaque JSONB document keyed by field name.
type Actor struct {
	ID          string     `db:"id"`
	PolicyID    string     `db:"policy_id"`
	Type        ActorType  `db:"actor_type"`
	AccessToken *string    `db:"access_token"`
	TokenExpiry *time.Time `db:"token_expiry"`

	IsCompany       bool             `db:"is_company"`
	Nationality     Nationality      `db:"nationality"`
	GuaranteeMethod *GuaranteeMethod `db:"guarantee_method"`

	Email    string  `db:"email"`
	FullName *string `db:"full_name"`

	Fields        map[string]any `db:"-"`
	FieldsRaw     []byte         `db:"fields"`
	TabsCompleted []string       `db:"-"`
	TabsRaw       []byte         `db:"tabs_completed"`

	InformationComplete bool               `db:"information_complete"`
	CompletedAt         *time.Time         `db:"completed_at"`
	VerificationStatus  VerificationStatus `db:"verification_status"`

	// Audit trail for the admin validation bypass.
	ValidationSkippedBy *string    `db:"validation_skipped_by"`
	ValidationSkippedAt *time.Time `db:"validation_skipped_at"`

	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DecodeRaw hydrates Fields and TabsCompleted from their JSONB columns.
func (a *Actor) DecodeRaw() error {
	a.Fields = map[string]any{}
	if len(a.FieldsRaw) > 0 {
		if err := json.Unmarshal(a.FieldsRaw, &a.Fields); err != nil {
			return err
		}
	}
	a.TabsCompleted = nil
	if len(a.TabsRaw) > 0 {
		if err := json.Unmarshal(a.TabsRaw, &a.TabsCompleted); err != nil {
			return err
		}
	}
	return nil
}

// TabCompleted reports whether a tab id is in the persisted completion set.
func (a *Actor) TabCompleted(tab string) bool {
	for _, t := range a.TabsCompleted {
		if t == tab {
			return true
		}
	}
	return false
}

// TokenValid reports whether the actor's bearer token matches and has not
// expired. Completed actors keep their token but lose self-service edit
// access; that check belongs to the caller.
func (a *Actor) TokenValid(token string, now time.Time) bool {
	if a.AccessToken == nil || *a.AccessToken == "" || token == "" {
		return false
	}
	if *a.AccessToken != token {
		return false
	}
	if a.TokenExpiry != nil && a.TokenExpiry.Before(now) {
		return false
	}
	return true
}

// ReferenceKind distinguishes personal from commercial references.
type ReferenceKind string

const (
	ReferencePersonal   ReferenceKind = "personal"
	ReferenceCommercial ReferenceKind = "commercial"
)

// Reference is owned by exactly one actor. The set is replaced wholesale
// on every references-tab save; there is no per-row update.
type Reference struct {
	ID           string        `db:"id"`
	ActorID      string        `db:"actor_id"`
	Kind         ReferenceKind `db:"kind"`
	FullName     string        `db:"full_name"`
	Relationship *string       `db:"relationship"`
	Phone        string        `db:"phone"`
	Email        *string       `db:"email"`
	CompanyName  *string       `db:"company_name"`
	CreatedAt    time.Time     `db:"created_at"`
}

// DocumentStatus tracks an upload slot through its two-phase flow.
type DocumentStatus string

const (
	DocumentUploading DocumentStatus = "UPLOADING"
	DocumentConfirmed DocumentStatus = "CONFIRMED"
)

// Document is a stored-file metadata row keyed by (actor type, actor id,
// category). The binary itself lives behind the storage collaborator.
type Document struct {
	ID         string         `db:"id"`
	ActorType  ActorType      `db:"actor_type"`
	ActorID    string         `db:"actor_id"`
	Category   string         `db:"category"`
	Filename   string         `db:"filename"`
	ObjectKey  string         `db:"object_key"`
	SizeBytes  int64          `db:"size_bytes"`
	Status     DocumentStatus `db:"status"`
	UploadedAt *time.Time     `db:"uploaded_at"`
	CreatedAt  time.Time      `db:"created_at"`
}
