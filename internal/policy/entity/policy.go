package entity

import "time"

// Status is the policy lifecycle state machine.
type Status string

const (
	StatusDraft              Status = "DRAFT"
	StatusCollectingInfo     Status = "COLLECTING_INFO"
	StatusUnderInvestigation Status = "UNDER_INVESTIGATION"
	StatusPendingApproval    Status = "PENDING_APPROVAL"
	StatusContractSigned     Status = "CONTRACT_SIGNED"
	StatusActive             Status = "ACTIVE"
	StatusCancelled          Status = "CANCELLED"
	StatusExpired            Status = "EXPIRED"
)

// transitions maps each status to the set it may move to. Cancellation is
// reachable from every non-terminal state and is irreversible.
var transitions = map[Status][]Status{
	StatusDraft:              {StatusCollectingInfo, StatusCancelled},
	StatusCollectingInfo:     {StatusUnderInvestigation, StatusCancelled},
	StatusUnderInvestigation: {StatusPendingApproval, StatusCancelled},
	StatusPendingApproval:    {StatusContractSigned, StatusCancelled},
	StatusContractSigned:     {StatusActive, StatusCancelled},
	StatusActive:             {StatusExpired, StatusCancelled},
}

// CanTransition reports whether moving from one status to another is a
// legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// GuarantorType controls which guarantor actor arrays a policy carries.
type GuarantorType string

const (
	GuarantorNone         GuarantorType = "NONE"
	GuarantorAval         GuarantorType = "AVAL"
	GuarantorJointObligor GuarantorType = "JOINT_OBLIGOR"
	GuarantorBoth         GuarantorType = "BOTH"
)

func (g GuarantorType) AllowsAval() bool {
	return g == GuarantorAval || g == GuarantorBoth
}

func (g GuarantorType) AllowsJointObligor() bool {
	return g == GuarantorJointObligor || g == GuarantorBoth
}

// Policy aggregates one tenant, one or more landlords (co-ownership) and
// the guarantor actors selected by GuarantorType. Actor rows reference
// the policy by id.
type Policy struct {
	ID              string        `db:"id"`
	PolicyNumber    string        `db:"policy_number"`
	Status          Status        `db:"status"`
	GuarantorType   GuarantorType `db:"guarantor_type"`
	PropertyAddress string        `db:"property_address"`
	MonthlyRent     float64       `db:"monthly_rent"`
	CreatedBy       string        `db:"created_by"`
	CancelledAt     *time.Time    `db:"cancelled_at"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}
