// Package domain defines the core types and interfaces for Heron.
package domain

import (
	"time"
)

// ClaimState is the lifecycle state of a claim.
// The transition matrix lives in the workflow package; only the
// workflow state machine may change a claim's state.
type ClaimState string

const (
	StateDraft            ClaimState = "DRAFT"
	StateSubmitted        ClaimState = "SUBMITTED"
	StateUnderReview      ClaimState = "UNDER_REVIEW"
	StatePendingDocuments ClaimState = "PENDING_DOCUMENTS"
	StateInvestigating    ClaimState = "INVESTIGATING"
	StateApproved         ClaimState = "APPROVED"
	StateRejected         ClaimState = "REJECTED"
	StatePaymentPending   ClaimState = "PAYMENT_PENDING"
	StatePaid             ClaimState = "PAID"
	StateClosed           ClaimState = "CLOSED"
)

// AllStates lists every lifecycle state.
func AllStates() []ClaimState {
	return []ClaimState{
		StateDraft, StateSubmitted, StateUnderReview, StatePendingDocuments,
		StateInvestigating, StateApproved, StateRejected, StatePaymentPending,
		StatePaid, StateClosed,
	}
}

// ClaimType classifies the reported loss event.
type ClaimType string

const (
	TypeAutoAccident   ClaimType = "auto_accident"
	TypePropertyDamage ClaimType = "property_damage"
	TypeTheft          ClaimType = "theft"
	TypeFire           ClaimType = "fire"
	TypeWaterDamage    ClaimType = "water_damage"
	TypeHealth         ClaimType = "health"
	TypeLife           ClaimType = "life"
	TypeLiability      ClaimType = "liability"
	TypeOther          ClaimType = "other"
)

// Priority is the handling priority of a claim.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

// RiskLevel is the fraud risk tier derived from the fraud score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Claim is the aggregate threaded through every engine. State changes go
// through the workflow state machine exclusively; engines mutate their own
// fields and append to Metadata for automation side effects.
type Claim struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	ClaimNumber string `json:"claimNumber"`

	CustomerID string `json:"customerId"`
	PolicyID   string `json:"policyId"`
	// PolicyStart is the inception date of the associated policy,
	// used by the fraud scorer's new-policy indicator.
	PolicyStart *time.Time `json:"policyStart,omitempty"`

	Type     ClaimType  `json:"type"`
	Priority Priority   `json:"priority"`
	State    ClaimState `json:"state"`

	AdjusterID string `json:"adjusterId,omitempty"`

	EstimatedAmount float64  `json:"estimatedAmount"`
	ClaimedAmount   float64  `json:"claimedAmount"`
	ApprovedAmount  *float64 `json:"approvedAmount,omitempty"`
	PaidAmount      *float64 `json:"paidAmount,omitempty"`
	Currency        string   `json:"currency"`

	IncidentDate    time.Time  `json:"incidentDate"`
	ReportedDate    time.Time  `json:"reportedDate"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`
	PaidAt          *time.Time `json:"paidAt,omitempty"`
	ClosedAt        *time.Time `json:"closedAt,omitempty"`
	LastStateChange time.Time  `json:"lastStateChange"`

	HasRequiredDocuments bool     `json:"hasRequiredDocuments"`
	MissingDocuments     []string `json:"missingDocuments,omitempty"`
	DocumentCount        int      `json:"documentCount"`

	FraudRiskLevel RiskLevel `json:"fraudRiskLevel"`
	FraudScore     float64   `json:"fraudScore"`
	FraudFlags     []string  `json:"fraudFlags,omitempty"`

	RequiresApproval bool       `json:"requiresApproval"`
	ApprovalLevel    int        `json:"approvalLevel"`
	Approvers        []Approver `json:"approvers,omitempty"`

	// History is the append-only transition log. Exactly one entry is
	// appended per successful state change.
	History []HistoryEntry `json:"history,omitempty"`

	Notes    []string       `json:"notes,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HistoryEntry is one audit record of a state transition. Its persisted
// shape is stable: downstream audit tooling depends on it.
type HistoryEntry struct {
	ID        string     `json:"id"`
	ClaimID   string     `json:"claimId"`
	FromState ClaimState `json:"fromState"`
	ToState   ClaimState `json:"toState"`
	Timestamp time.Time  `json:"timestamp"`
	UserID    string     `json:"userId,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	ReasonCode string    `json:"reasonCode,omitempty"`
}

// SetMeta writes an automation side-effect flag, allocating the bag lazily.
func (c *Claim) SetMeta(key string, value any) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
}

// Flags returns the flag list from the metadata bag. Claims loaded from the
// repository carry the list as []any after JSON decoding, so both shapes are
// accepted.
func (c *Claim) Flags() []string {
	switch v := c.Metadata["flags"].(type) {
	case []string:
		return v
	case []any:
		flags := make([]string, 0, len(v))
		for _, f := range v {
			if s, ok := f.(string); ok {
				flags = append(flags, s)
			}
		}
		return flags
	default:
		return nil
	}
}

// SLAResult is the outcome of a service-level check for a claim.
type SLAResult struct {
	ClaimID       string  `json:"claimId"`
	TargetDays    int     `json:"targetDays"`
	ElapsedDays   float64 `json:"elapsedDays"`
	DaysRemaining float64 `json:"daysRemaining"`
	Breached      bool    `json:"breached"`
}

// ClaimRequest is the API payload for claim intake.
type ClaimRequest struct {
	CustomerID      string     `json:"customerId"`
	PolicyID        string     `json:"policyId"`
	PolicyStart     *time.Time `json:"policyStart,omitempty"`
	Type            ClaimType  `json:"type"`
	EstimatedAmount float64    `json:"estimatedAmount"`
	ClaimedAmount   float64    `json:"claimedAmount"`
	Currency        string     `json:"currency"`
	IncidentDate    time.Time  `json:"incidentDate"`
	Description     string     `json:"description,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}
