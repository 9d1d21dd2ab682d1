package domain

import "time"

// ApprovalStatus is the status of an approval request or a single approver.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
	ApprovalExpired  ApprovalStatus = "EXPIRED"
)

// Approver is one required sign-off within an approval request.
// UserID defaults to the role name until a concrete user responds;
// role inboxes are resolved to people outside the core.
type Approver struct {
	UserID      string         `json:"userId"`
	Role        string         `json:"role"`
	Level       int            `json:"level"`
	Status      ApprovalStatus `json:"status"`
	RespondedAt *time.Time     `json:"respondedAt,omitempty"`
	Notes       string         `json:"notes,omitempty"`
}

// ApprovalRequest tracks a multi-party approval of a claim.
// The request is APPROVED only when every approver has approved; a single
// rejection rejects the whole request regardless of RequiresAll.
type ApprovalRequest struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenantId"`
	ClaimID     string         `json:"claimId"`
	Level       int            `json:"level"`
	Approvers   []Approver     `json:"approvers"`
	Status      ApprovalStatus `json:"status"`
	RequiresAll bool           `json:"requiresAll"`
	RequestedBy string         `json:"requestedBy,omitempty"`
	RequestedAt time.Time      `json:"requestedAt"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	ResolvedAt  *time.Time     `json:"resolvedAt,omitempty"`
}

// Standard approver roles.
const (
	RoleAdjuster   = "adjuster"
	RoleSupervisor = "supervisor"
	RoleManager    = "manager"
	RoleDirector   = "director"
	RoleSpecialist = "specialist"
)
