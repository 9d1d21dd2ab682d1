package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-insurance/heron/internal/domain"
)

// Engine manages approval requests for claims whose amounts exceed the
// auto-approve range. The repository and event bus are optional; when nil the
// engine resolves requests in memory only and the caller persists.
type Engine struct {
	repo       domain.Repository
	bus        domain.EventBus
	bands      []Band
	thresholds EscalationThresholds
	expiry     time.Duration
	now        func() time.Time
}

// DefaultExpiry is how long an approval request stays actionable.
const DefaultExpiry = 7 * 24 * time.Hour

// NewEngine builds an engine with the default band table and thresholds.
func NewEngine(repo domain.Repository, bus domain.EventBus) *Engine {
	return &Engine{
		repo:       repo,
		bus:        bus,
		bands:      DefaultBands(),
		thresholds: DefaultThresholds(),
		expiry:     DefaultExpiry,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetBands replaces the band table, e.g. from tenant configuration.
func (e *Engine) SetBands(bands []Band) {
	if len(bands) > 0 {
		e.bands = bands
	}
}

// SetClock overrides the time source for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// RequiredApproval resolves the claim to its approval band. Typed bands win
// over type-agnostic ones; an unmatched claim falls back to level 1 with a
// single adjuster.
func (e *Engine) RequiredApproval(claim *domain.Claim) (level int, roles []string, requiresAll bool) {
	amount := claim.EstimatedAmount

	for _, band := range e.bands {
		if band.ClaimType != nil && *band.ClaimType == claim.Type && band.matchesAmount(amount) {
			return band.Level, band.RequiredRoles, band.RequiresAll
		}
	}
	for _, band := range e.bands {
		if band.ClaimType == nil && band.matchesAmount(amount) {
			return band.Level, band.RequiredRoles, band.RequiresAll
		}
	}
	return 1, []string{domain.RoleAdjuster}, false
}

// RequestApproval opens an approval request for the claim and snapshots the
// required approvers onto it. The request expires after the standard window.
func (e *Engine) RequestApproval(ctx context.Context, claim *domain.Claim, requestedBy string) (*domain.ApprovalRequest, error) {
	level, roles, requiresAll := e.RequiredApproval(claim)
	now := e.now()

	approvers := make([]domain.Approver, 0, len(roles))
	for _, role := range roles {
		approvers = append(approvers, domain.Approver{
			UserID: role,
			Role:   role,
			Level:  level,
			Status: domain.ApprovalPending,
		})
	}

	req := &domain.ApprovalRequest{
		ID:          uuid.New().String(),
		TenantID:    claim.TenantID,
		ClaimID:     claim.ID,
		Level:       level,
		Approvers:   approvers,
		Status:      domain.ApprovalPending,
		RequiresAll: requiresAll,
		RequestedBy: requestedBy,
		RequestedAt: now,
		ExpiresAt:   now.Add(e.expiry),
	}

	claim.RequiresApproval = true
	claim.ApprovalLevel = level
	claim.Approvers = append([]domain.Approver(nil), approvers...)
	claim.SetMeta("approvalRequestId", req.ID)

	if e.repo != nil {
		if err := e.repo.SaveApprovalRequest(ctx, claim.TenantID, req); err != nil {
			return nil, fmt.Errorf("save approval request: %w", err)
		}
	}
	e.publish(ctx, claim.TenantID, domain.TopicApprovalRequested, req)

	return req, nil
}

// ApplyApproval records one approver's sign-off on the request. The request
// resolves to APPROVED only once every approver has approved.
func (e *Engine) ApplyApproval(req *domain.ApprovalRequest, approverID, notes string) error {
	if err := e.checkActionable(req); err != nil {
		return err
	}

	approver, err := findApprover(req, approverID)
	if err != nil {
		return err
	}
	if approver.Status != domain.ApprovalPending {
		return fmt.Errorf("%w: approver %s already responded", domain.ErrAlreadyResolved, approverID)
	}

	now := e.now()
	approver.Status = domain.ApprovalApproved
	approver.RespondedAt = &now
	approver.Notes = notes
	if approver.UserID == approver.Role {
		approver.UserID = approverID
	}

	if allApproved(req) {
		req.Status = domain.ApprovalApproved
		req.ResolvedAt = &now
	}
	return nil
}

// ApplyRejection records a rejection. One veto rejects the whole request
// immediately, regardless of how many approvals it already has.
func (e *Engine) ApplyRejection(req *domain.ApprovalRequest, approverID, reason string) error {
	if err := e.checkActionable(req); err != nil {
		return err
	}

	approver, err := findApprover(req, approverID)
	if err != nil {
		return err
	}
	if approver.Status != domain.ApprovalPending {
		return fmt.Errorf("%w: approver %s already responded", domain.ErrAlreadyResolved, approverID)
	}

	now := e.now()
	approver.Status = domain.ApprovalRejected
	approver.RespondedAt = &now
	approver.Notes = reason
	if approver.UserID == approver.Role {
		approver.UserID = approverID
	}

	req.Status = domain.ApprovalRejected
	req.ResolvedAt = &now
	return nil
}

// Approve is the repository-backed form of ApplyApproval.
func (e *Engine) Approve(ctx context.Context, tenantID, requestID, approverID, notes string) (*domain.ApprovalRequest, error) {
	return e.respond(ctx, tenantID, requestID, func(req *domain.ApprovalRequest) error {
		return e.ApplyApproval(req, approverID, notes)
	})
}

// Reject is the repository-backed form of ApplyRejection.
func (e *Engine) Reject(ctx context.Context, tenantID, requestID, approverID, reason string) (*domain.ApprovalRequest, error) {
	return e.respond(ctx, tenantID, requestID, func(req *domain.ApprovalRequest) error {
		return e.ApplyRejection(req, approverID, reason)
	})
}

func (e *Engine) respond(ctx context.Context, tenantID, requestID string, apply func(*domain.ApprovalRequest) error) (*domain.ApprovalRequest, error) {
	if e.repo == nil {
		return nil, fmt.Errorf("approval engine has no repository")
	}

	req, err := e.repo.GetApprovalRequest(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}

	applyErr := apply(req)

	// An expiry discovered here still needs persisting.
	if applyErr == nil || req.Status == domain.ApprovalExpired {
		if err := e.repo.SaveApprovalRequest(ctx, tenantID, req); err != nil {
			return nil, fmt.Errorf("save approval request: %w", err)
		}
	}
	if applyErr != nil {
		return nil, applyErr
	}

	if req.Status != domain.ApprovalPending {
		e.publish(ctx, tenantID, domain.TopicApprovalResolved, req)
	}
	return req, nil
}

// checkActionable rejects responses against resolved or expired requests,
// lazily expiring a stale one.
func (e *Engine) checkActionable(req *domain.ApprovalRequest) error {
	switch req.Status {
	case domain.ApprovalPending:
	case domain.ApprovalExpired:
		return domain.ErrExpired
	default:
		return fmt.Errorf("%w: request is %s", domain.ErrAlreadyResolved, req.Status)
	}

	if e.now().After(req.ExpiresAt) {
		now := e.now()
		req.Status = domain.ApprovalExpired
		req.ResolvedAt = &now
		return domain.ErrExpired
	}
	return nil
}

// findApprover matches by user first, then by role inbox.
func findApprover(req *domain.ApprovalRequest, approverID string) (*domain.Approver, error) {
	for i := range req.Approvers {
		if req.Approvers[i].UserID == approverID {
			return &req.Approvers[i], nil
		}
	}
	for i := range req.Approvers {
		if req.Approvers[i].Role == approverID {
			return &req.Approvers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: approver %s not on request %s", domain.ErrNotFound, approverID, req.ID)
}

func allApproved(req *domain.ApprovalRequest) bool {
	for _, a := range req.Approvers {
		if a.Status != domain.ApprovalApproved {
			return false
		}
	}
	return len(req.Approvers) > 0
}

// IsFullyApproved reports whether the claim has cleared its approval gate.
// Claims that never required approval pass trivially.
func (e *Engine) IsFullyApproved(claim *domain.Claim) bool {
	if !claim.RequiresApproval {
		return true
	}
	if len(claim.Approvers) == 0 {
		return false
	}
	for _, a := range claim.Approvers {
		if a.Status != domain.ApprovalApproved {
			return false
		}
	}
	return true
}

// ShouldEscalate reports whether the claim trips any escalation threshold,
// with the reasons it did.
func (e *Engine) ShouldEscalate(claim *domain.Claim) (bool, []string) {
	var reasons []string

	if claim.EstimatedAmount >= e.thresholds.Amount {
		reasons = append(reasons, fmt.Sprintf("amount %.2f at or above %.2f", claim.EstimatedAmount, e.thresholds.Amount))
	}
	if claim.FraudScore >= e.thresholds.FraudScore {
		reasons = append(reasons, fmt.Sprintf("fraud score %.0f at or above %.0f", claim.FraudScore, e.thresholds.FraudScore))
	}
	ageDays := int(e.now().Sub(claim.CreatedAt).Hours() / 24)
	if ageDays >= e.thresholds.AgeDays {
		reasons = append(reasons, fmt.Sprintf("claim age %d days at or above %d", ageDays, e.thresholds.AgeDays))
	}

	return len(reasons) > 0, reasons
}

// Escalate raises the claim's approval level by one (capped at 4) and adds
// the newly required roles as pending approvers.
func (e *Engine) Escalate(claim *domain.Claim, reason string) bool {
	if claim.ApprovalLevel >= 4 {
		return false
	}

	claim.ApprovalLevel++
	claim.RequiresApproval = true
	claim.SetMeta("escalationReason", reason)

	present := make(map[string]bool, len(claim.Approvers))
	for _, a := range claim.Approvers {
		present[a.Role] = true
	}
	for _, role := range rolesForLevel(claim.ApprovalLevel) {
		if present[role] {
			continue
		}
		claim.Approvers = append(claim.Approvers, domain.Approver{
			UserID: role,
			Role:   role,
			Level:  claim.ApprovalLevel,
			Status: domain.ApprovalPending,
		})
	}
	return true
}

// ExpireOldRequests sweeps pending requests past their deadline, used by the
// background worker. Returns how many it expired.
func (e *Engine) ExpireOldRequests(ctx context.Context, tenantID string) (int, error) {
	if e.repo == nil {
		return 0, nil
	}

	pending, err := e.repo.ListPendingApprovalRequests(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("list pending approval requests: %w", err)
	}

	now := e.now()
	expired := 0
	for _, req := range pending {
		if !now.After(req.ExpiresAt) {
			continue
		}
		req.Status = domain.ApprovalExpired
		req.ResolvedAt = &now
		if err := e.repo.SaveApprovalRequest(ctx, tenantID, req); err != nil {
			return expired, fmt.Errorf("expire approval request %s: %w", req.ID, err)
		}
		e.publish(ctx, tenantID, domain.TopicApprovalResolved, req)
		expired++
	}
	return expired, nil
}

func (e *Engine) publish(ctx context.Context, tenantID, topic string, req *domain.ApprovalRequest) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return
	}
	// Bus publication is best-effort; approval state is already durable.
	_ = e.bus.Publish(ctx, tenantID, topic, payload)
}
