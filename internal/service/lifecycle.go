package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opensource-insurance/heron/internal/automation"
	"github.com/opensource-insurance/heron/internal/domain"
)

// Submit moves a draft claim into the pipeline and announces it.
func (s *ClaimService) Submit(ctx context.Context, tenantID, claimID, userID string) (*domain.Claim, error) {
	claim, err := s.withClaim(ctx, tenantID, claimID, func(claim *domain.Claim) error {
		return s.transition(ctx, claim, domain.StateSubmitted, "claim submitted", "SUBMIT", userID)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, tenantID, domain.TopicClaimReceived, map[string]string{"claimId": claim.ID})

	if s.insurer != nil {
		if err := s.insurer.NotifySubmission(ctx, tenantID, claim); err != nil {
			slog.Warn("insurer submission notice failed",
				"claim_id", claim.ID,
				"error", err,
			)
		}
	}

	return claim, nil
}

// Review moves a submitted claim into manual review.
func (s *ClaimService) Review(ctx context.Context, tenantID, claimID, userID string) (*domain.Claim, error) {
	return s.withClaim(ctx, tenantID, claimID, func(claim *domain.Claim) error {
		return s.transition(ctx, claim, domain.StateUnderReview, "claim under review", "REVIEW", userID)
	})
}

// RequestDocuments parks the claim until the customer supplies the listed
// document kinds.
func (s *ClaimService) RequestDocuments(ctx context.Context, tenantID, claimID, userID string, kinds []string) (*domain.Claim, error) {
	return s.withClaim(ctx, tenantID, claimID, func(claim *domain.Claim) error {
		if err := s.transition(ctx, claim, domain.StatePendingDocuments, "documents requested", "REQUEST_DOCS", userID); err != nil {
			return err
		}
		if len(kinds) > 0 {
			claim.MissingDocuments = kinds
		} else if s.documents != nil && len(claim.MissingDocuments) == 0 {
			claim.MissingDocuments = s.documents.RequiredDocuments(claim.Type)
		}
		claim.HasRequiredDocuments = false
		return nil
	})
}

// AttachDocument validates one uploaded document and updates the claim's
// document state. An invalid document leaves the guard unmet, not an error.
func (s *ClaimService) AttachDocument(ctx context.Context, tenantID, claimID string, doc *domain.Document) (*domain.Claim, *domain.DocumentResult, error) {
	if s.documents == nil {
		return nil, nil, fmt.Errorf("no document store configured")
	}

	var result *domain.DocumentResult
	claim, err := s.withClaim(ctx, tenantID, claimID, func(claim *domain.Claim) error {
		r, err := s.documents.Validate(ctx, tenantID, claim, doc)
		if err != nil {
			return fmt.Errorf("validate document: %w", err)
		}
		result = r

		if r.Valid {
			claim.DocumentCount++
			claim.MissingDocuments = r.Missing
			claim.HasRequiredDocuments = len(r.Missing) == 0
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return claim, result, nil
}

// Investigate flags the claim for fraud investigation.
func (s *ClaimService) Investigate(ctx context.Context, tenantID, claimID, userID, reason string) (*domain.Claim, error) {
	return s.withClaim(ctx, tenantID, claimID, func(claim *domain.Claim) error {
		if reason == "" {
			reason = "claim under investigation"
		}
		return s.transition(ctx, claim, domain.StateInvestigating, reason, "INVESTIGATE", userID)
	})
}

// Approve approves the claim for payout. Amount nil means the estimated
// amount. Claims above the first approval band additionally open a
// multi-party approval request that gates payment.
func (s *ClaimService) Approve(ctx context.Context, tenantID, claimID, userID string, amount *float64) (*domain.Claim, error) {
	return s.withClaim(ctx, tenantID, claimID, func(claim *domain.Claim) error {
		if err := s.transition(ctx, claim, domain.StateApproved, "claim approved", "APPROVE", userID); err != nil {
			return err
		}

		approved := claim.EstimatedAmount
		if amount != nil {
			approved = *amount
		}
		claim.ApprovedAmount = &approved

		if s.approvals == nil {
			return nil
		}

		level, _, _ := s.approvals.RequiredApproval(claim)
		if level <= 1 {
			claim.RequiresApproval = false
			return nil
		}

		req, err := s.approvals.RequestApproval(ctx, claim, userID)
		if err != nil {
			return fmt.Errorf("open approval request: %w", err)
		}
		slog.Info("approval request opened",
			"claim_id", claim.ID,
			"request_id", req.ID,
			"level", req.Level,
		)
		return nil
	})
}

// Reject rejects the claim.
func (s *ClaimService) Reject(ctx context.Context, tenantID, claimID, userID, reason string) (*domain.Claim, error) {
	return s.withClaim(ctx, tenantID, claimID, func(claim *domain.Claim) error {
		if reason == "" {
			reason = "claim rejected"
		}
		return s.transition(ctx, claim, domain.StateRejected, reason, "REJECT", userID)
	})
}

// Close closes the claim.
func (s *ClaimService) Close(ctx context.Context, tenantID, claimID, userID, reason string) (*domain.Claim, error) {
	return s.withClaim(ctx, tenantID, claimID, func(claim *domain.Claim) error {
		if reason == "" {
			reason = "claim closed"
		}
		return s.transition(ctx, claim, domain.StateClosed, reason, "CLOSE", userID)
	})
}

// Reopen moves a closed claim back into review.
func (s *ClaimService) Reopen(ctx context.Context, tenantID, claimID, userID, reason string) (*domain.Claim, error) {
	return s.withClaim(ctx, tenantID, claimID, func(claim *domain.Claim) error {
		if reason == "" {
			reason = "claim reopened"
		}
		return s.transition(ctx, claim, domain.StateUnderReview, reason, "REOPEN", userID)
	})
}

// ProcessPayment settles an approved claim. The payment-pending transition
// enforces the approval gate; a gateway failure leaves the claim parked in
// PAYMENT_PENDING for retry.
func (s *ClaimService) ProcessPayment(ctx context.Context, tenantID, claimID, userID, method string) (*domain.Claim, error) {
	if s.payments == nil {
		return nil, fmt.Errorf("no payment gateway configured")
	}

	unlock := s.locks.lock(claimID)
	defer unlock()

	claim, err := s.repo.GetClaim(ctx, tenantID, claimID)
	if err != nil {
		return nil, err
	}
	if claim.ApprovedAmount == nil {
		return nil, fmt.Errorf("%w: no approved amount", domain.ErrGuardFailed)
	}

	if claim.State != domain.StatePaymentPending {
		if err := s.transition(ctx, claim, domain.StatePaymentPending, "payment initiated", "PAY_INIT", userID); err != nil {
			return nil, err
		}
	}
	claim.UpdatedAt = s.now()
	if err := s.repo.SaveClaim(ctx, tenantID, claim); err != nil {
		return nil, fmt.Errorf("save claim: %w", err)
	}

	result, payErr := s.payments.Process(ctx, tenantID, &domain.PaymentRequest{
		ClaimID:  claim.ID,
		Amount:   *claim.ApprovedAmount,
		Currency: claim.Currency,
		Method:   method,
	})
	if payErr != nil || !result.Succeeded {
		claim.SetMeta("lastPaymentError", fmt.Sprintf("%v", payErr))
		claim.UpdatedAt = s.now()
		_ = s.repo.SaveClaim(ctx, tenantID, claim)
		if payErr == nil {
			payErr = fmt.Errorf("payment declined")
		}
		return nil, fmt.Errorf("process payment: %w", payErr)
	}

	claim.PaidAmount = claim.ApprovedAmount
	claim.SetMeta("paymentTransactionId", result.TransactionID)
	if err := s.transition(ctx, claim, domain.StatePaid, "payment settled", "PAY_SETTLED", userID); err != nil {
		return nil, err
	}

	claim.UpdatedAt = s.now()
	if err := s.repo.SaveClaim(ctx, tenantID, claim); err != nil {
		return nil, fmt.Errorf("save claim: %w", err)
	}
	s.cacheSummary(ctx, claim)

	return claim, nil
}

// Escalate raises the claim's handling priority and approval level.
func (s *ClaimService) Escalate(ctx context.Context, tenantID, claimID, reason string) (*domain.Claim, error) {
	return s.withClaim(ctx, tenantID, claimID, func(claim *domain.Claim) error {
		claim.Priority = domain.PriorityUrgent
		claim.SetMeta("escalated", true)
		if reason != "" {
			claim.SetMeta("escalationReason", reason)
		}
		raised := false
		if s.approvals != nil {
			raised = s.approvals.Escalate(claim, reason)
			if !raised {
				claim.SetMeta("approvalLevelCapped", true)
			}
		}
		slog.Info("claim escalated",
			"claim_id", claim.ID,
			"tenant_id", tenantID,
			"approval_level", claim.ApprovalLevel,
			"level_raised", raised,
			"reason", reason,
		)
		return nil
	})
}

// AssignAdjuster assigns a claim handler, defaulting to the per-type pool.
func (s *ClaimService) AssignAdjuster(ctx context.Context, tenantID, claimID, adjusterID string) (*domain.Claim, error) {
	return s.withClaim(ctx, tenantID, claimID, func(claim *domain.Claim) error {
		if adjusterID == "" {
			adjusterID = automation.AdjusterFor(claim.Type)
		}
		claim.AdjusterID = adjusterID
		return nil
	})
}

// ApproveRequest records one approver's sign-off and syncs the claim's
// approver snapshot.
func (s *ClaimService) ApproveRequest(ctx context.Context, tenantID, requestID, approverID, notes string) (*domain.ApprovalRequest, error) {
	if s.approvals == nil {
		return nil, fmt.Errorf("no approval engine configured")
	}

	req, err := s.approvals.Approve(ctx, tenantID, requestID, approverID, notes)
	if err != nil {
		return nil, err
	}

	if _, err := s.withClaim(ctx, tenantID, req.ClaimID, func(claim *domain.Claim) error {
		claim.Approvers = req.Approvers
		return nil
	}); err != nil {
		return nil, err
	}

	return req, nil
}

// RejectRequest records a veto. The whole request rejects and the claim
// follows it.
func (s *ClaimService) RejectRequest(ctx context.Context, tenantID, requestID, approverID, reason string) (*domain.ApprovalRequest, error) {
	if s.approvals == nil {
		return nil, fmt.Errorf("no approval engine configured")
	}

	req, err := s.approvals.Reject(ctx, tenantID, requestID, approverID, reason)
	if err != nil {
		return nil, err
	}

	if _, err := s.withClaim(ctx, tenantID, req.ClaimID, func(claim *domain.Claim) error {
		claim.Approvers = req.Approvers
		if reason == "" {
			reason = "approval vetoed"
		}
		return s.transition(ctx, claim, domain.StateRejected, reason, "APPROVAL_VETO", approverID)
	}); err != nil {
		return nil, err
	}

	return req, nil
}
