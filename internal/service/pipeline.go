package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/fraud"
)

// slaTargets maps claim types to their resolution targets in days.
var slaTargets = map[domain.ClaimType]int{
	domain.TypeHealth:       7,
	domain.TypeAutoAccident: 10,
	domain.TypeFire:         20,
}

// defaultSLADays applies to claim types without a specific target.
const defaultSLADays = 14

// SLATarget returns the resolution target in days for a claim type.
func SLATarget(claimType domain.ClaimType) int {
	if days, ok := slaTargets[claimType]; ok {
		return days
	}
	return defaultSLADays
}

// DetectFraud scores the claim and stores the result.
func (s *ClaimService) DetectFraud(ctx context.Context, tenantID, claimID string) (*domain.FraudAnalysis, error) {
	unlock := s.locks.lock(claimID)
	defer unlock()

	claim, err := s.repo.GetClaim(ctx, tenantID, claimID)
	if err != nil {
		return nil, err
	}

	analysis, err := s.scoreClaim(ctx, claim)
	if err != nil {
		return nil, err
	}

	claim.UpdatedAt = s.now()
	if err := s.repo.SaveClaim(ctx, tenantID, claim); err != nil {
		return nil, fmt.Errorf("save claim: %w", err)
	}
	s.cacheSummary(ctx, claim)
	s.publish(ctx, tenantID, domain.TopicClaimFraud, analysis)

	return analysis, nil
}

// scoreClaim runs the fraud scorer against a loaded claim. Caller holds the
// claim lock.
func (s *ClaimService) scoreClaim(ctx context.Context, claim *domain.Claim) (*domain.FraudAnalysis, error) {
	var peerClaims int64
	if s.stats != nil {
		count, err := s.stats.CountPeerClaims(ctx, claim.TenantID, claim.CustomerID, claim.ID, peerClaimWindowDays)
		if err != nil {
			// Scoring proceeds without the frequency indicator rather
			// than blocking the pipeline.
			slog.Warn("peer claim count unavailable",
				"claim_id", claim.ID,
				"error", err,
			)
		} else {
			peerClaims = count
		}
	}

	analysis := s.scorer.Score(claim, peerClaims)
	fraud.Apply(claim, analysis)

	slog.Info("claim scored",
		"claim_id", claim.ID,
		"tenant_id", claim.TenantID,
		"score", analysis.Score,
		"risk_level", analysis.RiskLevel,
		"recommendation", analysis.Recommendation,
	)
	return analysis, nil
}

// AutoProcess runs the full pipeline over one claim: fraud scoring followed
// by the automation rules. Transitions performed by rules are audited like
// manual ones.
func (s *ClaimService) AutoProcess(ctx context.Context, tenantID, claimID string) (*domain.AutomationResult, error) {
	if s.automation == nil {
		return nil, fmt.Errorf("no automation engine configured")
	}

	unlock := s.locks.lock(claimID)
	defer unlock()

	claim, err := s.repo.GetClaim(ctx, tenantID, claimID)
	if err != nil {
		return nil, err
	}

	analysis, err := s.scoreClaim(ctx, claim)
	if err != nil {
		return nil, err
	}

	historyBefore := len(claim.History)
	result := s.automation.Process(ctx, claim)

	// Persist audit entries for rule-driven transitions.
	for i := historyBefore; i < len(claim.History); i++ {
		entry := claim.History[i]
		if err := s.repo.AppendHistory(ctx, tenantID, &entry); err != nil {
			return nil, fmt.Errorf("append history: %w", err)
		}
		s.publishTransition(ctx, claim, entry.FromState, entry.ToState)
	}

	claim.UpdatedAt = s.now()
	if err := s.repo.SaveClaim(ctx, tenantID, claim); err != nil {
		return nil, fmt.Errorf("save claim: %w", err)
	}
	s.cacheSummary(ctx, claim)

	s.publish(ctx, tenantID, domain.TopicClaimFraud, analysis)

	slog.Info("claim auto-processed",
		"claim_id", claimID,
		"tenant_id", tenantID,
		"rules_applied", len(result.RulesApplied),
		"actions", len(result.ActionsExecuted),
		"success", result.Success,
	)
	return result, nil
}

// CheckSLA reports how the claim stands against its resolution target.
// Terminal claims measure against their resolution timestamp.
func (s *ClaimService) CheckSLA(ctx context.Context, tenantID, claimID string) (*domain.SLAResult, error) {
	claim, err := s.repo.GetClaim(ctx, tenantID, claimID)
	if err != nil {
		return nil, err
	}

	start := claim.CreatedAt
	if claim.SubmittedAt != nil {
		start = *claim.SubmittedAt
	}

	end := s.now()
	switch {
	case claim.ClosedAt != nil:
		end = *claim.ClosedAt
	case claim.PaidAt != nil:
		end = *claim.PaidAt
	case claim.RejectedAt != nil:
		end = *claim.RejectedAt
	}

	target := SLATarget(claim.Type)
	elapsed := end.Sub(start).Hours() / 24

	return &domain.SLAResult{
		ClaimID:       claim.ID,
		TargetDays:    target,
		ElapsedDays:   elapsed,
		DaysRemaining: float64(target) - elapsed,
		Breached:      elapsed > float64(target),
	}, nil
}

// openStates are the states the stuck-claim sweep inspects.
var openStates = []domain.ClaimState{
	domain.StateSubmitted,
	domain.StateUnderReview,
	domain.StatePendingDocuments,
	domain.StateInvestigating,
	domain.StateApproved,
	domain.StatePaymentPending,
}

// SweepStuckClaims escalates claims that have sat in one state past the
// threshold. Returns how many it escalated.
func (s *ClaimService) SweepStuckClaims(ctx context.Context, tenantID string, thresholdDays int) (int, error) {
	escalated := 0
	for _, state := range openStates {
		claims, err := s.repo.ListClaimsByState(ctx, tenantID, state)
		if err != nil {
			return escalated, fmt.Errorf("list claims in %s: %w", state, err)
		}

		for _, claim := range claims {
			if !s.machine.IsStuck(claim, thresholdDays) {
				continue
			}
			if stuck, _ := claim.Metadata["stuck"].(bool); stuck {
				continue
			}

			if _, err := s.withClaim(ctx, tenantID, claim.ID, func(c *domain.Claim) error {
				c.Priority = domain.PriorityUrgent
				c.SetMeta("stuck", true)
				c.SetMeta("stuckInState", string(c.State))
				return nil
			}); err != nil {
				slog.Error("failed to escalate stuck claim",
					"claim_id", claim.ID,
					"error", err,
				)
				continue
			}
			escalated++

			slog.Warn("stuck claim escalated",
				"claim_id", claim.ID,
				"tenant_id", tenantID,
				"state", claim.State,
				"threshold_days", thresholdDays,
			)
		}
	}
	return escalated, nil
}

// CustomerExposure reports the total estimated amount of a customer's open
// claims over the peer-claim window.
func (s *ClaimService) CustomerExposure(ctx context.Context, tenantID, customerID string) (float64, error) {
	if s.stats == nil {
		return 0, fmt.Errorf("no statistics service configured")
	}
	return s.stats.CustomerExposure(ctx, tenantID, customerID, peerClaimWindowDays)
}

// ExpireApprovals sweeps approval requests past their deadline.
func (s *ClaimService) ExpireApprovals(ctx context.Context, tenantID string) (int, error) {
	if s.approvals == nil {
		return 0, nil
	}
	return s.approvals.ExpireOldRequests(ctx, tenantID)
}
