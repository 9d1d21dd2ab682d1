// Package service orchestrates the claim engines: workflow transitions,
// fraud scoring, automation, approvals, and gateway side effects. All claim
// mutations go through here, serialized per claim.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-insurance/heron/internal/approval"
	"github.com/opensource-insurance/heron/internal/automation"
	"github.com/opensource-insurance/heron/internal/claimstats"
	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/fraud"
	"github.com/opensource-insurance/heron/internal/workflow"
)

// peerClaimWindowDays is the lookback for the frequent-claimant indicator.
const peerClaimWindowDays = 365

// summaryTTL bounds how long cached claim summaries may go stale.
const summaryTTL = 10 * time.Minute

// ClaimService is the single entry point for claim mutations.
type ClaimService struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	machine    *workflow.Machine
	scorer     *fraud.Scorer
	automation *automation.Engine
	approvals  *approval.Engine
	stats      *claimstats.Service
	documents  domain.DocumentStore
	payments   domain.PaymentGateway
	insurer    domain.InsurerGateway

	locks *keyedMutex
	now   func() time.Time
}

// Deps bundles the service's collaborators.
type Deps struct {
	Repo       domain.Repository
	Cache      domain.Cache
	Bus        domain.EventBus
	Machine    *workflow.Machine
	Scorer     *fraud.Scorer
	Automation *automation.Engine
	Approvals  *approval.Engine
	Stats      *claimstats.Service
	Documents  domain.DocumentStore
	Payments   domain.PaymentGateway
	Insurer    domain.InsurerGateway
}

// New creates the claim service.
func New(deps Deps) *ClaimService {
	machine := deps.Machine
	if machine == nil {
		machine = workflow.NewMachine()
	}
	scorer := deps.Scorer
	if scorer == nil {
		scorer = fraud.NewScorer()
	}
	return &ClaimService{
		repo:       deps.Repo,
		cache:      deps.Cache,
		bus:        deps.Bus,
		machine:    machine,
		scorer:     scorer,
		automation: deps.Automation,
		approvals:  deps.Approvals,
		stats:      deps.Stats,
		documents:  deps.Documents,
		payments:   deps.Payments,
		insurer:    deps.Insurer,
		locks:      newKeyedMutex(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source for tests.
func (s *ClaimService) SetClock(now func() time.Time) {
	s.now = now
}

// Create registers a new claim in DRAFT.
func (s *ClaimService) Create(ctx context.Context, tenantID string, req *domain.ClaimRequest) (*domain.Claim, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	if req.CustomerID == "" || req.PolicyID == "" {
		return nil, fmt.Errorf("customerId and policyId are required")
	}
	if req.EstimatedAmount < 0 || req.ClaimedAmount < 0 {
		return nil, fmt.Errorf("claim amounts must be non-negative")
	}
	if req.Type == "" {
		req.Type = domain.TypeOther
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	now := s.now()
	claim := &domain.Claim{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		ClaimNumber:     s.nextClaimNumber(ctx, tenantID),
		CustomerID:      req.CustomerID,
		PolicyID:        req.PolicyID,
		PolicyStart:     req.PolicyStart,
		Type:            req.Type,
		Priority:        domain.PriorityNormal,
		State:           domain.StateDraft,
		EstimatedAmount: req.EstimatedAmount,
		ClaimedAmount:   req.ClaimedAmount,
		Currency:        req.Currency,
		IncidentDate:    req.IncidentDate,
		ReportedDate:    now,
		LastStateChange: now,
		Metadata:        req.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Description != "" {
		claim.SetMeta("description", req.Description)
	}

	if s.documents != nil {
		claim.MissingDocuments = s.documents.RequiredDocuments(claim.Type)
	}

	if err := s.repo.SaveClaim(ctx, tenantID, claim); err != nil {
		return nil, fmt.Errorf("save claim: %w", err)
	}
	s.cacheSummary(ctx, claim)

	slog.Info("claim created",
		"claim_id", claim.ID,
		"claim_number", claim.ClaimNumber,
		"tenant_id", tenantID,
		"type", claim.Type,
		"estimated_amount", claim.EstimatedAmount,
	)

	return claim, nil
}

// Get retrieves a claim.
func (s *ClaimService) Get(ctx context.Context, tenantID, claimID string) (*domain.Claim, error) {
	return s.repo.GetClaim(ctx, tenantID, claimID)
}

// History retrieves a claim's transition log.
func (s *ClaimService) History(ctx context.Context, tenantID, claimID string) ([]*domain.HistoryEntry, error) {
	return s.repo.ListHistory(ctx, tenantID, claimID)
}

// ListByState retrieves all claims in a state.
func (s *ClaimService) ListByState(ctx context.Context, tenantID string, state domain.ClaimState) ([]*domain.Claim, error) {
	return s.repo.ListClaimsByState(ctx, tenantID, state)
}

// LegalTargets returns the states a claim may move to from its current
// state, matrix-only.
func (s *ClaimService) LegalTargets(ctx context.Context, tenantID, claimID string) ([]domain.ClaimState, error) {
	claim, err := s.repo.GetClaim(ctx, tenantID, claimID)
	if err != nil {
		return nil, err
	}
	return s.machine.LegalTargets(claim.State), nil
}

// withClaim runs fn against a freshly loaded claim while holding the claim's
// lock, then persists the result.
func (s *ClaimService) withClaim(ctx context.Context, tenantID, claimID string, fn func(claim *domain.Claim) error) (*domain.Claim, error) {
	unlock := s.locks.lock(claimID)
	defer unlock()

	claim, err := s.repo.GetClaim(ctx, tenantID, claimID)
	if err != nil {
		return nil, err
	}

	if err := fn(claim); err != nil {
		return nil, err
	}

	claim.UpdatedAt = s.now()
	if err := s.repo.SaveClaim(ctx, tenantID, claim); err != nil {
		return nil, fmt.Errorf("save claim: %w", err)
	}
	s.cacheSummary(ctx, claim)

	return claim, nil
}

// transition runs a guarded state change and records the audit entry.
func (s *ClaimService) transition(ctx context.Context, claim *domain.Claim, to domain.ClaimState, reason, reasonCode, userID string) error {
	if err := s.machine.CanTransitionClaim(claim, to); err != nil {
		return err
	}

	from := claim.State
	entry, err := s.machine.Transition(claim, to, reason, reasonCode, userID)
	if err != nil {
		return err
	}

	if err := s.repo.AppendHistory(ctx, claim.TenantID, entry); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	s.publishTransition(ctx, claim, from, to)

	if s.insurer != nil {
		if err := s.insurer.PushStatus(ctx, claim.TenantID, claim); err != nil {
			slog.Warn("insurer status push failed",
				"claim_id", claim.ID,
				"state", to,
				"error", err,
			)
		}
	}

	slog.Info("claim transitioned",
		"claim_id", claim.ID,
		"tenant_id", claim.TenantID,
		"from", from,
		"to", to,
		"reason_code", reasonCode,
	)
	return nil
}

type transitionEvent struct {
	ClaimID   string            `json:"claimId"`
	FromState domain.ClaimState `json:"fromState"`
	ToState   domain.ClaimState `json:"toState"`
}

func (s *ClaimService) publishTransition(ctx context.Context, claim *domain.Claim, from, to domain.ClaimState) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(transitionEvent{ClaimID: claim.ID, FromState: from, ToState: to})
	if err := s.bus.Publish(ctx, claim.TenantID, domain.TopicClaimTransitioned, payload); err != nil {
		slog.Warn("failed to publish transition event",
			"claim_id", claim.ID,
			"error", err,
		)
	}
}

func (s *ClaimService) publish(ctx context.Context, tenantID, topic string, v any) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, tenantID, topic, payload); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func (s *ClaimService) cacheSummary(ctx context.Context, claim *domain.Claim) {
	if s.cache == nil {
		return
	}
	summary := &domain.ClaimSummary{
		CustomerID: claim.CustomerID,
		PolicyID:   claim.PolicyID,
		Type:       claim.Type,
		State:      claim.State,
		Amount:     claim.EstimatedAmount,
		Currency:   claim.Currency,
		FraudScore: claim.FraudScore,
	}
	_ = s.cache.SetClaimSummary(ctx, claim.TenantID, claim.ID, summary, summaryTTL)
}

// nextClaimNumber issues a per-tenant sequential claim number, falling back
// to a random suffix when no counter backend is available.
func (s *ClaimService) nextClaimNumber(ctx context.Context, tenantID string) string {
	year := s.now().Year()
	if s.cache != nil {
		key := fmt.Sprintf("claimseq:%d", year)
		if seq, err := s.cache.IncrementCounter(ctx, tenantID, key, 366*24*time.Hour); err == nil {
			return fmt.Sprintf("CLM-%d-%06d", year, seq)
		}
	}
	return fmt.Sprintf("CLM-%d-%s", year, strings.ToUpper(uuid.New().String()[:8]))
}
