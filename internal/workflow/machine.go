// Package workflow implements the claim lifecycle state machine.
// It owns the legal-transition matrix and is the only component permitted
// to mutate a claim's state.
package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-insurance/heron/internal/domain"
)

// transitions is the legal edge set, directional. Every ordered pair not
// listed here is illegal.
var transitions = map[domain.ClaimState][]domain.ClaimState{
	domain.StateDraft:     {domain.StateSubmitted},
	domain.StateSubmitted: {domain.StateUnderReview, domain.StateRejected, domain.StateDraft},
	domain.StateUnderReview: {
		domain.StatePendingDocuments, domain.StateInvestigating,
		domain.StateApproved, domain.StateRejected,
	},
	domain.StatePendingDocuments: {domain.StateUnderReview, domain.StateRejected, domain.StateClosed},
	domain.StateInvestigating:    {domain.StatePendingDocuments, domain.StateApproved, domain.StateRejected},
	domain.StateApproved:         {domain.StateRejected, domain.StatePaymentPending},
	domain.StateRejected:         {domain.StateUnderReview, domain.StateClosed},
	domain.StatePaymentPending:   {domain.StateRejected, domain.StatePaid},
	domain.StatePaid:             {domain.StateClosed},
	// Reopen edge: closed claims can go back under review.
	domain.StateClosed: {domain.StateUnderReview},
}

// Machine enforces the lifecycle graph and records every transition.
// The clock is injectable so boundary conditions are testable.
type Machine struct {
	now func() time.Time
}

// NewMachine creates a state machine using the wall clock.
func NewMachine() *Machine {
	return &Machine{now: func() time.Time { return time.Now().UTC() }}
}

// NewMachineWithClock creates a state machine with a custom clock.
func NewMachineWithClock(now func() time.Time) *Machine {
	return &Machine{now: now}
}

// CanTransition is a pure membership check against the transition matrix.
func (m *Machine) CanTransition(from, to domain.ClaimState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionClaim checks the matrix plus data-dependent guards for the
// claim's current state. Returns ErrInvalidTransition for an illegal edge
// and ErrGuardFailed when the edge is legal but a guard is unmet.
func (m *Machine) CanTransitionClaim(claim *domain.Claim, to domain.ClaimState) error {
	if !m.CanTransition(claim.State, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, claim.State, to)
	}

	switch to {
	case domain.StateApproved:
		if !claim.HasRequiredDocuments {
			return fmt.Errorf("%w: required documents missing", domain.ErrGuardFailed)
		}
		if claim.FraudRiskLevel == domain.RiskCritical {
			return fmt.Errorf("%w: fraud risk is critical", domain.ErrGuardFailed)
		}
	case domain.StatePaymentPending:
		if claim.RequiresApproval && !allApproved(claim.Approvers) {
			return fmt.Errorf("%w: approval incomplete", domain.ErrGuardFailed)
		}
	case domain.StatePaid:
		if claim.ApprovedAmount == nil {
			return fmt.Errorf("%w: no approved amount", domain.ErrGuardFailed)
		}
	}

	return nil
}

func allApproved(approvers []domain.Approver) bool {
	if len(approvers) == 0 {
		return false
	}
	for _, a := range approvers {
		if a.Status != domain.ApprovalApproved {
			return false
		}
	}
	return true
}

// Transition moves the claim to the target state. It fails with
// ErrInvalidTransition when the matrix check fails, leaving state and
// history untouched. On success it appends exactly one history entry,
// stamps LastStateChange and the state-specific date field, and sets the
// new state. This is the only mutation path for claim state.
func (m *Machine) Transition(claim *domain.Claim, to domain.ClaimState, reason, reasonCode, userID string) (*domain.HistoryEntry, error) {
	if !m.CanTransition(claim.State, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, claim.State, to)
	}

	now := m.now()
	entry := domain.HistoryEntry{
		ID:         uuid.New().String(),
		ClaimID:    claim.ID,
		FromState:  claim.State,
		ToState:    to,
		Timestamp:  now,
		UserID:     userID,
		Reason:     reason,
		ReasonCode: reasonCode,
	}

	claim.History = append(claim.History, entry)
	claim.State = to
	claim.LastStateChange = now
	claim.UpdatedAt = now
	m.stampDate(claim, to, now)

	return &entry, nil
}

// stampDate records the date field tied to the entered state.
func (m *Machine) stampDate(claim *domain.Claim, to domain.ClaimState, now time.Time) {
	switch to {
	case domain.StateSubmitted:
		claim.SubmittedAt = &now
	case domain.StateApproved:
		claim.ApprovedAt = &now
	case domain.StateRejected:
		claim.RejectedAt = &now
	case domain.StatePaid:
		claim.PaidAt = &now
	case domain.StateClosed:
		claim.ClosedAt = &now
	}
}

// IsStuck reports whether the claim has sat in its current state strictly
// longer than thresholdDays. Exactly at the threshold is not stuck.
func (m *Machine) IsStuck(claim *domain.Claim, thresholdDays int) bool {
	threshold := time.Duration(thresholdDays) * 24 * time.Hour
	return m.now().Sub(claim.LastStateChange) > threshold
}

// TimeInState returns how long the claim occupied the given state: the span
// between the history entries bracketing the occupancy, or time since entry
// if the state is still current. Zero if the claim never entered the state.
func (m *Machine) TimeInState(claim *domain.Claim, state domain.ClaimState) time.Duration {
	var total time.Duration
	for i, entry := range claim.History {
		if entry.ToState != state {
			continue
		}
		if i+1 < len(claim.History) {
			total += claim.History[i+1].Timestamp.Sub(entry.Timestamp)
		} else if claim.State == state {
			total += m.now().Sub(entry.Timestamp)
		}
	}
	return total
}

// LegalTargets returns the states reachable from the given state.
func (m *Machine) LegalTargets(from domain.ClaimState) []domain.ClaimState {
	targets := transitions[from]
	out := make([]domain.ClaimState, len(targets))
	copy(out, targets)
	return out
}
