// Package approval implements the layered approval-authorization engine:
// amount-banded approval levels, per-approver request lifecycles, and
// escalation.
package approval

import "github.com/opensource-insurance/heron/internal/domain"

// Band maps an amount range (and optionally a claim type) to the approval
// level and roles it requires. MaxAmount of 0 means unbounded.
type Band struct {
	MinAmount     float64
	MaxAmount     float64
	ClaimType     *domain.ClaimType
	Level         int
	RequiredRoles []string
	RequiresAll   bool
}

func (b Band) matchesAmount(amount float64) bool {
	if amount < b.MinAmount {
		return false
	}
	return b.MaxAmount == 0 || amount < b.MaxAmount
}

// EscalationThresholds trigger shouldEscalate independently of the bands.
type EscalationThresholds struct {
	Amount     float64
	FraudScore float64
	AgeDays    int
}

// DefaultThresholds returns the standard escalation triggers.
func DefaultThresholds() EscalationThresholds {
	return EscalationThresholds{
		Amount:     10_000,
		FraudScore: 75,
		AgeDays:    7,
	}
}

func claimType(t domain.ClaimType) *domain.ClaimType { return &t }

// DefaultBands returns the standard approval table. Typed bands are
// consulted before type-agnostic ones.
func DefaultBands() []Band {
	return []Band{
		// Health claims from 2,000 need a domain specialist sign-off.
		{
			MinAmount: 2_000, ClaimType: claimType(domain.TypeHealth),
			Level:         2,
			RequiredRoles: []string{domain.RoleSpecialist, domain.RoleSupervisor},
			RequiresAll:   true,
		},
		{
			MaxAmount:     1_000,
			Level:         1,
			RequiredRoles: []string{domain.RoleAdjuster},
		},
		{
			MinAmount: 1_000, MaxAmount: 5_000,
			Level:         2,
			RequiredRoles: []string{domain.RoleAdjuster, domain.RoleSupervisor},
			RequiresAll:   true,
		},
		{
			MinAmount: 5_000, MaxAmount: 20_000,
			Level:         3,
			RequiredRoles: []string{domain.RoleAdjuster, domain.RoleSupervisor, domain.RoleManager},
			RequiresAll:   true,
		},
		{
			MinAmount:     20_000,
			Level:         4,
			RequiredRoles: []string{domain.RoleAdjuster, domain.RoleSupervisor, domain.RoleManager, domain.RoleDirector},
			RequiresAll:   true,
		},
	}
}

// rolesForLevel returns the cumulative role set a given level requires,
// used when escalation raises a claim's approval level.
func rolesForLevel(level int) []string {
	roles := []string{domain.RoleAdjuster}
	if level >= 2 {
		roles = append(roles, domain.RoleSupervisor)
	}
	if level >= 3 {
		roles = append(roles, domain.RoleManager)
	}
	if level >= 4 {
		roles = append(roles, domain.RoleDirector)
	}
	return roles
}
