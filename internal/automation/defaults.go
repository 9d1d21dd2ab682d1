package automation

import "github.com/opensource-insurance/heron/internal/domain"

// DefaultRules returns the standard rule set installed by the seed command.
// Rules live in the database and are hot-reloadable; this set is a starting
// point, not baked-in engine behavior.
func DefaultRules(tenantID string) []*domain.AutomationRule {
	return []*domain.AutomationRule{
		{
			ID:          "auto-reject-high-fraud",
			TenantID:    tenantID,
			Name:        "Auto-reject high fraud risk",
			Description: "Rejects claims whose fraud score reaches the critical tier.",
			Version:     "1.0.0",
			Priority:    5,
			Conditions: []domain.Condition{
				{Field: domain.FieldFraudScore, Op: domain.OpGte, Value: 80.0},
			},
			Actions: []domain.Action{
				{Kind: domain.ActionReject, Params: map[string]string{"reason": "fraud score in critical tier"}},
				{Kind: domain.ActionNotify, Params: map[string]string{"channel": "email", "template": "claim-rejected"}},
			},
			Enabled: true,
		},
		{
			ID:          "auto-approve-low-value",
			TenantID:    tenantID,
			Name:        "Auto-approve low value claims",
			Description: "Approves small, documented, low-risk claims without manual review.",
			Version:     "1.0.0",
			Priority:    10,
			Conditions: []domain.Condition{
				{Field: domain.FieldEstimatedAmount, Op: domain.OpLt, Value: 500.0},
				{Field: domain.FieldHasDocuments, Op: domain.OpEq, Value: true},
				{Field: domain.FieldFraudScore, Op: domain.OpLt, Value: 30.0},
				{Field: domain.FieldState, Op: domain.OpEq, Value: string(domain.StateUnderReview)},
			},
			Actions: []domain.Action{
				{Kind: domain.ActionApprove},
				{Kind: domain.ActionNotify, Params: map[string]string{"channel": "email", "template": "claim-approved"}},
			},
			Enabled: true,
		},
		{
			ID:          "auto-escalate-high-value",
			TenantID:    tenantID,
			Name:        "Escalate high value claims",
			Description: "Marks large claims urgent and assigns an adjuster.",
			Version:     "1.0.0",
			Priority:    15,
			Conditions: []domain.Condition{
				{Field: domain.FieldEstimatedAmount, Op: domain.OpGte, Value: 10_000.0},
			},
			Actions: []domain.Action{
				{Kind: domain.ActionEscalate},
				{Kind: domain.ActionAssign},
			},
			Enabled: true,
		},
		{
			ID:          "auto-close-no-documents",
			TenantID:    tenantID,
			Name:        "Close stale undocumented claims",
			Description: "Closes claims stuck waiting for documents past the grace window.",
			Version:     "1.0.0",
			Priority:    20,
			Conditions: []domain.Condition{
				{Field: domain.FieldState, Op: domain.OpEq, Value: string(domain.StatePendingDocuments)},
				{Field: domain.FieldHasDocuments, Op: domain.OpEq, Value: false},
				{Field: domain.FieldDaysSinceIncident, Op: domain.OpGt, Value: 30.0},
			},
			Actions: []domain.Action{
				{Kind: domain.ActionClose, Params: map[string]string{"reason": "required documents never provided"}},
				{Kind: domain.ActionNotify, Params: map[string]string{"channel": "email", "template": "claim-closed"}},
			},
			Enabled: true,
		},
		{
			ID:          "flag-quick-claim",
			TenantID:    tenantID,
			Name:        "Flag quickly reported claims",
			Description: "Flags sizeable claims reported within two days of the incident.",
			Version:     "1.0.0",
			Priority:    25,
			Expression:  "days_since_incident < 2.0 && estimated_amount > 1000.0",
			Actions: []domain.Action{
				{Kind: domain.ActionFlag, Params: map[string]string{"flag": "QUICK_CLAIM"}},
			},
			Enabled: true,
		},
	}
}
