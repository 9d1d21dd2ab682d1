package automation

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/workflow"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(workflow.NewMachine(), nil)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func reviewClaim() *domain.Claim {
	now := time.Now().UTC()
	return &domain.Claim{
		ID:                   "claim-001",
		TenantID:             "tenant-001",
		Type:                 domain.TypeAutoAccident,
		Priority:             domain.PriorityNormal,
		State:                domain.StateUnderReview,
		EstimatedAmount:      400,
		ClaimedAmount:        400,
		HasRequiredDocuments: true,
		FraudScore:           20,
		FraudRiskLevel:       domain.RiskLow,
		IncidentDate:         now.AddDate(0, 0, -10),
		ReportedDate:         now.AddDate(0, 0, -9),
		LastStateChange:      now,
	}
}

func TestEngineCreation(t *testing.T) {
	engine := newEngine(t)
	if engine.RuleCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RuleCount())
	}
}

func TestLoadDefaultRules(t *testing.T) {
	engine := newEngine(t)

	if err := engine.LoadRules(DefaultRules("tenant-001")); err != nil {
		t.Fatalf("failed to load default rules: %v", err)
	}
	if engine.RuleCount() != 5 {
		t.Errorf("expected 5 rules, got %d", engine.RuleCount())
	}

	loaded := engine.LoadedRules()
	for i := 1; i < len(loaded); i++ {
		if loaded[i-1].Priority > loaded[i].Priority {
			t.Fatal("loaded rules not sorted by priority")
		}
	}
}

func TestLoadInvalidRules(t *testing.T) {
	engine := newEngine(t)

	t.Run("BadExpression", func(t *testing.T) {
		err := engine.LoadRule(&domain.AutomationRule{
			ID:         "bad-cel",
			Expression: "this is not CEL !!!",
			Enabled:    true,
		})
		if err == nil {
			t.Error("expected error for invalid CEL expression")
		}
	})

	t.Run("NonBoolExpression", func(t *testing.T) {
		err := engine.LoadRule(&domain.AutomationRule{
			ID:         "non-bool",
			Expression: "estimated_amount + 1.0",
			Enabled:    true,
		})
		if err == nil {
			t.Error("expected error for non-bool expression")
		}
	})

	t.Run("UnknownField", func(t *testing.T) {
		err := engine.ValidateRule(&domain.AutomationRule{
			ID: "bad-field",
			Conditions: []domain.Condition{
				{Field: "nope", Op: domain.OpEq, Value: 1.0},
			},
		})
		if err == nil {
			t.Error("expected error for unknown condition field")
		}
	})

	t.Run("UnknownOperator", func(t *testing.T) {
		err := engine.ValidateRule(&domain.AutomationRule{
			ID: "bad-op",
			Conditions: []domain.Condition{
				{Field: domain.FieldFraudScore, Op: "between", Value: 1.0},
			},
		})
		if err == nil {
			t.Error("expected error for unknown operator")
		}
	})
}

func TestLowValueAutoApprove(t *testing.T) {
	engine := newEngine(t)
	if err := engine.LoadRules(DefaultRules("tenant-001")); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	claim := reviewClaim()
	result := engine.Process(context.Background(), claim)

	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if claim.State != domain.StateApproved {
		t.Errorf("expected APPROVED, got %s", claim.State)
	}
	if !contains(result.RulesApplied, "auto-approve-low-value") {
		t.Errorf("expected low-value rule to fire, applied: %v", result.RulesApplied)
	}
	if len(claim.History) != 1 {
		t.Errorf("expected one history entry, got %d", len(claim.History))
	}
}

func TestHighFraudAutoReject(t *testing.T) {
	engine := newEngine(t)
	if err := engine.LoadRules(DefaultRules("tenant-001")); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	claim := reviewClaim()
	claim.EstimatedAmount = 9_000
	claim.ClaimedAmount = 9_000
	claim.FraudScore = 85
	claim.FraudRiskLevel = domain.RiskCritical

	result := engine.Process(context.Background(), claim)

	if claim.State != domain.StateRejected {
		t.Errorf("expected REJECTED, got %s", claim.State)
	}
	if !contains(result.RulesApplied, "auto-reject-high-fraud") {
		t.Errorf("expected high-fraud rule to fire, applied: %v", result.RulesApplied)
	}
}

func TestEscalateAndAssign(t *testing.T) {
	engine := newEngine(t)
	if err := engine.LoadRules(DefaultRules("tenant-001")); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	claim := reviewClaim()
	claim.EstimatedAmount = 15_000
	claim.ClaimedAmount = 15_000

	result := engine.Process(context.Background(), claim)

	if claim.Priority != domain.PriorityUrgent {
		t.Errorf("expected urgent priority, got %s", claim.Priority)
	}
	if escalated, _ := claim.Metadata["escalated"].(bool); !escalated {
		t.Error("expected escalated metadata flag")
	}
	if claim.AdjusterID != "adjuster-auto" {
		t.Errorf("expected auto adjuster assignment, got %q", claim.AdjusterID)
	}
	if !contains(result.RulesApplied, "auto-escalate-high-value") {
		t.Errorf("expected escalate rule to fire, applied: %v", result.RulesApplied)
	}
}

func TestQuickClaimExpressionRule(t *testing.T) {
	engine := newEngine(t)
	if err := engine.LoadRules(DefaultRules("tenant-001")); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	claim := reviewClaim()
	claim.EstimatedAmount = 2_000
	claim.IncidentDate = time.Now().UTC().Add(-12 * time.Hour)

	engine.Process(context.Background(), claim)

	if flags := claim.Flags(); !contains(flags, "QUICK_CLAIM") {
		t.Errorf("expected QUICK_CLAIM flag, got %v", flags)
	}
}

// Claims loaded from the repository have been through a JSON round-trip,
// which decodes metadata lists as []any. Flagging such a claim must append
// to the stored list rather than replace it.
func TestFlagAppendsAfterMetadataRoundTrip(t *testing.T) {
	engine := newEngine(t)
	if err := engine.LoadRules([]*domain.AutomationRule{{
		ID:       "flag-review",
		Name:     "Flag",
		Priority: 1,
		Conditions: []domain.Condition{
			{Field: domain.FieldEstimatedAmount, Op: domain.OpGt, Value: 0.0},
		},
		Actions: []domain.Action{{Kind: domain.ActionFlag, Params: map[string]string{"flag": "SECOND"}}},
		Enabled: true,
	}}); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	claim := reviewClaim()
	claim.SetMeta("flags", []string{"FIRST"})

	raw, err := json.Marshal(claim.Metadata)
	if err != nil {
		t.Fatalf("failed to marshal metadata: %v", err)
	}
	claim.Metadata = nil
	if err := json.Unmarshal(raw, &claim.Metadata); err != nil {
		t.Fatalf("failed to unmarshal metadata: %v", err)
	}

	engine.Process(context.Background(), claim)

	flags := claim.Flags()
	want := []string{"FIRST", "SECOND"}
	if len(flags) != len(want) || flags[0] != want[0] || flags[1] != want[1] {
		t.Errorf("expected flags %v after round-trip, got %v", want, flags)
	}
}

// Multiple independent rules may fire in a single pass, and a failing action
// must not block later rules.
func TestPartialFailureIsolation(t *testing.T) {
	engine := newEngine(t)

	rules := []*domain.AutomationRule{
		{
			ID:       "approve-from-wrong-state",
			Name:     "Approve",
			Priority: 1,
			Conditions: []domain.Condition{
				{Field: domain.FieldEstimatedAmount, Op: domain.OpGt, Value: 0.0},
			},
			Actions: []domain.Action{{Kind: domain.ActionApprove}},
			Enabled: true,
		},
		{
			ID:       "flag-anything",
			Name:     "Flag",
			Priority: 2,
			Conditions: []domain.Condition{
				{Field: domain.FieldEstimatedAmount, Op: domain.OpGt, Value: 0.0},
			},
			Actions: []domain.Action{{Kind: domain.ActionFlag, Params: map[string]string{"flag": "SEEN"}}},
			Enabled: true,
		},
	}
	if err := engine.LoadRules(rules); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	claim := reviewClaim()
	claim.State = domain.StateDraft // approve is illegal from DRAFT

	result := engine.Process(context.Background(), claim)

	if result.Success {
		t.Error("expected success=false with a failed action")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "approve-from-wrong-state") {
		t.Errorf("expected one error from the approve rule, got %v", result.Errors)
	}

	// The second rule still ran.
	if flags := claim.Flags(); !contains(flags, "SEEN") {
		t.Errorf("expected later rule to still execute, flags: %v", flags)
	}
	if claim.State != domain.StateDraft {
		t.Errorf("failed approve must not change state, got %s", claim.State)
	}
}

func TestPriorityOrdering(t *testing.T) {
	engine := newEngine(t)

	mkFlag := func(id string, priority int) *domain.AutomationRule {
		return &domain.AutomationRule{
			ID:       id,
			Name:     id,
			Priority: priority,
			Conditions: []domain.Condition{
				{Field: domain.FieldEstimatedAmount, Op: domain.OpGt, Value: 0.0},
			},
			Actions: []domain.Action{{Kind: domain.ActionFlag, Params: map[string]string{"flag": id}}},
			Enabled: true,
		}
	}

	if err := engine.LoadRules([]*domain.AutomationRule{
		mkFlag("third", 30), mkFlag("first", 1), mkFlag("second", 15),
	}); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	claim := reviewClaim()
	engine.Process(context.Background(), claim)

	flags := claim.Flags()
	want := []string{"first", "second", "third"}
	if len(flags) != len(want) {
		t.Fatalf("expected %d flags, got %v", len(want), flags)
	}
	for i := range want {
		if flags[i] != want[i] {
			t.Fatalf("expected priority order %v, got %v", want, flags)
		}
	}
}

func TestReloadRules(t *testing.T) {
	engine := newEngine(t)
	if err := engine.LoadRules(DefaultRules("tenant-001")); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	replacement := []*domain.AutomationRule{
		{
			ID: "only-rule", Name: "Only", Priority: 1,
			Conditions: []domain.Condition{
				{Field: domain.FieldFraudScore, Op: domain.OpGte, Value: 0.0},
			},
			Actions: []domain.Action{{Kind: domain.ActionFlag}},
			Enabled: true,
		},
		{ID: "disabled-rule", Enabled: false},
	}
	if err := engine.ReloadRules(replacement); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if engine.RuleCount() != 1 {
		t.Errorf("expected 1 rule after reload, got %d", engine.RuleCount())
	}
}

func TestDisabledRulesDoNotLoad(t *testing.T) {
	engine := newEngine(t)
	rules := DefaultRules("tenant-001")
	rules[0].Enabled = false

	if err := engine.LoadRules(rules); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}
	if engine.RuleCount() != 4 {
		t.Errorf("expected 4 rules, got %d", engine.RuleCount())
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
