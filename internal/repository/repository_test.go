package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/opensource-insurance/heron/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "heron-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func sampleClaim(id string) *domain.Claim {
	now := time.Now().UTC().Truncate(time.Second)
	policyStart := now.AddDate(-1, 0, 0)
	return &domain.Claim{
		ID:                   id,
		TenantID:             "tenant-001",
		ClaimNumber:          "CLM-2026-0001",
		CustomerID:           "cust-001",
		PolicyID:             "pol-001",
		PolicyStart:          &policyStart,
		Type:                 domain.TypeAutoAccident,
		Priority:             domain.PriorityNormal,
		State:                domain.StateSubmitted,
		AdjusterID:           "adjuster-auto",
		EstimatedAmount:      2_500,
		ClaimedAmount:        2_600,
		Currency:             "USD",
		IncidentDate:         now.AddDate(0, 0, -10),
		ReportedDate:         now.AddDate(0, 0, -9),
		LastStateChange:      now,
		HasRequiredDocuments: true,
		DocumentCount:        3,
		FraudRiskLevel:       domain.RiskLow,
		FraudScore:           15,
		FraudFlags:           []string{"HIGH_AMOUNT"},
		Metadata:             map[string]any{"source": "portal"},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func TestClaimRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	claim := sampleClaim("claim-001")
	if err := repo.SaveClaim(ctx, claim.TenantID, claim); err != nil {
		t.Fatalf("failed to save claim: %v", err)
	}

	got, err := repo.GetClaim(ctx, claim.TenantID, "claim-001")
	if err != nil {
		t.Fatalf("failed to get claim: %v", err)
	}

	if got.ClaimNumber != claim.ClaimNumber {
		t.Errorf("claim number = %q, want %q", got.ClaimNumber, claim.ClaimNumber)
	}
	if got.State != domain.StateSubmitted {
		t.Errorf("state = %s, want SUBMITTED", got.State)
	}
	if got.PolicyStart == nil || !got.PolicyStart.Equal(*claim.PolicyStart) {
		t.Errorf("policy start = %v, want %v", got.PolicyStart, claim.PolicyStart)
	}
	if got.ApprovedAmount != nil {
		t.Errorf("approved amount should be nil, got %v", *got.ApprovedAmount)
	}
	if !got.HasRequiredDocuments {
		t.Error("expected hasRequiredDocuments to survive the round trip")
	}
	if len(got.FraudFlags) != 1 || got.FraudFlags[0] != "HIGH_AMOUNT" {
		t.Errorf("fraud flags = %v", got.FraudFlags)
	}
	if src, _ := got.Metadata["source"].(string); src != "portal" {
		t.Errorf("metadata source = %v", got.Metadata["source"])
	}
}

func TestClaimUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	claim := sampleClaim("claim-001")
	if err := repo.SaveClaim(ctx, claim.TenantID, claim); err != nil {
		t.Fatalf("failed to save claim: %v", err)
	}

	approved := 2_400.0
	claim.State = domain.StateApproved
	claim.ApprovedAmount = &approved
	if err := repo.SaveClaim(ctx, claim.TenantID, claim); err != nil {
		t.Fatalf("failed to update claim: %v", err)
	}

	got, err := repo.GetClaim(ctx, claim.TenantID, "claim-001")
	if err != nil {
		t.Fatalf("failed to get claim: %v", err)
	}
	if got.State != domain.StateApproved {
		t.Errorf("state = %s, want APPROVED", got.State)
	}
	if got.ApprovedAmount == nil || *got.ApprovedAmount != approved {
		t.Errorf("approved amount = %v, want %v", got.ApprovedAmount, approved)
	}
}

func TestGetClaimNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetClaim(context.Background(), "tenant-001", "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListClaimsByCustomer(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		claim := sampleClaim(fmt.Sprintf("claim-%d", i))
		if err := repo.SaveClaim(ctx, claim.TenantID, claim); err != nil {
			t.Fatalf("failed to save claim: %v", err)
		}
	}

	old := sampleClaim("claim-old")
	old.CreatedAt = time.Now().UTC().AddDate(-2, 0, 0)
	if err := repo.SaveClaim(ctx, old.TenantID, old); err != nil {
		t.Fatalf("failed to save old claim: %v", err)
	}

	since := time.Now().UTC().AddDate(0, 0, -365)
	claims, err := repo.ListClaimsByCustomer(ctx, "tenant-001", "cust-001", since)
	if err != nil {
		t.Fatalf("failed to list claims: %v", err)
	}
	if len(claims) != 3 {
		t.Errorf("expected 3 claims inside the window, got %d", len(claims))
	}
}

func TestListClaimsByState(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	submitted := sampleClaim("claim-sub")
	if err := repo.SaveClaim(ctx, submitted.TenantID, submitted); err != nil {
		t.Fatalf("failed to save claim: %v", err)
	}

	approved := sampleClaim("claim-app")
	approved.State = domain.StateApproved
	if err := repo.SaveClaim(ctx, approved.TenantID, approved); err != nil {
		t.Fatalf("failed to save claim: %v", err)
	}

	claims, err := repo.ListClaimsByState(ctx, "tenant-001", domain.StateApproved)
	if err != nil {
		t.Fatalf("failed to list claims: %v", err)
	}
	if len(claims) != 1 || claims[0].ID != "claim-app" {
		t.Errorf("expected only the approved claim, got %v", claims)
	}
}

func TestTenantIsolation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	claim := sampleClaim("claim-001")
	if err := repo.SaveClaim(ctx, claim.TenantID, claim); err != nil {
		t.Fatalf("failed to save claim: %v", err)
	}

	_, err := repo.GetClaim(ctx, "other-tenant", "claim-001")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound across tenants, got %v", err)
	}
}

func TestRequiresTenantID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveClaim(ctx, "", sampleClaim("claim-001")); err == nil {
		t.Error("expected error for empty tenantID on save")
	}
	if _, err := repo.GetClaim(ctx, "", "claim-001"); err == nil {
		t.Error("expected error for empty tenantID on get")
	}
}

func TestHistoryAppendAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	claim := sampleClaim("claim-001")
	if err := repo.SaveClaim(ctx, claim.TenantID, claim); err != nil {
		t.Fatalf("failed to save claim: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	transitions := []struct {
		from, to domain.ClaimState
	}{
		{domain.StateDraft, domain.StateSubmitted},
		{domain.StateSubmitted, domain.StateUnderReview},
		{domain.StateUnderReview, domain.StateApproved},
	}
	for i, tr := range transitions {
		entry := &domain.HistoryEntry{
			ID:        fmt.Sprintf("hist-%d", i),
			ClaimID:   "claim-001",
			FromState: tr.from,
			ToState:   tr.to,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			UserID:    "user-007",
			Reason:    "progressing",
		}
		if err := repo.AppendHistory(ctx, "tenant-001", entry); err != nil {
			t.Fatalf("failed to append history: %v", err)
		}
	}

	entries, err := repo.ListHistory(ctx, "tenant-001", "claim-001")
	if err != nil {
		t.Fatalf("failed to list history: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i-1].Timestamp) {
			t.Fatal("history not in chronological order")
		}
	}

	// GetClaim hydrates the history.
	got, err := repo.GetClaim(ctx, "tenant-001", "claim-001")
	if err != nil {
		t.Fatalf("failed to get claim: %v", err)
	}
	if len(got.History) != 3 {
		t.Errorf("expected hydrated history, got %d entries", len(got.History))
	}
}

func TestApprovalRequestLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	req := &domain.ApprovalRequest{
		ID:       "apr-001",
		TenantID: "tenant-001",
		ClaimID:  "claim-001",
		Level:    2,
		Approvers: []domain.Approver{
			{UserID: "adjuster", Role: "adjuster", Level: 2, Status: domain.ApprovalPending},
			{UserID: "supervisor", Role: "supervisor", Level: 2, Status: domain.ApprovalPending},
		},
		Status:      domain.ApprovalPending,
		RequiresAll: true,
		RequestedBy: "user-007",
		RequestedAt: now,
		ExpiresAt:   now.Add(7 * 24 * time.Hour),
	}

	if err := repo.SaveApprovalRequest(ctx, "tenant-001", req); err != nil {
		t.Fatalf("failed to save request: %v", err)
	}

	got, err := repo.GetApprovalRequest(ctx, "tenant-001", "apr-001")
	if err != nil {
		t.Fatalf("failed to get request: %v", err)
	}
	if got.Status != domain.ApprovalPending || len(got.Approvers) != 2 {
		t.Errorf("unexpected request: status=%s approvers=%d", got.Status, len(got.Approvers))
	}

	pending, err := repo.ListPendingApprovalRequests(ctx, "tenant-001")
	if err != nil {
		t.Fatalf("failed to list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("expected 1 pending request, got %d", len(pending))
	}

	// Resolve and verify it leaves the pending list.
	resolved := now.Add(time.Hour)
	req.Status = domain.ApprovalApproved
	req.ResolvedAt = &resolved
	req.Approvers[0].Status = domain.ApprovalApproved
	req.Approvers[1].Status = domain.ApprovalApproved
	if err := repo.SaveApprovalRequest(ctx, "tenant-001", req); err != nil {
		t.Fatalf("failed to update request: %v", err)
	}

	pending, err = repo.ListPendingApprovalRequests(ctx, "tenant-001")
	if err != nil {
		t.Fatalf("failed to list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending requests after resolution, got %d", len(pending))
	}

	got, _ = repo.GetApprovalRequest(ctx, "tenant-001", "apr-001")
	if got.Status != domain.ApprovalApproved || got.ResolvedAt == nil {
		t.Errorf("resolution not persisted: status=%s resolvedAt=%v", got.Status, got.ResolvedAt)
	}
}

func TestApprovalRequestNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetApprovalRequest(context.Background(), "tenant-001", "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected domain.ErrNotFound, got %v", err)
	}
}

func TestAutomationRuleRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := &domain.AutomationRule{
		ID:       "rule-001",
		TenantID: "tenant-001",
		Name:     "Auto approve small claims",
		Version:  "1.0.0",
		Priority: 10,
		Conditions: []domain.Condition{
			{Field: domain.FieldEstimatedAmount, Op: domain.OpLt, Value: 500.0},
		},
		Expression: "fraud_score < 30.0",
		Actions: []domain.Action{
			{Kind: domain.ActionApprove},
		},
		Enabled: true,
	}

	if err := repo.SaveAutomationRule(ctx, "tenant-001", rule); err != nil {
		t.Fatalf("failed to save rule: %v", err)
	}

	got, err := repo.GetAutomationRule(ctx, "tenant-001", "rule-001")
	if err != nil {
		t.Fatalf("failed to get rule: %v", err)
	}
	if got.Priority != 10 || got.Expression != "fraud_score < 30.0" {
		t.Errorf("unexpected rule: priority=%d expression=%q", got.Priority, got.Expression)
	}
	if len(got.Conditions) != 1 || got.Conditions[0].Field != domain.FieldEstimatedAmount {
		t.Errorf("conditions did not survive: %v", got.Conditions)
	}
	if len(got.Actions) != 1 || got.Actions[0].Kind != domain.ActionApprove {
		t.Errorf("actions did not survive: %v", got.Actions)
	}
}

func TestListAutomationRulesOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	priorities := map[string]int{"rule-c": 30, "rule-a": 5, "rule-b": 15}
	for id, priority := range priorities {
		rule := &domain.AutomationRule{
			ID:       id,
			TenantID: "tenant-001",
			Name:     id,
			Version:  "1.0.0",
			Priority: priority,
			Conditions: []domain.Condition{
				{Field: domain.FieldFraudScore, Op: domain.OpGte, Value: 0.0},
			},
			Actions: []domain.Action{{Kind: domain.ActionFlag}},
			Enabled: true,
		}
		if err := repo.SaveAutomationRule(ctx, "tenant-001", rule); err != nil {
			t.Fatalf("failed to save rule %s: %v", id, err)
		}
	}

	disabled := &domain.AutomationRule{
		ID: "rule-off", TenantID: "tenant-001", Name: "off", Version: "1.0.0",
		Conditions: []domain.Condition{},
		Actions:    []domain.Action{{Kind: domain.ActionFlag}},
		Enabled:    false,
	}
	if err := repo.SaveAutomationRule(ctx, "tenant-001", disabled); err != nil {
		t.Fatalf("failed to save disabled rule: %v", err)
	}

	rules, err := repo.ListAutomationRules(ctx, "tenant-001")
	if err != nil {
		t.Fatalf("failed to list rules: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("expected 3 enabled rules, got %d", len(rules))
	}
	want := []string{"rule-a", "rule-b", "rule-c"}
	for i, rule := range rules {
		if rule.ID != want[i] {
			t.Fatalf("rules out of priority order: got %s at %d, want %s", rule.ID, i, want[i])
		}
	}
}
