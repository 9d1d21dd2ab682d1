// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-insurance/heron/internal/domain"
)

var (
	// ErrNotFound aliases the domain sentinel so callers can match either.
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const claimColumns = `id, tenant_id, claim_number, customer_id, policy_id, policy_start,
	   type, priority, state, adjuster_id,
	   estimated_amount, claimed_amount, approved_amount, paid_amount, currency,
	   incident_date, reported_date, submitted_at, approved_at, rejected_at,
	   paid_at, closed_at, last_state_change,
	   has_required_documents, missing_documents, document_count,
	   fraud_risk_level, fraud_score, fraud_flags,
	   requires_approval, approval_level, approvers,
	   notes, metadata, created_at, updated_at`

// SaveClaim upserts a claim with tenant isolation. History entries are
// persisted separately through AppendHistory.
func (r *SQLRepository) SaveClaim(ctx context.Context, tenantID string, claim *domain.Claim) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	missingDocs, _ := json.Marshal(claim.MissingDocuments)
	fraudFlags, _ := json.Marshal(claim.FraudFlags)
	approvers, _ := json.Marshal(claim.Approvers)
	notes, _ := json.Marshal(claim.Notes)
	metadata, _ := json.Marshal(claim.Metadata)

	query := `
		INSERT INTO claims (
			id, tenant_id, claim_number, customer_id, policy_id, policy_start,
			type, priority, state, adjuster_id,
			estimated_amount, claimed_amount, approved_amount, paid_amount, currency,
			incident_date, reported_date, submitted_at, approved_at, rejected_at,
			paid_at, closed_at, last_state_change,
			has_required_documents, missing_documents, document_count,
			fraud_risk_level, fraud_score, fraud_flags,
			requires_approval, approval_level, approvers,
			notes, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			claim_number = excluded.claim_number,
			priority = excluded.priority,
			state = excluded.state,
			adjuster_id = excluded.adjuster_id,
			estimated_amount = excluded.estimated_amount,
			claimed_amount = excluded.claimed_amount,
			approved_amount = excluded.approved_amount,
			paid_amount = excluded.paid_amount,
			submitted_at = excluded.submitted_at,
			approved_at = excluded.approved_at,
			rejected_at = excluded.rejected_at,
			paid_at = excluded.paid_at,
			closed_at = excluded.closed_at,
			last_state_change = excluded.last_state_change,
			has_required_documents = excluded.has_required_documents,
			missing_documents = excluded.missing_documents,
			document_count = excluded.document_count,
			fraud_risk_level = excluded.fraud_risk_level,
			fraud_score = excluded.fraud_score,
			fraud_flags = excluded.fraud_flags,
			requires_approval = excluded.requires_approval,
			approval_level = excluded.approval_level,
			approvers = excluded.approvers,
			notes = excluded.notes,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		claim.ID, tenantID, claim.ClaimNumber, claim.CustomerID, claim.PolicyID, claim.PolicyStart,
		claim.Type, claim.Priority, claim.State, claim.AdjusterID,
		claim.EstimatedAmount, claim.ClaimedAmount, claim.ApprovedAmount, claim.PaidAmount, claim.Currency,
		claim.IncidentDate, claim.ReportedDate, claim.SubmittedAt, claim.ApprovedAt, claim.RejectedAt,
		claim.PaidAt, claim.ClosedAt, claim.LastStateChange,
		boolToInt(claim.HasRequiredDocuments), string(missingDocs), claim.DocumentCount,
		claim.FraudRiskLevel, claim.FraudScore, string(fraudFlags),
		boolToInt(claim.RequiresApproval), claim.ApprovalLevel, string(approvers),
		string(notes), string(metadata), claim.CreatedAt, claim.UpdatedAt,
	)
	return err
}

// GetClaim retrieves a claim by ID with tenant isolation, including its
// transition history.
func (r *SQLRepository) GetClaim(ctx context.Context, tenantID string, claimID string) (*domain.Claim, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT ` + claimColumns + ` FROM claims WHERE tenant_id = ? AND id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, claimID)
	claim, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	history, err := r.ListHistory(ctx, tenantID, claimID)
	if err != nil {
		return nil, err
	}
	for _, entry := range history {
		claim.History = append(claim.History, *entry)
	}

	return claim, nil
}

// ListClaimsByCustomer retrieves a customer's claims created since the given
// time, newest first.
func (r *SQLRepository) ListClaimsByCustomer(ctx context.Context, tenantID string, customerID string, since time.Time) ([]*domain.Claim, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT ` + claimColumns + `
		FROM claims
		WHERE tenant_id = ? AND customer_id = ? AND created_at >= ?
		ORDER BY created_at DESC`

	return r.queryClaims(ctx, r.rebind(query), tenantID, customerID, since)
}

// ListClaimsByState retrieves all claims in a given lifecycle state.
func (r *SQLRepository) ListClaimsByState(ctx context.Context, tenantID string, state domain.ClaimState) ([]*domain.Claim, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT ` + claimColumns + `
		FROM claims
		WHERE tenant_id = ? AND state = ?
		ORDER BY last_state_change ASC`

	return r.queryClaims(ctx, r.rebind(query), tenantID, state)
}

func (r *SQLRepository) queryClaims(ctx context.Context, query string, args ...any) ([]*domain.Claim, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*domain.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanClaim(s scanner) (*domain.Claim, error) {
	var claim domain.Claim
	var policyStart, submittedAt, approvedAt, rejectedAt, paidAt, closedAt sql.NullTime
	var approvedAmount, paidAmount sql.NullFloat64
	var adjusterID, fraudRiskLevel sql.NullString
	var hasDocs, requiresApproval int
	var missingDocs, fraudFlags, approvers, notes, metadata string

	err := s.Scan(
		&claim.ID, &claim.TenantID, &claim.ClaimNumber, &claim.CustomerID, &claim.PolicyID, &policyStart,
		&claim.Type, &claim.Priority, &claim.State, &adjusterID,
		&claim.EstimatedAmount, &claim.ClaimedAmount, &approvedAmount, &paidAmount, &claim.Currency,
		&claim.IncidentDate, &claim.ReportedDate, &submittedAt, &approvedAt, &rejectedAt,
		&paidAt, &closedAt, &claim.LastStateChange,
		&hasDocs, &missingDocs, &claim.DocumentCount,
		&fraudRiskLevel, &claim.FraudScore, &fraudFlags,
		&requiresApproval, &claim.ApprovalLevel, &approvers,
		&notes, &metadata, &claim.CreatedAt, &claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	claim.PolicyStart = timePtr(policyStart)
	claim.SubmittedAt = timePtr(submittedAt)
	claim.ApprovedAt = timePtr(approvedAt)
	claim.RejectedAt = timePtr(rejectedAt)
	claim.PaidAt = timePtr(paidAt)
	claim.ClosedAt = timePtr(closedAt)
	claim.ApprovedAmount = floatPtr(approvedAmount)
	claim.PaidAmount = floatPtr(paidAmount)
	claim.AdjusterID = adjusterID.String
	claim.FraudRiskLevel = domain.RiskLevel(fraudRiskLevel.String)
	claim.HasRequiredDocuments = hasDocs == 1
	claim.RequiresApproval = requiresApproval == 1

	json.Unmarshal([]byte(missingDocs), &claim.MissingDocuments)
	json.Unmarshal([]byte(fraudFlags), &claim.FraudFlags)
	json.Unmarshal([]byte(approvers), &claim.Approvers)
	json.Unmarshal([]byte(notes), &claim.Notes)
	json.Unmarshal([]byte(metadata), &claim.Metadata)

	return &claim, nil
}

// AppendHistory stores one transition audit record. The log is append-only;
// entries are never updated or deleted.
func (r *SQLRepository) AppendHistory(ctx context.Context, tenantID string, entry *domain.HistoryEntry) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO claim_history (
			id, tenant_id, claim_id, from_state, to_state,
			timestamp, user_id, reason, reason_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		entry.ID, tenantID, entry.ClaimID, entry.FromState, entry.ToState,
		entry.Timestamp, entry.UserID, entry.Reason, entry.ReasonCode,
	)
	return err
}

// ListHistory retrieves a claim's transition log in chronological order.
func (r *SQLRepository) ListHistory(ctx context.Context, tenantID string, claimID string) ([]*domain.HistoryEntry, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, claim_id, from_state, to_state, timestamp, user_id, reason, reason_code
		FROM claim_history
		WHERE tenant_id = ? AND claim_id = ?
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		var userID, reason, reasonCode sql.NullString

		if err := rows.Scan(
			&entry.ID, &entry.ClaimID, &entry.FromState, &entry.ToState,
			&entry.Timestamp, &userID, &reason, &reasonCode,
		); err != nil {
			return nil, err
		}

		entry.UserID = userID.String
		entry.Reason = reason.String
		entry.ReasonCode = reasonCode.String
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// SaveApprovalRequest upserts an approval request with tenant isolation.
func (r *SQLRepository) SaveApprovalRequest(ctx context.Context, tenantID string, req *domain.ApprovalRequest) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	approvers, _ := json.Marshal(req.Approvers)

	query := `
		INSERT INTO approval_requests (
			id, tenant_id, claim_id, level, approvers, status,
			requires_all, requested_by, requested_at, expires_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			approvers = excluded.approvers,
			status = excluded.status,
			resolved_at = excluded.resolved_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		req.ID, tenantID, req.ClaimID, req.Level, string(approvers), req.Status,
		boolToInt(req.RequiresAll), req.RequestedBy, req.RequestedAt, req.ExpiresAt, req.ResolvedAt,
	)
	return err
}

// GetApprovalRequest retrieves an approval request by ID with tenant isolation.
func (r *SQLRepository) GetApprovalRequest(ctx context.Context, tenantID string, requestID string) (*domain.ApprovalRequest, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, claim_id, level, approvers, status,
			   requires_all, requested_by, requested_at, expires_at, resolved_at
		FROM approval_requests
		WHERE tenant_id = ? AND id = ?
	`

	req, err := scanApprovalRequest(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, requestID)
	}
	return req, err
}

// ListPendingApprovalRequests retrieves all unresolved approval requests for
// a tenant, oldest first, for the expiry sweep.
func (r *SQLRepository) ListPendingApprovalRequests(ctx context.Context, tenantID string) ([]*domain.ApprovalRequest, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, claim_id, level, approvers, status,
			   requires_all, requested_by, requested_at, expires_at, resolved_at
		FROM approval_requests
		WHERE tenant_id = ? AND status = ?
		ORDER BY requested_at ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, domain.ApprovalPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*domain.ApprovalRequest
	for rows.Next() {
		req, err := scanApprovalRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

func scanApprovalRequest(s scanner) (*domain.ApprovalRequest, error) {
	var req domain.ApprovalRequest
	var approvers string
	var requiresAll int
	var requestedBy sql.NullString
	var resolvedAt sql.NullTime

	err := s.Scan(
		&req.ID, &req.TenantID, &req.ClaimID, &req.Level, &approvers, &req.Status,
		&requiresAll, &requestedBy, &req.RequestedAt, &req.ExpiresAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	req.RequiresAll = requiresAll == 1
	req.RequestedBy = requestedBy.String
	req.ResolvedAt = timePtr(resolvedAt)
	json.Unmarshal([]byte(approvers), &req.Approvers)

	return &req, nil
}

// SaveAutomationRule stores an automation rule with tenant isolation.
// Rule versions are immutable; saving the same id and version updates it.
func (r *SQLRepository) SaveAutomationRule(ctx context.Context, tenantID string, rule *domain.AutomationRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	conditions, _ := json.Marshal(rule.Conditions)
	actions, _ := json.Marshal(rule.Actions)

	now := time.Now().UTC()

	query := `
		INSERT INTO automation_rules (
			id, tenant_id, name, description, version, priority,
			conditions, expression, actions, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			priority = excluded.priority,
			conditions = excluded.conditions,
			expression = excluded.expression,
			actions = excluded.actions,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description, rule.Version, rule.Priority,
		string(conditions), rule.Expression, string(actions), boolToInt(rule.Enabled),
		now, now,
	)
	return err
}

// GetAutomationRule retrieves the latest enabled version of a rule.
func (r *SQLRepository) GetAutomationRule(ctx context.Context, tenantID string, ruleID string) (*domain.AutomationRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, priority,
			   conditions, expression, actions, enabled, created_at, updated_at
		FROM automation_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	rule, err := scanAutomationRule(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

// ListAutomationRules retrieves all enabled automation rules for a tenant,
// ordered by priority.
func (r *SQLRepository) ListAutomationRules(ctx context.Context, tenantID string) ([]*domain.AutomationRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, priority,
			   conditions, expression, actions, enabled, created_at, updated_at
		FROM automation_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY priority ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.AutomationRule
	for rows.Next() {
		rule, err := scanAutomationRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func scanAutomationRule(s scanner) (*domain.AutomationRule, error) {
	var rule domain.AutomationRule
	var description, expression sql.NullString
	var conditions, actions string
	var enabled int

	err := s.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &description, &rule.Version, &rule.Priority,
		&conditions, &expression, &actions, &enabled, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Expression = expression.String
	rule.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to parse rule conditions for %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(actions), &rule.Actions); err != nil {
		return nil, fmt.Errorf("failed to parse rule actions for %s: %w", rule.ID, err)
	}

	return &rule, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
